package cmd

import (
	"fmt"

	"github.com/PolarWolf314/chatvault/internal/secrets"
	"github.com/PolarWolf314/chatvault/internal/workflows"
	"github.com/spf13/cobra"
)

var (
	deriveChatID      string
	deriveWorkspaceID string
	deriveContext     string
)

// DeriveCmd prints standardized keys. Derivation is deterministic and needs
// no database.
var DeriveCmd = &cobra.Command{
	Use:   "derive",
	Short: "Derive standardized chat and workspace keys",
}

func init() {
	for _, c := range []*cobra.Command{deriveChatCmd, deriveWorkspaceCmd} {
		c.Flags().StringVarP(&deriveWorkspaceID, "workspace", "w", "", "workspace id")
		_ = c.MarkFlagRequired("workspace")
	}
	deriveChatCmd.Flags().StringVarP(&deriveChatID, "chat", "c", "", "chat id")
	_ = deriveChatCmd.MarkFlagRequired("chat")
	deriveWorkspaceCmd.Flags().StringVar(&deriveContext, "context", secrets.DefaultContext, "derivation context")

	DeriveCmd.AddCommand(deriveChatCmd)
	DeriveCmd.AddCommand(deriveWorkspaceCmd)
}

func resetDeriveCommandState() {
	deriveChatID = ""
	deriveWorkspaceID = ""
	deriveContext = secrets.DefaultContext
}

// deriveService builds a Service without a store; derivation only needs the
// configured application name.
func deriveService() (*workflows.Service, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return workflows.New(nil, cfg, Logger, nil), nil
}

var deriveChatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Prints the standardized key for a chat",
	Long: `Derives the v2 chat key with HKDF-SHA256. Every member of the workspace
derives the same key, so nothing is stored.

Examples:
  chatvault derive chat --chat general --workspace acme`,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Deriving chat key for %s in %s", deriveChatID, deriveWorkspaceID)

		svc, err := deriveService()
		if err != nil {
			return Logger.ErrorfAndReturn("%v", err)
		}

		key, err := svc.DeriveChatKey(deriveChatID, deriveWorkspaceID)
		if err != nil {
			return Logger.ErrorfAndReturn("failed to derive chat key: %v", err)
		}
		defer key.Destroy()

		fmt.Println(key.Base64())
		return nil
	},
}

var deriveWorkspaceCmd = &cobra.Command{
	Use:   "workspace",
	Short: "Prints a standardized workspace key",
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Deriving workspace key for %s (context %q)", deriveWorkspaceID, deriveContext)

		svc, err := deriveService()
		if err != nil {
			return Logger.ErrorfAndReturn("%v", err)
		}

		key, err := svc.DeriveWorkspaceKey(deriveWorkspaceID, deriveContext)
		if err != nil {
			return Logger.ErrorfAndReturn("failed to derive workspace key: %v", err)
		}
		defer key.Destroy()

		fmt.Println(key.Base64())
		return nil
	},
}
