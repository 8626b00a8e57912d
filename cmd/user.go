package cmd

import (
	"encoding/base64"
	"time"

	"github.com/PolarWolf314/chatvault/internal/ui"
	"github.com/spf13/cobra"
)

var (
	userID            string
	userPasswordStdin bool
	userShowKey       bool
	userJSONOutput    bool
)

// UserCmd groups master key commands.
var UserCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage a user's master key",
	Long:  `Initializes and inspects the password-derived master key that wraps a user's legacy chat keys.`,
}

func init() {
	for _, c := range []*cobra.Command{userInitCmd, userKeysCmd} {
		c.Flags().StringVarP(&userID, "user", "u", "", "user id (defaults to the OS username)")
	}
	userInitCmd.Flags().BoolVar(&userPasswordStdin, "password-stdin", false, "read the password from stdin")
	userInitCmd.Flags().BoolVar(&userShowKey, "show-key", false, "print the derived master key")
	userKeysCmd.Flags().BoolVar(&userJSONOutput, "json", false, "output in JSON format")

	UserCmd.AddCommand(userInitCmd)
	UserCmd.AddCommand(userKeysCmd)
}

func resetUserCommandState() {
	userID = ""
	userPasswordStdin = false
	userShowKey = false
	userJSONOutput = false
}

var userInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Creates a user's master key salt and derives the master key",
	Long: `Generates a random salt for the user, stores it, and derives the master key
from the password with PBKDF2-SHA256.

The salt is created once. Running init again with the same password derives
the same master key, which is how a returning user unlocks it.

Examples:
  # Initialize interactively
  chatvault user init --user alice

  # Initialize from a script
  echo "$PASSWORD" | chatvault user init --user alice --password-stdin`,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting user init command")

		id, err := defaultUser(userID, "--user")
		if err != nil {
			return err
		}

		password, err := readPassword("Password: ", userPasswordStdin, !userPasswordStdin)
		if err != nil {
			return Logger.ErrorfAndReturn("failed to read password: %v", err)
		}
		defer clear(password)

		spinner, cleanup := startSpinner("Deriving master key...")
		defer cleanup()

		env, err := openEnvironment(cmd.Context())
		if err != nil {
			spinner.FinalMSG = ui.Error.Sprint("✗") + " Failed to open the key store"
			return Logger.ErrorfAndReturn("%v", err)
		}
		defer env.Close()

		keys, err := env.svc.InitializeUserCrypto(cmd.Context(), id, password)
		if err != nil {
			return reportError(spinner, "initialize "+id, err)
		}
		defer keys.MasterKey.Destroy()

		msg := ui.Success.Sprint("✓") + " Initialized master key for " + ui.Highlight.Sprint(id)
		if !keys.Created {
			msg = ui.Success.Sprint("✓") + " Unlocked existing master key for " + ui.Highlight.Sprint(id)
		}
		if userShowKey {
			msg += "\n    Master key: " + ui.Secret.Sprint(keys.MasterKey.Base64())
		}
		spinner.FinalMSG = msg
		return nil
	},
}

type userKeysOutput struct {
	UserID    string    `json:"userId"`
	Salt      string    `json:"salt"`
	CreatedAt time.Time `json:"createdAt"`
}

var userKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Shows a user's stored salt",
	Long: `Shows the stored master key salt for a user. The master key itself is
never stored; run 'chatvault user init' to derive it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting user keys command")

		id, err := defaultUser(userID, "--user")
		if err != nil {
			return err
		}

		env, err := openEnvironment(cmd.Context())
		if err != nil {
			return Logger.ErrorfAndReturn("%v", err)
		}
		defer env.Close()

		keys, err := env.svc.GetUserCryptoKeys(cmd.Context(), id)
		if userJSONOutput {
			if err != nil {
				return err
			}
			return outputJSON(userKeysOutput{
				UserID:    keys.UserID,
				Salt:      base64.StdEncoding.EncodeToString(keys.Salt),
				CreatedAt: keys.CreatedAt,
			})
		}

		spinner, cleanup := startSpinner("Loading keys...")
		defer cleanup()

		if err != nil {
			return reportError(spinner, "load keys for "+id, err)
		}

		spinner.FinalMSG = ui.Success.Sprint("✓") + " Keys for " + ui.Highlight.Sprint(keys.UserID) +
			"\n    Salt:    " + base64.StdEncoding.EncodeToString(keys.Salt) +
			"\n    Created: " + keys.CreatedAt.Local().Format(time.RFC1123)
		return nil
	},
}
