package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/PolarWolf314/chatvault/internal/transport"
	"github.com/PolarWolf314/chatvault/internal/ui"
	"github.com/PolarWolf314/chatvault/internal/utils"
	"github.com/spf13/cobra"
)

var rpcPayloadStdin bool

func init() {
	rpcCmd.Flags().BoolVar(&rpcPayloadStdin, "stdin", false, "read the JSON payload from stdin")
}

func resetRPCCommandState() {
	rpcPayloadStdin = false
}

var rpcCmd = &cobra.Command{
	Use:   "rpc <operation> [json]",
	Short: "Calls an operation on a running server",
	Long: `Sends one request to a 'chatvault serve' instance over NATS and prints the
response data.

Examples:
  chatvault rpc deriveChatKey '{"chatId":"general","workspaceId":"acme"}'
  echo '{"chatId":"general"}' | chatvault rpc listAccess --stdin`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		op := args[0]
		Logger.Infof("Starting rpc command for %s", op)

		payload := []byte("{}")
		switch {
		case rpcPayloadStdin:
			data, err := utils.ReadStdin()
			if err != nil {
				return Logger.ErrorfAndReturn("failed to read payload: %v", err)
			}
			payload = data
		case len(args) == 2:
			payload = []byte(args[1])
		}
		if !json.Valid(payload) {
			return Logger.ErrorfAndReturn("payload is not valid JSON")
		}

		cfg, err := loadConfig()
		if err != nil {
			return Logger.ErrorfAndReturn("%v", err)
		}

		conn, err := transport.Connect(cfg.NATS, cfg.AppName+"-cli", Logger)
		if err != nil {
			return Logger.ErrorfAndReturn("%v", err)
		}
		defer conn.Close()

		client, err := transport.NewClient(conn, cfg.NATS)
		if err != nil {
			return Logger.ErrorfAndReturn("%v", err)
		}

		var out json.RawMessage
		err = client.Call(cmd.Context(), op, json.RawMessage(payload), &out)
		var remote *transport.RemoteError
		if errors.As(err, &remote) {
			fmt.Fprintln(os.Stderr, ui.Error.Sprint("✗")+" "+op+" failed: "+remote.Message+" "+ui.Muted.Sprint(remote.Code))
			return remote
		}
		if err != nil {
			return Logger.ErrorfAndReturn("%v", err)
		}

		return outputJSON(out)
	},
}
