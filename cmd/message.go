package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PolarWolf314/chatvault/internal/secrets"
	"github.com/PolarWolf314/chatvault/internal/ui"
	"github.com/PolarWolf314/chatvault/internal/workflows"
	"github.com/spf13/cobra"
)

var (
	messageChatID        string
	messageUser          string
	messageWorkspace     string
	messageText          string
	messageLimit         int
	messagePasswordStdin bool
	messageUnlock        bool
	messageJSONOutput    bool
)

// MessageCmd groups encrypted message commands.
var MessageCmd = &cobra.Command{
	Use:   "message",
	Short: "Send and read encrypted chat messages",
}

func init() {
	for _, c := range []*cobra.Command{messageSendCmd, messageReadCmd} {
		c.Flags().StringVarP(&messageChatID, "chat", "c", "", "chat id")
		_ = c.MarkFlagRequired("chat")
		c.Flags().StringVarP(&messageUser, "user", "u", "", "sender or reader id (defaults to the OS username)")
		c.Flags().StringVarP(&messageWorkspace, "workspace", "w", "", "workspace id for standardized keys")
		c.Flags().BoolVar(&messagePasswordStdin, "password-stdin", false, "read the user's password from stdin")
	}
	messageSendCmd.Flags().StringVarP(&messageText, "text", "t", "", "message text (defaults to the arguments)")
	messageReadCmd.Flags().IntVarP(&messageLimit, "limit", "n", 0, "maximum number of messages, 0 for all")
	messageReadCmd.Flags().BoolVar(&messageUnlock, "unlock", false, "also unlock legacy keys when --workspace is set")
	messageReadCmd.Flags().BoolVar(&messageJSONOutput, "json", false, "output in JSON format")

	MessageCmd.AddCommand(messageSendCmd)
	MessageCmd.AddCommand(messageReadCmd)
}

func resetMessageCommandState() {
	messageChatID = ""
	messageUser = ""
	messageWorkspace = ""
	messageText = ""
	messageLimit = 0
	messagePasswordStdin = false
	messageUnlock = false
	messageJSONOutput = false
}

// messageMasterKey unlocks the user's master key when legacy keys may be
// needed. A failure is logged, not returned: the legacy fallback key and
// standardized keys need no master key.
func messageMasterKey(ctx context.Context, svc *workflows.Service, user string, password []byte) *secrets.Key {
	if password == nil {
		return nil
	}
	key, err := unlockMasterKey(ctx, svc, user, password)
	if err != nil {
		Logger.Warnf("Could not unlock master key for %s: %v", user, err)
		return nil
	}
	return key
}

var messageSendCmd = &cobra.Command{
	Use:   "send [text...]",
	Short: "Encrypts and stores a message",
	Long: `Encrypts a message with the sender's chat key and stores it.

With --workspace the standardized key is used. Otherwise the sender's newest
legacy grant is unwrapped with their password.

Examples:
  chatvault message send --chat general --user alice --workspace acme "hello"
  echo "$PASSWORD" | chatvault message send -c general -u alice --password-stdin hi`,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting message send command")
		ctx := cmd.Context()

		user, err := defaultUser(messageUser, "--user")
		if err != nil {
			return err
		}

		text := messageText
		if text == "" {
			text = strings.Join(args, " ")
		}
		if text == "" {
			return Logger.ErrorfAndReturn("message text is empty, pass --text or arguments")
		}

		var password []byte
		if messageWorkspace == "" {
			password, err = readPassword(fmt.Sprintf("Password for %s: ", user), messagePasswordStdin, false)
			if err != nil {
				return Logger.ErrorfAndReturn("failed to read password: %v", err)
			}
			defer clear(password)
		}

		spinner, cleanup := startSpinner("Sending message...")
		defer cleanup()

		env, err := openEnvironment(ctx)
		if err != nil {
			spinner.FinalMSG = ui.Error.Sprint("✗") + " Failed to open the key store"
			return Logger.ErrorfAndReturn("%v", err)
		}
		defer env.Close()

		masterKey := messageMasterKey(ctx, env.svc, user, password)
		defer masterKey.Destroy()

		result, err := env.svc.PostMessage(ctx, workflows.PostMessageOptions{
			ChatID:      messageChatID,
			SenderID:    user,
			WorkspaceID: messageWorkspace,
			Text:        text,
			MasterKey:   masterKey,
		})
		if err != nil {
			return reportError(spinner, "send message", err)
		}

		spinner.FinalMSG = ui.Success.Sprint("✓") + " Sent " + ui.Highlight.Sprint(result.MessageID) +
			" " + ui.Muted.Sprintf("%s key v%d", result.Scheme, result.KeyVersion)
		return nil
	},
}

type messageView struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	Text       string    `json:"text,omitempty"`
	KeyVersion int       `json:"keyVersion"`
	Scheme     string    `json:"scheme,omitempty"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
}

var messageReadCmd = &cobra.Command{
	Use:   "read",
	Short: "Decrypts and prints a chat's messages",
	Long: `Prints a chat's messages, oldest first, decrypted for one reader.

Each message is tried with the standardized key and then with the reader's
legacy key for the version it was written under. Messages no key opens are
shown as cannot-decrypt instead of failing the listing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		Logger.Infof("Starting message read command")
		ctx := cmd.Context()

		user, err := defaultUser(messageUser, "--user")
		if err != nil {
			return err
		}

		var password []byte
		if messageWorkspace == "" || messageUnlock {
			password, err = readPassword(fmt.Sprintf("Password for %s: ", user), messagePasswordStdin, false)
			if err != nil {
				return Logger.ErrorfAndReturn("failed to read password: %v", err)
			}
			defer clear(password)
		}

		env, err := openEnvironment(ctx)
		if err != nil {
			return Logger.ErrorfAndReturn("%v", err)
		}
		defer env.Close()

		masterKey := messageMasterKey(ctx, env.svc, user, password)
		defer masterKey.Destroy()

		result, err := env.svc.ReadMessages(ctx, workflows.ReadMessagesOptions{
			ChatID:      messageChatID,
			UserID:      user,
			WorkspaceID: messageWorkspace,
			MasterKey:   masterKey,
			Limit:       messageLimit,
		})
		if err != nil {
			return Logger.ErrorfAndReturn("failed to read messages: %v", err)
		}

		if messageJSONOutput {
			views := make([]messageView, 0, len(result.Messages))
			for _, m := range result.Messages {
				v := messageView{
					ID:         m.ID,
					SenderID:   m.SenderID,
					Text:       m.Text,
					KeyVersion: m.KeyVersion,
					Status:     string(m.Status),
					CreatedAt:  m.CreatedAt,
				}
				if m.Scheme != 0 {
					v.Scheme = m.Scheme.String()
				}
				views = append(views, v)
			}
			return outputJSON(views)
		}

		if len(result.Messages) == 0 {
			fmt.Println("No messages in " + ui.Highlight.Sprint(messageChatID))
			return nil
		}
		for _, m := range result.Messages {
			stamp := ui.Muted.Sprint(m.CreatedAt.Local().Format(time.DateTime))
			if m.Status != workflows.MessageOK {
				fmt.Printf("%s %s: %s\n", stamp, m.SenderID, ui.ForStatus(string(m.Status)).Sprint("<"+string(m.Status)+">"))
				continue
			}
			fmt.Printf("%s %s: %s\n", stamp, m.SenderID, m.Text)
		}
		if result.Undecryptable > 0 {
			fmt.Println(ui.Warning.Sprint("⚠") + fmt.Sprintf(" %d of %d messages could not be decrypted", result.Undecryptable, len(result.Messages)))
		}
		return nil
	},
}
