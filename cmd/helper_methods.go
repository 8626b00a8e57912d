package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	kerrors "github.com/PolarWolf314/chatvault/internal/errors"
	"github.com/PolarWolf314/chatvault/internal/secrets"
	"github.com/PolarWolf314/chatvault/internal/ui"
	"github.com/PolarWolf314/chatvault/internal/utils"
	"github.com/PolarWolf314/chatvault/internal/workflows"
	"github.com/briandowns/spinner"
)

// startSpinner creates and starts a spinner with the given message when not in verbose or debug mode.
// Returns the spinner and a function that should be deferred to clean up.
//
// spinner.FinalMSG values do not need trailing newlines; cleanup adds one.
func startSpinner(message string) (*spinner.Spinner, func()) {
	Logger.Debugf("Starting spinner with message: %s", message)
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + message

	if err := s.Color("cyan"); err != nil {
		Logger.Warnf("Failed to set spinner color: %v", err)
	}

	quiet := !verbose && !debug
	if quiet {
		s.Start()
		log.SetOutput(io.Discard)
	} else {
		Logger.Infof("Running in verbose or debug mode: %s", message)
	}

	cleanup := func() {
		if quiet {
			log.SetOutput(os.Stdout)
		}

		finalMsg := ""
		if s.FinalMSG != "" {
			finalMsg = ui.EnsureNewline(s.FinalMSG)
			// Clear FinalMSG so s.Stop() doesn't print it.
			s.FinalMSG = ""
		}

		if quiet {
			s.Stop()
		}

		// Print to stdout so tests can capture it.
		if finalMsg != "" {
			fmt.Print(finalMsg)
		}
	}

	return s, cleanup
}

// reportError turns a workflow error into the spinner's final message.
// Errors callers can act on are explained and swallowed; anything else is
// logged and returned.
func reportError(s *spinner.Spinner, action string, err error) error {
	msg := ui.Error.Sprint("✗") + " Failed to " + action + ": " + err.Error()

	switch kerrors.Code(err) {
	case "internal":
		s.FinalMSG = ui.Error.Sprint("✗") + " Failed to " + action
		return Logger.ErrorfAndReturn("failed to %s: %v", action, err)
	case "not_initialized":
		msg += "\n" + ui.Info.Sprint("→") + " Run " + ui.Code.Sprint("chatvault user init --user <id>") + " first"
	case "no_key":
		msg += "\n" + ui.Info.Sprint("→") + " Pass " + ui.Flag.Sprint("--workspace") + " or ask a member to run " +
			ui.Code.Sprint("chatvault chat create")
	case "key_not_found":
		msg += "\n" + ui.Info.Sprint("→") + " Run " + ui.Code.Sprint("chatvault chat create") + " first"
	}

	s.FinalMSG = msg
	Logger.Debugf("%s: %v", action, err)
	return nil
}

// defaultUser returns id, or the OS username when id is empty.
func defaultUser(id, flag string) (string, error) {
	if id != "" {
		return id, nil
	}
	name, err := utils.GetUsername()
	if err != nil {
		return "", Logger.ErrorfAndReturn("failed to determine username, pass %s: %v", flag, err)
	}
	Logger.Debugf("Defaulting %s to %s", flag, name)
	return name, nil
}

// readPassword reads a password from stdin when fromStdin is set and prompts
// on the terminal otherwise.
func readPassword(prompt string, fromStdin, confirm bool) ([]byte, error) {
	if fromStdin {
		Logger.Debugf("Reading password from stdin")
		return utils.ReadPasswordLine(os.Stdin)
	}
	if confirm {
		return utils.ReadNewPassword(prompt)
	}
	return utils.ReadPassword(prompt)
}

// unlockMasterKey derives userID's master key from their password and stored salt.
func unlockMasterKey(ctx context.Context, svc *workflows.Service, userID string, password []byte) (*secrets.Key, error) {
	keys, err := svc.GetUserCryptoKeys(ctx, userID)
	if err != nil {
		return nil, err
	}
	return svc.DeriveMasterKey(password, keys.Salt)
}

// actorPassword reads the actor's password unless --master-key already
// carries their key. It runs before any spinner starts so the prompt stays visible.
func actorPassword(actor string, raw map[string]string, fromStdin bool) ([]byte, error) {
	if _, ok := raw[actor]; ok {
		return nil, nil
	}
	return readPassword(fmt.Sprintf("Password for %s: ", actor), fromStdin, false)
}

// parseMasterKeys decodes --master-key user=base64 pairs.
func parseMasterKeys(raw map[string]string) (map[string]*secrets.Key, error) {
	keys := make(map[string]*secrets.Key, len(raw))
	for user, encoded := range raw {
		key, err := secrets.KeyFromBase64(encoded)
		if err != nil {
			destroyKeys(keys)
			return nil, fmt.Errorf("%w: master key for %s: %w", kerrors.ErrValidation, user, err)
		}
		keys[user] = key
	}
	return keys, nil
}

// collectMasterKeys gathers the members' master keys for a grant operation.
// The actor is unlocked with password unless a key was passed for them.
func collectMasterKeys(ctx context.Context, svc *workflows.Service, actor string, raw map[string]string, password []byte) (map[string]*secrets.Key, error) {
	keys, err := parseMasterKeys(raw)
	if err != nil {
		return nil, err
	}
	if _, ok := keys[actor]; ok {
		return keys, nil
	}

	key, err := unlockMasterKey(ctx, svc, actor, password)
	if err != nil {
		destroyKeys(keys)
		return nil, err
	}
	keys[actor] = key
	return keys, nil
}

func destroyKeys(keys map[string]*secrets.Key) {
	for _, key := range keys {
		key.Destroy()
	}
}

func formatSkipped(skipped []workflows.SkippedUser) string {
	var b strings.Builder
	for _, s := range skipped {
		b.WriteString("\n    - " + ui.Highlight.Sprint(s.UserID) + " " + ui.Muted.Sprint(s.Reason))
	}
	return b.String()
}

// outputJSON writes v to stdout as indented JSON.
func outputJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
