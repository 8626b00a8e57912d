package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/PolarWolf314/chatvault/internal/audit"
	"github.com/PolarWolf314/chatvault/internal/ui"
	"github.com/PolarWolf314/chatvault/internal/workflows"
	"github.com/spf13/cobra"
)

var (
	logLimit     int
	logReverse   bool
	logUser      string
	logChat      string
	logOperation string
	logSince     string
	logUntil     string
	logJSON      bool
)

func init() {
	logCmd.Flags().IntVarP(&logLimit, "number", "n", 0, "limit number of entries shown")
	logCmd.Flags().BoolVar(&logReverse, "reverse", false, "show most recent entries first")
	logCmd.Flags().StringVar(&logUser, "user", "", "filter by acting or target user")
	logCmd.Flags().StringVar(&logChat, "chat", "", "filter by chat id")
	logCmd.Flags().StringVar(&logOperation, "operation", "", "filter by operation type (comma-separated)")
	logCmd.Flags().StringVar(&logSince, "since", "", "show entries after date (YYYY-MM-DD)")
	logCmd.Flags().StringVar(&logUntil, "until", "", "show entries before date (YYYY-MM-DD)")
	logCmd.Flags().BoolVar(&logJSON, "json", false, "output as JSON array")
}

// resetLogCommandState resets the log command's global state for testing.
func resetLogCommandState() {
	logLimit = 0
	logReverse = false
	logUser = ""
	logChat = ""
	logOperation = ""
	logSince = ""
	logUntil = ""
	logJSON = false
}

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "View the audit log",
	Long: `Displays the audit log of key operations.

Shows who created, rotated or revoked chat keys and who sent or read
messages. Key material is never logged.

Examples:
  chatvault log                        # View full log
  chatvault log -n 10                  # Last 10 entries
  chatvault log --chat general         # Filter by chat
  chatvault log --operation rotate,revoke
  chatvault log --since 2026-01-01 --json`,
	RunE: runLog,
}

func runLog(cmd *cobra.Command, args []string) error {
	Logger.Infof("Starting log command")

	cfg, err := loadConfig()
	if err != nil {
		return Logger.ErrorfAndReturn("%v", err)
	}
	if cfg.AuditLogPath == "" {
		fmt.Println(ui.Info.Sprint("ℹ") + " Audit logging is disabled in " + ui.Path.Sprint("audit_log_path"))
		return nil
	}

	svc := workflows.New(nil, cfg, Logger, audit.New(cfg.AuditLogPath))
	result, err := svc.AuditLog(workflows.LogOptions{
		Limit:      logLimit,
		Reverse:    logReverse,
		User:       logUser,
		ChatID:     logChat,
		Operations: logOperation,
		Since:      logSince,
		Until:      logUntil,
	})
	if err != nil {
		fmt.Println(ui.Error.Sprint("✗") + " " + err.Error())
		return nil
	}

	Logger.Debugf("Parsed %d entries from audit log", result.TotalEntriesBeforeFilter)
	Logger.Debugf("After filtering: %d entries", len(result.Entries))

	if len(result.Entries) == 0 {
		if result.TotalEntriesBeforeFilter == 0 {
			fmt.Println("No audit log entries found.")
		} else {
			fmt.Println("No audit log entries found matching the filters.")
		}
		return nil
	}

	if logJSON {
		data, err := json.MarshalIndent(result.Entries, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal entries to JSON: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	for _, e := range result.Entries {
		fmt.Printf("%-19s  %-20s  %-9s  %s\n", workflows.FormatDateTime(e.Timestamp), e.User, e.Operation, workflows.FormatDetails(e))
	}
	return nil
}
