package workflows

import (
	"fmt"
	"strings"
	"time"

	"github.com/PolarWolf314/chatvault/internal/audit"
	kerrors "github.com/PolarWolf314/chatvault/internal/errors"
)

// LogOptions configures AuditLog.
type LogOptions struct {
	// Limit is the maximum number of entries to return. 0 means no limit.
	Limit int

	// Reverse orders entries from most recent to oldest when true.
	Reverse bool

	User   string
	ChatID string

	// Operations filters entries by operation types (comma-separated).
	Operations string

	// Since and Until bound entries by date (YYYY-MM-DD), inclusive.
	Since string
	Until string
}

// LogResult contains the filtered audit entries.
type LogResult struct {
	Entries []audit.Entry

	// TotalEntriesBeforeFilter is the count of entries before filtering.
	TotalEntriesBeforeFilter int
}

const auditTimeLayout = "2006-01-02T15:04:05.000000Z"

// AuditLog reads and filters the audit trail. A disabled or missing log
// yields no entries.
//
// Returns ErrInvalidDateFormat if Since or Until is malformed.
func (s *Service) AuditLog(opts LogOptions) (*LogResult, error) {
	var since, until time.Time
	if opts.Since != "" {
		t, err := time.Parse(time.DateOnly, opts.Since)
		if err != nil {
			return nil, fmt.Errorf("%w: %w: --since must be YYYY-MM-DD", kerrors.ErrValidation, kerrors.ErrInvalidDateFormat)
		}
		since = t
	}
	if opts.Until != "" {
		t, err := time.Parse(time.DateOnly, opts.Until)
		if err != nil {
			return nil, fmt.Errorf("%w: %w: --until must be YYYY-MM-DD", kerrors.ErrValidation, kerrors.ErrInvalidDateFormat)
		}
		// Include the entire day.
		until = t.Add(24*time.Hour - time.Nanosecond)
	}

	entries, err := s.audit.ReadEntries()
	if err != nil {
		return nil, fmt.Errorf("reading audit log: %w", err)
	}

	result := &LogResult{TotalEntriesBeforeFilter: len(entries)}

	var ops map[string]bool
	if opts.Operations != "" {
		ops = make(map[string]bool)
		for _, op := range strings.Split(opts.Operations, ",") {
			ops[strings.ToLower(strings.TrimSpace(op))] = true
		}
	}

	filtered := make([]audit.Entry, 0, len(entries))
	for _, e := range entries {
		if opts.User != "" && !strings.EqualFold(e.User, opts.User) && !strings.EqualFold(e.TargetUser, opts.User) {
			continue
		}
		if opts.ChatID != "" && e.ChatID != opts.ChatID {
			continue
		}
		if ops != nil && !ops[strings.ToLower(e.Operation)] {
			continue
		}
		if !since.IsZero() || !until.IsZero() {
			t, ok := parseAuditTime(e.Timestamp)
			if !ok || (!since.IsZero() && t.Before(since)) || (!until.IsZero() && t.After(until)) {
				continue
			}
		}
		filtered = append(filtered, e)
	}

	if opts.Reverse {
		for i, j := 0, len(filtered)-1; i < j; i, j = i+1, j-1 {
			filtered[i], filtered[j] = filtered[j], filtered[i]
		}
	}

	// The limit keeps the most recent entries in either order.
	if opts.Limit > 0 && len(filtered) > opts.Limit {
		if opts.Reverse {
			filtered = filtered[:opts.Limit]
		} else {
			filtered = filtered[len(filtered)-opts.Limit:]
		}
	}

	result.Entries = filtered
	return result, nil
}

func parseAuditTime(ts string) (time.Time, bool) {
	t, err := time.Parse(auditTimeLayout, ts)
	if err != nil {
		t, err = time.Parse(time.RFC3339, ts)
	}
	return t, err == nil
}

// FormatDateTime formats an audit timestamp as YYYY-MM-DD HH:MM:SS.
func FormatDateTime(ts string) string {
	t, ok := parseAuditTime(ts)
	if !ok {
		if len(ts) >= 19 {
			return ts[:19]
		}
		return ts
	}
	return t.Format(time.DateTime)
}

// FormatDetails summarises an audit entry's operation-specific fields.
func FormatDetails(e audit.Entry) string {
	switch e.Operation {
	case "create":
		details := fmt.Sprintf("%s v%d, granted %d", e.ChatID, e.KeyVersion, len(e.Granted))
		if len(e.Skipped) > 0 {
			details += fmt.Sprintf(", skipped %s", strings.Join(e.Skipped, ","))
		}
		return details
	case "rotate":
		details := fmt.Sprintf("%s → v%d", e.ChatID, e.KeyVersion)
		if len(e.Skipped) > 0 {
			details += fmt.Sprintf(", skipped %s", strings.Join(e.Skipped, ","))
		}
		return details
	case "revoke":
		return fmt.Sprintf("%s from %s → v%d", e.TargetUser, e.ChatID, e.KeyVersion)
	case "send":
		return fmt.Sprintf("%s %s (%s v%d)", e.ChatID, e.MessageID, e.Scheme, e.KeyVersion)
	case "read":
		return fmt.Sprintf("%s, %d messages", e.ChatID, e.MessageCount)
	default:
		return ""
	}
}
