package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Entry represents a single audit log entry. Entries never carry key material.
type Entry struct {
	Timestamp string `json:"ts"`   // RFC3339 with microseconds.
	User      string `json:"user"` // User performing the action.
	Operation string `json:"op"`   // Operation name.

	// Optional fields depending on operation.
	ChatID       string   `json:"chat_id,omitempty"`       // For chat key operations.
	TargetUser   string   `json:"target_user,omitempty"`   // For revoke.
	KeyVersion   int      `json:"key_version,omitempty"`   // For create/rotate/revoke.
	Granted      []string `json:"granted,omitempty"`       // Users that received a wrapped key.
	Skipped      []string `json:"skipped,omitempty"`       // Users without a master key.
	MessageID    string   `json:"message_id,omitempty"`    // For message send.
	MessageCount int      `json:"message_count,omitempty"` // For message read.
	Scheme       string   `json:"scheme,omitempty"`        // Key scheme used.
}

// Log appends entries to a JSON Lines file. The zero value and a nil *Log
// discard everything.
type Log struct {
	Path string

	mu sync.Mutex
}

// New returns a Log writing to path. An empty path disables auditing.
func New(path string) *Log {
	return &Log{Path: path}
}

// Record appends an entry to the audit log.
// If logging fails, it does not return an error.
// Operations should not fail just because audit logging failed.
func (l *Log) Record(entry Entry) {
	if l == nil || l.Path == "" {
		return
	}

	// Set timestamp if not already set.
	if entry.Timestamp == "" {
		entry.Timestamp = time.Now().UTC().Format("2006-01-02T15:04:05.000000Z")
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.Path), 0700); err != nil {
		return
	}

	f, err := os.OpenFile(l.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return
	}
	defer f.Close()

	_, _ = f.Write(append(data, '\n'))
}

// ReadEntries reads all entries from the audit log.
// Returns an empty slice if the log doesn't exist.
func (l *Log) ReadEntries() ([]Entry, error) {
	if l == nil || l.Path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(l.Path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return ParseEntries(data)
}

// ParseEntries parses JSON Lines data into audit entries.
// Malformed lines are silently skipped.
func ParseEntries(data []byte) ([]Entry, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var entries []Entry
	start := 0

	for i := 0; i <= len(data); i++ {
		if i == len(data) || data[i] == '\n' {
			line := data[start:i]
			start = i + 1

			if len(line) == 0 {
				continue
			}

			var entry Entry
			if err := json.Unmarshal(line, &entry); err != nil {
				// Skip partial writes.
				continue
			}
			entries = append(entries, entry)
		}
	}

	return entries, nil
}
