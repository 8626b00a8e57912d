// Package audit provides audit trail logging for key management operations.
//
// Every operation that changes who can read a chat (key creation, rotation,
// revocation) is recorded, as are message sends and reads. The trail answers
// who granted or removed access and when. It never contains keys, passwords
// or plaintext.
//
// # Log Format
//
// The audit log is stored as JSON Lines (one JSON object per line) at the
// path configured by audit_log_path. Each entry contains:
//   - Timestamp (RFC3339 with microseconds, UTC)
//   - Acting user
//   - Operation name
//   - Operation-specific details (chat, key version, granted users, etc.)
//
// # Usage
//
//	log := audit.New(cfg.AuditLogPath)
//	log.Record(audit.Entry{User: "alice", Operation: "rotate", ChatID: chatID, KeyVersion: 2})
//
// # Failure Handling
//
// Audit logging is best-effort. If logging fails (permissions, disk full,
// etc.), the operation continues without error.
package audit
