// Package workflows implements the chat key management operations.
//
// A Service coordinates the secrets, storage and audit packages. It is built
// once with New and shared; it holds no per-user state.
//
//	store, _ := storage.Open(ctx, cfg.DatabasePath)
//	svc := workflows.New(store, cfg, log, audit.New(cfg.AuditLogPath))
//
// # Key Schemes
//
// Two schemes coexist. Standardized (v2) chat keys are derived with HKDF
// from the chat and workspace ids and are never stored. Legacy (v1) chats
// have a random content key per version, wrapped for each member under that
// member's PBKDF2 master key.
//
// GetChatKeyForUser always tries the standardized scheme first and falls
// back to the member's newest legacy grant. ResolvedKey.Scheme reports which
// one produced the key. ReadMessages tries both for every message, so chats
// holding messages from both schemes stay readable.
//
// # Membership
//
//   - CreateChatKey: generates the content key once and wraps it per member
//   - RotateChatKey: moves the chat to a fresh key at the next version
//   - RevokeUser: removes a member's grants and rotates
//   - ListAccess: reports each member's newest grant
//
// Members whose master key is not available are skipped and reported,
// never failed. They can be granted later by calling CreateChatKey again.
//
// # Audit
//
// Operations append to the audit log passed to New. AuditLog reads it back
// with filters; FormatDetails renders an entry for the log command.
//
// # Error Handling
//
// Operations return sentinel errors from internal/errors, possibly wrapped.
// Use errors.Is() to check for specific conditions:
//
//	_, err := svc.RevokeUser(ctx, opts)
//	if errors.Is(err, kerrors.ErrSelfRevoke) {
//	    // Explain that users cannot revoke themselves
//	}
package workflows
