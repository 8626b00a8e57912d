// Package secrets provides the cryptographic operations of chatvault.
//
// It holds the key derivation primitives, the deterministic v2 scope keys,
// legacy v1 key wrapping and the message cipher. Nothing here touches storage.
//
// # Key Hierarchy
//
//  1. A password is stretched into a master key with PBKDF2-HMAC-SHA256
//     (at least 100,000 iterations). Only the salt is ever persisted.
//  2. Legacy (v1) chats have a random 32-byte content key. A copy is wrapped
//     for each member under that member's master key with AES-256-GCM and
//     the associated data "workspace-key".
//  3. Standardized (v2) chats have no stored key. The chat key is derived
//     with HKDF-SHA256 from the chat id and workspace id, so any party that
//     knows both can recompute it. Confidentiality of v2 chats therefore
//     depends on the host application deciding who may derive keys for a
//     workspace.
//  4. Messages are sealed with AES-256-GCM under the chat key using a fresh
//     16-byte IV and no associated data.
//
// # Formats
//
//   - Wrapped key: base64(IV(16) ‖ authTag(16) ‖ ciphertext)
//   - Message content: base64(authTag(16) ‖ ciphertext), IV stored separately
//
// # Secret Buffers
//
// Keys are returned as *Key. Destroy zeroes the buffer, and on Linux and
// macOS the buffer is mlocked while alive. Formatting a Key with %v or %s
// prints a redacted placeholder.
//
//	mk, err := secrets.DeriveMasterKey(password, salt, secrets.MinPBKDF2Iterations)
//	if err != nil {
//	    return err
//	}
//	defer mk.Destroy()
package secrets
