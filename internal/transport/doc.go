// Package transport exposes the key management operations over NATS
// request/reply.
//
// A request for operation op is published to "<subject_prefix>.<op>" with a
// JSON body. Every reply is a JSON envelope:
//
//	{"success": true, "data": {...}}
//	{"success": false, "error": "user not found", "code": "user_not_found"}
//
// Keys, salts and master keys are standard base64 strings. The error code
// comes from kerrors.Code; unexpected failures are reported as "internal"
// without detail.
//
// Servers join a queue group, so running several instances against the same
// database spreads requests between them.
package transport
