package storage

import "time"

// UserCryptoKey is a user's master key salt.
type UserCryptoKey struct {
	UserID        string
	MasterKeySalt string // base64
	CreatedAt     time.Time
}

// ChatKey is a legacy content key for one (chat, version).
type ChatKey struct {
	ID         string
	ChatID     string
	KeyData    string // base64
	KeyVersion int
	CreatedBy  string
	IsActive   bool
	CreatedAt  time.Time
}

// UserChatKey is a content key wrapped under one user's master key.
type UserChatKey struct {
	ID               string
	UserID           string
	ChatID           string
	EncryptedChatKey string // base64(IV ‖ tag ‖ ciphertext)
	KeyVersion       int
	HasAccess        bool
	GrantedBy        string
	GrantedAt        time.Time
}

// Message is a row of the messages table.
type Message struct {
	ID                   string
	ChatID               string
	SenderID             string
	EncryptedText        string
	EncryptionIV         string
	EncryptionKeyVersion int
	EncryptionAlgorithm  string
	IsEncrypted          bool
	CreatedAt            time.Time
}
