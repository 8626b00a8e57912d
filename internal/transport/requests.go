package transport

import (
	"time"

	"github.com/PolarWolf314/chatvault/internal/secrets"
)

// Operation names. The request subject is "<prefix>.<operation>".
const (
	OpInitializeUserCrypto = "initializeUserCrypto"
	OpDeriveMasterKey      = "deriveMasterKey"
	OpGetUserCryptoKeys    = "getUserCryptoKeys"
	OpCreateChatKey        = "createChatKey"
	OpGetChatKeyForUser    = "getChatKeyForUser"
	OpEncryptMessage       = "encryptMessage"
	OpDecryptMessage       = "decryptMessage"
	OpDeriveChatKey        = "deriveChatKey"
	OpDeriveWorkspaceKey   = "deriveWorkspaceKey"
	OpRevokeUser           = "revokeUser"
	OpRotateChatKey        = "rotateChatKey"
	OpListAccess           = "listAccess"
	OpPostMessage          = "postMessage"
	OpReadMessages         = "readMessages"
)

// Keys, salts and master keys travel as standard base64.

type InitializeUserCryptoRequest struct {
	UserID   string `json:"userId"`
	Password string `json:"password"`
}

type UserCryptoResponse struct {
	UserID    string    `json:"userId"`
	Salt      string    `json:"salt"`
	CreatedAt time.Time `json:"createdAt"`
	Created   bool      `json:"created,omitempty"`
	MasterKey string    `json:"masterKey,omitempty"`
}

type DeriveMasterKeyRequest struct {
	Password string `json:"password"`
	Salt     string `json:"salt"`
}

type GetUserCryptoKeysRequest struct {
	UserID string `json:"userId"`
}

type KeyResponse struct {
	Key        string `json:"key"`
	Scheme     string `json:"scheme,omitempty"`
	KeyVersion int    `json:"keyVersion,omitempty"`
}

type CreateChatKeyRequest struct {
	ChatID     string            `json:"chatId"`
	CreatedBy  string            `json:"createdBy"`
	UserIDs    []string          `json:"userIds"`
	MasterKeys map[string]string `json:"masterKeys"`
}

type SkippedUser struct {
	UserID string `json:"userId"`
	Reason string `json:"reason"`
}

type CreateChatKeyResponse struct {
	KeyVersion     int           `json:"keyVersion"`
	Created        bool          `json:"created"`
	Granted        []string      `json:"granted"`
	AlreadyGranted []string      `json:"alreadyGranted"`
	Skipped        []SkippedUser `json:"skipped"`
}

type GetChatKeyForUserRequest struct {
	UserID      string `json:"userId"`
	ChatID      string `json:"chatId"`
	WorkspaceID string `json:"workspaceId,omitempty"`
	MasterKey   string `json:"masterKey,omitempty"`
}

type EncryptMessageRequest struct {
	Plaintext  string `json:"plaintext"`
	Key        string `json:"key"`
	KeyVersion int    `json:"keyVersion,omitempty"`
}

type DecryptMessageRequest struct {
	Message secrets.EncryptedMessage `json:"message"`
	Key     string                   `json:"key"`
}

type DecryptMessageResponse struct {
	Plaintext string `json:"plaintext"`
}

type DeriveChatKeyRequest struct {
	ChatID      string `json:"chatId"`
	WorkspaceID string `json:"workspaceId"`
}

type DeriveWorkspaceKeyRequest struct {
	WorkspaceID string `json:"workspaceId"`
	Context     string `json:"context,omitempty"`
}

type RevokeUserRequest struct {
	ChatID     string            `json:"chatId"`
	UserID     string            `json:"userId"`
	RevokedBy  string            `json:"revokedBy"`
	MasterKeys map[string]string `json:"masterKeys"`
}

type RotateChatKeyRequest struct {
	ChatID     string            `json:"chatId"`
	RotatedBy  string            `json:"rotatedBy"`
	MasterKeys map[string]string `json:"masterKeys"`
}

type RotateResponse struct {
	PreviousVersion int           `json:"previousVersion"`
	KeyVersion      int           `json:"keyVersion"`
	ReWrapped       []string      `json:"reWrapped"`
	Skipped         []SkippedUser `json:"skipped"`
}

type RevokeUserResponse struct {
	GrantsRevoked int64          `json:"grantsRevoked"`
	Rotation      RotateResponse `json:"rotation"`
}

type ListAccessRequest struct {
	ChatID string `json:"chatId"`
}

type UserAccess struct {
	UserID     string    `json:"userId"`
	KeyVersion int       `json:"keyVersion"`
	Status     string    `json:"status"`
	GrantedBy  string    `json:"grantedBy"`
	GrantedAt  time.Time `json:"grantedAt"`
}

type ListAccessResponse struct {
	ChatID     string       `json:"chatId"`
	KeyVersion int          `json:"keyVersion"`
	Users      []UserAccess `json:"users"`
}

type PostMessageRequest struct {
	ChatID      string `json:"chatId"`
	SenderID    string `json:"senderId"`
	WorkspaceID string `json:"workspaceId,omitempty"`
	Text        string `json:"text"`
	MasterKey   string `json:"masterKey,omitempty"`
}

type PostMessageResponse struct {
	MessageID  string    `json:"messageId"`
	Scheme     string    `json:"scheme"`
	KeyVersion int       `json:"keyVersion"`
	CreatedAt  time.Time `json:"createdAt"`
}

type ReadMessagesRequest struct {
	ChatID      string `json:"chatId"`
	UserID      string `json:"userId"`
	WorkspaceID string `json:"workspaceId,omitempty"`
	MasterKey   string `json:"masterKey,omitempty"`
	Limit       int    `json:"limit,omitempty"`
}

type MessageResponse struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	Text       string    `json:"text,omitempty"`
	KeyVersion int       `json:"keyVersion"`
	Scheme     string    `json:"scheme,omitempty"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
}

type ReadMessagesResponse struct {
	Messages      []MessageResponse `json:"messages"`
	Undecryptable int               `json:"undecryptable"`
}
