package workflows

import (
	"context"
	"fmt"
	"time"

	"github.com/PolarWolf314/chatvault/internal/secrets"
	"github.com/PolarWolf314/chatvault/internal/storage"
)

// PostMessageOptions configures PostMessage.
type PostMessageOptions struct {
	ChatID      string
	SenderID    string
	WorkspaceID string
	Text        string

	// MasterKey unwraps the sender's legacy grant when WorkspaceID is empty.
	MasterKey *secrets.Key
}

// PostMessageResult contains the stored message id and how it was encrypted.
type PostMessageResult struct {
	MessageID  string
	Scheme     Scheme
	KeyVersion int
	CreatedAt  time.Time
}

// PostMessage encrypts text with the sender's chat key and stores it.
func (s *Service) PostMessage(ctx context.Context, opts PostMessageOptions) (*PostMessageResult, error) {
	resolved, err := s.GetChatKeyForUser(ctx, ResolveOptions{
		UserID:      opts.SenderID,
		ChatID:      opts.ChatID,
		WorkspaceID: opts.WorkspaceID,
		MasterKey:   opts.MasterKey,
	})
	if err != nil {
		return nil, err
	}
	defer resolved.Key.Destroy()

	encrypted, err := s.cipher.Encrypt(opts.Text, resolved.Key)
	if err != nil {
		return nil, err
	}
	encrypted.KeyVersion = resolved.KeyVersion

	msg := &storage.Message{
		ChatID:               opts.ChatID,
		SenderID:             opts.SenderID,
		EncryptedText:        encrypted.EncryptedContent,
		EncryptionIV:         encrypted.IV,
		EncryptionKeyVersion: encrypted.KeyVersion,
		EncryptionAlgorithm:  encrypted.Algorithm,
		IsEncrypted:          true,
	}
	if err := s.store.InsertMessage(ctx, msg); err != nil {
		return nil, err
	}

	entry := auditEntry(opts.SenderID, "send")
	entry.ChatID = opts.ChatID
	entry.MessageID = msg.ID
	entry.KeyVersion = resolved.KeyVersion
	entry.Scheme = resolved.Scheme.String()
	s.audit.Record(entry)

	return &PostMessageResult{
		MessageID:  msg.ID,
		Scheme:     resolved.Scheme,
		KeyVersion: resolved.KeyVersion,
		CreatedAt:  msg.CreatedAt,
	}, nil
}

// ReadMessagesOptions configures ReadMessages.
type ReadMessagesOptions struct {
	ChatID      string
	UserID      string
	WorkspaceID string
	MasterKey   *secrets.Key

	// Limit caps the number of messages; 0 reads all.
	Limit int
}

// MessageStatus reports whether a message could be decrypted.
type MessageStatus string

const (
	MessageOK            MessageStatus = "ok"
	MessageCannotDecrypt MessageStatus = "cannot-decrypt"
)

// DecryptedMessage is a stored message as seen by one reader. Text is empty
// unless Status is MessageOK.
type DecryptedMessage struct {
	ID         string
	SenderID   string
	Text       string
	KeyVersion int
	Scheme     Scheme
	Status     MessageStatus
	CreatedAt  time.Time
}

// ReadMessagesResult contains the chat history, oldest first.
type ReadMessagesResult struct {
	Messages      []DecryptedMessage
	Undecryptable int
}

// ReadMessages lists and decrypts a chat's messages for one reader.
//
// Each message is tried with the standardized key first and then with the
// reader's legacy grant for the message's key version. A message no key
// opens is returned with MessageCannotDecrypt; it never fails the listing.
func (s *Service) ReadMessages(ctx context.Context, opts ReadMessagesOptions) (*ReadMessagesResult, error) {
	if err := requireIDs(opts.ChatID, opts.UserID); err != nil {
		return nil, err
	}

	rows, err := s.store.ListMessages(ctx, opts.ChatID, opts.Limit)
	if err != nil {
		return nil, err
	}

	keys := &candidateKeys{
		svc:    s,
		opts:   opts,
		legacy: make(map[int]*secrets.Key),
	}
	defer keys.destroy()

	result := &ReadMessagesResult{Messages: make([]DecryptedMessage, 0, len(rows))}
	for i := range rows {
		msg := s.decryptRow(ctx, &rows[i], keys)
		if msg.Status == MessageCannotDecrypt {
			result.Undecryptable++
		}
		result.Messages = append(result.Messages, msg)
	}

	if result.Undecryptable > 0 {
		s.log.Warnf("%d of %d messages in %s could not be decrypted for %s", result.Undecryptable, len(rows), opts.ChatID, opts.UserID)
	}

	entry := auditEntry(opts.UserID, "read")
	entry.ChatID = opts.ChatID
	entry.MessageCount = len(rows)
	s.audit.Record(entry)

	return result, nil
}

func (s *Service) decryptRow(ctx context.Context, row *storage.Message, keys *candidateKeys) DecryptedMessage {
	out := DecryptedMessage{
		ID:         row.ID,
		SenderID:   row.SenderID,
		KeyVersion: row.EncryptionKeyVersion,
		Status:     MessageCannotDecrypt,
		CreatedAt:  row.CreatedAt,
	}

	if !row.IsEncrypted {
		out.Text = row.EncryptedText
		out.Status = MessageOK
		return out
	}

	encrypted := &secrets.EncryptedMessage{
		EncryptedContent: row.EncryptedText,
		IV:               row.EncryptionIV,
		KeyVersion:       row.EncryptionKeyVersion,
		Algorithm:        row.EncryptionAlgorithm,
	}

	if key := keys.standardized(); key != nil {
		if text, err := s.cipher.Decrypt(encrypted, key); err == nil {
			out.Text, out.Scheme, out.Status = text, SchemeStandardized, MessageOK
			return out
		}
	}

	if key := keys.legacyVersion(ctx, row.EncryptionKeyVersion); key != nil {
		text, err := s.cipher.Decrypt(encrypted, key)
		if err == nil {
			out.Text, out.Scheme, out.Status = text, SchemeLegacy, MessageOK
			return out
		}
		s.log.Debugf("Message %s: %v", row.ID, err)
	}

	return out
}

// candidateKeys lazily resolves and caches the reader's keys for one listing.
type candidateKeys struct {
	svc  *Service
	opts ReadMessagesOptions

	v2      *secrets.Key
	v2Tried bool

	// legacy maps key version to the unwrapped key, nil if unavailable.
	legacy map[int]*secrets.Key
}

func (c *candidateKeys) standardized() *secrets.Key {
	if !c.v2Tried {
		c.v2Tried = true
		if resolved, ok := c.svc.resolveStandardized(ResolveOptions{
			UserID:      c.opts.UserID,
			ChatID:      c.opts.ChatID,
			WorkspaceID: c.opts.WorkspaceID,
		}); ok {
			c.v2 = resolved.Key
		}
	}
	return c.v2
}

func (c *candidateKeys) legacyVersion(ctx context.Context, version int) *secrets.Key {
	if key, ok := c.legacy[version]; ok {
		return key
	}

	key, err := c.svc.legacyKeyForVersion(ctx, c.opts.UserID, c.opts.ChatID, version, c.opts.MasterKey)
	if err != nil {
		c.svc.log.Debugf("No legacy key v%d for %s: %v", version, c.opts.UserID, err)
		key = nil
	}
	c.legacy[version] = key
	return key
}

func (c *candidateKeys) destroy() {
	c.v2.Destroy()
	for _, key := range c.legacy {
		key.Destroy()
	}
}

// String implements fmt.Stringer for log output.
func (m DecryptedMessage) String() string {
	if m.Status != MessageOK {
		return fmt.Sprintf("[%s] %s: <%s>", m.CreatedAt.Format(time.RFC3339), m.SenderID, m.Status)
	}
	return fmt.Sprintf("[%s] %s: %s", m.CreatedAt.Format(time.RFC3339), m.SenderID, m.Text)
}
