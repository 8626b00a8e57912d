package workflows

import (
	"context"
	"time"
)

// AccessStatus describes a member's standing in a chat.
type AccessStatus string

const (
	// StatusActive members hold a grant for the active key.
	StatusActive AccessStatus = "active"

	// StatusStale members can read older messages but were skipped when the
	// key was last rotated and need a new grant.
	StatusStale AccessStatus = "stale"

	// StatusRevoked members have had their access removed.
	StatusRevoked AccessStatus = "revoked"
)

// UserAccess is one member's newest grant.
type UserAccess struct {
	UserID     string
	KeyVersion int
	Status     AccessStatus
	GrantedBy  string
	GrantedAt  time.Time
}

// AccessResult contains the members of a chat.
type AccessResult struct {
	ChatID string

	// KeyVersion is the active key version, 0 if the chat has no key.
	KeyVersion int

	Users []UserAccess
}

// ListAccess lists every user that has ever held a grant for the chat, with
// the status of their newest grant.
func (s *Service) ListAccess(ctx context.Context, chatID string) (*AccessResult, error) {
	if err := requireIDs(chatID); err != nil {
		return nil, err
	}

	result := &AccessResult{ChatID: chatID}

	active, err := s.store.GetActiveChatKey(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		result.KeyVersion = active.KeyVersion
	}

	grants, err := s.store.ListChatGrants(ctx, chatID)
	if err != nil {
		return nil, err
	}

	// Grants arrive newest first per user.
	seen := make(map[string]bool)
	for _, g := range grants {
		if seen[g.UserID] {
			continue
		}
		seen[g.UserID] = true

		status := StatusActive
		switch {
		case !g.HasAccess:
			status = StatusRevoked
		case g.KeyVersion != result.KeyVersion:
			status = StatusStale
		}

		result.Users = append(result.Users, UserAccess{
			UserID:     g.UserID,
			KeyVersion: g.KeyVersion,
			Status:     status,
			GrantedBy:  g.GrantedBy,
			GrantedAt:  g.GrantedAt,
		})
	}

	return result, nil
}
