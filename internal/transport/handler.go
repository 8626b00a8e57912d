package transport

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	kerrors "github.com/PolarWolf314/chatvault/internal/errors"
	logger "github.com/PolarWolf314/chatvault/internal/logging"
	"github.com/PolarWolf314/chatvault/internal/secrets"
	"github.com/PolarWolf314/chatvault/internal/workflows"
)

type opFunc func(ctx context.Context, payload []byte) (any, error)

// Handler decodes RPC requests, runs them against a Service and encodes the
// reply. It does not know about NATS; Server feeds it.
type Handler struct {
	svc *workflows.Service
	log logger.Logger
	ops map[string]opFunc
}

// NewHandler returns a Handler serving every operation of svc.
func NewHandler(svc *workflows.Service, log logger.Logger) *Handler {
	h := &Handler{svc: svc, log: log}
	h.ops = map[string]opFunc{
		OpInitializeUserCrypto: h.initializeUserCrypto,
		OpDeriveMasterKey:      h.deriveMasterKey,
		OpGetUserCryptoKeys:    h.getUserCryptoKeys,
		OpCreateChatKey:        h.createChatKey,
		OpGetChatKeyForUser:    h.getChatKeyForUser,
		OpEncryptMessage:       h.encryptMessage,
		OpDecryptMessage:       h.decryptMessage,
		OpDeriveChatKey:        h.deriveChatKey,
		OpDeriveWorkspaceKey:   h.deriveWorkspaceKey,
		OpRevokeUser:           h.revokeUser,
		OpRotateChatKey:        h.rotateChatKey,
		OpListAccess:           h.listAccess,
		OpPostMessage:          h.postMessage,
		OpReadMessages:         h.readMessages,
	}
	return h
}

// Operations lists the operation names Handle accepts.
func (h *Handler) Operations() []string {
	names := make([]string, 0, len(h.ops))
	for name := range h.ops {
		names = append(names, name)
	}
	return names
}

// Handle runs one operation and always returns an envelope.
func (h *Handler) Handle(ctx context.Context, op string, payload []byte) Response {
	fn, ok := h.ops[op]
	if !ok {
		return Response{Success: false, Error: fmt.Sprintf("unknown operation %q", op), Code: "unknown_operation"}
	}

	data, err := fn(ctx, payload)
	if err != nil {
		if kerrors.Code(err) == "internal" {
			h.log.Errorf("%s: %v", op, err)
		} else {
			h.log.Debugf("%s: %v", op, err)
		}
		return errorResponse(err)
	}
	return successResponse(data)
}

func decode(payload []byte, v any) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %w: %v", kerrors.ErrValidation, kerrors.ErrMalformedEncoding, err)
	}
	return nil
}

// decodeKey returns nil for an empty string.
func decodeKey(s string) (*secrets.Key, error) {
	if s == "" {
		return nil, nil
	}
	key, err := secrets.KeyFromBase64(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", kerrors.ErrValidation, kerrors.ErrMalformedEncoding)
	}
	return key, nil
}

func decodeKeys(in map[string]string) (map[string]*secrets.Key, error) {
	out := make(map[string]*secrets.Key, len(in))
	for user, s := range in {
		key, err := decodeKey(s)
		if err != nil {
			destroyKeys(out)
			return nil, fmt.Errorf("master key of %s: %w", user, err)
		}
		if key != nil {
			out[user] = key
		}
	}
	return out, nil
}

func destroyKeys(keys map[string]*secrets.Key) {
	for _, k := range keys {
		k.Destroy()
	}
}

func toSkipped(in []workflows.SkippedUser) []SkippedUser {
	out := make([]SkippedUser, 0, len(in))
	for _, u := range in {
		out = append(out, SkippedUser{UserID: u.UserID, Reason: u.Reason})
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func toRotateResponse(r *workflows.RotateResult) RotateResponse {
	return RotateResponse{
		PreviousVersion: r.PreviousVersion,
		KeyVersion:      r.KeyVersion,
		ReWrapped:       nonNil(r.ReWrapped),
		Skipped:         toSkipped(r.Skipped),
	}
}

func (h *Handler) initializeUserCrypto(ctx context.Context, payload []byte) (any, error) {
	var req InitializeUserCryptoRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}

	keys, err := h.svc.InitializeUserCrypto(ctx, req.UserID, []byte(req.Password))
	if err != nil {
		return nil, err
	}
	defer keys.MasterKey.Destroy()

	return UserCryptoResponse{
		UserID:    keys.UserID,
		Salt:      base64.StdEncoding.EncodeToString(keys.Salt),
		CreatedAt: keys.CreatedAt,
		Created:   keys.Created,
		MasterKey: keys.MasterKey.Base64(),
	}, nil
}

func (h *Handler) deriveMasterKey(_ context.Context, payload []byte) (any, error) {
	var req DeriveMasterKeyRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	if req.Password == "" {
		return nil, fmt.Errorf("%w: %w", kerrors.ErrValidation, kerrors.ErrMissingPassword)
	}

	salt, err := base64.StdEncoding.DecodeString(req.Salt)
	if err != nil {
		return nil, fmt.Errorf("salt: %w: %w", kerrors.ErrValidation, kerrors.ErrMalformedEncoding)
	}

	key, err := h.svc.DeriveMasterKey([]byte(req.Password), salt)
	if err != nil {
		return nil, err
	}
	defer key.Destroy()

	return KeyResponse{Key: key.Base64()}, nil
}

func (h *Handler) getUserCryptoKeys(ctx context.Context, payload []byte) (any, error) {
	var req GetUserCryptoKeysRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}

	keys, err := h.svc.GetUserCryptoKeys(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	return UserCryptoResponse{
		UserID:    keys.UserID,
		Salt:      base64.StdEncoding.EncodeToString(keys.Salt),
		CreatedAt: keys.CreatedAt,
	}, nil
}

func (h *Handler) createChatKey(ctx context.Context, payload []byte) (any, error) {
	var req CreateChatKeyRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}

	masterKeys, err := decodeKeys(req.MasterKeys)
	if err != nil {
		return nil, err
	}
	defer destroyKeys(masterKeys)

	result, err := h.svc.CreateChatKey(ctx, workflows.CreateChatKeyOptions{
		ChatID:     req.ChatID,
		CreatedBy:  req.CreatedBy,
		UserIDs:    req.UserIDs,
		MasterKeys: masterKeys,
	})
	if err != nil {
		return nil, err
	}

	return CreateChatKeyResponse{
		KeyVersion:     result.KeyVersion,
		Created:        result.Created,
		Granted:        nonNil(result.Granted),
		AlreadyGranted: nonNil(result.AlreadyGranted),
		Skipped:        toSkipped(result.Skipped),
	}, nil
}

func (h *Handler) getChatKeyForUser(ctx context.Context, payload []byte) (any, error) {
	var req GetChatKeyForUserRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}

	masterKey, err := decodeKey(req.MasterKey)
	if err != nil {
		return nil, err
	}
	defer masterKey.Destroy()

	resolved, err := h.svc.GetChatKeyForUser(ctx, workflows.ResolveOptions{
		UserID:      req.UserID,
		ChatID:      req.ChatID,
		WorkspaceID: req.WorkspaceID,
		MasterKey:   masterKey,
	})
	if err != nil {
		return nil, err
	}
	defer resolved.Key.Destroy()

	return KeyResponse{
		Key:        resolved.Key.Base64(),
		Scheme:     resolved.Scheme.String(),
		KeyVersion: resolved.KeyVersion,
	}, nil
}

func (h *Handler) encryptMessage(_ context.Context, payload []byte) (any, error) {
	var req EncryptMessageRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}

	key, err := decodeKey(req.Key)
	if err != nil {
		return nil, err
	}
	defer key.Destroy()

	msg, err := h.svc.EncryptMessage(req.Plaintext, key)
	if err != nil {
		return nil, err
	}
	if req.KeyVersion > 0 {
		msg.KeyVersion = req.KeyVersion
	}
	return msg, nil
}

func (h *Handler) decryptMessage(_ context.Context, payload []byte) (any, error) {
	var req DecryptMessageRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}

	key, err := decodeKey(req.Key)
	if err != nil {
		return nil, err
	}
	defer key.Destroy()

	plaintext, err := h.svc.DecryptMessage(&req.Message, key)
	if err != nil {
		return nil, err
	}
	return DecryptMessageResponse{Plaintext: plaintext}, nil
}

func (h *Handler) deriveChatKey(_ context.Context, payload []byte) (any, error) {
	var req DeriveChatKeyRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}

	key, err := h.svc.DeriveChatKey(req.ChatID, req.WorkspaceID)
	if err != nil {
		return nil, err
	}
	defer key.Destroy()

	return KeyResponse{Key: key.Base64(), Scheme: workflows.SchemeStandardized.String()}, nil
}

func (h *Handler) deriveWorkspaceKey(_ context.Context, payload []byte) (any, error) {
	var req DeriveWorkspaceKeyRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}

	key, err := h.svc.DeriveWorkspaceKey(req.WorkspaceID, req.Context)
	if err != nil {
		return nil, err
	}
	defer key.Destroy()

	return KeyResponse{Key: key.Base64(), Scheme: workflows.SchemeStandardized.String()}, nil
}

func (h *Handler) revokeUser(ctx context.Context, payload []byte) (any, error) {
	var req RevokeUserRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}

	masterKeys, err := decodeKeys(req.MasterKeys)
	if err != nil {
		return nil, err
	}
	defer destroyKeys(masterKeys)

	result, err := h.svc.RevokeUser(ctx, workflows.RevokeOptions{
		ChatID:     req.ChatID,
		UserID:     req.UserID,
		RevokedBy:  req.RevokedBy,
		MasterKeys: masterKeys,
	})
	if err != nil {
		return nil, err
	}

	return RevokeUserResponse{
		GrantsRevoked: result.GrantsRevoked,
		Rotation:      toRotateResponse(result.Rotation),
	}, nil
}

func (h *Handler) rotateChatKey(ctx context.Context, payload []byte) (any, error) {
	var req RotateChatKeyRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}

	masterKeys, err := decodeKeys(req.MasterKeys)
	if err != nil {
		return nil, err
	}
	defer destroyKeys(masterKeys)

	result, err := h.svc.RotateChatKey(ctx, workflows.RotateOptions{
		ChatID:     req.ChatID,
		RotatedBy:  req.RotatedBy,
		MasterKeys: masterKeys,
	})
	if err != nil {
		return nil, err
	}
	return toRotateResponse(result), nil
}

func (h *Handler) listAccess(ctx context.Context, payload []byte) (any, error) {
	var req ListAccessRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}

	result, err := h.svc.ListAccess(ctx, req.ChatID)
	if err != nil {
		return nil, err
	}

	resp := ListAccessResponse{ChatID: result.ChatID, KeyVersion: result.KeyVersion, Users: []UserAccess{}}
	for _, u := range result.Users {
		resp.Users = append(resp.Users, UserAccess{
			UserID:     u.UserID,
			KeyVersion: u.KeyVersion,
			Status:     string(u.Status),
			GrantedBy:  u.GrantedBy,
			GrantedAt:  u.GrantedAt,
		})
	}
	return resp, nil
}

func (h *Handler) postMessage(ctx context.Context, payload []byte) (any, error) {
	var req PostMessageRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}

	masterKey, err := decodeKey(req.MasterKey)
	if err != nil {
		return nil, err
	}
	defer masterKey.Destroy()

	result, err := h.svc.PostMessage(ctx, workflows.PostMessageOptions{
		ChatID:      req.ChatID,
		SenderID:    req.SenderID,
		WorkspaceID: req.WorkspaceID,
		Text:        req.Text,
		MasterKey:   masterKey,
	})
	if err != nil {
		return nil, err
	}

	return PostMessageResponse{
		MessageID:  result.MessageID,
		Scheme:     result.Scheme.String(),
		KeyVersion: result.KeyVersion,
		CreatedAt:  result.CreatedAt,
	}, nil
}

func (h *Handler) readMessages(ctx context.Context, payload []byte) (any, error) {
	var req ReadMessagesRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}

	masterKey, err := decodeKey(req.MasterKey)
	if err != nil {
		return nil, err
	}
	defer masterKey.Destroy()

	result, err := h.svc.ReadMessages(ctx, workflows.ReadMessagesOptions{
		ChatID:      req.ChatID,
		UserID:      req.UserID,
		WorkspaceID: req.WorkspaceID,
		MasterKey:   masterKey,
		Limit:       req.Limit,
	})
	if err != nil {
		return nil, err
	}

	resp := ReadMessagesResponse{Messages: make([]MessageResponse, 0, len(result.Messages)), Undecryptable: result.Undecryptable}
	for _, m := range result.Messages {
		var scheme string
		if m.Status == workflows.MessageOK && m.Scheme != 0 {
			scheme = m.Scheme.String()
		}
		resp.Messages = append(resp.Messages, MessageResponse{
			ID:         m.ID,
			SenderID:   m.SenderID,
			Text:       m.Text,
			KeyVersion: m.KeyVersion,
			Scheme:     scheme,
			Status:     string(m.Status),
			CreatedAt:  m.CreatedAt,
		})
	}
	return resp, nil
}
