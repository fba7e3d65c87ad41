package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/lithammer/shortuuid/v4"

	"github.com/gurungabit/prompt-to-issue/internal/keys"
	"github.com/gurungabit/prompt-to-issue/store"
)

// MakePublic marks the chat public under a freshly generated unguessable
// share id and writes the PUBLIC#{shareId} indirection record. A chat that
// is already public keeps its existing share id.
//
// Contract: the caller must be the chat's owner. Ownership is enforced at
// the API boundary; this operation trusts its caller.
//
// The chat is flagged public before the mapping is written, so a crash in
// between leaves a share id that doesn't resolve - it fails closed rather
// than exposing anything. The already-public path re-writes the mapping,
// so retrying after such a crash repairs the dangling id.
func (m *Manager) MakePublic(ctx context.Context, chatID, userID string) (string, error) {
	c, err := m.Get(ctx, chatID)
	if err != nil {
		return "", err
	}
	if c.IsPublic && c.ShareID != "" {
		if err := m.putShareMapping(ctx, c.ShareID, chatID, userID); err != nil {
			return "", err
		}
		return c.ShareID, nil
	}

	shareID := shortuuid.New()

	pk, sk := keys.Chat(chatID)
	if _, err := m.store.Update(ctx, pk, sk, map[string]store.FieldOp{
		"isPublic": store.Set(true),
		"shareId":  store.Set(shareID),
	}); err != nil {
		return "", fmt.Errorf("mark chat public: %w", err)
	}

	if err := m.putShareMapping(ctx, shareID, chatID, userID); err != nil {
		return "", err
	}
	return shareID, nil
}

// putShareMapping writes the PUBLIC#{shareId} record. An existing mapping
// is left alone, so the write is safe to repeat.
func (m *Manager) putShareMapping(ctx context.Context, shareID, chatID, userID string) error {
	share := &Share{
		ShareID:   shareID,
		ChatID:    chatID,
		UserID:    userID,
		CreatedAt: keys.Timestamp(m.now()),
	}
	item, err := shareItem(share)
	if err != nil {
		return err
	}
	if err := m.store.Put(ctx, item, true); err != nil && !errors.Is(err, store.ErrAlreadyExists) {
		return fmt.Errorf("write share mapping: %w", err)
	}
	return nil
}

// ResolveShare looks up the chat behind a share id. The mapping record's
// existence is the authorization; isPublic is not re-checked. Returns
// store.ErrNotFound for unknown ids and for mappings whose chat is gone.
func (m *Manager) ResolveShare(ctx context.Context, shareID string) (*Chat, error) {
	pk, sk := keys.Share(shareID)
	item, err := m.store.Get(ctx, pk, sk)
	if err != nil {
		return nil, err
	}
	share, err := unmarshalShare(item)
	if err != nil {
		return nil, err
	}
	return m.Get(ctx, share.ChatID)
}

// Fork deep-copies a chat and its full message log under a new owner. The
// copy goes through the normal creation path, so it counts against (and may
// trigger) the new owner's retention cap. Every copied message gets a fresh
// id; the two logs never share records, so later edits to one side leave
// the other untouched. Returns store.ErrNotFound if the original is gone.
func (m *Manager) Fork(ctx context.Context, originalChatID, newOwnerID string) (*Chat, error) {
	orig, err := m.Get(ctx, originalChatID)
	if err != nil {
		return nil, err
	}
	msgs, err := m.log.List(ctx, originalChatID)
	if err != nil {
		return nil, err
	}

	forked, err := m.Create(ctx, newOwnerID, orig.Title, orig.ModelID)
	if err != nil {
		return nil, err
	}

	for _, msg := range msgs {
		copied := Message{
			Role:    msg.Role,
			Content: msg.Content,
			Parts:   append([]Part(nil), msg.Parts...),
			// Original timestamps keep the copied log in source order;
			// regeneration links reference ids that don't exist here.
			CreatedAt: msg.CreatedAt,
		}
		if _, err := m.log.Append(ctx, forked.ID, copied); err != nil {
			return nil, fmt.Errorf("copy message into fork: %w", err)
		}
	}
	return forked, nil
}
