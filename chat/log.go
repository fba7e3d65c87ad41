package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gurungabit/prompt-to-issue/internal/keys"
	"github.com/gurungabit/prompt-to-issue/store"
)

// Log is the append-only, time-ordered message log of a chat.
type Log struct {
	store *store.Store
	now   func() time.Time
}

// NewLog creates a message log over the given store.
func NewLog(s *store.Store, opts ...LogOption) *Log {
	l := &Log{
		store: s,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LogOption configures a Log.
type LogOption func(*Log)

// WithLogClock overrides the clock used to assign message timestamps.
func WithLogClock(now func() time.Time) LogOption {
	return func(l *Log) { l.now = now }
}

// Append stores a message at the end of the chat's log and bumps the parent
// chat's updatedAt to the message time. The message id and timestamp are
// assigned when absent; ids are UUIDv7, so the MESSAGE#{createdAt}#{id} sort
// key preserves append order even when two appends share a timestamp tick.
//
// A missing parent chat is tolerated: the message is stored and later
// reclaimed by the orphan sweep if the chat never existed.
func (l *Log) Append(ctx context.Context, chatID string, msg Message) (*Message, error) {
	if msg.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("generate message id: %w", err)
		}
		msg.ID = id.String()
	}
	if msg.CreatedAt == "" {
		msg.CreatedAt = keys.Timestamp(l.now())
	}
	msg.ChatID = chatID

	item, err := messageItem(&msg)
	if err != nil {
		return nil, err
	}
	if err := l.store.Put(ctx, item, false); err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}

	if err := l.touch(ctx, chatID, msg.CreatedAt); err != nil {
		return nil, err
	}
	return &msg, nil
}

// touch bumps the chat's updatedAt so "most recently active" ordering tracks
// the latest message.
func (l *Log) touch(ctx context.Context, chatID, at string) error {
	pk, sk := keys.Chat(chatID)
	_, err := l.store.Update(ctx, pk, sk, map[string]store.FieldOp{
		"updatedAt": store.Set(at),
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("touch chat: %w", err)
	}
	return nil
}

// items returns the raw message records of a chat in log order.
func (l *Log) items(ctx context.Context, chatID string) ([]store.Item, error) {
	pk, prefix := keys.Messages(chatID)
	return l.store.QueryPrefix(ctx, pk, prefix, store.QueryOptions{})
}

// List returns the chat's full message log, ascending by creation order.
// Re-invocable; always reflects the current state. A missing or empty chat
// yields an empty slice.
func (l *Log) List(ctx context.Context, chatID string) ([]*Message, error) {
	raw, err := l.items(ctx, chatID)
	if err != nil {
		return nil, err
	}
	msgs := make([]*Message, 0, len(raw))
	for _, item := range raw {
		m, err := unmarshalMessage(item)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// DeleteAfter removes every message strictly after messageID in log order,
// discarding turns invalidated by an upstream edit. A no-op when messageID
// isn't in the log.
func (l *Log) DeleteAfter(ctx context.Context, chatID, messageID string) error {
	raw, err := l.items(ctx, chatID)
	if err != nil {
		return err
	}

	cut := -1
	for i, item := range raw {
		if itemID(item) == messageID {
			cut = i
			break
		}
	}
	if cut < 0 {
		return nil
	}

	pk, _ := keys.Messages(chatID)
	for _, item := range raw[cut+1:] {
		if err := l.store.Delete(ctx, pk, itemSortKey(item)); err != nil {
			return fmt.Errorf("delete message: %w", err)
		}
	}
	return nil
}

// UpdateContent rewrites the content field of one message in place, the
// single permitted mutation. The message keeps its position in the log.
// No id→sortkey index is maintained, so the log is scanned for the id.
func (l *Log) UpdateContent(ctx context.Context, chatID, messageID, newContent string) (*Message, error) {
	raw, err := l.items(ctx, chatID)
	if err != nil {
		return nil, err
	}

	for _, item := range raw {
		if itemID(item) != messageID {
			continue
		}
		pk, _ := keys.Messages(chatID)
		updated, err := l.store.Update(ctx, pk, itemSortKey(item), map[string]store.FieldOp{
			"content": store.Set(newContent),
		})
		if err != nil {
			return nil, err
		}
		return unmarshalMessage(updated)
	}
	return nil, store.ErrNotFound
}

// DeleteAll removes every message in the chat. Safe on chats with zero
// messages; part of chat deletion.
func (l *Log) DeleteAll(ctx context.Context, chatID string) error {
	raw, err := l.items(ctx, chatID)
	if err != nil {
		return err
	}
	pk, _ := keys.Messages(chatID)
	for _, item := range raw {
		if err := l.store.Delete(ctx, pk, itemSortKey(item)); err != nil {
			return fmt.Errorf("delete message: %w", err)
		}
	}
	return nil
}
