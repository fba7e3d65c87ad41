package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/gurungabit/prompt-to-issue/internal/keys"
	"github.com/gurungabit/prompt-to-issue/store"
)

// Config holds configuration for the Manager.
type Config struct {
	// MaxChats caps the number of chats retained per user. Creating past
	// the cap evicts the user's oldest chats.
	// Default: 20
	MaxChats int

	// ListLimit bounds the over-fetch used when counting a user's chats
	// for eviction, and the default listing page size. A value below
	// MaxChats would undercount and skip evictions, so validate raises it
	// to MaxChats.
	// Default: 100
	ListLimit int32
}

// DefaultConfig returns the retention defaults.
func DefaultConfig() Config {
	return Config{
		MaxChats:  20,
		ListLimit: 100,
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.MaxChats < 1 {
		c.MaxChats = 20
	}
	if c.ListLimit < int32(c.MaxChats) {
		c.ListLimit = int32(c.MaxChats)
	}
	if c.ListLimit < 1 {
		c.ListLimit = 100
	}
}

// Manager handles chat lifecycle: creation with bounded retention, retrieval,
// listing, renaming, deletion, and sharing/forking.
type Manager struct {
	store  *store.Store
	log    *Log
	config Config
	logger *slog.Logger
	now    func() time.Time
}

// NewManager creates a chat manager over the given store and message log.
func NewManager(s *store.Store, l *Log, config Config, opts ...Option) *Manager {
	config.validate()
	m := &Manager{
		store:  s,
		log:    l,
		config: config,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used for eviction reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithClock overrides the clock used for chat timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Create inserts a new chat for userID, evicting the user's oldest chats
// first if the retention cap is reached. Eviction cascades: each evicted
// chat's message log is deleted with it.
//
// The count is recomputed from the index on every call rather than kept in
// a live counter. The check-then-act sequence is not atomic: concurrent
// creates for the same user can transiently exceed the cap. Best-effort
// bound, not a hard guarantee.
func (m *Manager) Create(ctx context.Context, userID, title, modelID string) (*Chat, error) {
	existing, err := m.ListByUser(ctx, userID, m.config.ListLimit)
	if err != nil {
		return nil, fmt.Errorf("count chats: %w", err)
	}

	if len(existing) >= m.config.MaxChats {
		if err := m.evictOldest(ctx, userID, existing, len(existing)+1-m.config.MaxChats); err != nil {
			return nil, err
		}
	}

	now := keys.Timestamp(m.now())
	c := &Chat{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		ModelID:   modelID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	item, err := chatItem(c)
	if err != nil {
		return nil, err
	}
	if err := m.store.Put(ctx, item, true); err != nil {
		return nil, fmt.Errorf("create chat: %w", err)
	}
	return c, nil
}

// evictOldest deletes the n oldest of the given chats, oldest first.
func (m *Manager) evictOldest(ctx context.Context, userID string, chats []*Chat, n int) error {
	victims := make([]*Chat, len(chats))
	copy(victims, chats)
	sort.Slice(victims, func(i, j int) bool {
		if victims[i].CreatedAt != victims[j].CreatedAt {
			return victims[i].CreatedAt < victims[j].CreatedAt
		}
		return victims[i].ID < victims[j].ID
	})
	if n > len(victims) {
		n = len(victims)
	}

	for _, victim := range victims[:n] {
		m.logger.Info("evicting chat at retention cap",
			"userID", userID,
			"chatID", victim.ID,
			"createdAt", victim.CreatedAt,
		)
		if err := m.Delete(ctx, victim.ID); err != nil {
			return fmt.Errorf("evict chat %s: %w", victim.ID, err)
		}
	}
	return nil
}

// Get retrieves a chat by id, returning store.ErrNotFound if absent.
func (m *Manager) Get(ctx context.Context, chatID string) (*Chat, error) {
	pk, sk := keys.Chat(chatID)
	item, err := m.store.Get(ctx, pk, sk)
	if err != nil {
		return nil, err
	}
	return unmarshalChat(item)
}

// ListByUser returns up to limit of the user's chats, newest-first, via the
// secondary index. limit <= 0 falls back to the configured default.
func (m *Manager) ListByUser(ctx context.Context, userID string, limit int32) ([]*Chat, error) {
	if limit <= 0 {
		limit = m.config.ListLimit
	}
	gpk, prefix := keys.ChatsByOwner(userID)
	raw, err := m.store.QueryIndex(ctx, gpk, prefix, store.QueryOptions{
		Descending: true,
		Limit:      limit,
	})
	if err != nil {
		return nil, err
	}
	chats := make([]*Chat, 0, len(raw))
	for _, item := range raw {
		c, err := unmarshalChat(item)
		if err != nil {
			return nil, err
		}
		chats = append(chats, c)
	}
	return chats, nil
}

// Rename updates a chat's title and updatedAt.
func (m *Manager) Rename(ctx context.Context, chatID, newTitle string) (*Chat, error) {
	pk, sk := keys.Chat(chatID)
	item, err := m.store.Update(ctx, pk, sk, map[string]store.FieldOp{
		"title":     store.Set(newTitle),
		"updatedAt": store.Set(keys.Timestamp(m.now())),
	})
	if err != nil {
		return nil, err
	}
	return unmarshalChat(item)
}

// Delete removes a chat and its full message log. Messages go first: a crash
// mid-sequence leaves orphaned messages with no owning chat (reclaimed by
// the sweep), never a live chat with a vanished history.
func (m *Manager) Delete(ctx context.Context, chatID string) error {
	if err := m.log.DeleteAll(ctx, chatID); err != nil {
		return err
	}
	pk, sk := keys.Chat(chatID)
	if err := m.store.Delete(ctx, pk, sk); err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}
	return nil
}
