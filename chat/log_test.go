package chat_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/gurungabit/prompt-to-issue/chat"
	"github.com/gurungabit/prompt-to-issue/internal/keys"
	"github.com/gurungabit/prompt-to-issue/store"
	"github.com/gurungabit/prompt-to-issue/store/storetest"
)

// stepClock returns a clock that advances by step on every call, so records
// created in a loop get distinct, ordered timestamps.
func stepClock(start time.Time, step time.Duration) func() time.Time {
	t := start
	return func() time.Time {
		cur := t
		t = t.Add(step)
		return cur
	}
}

func testStart() time.Time {
	return time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T, cfg chat.Config) (*chat.Manager, *chat.Log, *store.Store) {
	t.Helper()
	s := store.New(storetest.New(), store.DefaultConfig())
	clock := stepClock(testStart(), time.Second)
	l := chat.NewLog(s, chat.WithLogClock(clock))
	m := chat.NewManager(s, l, cfg,
		chat.WithClock(clock),
		chat.WithLogger(quietLogger()),
	)
	return m, l, s
}

func mustCreate(t *testing.T, m *chat.Manager, userID, title string) *chat.Chat {
	t.Helper()
	c, err := m.Create(context.Background(), userID, title, "gpt-4o")
	if err != nil {
		t.Fatalf("create chat: %v", err)
	}
	return c
}

func mustAppend(t *testing.T, l *chat.Log, chatID string, msg chat.Message) *chat.Message {
	t.Helper()
	stored, err := l.Append(context.Background(), chatID, msg)
	if err != nil {
		t.Fatalf("append message: %v", err)
	}
	return stored
}

func TestAppend_AssignsIDAndTimestamp(t *testing.T) {
	m, l, _ := newTestEnv(t, chat.DefaultConfig())
	c := mustCreate(t, m, "u1", "Test")

	stored := mustAppend(t, l, c.ID, chat.Message{Role: chat.RoleUser, Content: "hi"})
	if stored.ID == "" {
		t.Error("expected an assigned message id")
	}
	if stored.CreatedAt == "" {
		t.Error("expected an assigned timestamp")
	}
	if stored.ChatID != c.ID {
		t.Errorf("expected chatId %q, got %q", c.ID, stored.ChatID)
	}
}

func TestAppend_KeepsCallerTimestamp(t *testing.T) {
	m, l, _ := newTestEnv(t, chat.DefaultConfig())
	c := mustCreate(t, m, "u1", "Test")

	ts := keys.Timestamp(time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC))
	stored := mustAppend(t, l, c.ID, chat.Message{Role: chat.RoleUser, Content: "hi", CreatedAt: ts})
	if stored.CreatedAt != ts {
		t.Errorf("expected caller timestamp %q, got %q", ts, stored.CreatedAt)
	}
}

func TestList_ReturnsAppendOrder(t *testing.T) {
	m, l, _ := newTestEnv(t, chat.DefaultConfig())
	c := mustCreate(t, m, "u1", "Test")

	contents := []string{"first", "second", "third", "fourth"}
	for _, content := range contents {
		mustAppend(t, l, c.ID, chat.Message{Role: chat.RoleUser, Content: content})
	}

	msgs, err := l.List(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != len(contents) {
		t.Fatalf("expected %d messages, got %d", len(contents), len(msgs))
	}
	for i, want := range contents {
		if msgs[i].Content != want {
			t.Errorf("message %d: expected %q, got %q", i, want, msgs[i].Content)
		}
	}
}

func TestList_SameTimestampTick_PreservesAppendOrder(t *testing.T) {
	m, l, _ := newTestEnv(t, chat.DefaultConfig())
	c := mustCreate(t, m, "u1", "Test")

	// Both messages share one timestamp; the UUIDv7 id tie-break must keep
	// append order.
	ts := keys.Timestamp(time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC))
	mustAppend(t, l, c.ID, chat.Message{Role: chat.RoleUser, Content: "first", CreatedAt: ts})
	mustAppend(t, l, c.ID, chat.Message{Role: chat.RoleAssistant, Content: "second", CreatedAt: ts})

	msgs, err := l.List(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Content != "first" || msgs[1].Content != "second" {
		t.Errorf("expected [first second], got [%s %s]", msgs[0].Content, msgs[1].Content)
	}
}

func TestList_EmptyChat(t *testing.T) {
	m, l, _ := newTestEnv(t, chat.DefaultConfig())
	c := mustCreate(t, m, "u1", "Test")

	msgs, err := l.List(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("expected empty log, got %d messages", len(msgs))
	}
}

func TestAppend_TouchesChatUpdatedAt(t *testing.T) {
	m, l, _ := newTestEnv(t, chat.DefaultConfig())
	c := mustCreate(t, m, "u1", "Test")

	stored := mustAppend(t, l, c.ID, chat.Message{Role: chat.RoleUser, Content: "hi"})

	got, err := m.Get(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("get chat: %v", err)
	}
	if got.UpdatedAt != stored.CreatedAt {
		t.Errorf("expected chat updatedAt %q, got %q", stored.CreatedAt, got.UpdatedAt)
	}
}

func TestDeleteAfter(t *testing.T) {
	m, l, _ := newTestEnv(t, chat.DefaultConfig())
	c := mustCreate(t, m, "u1", "Test")

	m1 := mustAppend(t, l, c.ID, chat.Message{Role: chat.RoleUser, Content: "one"})
	m2 := mustAppend(t, l, c.ID, chat.Message{Role: chat.RoleAssistant, Content: "two"})
	mustAppend(t, l, c.ID, chat.Message{Role: chat.RoleUser, Content: "three"})

	if err := l.DeleteAfter(context.Background(), c.ID, m2.ID); err != nil {
		t.Fatalf("deleteAfter: %v", err)
	}

	msgs, err := l.List(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].ID != m1.ID || msgs[1].ID != m2.ID {
		t.Errorf("expected [%s %s], got [%s %s]", m1.ID, m2.ID, msgs[0].ID, msgs[1].ID)
	}
}

func TestDeleteAfter_UnknownMessageIsNoOp(t *testing.T) {
	m, l, _ := newTestEnv(t, chat.DefaultConfig())
	c := mustCreate(t, m, "u1", "Test")
	mustAppend(t, l, c.ID, chat.Message{Role: chat.RoleUser, Content: "one"})

	if err := l.DeleteAfter(context.Background(), c.ID, "missing"); err != nil {
		t.Fatalf("deleteAfter: %v", err)
	}

	msgs, err := l.List(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 1 {
		t.Errorf("expected log untouched, got %d messages", len(msgs))
	}
}

func TestUpdateContent(t *testing.T) {
	m, l, _ := newTestEnv(t, chat.DefaultConfig())
	c := mustCreate(t, m, "u1", "Test")

	m1 := mustAppend(t, l, c.ID, chat.Message{Role: chat.RoleUser, Content: "typo"})
	mustAppend(t, l, c.ID, chat.Message{Role: chat.RoleAssistant, Content: "reply"})

	updated, err := l.UpdateContent(context.Background(), c.ID, m1.ID, "fixed")
	if err != nil {
		t.Fatalf("updateContent: %v", err)
	}
	if updated.Content != "fixed" {
		t.Errorf("expected content 'fixed', got %q", updated.Content)
	}
	if updated.ID != m1.ID {
		t.Errorf("expected id %q, got %q", m1.ID, updated.ID)
	}

	// Position in the log is unchanged.
	msgs, err := l.List(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if msgs[0].ID != m1.ID || msgs[0].Content != "fixed" {
		t.Errorf("expected edited message first, got %q (%s)", msgs[0].Content, msgs[0].ID)
	}
}

func TestUpdateContent_NotFound(t *testing.T) {
	m, l, _ := newTestEnv(t, chat.DefaultConfig())
	c := mustCreate(t, m, "u1", "Test")

	_, err := l.UpdateContent(context.Background(), c.ID, "missing", "x")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteAll(t *testing.T) {
	m, l, _ := newTestEnv(t, chat.DefaultConfig())
	c := mustCreate(t, m, "u1", "Test")

	for i := 0; i < 3; i++ {
		mustAppend(t, l, c.ID, chat.Message{Role: chat.RoleUser, Content: "msg"})
	}

	if err := l.DeleteAll(context.Background(), c.ID); err != nil {
		t.Fatalf("deleteAll: %v", err)
	}

	msgs, err := l.List(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("expected empty log, got %d messages", len(msgs))
	}

	// Deleting an already-empty log is fine.
	if err := l.DeleteAll(context.Background(), c.ID); err != nil {
		t.Errorf("deleteAll on empty chat: %v", err)
	}
}

func TestMessage_PartsRoundTrip(t *testing.T) {
	m, l, _ := newTestEnv(t, chat.DefaultConfig())
	c := mustCreate(t, m, "u1", "Test")

	parts := []chat.Part{
		{Type: chat.PartText, Text: "looking that up"},
		{Type: chat.PartToolCall, ToolName: "search_issues", ToolCallID: "call-1", Input: `{"query":"timeout"}`},
		{Type: chat.PartToolResult, ToolCallID: "call-1", Output: `{"count":2}`},
	}
	mustAppend(t, l, c.ID, chat.Message{Role: chat.RoleAssistant, Content: "done", Parts: parts})

	msgs, err := l.List(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	got := msgs[0].Parts
	if len(got) != 3 {
		t.Fatalf("expected 3 parts, got %d", len(got))
	}
	if got[1].Type != chat.PartToolCall || got[1].ToolName != "search_issues" {
		t.Errorf("unexpected tool-call part: %+v", got[1])
	}
	if got[2].Output != `{"count":2}` {
		t.Errorf("unexpected tool-result payload: %q", got[2].Output)
	}
}
