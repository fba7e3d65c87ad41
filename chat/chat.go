// Package chat implements chat lifecycle, the per-chat message log, and
// public sharing/forking on top of the entity store.
//
// A chat's metadata lives at CHAT#{id}/META and is projected into the
// secondary index under its owner for newest-first listing. Messages live in
// the same partition under MESSAGE#{createdAt}#{id} sort keys, so a single
// range read returns the log in order. Public shares are indirection records
// at PUBLIC#{shareId}/MAPPING.
//
// Chats are bounded per user: creating a chat beyond the cap evicts the
// user's oldest chats, messages included. See [Manager.Create].
package chat

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/gurungabit/prompt-to-issue/internal/keys"
	"github.com/gurungabit/prompt-to-issue/store"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// PartType identifies a structured content block within a message.
type PartType string

const (
	PartText       PartType = "text"
	PartToolCall   PartType = "tool-call"
	PartToolResult PartType = "tool-result"
)

// Part is one structured content block of a message. The AI provider layer
// owns the payload semantics; this core stores them opaquely.
type Part struct {
	Type       PartType `dynamodbav:"type"`
	Text       string   `dynamodbav:"text,omitempty"`
	ToolName   string   `dynamodbav:"toolName,omitempty"`
	ToolCallID string   `dynamodbav:"toolCallId,omitempty"`
	Input      string   `dynamodbav:"input,omitempty"`
	Output     string   `dynamodbav:"output,omitempty"`
}

// Message is one entry of a chat's append-only log. Messages are immutable
// except for in-place content edits (see [Log.UpdateContent]).
type Message struct {
	ID              string `dynamodbav:"id"`
	ChatID          string `dynamodbav:"chatId"`
	Role            Role   `dynamodbav:"role"`
	Content         string `dynamodbav:"content"`
	Parts           []Part `dynamodbav:"parts,omitempty"`
	RegeneratedFrom string `dynamodbav:"regeneratedFrom,omitempty"`

	// CreatedAt is a keys.Timestamp-rendered string; it doubles as the
	// ordering component of the message's sort key.
	CreatedAt string `dynamodbav:"createdAt"`
}

// Chat is the metadata record of one conversation. UserID never changes
// after creation. ShareID is present iff IsPublic is true.
type Chat struct {
	ID        string `dynamodbav:"id"`
	UserID    string `dynamodbav:"userId"`
	Title     string `dynamodbav:"title"`
	ModelID   string `dynamodbav:"modelId"`
	IsPublic  bool   `dynamodbav:"isPublic"`
	ShareID   string `dynamodbav:"shareId,omitempty"`
	CreatedAt string `dynamodbav:"createdAt"`
	UpdatedAt string `dynamodbav:"updatedAt"`
}

// Share maps an unguessable share id to a chat. Never mutated: created on
// publish, looked up on resolve, orphaned if the chat is deleted.
type Share struct {
	ShareID   string `dynamodbav:"shareId"`
	ChatID    string `dynamodbav:"chatId"`
	UserID    string `dynamodbav:"userId"`
	CreatedAt string `dynamodbav:"createdAt"`
}

// --- item marshaling ---

func setKey(item store.Item, pk, sk string) {
	item[store.AttrPK] = &types.AttributeValueMemberS{Value: pk}
	item[store.AttrSK] = &types.AttributeValueMemberS{Value: sk}
}

func chatItem(c *Chat) (store.Item, error) {
	item, err := attributevalue.MarshalMap(c)
	if err != nil {
		return nil, fmt.Errorf("marshal chat: %w", err)
	}
	pk, sk := keys.Chat(c.ID)
	setKey(item, pk, sk)
	gpk, gsk := keys.ChatByOwner(c.UserID, c.CreatedAt)
	item[store.AttrGSI1PK] = &types.AttributeValueMemberS{Value: gpk}
	item[store.AttrGSI1SK] = &types.AttributeValueMemberS{Value: gsk}
	return item, nil
}

func messageItem(m *Message) (store.Item, error) {
	item, err := attributevalue.MarshalMap(m)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}
	pk, sk := keys.Message(m.ChatID, m.CreatedAt, m.ID)
	setKey(item, pk, sk)
	return item, nil
}

func shareItem(s *Share) (store.Item, error) {
	item, err := attributevalue.MarshalMap(s)
	if err != nil {
		return nil, fmt.Errorf("marshal share: %w", err)
	}
	pk, sk := keys.Share(s.ShareID)
	setKey(item, pk, sk)
	return item, nil
}

func unmarshalChat(item store.Item) (*Chat, error) {
	var c Chat
	if err := attributevalue.UnmarshalMap(item, &c); err != nil {
		return nil, fmt.Errorf("unmarshal chat: %w", err)
	}
	return &c, nil
}

func unmarshalMessage(item store.Item) (*Message, error) {
	var m Message
	if err := attributevalue.UnmarshalMap(item, &m); err != nil {
		return nil, fmt.Errorf("unmarshal message: %w", err)
	}
	return &m, nil
}

func unmarshalShare(item store.Item) (*Share, error) {
	var s Share
	if err := attributevalue.UnmarshalMap(item, &s); err != nil {
		return nil, fmt.Errorf("unmarshal share: %w", err)
	}
	return &s, nil
}

func itemSortKey(item store.Item) string {
	if v, ok := item[store.AttrSK].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func itemID(item store.Item) string {
	if v, ok := item["id"].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}
