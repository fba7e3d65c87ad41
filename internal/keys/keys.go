// Package keys maps logical entities to the physical partition/sort keys of
// the single conversation table and its secondary index.
//
// Every record kind gets a distinct key shape, so no two entities can collide:
//
//   - User:         USER#{id} / PROFILE        (gsi1: EMAIL#{email} / USER#{id})
//   - UserSettings: USER#{id} / SETTINGS
//   - Chat:         CHAT#{id} / META           (gsi1: USER#{userId} / CHAT#{createdAt})
//   - Message:      CHAT#{chatId} / MESSAGE#{createdAt}#{id}
//   - PublicShare:  PUBLIC#{shareId} / MAPPING
//
// Sort keys that carry a timestamp use a fixed-width UTC format so that
// lexicographic comparison equals time comparison.
package keys

import (
	"fmt"
	"time"
)

// Key prefixes for partition keys and composite sort keys.
const (
	UserPrefix    = "USER#"
	ChatPrefix    = "CHAT#"
	EmailPrefix   = "EMAIL#"
	PublicPrefix  = "PUBLIC#"
	MessagePrefix = "MESSAGE#"
)

// Fixed sort keys for singleton records within a partition.
const (
	SortProfile  = "PROFILE"
	SortSettings = "SETTINGS"
	SortMeta     = "META"
	SortMapping  = "MAPPING"
)

// timestampLayout is millisecond-precision ISO 8601 with a fixed width.
// The trailing ".000" keeps every rendered timestamp the same length.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// Timestamp renders t as a fixed-width, lexicographically sortable UTC string.
func Timestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// ParseTimestamp is the inverse of Timestamp.
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(timestampLayout, s)
}

// User returns the primary key of a user profile record.
func User(userID string) (pk, sk string) {
	return UserPrefix + userID, SortProfile
}

// UserByEmail returns the secondary-index key of a user profile record,
// used for lookup by email.
func UserByEmail(email, userID string) (gsi1pk, gsi1sk string) {
	return EmailPrefix + email, UserPrefix + userID
}

// Settings returns the primary key of a user's settings record.
func Settings(userID string) (pk, sk string) {
	return UserPrefix + userID, SortSettings
}

// Chat returns the primary key of a chat metadata record.
func Chat(chatID string) (pk, sk string) {
	return ChatPrefix + chatID, SortMeta
}

// ChatByOwner returns the secondary-index key of a chat metadata record,
// used for per-user reverse-chronological listing. createdAt must be a
// Timestamp-rendered string.
func ChatByOwner(userID, createdAt string) (gsi1pk, gsi1sk string) {
	return UserPrefix + userID, ChatPrefix + createdAt
}

// ChatsByOwner returns the secondary-index partition key and sort-key prefix
// covering all of a user's chats.
func ChatsByOwner(userID string) (gsi1pk, gsi1skPrefix string) {
	return UserPrefix + userID, ChatPrefix
}

// Message returns the primary key of a message record. The compound sort key
// orders messages by creation time, tie-broken by id.
func Message(chatID, createdAt, messageID string) (pk, sk string) {
	return ChatPrefix + chatID, fmt.Sprintf("%s%s#%s", MessagePrefix, createdAt, messageID)
}

// Messages returns the partition key and sort-key prefix covering a chat's
// full message log.
func Messages(chatID string) (pk, skPrefix string) {
	return ChatPrefix + chatID, MessagePrefix
}

// Share returns the primary key of a public-share indirection record.
func Share(shareID string) (pk, sk string) {
	return PublicPrefix + shareID, SortMapping
}
