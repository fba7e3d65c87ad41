// Package settings stores per-user preferences, including the optional
// external issue-tracker credentials, with three-state partial updates.
package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/gurungabit/prompt-to-issue/internal/keys"
	"github.com/gurungabit/prompt-to-issue/store"
)

// Settings is one user's preference record. Pointer fields distinguish
// "never set" (nil) from a stored value; a cleared field reads back as nil.
type Settings struct {
	Theme            *string `dynamodbav:"theme,omitempty"`
	MCPEnabled       *bool   `dynamodbav:"mcpEnabled,omitempty"`
	PreferredModelID *string `dynamodbav:"preferredModelId,omitempty"`

	// External issue-tracker credentials. Clearing all of them is how a
	// user disconnects the tracker.
	ExternalAccessToken  *string `dynamodbav:"externalAccessToken,omitempty"`
	ExternalRefreshToken *string `dynamodbav:"externalRefreshToken,omitempty"`
	ExternalTokenExpiry  *string `dynamodbav:"externalTokenExpiry,omitempty"`
	ExternalUsername     *string `dynamodbav:"externalUsername,omitempty"`
	ExternalUserID       *string `dynamodbav:"externalUserId,omitempty"`
}

// Update describes a partial settings change. Each field is a three-state
// [store.FieldOp]: the zero value leaves the field unchanged, [store.Set]
// overwrites it, [store.Remove] clears it.
type Update struct {
	Theme            store.FieldOp
	MCPEnabled       store.FieldOp
	PreferredModelID store.FieldOp

	ExternalAccessToken  store.FieldOp
	ExternalRefreshToken store.FieldOp
	ExternalTokenExpiry  store.FieldOp
	ExternalUsername     store.FieldOp
	ExternalUserID       store.FieldOp
}

func (u Update) fieldOps() map[string]store.FieldOp {
	return map[string]store.FieldOp{
		"theme":                u.Theme,
		"mcpEnabled":           u.MCPEnabled,
		"preferredModelId":     u.PreferredModelID,
		"externalAccessToken":  u.ExternalAccessToken,
		"externalRefreshToken": u.ExternalRefreshToken,
		"externalTokenExpiry":  u.ExternalTokenExpiry,
		"externalUsername":     u.ExternalUsername,
		"externalUserId":       u.ExternalUserID,
	}
}

// Store reads and writes settings records.
type Store struct {
	store *store.Store
}

// NewStore creates a settings store over the given entity store.
func NewStore(s *store.Store) *Store {
	return &Store{store: s}
}

// Get returns the user's settings, or empty defaults when no record exists.
func (s *Store) Get(ctx context.Context, userID string) (*Settings, error) {
	pk, sk := keys.Settings(userID)
	item, err := s.store.Get(ctx, pk, sk)
	if errors.Is(err, store.ErrNotFound) {
		return &Settings{}, nil
	}
	if err != nil {
		return nil, err
	}

	var out Settings
	if err := attributevalue.UnmarshalMap(item, &out); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}
	return &out, nil
}

// Update applies a partial update and returns the resulting settings. The
// record is created on first use; fields the update doesn't mention keep
// their stored values.
func (s *Store) Update(ctx context.Context, userID string, u Update) (*Settings, error) {
	pk, sk := keys.Settings(userID)

	// Ensure the record exists so the partial update has something to
	// land on. Losing the race to another writer is fine.
	base := store.Item{
		store.AttrPK: &types.AttributeValueMemberS{Value: pk},
		store.AttrSK: &types.AttributeValueMemberS{Value: sk},
		"userId":     &types.AttributeValueMemberS{Value: userID},
	}
	if err := s.store.Put(ctx, base, true); err != nil && !errors.Is(err, store.ErrAlreadyExists) {
		return nil, fmt.Errorf("init settings: %w", err)
	}

	item, err := s.store.Update(ctx, pk, sk, u.fieldOps())
	if err != nil {
		return nil, err
	}

	var out Settings
	if err := attributevalue.UnmarshalMap(item, &out); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}
	return &out, nil
}
