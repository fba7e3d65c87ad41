// Package user stores account records and resolves users by email through
// the secondary index.
package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/gurungabit/prompt-to-issue/internal/keys"
	"github.com/gurungabit/prompt-to-issue/store"
)

// User is one account record. Email is globally unique (best-effort, see
// [Service.Create]); CredentialHash is opaque to this core.
type User struct {
	ID             string `dynamodbav:"id"`
	Email          string `dynamodbav:"email"`
	Name           string `dynamodbav:"name,omitempty"`
	CredentialHash string `dynamodbav:"credentialHash"`
	CreatedAt      string `dynamodbav:"createdAt"`
}

// Service creates and looks up user records.
type Service struct {
	store *store.Store
	now   func() time.Time
}

// NewService creates a user service over the given store.
func NewService(s *store.Store, opts ...Option) *Service {
	svc := &Service{
		store: s,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the clock used for account timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// normalizeEmail canonicalizes an address for keying and comparison.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create registers a new account, assigning an id and timestamp when absent.
// Returns store.ErrAlreadyExists for a taken email or id. The email check
// reads the index before the write; like chat eviction it is check-then-act,
// so a concurrent registration race can slip through. The secondary index
// cannot enforce uniqueness, so this is a documented best-effort bound.
func (s *Service) Create(ctx context.Context, u User) (*User, error) {
	u.Email = normalizeEmail(u.Email)
	if u.Email == "" {
		return nil, fmt.Errorf("user: email is required")
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt == "" {
		u.CreatedAt = keys.Timestamp(s.now())
	}

	if _, err := s.GetByEmail(ctx, u.Email); err == nil {
		return nil, store.ErrAlreadyExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	item, err := attributevalue.MarshalMap(u)
	if err != nil {
		return nil, fmt.Errorf("marshal user: %w", err)
	}
	pk, sk := keys.User(u.ID)
	item[store.AttrPK] = &types.AttributeValueMemberS{Value: pk}
	item[store.AttrSK] = &types.AttributeValueMemberS{Value: sk}
	gpk, gsk := keys.UserByEmail(u.Email, u.ID)
	item[store.AttrGSI1PK] = &types.AttributeValueMemberS{Value: gpk}
	item[store.AttrGSI1SK] = &types.AttributeValueMemberS{Value: gsk}

	if err := s.store.Put(ctx, item, true); err != nil {
		return nil, err
	}
	return &u, nil
}

// Get retrieves a user by id, returning store.ErrNotFound if absent.
func (s *Service) Get(ctx context.Context, userID string) (*User, error) {
	pk, sk := keys.User(userID)
	item, err := s.store.Get(ctx, pk, sk)
	if err != nil {
		return nil, err
	}
	return unmarshalUser(item)
}

// GetByEmail resolves a user through the email index.
func (s *Service) GetByEmail(ctx context.Context, email string) (*User, error) {
	gpk := keys.EmailPrefix + normalizeEmail(email)
	items, err := s.store.QueryIndex(ctx, gpk, "", store.QueryOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, store.ErrNotFound
	}
	return unmarshalUser(items[0])
}

func unmarshalUser(item store.Item) (*User, error) {
	var u User
	if err := attributevalue.UnmarshalMap(item, &u); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	return &u, nil
}
