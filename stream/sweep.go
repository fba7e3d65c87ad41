// Package stream provides a DynamoDB Streams handler that reclaims orphaned
// records after a chat deletion.
//
// Chat deletion is a two-phase sequence (messages first, then the chat
// record) with no transaction around it. A crash between the phases leaves
// messages with no owning chat; deleting a shared chat also strands its
// PUBLIC# mapping. The sweep watches the table's stream for removals of
// CHAT#…/META records and cleans up whatever the deletion left behind. It
// is idempotent: re-delivered stream records find nothing to do.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/gurungabit/prompt-to-issue/internal/keys"
	"github.com/gurungabit/prompt-to-issue/store"
)

// Handler processes DynamoDB stream events for the orphan sweep.
type Handler struct {
	store  *store.Store
	logger *slog.Logger
}

// NewHandler creates a new stream handler.
func NewHandler(s *store.Store, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:  s,
		logger: logger,
	}
}

// HandleSweep processes stream events, reclaiming orphans for every removed
// chat record. Designed to be used as an AWS Lambda handler.
func (h *Handler) HandleSweep(ctx context.Context, event events.DynamoDBEvent) error {
	for _, record := range event.Records {
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.Error("failed to process record",
				"eventID", record.EventID,
				"error", err,
			)
			return err // Will retry, eventually DLQ
		}
	}
	return nil
}

// processRecord handles a single stream record. Only removals of chat
// metadata records trigger work.
func (h *Handler) processRecord(ctx context.Context, record events.DynamoDBEventRecord) error {
	if record.EventName != "REMOVE" {
		return nil
	}

	pk := getStringAttr(record.Change.Keys, store.AttrPK)
	sk := getStringAttr(record.Change.Keys, store.AttrSK)
	if sk != keys.SortMeta || !strings.HasPrefix(pk, keys.ChatPrefix) {
		return nil
	}
	chatID := strings.TrimPrefix(pk, keys.ChatPrefix)

	h.logger.Info("sweeping removed chat",
		"chatID", chatID,
	)

	removed, err := h.sweepMessages(ctx, chatID)
	if err != nil {
		return fmt.Errorf("sweep messages: %w", err)
	}

	// The share mapping only appears in the record's old image; without a
	// stream view that includes it there is nothing to unlink.
	if shareID := getStringAttr(record.Change.OldImage, "shareId"); shareID != "" {
		sharePK, shareSK := keys.Share(shareID)
		if err := h.store.Delete(ctx, sharePK, shareSK); err != nil {
			return fmt.Errorf("remove share mapping: %w", err)
		}
	}

	h.logger.Info("sweep completed",
		"chatID", chatID,
		"messagesRemoved", removed,
	)
	return nil
}

// sweepMessages deletes every message still stored under the chat's
// partition and reports how many it removed.
func (h *Handler) sweepMessages(ctx context.Context, chatID string) (int, error) {
	pk, prefix := keys.Messages(chatID)
	items, err := h.store.QueryPrefix(ctx, pk, prefix, store.QueryOptions{})
	if err != nil {
		return 0, err
	}
	for _, item := range items {
		if err := h.store.Delete(ctx, pk, itemSortKey(item)); err != nil {
			return 0, err
		}
	}
	return len(items), nil
}

func itemSortKey(item store.Item) string {
	if v, ok := item[store.AttrSK].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

// getStringAttr extracts a string attribute from a DynamoDB stream image.
func getStringAttr(image map[string]events.DynamoDBAttributeValue, key string) string {
	if v, ok := image[key]; ok {
		if v.DataType() == events.DataTypeString {
			return v.String()
		}
	}
	return ""
}
