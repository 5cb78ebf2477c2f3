// Package stream provides DynamoDB Streams handlers for cascade operations.
//
// Deleting an entity marks it with a TTL. The stream delivers that change as
// a MODIFY event, and the handler soft-deletes every item in the partition the
// entity owns, recursing through the registry. Every step is idempotent, so
// redelivered records and overlapping synchronous cascades are harmless.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/salestrack/store"
)

// IndexedChildren names items that belong to an owned partition through a
// secondary index rather than the base table. Invites, for example, live in
// their own partition but are indexed under the profile that issued them.
type IndexedChildren struct {
	Index      string
	SortPrefix string
}

// Handler processes DynamoDB stream events for cascade deletes.
type Handler struct {
	store    store.Keyed
	registry *store.Registry
	indexed  []IndexedChildren
	logger   *slog.Logger
}

// NewHandler creates a new stream handler.
func NewHandler(k store.Keyed, registry *store.Registry, logger *slog.Logger, indexed ...IndexedChildren) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:    k,
		registry: registry,
		indexed:  indexed,
		logger:   logger,
	}
}

// HandleCascadeDelete processes DynamoDB stream events to propagate TTL to children.
// This function is designed to be used as an AWS Lambda handler.
func (h *Handler) HandleCascadeDelete(ctx context.Context, event events.DynamoDBEvent) error {
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

// processRecord processes a single DynamoDB stream record.
func (h *Handler) processRecord(ctx context.Context, record events.DynamoDBEventRecord) error {
	// Only MODIFY events can carry a freshly set TTL; REMOVE is the expiry itself
	if record.EventName != string(events.DynamoDBOperationTypeModify) {
		return nil
	}

	oldTTL := getNumberAttr(record.Change.OldImage, store.AttrTTL)
	newTTL := getNumberAttr(record.Change.NewImage, store.AttrTTL)
	if oldTTL != 0 || newTTL == 0 {
		return nil
	}

	key, ok := ConvertStreamKey(record.Change.Keys)
	if !ok {
		key, ok = ConvertStreamKey(record.Change.NewImage)
	}
	if !ok {
		return fmt.Errorf("record %s has no primary key", record.EventID)
	}

	owned, ok := h.registry.OwnedPartition(key)
	if !ok {
		return nil
	}

	h.logger.Info("processing cascade delete",
		"key", key.String(),
		"partition", owned,
		"entityType", getStringAttr(record.Change.NewImage, store.AttrEntityType),
		"ttl", newTTL,
	)

	marked, err := store.DeletePartition(ctx, h.store, h.registry, owned)
	if err != nil {
		return fmt.Errorf("cascade %s: %w", owned, err)
	}

	for _, ic := range h.indexed {
		n, err := h.deleteIndexed(ctx, ic, owned)
		marked += n
		if err != nil {
			return err
		}
	}

	h.logger.Info("cascade delete completed",
		"partition", owned,
		"itemsMarked", marked,
	)
	return nil
}

func (h *Handler) deleteIndexed(ctx context.Context, ic IndexedChildren, partition string) (int, error) {
	items, err := h.store.Query(ctx, store.Query{
		IndexName:  ic.Index,
		Partition:  partition,
		SortPrefix: ic.SortPrefix,
	})
	if err != nil {
		return 0, fmt.Errorf("query %s on %s: %w", partition, ic.Index, err)
	}
	for i, item := range items {
		if err := h.store.Delete(ctx, item.Key); err != nil {
			return i, fmt.Errorf("delete %s: %w", item.Key, err)
		}
	}
	return len(items), nil
}

// getStringAttr extracts a string attribute from a DynamoDB stream image.
func getStringAttr(image map[string]events.DynamoDBAttributeValue, key string) string {
	if v, ok := image[key]; ok && v.DataType() == events.DataTypeString {
		return v.String()
	}
	return ""
}

// getNumberAttr extracts a number attribute from a DynamoDB stream image.
func getNumberAttr(image map[string]events.DynamoDBAttributeValue, key string) int64 {
	if v, ok := image[key]; ok {
		if v.DataType() == events.DataTypeNumber {
			n, _ := strconv.ParseInt(v.Number(), 10, 64)
			return n
		}
	}
	return 0
}

// ConvertStreamKey extracts the primary key from a stream key or image.
func ConvertStreamKey(image map[string]events.DynamoDBAttributeValue) (store.Key, bool) {
	return store.KeyOf(ConvertImage(image))
}

// ConvertImage converts the scalar attributes of a stream image into SDK
// attribute values. Other attribute types are dropped.
func ConvertImage(image map[string]events.DynamoDBAttributeValue) map[string]types.AttributeValue {
	result := make(map[string]types.AttributeValue, len(image))
	for k, v := range image {
		switch v.DataType() {
		case events.DataTypeString:
			result[k] = &types.AttributeValueMemberS{Value: v.String()}
		case events.DataTypeNumber:
			result[k] = &types.AttributeValueMemberN{Value: v.Number()}
		case events.DataTypeBinary:
			result[k] = &types.AttributeValueMemberB{Value: v.Binary()}
		case events.DataTypeBoolean:
			result[k] = &types.AttributeValueMemberBOOL{Value: v.Boolean()}
		}
	}
	return result
}
