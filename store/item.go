package store

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Attribute names managed by the store.
const (
	AttrPK         = "pk"
	AttrSK         = "sk"
	AttrTTL        = "ttl"
	AttrVersion    = "version"
	AttrCreatedAt  = "created_at"
	AttrUpdatedAt  = "updated_at"
	AttrEntityType = "entity_type"
)

// Key is the composite primary key of an item.
type Key struct {
	PK string
	SK string
}

// Attributes returns the key as DynamoDB attribute values.
func (k Key) Attributes() map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		AttrPK: &types.AttributeValueMemberS{Value: k.PK},
		AttrSK: &types.AttributeValueMemberS{Value: k.SK},
	}
}

func (k Key) String() string { return k.PK + "|" + k.SK }

// KeyOf extracts the primary key from a raw item.
func KeyOf(raw map[string]types.AttributeValue) (Key, bool) {
	pk, ok1 := raw[AttrPK].(*types.AttributeValueMemberS)
	sk, ok2 := raw[AttrSK].(*types.AttributeValueMemberS)
	if !ok1 || !ok2 || pk.Value == "" || sk.Value == "" {
		return Key{}, false
	}
	return Key{PK: pk.Value, SK: sk.Value}, true
}

// Item represents a retrieved item with common fields.
type Item struct {
	// Raw is the raw DynamoDB item.
	Raw map[string]types.AttributeValue

	// Key is the item's primary key.
	Key Key

	// Version is the optimistic lock version.
	Version int64

	// CreatedAt is the ISO 8601 creation timestamp.
	CreatedAt string

	// UpdatedAt is the ISO 8601 last update timestamp.
	UpdatedAt string

	// EntityType is the tag written by the entity codec.
	EntityType string
}

// WriteCondition guards a single-item write.
// The zero value writes unconditionally.
type WriteCondition struct {
	// IfNotExists requires that no live item exists at the key.
	// Soft-deleted items count as absent and are overwritten.
	IfNotExists bool

	// IfExists requires a live item at the key.
	IfExists bool

	// IfVersion requires a live item whose version equals the value (0 = not checked).
	IfVersion int64
}

// Write is one element of a transaction. Exactly one of Put or Delete is set.
type Write struct {
	// Put is the full item to write; it must carry pk and sk.
	Put map[string]types.AttributeValue

	// Delete soft-deletes the item at this key.
	Delete *Key

	// Condition guards the write.
	Condition WriteCondition
}

// Query defines parameters for querying one partition of the table or an index.
type Query struct {
	// IndexName is the optional GSI to query ("" = base table).
	IndexName string

	// Partition is the partition key value.
	Partition string

	// SortPrefix restricts results to sort keys beginning with this value.
	SortPrefix string

	// Equals adds attribute equality filters (ANDed).
	Equals map[string]types.AttributeValue

	// ConsistentRead requests a strongly consistent read. GSIs ignore it.
	ConsistentRead bool

	// IncludeDeleted keeps soft-deleted items in the result.
	IncludeDeleted bool

	// Limit is the maximum number of items to return after filtering (0 = no limit).
	Limit int

	// Descending reverses sort key order.
	Descending bool
}

// Keyed is the contract every store backend satisfies.
type Keyed interface {
	// Get performs a strongly consistent read of one item.
	Get(ctx context.Context, key Key) (*Item, error)

	// Put writes a full item subject to a condition.
	Put(ctx context.Context, item map[string]types.AttributeValue, cond WriteCondition) error

	// Delete soft-deletes an item. Missing or already-deleted items are not an error.
	Delete(ctx context.Context, key Key) error

	// Query reads one partition of the table or a secondary index.
	Query(ctx context.Context, q Query) ([]*Item, error)

	// Transact applies every write or none of them.
	Transact(ctx context.Context, writes []Write) error
}

// UnmarshalItem converts a raw item to an Item struct.
func UnmarshalItem(raw map[string]types.AttributeValue) *Item {
	item := &Item{Raw: raw}
	item.Key, _ = KeyOf(raw)

	if v, ok := raw[AttrVersion].(*types.AttributeValueMemberN); ok {
		item.Version = parseInt(v.Value)
	}
	if v, ok := raw[AttrCreatedAt].(*types.AttributeValueMemberS); ok {
		item.CreatedAt = v.Value
	}
	if v, ok := raw[AttrUpdatedAt].(*types.AttributeValueMemberS); ok {
		item.UpdatedAt = v.Value
	}
	if v, ok := raw[AttrEntityType].(*types.AttributeValueMemberS); ok {
		item.EntityType = v.Value
	}

	return item
}
