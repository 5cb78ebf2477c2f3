package store

import (
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// IsDeleted checks if an item has an expired TTL (is marked for deletion).
func IsDeleted(item map[string]types.AttributeValue) bool {
	return IsDeletedAt(item, time.Now())
}

// IsDeletedAt is IsDeleted evaluated at a given instant.
func IsDeletedAt(item map[string]types.AttributeValue, now time.Time) bool {
	ttlAttr, exists := item[AttrTTL]
	if !exists {
		return false // No TTL = active
	}
	ttlNum, ok := ttlAttr.(*types.AttributeValueMemberN)
	if !ok {
		return false
	}
	ttl, err := strconv.ParseInt(ttlNum.Value, 10, 64)
	if err != nil {
		return false
	}
	return ttl <= now.Unix()
}

// TTLFilterExpr returns the filter expression to exclude deleted items.
// Use this when building custom queries that need TTL filtering.
func TTLFilterExpr() string {
	return "attribute_not_exists(#ttl) OR #ttl > :now"
}

// TTLFilterNames returns expression attribute names for TTL filter.
func TTLFilterNames() map[string]string {
	return map[string]string{"#ttl": AttrTTL}
}

// TTLFilterValues returns expression attribute values for TTL filter.
func TTLFilterValues() map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		":now": &types.AttributeValueMemberN{
			Value: strconv.FormatInt(time.Now().Unix(), 10),
		},
	}
}

// LiveCondition matches an existing item that is not soft-deleted.
func LiveCondition() string {
	return "attribute_exists(pk) AND (attribute_not_exists(#ttl) OR #ttl > :now)"
}

// AbsentCondition matches a missing item or a soft-deleted one.
func AbsentCondition() string {
	return "attribute_not_exists(pk) OR #ttl <= :now"
}

// PrepareWrite stamps the store-managed attributes on an item about to be written.
// The version becomes IfVersion+1 for optimistic updates and 1 otherwise;
// created_at is preserved when the caller round-tripped it.
func PrepareWrite(item map[string]types.AttributeValue, cond WriteCondition, now time.Time) {
	nowISO := now.UTC().Format(time.RFC3339)

	version := int64(1)
	if cond.IfVersion > 0 {
		version = cond.IfVersion + 1
	}
	item[AttrVersion] = &types.AttributeValueMemberN{Value: strconv.FormatInt(version, 10)}
	if v, ok := item[AttrCreatedAt].(*types.AttributeValueMemberS); !ok || v.Value == "" || cond.IfNotExists {
		item[AttrCreatedAt] = &types.AttributeValueMemberS{Value: nowISO}
	}
	item[AttrUpdatedAt] = &types.AttributeValueMemberS{Value: nowISO}
	delete(item, AttrTTL)
}

func parseInt(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

// mergeExprNames merges multiple expression attribute name maps.
func mergeExprNames(maps ...map[string]string) map[string]string {
	result := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			result[k] = v
		}
	}
	return result
}

// mergeExprValues merges multiple expression attribute value maps.
func mergeExprValues(maps ...map[string]types.AttributeValue) map[string]types.AttributeValue {
	result := make(map[string]types.AttributeValue)
	for _, m := range maps {
		for k, v := range m {
			result[k] = v
		}
	}
	return result
}
