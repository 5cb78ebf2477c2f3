package entity

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/salestrack/errs"
	"github.com/jacentio/salestrack/store"
)

// Encode converts an entity to a raw item carrying its primary key,
// its index keys and its type tag.
func Encode(e Entity) (map[string]types.AttributeValue, error) {
	raw, err := attributevalue.MarshalMap(e)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", e.EntityType(), err)
	}

	key := e.Key()
	raw[store.AttrPK] = &types.AttributeValueMemberS{Value: key.PK}
	raw[store.AttrSK] = &types.AttributeValueMemberS{Value: key.SK}
	raw[store.AttrEntityType] = &types.AttributeValueMemberS{Value: string(e.EntityType())}
	for attr, value := range e.indexKeys() {
		raw[attr] = &types.AttributeValueMemberS{Value: value}
	}
	return raw, nil
}

// Decode reconstructs the entity variant named by the item's type tag.
func Decode(item *store.Item) (Entity, error) {
	switch Type(item.EntityType) {
	case TypeAccount:
		return decodeEntity[Account](item)
	case TypeProfile:
		return decodeEntity[Profile](item)
	case TypeShare:
		return decodeEntity[Share](item)
	case TypeInvite:
		return decodeEntity[Invite](item)
	case TypeCampaign:
		return decodeEntity[Campaign](item)
	case TypePrefill:
		return decodeEntity[Prefill](item)
	case TypeOrder:
		return decodeEntity[Order](item)
	case TypeCatalog:
		return decodeEntity[Catalog](item)
	case TypePaymentMethod:
		return decodeEntity[PaymentMethod](item)
	}
	return nil, errs.New(errs.KindMalformedKey, "item %s has unknown entity type %q", item.Key, item.EntityType)
}

// Unmarshal decodes item as T, failing if the type tag names another variant.
func Unmarshal[T Entity](item *store.Item) (T, error) {
	var zero T
	if Type(item.EntityType) != zero.EntityType() {
		return zero, errs.New(errs.KindMalformedKey, "item %s is a %q, not a %q", item.Key, item.EntityType, zero.EntityType())
	}
	return decodeAs[T](item)
}

// UnmarshalAll decodes every item as T.
func UnmarshalAll[T Entity](items []*store.Item) ([]T, error) {
	out := make([]T, 0, len(items))
	for _, item := range items {
		v, err := Unmarshal[T](item)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func decodeEntity[T Entity](item *store.Item) (Entity, error) {
	v, err := decodeAs[T](item)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func decodeAs[T Entity](item *store.Item) (T, error) {
	var v T
	if err := attributevalue.UnmarshalMap(item.Raw, &v); err != nil {
		return v, fmt.Errorf("decode %s: %w", item.Key, err)
	}
	return v, nil
}
