package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// API is the subset of the DynamoDB client used by Store.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Store provides single-table DynamoDB operations.
type Store struct {
	client API
	config Config
	now    func() time.Time
}

var _ Keyed = (*Store)(nil)

// New creates a new Store instance.
func New(client API, config Config) *Store {
	config.Validate()
	return &Store{
		client: client,
		config: config,
		now:    time.Now,
	}
}

// Config returns the validated configuration.
func (s *Store) Config() Config {
	return s.config
}

// Get retrieves an item by key with a strongly consistent read,
// returning ErrNotFound if deleted or missing.
func (s *Store) Get(ctx context.Context, key Key) (*Item, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.config.TableName),
		Key:            key.Attributes(),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, unavailable(err)
	}
	if result.Item == nil {
		return nil, ErrNotFound
	}

	// Check if item is deleted (has expired TTL)
	if IsDeletedAt(result.Item, s.now()) {
		return nil, ErrNotFound
	}

	return UnmarshalItem(result.Item), nil
}

// Put writes a full item subject to cond.
func (s *Store) Put(ctx context.Context, item map[string]types.AttributeValue, cond WriteCondition) error {
	if _, ok := KeyOf(item); !ok {
		return ErrInvalidKey
	}
	now := s.now()
	PrepareWrite(item, cond, now)

	input := &dynamodb.PutItemInput{
		TableName: aws.String(s.config.TableName),
		Item:      item,
	}
	if expr, names, values := conditionExpr(cond, now); expr != "" {
		input.ConditionExpression = aws.String(expr)
		input.ExpressionAttributeNames = names
		input.ExpressionAttributeValues = values
		input.ReturnValuesOnConditionCheckFailure = types.ReturnValuesOnConditionCheckFailureAllOld
	}

	_, err := s.client.PutItem(ctx, input)
	if err == nil {
		return nil
	}
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return conditionOutcome(cond, condErr.Item, now)
	}
	return unavailable(err)
}

// Delete marks an item for deletion by setting its TTL to now.
// This also increments the version to fail concurrent updates.
func (s *Store) Delete(ctx context.Context, key Key) error {
	now := s.now()

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.config.TableName),
		Key:                 key.Attributes(),
		UpdateExpression:    aws.String("SET #ttl = :now, #version = #version + :one"),
		ConditionExpression: aws.String(LiveCondition()),
		ExpressionAttributeNames: map[string]string{
			"#ttl":     AttrTTL,
			"#version": AttrVersion,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)},
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
	})

	// Ignore condition failure - missing or already deleted
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return nil
	}
	return unavailable(err)
}

// Query queries one partition with automatic TTL filtering.
func (s *Store) Query(ctx context.Context, q Query) ([]*Item, error) {
	pkAttr, skAttr, ok := s.config.KeyAttrs(q.IndexName)
	if !ok {
		return nil, fmt.Errorf("salestrack/store: unknown index %q", q.IndexName)
	}
	now := s.now()

	keyExpr := "#pk = :pk"
	exprNames := map[string]string{"#pk": pkAttr}
	exprValues := map[string]types.AttributeValue{
		":pk": &types.AttributeValueMemberS{Value: q.Partition},
	}
	if q.SortPrefix != "" {
		keyExpr += " AND begins_with(#sk, :sk_prefix)"
		exprNames["#sk"] = skAttr
		exprValues[":sk_prefix"] = &types.AttributeValueMemberS{Value: q.SortPrefix}
	}

	var filters []string
	if !q.IncludeDeleted {
		filters = append(filters, "("+TTLFilterExpr()+")")
		exprNames = mergeExprNames(exprNames, TTLFilterNames())
		exprValues = mergeExprValues(exprValues, map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)},
		})
	}

	// Stable placeholder order keeps expressions deterministic
	attrs := make([]string, 0, len(q.Equals))
	for attr := range q.Equals {
		attrs = append(attrs, attr)
	}
	sort.Strings(attrs)
	for i, attr := range attrs {
		nameKey := fmt.Sprintf("#f%d", i)
		valueKey := fmt.Sprintf(":f%d", i)
		exprNames[nameKey] = attr
		exprValues[valueKey] = q.Equals[attr]
		filters = append(filters, fmt.Sprintf("%s = %s", nameKey, valueKey))
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(s.config.TableName),
		KeyConditionExpression:    aws.String(keyExpr),
		ExpressionAttributeNames:  exprNames,
		ExpressionAttributeValues: exprValues,
	}
	if len(filters) > 0 {
		input.FilterExpression = aws.String(strings.Join(filters, " AND "))
	}
	if q.IndexName != "" {
		input.IndexName = aws.String(q.IndexName)
	} else if q.ConsistentRead {
		input.ConsistentRead = aws.Bool(true)
	}
	if q.Descending {
		input.ScanIndexForward = aws.Bool(false)
	}

	// Paginate through all results; Limit applies after filtering
	var items []*Item
	paginator := dynamodb.NewQueryPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, unavailable(err)
		}
		for _, raw := range page.Items {
			items = append(items, UnmarshalItem(raw))
			if q.Limit > 0 && len(items) >= q.Limit {
				return items, nil
			}
		}
	}

	return items, nil
}

// Transact applies writes atomically.
// A failed condition is reported as a *TxConditionError naming the write.
func (s *Store) Transact(ctx context.Context, writes []Write) error {
	if len(writes) == 0 {
		return nil
	}
	now := s.now()
	nowN := &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)}

	items := make([]types.TransactWriteItem, 0, len(writes))
	for _, w := range writes {
		expr, names, values := conditionExpr(w.Condition, now)

		switch {
		case w.Put != nil:
			if _, ok := KeyOf(w.Put); !ok {
				return ErrInvalidKey
			}
			PrepareWrite(w.Put, w.Condition, now)
			put := &types.Put{
				TableName:                           aws.String(s.config.TableName),
				Item:                                w.Put,
				ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
			}
			if expr != "" {
				put.ConditionExpression = aws.String(expr)
				put.ExpressionAttributeNames = names
				put.ExpressionAttributeValues = values
			}
			items = append(items, types.TransactWriteItem{Put: put})

		case w.Delete != nil:
			update := &types.Update{
				TableName:        aws.String(s.config.TableName),
				Key:              w.Delete.Attributes(),
				UpdateExpression: aws.String("SET #ttl = if_not_exists(#ttl, :now) ADD #version :one"),
				ExpressionAttributeNames: mergeExprNames(names, map[string]string{
					"#ttl":     AttrTTL,
					"#version": AttrVersion,
				}),
				ExpressionAttributeValues: mergeExprValues(values, map[string]types.AttributeValue{
					":now": nowN,
					":one": &types.AttributeValueMemberN{Value: "1"},
				}),
				ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
			}
			if expr != "" {
				update.ConditionExpression = aws.String(expr)
			}
			items = append(items, types.TransactWriteItem{Update: update})

		default:
			return fmt.Errorf("salestrack/store: write %d has neither put nor delete", len(items))
		}
	}

	_, err := s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	return s.mapTransactionError(err, writes, now)
}

// mapTransactionError maps DynamoDB cancellation reasons to the failing write.
func (s *Store) mapTransactionError(err error, writes []Write, now time.Time) error {
	if err == nil {
		return nil
	}

	var txErr *types.TransactionCanceledException
	if errors.As(err, &txErr) {
		for i, reason := range txErr.CancellationReasons {
			if reason.Code == nil || i >= len(writes) {
				continue
			}
			switch *reason.Code {
			case "ConditionalCheckFailed":
				return &TxConditionError{Index: i, Err: conditionOutcome(writes[i].Condition, reason.Item, now)}
			case "TransactionConflict":
				return &TxConditionError{Index: i, Err: ErrConcurrentModification}
			}
		}
	}

	return unavailable(err)
}

// conditionExpr renders a WriteCondition as a DynamoDB condition expression.
func conditionExpr(cond WriteCondition, now time.Time) (string, map[string]string, map[string]types.AttributeValue) {
	nowN := &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)}

	switch {
	case cond.IfNotExists:
		return AbsentCondition(),
			map[string]string{"#ttl": AttrTTL},
			map[string]types.AttributeValue{":now": nowN}
	case cond.IfVersion > 0:
		return "(" + LiveCondition() + ") AND #version = :expected_version",
			map[string]string{"#ttl": AttrTTL, "#version": AttrVersion},
			map[string]types.AttributeValue{
				":now":              nowN,
				":expected_version": &types.AttributeValueMemberN{Value: strconv.FormatInt(cond.IfVersion, 10)},
			}
	case cond.IfExists:
		return LiveCondition(),
			map[string]string{"#ttl": AttrTTL},
			map[string]types.AttributeValue{":now": nowN}
	}
	return "", nil, nil
}

// conditionOutcome explains a failed condition using the item that was present.
func conditionOutcome(cond WriteCondition, old map[string]types.AttributeValue, now time.Time) error {
	live := old != nil && !IsDeletedAt(old, now)
	switch {
	case cond.IfNotExists:
		return ErrAlreadyExists
	case cond.IfVersion > 0 && live:
		return ErrConcurrentModification
	default:
		return ErrNotFound
	}
}
