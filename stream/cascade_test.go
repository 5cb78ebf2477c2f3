package stream_test

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/salestrack/entity"
	"github.com/jacentio/salestrack/store"
	"github.com/jacentio/salestrack/store/memstore"
	"github.com/jacentio/salestrack/stream"
)

var invites = stream.IndexedChildren{
	Index:      entity.IndexByAttribute,
	SortPrefix: entity.SortPrefix(entity.TypeInvite),
}

func put(t *testing.T, s *memstore.Store, e entity.Entity) {
	t.Helper()
	raw, err := entity.Encode(e)
	if err != nil {
		t.Fatalf("encode %T: %v", e, err)
	}
	if err := s.Put(context.Background(), raw, store.WriteCondition{IfNotExists: true}); err != nil {
		t.Fatalf("put %T: %v", e, err)
	}
}

// ttlRecord builds the stream record DynamoDB emits when key gains a TTL.
func ttlRecord(key store.Key, ttl int64) events.DynamoDBEventRecord {
	keys := map[string]events.DynamoDBAttributeValue{
		"pk": events.NewStringAttribute(key.PK),
		"sk": events.NewStringAttribute(key.SK),
	}
	return events.DynamoDBEventRecord{
		EventID:   "evt-" + key.String(),
		EventName: "MODIFY",
		Change: events.DynamoDBStreamRecord{
			Keys: keys,
			OldImage: map[string]events.DynamoDBAttributeValue{
				"pk": keys["pk"],
				"sk": keys["sk"],
			},
			NewImage: map[string]events.DynamoDBAttributeValue{
				"pk":  keys["pk"],
				"sk":  keys["sk"],
				"ttl": events.NewNumberAttribute(strconv.FormatInt(ttl, 10)),
			},
		},
	}
}

func seed(t *testing.T) *memstore.Store {
	t.Helper()
	s := memstore.New(store.DefaultConfig())
	put(t, s, entity.Profile{ID: "p1", OwnerAccountID: "u1", SellerName: "Scout"})
	put(t, s, entity.Campaign{ID: "c1", ProfileID: "p1", Name: "Fall", Year: 2025, StartDate: time.Now()})
	put(t, s, entity.Order{ID: "o1", CampaignID: "c1", ProfileID: "p1", PaymentMethod: "Cash"})
	put(t, s, entity.Order{ID: "o2", CampaignID: "c1", ProfileID: "p1", PaymentMethod: "Cash"})
	put(t, s, entity.Share{ProfileID: "p1", GranteeAccountID: "u2", Permissions: []entity.Permission{entity.PermissionRead}})
	put(t, s, entity.PaymentMethod{ProfileID: "p1", Name: "Venmo"})
	put(t, s, entity.Invite{Code: "INV1", ProfileID: "p1", Permissions: []entity.Permission{entity.PermissionRead}, ExpiresAt: time.Now().Add(time.Hour)})
	put(t, s, entity.Profile{ID: "p2", OwnerAccountID: "u1", SellerName: "Other"})
	return s
}

func assertGone(t *testing.T, s *memstore.Store, keys ...store.Key) {
	t.Helper()
	for _, key := range keys {
		if _, err := s.Get(context.Background(), key); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("expected %s to be deleted, got %v", key, err)
		}
	}
}

func TestNewHandler(t *testing.T) {
	// Test with nil store and logger (should not panic)
	h := stream.NewHandler(nil, nil, nil)
	if h == nil {
		t.Fatal("expected non-nil Handler")
	}
}

func TestHandleCascadeDelete_Profile(t *testing.T) {
	ctx := context.Background()
	s := seed(t)
	h := stream.NewHandler(s, entity.Registry(), nil, invites)

	if err := s.Delete(ctx, entity.ProfileKey("p1")); err != nil {
		t.Fatalf("delete profile: %v", err)
	}

	event := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		ttlRecord(entity.ProfileKey("p1"), time.Now().Unix()),
	}}
	if err := h.HandleCascadeDelete(ctx, event); err != nil {
		t.Fatalf("HandleCascadeDelete: %v", err)
	}

	assertGone(t, s,
		entity.CampaignKey("p1", "c1"),
		entity.OrderKey("c1", "o1"),
		entity.OrderKey("c1", "o2"),
		entity.ShareKey("p1", "u2"),
		entity.PaymentMethodKey("p1", "Venmo"),
		entity.InviteKey("INV1"),
	)

	if _, err := s.Get(ctx, entity.ProfileKey("p2")); err != nil {
		t.Errorf("unrelated profile should survive, got %v", err)
	}
}

func TestHandleCascadeDelete_Campaign(t *testing.T) {
	ctx := context.Background()
	s := seed(t)
	h := stream.NewHandler(s, entity.Registry(), nil, invites)

	key := entity.CampaignKey("p1", "c1")
	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("delete campaign: %v", err)
	}

	event := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{ttlRecord(key, time.Now().Unix())}}
	if err := h.HandleCascadeDelete(ctx, event); err != nil {
		t.Fatalf("HandleCascadeDelete: %v", err)
	}

	assertGone(t, s, entity.OrderKey("c1", "o1"), entity.OrderKey("c1", "o2"))

	if _, err := s.Get(ctx, entity.ProfileKey("p1")); err != nil {
		t.Errorf("profile should survive a campaign delete, got %v", err)
	}
	if _, err := s.Get(ctx, entity.ShareKey("p1", "u2")); err != nil {
		t.Errorf("share should survive a campaign delete, got %v", err)
	}
}

func TestHandleCascadeDelete_Redelivery(t *testing.T) {
	ctx := context.Background()
	s := seed(t)
	h := stream.NewHandler(s, entity.Registry(), nil, invites)

	if err := s.Delete(ctx, entity.ProfileKey("p1")); err != nil {
		t.Fatalf("delete profile: %v", err)
	}
	record := ttlRecord(entity.ProfileKey("p1"), time.Now().Unix())

	for i := 0; i < 2; i++ {
		event := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{record}}
		if err := h.HandleCascadeDelete(ctx, event); err != nil {
			t.Fatalf("delivery %d: %v", i+1, err)
		}
	}
	assertGone(t, s, entity.OrderKey("c1", "o1"))
}

func TestHandleCascadeDelete_StoreFailureRetries(t *testing.T) {
	ctx := context.Background()
	s := seed(t)
	h := stream.NewHandler(s, entity.Registry(), nil, invites)

	if err := s.Delete(ctx, entity.ProfileKey("p1")); err != nil {
		t.Fatalf("delete profile: %v", err)
	}
	event := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		ttlRecord(entity.ProfileKey("p1"), time.Now().Unix()),
	}}

	s.FailNext(errors.New("throttled"))
	err := h.HandleCascadeDelete(ctx, event)
	if !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable so the batch is retried, got %v", err)
	}

	if err := h.HandleCascadeDelete(ctx, event); err != nil {
		t.Fatalf("retry: %v", err)
	}
	assertGone(t, s, entity.OrderKey("c1", "o2"))
}

func TestHandler_HandleCascadeDelete_EmptyEvent(t *testing.T) {
	h := stream.NewHandler(nil, nil, nil)
	event := events.DynamoDBEvent{
		Records: []events.DynamoDBEventRecord{},
	}

	// Empty event should not error
	if err := h.HandleCascadeDelete(context.Background(), event); err != nil {
		t.Errorf("expected no error for empty event, got %v", err)
	}
}

func TestHandler_HandleCascadeDelete_InsertAndRemove(t *testing.T) {
	h := stream.NewHandler(nil, entity.Registry(), nil)
	event := events.DynamoDBEvent{
		Records: []events.DynamoDBEventRecord{
			{
				EventName: "INSERT",
				Change: events.DynamoDBStreamRecord{
					NewImage: map[string]events.DynamoDBAttributeValue{
						"pk": events.NewStringAttribute("PROFILE#p1"),
						"sk": events.NewStringAttribute("METADATA"),
					},
				},
			},
			{
				EventName: "REMOVE",
				Change: events.DynamoDBStreamRecord{
					OldImage: map[string]events.DynamoDBAttributeValue{
						"pk":  events.NewStringAttribute("PROFILE#p1"),
						"sk":  events.NewStringAttribute("METADATA"),
						"ttl": events.NewNumberAttribute("1000"),
					},
				},
			},
		},
	}

	// neither event sets a TTL, so the nil store is never reached
	if err := h.HandleCascadeDelete(context.Background(), event); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

// --- ConvertStreamKey ---

func TestConvertStreamKey(t *testing.T) {
	key, ok := stream.ConvertStreamKey(map[string]events.DynamoDBAttributeValue{
		"pk": events.NewStringAttribute("PROFILE#p1"),
		"sk": events.NewStringAttribute("CAMPAIGN#c1"),
	})
	if !ok {
		t.Fatal("expected key to convert")
	}
	if key != (store.Key{PK: "PROFILE#p1", SK: "CAMPAIGN#c1"}) {
		t.Errorf("unexpected key %v", key)
	}
}

func TestConvertStreamKey_Incomplete(t *testing.T) {
	tests := []struct {
		name  string
		image map[string]events.DynamoDBAttributeValue
	}{
		{"nil", nil},
		{"empty", map[string]events.DynamoDBAttributeValue{}},
		{"pk only", map[string]events.DynamoDBAttributeValue{"pk": events.NewStringAttribute("PROFILE#p1")}},
		{"numeric pk", map[string]events.DynamoDBAttributeValue{"pk": events.NewNumberAttribute("1"), "sk": events.NewStringAttribute("METADATA")}},
		{"empty sk", map[string]events.DynamoDBAttributeValue{"pk": events.NewStringAttribute("PROFILE#p1"), "sk": events.NewStringAttribute("")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := stream.ConvertStreamKey(tt.image); ok {
				t.Error("expected conversion to fail")
			}
		})
	}
}

func TestConvertImage_MixedTypes(t *testing.T) {
	image := stream.ConvertImage(map[string]events.DynamoDBAttributeValue{
		"id":        events.NewStringAttribute("test-id"),
		"version":   events.NewNumberAttribute("42"),
		"data":      events.NewBinaryAttribute([]byte{0x01}),
		"is_active": events.NewBooleanAttribute(true),
		"tags":      events.NewStringSetAttribute([]string{"a"}),
	})

	if len(image) != 4 {
		t.Errorf("expected 4 attributes, got %d", len(image))
	}
	if v, ok := image["id"].(*types.AttributeValueMemberS); !ok || v.Value != "test-id" {
		t.Error("expected string id")
	}
	if v, ok := image["version"].(*types.AttributeValueMemberN); !ok || v.Value != "42" {
		t.Error("expected number version")
	}
	if _, ok := image["data"].(*types.AttributeValueMemberB); !ok {
		t.Error("expected binary data")
	}
	if v, ok := image["is_active"].(*types.AttributeValueMemberBOOL); !ok || !v.Value {
		t.Error("expected boolean is_active")
	}
}
