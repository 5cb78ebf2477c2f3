package lookup_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jacentio/salestrack/entity"
	"github.com/jacentio/salestrack/errs"
	"github.com/jacentio/salestrack/lookup"
	"github.com/jacentio/salestrack/store"
	"github.com/jacentio/salestrack/store/memstore"
)

func seedCampaign(t *testing.T) *memstore.Store {
	t.Helper()
	s := memstore.New(store.DefaultConfig())
	raw, err := entity.Encode(entity.Campaign{ID: "c1", ProfileID: "p1", Name: "Fall", ShareCode: "ABC234"})
	require.NoError(t, err)
	require.NoError(t, s.Put(context.Background(), raw, store.WriteCondition{IfNotExists: true}))
	return s
}

func byID(id string) lookup.Request {
	return lookup.Request{
		Index:     entity.IndexByID,
		Partition: entity.EncodeKey(entity.TypeCampaign, id),
		Stash:     "campaign",
	}
}

func TestFind_StashesFirstMatch(t *testing.T) {
	s := seedCampaign(t)
	r := lookup.NewResolver(s, nil)
	chain := lookup.NewChain()

	item, err := r.Find(context.Background(), chain, byID("c1"))
	require.NoError(t, err)
	require.NotNil(t, item)
	require.Equal(t, entity.CampaignKey("p1", "c1"), item.Key)

	stashed, ok := chain.Get("campaign")
	require.True(t, ok)
	require.Equal(t, item, stashed)
}

func TestFind_EmptyStashesNil(t *testing.T) {
	s := seedCampaign(t)
	r := lookup.NewResolver(s, nil)
	chain := lookup.NewChain()

	item, err := r.Find(context.Background(), chain, byID("missing"))
	require.NoError(t, err)
	require.Nil(t, item)

	stashed, ok := chain.Get("campaign")
	require.True(t, ok, "an empty lookup still records its outcome")
	require.Nil(t, stashed)
}

func TestFind_StoreErrorPropagatesUnchanged(t *testing.T) {
	s := seedCampaign(t)
	r := lookup.NewResolver(s, nil)
	chain := lookup.NewChain()

	s.FailNext(errors.New("connection reset"))
	_, err := r.Find(context.Background(), chain, byID("c1"))
	require.ErrorIs(t, err, store.ErrUnavailable)
	require.Equal(t, errs.KindStoreUnavailable, errs.KindOf(err))

	_, ok := chain.Get("campaign")
	require.False(t, ok)
}

func TestThen_DeleteIsIdempotent(t *testing.T) {
	s := seedCampaign(t)
	r := lookup.NewResolver(s, nil)
	ctx := context.Background()

	deletes := 0
	del := func(ctx context.Context, item *store.Item) error {
		deletes++
		return s.Delete(ctx, item.Key)
	}

	require.NoError(t, r.Then(ctx, lookup.NewChain(), byID("c1"), del, nil))
	require.NoError(t, r.Then(ctx, lookup.NewChain(), byID("c1"), del, nil))
	require.Equal(t, 1, deletes)
}

func TestThen_NotFoundBranch(t *testing.T) {
	s := seedCampaign(t)
	r := lookup.NewResolver(s, nil)

	err := r.Then(context.Background(), lookup.NewChain(), byID("missing"),
		func(context.Context, *store.Item) error { return nil },
		func(context.Context) error { return errs.NotFound("campaign missing not found") },
	)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestThen_FoundReadsBaseTable(t *testing.T) {
	s := seedCampaign(t)
	r := lookup.NewResolver(s, nil)
	chain := lookup.NewChain()

	var got entity.Campaign
	err := r.Then(context.Background(), chain, byID("c1"),
		func(_ context.Context, item *store.Item) error {
			var err error
			got, err = entity.Unmarshal[entity.Campaign](item)
			return err
		},
		nil,
	)
	require.NoError(t, err)
	require.Equal(t, "Fall", got.Name)
	require.EqualValues(t, 1, got.Version)
}

// laggingIndex serves index queries from a snapshot taken before later writes.
type laggingIndex struct {
	store.Keyed
	rows map[string][]*store.Item
}

func (l *laggingIndex) Query(ctx context.Context, q store.Query) ([]*store.Item, error) {
	if rows, ok := l.rows[q.Partition]; ok && q.IndexName != "" {
		return rows, nil
	}
	return l.Keyed.Query(ctx, q)
}

func TestThen_StaleIndexHitIsNotFound(t *testing.T) {
	s := seedCampaign(t)
	ctx := context.Background()
	req := byID("c1")

	before, err := s.Query(ctx, store.Query{IndexName: req.Index, Partition: req.Partition})
	require.NoError(t, err)
	require.Len(t, before, 1)
	require.NoError(t, s.Delete(ctx, before[0].Key))

	r := lookup.NewResolver(&laggingIndex{Keyed: s, rows: map[string][]*store.Item{req.Partition: before}}, nil)

	t.Run("nil onNotFound succeeds", func(t *testing.T) {
		chain := lookup.NewChain()
		found := false
		err := r.Then(ctx, chain, req,
			func(context.Context, *store.Item) error {
				found = true
				return nil
			},
			nil,
		)
		require.NoError(t, err)
		require.False(t, found)

		stashed, ok := chain.Get("campaign")
		require.True(t, ok)
		require.Nil(t, stashed, "the base table read overrides the index hit")
	})

	t.Run("onNotFound runs", func(t *testing.T) {
		err := r.Then(ctx, lookup.NewChain(), req,
			func(context.Context, *store.Item) error { return errors.New("unexpected onFound") },
			func(context.Context) error { return errs.NotFound("campaign c1 not found") },
		)
		require.ErrorIs(t, err, errs.ErrNotFound)
	})
}
