package sales_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jacentio/salestrack/authz"
	"github.com/jacentio/salestrack/entity"
	"github.com/jacentio/salestrack/errs"
	"github.com/jacentio/salestrack/lookup"
	"github.com/jacentio/salestrack/prefill"
	"github.com/jacentio/salestrack/sales"
	"github.com/jacentio/salestrack/store"
)

func TestDeleteCampaign_TwiceSucceeds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cat := f.catalog(t)
	p := f.profile(t, u1)
	c := f.campaign(t, u1, p.ID, cat.ID)

	require.NoError(t, f.svc.DeleteCampaign(ctx, u1, c.ID))
	require.NoError(t, f.svc.DeleteCampaign(ctx, u1, c.ID))
	require.NoError(t, f.svc.DeleteCampaign(ctx, u1, "never-existed"))

	_, err := f.svc.GetCampaign(ctx, u1, c.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestDeleteCampaign_CascadesOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cat := f.catalog(t)
	p := f.profile(t, u1)
	c := f.campaign(t, u1, p.ID, cat.ID)

	o, err := f.svc.CreateOrder(ctx, u1, sales.OrderInput{
		CampaignID:    c.ID,
		Customer:      entity.Customer{CustomerName: "Pat"},
		LineItems:     []sales.LineItemInput{{ProductID: "kettle", Quantity: 1}},
		PaymentMethod: "cash",
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteCampaign(ctx, u1, c.ID))

	_, err = f.store.Get(ctx, entity.OrderKey(c.ID, o.ID))
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteCampaign_RequiresWrite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cat := f.catalog(t)
	p := f.profile(t, u1)
	c := f.campaign(t, u1, p.ID, cat.ID)

	_, err := f.shares.CreateShare(ctx, u1, p.ID, u2.AccountID, []entity.Permission{entity.PermissionRead})
	require.NoError(t, err)

	require.ErrorIs(t, f.svc.DeleteCampaign(ctx, u2, c.ID), errs.ErrForbidden)
	require.ErrorIs(t, f.svc.DeleteCampaign(ctx, u3, c.ID), errs.ErrNotFound)

	_, err = f.svc.GetCampaign(ctx, u2, c.ID)
	require.NoError(t, err)
}

func TestDeleteCampaign_StoreFailurePropagates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cat := f.catalog(t)
	p := f.profile(t, u1)
	c := f.campaign(t, u1, p.ID, cat.ID)

	f.store.FailNext(errors.New("throttled"))
	err := f.svc.DeleteCampaign(ctx, u1, c.ID)
	require.ErrorIs(t, err, store.ErrUnavailable)
	require.Equal(t, errs.KindStoreUnavailable, errs.KindOf(err))
}

func TestCreateCampaign_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cat := f.catalog(t)
	p := f.profile(t, u1)
	before := start.AddDate(0, 0, -1)

	tests := []struct {
		name string
		in   sales.CampaignInput
	}{
		{"empty name", sales.CampaignInput{ProfileID: p.ID, Year: 2025, StartDate: start, CatalogID: cat.ID}},
		{"no year", sales.CampaignInput{ProfileID: p.ID, Name: "x", StartDate: start, CatalogID: cat.ID}},
		{"no start", sales.CampaignInput{ProfileID: p.ID, Name: "x", Year: 2025, CatalogID: cat.ID}},
		{"end before start", sales.CampaignInput{ProfileID: p.ID, Name: "x", Year: 2025, StartDate: start, EndDate: &before, CatalogID: cat.ID}},
		{"unknown catalog", sales.CampaignInput{ProfileID: p.ID, Name: "x", Year: 2025, StartDate: start, CatalogID: "missing"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateCampaign(ctx, u1, tt.in)
			require.ErrorIs(t, err, errs.ErrValidation)
		})
	}
}

func TestCreateCampaign_PrivateCatalogOfAnotherAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.profile(t, u1)

	theirs, err := f.svc.CreateCatalog(ctx, u3, sales.CatalogInput{Name: "Mine"})
	require.NoError(t, err)

	_, err = f.svc.CreateCampaign(ctx, u1, sales.CampaignInput{ProfileID: p.ID, Name: "x", Year: 2025, StartDate: start, CatalogID: theirs.ID})
	require.ErrorIs(t, err, errs.ErrValidation)
}

func TestCreateCampaignFromPrefill_CatalogVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sig := entity.Signature{
		UnitSignature: entity.UnitSignature{UnitType: "Pack", UnitNumber: 9, City: "Normal", State: "IL"},
		SeasonName:    "Fall",
		SeasonYear:    2025,
	}

	secret, err := f.svc.CreateCatalog(ctx, u2, sales.CatalogInput{
		Name:     "Secret",
		Products: []entity.Product{{ID: "x", Name: "SecretItem", PriceCents: 777}},
	})
	require.NoError(t, err)
	require.False(t, secret.IsPublic)

	// rows written before catalog checks existed may still name a foreign catalog
	raw, err := entity.Encode(entity.Prefill{
		Code:             "LEGACY01",
		UnitSignature:    sig.UnitSignature,
		SeasonName:       sig.SeasonName,
		SeasonYear:       sig.SeasonYear,
		CatalogID:        secret.ID,
		CreatorAccountID: u1.AccountID,
		IsActive:         true,
	})
	require.NoError(t, err)
	require.NoError(t, f.store.Put(ctx, raw, store.WriteCondition{IfNotExists: true}))

	p3 := f.profile(t, u3)
	_, err = f.svc.CreateCampaignFromPrefill(ctx, u3, p3.ID, "LEGACY01", "")
	require.ErrorIs(t, err, errs.ErrValidation)
	campaigns, err := f.svc.ListCampaigns(ctx, u3, p3.ID)
	require.NoError(t, err)
	require.Empty(t, campaigns)

	// a creator may publish their own private catalog with the prefill
	own, err := f.svc.CreateCatalog(ctx, u1, sales.CatalogInput{
		Name:     "Pack 9 prices",
		Products: []entity.Product{{ID: "kettle", Name: "Kettle Corn", PriceCents: 1200}},
	})
	require.NoError(t, err)
	pf, err := f.prefills.Create(ctx, u1, prefill.CreateInput{Signature: sig, CatalogID: own.ID})
	require.NoError(t, err)

	c, err := f.svc.CreateCampaignFromPrefill(ctx, u3, p3.ID, pf.Code, "")
	require.NoError(t, err)
	require.Equal(t, own.ID, c.CatalogID)
}

func TestGetCampaignByShareCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cat := f.catalog(t)
	p := f.profile(t, u1)
	c := f.campaign(t, u1, p.ID, cat.ID)
	require.NotEmpty(t, c.ShareCode)

	got, err := f.svc.GetCampaignByShareCode(ctx, c.ShareCode)
	require.NoError(t, err)
	require.Equal(t, c.ID, got.ID)

	_, err = f.svc.GetCampaignByShareCode(ctx, "ZZZZZZZZ")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestUpdateAndListCampaigns(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cat := f.catalog(t)
	p := f.profile(t, u1)
	c := f.campaign(t, u1, p.ID, cat.ID)

	name := "Winter Sale"
	updated, err := f.svc.UpdateCampaign(ctx, u1, c.ID, sales.CampaignUpdate{Name: &name})
	require.NoError(t, err)
	require.Equal(t, name, updated.Name)
	require.Greater(t, updated.Version, c.Version)

	campaigns, err := f.svc.ListCampaigns(ctx, u1, p.ID)
	require.NoError(t, err)
	require.Len(t, campaigns, 1)
	require.Equal(t, name, campaigns[0].Name)

	_, err = f.svc.ListCampaigns(ctx, u3, p.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)
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

func TestDeleteCampaign_StaleIndexRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cat := f.catalog(t)
	p := f.profile(t, u1)
	c := f.campaign(t, u1, p.ID, cat.ID)

	partition := entity.EncodeKey(entity.TypeCampaign, c.ID)
	before, err := f.store.Query(ctx, store.Query{IndexName: entity.IndexByID, Partition: partition})
	require.NoError(t, err)
	require.Len(t, before, 1)
	require.NoError(t, f.svc.DeleteCampaign(ctx, u1, c.ID))

	lagging := &laggingIndex{Keyed: f.store, rows: map[string][]*store.Item{partition: before}}
	svc := sales.NewService(f.store, authz.NewResolver(f.store), lookup.NewResolver(lagging, nil), f.shares, f.prefills, nil)

	require.NoError(t, svc.DeleteCampaign(ctx, u1, c.ID))
	_, err = svc.GetCampaign(ctx, u1, c.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestCreateCampaign_ShareCodeCollision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cat := f.catalog(t)
	p := f.profile(t, u1)

	codes := []string{"AAAA2222", "AAAA2222", "BBBB3333"}
	f.svc.SetShareCodeGenerator(func() (string, error) {
		if len(codes) == 0 {
			return "AAAA2222", nil
		}
		code := codes[0]
		codes = codes[1:]
		return code, nil
	})

	first := f.campaign(t, u1, p.ID, cat.ID)
	second := f.campaign(t, u1, p.ID, cat.ID)
	require.Equal(t, "AAAA2222", first.ShareCode)
	require.Equal(t, "BBBB3333", second.ShareCode)

	got, err := f.svc.GetCampaignByShareCode(ctx, "BBBB3333")
	require.NoError(t, err)
	require.Equal(t, second.ID, got.ID)

	// only colliding codes remain
	_, err = f.svc.CreateCampaign(ctx, u1, sales.CampaignInput{ProfileID: p.ID, Name: "Spring", Year: 2026, StartDate: start, CatalogID: cat.ID})
	require.ErrorIs(t, err, errs.ErrConflict)

	got, err = f.svc.GetCampaignByShareCode(ctx, "AAAA2222")
	require.NoError(t, err)
	require.Equal(t, first.ID, got.ID)
}
