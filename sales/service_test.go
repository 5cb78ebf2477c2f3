package sales_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jacentio/salestrack/authz"
	"github.com/jacentio/salestrack/entity"
	"github.com/jacentio/salestrack/lookup"
	"github.com/jacentio/salestrack/prefill"
	"github.com/jacentio/salestrack/quota"
	"github.com/jacentio/salestrack/sales"
	"github.com/jacentio/salestrack/share"
	"github.com/jacentio/salestrack/store"
	"github.com/jacentio/salestrack/store/memstore"
)

var (
	u1    = authz.Caller{AccountID: "u1"}
	u2    = authz.Caller{AccountID: "u2"}
	u3    = authz.Caller{AccountID: "u3"}
	admin = authz.Caller{AccountID: "root", IsAdmin: true}

	start = time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
)

type fixture struct {
	store    *memstore.Store
	svc      *sales.Service
	shares   *share.Manager
	prefills *prefill.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := memstore.New(store.DefaultConfig())
	resolver := authz.NewResolver(s)
	shares := share.NewManager(s, resolver, nil, 0, nil)
	prefills := prefill.NewEngine(s, quota.NewEnforcer(s, nil, nil), nil, nil)
	svc := sales.NewService(s, resolver, lookup.NewResolver(s, nil), shares, prefills, nil)

	n := 0
	svc.SetIDGenerator(func() string {
		n++
		return fmt.Sprintf("id%03d", n)
	})
	return &fixture{store: s, svc: svc, shares: shares, prefills: prefills}
}

func (f *fixture) catalog(t *testing.T) entity.Catalog {
	t.Helper()
	cat, err := f.svc.CreateCatalog(context.Background(), admin, sales.CatalogInput{
		Name:     "Popcorn 2025",
		IsPublic: true,
		Products: []entity.Product{
			{ID: "caramel", Name: "Caramel Corn", PriceCents: 2000},
			{ID: "kettle", Name: "Kettle Corn", PriceCents: 1500},
		},
	})
	require.NoError(t, err)
	return cat
}

func (f *fixture) profile(t *testing.T, owner authz.Caller) entity.Profile {
	t.Helper()
	p, err := f.svc.CreateProfile(context.Background(), owner, "Scout")
	require.NoError(t, err)
	return p
}

func (f *fixture) campaign(t *testing.T, caller authz.Caller, profileID, catalogID string) entity.Campaign {
	t.Helper()
	c, err := f.svc.CreateCampaign(context.Background(), caller, sales.CampaignInput{
		ProfileID: profileID,
		Name:      "Fall Sale",
		Year:      2025,
		StartDate: start,
		CatalogID: catalogID,
	})
	require.NoError(t, err)
	return c
}
