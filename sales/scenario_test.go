package sales_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jacentio/salestrack/entity"
	"github.com/jacentio/salestrack/errs"
	"github.com/jacentio/salestrack/prefill"
	"github.com/jacentio/salestrack/sales"
)

func TestScenario_ShareUpgradeUnlocksCampaignCreation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cat := f.catalog(t)

	p1 := f.profile(t, u1)

	_, err := f.shares.CreateShare(ctx, u1, p1.ID, u2.AccountID, []entity.Permission{entity.PermissionRead})
	require.NoError(t, err)

	in := sales.CampaignInput{ProfileID: p1.ID, Name: "C1", Year: 2025, StartDate: start, CatalogID: cat.ID}

	_, err = f.svc.CreateCampaign(ctx, u2, in)
	require.ErrorIs(t, err, errs.ErrForbidden)

	_, err = f.shares.UpdateShare(ctx, u1, p1.ID, u2.AccountID, []entity.Permission{entity.PermissionWrite})
	require.NoError(t, err)

	c1, err := f.svc.CreateCampaign(ctx, u2, in)
	require.NoError(t, err)
	require.Equal(t, p1.ID, c1.ProfileID)

	got, err := f.svc.GetCampaign(ctx, u1, c1.ID)
	require.NoError(t, err)
	require.Equal(t, "C1", got.Name)
}

func TestScenario_PrefillDiscoveryAndConsumption(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cat := f.catalog(t)

	sig := entity.Signature{
		UnitSignature: entity.UnitSignature{UnitType: "Pack", UnitNumber: 123, City: "Springfield", State: "IL"},
		SeasonName:    "Fall",
		SeasonYear:    2025,
	}
	created, err := f.prefills.Create(ctx, u1, prefill.CreateInput{Signature: sig, CatalogID: cat.ID})
	require.NoError(t, err)

	matches, err := f.prefills.FindMatches(ctx, sig)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, created.Code, matches[0].Code)
	require.Equal(t, u1.AccountID, matches[0].CreatorAccountID)

	resolved, err := f.prefills.ResolveCode(ctx, matches[0].Code)
	require.NoError(t, err)
	require.NotNil(t, resolved)

	p3 := f.profile(t, u3)
	c, err := f.svc.CreateCampaignFromPrefill(ctx, u3, p3.ID, resolved.Code, "")
	require.NoError(t, err)
	require.Equal(t, cat.ID, c.CatalogID)
	require.Equal(t, sig.UnitSignature, c.UnitSignature)
	require.Equal(t, 2025, c.Year)
	require.Equal(t, "Fall", c.Name)
	require.Equal(t, created.Code, c.PrefillCode)
}

func TestCreateCampaignFromPrefill_Inactive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cat := f.catalog(t)

	sig := entity.Signature{
		UnitSignature: entity.UnitSignature{UnitType: "Troop", UnitNumber: 7, City: "Ames", State: "IA"},
		SeasonName:    "Spring",
		SeasonYear:    2026,
	}
	pf, err := f.prefills.Create(ctx, u1, prefill.CreateInput{Signature: sig, CatalogID: cat.ID})
	require.NoError(t, err)
	_, err = f.prefills.Deactivate(ctx, u1, pf.Code)
	require.NoError(t, err)

	p3 := f.profile(t, u3)
	_, err = f.svc.CreateCampaignFromPrefill(ctx, u3, p3.ID, pf.Code, "")
	require.ErrorIs(t, err, errs.ErrNotFound)
}
