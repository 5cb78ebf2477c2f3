package share_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jacentio/salestrack/authz"
	"github.com/jacentio/salestrack/entity"
	"github.com/jacentio/salestrack/errs"
	"github.com/jacentio/salestrack/share"
	"github.com/jacentio/salestrack/store"
	"github.com/jacentio/salestrack/store/memstore"
)

var (
	owner    = authz.Caller{AccountID: "u1"}
	grantee  = authz.Caller{AccountID: "u2"}
	stranger = authz.Caller{AccountID: "u9"}

	read  = []entity.Permission{entity.PermissionRead}
	write = []entity.Permission{entity.PermissionWrite}
)

func setup(t *testing.T) (*memstore.Store, *share.Manager) {
	t.Helper()
	s := memstore.New(store.DefaultConfig())
	raw, err := entity.Encode(entity.Profile{ID: "p1", OwnerAccountID: "u1", SellerName: "Scout"})
	require.NoError(t, err)
	require.NoError(t, s.Put(context.Background(), raw, store.WriteCondition{IfNotExists: true}))
	return s, share.NewManager(s, authz.NewResolver(s), nil, 0, nil)
}

func TestCreateShare(t *testing.T) {
	_, m := setup(t)
	ctx := context.Background()

	s, err := m.CreateShare(ctx, owner, "p1", "u2", read)
	require.NoError(t, err)
	require.Equal(t, "Scout", s.ProfileName)
	require.Equal(t, "u1", s.OwnerAccountID)

	_, err = m.CreateShare(ctx, owner, "p1", "ACCOUNT#u2", write)
	require.ErrorIs(t, err, errs.ErrConflict)
}

func TestCreateShare_Validation(t *testing.T) {
	_, m := setup(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		grantee string
		perms   []entity.Permission
	}{
		{"empty permissions", "u2", nil},
		{"unknown permission", "u2", []entity.Permission{"ADMIN"}},
		{"no grantee", "", read},
		{"owner as grantee", "u1", read},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.CreateShare(ctx, owner, "p1", tt.grantee, tt.perms)
			require.ErrorIs(t, err, errs.ErrValidation)
		})
	}
}

func TestCreateShare_OwnerOnly(t *testing.T) {
	_, m := setup(t)
	ctx := context.Background()

	_, err := m.CreateShare(ctx, owner, "p1", "u2", write)
	require.NoError(t, err)

	// a WRITE grantee still cannot re-share
	_, err = m.CreateShare(ctx, grantee, "p1", "u3", read)
	require.ErrorIs(t, err, errs.ErrForbidden)

	_, err = m.CreateShare(ctx, stranger, "p1", "u3", read)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestUpdateShare(t *testing.T) {
	_, m := setup(t)
	ctx := context.Background()

	_, err := m.UpdateShare(ctx, owner, "p1", "u2", write)
	require.ErrorIs(t, err, errs.ErrNotFound)

	_, err = m.CreateShare(ctx, owner, "p1", "u2", read)
	require.NoError(t, err)

	s, err := m.UpdateShare(ctx, owner, "p1", "u2", write)
	require.NoError(t, err)
	require.True(t, s.Has(entity.PermissionWrite))
}

func TestRevokeShare_Idempotent(t *testing.T) {
	s, m := setup(t)
	ctx := context.Background()

	require.NoError(t, m.RevokeShare(ctx, owner, "p1", "nobody"))

	_, err := m.CreateShare(ctx, owner, "p1", "u2", read)
	require.NoError(t, err)
	require.NoError(t, m.RevokeShare(ctx, owner, "p1", "u2"))
	require.NoError(t, m.RevokeShare(ctx, owner, "p1", "u2"))

	level, err := authz.NewResolver(s).Resolve(ctx, "u2", entity.Profile{ID: "p1", OwnerAccountID: "u1"})
	require.NoError(t, err)
	require.Equal(t, authz.None, level)
}

func TestListings(t *testing.T) {
	_, m := setup(t)
	ctx := context.Background()

	_, err := m.CreateShare(ctx, owner, "p1", "u2", read)
	require.NoError(t, err)
	_, err = m.CreateShare(ctx, owner, "p1", "u3", write)
	require.NoError(t, err)

	mine, err := m.ListMyShares(ctx, grantee)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, "Scout", mine[0].ProfileName)

	audience, err := m.ListProfileShares(ctx, owner, "p1")
	require.NoError(t, err)
	require.Len(t, audience, 2)

	_, err = m.ListProfileShares(ctx, grantee, "p1")
	require.ErrorIs(t, err, errs.ErrForbidden)
}

func TestRefreshProfileName(t *testing.T) {
	_, m := setup(t)
	ctx := context.Background()

	_, err := m.CreateShare(ctx, owner, "p1", "u2", read)
	require.NoError(t, err)

	require.NoError(t, m.RefreshProfileName(ctx, entity.Profile{ID: "p1", OwnerAccountID: "u1", SellerName: "Scout Jr"}))

	mine, err := m.ListMyShares(ctx, grantee)
	require.NoError(t, err)
	require.Equal(t, "Scout Jr", mine[0].ProfileName)
}

func TestRedeemInvite(t *testing.T) {
	_, m := setup(t)
	ctx := context.Background()

	inv, err := m.CreateInvite(ctx, owner, "p1", read)
	require.NoError(t, err)
	require.Len(t, inv.Code, share.InviteCodeLength)

	s, err := m.RedeemInvite(ctx, grantee, inv.Code)
	require.NoError(t, err)
	require.Equal(t, "u2", s.GranteeAccountID)
	require.True(t, s.Has(entity.PermissionRead))

	_, err = m.RedeemInvite(ctx, authz.Caller{AccountID: "u3"}, inv.Code)
	require.ErrorIs(t, err, errs.ErrInviteExpired)
}

func TestRedeemInvite_MergesExistingShare(t *testing.T) {
	_, m := setup(t)
	ctx := context.Background()

	_, err := m.CreateShare(ctx, owner, "p1", "u2", read)
	require.NoError(t, err)
	inv, err := m.CreateInvite(ctx, owner, "p1", write)
	require.NoError(t, err)

	s, err := m.RedeemInvite(ctx, grantee, inv.Code)
	require.NoError(t, err)
	require.ElementsMatch(t, []entity.Permission{entity.PermissionRead, entity.PermissionWrite}, s.Permissions)
}

func TestRedeemInvite_Errors(t *testing.T) {
	_, m := setup(t)
	ctx := context.Background()
	start := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	m.SetClock(func() time.Time { return start })

	inv, err := m.CreateInvite(ctx, owner, "p1", read)
	require.NoError(t, err)

	_, err = m.RedeemInvite(ctx, grantee, "UNKNOWN234")
	require.ErrorIs(t, err, errs.ErrInviteNotFound)

	_, err = m.RedeemInvite(ctx, owner, inv.Code)
	require.ErrorIs(t, err, errs.ErrValidation)

	m.SetClock(func() time.Time { return start.Add(share.DefaultInviteTTL) })
	_, err = m.RedeemInvite(ctx, grantee, inv.Code)
	require.ErrorIs(t, err, errs.ErrInviteExpired)
	require.False(t, errors.Is(err, errs.ErrInviteNotFound))
}

func TestInvites_ListAndDelete(t *testing.T) {
	_, m := setup(t)
	ctx := context.Background()

	inv, err := m.CreateInvite(ctx, owner, "p1", read)
	require.NoError(t, err)

	invites, err := m.ListInvites(ctx, owner, "p1")
	require.NoError(t, err)
	require.Len(t, invites, 1)

	require.ErrorIs(t, m.DeleteInvite(ctx, grantee, inv.Code), errs.ErrNotFound)
	require.NoError(t, m.DeleteInvite(ctx, owner, inv.Code))
	require.NoError(t, m.DeleteInvite(ctx, owner, inv.Code))

	_, err = m.RedeemInvite(ctx, grantee, inv.Code)
	require.ErrorIs(t, err, errs.ErrInviteNotFound)
}
