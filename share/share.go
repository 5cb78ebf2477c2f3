// Package share manages permission grants on profiles and the single-use
// invite codes that create them.
package share

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/jacentio/salestrack/authz"
	"github.com/jacentio/salestrack/entity"
	"github.com/jacentio/salestrack/errs"
	"github.com/jacentio/salestrack/internal/randcode"
	"github.com/jacentio/salestrack/store"
)

const (
	// InviteCodeLength is the length of generated invite codes.
	InviteCodeLength = 10

	// DefaultInviteTTL is how long an invite stays redeemable.
	DefaultInviteTTL = 14 * 24 * time.Hour

	maxCodeAttempts = 5
)

// Manager implements share and invite operations.
type Manager struct {
	store     store.Keyed
	authz     *authz.Resolver
	codes     randcode.Generator
	inviteTTL time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// NewManager creates a Manager. Zero inviteTTL and nil codes use the defaults.
func NewManager(k store.Keyed, resolver *authz.Resolver, codes randcode.Generator, inviteTTL time.Duration, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if codes == nil {
		codes = randcode.Of(InviteCodeLength)
	}
	if inviteTTL <= 0 {
		inviteTTL = DefaultInviteTTL
	}
	return &Manager{
		store:     k,
		authz:     resolver,
		codes:     codes,
		inviteTTL: inviteTTL,
		now:       time.Now,
		logger:    logger,
	}
}

// SetClock overrides the manager's time source.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

// normalizePermissions validates and dedupes a permission set.
func normalizePermissions(perms []entity.Permission) ([]entity.Permission, error) {
	if len(perms) == 0 {
		return nil, errs.Validation("at least one permission is required")
	}
	seen := map[entity.Permission]bool{}
	out := make([]entity.Permission, 0, len(perms))
	for _, p := range perms {
		p = entity.Permission(strings.ToUpper(strings.TrimSpace(string(p))))
		if !p.Valid() {
			return nil, errs.Validation("unknown permission %q", p)
		}
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func union(a, b []entity.Permission) []entity.Permission {
	merged, _ := normalizePermissions(append(append([]entity.Permission{}, a...), b...))
	return merged
}

// CreateShare grants grantee access to the caller's profile.
// An existing grant for the pair is a Conflict; use UpdateShare instead.
func (m *Manager) CreateShare(ctx context.Context, caller authz.Caller, profileID, granteeID string, perms []entity.Permission) (entity.Share, error) {
	perms, err := normalizePermissions(perms)
	if err != nil {
		return entity.Share{}, err
	}
	granteeID = entity.NormalizeID(entity.TypeAccount, granteeID)
	if granteeID == "" {
		return entity.Share{}, errs.Validation("grantee account is required")
	}

	profile, err := m.authz.RequireOwner(ctx, caller, profileID)
	if err != nil {
		return entity.Share{}, err
	}
	if granteeID == profile.OwnerAccountID {
		return entity.Share{}, errs.Validation("cannot share a profile with its owner")
	}

	s := entity.Share{
		ProfileID:        profile.ID,
		GranteeAccountID: granteeID,
		Permissions:      perms,
		ProfileName:      profile.SellerName,
		OwnerAccountID:   profile.OwnerAccountID,
	}
	s, err = m.write(ctx, s, store.WriteCondition{IfNotExists: true})
	if err != nil {
		return entity.Share{}, err
	}
	m.logger.Info("share created", "profileID", profile.ID, "grantee", granteeID, "permissions", perms)
	return s, nil
}

// UpdateShare replaces the permission set of an existing grant.
func (m *Manager) UpdateShare(ctx context.Context, caller authz.Caller, profileID, granteeID string, perms []entity.Permission) (entity.Share, error) {
	perms, err := normalizePermissions(perms)
	if err != nil {
		return entity.Share{}, err
	}
	profile, err := m.authz.RequireOwner(ctx, caller, profileID)
	if err != nil {
		return entity.Share{}, err
	}

	s, err := m.get(ctx, profile.ID, granteeID)
	if err != nil {
		return entity.Share{}, err
	}
	s.Permissions = perms
	s.ProfileName = profile.SellerName
	s, err = m.write(ctx, s, store.WriteCondition{IfVersion: s.Version})
	if err != nil {
		return entity.Share{}, err
	}
	m.logger.Info("share updated", "profileID", profile.ID, "grantee", s.GranteeAccountID, "permissions", perms)
	return s, nil
}

// RevokeShare removes a grant. Revoking a grant that does not exist succeeds.
func (m *Manager) RevokeShare(ctx context.Context, caller authz.Caller, profileID, granteeID string) error {
	profile, err := m.authz.RequireOwner(ctx, caller, profileID)
	if err != nil {
		return err
	}
	if err := m.store.Delete(ctx, entity.ShareKey(profile.ID, granteeID)); err != nil {
		return err
	}
	m.logger.Info("share revoked", "profileID", profile.ID, "grantee", entity.NormalizeID(entity.TypeAccount, granteeID))
	return nil
}

// ListMyShares returns the grants the caller holds on other accounts'
// profiles. Each share carries the profile name and owner, so no profile
// reads are needed to render the list. Backed by a secondary index.
func (m *Manager) ListMyShares(ctx context.Context, caller authz.Caller) ([]entity.Share, error) {
	items, err := m.store.Query(ctx, store.Query{
		IndexName:  entity.IndexByAccount,
		Partition:  entity.EncodeKey(entity.TypeAccount, caller.AccountID),
		SortPrefix: entity.SortPrefix(entity.TypeShare),
	})
	if err != nil {
		return nil, err
	}
	return entity.UnmarshalAll[entity.Share](items)
}

// ListProfileShares returns the audience of a profile. Owner only.
func (m *Manager) ListProfileShares(ctx context.Context, caller authz.Caller, profileID string) ([]entity.Share, error) {
	profile, err := m.authz.RequireOwner(ctx, caller, profileID)
	if err != nil {
		return nil, err
	}
	items, err := m.store.Query(ctx, store.Query{
		Partition:      entity.EncodeKey(entity.TypeProfile, profile.ID),
		SortPrefix:     entity.SortPrefix(entity.TypeShare),
		ConsistentRead: true,
	})
	if err != nil {
		return nil, err
	}
	return entity.UnmarshalAll[entity.Share](items)
}

// RefreshProfileName rewrites the denormalized profile name on every grant.
func (m *Manager) RefreshProfileName(ctx context.Context, profile entity.Profile) error {
	items, err := m.store.Query(ctx, store.Query{
		Partition:      entity.EncodeKey(entity.TypeProfile, profile.ID),
		SortPrefix:     entity.SortPrefix(entity.TypeShare),
		ConsistentRead: true,
	})
	if err != nil {
		return err
	}
	shares, err := entity.UnmarshalAll[entity.Share](items)
	if err != nil {
		return err
	}
	for _, s := range shares {
		if s.ProfileName == profile.SellerName {
			continue
		}
		s.ProfileName = profile.SellerName
		if _, err := m.write(ctx, s, store.WriteCondition{IfVersion: s.Version}); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) get(ctx context.Context, profileID, granteeID string) (entity.Share, error) {
	item, err := m.store.Get(ctx, entity.ShareKey(profileID, granteeID))
	if err != nil {
		return entity.Share{}, errs.FromStore(err, "share")
	}
	return entity.Unmarshal[entity.Share](item)
}

func (m *Manager) write(ctx context.Context, s entity.Share, cond store.WriteCondition) (entity.Share, error) {
	raw, err := entity.Encode(s)
	if err != nil {
		return entity.Share{}, err
	}
	if err := m.store.Put(ctx, raw, cond); err != nil {
		return entity.Share{}, errs.FromStore(err, "share")
	}
	return entity.Unmarshal[entity.Share](store.UnmarshalItem(raw))
}
