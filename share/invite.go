package share

import (
	"context"
	"errors"
	"strings"

	"github.com/jacentio/salestrack/authz"
	"github.com/jacentio/salestrack/entity"
	"github.com/jacentio/salestrack/errs"
	"github.com/jacentio/salestrack/store"
)

// CreateInvite issues a single-use code granting perms on the caller's profile.
func (m *Manager) CreateInvite(ctx context.Context, caller authz.Caller, profileID string, perms []entity.Permission) (entity.Invite, error) {
	perms, err := normalizePermissions(perms)
	if err != nil {
		return entity.Invite{}, err
	}
	profile, err := m.authz.RequireOwner(ctx, caller, profileID)
	if err != nil {
		return entity.Invite{}, err
	}

	inv := entity.Invite{
		ProfileID:   profile.ID,
		Permissions: perms,
		CreatedBy:   caller.AccountID,
		ExpiresAt:   m.now().UTC().Add(m.inviteTTL),
	}
	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		inv.Code, err = m.codes()
		if err != nil {
			return entity.Invite{}, err
		}
		raw, err := entity.Encode(inv)
		if err != nil {
			return entity.Invite{}, err
		}
		err = m.store.Put(ctx, raw, store.WriteCondition{IfNotExists: true})
		if errors.Is(err, store.ErrAlreadyExists) {
			continue
		}
		if err != nil {
			return entity.Invite{}, err
		}
		m.logger.Info("invite created", "profileID", profile.ID, "expiresAt", inv.ExpiresAt)
		return entity.Unmarshal[entity.Invite](store.UnmarshalItem(raw))
	}
	return entity.Invite{}, errs.Conflict("could not allocate a unique invite code after %d attempts", maxCodeAttempts)
}

// RedeemInvite turns an invite into a share for the caller and consumes it.
//
// Unknown codes fail with InviteNotFound; used or expired codes fail with
// InviteExpired. When the caller already holds a grant on the profile the
// permissions are merged. Marking the invite used and writing the share
// happen in one transaction, so a code is never redeemed twice.
func (m *Manager) RedeemInvite(ctx context.Context, caller authz.Caller, code string) (entity.Share, error) {
	code = entity.NormalizeID(entity.TypeInvite, strings.ToUpper(code))
	if code == "" {
		return entity.Share{}, errs.New(errs.KindInviteNotFound, "invite code is required")
	}
	item, err := m.store.Get(ctx, entity.InviteKey(code))
	if errors.Is(err, store.ErrNotFound) {
		return entity.Share{}, errs.New(errs.KindInviteNotFound, "invite %s not found", code)
	}
	if err != nil {
		return entity.Share{}, err
	}
	inv, err := entity.Unmarshal[entity.Invite](item)
	if err != nil {
		return entity.Share{}, err
	}

	now := m.now()
	if inv.UsedBy != "" {
		return entity.Share{}, errs.New(errs.KindInviteExpired, "invite %s was already used", code)
	}
	if !now.Before(inv.ExpiresAt) {
		return entity.Share{}, errs.New(errs.KindInviteExpired, "invite %s expired at %s", code, inv.ExpiresAt.Format("2006-01-02 15:04"))
	}

	pitem, err := m.store.Get(ctx, entity.ProfileKey(inv.ProfileID))
	if errors.Is(err, store.ErrNotFound) {
		return entity.Share{}, errs.New(errs.KindInviteNotFound, "invite %s refers to a deleted profile", code)
	}
	if err != nil {
		return entity.Share{}, err
	}
	profile, err := entity.Unmarshal[entity.Profile](pitem)
	if err != nil {
		return entity.Share{}, err
	}
	if authz.IsOwner(caller, profile) {
		return entity.Share{}, errs.Validation("cannot redeem an invite to your own profile")
	}

	s := entity.Share{
		ProfileID:        profile.ID,
		GranteeAccountID: caller.AccountID,
		Permissions:      inv.Permissions,
		ProfileName:      profile.SellerName,
		OwnerAccountID:   profile.OwnerAccountID,
	}
	shareCond := store.WriteCondition{IfNotExists: true}
	existing, err := m.get(ctx, profile.ID, caller.AccountID)
	switch {
	case err == nil:
		s.Permissions = union(existing.Permissions, inv.Permissions)
		s.Meta = existing.Meta
		shareCond = store.WriteCondition{IfVersion: existing.Version}
	case !errors.Is(err, errs.ErrNotFound):
		return entity.Share{}, err
	}

	usedAt := now.UTC()
	inv.UsedBy = caller.AccountID
	inv.UsedAt = &usedAt

	invRaw, err := entity.Encode(inv)
	if err != nil {
		return entity.Share{}, err
	}
	shareRaw, err := entity.Encode(s)
	if err != nil {
		return entity.Share{}, err
	}

	err = m.store.Transact(ctx, []store.Write{
		{Put: invRaw, Condition: store.WriteCondition{IfVersion: inv.Version}},
		{Put: shareRaw, Condition: shareCond},
	})
	var txErr *store.TxConditionError
	if errors.As(err, &txErr) {
		if txErr.Index == 0 {
			return entity.Share{}, errs.Wrap(errs.KindInviteExpired, err, "invite %s was already used", code)
		}
		return entity.Share{}, errs.Wrap(errs.KindConflict, err, "share changed while redeeming invite %s", code)
	}
	if err != nil {
		return entity.Share{}, err
	}

	m.logger.Info("invite redeemed", "profileID", profile.ID, "grantee", caller.AccountID, "permissions", s.Permissions)
	return entity.Unmarshal[entity.Share](store.UnmarshalItem(shareRaw))
}

// ListInvites returns the invites issued for a profile. Owner only.
// Backed by a secondary index.
func (m *Manager) ListInvites(ctx context.Context, caller authz.Caller, profileID string) ([]entity.Invite, error) {
	profile, err := m.authz.RequireOwner(ctx, caller, profileID)
	if err != nil {
		return nil, err
	}
	items, err := m.store.Query(ctx, store.Query{
		IndexName:  entity.IndexByAttribute,
		Partition:  entity.EncodeKey(entity.TypeProfile, profile.ID),
		SortPrefix: entity.SortPrefix(entity.TypeInvite),
	})
	if err != nil {
		return nil, err
	}
	return entity.UnmarshalAll[entity.Invite](items)
}

// DeleteInvite withdraws an invite. Deleting an unknown invite succeeds.
func (m *Manager) DeleteInvite(ctx context.Context, caller authz.Caller, code string) error {
	code = entity.NormalizeID(entity.TypeInvite, strings.ToUpper(code))
	item, err := m.store.Get(ctx, entity.InviteKey(code))
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	inv, err := entity.Unmarshal[entity.Invite](item)
	if err != nil {
		return err
	}
	if _, err := m.authz.RequireOwner(ctx, caller, inv.ProfileID); err != nil {
		return err
	}
	return m.store.Delete(ctx, item.Key)
}
