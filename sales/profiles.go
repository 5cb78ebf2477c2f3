package sales

import (
	"context"
	"fmt"

	"github.com/jacentio/salestrack/authz"
	"github.com/jacentio/salestrack/entity"
	"github.com/jacentio/salestrack/store"
)

// CreateProfile creates a profile owned by the caller.
func (s *Service) CreateProfile(ctx context.Context, caller authz.Caller, sellerName string) (entity.Profile, error) {
	name, err := validateName("seller name", sellerName, MaxNameLength)
	if err != nil {
		return entity.Profile{}, err
	}
	p := entity.Profile{
		ID:             s.newID(),
		OwnerAccountID: entity.NormalizeID(entity.TypeAccount, caller.AccountID),
		SellerName:     name,
	}
	p, err = save(ctx, s.store, p, store.WriteCondition{IfNotExists: true}, "profile")
	if err != nil {
		return entity.Profile{}, err
	}
	s.logger.Info("profile created", "profileID", p.ID, "owner", p.OwnerAccountID)
	return p, nil
}

// GetProfile returns a profile the caller can read.
func (s *Service) GetProfile(ctx context.Context, caller authz.Caller, profileID string) (entity.Profile, error) {
	return s.authz.Require(ctx, caller, profileID, authz.Read)
}

// ListMyProfiles returns the profiles the caller owns.
func (s *Service) ListMyProfiles(ctx context.Context, caller authz.Caller) ([]entity.Profile, error) {
	return list[entity.Profile](ctx, s.store, store.Query{
		IndexName:  entity.IndexByAccount,
		Partition:  entity.EncodeKey(entity.TypeAccount, caller.AccountID),
		SortPrefix: entity.SortPrefix(entity.TypeProfile),
	})
}

// ListSharedProfiles returns the grants other owners gave the caller.
func (s *Service) ListSharedProfiles(ctx context.Context, caller authz.Caller) ([]entity.Share, error) {
	return s.shares.ListMyShares(ctx, caller)
}

// UpdateProfile renames a profile and refreshes the name copied onto its shares.
// The rename is saved before the shares are refreshed. When the refresh fails
// the error is returned and calling again with the same name completes it.
func (s *Service) UpdateProfile(ctx context.Context, caller authz.Caller, profileID, sellerName string) (entity.Profile, error) {
	name, err := validateName("seller name", sellerName, MaxNameLength)
	if err != nil {
		return entity.Profile{}, err
	}
	p, err := s.authz.Require(ctx, caller, profileID, authz.Write)
	if err != nil {
		return entity.Profile{}, err
	}
	if p.SellerName != name {
		p.SellerName = name
		p, err = save(ctx, s.store, p, store.WriteCondition{IfVersion: p.Version}, "profile")
		if err != nil {
			return entity.Profile{}, err
		}
	}
	if err := s.shares.RefreshProfileName(ctx, p); err != nil {
		s.logger.Warn("profile renamed but share names are stale", "profileID", p.ID, "error", err)
		return entity.Profile{}, fmt.Errorf("refresh share names: %w", err)
	}
	return p, nil
}

// DeleteProfile deletes a profile with its campaigns, orders, shares,
// payment methods and pending invites. Owner only.
func (s *Service) DeleteProfile(ctx context.Context, caller authz.Caller, profileID string) error {
	p, err := s.authz.RequireOwner(ctx, caller, profileID)
	if err != nil {
		return err
	}

	invites, err := list[entity.Invite](ctx, s.store, store.Query{
		IndexName:  entity.IndexByAttribute,
		Partition:  entity.EncodeKey(entity.TypeProfile, p.ID),
		SortPrefix: entity.SortPrefix(entity.TypeInvite),
	})
	if err != nil {
		return err
	}
	for _, inv := range invites {
		if err := s.store.Delete(ctx, inv.Key()); err != nil {
			return err
		}
	}

	n, err := store.DeletePartition(ctx, s.store, s.registry, entity.EncodeKey(entity.TypeProfile, p.ID))
	if err != nil {
		return err
	}
	s.logger.Info("profile deleted", "profileID", p.ID, "itemsDeleted", n, "invitesDeleted", len(invites))
	return nil
}
