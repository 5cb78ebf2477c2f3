package sales

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/jacentio/salestrack/authz"
	"github.com/jacentio/salestrack/entity"
	"github.com/jacentio/salestrack/errs"
	"github.com/jacentio/salestrack/store"
)

// EnsureAccount returns the caller's account, creating it on first sight
// from the identity provider's claims. The admin flag always follows the claim.
func (s *Service) EnsureAccount(ctx context.Context, caller authz.Caller, email, displayName string) (entity.Account, error) {
	key := entity.AccountKey(caller.AccountID)
	acct, err := load[entity.Account](ctx, s.store, key, "account")
	switch {
	case err == nil:
		if acct.IsAdmin == caller.IsAdmin {
			return acct, nil
		}
		acct.IsAdmin = caller.IsAdmin
		return save(ctx, s.store, acct, store.WriteCondition{IfVersion: acct.Version}, "account")
	case !errors.Is(err, errs.ErrNotFound):
		return entity.Account{}, err
	}

	acct = entity.Account{
		ID:          entity.NormalizeID(entity.TypeAccount, caller.AccountID),
		Email:       strings.TrimSpace(email),
		DisplayName: strings.TrimSpace(displayName),
		IsAdmin:     caller.IsAdmin,
	}
	created, err := save(ctx, s.store, acct, store.WriteCondition{IfNotExists: true}, "account")
	if errors.Is(err, errs.ErrConflict) {
		// lost a first-login race; the winner's row is just as good
		return load[entity.Account](ctx, s.store, key, "account")
	}
	if err != nil {
		return entity.Account{}, err
	}
	s.logger.Info("account created", "accountID", created.ID)
	return created, nil
}

// GetAccount returns the caller's account.
func (s *Service) GetAccount(ctx context.Context, caller authz.Caller) (entity.Account, error) {
	return load[entity.Account](ctx, s.store, entity.AccountKey(caller.AccountID), "account")
}

// UpdateAccount changes the caller's display name.
func (s *Service) UpdateAccount(ctx context.Context, caller authz.Caller, displayName string) (entity.Account, error) {
	name, err := validateName("display name", displayName, MaxNameLength)
	if err != nil {
		return entity.Account{}, err
	}
	acct, err := s.GetAccount(ctx, caller)
	if err != nil {
		return entity.Account{}, err
	}
	acct.DisplayName = name
	return save(ctx, s.store, acct, store.WriteCondition{IfVersion: acct.Version}, "account")
}

// UpdatePreferences replaces the caller's preferences document.
func (s *Service) UpdatePreferences(ctx context.Context, caller authz.Caller, preferences string) (entity.Account, error) {
	if preferences != "" && !json.Valid([]byte(preferences)) {
		return entity.Account{}, errs.Validation("preferences must be a JSON document")
	}
	acct, err := s.GetAccount(ctx, caller)
	if err != nil {
		return entity.Account{}, err
	}
	acct.Preferences = preferences
	return save(ctx, s.store, acct, store.WriteCondition{IfVersion: acct.Version}, "account")
}
