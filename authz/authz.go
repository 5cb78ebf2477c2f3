// Package authz decides what a caller may do with a profile and everything
// scoped under it (campaigns, orders, payment methods, shares).
package authz

import (
	"context"
	"errors"

	"github.com/jacentio/salestrack/entity"
	"github.com/jacentio/salestrack/errs"
	"github.com/jacentio/salestrack/store"
)

// Level is a caller's effective permission on a profile.
type Level int

const (
	None Level = iota
	Read
	Write
)

func (l Level) String() string {
	switch l {
	case Read:
		return "READ"
	case Write:
		return "WRITE"
	}
	return "NONE"
}

// Caller is the verified identity supplied by the identity provider.
type Caller struct {
	AccountID string
	IsAdmin   bool
}

type callerKey struct{}

// WithCaller attaches the caller to ctx.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFrom returns the caller attached to ctx.
func CallerFrom(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(Caller)
	return c, ok && c.AccountID != ""
}

// Resolver computes effective permissions from ownership and share rows.
type Resolver struct {
	store store.Keyed
}

// NewResolver creates a Resolver reading from k.
func NewResolver(k store.Keyed) *Resolver {
	return &Resolver{store: k}
}

// Resolve returns WRITE for the owner, the strongest permission of the
// caller's share otherwise, and None without a share. A missing share is not
// an error; only store failures are.
func (r *Resolver) Resolve(ctx context.Context, callerID string, p entity.Profile) (Level, error) {
	callerID = entity.NormalizeID(entity.TypeAccount, callerID)
	if callerID == "" {
		return None, nil
	}
	if entity.NormalizeID(entity.TypeAccount, p.OwnerAccountID) == callerID {
		return Write, nil
	}

	item, err := r.store.Get(ctx, entity.ShareKey(p.ID, callerID))
	if errors.Is(err, store.ErrNotFound) {
		return None, nil
	}
	if err != nil {
		return None, err
	}
	share, err := entity.Unmarshal[entity.Share](item)
	if err != nil {
		return None, err
	}

	switch {
	case share.Has(entity.PermissionWrite):
		return Write, nil
	case share.Has(entity.PermissionRead):
		return Read, nil
	}
	return None, nil
}

// ResolveProfile loads the profile and resolves the caller against it.
// A missing profile yields found == false with level None.
func (r *Resolver) ResolveProfile(ctx context.Context, callerID, profileID string) (p entity.Profile, level Level, found bool, err error) {
	item, err := r.store.Get(ctx, entity.ProfileKey(profileID))
	if errors.Is(err, store.ErrNotFound) {
		return entity.Profile{}, None, false, nil
	}
	if err != nil {
		return entity.Profile{}, None, false, err
	}
	p, err = entity.Unmarshal[entity.Profile](item)
	if err != nil {
		return entity.Profile{}, None, false, err
	}
	level, err = r.Resolve(ctx, callerID, p)
	return p, level, true, err
}

// Require loads the profile and fails unless the caller holds need.
//
// A caller without any access sees the same NotFound as for a missing
// profile, so existence never leaks. A caller who can read but needs to
// write gets Forbidden.
func (r *Resolver) Require(ctx context.Context, c Caller, profileID string, need Level) (entity.Profile, error) {
	p, level, found, err := r.ResolveProfile(ctx, c.AccountID, profileID)
	if err != nil {
		return entity.Profile{}, err
	}
	if !found || level == None {
		return entity.Profile{}, errs.NotFound("profile %s not found", entity.NormalizeID(entity.TypeProfile, profileID))
	}
	if level < need {
		return entity.Profile{}, errs.Forbidden("%s access required on profile %s", need, p.ID)
	}
	return p, nil
}

// RequireOwner is Require for operations reserved to the profile owner,
// such as share management and deletion.
func (r *Resolver) RequireOwner(ctx context.Context, c Caller, profileID string) (entity.Profile, error) {
	p, err := r.Require(ctx, c, profileID, Read)
	if err != nil {
		return entity.Profile{}, err
	}
	if !IsOwner(c, p) {
		return entity.Profile{}, errs.Forbidden("only the owner can manage profile %s", p.ID)
	}
	return p, nil
}

// IsOwner reports whether c owns p.
func IsOwner(c Caller, p entity.Profile) bool {
	return c.AccountID != "" && entity.NormalizeID(entity.TypeAccount, c.AccountID) == entity.NormalizeID(entity.TypeAccount, p.OwnerAccountID)
}

// RequireAdmin is the coarse administrative check. It never consults shares.
func RequireAdmin(c Caller) error {
	if !c.IsAdmin {
		return errs.Forbidden("administrator access required")
	}
	return nil
}
