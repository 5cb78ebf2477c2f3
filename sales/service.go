// Package sales implements the domain operations behind every screen:
// accounts, profiles, campaigns, orders, catalogs and payment methods.
//
// Every operation on profile-scoped data runs the full permission check
// before touching the store. Entities whose primary key needs a parent id
// (campaigns, orders) are found through a secondary index and then re-read
// by primary key; deletes through that path are idempotent.
package sales

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/jacentio/salestrack/authz"
	"github.com/jacentio/salestrack/entity"
	"github.com/jacentio/salestrack/errs"
	"github.com/jacentio/salestrack/internal/randcode"
	"github.com/jacentio/salestrack/lookup"
	"github.com/jacentio/salestrack/prefill"
	"github.com/jacentio/salestrack/share"
	"github.com/jacentio/salestrack/store"
)

// Length limits for user-supplied names.
const (
	MaxNameLength          = 100
	MaxPaymentMethodLength = 50
	MaxQuantity            = 999

	// MaxPriceCents bounds unit prices so order totals cannot overflow.
	MaxPriceCents = 10_000_000

	// ShareCodeLength is the length of campaign share codes.
	ShareCodeLength = 8

	// MaxShareCodeAttempts bounds regeneration of colliding share codes.
	MaxShareCodeAttempts = 5
)

// Service orchestrates the gates and the store for domain operations.
type Service struct {
	store    store.Keyed
	registry *store.Registry
	authz    *authz.Resolver
	lookup   *lookup.Resolver
	shares   *share.Manager
	prefills *prefill.Engine
	codes    randcode.Generator
	newID    func() string
	now      func() time.Time
	logger   *slog.Logger
}

// NewService creates a Service.
func NewService(
	k store.Keyed,
	resolver *authz.Resolver,
	lookups *lookup.Resolver,
	shares *share.Manager,
	prefills *prefill.Engine,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    k,
		registry: entity.Registry(),
		authz:    resolver,
		lookup:   lookups,
		shares:   shares,
		prefills: prefills,
		codes:    randcode.Of(ShareCodeLength),
		newID:    uuid.NewString,
		now:      time.Now,
		logger:   logger,
	}
}

// SetClock overrides the service's time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// SetShareCodeGenerator overrides generation of campaign share codes.
func (s *Service) SetShareCodeGenerator(codes randcode.Generator) {
	s.codes = codes
}

// SetIDGenerator overrides generation of entity ids.
func (s *Service) SetIDGenerator(newID func() string) {
	s.newID = newID
}

// validateName trims name and checks it holds 1..max characters.
func validateName(field, name string, max int) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errs.Validation("%s is required", field)
	}
	if utf8.RuneCountInString(name) > max {
		return "", errs.Validation("%s exceeds %d characters", field, max)
	}
	return name, nil
}

// save encodes e, writes it under cond and returns the stored variant.
func save[T entity.Entity](ctx context.Context, k store.Keyed, e T, cond store.WriteCondition, what string) (T, error) {
	var zero T
	raw, err := entity.Encode(e)
	if err != nil {
		return zero, err
	}
	if err := k.Put(ctx, raw, cond); err != nil {
		return zero, errs.FromStore(err, what)
	}
	return entity.Unmarshal[T](store.UnmarshalItem(raw))
}

// load reads and decodes the entity at key.
func load[T entity.Entity](ctx context.Context, k store.Keyed, key store.Key, what string) (T, error) {
	var zero T
	item, err := k.Get(ctx, key)
	if err != nil {
		return zero, errs.FromStore(err, what)
	}
	return entity.Unmarshal[T](item)
}

// list runs q and decodes every item as T.
func list[T entity.Entity](ctx context.Context, k store.Keyed, q store.Query) ([]T, error) {
	items, err := k.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	return entity.UnmarshalAll[T](items)
}
