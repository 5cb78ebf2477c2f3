// Package prefill publishes reusable campaign templates and lets sellers
// discover them by a unit's six-field signature or resolve them by code.
package prefill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/salestrack/authz"
	"github.com/jacentio/salestrack/entity"
	"github.com/jacentio/salestrack/errs"
	"github.com/jacentio/salestrack/internal/randcode"
	"github.com/jacentio/salestrack/quota"
	"github.com/jacentio/salestrack/store"
)

const (
	// CodeLength is the length of generated prefill codes.
	CodeLength = 8

	// MaxCodeAttempts bounds collision retries when generating a code.
	MaxCodeAttempts = 5

	// MaxMessageLength caps the creator message.
	MaxMessageLength = 300
)

// CreateInput describes a new prefill.
type CreateInput struct {
	Signature   entity.Signature
	StartDate   *time.Time
	EndDate     *time.Time
	CatalogID   string
	Message     string
	Description string
}

// UpdateInput changes the free-text fields of a prefill. Nil fields are kept.
type UpdateInput struct {
	Message     *string
	Description *string
}

// Engine implements prefill discovery, resolution and lifecycle.
type Engine struct {
	store  store.Keyed
	quota  *quota.Enforcer
	codes  randcode.Generator
	logger *slog.Logger
}

// NewEngine creates an Engine. A nil codes generator uses random codes of CodeLength.
func NewEngine(k store.Keyed, q *quota.Enforcer, codes randcode.Generator, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if codes == nil {
		codes = randcode.Of(CodeLength)
	}
	return &Engine{store: k, quota: q, codes: codes, logger: logger}
}

func cleanSignature(s entity.Signature) entity.Signature {
	s.UnitType = strings.TrimSpace(s.UnitType)
	s.City = strings.TrimSpace(s.City)
	s.State = strings.TrimSpace(s.State)
	s.SeasonName = strings.TrimSpace(s.SeasonName)
	return s
}

// FindMatches returns the active prefills whose signature equals sig on all
// six fields. Partial signatures are rejected rather than widened.
// The result is read from a secondary index and may lag recent writes.
func (e *Engine) FindMatches(ctx context.Context, sig entity.Signature) ([]entity.Prefill, error) {
	sig = cleanSignature(sig)
	if !sig.Complete() {
		return nil, errs.Validation("unit type, unit number, city, state, season name and season year are all required")
	}

	items, err := e.store.Query(ctx, store.Query{
		IndexName:  entity.IndexByAttribute,
		Partition:  sig.Partition(),
		SortPrefix: entity.SortPrefix(entity.TypePrefill),
		Equals: map[string]types.AttributeValue{
			entity.AttrIsActive: &types.AttributeValueMemberBOOL{Value: true},
		},
	})
	if err != nil {
		return nil, err
	}
	prefills, err := entity.UnmarshalAll[entity.Prefill](items)
	if err != nil {
		return nil, err
	}

	matches := make([]entity.Prefill, 0, len(prefills))
	for _, p := range prefills {
		if p.IsActive && p.Signature() == sig {
			matches = append(matches, p)
		}
	}
	return matches, nil
}

// ResolveCode returns the active prefill published under code, or nil when
// the code is unknown or deactivated. Neither case is an error.
func (e *Engine) ResolveCode(ctx context.Context, code string) (*entity.Prefill, error) {
	p, err := e.get(ctx, code)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, nil
	}
	return &p, nil
}

// Get returns the prefill regardless of its active flag, for its creator.
func (e *Engine) Get(ctx context.Context, caller authz.Caller, code string) (entity.Prefill, error) {
	p, err := e.get(ctx, code)
	if err != nil {
		return entity.Prefill{}, err
	}
	if p.CreatorAccountID != caller.AccountID {
		return entity.Prefill{}, errs.NotFound("prefill %s not found", p.Code)
	}
	return p, nil
}

func (e *Engine) get(ctx context.Context, code string) (entity.Prefill, error) {
	code = entity.NormalizeID(entity.TypePrefill, strings.ToUpper(code))
	if code == "" {
		return entity.Prefill{}, errs.NotFound("prefill not found")
	}
	item, err := e.store.Get(ctx, entity.PrefillKey(code))
	if err != nil {
		return entity.Prefill{}, errs.FromStore(err, "prefill "+code)
	}
	return entity.Unmarshal[entity.Prefill](item)
}

// Create publishes a prefill under a fresh random code after the quota check.
// Codes are reserved with put-if-absent and regenerated on collision.
func (e *Engine) Create(ctx context.Context, caller authz.Caller, in CreateInput) (entity.Prefill, error) {
	in.Signature = cleanSignature(in.Signature)
	in.CatalogID = entity.NormalizeID(entity.TypeCatalog, in.CatalogID)
	if err := validateCreate(in); err != nil {
		return entity.Prefill{}, err
	}

	if err := e.checkCatalog(ctx, caller, in.CatalogID); err != nil {
		return entity.Prefill{}, err
	}

	if err := e.quota.CheckAndReserve(ctx, caller.AccountID, quota.KindPrefill); err != nil {
		return entity.Prefill{}, err
	}

	displayName, err := e.displayName(ctx, caller.AccountID)
	if err != nil {
		return entity.Prefill{}, err
	}

	p := entity.Prefill{
		UnitSignature:      in.Signature.UnitSignature,
		SeasonName:         in.Signature.SeasonName,
		SeasonYear:         in.Signature.SeasonYear,
		StartDate:          in.StartDate,
		EndDate:            in.EndDate,
		CatalogID:          in.CatalogID,
		CreatorAccountID:   caller.AccountID,
		CreatorDisplayName: displayName,
		CreatorMessage:     strings.TrimSpace(in.Message),
		Description:        strings.TrimSpace(in.Description),
		IsActive:           true,
	}

	for attempt := 1; attempt <= MaxCodeAttempts; attempt++ {
		code, err := e.codes()
		if err != nil {
			return entity.Prefill{}, err
		}
		p.Code = code

		raw, err := entity.Encode(p)
		if err != nil {
			return entity.Prefill{}, err
		}
		err = e.store.Put(ctx, raw, store.WriteCondition{IfNotExists: true})
		if errors.Is(err, store.ErrAlreadyExists) {
			e.logger.Warn("prefill code collision", "attempt", attempt)
			continue
		}
		if err != nil {
			return entity.Prefill{}, err
		}

		e.logger.Info("prefill created", "prefillCode", p.Code, "creator", caller.AccountID)
		return entity.Unmarshal[entity.Prefill](store.UnmarshalItem(raw))
	}
	return entity.Prefill{}, errs.Conflict("could not allocate a unique prefill code after %d attempts", MaxCodeAttempts)
}

// checkCatalog requires a public catalog or one the creator owns. Another
// account's private catalog is reported as missing.
func (e *Engine) checkCatalog(ctx context.Context, caller authz.Caller, catalogID string) error {
	item, err := e.store.Get(ctx, entity.CatalogKey(catalogID))
	if errors.Is(err, store.ErrNotFound) {
		return errs.Validation("catalog %s does not exist", catalogID)
	}
	if err != nil {
		return err
	}
	cat, err := entity.Unmarshal[entity.Catalog](item)
	if err != nil {
		return err
	}
	if !cat.IsPublic && cat.OwnerAccountID != caller.AccountID {
		return errs.Validation("catalog %s does not exist", catalogID)
	}
	return nil
}

func validateCreate(in CreateInput) error {
	if !in.Signature.Complete() {
		return errs.Validation("unit type, unit number, city, state, season name and season year are all required")
	}
	if in.CatalogID == "" {
		return errs.Validation("catalog is required")
	}
	if in.StartDate != nil && in.EndDate != nil && in.EndDate.Before(*in.StartDate) {
		return errs.Validation("end date is before start date")
	}
	return validateMessage(in.Message)
}

func validateMessage(msg string) error {
	if utf8.RuneCountInString(strings.TrimSpace(msg)) > MaxMessageLength {
		return errs.Validation("creator message exceeds %d characters", MaxMessageLength)
	}
	return nil
}

func (e *Engine) displayName(ctx context.Context, accountID string) (string, error) {
	item, err := e.store.Get(ctx, entity.AccountKey(accountID))
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	acct, err := entity.Unmarshal[entity.Account](item)
	if err != nil {
		return "", err
	}
	return acct.DisplayName, nil
}

// Update changes the message or description. Only the creator may update.
func (e *Engine) Update(ctx context.Context, caller authz.Caller, code string, in UpdateInput) (entity.Prefill, error) {
	p, err := e.Get(ctx, caller, code)
	if err != nil {
		return entity.Prefill{}, err
	}
	if in.Message != nil {
		if err := validateMessage(*in.Message); err != nil {
			return entity.Prefill{}, err
		}
		p.CreatorMessage = strings.TrimSpace(*in.Message)
	}
	if in.Description != nil {
		p.Description = strings.TrimSpace(*in.Description)
	}
	return e.save(ctx, p)
}

// Deactivate permanently retires a prefill. The row is kept so campaigns
// created from it keep a valid reference. Deactivating twice is a no-op.
func (e *Engine) Deactivate(ctx context.Context, caller authz.Caller, code string) (entity.Prefill, error) {
	p, err := e.get(ctx, code)
	if err != nil {
		return entity.Prefill{}, err
	}
	if p.CreatorAccountID != caller.AccountID {
		return entity.Prefill{}, errs.Forbidden("only the creator can deactivate prefill %s", p.Code)
	}
	if !p.IsActive {
		return p, nil
	}
	p.IsActive = false
	p, err = e.save(ctx, p)
	if err != nil {
		return entity.Prefill{}, err
	}
	e.logger.Info("prefill deactivated", "prefillCode", p.Code, "creator", caller.AccountID)
	return p, nil
}

func (e *Engine) save(ctx context.Context, p entity.Prefill) (entity.Prefill, error) {
	raw, err := entity.Encode(p)
	if err != nil {
		return entity.Prefill{}, err
	}
	if err := e.store.Put(ctx, raw, store.WriteCondition{IfVersion: p.Version}); err != nil {
		return entity.Prefill{}, errs.FromStore(err, "prefill "+p.Code)
	}
	return entity.Unmarshal[entity.Prefill](store.UnmarshalItem(raw))
}

// ListMine returns every prefill the caller created, active or not.
func (e *Engine) ListMine(ctx context.Context, caller authz.Caller) ([]entity.Prefill, error) {
	items, err := e.store.Query(ctx, store.Query{
		IndexName:  entity.IndexByAccount,
		Partition:  entity.EncodeKey(entity.TypeAccount, caller.AccountID),
		SortPrefix: entity.SortPrefix(entity.TypePrefill),
	})
	if err != nil {
		return nil, fmt.Errorf("list prefills: %w", err)
	}
	return entity.UnmarshalAll[entity.Prefill](items)
}
