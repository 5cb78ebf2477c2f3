package sales

import (
	"context"
	"errors"
	"strings"

	"github.com/jacentio/salestrack/authz"
	"github.com/jacentio/salestrack/entity"
	"github.com/jacentio/salestrack/errs"
	"github.com/jacentio/salestrack/store"
)

// Built-in payment methods every profile accepts. Their names are reserved.
var builtinPaymentMethods = []string{"Cash", "Check"}

func isReservedPaymentMethod(name string) bool {
	for _, b := range builtinPaymentMethods {
		if strings.EqualFold(b, name) {
			return true
		}
	}
	return false
}

func validatePaymentMethodName(name string) (string, error) {
	name, err := validateName("payment method name", name, MaxPaymentMethodLength)
	if err != nil {
		return "", err
	}
	if isReservedPaymentMethod(name) {
		return "", errs.Validation("%q is a reserved payment method", name)
	}
	return name, nil
}

// ListPaymentMethods returns the built-in methods followed by the profile's
// live custom methods.
func (s *Service) ListPaymentMethods(ctx context.Context, caller authz.Caller, profileID string) ([]entity.PaymentMethod, error) {
	p, err := s.authz.Require(ctx, caller, profileID, authz.Read)
	if err != nil {
		return nil, err
	}
	custom, err := list[entity.PaymentMethod](ctx, s.store, store.Query{
		Partition:      entity.EncodeKey(entity.TypeProfile, p.ID),
		SortPrefix:     entity.SortPrefix(entity.TypePaymentMethod),
		ConsistentRead: true,
	})
	if err != nil {
		return nil, err
	}

	methods := make([]entity.PaymentMethod, 0, len(builtinPaymentMethods)+len(custom))
	for _, name := range builtinPaymentMethods {
		methods = append(methods, entity.PaymentMethod{ProfileID: p.ID, Name: name})
	}
	for _, m := range custom {
		if !m.IsDeleted {
			methods = append(methods, m)
		}
	}
	return methods, nil
}

// CreatePaymentMethod adds a custom method. A previously deleted method with
// the same name (any case) is revived instead of duplicated.
func (s *Service) CreatePaymentMethod(ctx context.Context, caller authz.Caller, profileID, name, qrPayload string) (entity.PaymentMethod, error) {
	name, err := validatePaymentMethodName(name)
	if err != nil {
		return entity.PaymentMethod{}, err
	}
	p, err := s.authz.Require(ctx, caller, profileID, authz.Write)
	if err != nil {
		return entity.PaymentMethod{}, err
	}

	m := entity.PaymentMethod{ProfileID: p.ID, Name: name, QRPayload: strings.TrimSpace(qrPayload)}
	cond := store.WriteCondition{IfNotExists: true}

	existing, err := load[entity.PaymentMethod](ctx, s.store, m.Key(), "payment method")
	switch {
	case err == nil && !existing.IsDeleted:
		return entity.PaymentMethod{}, errs.Conflict("payment method %q already exists", existing.Name)
	case err == nil:
		m.Meta = existing.Meta
		cond = store.WriteCondition{IfVersion: existing.Version}
	case !errors.Is(err, errs.ErrNotFound):
		return entity.PaymentMethod{}, err
	}

	m, err = save(ctx, s.store, m, cond, "payment method")
	if err != nil {
		return entity.PaymentMethod{}, err
	}
	s.logger.Info("payment method created", "profileID", p.ID, "name", m.Name)
	return m, nil
}

// PaymentMethodUpdate changes a custom method. Nil fields are kept.
type PaymentMethodUpdate struct {
	Name      *string
	QRPayload *string
}

// UpdatePaymentMethod renames a method or changes its QR payload.
//
// A rename that only changes letter case rewrites the same row. Any other
// rename moves the method to its new key in one transaction and fails with
// Conflict when a live method already owns the new name.
func (s *Service) UpdatePaymentMethod(ctx context.Context, caller authz.Caller, profileID, currentName string, upd PaymentMethodUpdate) (entity.PaymentMethod, error) {
	p, err := s.authz.Require(ctx, caller, profileID, authz.Write)
	if err != nil {
		return entity.PaymentMethod{}, err
	}
	if isReservedPaymentMethod(strings.TrimSpace(currentName)) {
		return entity.PaymentMethod{}, errs.Validation("built-in payment methods cannot be changed")
	}

	current, err := load[entity.PaymentMethod](ctx, s.store, entity.PaymentMethodKey(p.ID, currentName), "payment method")
	if err == nil && current.IsDeleted {
		err = errs.NotFound("payment method %q not found", currentName)
	}
	if err != nil {
		return entity.PaymentMethod{}, err
	}

	next := current
	if upd.QRPayload != nil {
		next.QRPayload = strings.TrimSpace(*upd.QRPayload)
	}
	if upd.Name == nil || strings.EqualFold(strings.TrimSpace(*upd.Name), current.Name) {
		if upd.Name != nil {
			// case-only rename keeps the key
			if next.Name, err = validateName("payment method name", *upd.Name, MaxPaymentMethodLength); err != nil {
				return entity.PaymentMethod{}, err
			}
		}
		return save(ctx, s.store, next, store.WriteCondition{IfVersion: current.Version}, "payment method")
	}

	if next.Name, err = validatePaymentMethodName(*upd.Name); err != nil {
		return entity.PaymentMethod{}, err
	}
	next.Meta = entity.Meta{}
	targetCond := store.WriteCondition{IfNotExists: true}
	target, err := load[entity.PaymentMethod](ctx, s.store, next.Key(), "payment method")
	switch {
	case err == nil && !target.IsDeleted:
		return entity.PaymentMethod{}, errs.Conflict("payment method %q already exists", target.Name)
	case err == nil:
		targetCond = store.WriteCondition{IfVersion: target.Version}
		next.Meta = target.Meta
	case !errors.Is(err, errs.ErrNotFound):
		return entity.PaymentMethod{}, err
	}

	retired := current
	retired.IsDeleted = true
	retiredRaw, err := entity.Encode(retired)
	if err != nil {
		return entity.PaymentMethod{}, err
	}
	nextRaw, err := entity.Encode(next)
	if err != nil {
		return entity.PaymentMethod{}, err
	}
	err = s.store.Transact(ctx, []store.Write{
		{Put: retiredRaw, Condition: store.WriteCondition{IfVersion: current.Version}},
		{Put: nextRaw, Condition: targetCond},
	})
	var txErr *store.TxConditionError
	if errors.As(err, &txErr) && txErr.Index == 1 {
		return entity.PaymentMethod{}, errs.Wrap(errs.KindConflict, err, "payment method %q already exists", next.Name)
	}
	if err != nil {
		return entity.PaymentMethod{}, errs.FromStore(err, "payment method")
	}
	s.logger.Info("payment method renamed", "profileID", p.ID, "from", current.Name, "to", next.Name)
	return entity.Unmarshal[entity.PaymentMethod](store.UnmarshalItem(nextRaw))
}

// DeletePaymentMethod flags a custom method as deleted. Missing or already
// deleted methods succeed.
func (s *Service) DeletePaymentMethod(ctx context.Context, caller authz.Caller, profileID, name string) error {
	p, err := s.authz.Require(ctx, caller, profileID, authz.Write)
	if err != nil {
		return err
	}
	if isReservedPaymentMethod(strings.TrimSpace(name)) {
		return errs.Validation("built-in payment methods cannot be deleted")
	}
	m, err := load[entity.PaymentMethod](ctx, s.store, entity.PaymentMethodKey(p.ID, name), "payment method")
	if errors.Is(err, errs.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if m.IsDeleted {
		return nil
	}
	m.IsDeleted = true
	if _, err := save(ctx, s.store, m, store.WriteCondition{IfVersion: m.Version}, "payment method"); err != nil {
		return err
	}
	s.logger.Info("payment method deleted", "profileID", p.ID, "name", m.Name)
	return nil
}

// resolvePaymentMethod returns the canonical name of a method usable on
// profileID's orders.
func (s *Service) resolvePaymentMethod(ctx context.Context, profileID, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errs.Validation("payment method is required")
	}
	for _, b := range builtinPaymentMethods {
		if strings.EqualFold(b, name) {
			return b, nil
		}
	}
	m, err := load[entity.PaymentMethod](ctx, s.store, entity.PaymentMethodKey(profileID, name), "payment method")
	if errors.Is(err, errs.ErrNotFound) || (err == nil && m.IsDeleted) {
		return "", errs.Validation("unknown payment method %q", name)
	}
	if err != nil {
		return "", err
	}
	return m.Name, nil
}
