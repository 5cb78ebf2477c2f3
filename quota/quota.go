// Package quota caps the number of active resources an account may hold.
//
// The count and the subsequent create are not atomic. Two concurrent creates
// from one account can both pass at ceiling-1; that over-allowance is accepted.
package quota

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/salestrack/entity"
	"github.com/jacentio/salestrack/errs"
	"github.com/jacentio/salestrack/store"
)

// Kind names a capped resource.
type Kind string

const (
	KindPrefill Kind = "prefill"
)

// DefaultPrefillLimit is the number of active prefills a creator may hold.
const DefaultPrefillLimit = 50

// rule describes how active resources of a kind are counted on IndexByAccount.
type rule struct {
	sortPrefix string
	active     map[string]types.AttributeValue
}

var rules = map[Kind]rule{
	KindPrefill: {
		sortPrefix: entity.SortPrefix(entity.TypePrefill),
		active: map[string]types.AttributeValue{
			entity.AttrIsActive: &types.AttributeValueMemberBOOL{Value: true},
		},
	},
}

// Enforcer counts active resources and rejects creation past the ceiling.
type Enforcer struct {
	store  store.Keyed
	limits map[Kind]int
	logger *slog.Logger
}

// NewEnforcer creates an Enforcer. Kinds missing from limits use their default.
func NewEnforcer(k store.Keyed, limits map[Kind]int, logger *slog.Logger) *Enforcer {
	if logger == nil {
		logger = slog.Default()
	}
	merged := map[Kind]int{KindPrefill: DefaultPrefillLimit}
	for kind, n := range limits {
		if n > 0 {
			merged[kind] = n
		}
	}
	return &Enforcer{store: k, limits: merged, logger: logger}
}

// Limit returns the ceiling for kind.
func (e *Enforcer) Limit(kind Kind) int {
	return e.limits[kind]
}

// Count returns the number of active resources of kind held by accountID.
// It reads one account partition of IndexByAccount, never the whole table.
func (e *Enforcer) Count(ctx context.Context, accountID string, kind Kind) (int, error) {
	r, ok := rules[kind]
	if !ok {
		return 0, fmt.Errorf("quota: unknown resource kind %q", kind)
	}
	items, err := e.store.Query(ctx, store.Query{
		IndexName:  entity.IndexByAccount,
		Partition:  entity.EncodeKey(entity.TypeAccount, accountID),
		SortPrefix: r.sortPrefix,
		Equals:     r.active,
	})
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// CheckAndReserve fails with a QuotaExceeded error when accountID already
// holds the maximum number of active resources of kind.
func (e *Enforcer) CheckAndReserve(ctx context.Context, accountID string, kind Kind) error {
	n, err := e.Count(ctx, accountID, kind)
	if err != nil {
		return err
	}
	limit := e.limits[kind]
	if n >= limit {
		e.logger.Info("quota exceeded", "accountID", accountID, "kind", kind, "active", n, "limit", limit)
		return errs.New(errs.KindQuotaExceeded, "%d of %d active %ss in use; deactivate one first", n, limit, kind)
	}
	return nil
}
