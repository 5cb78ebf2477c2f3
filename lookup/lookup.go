// Package lookup resolves entities by attributes outside their primary key.
//
// Secondary indexes converge asynchronously, so an index read may miss a row
// that was just written or still return one that was just deleted. The
// resolver never retries the index read. Instead it hands the discovered
// primary key to a dependent step that re-reads the base table with a
// strongly consistent read, and treats an empty result as a normal outcome
// so deletes built on it stay idempotent.
package lookup

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/salestrack/store"
)

// Request is an equality lookup on one secondary index partition.
type Request struct {
	// Index is the secondary index to query.
	Index string

	// Partition is the index partition key value, e.g. "CAMPAIGN#c1".
	Partition string

	// SortPrefix optionally narrows the index sort key.
	SortPrefix string

	// Equals adds attribute equality filters.
	Equals map[string]types.AttributeValue

	// Stash names the Chain slot the result is stored under (default: Partition).
	Stash string
}

func (r Request) slot() string {
	if r.Stash != "" {
		return r.Stash
	}
	return r.Partition
}

// Chain is the state shared by the steps of one logical request.
// Create one per request; it must not outlive it.
type Chain struct {
	mu     sync.Mutex
	values map[string]*store.Item
}

// NewChain creates an empty Chain.
func NewChain() *Chain {
	return &Chain{values: make(map[string]*store.Item)}
}

// Set stashes item (possibly nil) under name.
func (c *Chain) Set(name string, item *store.Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[name] = item
}

// Get returns the stashed item and whether a step recorded anything under name.
// A recorded nil means the lookup ran and found nothing.
func (c *Chain) Get(name string) (*store.Item, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.values[name]
	return item, ok
}

// Resolver runs index lookups against a store.
type Resolver struct {
	store  store.Keyed
	logger *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(k store.Keyed, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: k, logger: logger}
}

// Find queries the index without consistent reads and stashes the first
// match, or nil when nothing matched. Store errors are returned unchanged and
// leave the chain untouched.
func (r *Resolver) Find(ctx context.Context, chain *Chain, req Request) (*store.Item, error) {
	items, err := r.store.Query(ctx, store.Query{
		IndexName:      req.Index,
		Partition:      req.Partition,
		SortPrefix:     req.SortPrefix,
		Equals:         req.Equals,
		ConsistentRead: false,
		Limit:          1,
	})
	if err != nil {
		return nil, err
	}

	var found *store.Item
	if len(items) > 0 {
		found = items[0]
	}
	if chain != nil {
		chain.Set(req.slot(), found)
	}
	return found, nil
}

// Then resolves req and continues with onFound using the item re-read by
// primary key, or with onNotFound when either the index or the base table
// has nothing. A nil onNotFound makes "not found" a success.
func (r *Resolver) Then(
	ctx context.Context,
	chain *Chain,
	req Request,
	onFound func(ctx context.Context, item *store.Item) error,
	onNotFound func(ctx context.Context) error,
) error {
	hit, err := r.Find(ctx, chain, req)
	if err != nil {
		return err
	}

	var current *store.Item
	if hit != nil {
		current, err = r.store.Get(ctx, hit.Key)
		switch {
		case errors.Is(err, store.ErrNotFound):
			r.logger.Debug("index hit is gone from the table", "index", req.Index, "key", hit.Key.String())
			current = nil
		case err != nil:
			return err
		}
		if chain != nil {
			chain.Set(req.slot(), current)
		}
	}

	if current == nil {
		if onNotFound == nil {
			return nil
		}
		return onNotFound(ctx)
	}
	return onFound(ctx, current)
}
