// Package memstore implements store.Keyed in process memory.
//
// It mirrors the DynamoDB backend's semantics (conditional writes, TTL soft
// delete, index queries, all-or-nothing transactions) and is used for local
// development and as the test double for every package above the store.
package memstore

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/salestrack/store"
)

// Store is an in-memory store.Keyed.
type Store struct {
	mu     sync.RWMutex
	config store.Config
	items  map[store.Key]map[string]types.AttributeValue
	now    func() time.Time

	// failNext, when set, is returned by the next call instead of executing it.
	failNext error
}

var _ store.Keyed = (*Store)(nil)

// New creates an empty Store using the index layout from config.
func New(config store.Config) *Store {
	config.Validate()
	return &Store{
		config: config,
		items:  make(map[store.Key]map[string]types.AttributeValue),
		now:    time.Now,
	}
}

// SetClock overrides the time source used for TTL and timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// FailNext makes the next operation return err wrapped as store.ErrUnavailable.
func (s *Store) FailNext(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = err
}

// Len returns the number of stored rows, including soft-deleted ones.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Raw returns a copy of the row at key regardless of TTL.
func (s *Store) Raw(key store.Key) (map[string]types.AttributeValue, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.items[key]
	if !ok {
		return nil, false
	}
	return clone(raw), true
}

func (s *Store) takeFailure() error {
	if s.failNext == nil {
		return nil
	}
	err := s.failNext
	s.failNext = nil
	return fmt.Errorf("%w: %w", store.ErrUnavailable, err)
}

// Get returns the live item at key.
func (s *Store) Get(ctx context.Context, key store.Key) (*store.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return nil, err
	}

	raw, ok := s.items[key]
	if !ok || store.IsDeletedAt(raw, s.now()) {
		return nil, store.ErrNotFound
	}
	return store.UnmarshalItem(clone(raw)), nil
}

// Put writes item subject to cond.
func (s *Store) Put(ctx context.Context, item map[string]types.AttributeValue, cond store.WriteCondition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}

	key, ok := store.KeyOf(item)
	if !ok {
		return store.ErrInvalidKey
	}
	now := s.now()
	if err := s.check(key, cond, now); err != nil {
		return err
	}
	store.PrepareWrite(item, cond, now)
	s.items[key] = clone(item)
	return nil
}

// Delete soft-deletes the item at key.
func (s *Store) Delete(ctx context.Context, key store.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	s.softDelete(key, s.now())
	return nil
}

func (s *Store) softDelete(key store.Key, now time.Time) {
	raw, ok := s.items[key]
	if !ok || store.IsDeletedAt(raw, now) {
		return
	}
	raw[store.AttrTTL] = &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)}
	raw[store.AttrVersion] = &types.AttributeValueMemberN{Value: strconv.FormatInt(version(raw)+1, 10)}
}

// Query reads one partition of the table or an index.
func (s *Store) Query(ctx context.Context, q store.Query) ([]*store.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return nil, err
	}

	pkAttr, skAttr, ok := s.config.KeyAttrs(q.IndexName)
	if !ok {
		return nil, fmt.Errorf("salestrack/store: unknown index %q", q.IndexName)
	}
	now := s.now()

	type hit struct {
		sk  string
		raw map[string]types.AttributeValue
	}
	var hits []hit
	for _, raw := range s.items {
		if stringAttr(raw, pkAttr) != q.Partition {
			continue
		}
		sk, hasSK := raw[skAttr].(*types.AttributeValueMemberS)
		if !hasSK {
			// sparse index: rows without the sort attribute are not projected
			continue
		}
		if q.SortPrefix != "" && !strings.HasPrefix(sk.Value, q.SortPrefix) {
			continue
		}
		if !q.IncludeDeleted && store.IsDeletedAt(raw, now) {
			continue
		}
		if !matches(raw, q.Equals) {
			continue
		}
		hits = append(hits, hit{sk: sk.Value, raw: raw})
	}

	sort.Slice(hits, func(i, j int) bool {
		if q.Descending {
			return hits[i].sk > hits[j].sk
		}
		return hits[i].sk < hits[j].sk
	})

	items := make([]*store.Item, 0, len(hits))
	for _, h := range hits {
		items = append(items, store.UnmarshalItem(clone(h.raw)))
		if q.Limit > 0 && len(items) >= q.Limit {
			break
		}
	}
	return items, nil
}

// Transact applies every write or none.
func (s *Store) Transact(ctx context.Context, writes []store.Write) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	now := s.now()

	for i, w := range writes {
		var key store.Key
		switch {
		case w.Put != nil:
			k, ok := store.KeyOf(w.Put)
			if !ok {
				return store.ErrInvalidKey
			}
			key = k
		case w.Delete != nil:
			key = *w.Delete
		default:
			return fmt.Errorf("salestrack/store: write %d has neither put nor delete", i)
		}
		if err := s.check(key, w.Condition, now); err != nil {
			return &store.TxConditionError{Index: i, Err: err}
		}
	}

	for _, w := range writes {
		if w.Put != nil {
			store.PrepareWrite(w.Put, w.Condition, now)
			key, _ := store.KeyOf(w.Put)
			s.items[key] = clone(w.Put)
			continue
		}
		s.softDelete(*w.Delete, now)
	}
	return nil
}

// check evaluates a write condition against the current row.
func (s *Store) check(key store.Key, cond store.WriteCondition, now time.Time) error {
	raw, exists := s.items[key]
	live := exists && !store.IsDeletedAt(raw, now)

	switch {
	case cond.IfNotExists:
		if live {
			return store.ErrAlreadyExists
		}
	case cond.IfVersion > 0:
		if !live {
			return store.ErrNotFound
		}
		if version(raw) != cond.IfVersion {
			return store.ErrConcurrentModification
		}
	case cond.IfExists:
		if !live {
			return store.ErrNotFound
		}
	}
	return nil
}

func matches(raw map[string]types.AttributeValue, equals map[string]types.AttributeValue) bool {
	for attr, want := range equals {
		got, ok := raw[attr]
		if !ok || !equalAttr(got, want) {
			return false
		}
	}
	return true
}

func equalAttr(a, b types.AttributeValue) bool {
	switch av := a.(type) {
	case *types.AttributeValueMemberS:
		bv, ok := b.(*types.AttributeValueMemberS)
		return ok && av.Value == bv.Value
	case *types.AttributeValueMemberN:
		bv, ok := b.(*types.AttributeValueMemberN)
		if !ok {
			return false
		}
		af, err1 := strconv.ParseFloat(av.Value, 64)
		bf, err2 := strconv.ParseFloat(bv.Value, 64)
		if err1 != nil || err2 != nil {
			return av.Value == bv.Value
		}
		return af == bf
	case *types.AttributeValueMemberBOOL:
		bv, ok := b.(*types.AttributeValueMemberBOOL)
		return ok && av.Value == bv.Value
	}
	return reflect.DeepEqual(a, b)
}

func stringAttr(raw map[string]types.AttributeValue, attr string) string {
	if v, ok := raw[attr].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func version(raw map[string]types.AttributeValue) int64 {
	if v, ok := raw[store.AttrVersion].(*types.AttributeValueMemberN); ok {
		n, _ := strconv.ParseInt(v.Value, 10, 64)
		return n
	}
	return 0
}

// clone copies the top-level map; attribute values are treated as immutable.
func clone(raw map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(raw))
	for k, v := range raw {
		out[k] = v
	}
	return out
}
