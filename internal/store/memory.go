package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/stijnvankasteren/insider-trading-app/internal/model"
)

// Memory is an in-process TradeStore for development and tests. It mirrors
// the Postgres filter and ordering semantics.
type Memory struct {
	mu     sync.Mutex
	trades map[string]*model.Trade // keyed by external ID
	nextID int64
	now    func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		trades: make(map[string]*model.Trade),
		now:    time.Now,
	}
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

func (m *Memory) Close() {}

// BeginBatch opens a staged batch. Writes become visible at Commit.
func (m *Memory) BeginBatch(ctx context.Context) (Batch, error) {
	return &memBatch{
		store:  m,
		staged: make(map[string]*model.Trade),
	}, nil
}

type memBatch struct {
	store  *Memory
	staged map[string]*model.Trade
	done   bool
}

func (b *memBatch) FindByExternalID(ctx context.Context, externalID string) (*model.Trade, error) {
	if t, ok := b.staged[externalID]; ok {
		cp := *t
		return &cp, nil
	}

	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	t, ok := b.store.trades[externalID]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (b *memBatch) Insert(ctx context.Context, t *model.Trade) error {
	b.store.mu.Lock()
	b.store.nextID++
	t.ID = b.store.nextID
	b.store.mu.Unlock()

	if t.CreatedAt.IsZero() {
		t.CreatedAt = b.store.now().UTC()
	}
	cp := *t
	b.staged[t.ExternalID] = &cp
	return nil
}

func (b *memBatch) Update(ctx context.Context, t *model.Trade) error {
	cp := *t
	b.staged[t.ExternalID] = &cp
	return nil
}

func (b *memBatch) Commit(ctx context.Context) error {
	if b.done {
		return fmt.Errorf("commit batch: already closed")
	}
	b.done = true

	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	for id, t := range b.staged {
		b.store.trades[id] = t
	}
	return nil
}

func (b *memBatch) Rollback(ctx context.Context) error {
	b.done = true
	b.staged = make(map[string]*model.Trade)
	return nil
}

func matchesFilter(t *model.Trade, f model.TradeFilter) bool {
	lowerOr := func(s *string) (string, bool) {
		if s == nil {
			return "", false
		}
		return strings.ToLower(*s), true
	}

	if f.FormPrefix != "" {
		form, ok := lowerOr(t.Form)
		if !ok || !strings.HasPrefix(form, strings.ToLower(f.FormPrefix)) {
			return false
		}
	} else if f.FormExact != "" {
		form, ok := lowerOr(t.Form)
		if !ok || form != strings.ToLower(f.FormExact) {
			return false
		}
	}
	if f.TickerContains != "" {
		ticker, ok := lowerOr(t.Ticker)
		if !ok || !strings.Contains(ticker, strings.ToLower(f.TickerContains)) {
			return false
		}
	}
	if f.PersonContains != "" {
		person, ok := lowerOr(t.PersonName)
		if !ok || !strings.Contains(person, strings.ToLower(f.PersonContains)) {
			return false
		}
	}
	if len(f.TxCandidates) > 0 {
		txType, _ := lowerOr(t.TransactionType)
		form, _ := lowerOr(t.Form)
		hit := false
		for _, c := range f.TxCandidates {
			if (txType != "" && txType == c) || (form != "" && form == c) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	if f.From != nil {
		if t.TransactionDate == nil || t.TransactionDate.Before(*f.From) {
			return false
		}
	}
	if f.To != nil {
		if t.TransactionDate == nil || t.TransactionDate.After(*f.To) {
			return false
		}
	}
	return true
}

// ListTrades returns one page of trades plus the total match count.
func (m *Memory) ListTrades(ctx context.Context, f model.TradeFilter) ([]model.Trade, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []model.Trade
	for _, t := range m.trades {
		if matchesFilter(t, f) {
			matched = append(matched, *t)
		}
	}

	// Newest first by filed_at, unfiled rows last, then created_at, with ID
	// as a deterministic tiebreaker.
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		switch {
		case a.FiledAt != nil && b.FiledAt == nil:
			return true
		case a.FiledAt == nil && b.FiledAt != nil:
			return false
		case a.FiledAt != nil && b.FiledAt != nil && !a.FiledAt.Equal(*b.FiledAt):
			return a.FiledAt.After(*b.FiledAt)
		case !a.CreatedAt.Equal(b.CreatedAt):
			return a.CreatedAt.After(b.CreatedAt)
		default:
			return a.ID > b.ID
		}
	})

	total := int64(len(matched))

	start := f.Offset
	if start > len(matched) {
		start = len(matched)
	}
	end := len(matched)
	if f.Limit > 0 && start+f.Limit < end {
		end = start + f.Limit
	}
	return matched[start:end], total, nil
}

// DeleteByFormPrefix removes trades by form prefix; empty prefix wipes everything.
func (m *Memory) DeleteByFormPrefix(ctx context.Context, prefix string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prefix == "" {
		n := int64(len(m.trades))
		m.trades = make(map[string]*model.Trade)
		return n, nil
	}

	lower := strings.ToLower(prefix)
	var n int64
	for id, t := range m.trades {
		if t.Form != nil && strings.HasPrefix(strings.ToLower(*t.Form), lower) {
			delete(m.trades, id)
			n++
		}
	}
	return n, nil
}
