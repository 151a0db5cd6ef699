package escrow

import (
	"context"
	"math"
	"sort"
	"sync"
)

type balanceKey struct {
	token   Address
	account Address
}

type memoryState struct {
	config       *ProgramConfig
	escrows      map[IntentID]Escrow
	requirements map[IntentID]Requirements
	balances     map[balanceKey]uint64
}

func newMemoryState() *memoryState {
	return &memoryState{
		escrows:      make(map[IntentID]Escrow),
		requirements: make(map[IntentID]Requirements),
		balances:     make(map[balanceKey]uint64),
	}
}

func (s *memoryState) clone() *memoryState {
	c := newMemoryState()
	if s.config != nil {
		cfg := *s.config
		cfg.Approver = append([]byte(nil), s.config.Approver...)
		c.config = &cfg
	}
	for k, v := range s.escrows {
		c.escrows[k] = v
	}
	for k, v := range s.requirements {
		c.requirements[k] = v
	}
	for k, v := range s.balances {
		c.balances[k] = v
	}
	return c
}

// MemoryStorage is an in-process ChainStorage. Each Update works on a copy
// of the state that replaces the original only when the instruction succeeds.
type MemoryStorage struct {
	mu    sync.Mutex
	state *memoryState
}

// NewMemoryStorage creates an empty in-memory ledger
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{state: newMemoryState()}
}

func (m *MemoryStorage) Update(ctx context.Context, fn func(Ledger) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	working := m.state.clone()
	if err := fn(&memoryLedger{state: working}); err != nil {
		return err
	}
	m.state = working
	return nil
}

func (m *MemoryStorage) View(ctx context.Context, fn func(Ledger) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(&memoryLedger{state: m.state.clone()})
}

func (m *MemoryStorage) ListEscrows(ctx context.Context) ([]Escrow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Escrow, 0, len(m.state.escrows))
	for _, e := range m.state.escrows {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IntentID.String() < out[j].IntentID.String() })
	return out, nil
}

// Mint credits an account with tokens
func (m *MemoryStorage) Mint(_ context.Context, token, account Address, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := balanceKey{token, account}
	if math.MaxUint64-m.state.balances[key] < amount {
		return ErrInvalidAmount
	}
	m.state.balances[key] += amount
	return nil
}

// Balance returns the token balance of an account
func (m *MemoryStorage) Balance(token, account Address) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.balances[balanceKey{token, account}]
}

type memoryLedger struct {
	state *memoryState
}

func (l *memoryLedger) LoadConfig() (*ProgramConfig, error) {
	if l.state.config == nil {
		return nil, ErrNotFound
	}
	cfg := *l.state.config
	return &cfg, nil
}

func (l *memoryLedger) StoreConfig(cfg *ProgramConfig) error {
	c := *cfg
	l.state.config = &c
	return nil
}

func (l *memoryLedger) LoadEscrow(intentID IntentID) (*Escrow, error) {
	e, ok := l.state.escrows[intentID]
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

func (l *memoryLedger) StoreEscrow(e *Escrow) error {
	l.state.escrows[e.IntentID] = *e
	return nil
}

func (l *memoryLedger) LoadRequirements(intentID IntentID) (*Requirements, error) {
	r, ok := l.state.requirements[intentID]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (l *memoryLedger) StoreRequirements(r *Requirements) error {
	l.state.requirements[r.IntentID] = *r
	return nil
}

func (l *memoryLedger) Transfer(token, from, to Address, amount uint64) error {
	src := balanceKey{token, from}
	dst := balanceKey{token, to}
	if l.state.balances[src] < amount {
		return ErrInsufficientFunds
	}
	if math.MaxUint64-l.state.balances[dst] < amount {
		return ErrInvalidAmount
	}
	l.state.balances[src] -= amount
	l.state.balances[dst] += amount
	return nil
}
