package approval

import (
	"context"
	"sort"
	"sync"

	"github.com/speedrun-hq/gmp-verifier/pkg/models"
)

// Store persists approvals keyed by normalized intent id. Saving an approval
// for an intent that already has one replaces it.
type Store interface {
	Save(ctx context.Context, approval models.Approval) error
	// Get returns nil when no approval exists for the intent
	Get(ctx context.Context, intentID string) (*models.Approval, error)
	List(ctx context.Context) ([]models.Approval, error)
}

// MemoryStore keeps approvals for the lifetime of the process
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]models.Approval
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]models.Approval),
	}
}

func (m *MemoryStore) Save(_ context.Context, approval models.Approval) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[approval.IntentID] = approval
	return nil
}

func (m *MemoryStore) Get(_ context.Context, intentID string) (*models.Approval, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	approval, ok := m.data[intentID]
	if !ok {
		return nil, nil
	}
	return &approval, nil
}

func (m *MemoryStore) List(_ context.Context) ([]models.Approval, error) {
	m.mu.RLock()
	out := make([]models.Approval, 0, len(m.data))
	for _, approval := range m.data {
		out = append(out, approval)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}
