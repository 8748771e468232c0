package memory

import (
	"context"
	"sort"
	"sync"

	remittance "pix-remittance/internal/remittance/domain"
)

// RemittanceRepository is an in-memory repository for remittances.
type RemittanceRepository struct {
	mu   sync.RWMutex
	data map[string]remittance.Remittance
}

// NewRemittanceRepository constructs a repository.
func NewRemittanceRepository() *RemittanceRepository {
	return &RemittanceRepository{data: make(map[string]remittance.Remittance)}
}

// Save stores a copy of r, overwriting any previous version.
func (r *RemittanceRepository) Save(ctx context.Context, rem *remittance.Remittance) error {
	_ = ctx
	if rem == nil {
		return remittance.ErrNilRemittance
	}
	stored := *rem
	stored.Diagnostics = append(remittance.Diagnostics(nil), rem.Diagnostics...)
	r.mu.Lock()
	r.data[rem.ID] = stored
	r.mu.Unlock()
	return nil
}

// Get returns a remittance or nil when absent.
func (r *RemittanceRepository) Get(ctx context.Context, id string) (*remittance.Remittance, error) {
	_ = ctx
	r.mu.RLock()
	rem, ok := r.data[id]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return &rem, nil
}

// List returns the tenant's remittances, newest sequence first.
func (r *RemittanceRepository) List(ctx context.Context, tenantID string, limit int) ([]remittance.Remittance, error) {
	_ = ctx
	r.mu.RLock()
	var result []remittance.Remittance
	for _, rem := range r.data {
		if tenantID != "" && rem.TenantID != tenantID {
			continue
		}
		result = append(result, rem)
	}
	r.mu.RUnlock()
	sort.Slice(result, func(i, j int) bool {
		return result[i].Sequence > result[j].Sequence
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
