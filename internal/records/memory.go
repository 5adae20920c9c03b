package records

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"image-transform-backend/internal/models"
)

// MemoryStore keeps projects in process. Both privilege levels share one table;
// owner scoping comes from UserRecords. Used for local runs and tests.
type MemoryStore struct {
	mu   sync.Mutex
	rows map[string]models.Project
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string]models.Project)}
}

func (m *MemoryStore) AsUser(models.Identity) Table { return m }

func (m *MemoryStore) AsService() Table { return m }

func (m *MemoryStore) Select(_ context.Context, filter Filter) ([]models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.Project, 0)
	for _, row := range m.rows {
		row := row
		if filter.Matches(&row) {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryStore) Insert(_ context.Context, row models.Project) (*models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := row.ID.String()
	if _, exists := m.rows[key]; exists {
		return nil, fmt.Errorf("duplicate project id %s", key)
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = row.CreatedAt
	}
	m.rows[key] = row
	return &row, nil
}

func (m *MemoryStore) Update(_ context.Context, patch models.ProjectPatch, filter Filter) ([]models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var updated []models.Project
	for key, row := range m.rows {
		row := row
		if !filter.Matches(&row) {
			continue
		}
		patch.Apply(&row)
		m.rows[key] = row
		updated = append(updated, row)
	}
	return updated, nil
}

func (m *MemoryStore) Delete(_ context.Context, filter Filter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for key, row := range m.rows {
		row := row
		if filter.Matches(&row) {
			delete(m.rows, key)
			n++
		}
	}
	return n, nil
}
