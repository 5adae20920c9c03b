package supabase

import (
	"context"
	"fmt"

	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"
	"image-transform-backend/internal/models"
	"image-transform-backend/internal/records"
)

// RecordTable runs filtered queries through PostgREST.
type RecordTable struct {
	client *supabase.Client
	table  string
	err    error
}

func applyFilter(q *postgrest.FilterBuilder, filter records.Filter) (*postgrest.FilterBuilder, error) {
	for _, c := range filter {
		switch c.Op {
		case records.OpEq:
			q = q.Eq(c.Column, c.Value)
		case records.OpNeq:
			q = q.Neq(c.Column, c.Value)
		default:
			return nil, fmt.Errorf("unsupported filter operator %q", c.Op)
		}
	}
	return q, nil
}

func (t *RecordTable) ready(ctx context.Context) error {
	if t.err != nil {
		return t.err
	}
	return ctx.Err()
}

func (t *RecordTable) Select(ctx context.Context, filter records.Filter) ([]models.Project, error) {
	if err := t.ready(ctx); err != nil {
		return nil, err
	}

	q, err := applyFilter(t.client.From(t.table).Select("*", "", false), filter)
	if err != nil {
		return nil, err
	}

	var rows []models.Project
	if _, err := q.Order(models.ColumnCreatedAt, &postgrest.OrderOpts{Ascending: false}).ExecuteTo(&rows); err != nil {
		return nil, fmt.Errorf("failed to select projects: %w", err)
	}
	return rows, nil
}

func (t *RecordTable) Insert(ctx context.Context, row models.Project) (*models.Project, error) {
	if err := t.ready(ctx); err != nil {
		return nil, err
	}

	var rows []models.Project
	if _, err := t.client.From(t.table).Insert(row, false, "", "representation", "").ExecuteTo(&rows); err != nil {
		return nil, fmt.Errorf("failed to insert project: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("insert returned no rows")
	}
	return &rows[0], nil
}

// Update issues a single PATCH, so the filter acts as a compare-and-set guard.
func (t *RecordTable) Update(ctx context.Context, patch models.ProjectPatch, filter records.Filter) ([]models.Project, error) {
	if err := t.ready(ctx); err != nil {
		return nil, err
	}

	q, err := applyFilter(t.client.From(t.table).Update(patch, "representation", ""), filter)
	if err != nil {
		return nil, err
	}

	var rows []models.Project
	if _, err := q.ExecuteTo(&rows); err != nil {
		return nil, fmt.Errorf("failed to update projects: %w", err)
	}
	return rows, nil
}

func (t *RecordTable) Delete(ctx context.Context, filter records.Filter) (int, error) {
	if err := t.ready(ctx); err != nil {
		return 0, err
	}

	q, err := applyFilter(t.client.From(t.table).Delete("representation", ""), filter)
	if err != nil {
		return 0, err
	}

	var rows []models.Project
	if _, err := q.ExecuteTo(&rows); err != nil {
		return 0, fmt.Errorf("failed to delete projects: %w", err)
	}
	return len(rows), nil
}
