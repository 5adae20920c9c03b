package records

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"image-transform-backend/internal/models"
)

// UserRecords is bound to one identity. Every operation is scoped by user_id, so
// rows owned by someone else behave as if they did not exist. It cannot patch
// rows: lifecycle and payment columns change only through ServiceRecords.
type UserRecords struct {
	table Table
	owner uuid.UUID
}

func ForUser(p Provider, who models.Identity) *UserRecords {
	return &UserRecords{table: p.AsUser(who), owner: who.UserID}
}

func (u *UserRecords) scope(filter Filter) Filter {
	scoped := make(Filter, 0, len(filter)+1)
	scoped = append(scoped, filter...)
	return append(scoped, Eq(models.ColumnUserID, u.owner.String()))
}

// List returns the caller's projects, newest first.
func (u *UserRecords) List(ctx context.Context) ([]models.Project, error) {
	rows, err := u.table.Select(ctx, u.scope(nil))
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return rows, nil
}

func (u *UserRecords) Get(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	rows, err := u.table.Select(ctx, u.scope(Filter{Eq(models.ColumnID, id.String())}))
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

// Insert stores row with user_id forced to the bound identity and the project
// in its initial unpaid state.
func (u *UserRecords) Insert(ctx context.Context, row models.Project) (*models.Project, error) {
	row.UserID = u.owner
	row.Status = models.ProjectStatusPending
	row.PaymentStatus = models.PaymentStatusPending
	row.OutputImageURL = nil
	row.StripeCheckoutSessionID = nil
	row.StripePaymentIntentID = nil
	created, err := u.table.Insert(ctx, row)
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}
	return created, nil
}

func (u *UserRecords) Delete(ctx context.Context, id uuid.UUID) error {
	n, err := u.table.Delete(ctx, u.scope(Filter{Eq(models.ColumnID, id.String())}))
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ServiceRecords bypasses per-identity restrictions. Only trusted internal paths
// (gateway notifications, generation state transitions) construct one.
type ServiceRecords struct {
	table Table
	now   func() time.Time
}

func AsService(p Provider) *ServiceRecords {
	return &ServiceRecords{table: p.AsService(), now: time.Now}
}

// Update applies patch to every row matching filter and returns the rows it
// changed. An empty result means the guard did not hold.
func (s *ServiceRecords) Update(ctx context.Context, patch models.ProjectPatch, filter Filter) ([]models.Project, error) {
	if len(filter) == 0 {
		return nil, fmt.Errorf("refusing unfiltered update")
	}
	now := s.now().UTC()
	patch.UpdatedAt = &now
	rows, err := s.table.Update(ctx, patch, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}
	return rows, nil
}

func (s *ServiceRecords) Get(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	rows, err := s.table.Select(ctx, Filter{Eq(models.ColumnID, id.String())})
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}
