// Package records is the project record store boundary. Backends implement Table;
// callers only ever see one of the two capability handles, UserRecords or
// ServiceRecords.
package records

import (
	"context"
	"errors"

	"image-transform-backend/internal/models"
)

var ErrNotFound = errors.New("record not found")

type Operator string

const (
	OpEq  Operator = "eq"
	OpNeq Operator = "neq"
)

type Condition struct {
	Column string
	Op     Operator
	Value  string
}

func Eq(column, value string) Condition {
	return Condition{Column: column, Op: OpEq, Value: value}
}

func Neq(column, value string) Condition {
	return Condition{Column: column, Op: OpNeq, Value: value}
}

// Filter is a conjunction of conditions.
type Filter []Condition

// Matches reports whether p satisfies every condition. A null column never equals
// a value and always differs from one.
func (f Filter) Matches(p *models.Project) bool {
	for _, c := range f {
		v, ok := p.Field(c.Column)
		switch c.Op {
		case OpEq:
			if !ok || v != c.Value {
				return false
			}
		case OpNeq:
			if ok && v == c.Value {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// Table is one privilege level's view of the projects table.
// Update and Delete act atomically on the rows matching the filter.
type Table interface {
	Select(ctx context.Context, filter Filter) ([]models.Project, error)
	Insert(ctx context.Context, row models.Project) (*models.Project, error)
	Update(ctx context.Context, patch models.ProjectPatch, filter Filter) ([]models.Project, error)
	Delete(ctx context.Context, filter Filter) (int, error)
}

// Provider hands out tables at the two privilege levels.
type Provider interface {
	AsUser(who models.Identity) Table
	AsService() Table
}
