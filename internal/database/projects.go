package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"image-transform-backend/internal/models"
	"image-transform-backend/internal/records"
)

// Connect opens the Postgres pool used by ProjectStore and the migrator.
func Connect(databaseURL string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

// ProjectStore serves the projects table straight from Postgres. There is no
// row-level security on this path; owner scoping comes from records.UserRecords.
type ProjectStore struct {
	db *sqlx.DB
}

func NewProjectStore(db *sqlx.DB) *ProjectStore {
	return &ProjectStore{db: db}
}

func (s *ProjectStore) AsUser(models.Identity) records.Table { return s }

func (s *ProjectStore) AsService() records.Table { return s }

// filterableColumns maps each column to the placeholder cast it needs. uuid
// columns compare natively so the primary key and user index stay usable.
var filterableColumns = map[string]string{
	models.ColumnID:                      "::uuid",
	models.ColumnUserID:                  "::uuid",
	models.ColumnInputImageURL:           "",
	models.ColumnOutputImageURL:          "",
	models.ColumnPrompt:                  "",
	models.ColumnStatus:                  "",
	models.ColumnPaymentStatus:           "",
	models.ColumnStripeCheckoutSessionID: "",
	models.ColumnStripePaymentIntentID:   "",
}

// buildWhere renders filter as a WHERE clause with placeholders starting at $start.
// Inequality is null-safe so it matches the other backends.
func buildWhere(filter records.Filter, start int) (string, []interface{}, error) {
	if len(filter) == 0 {
		return "", nil, nil
	}

	clauses := make([]string, 0, len(filter))
	args := make([]interface{}, 0, len(filter))
	for i, c := range filter {
		cast, ok := filterableColumns[c.Column]
		if !ok {
			return "", nil, fmt.Errorf("unknown column %q", c.Column)
		}
		n := start + i
		switch c.Op {
		case records.OpEq:
			clauses = append(clauses, fmt.Sprintf("%s = $%d%s", c.Column, n, cast))
		case records.OpNeq:
			clauses = append(clauses, fmt.Sprintf("%s IS DISTINCT FROM $%d%s", c.Column, n, cast))
		default:
			return "", nil, fmt.Errorf("unsupported filter operator %q", c.Op)
		}
		args = append(args, c.Value)
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

func (s *ProjectStore) Select(ctx context.Context, filter records.Filter) ([]models.Project, error) {
	where, args, err := buildWhere(filter, 1)
	if err != nil {
		return nil, err
	}

	rows := []models.Project{}
	query := "SELECT * FROM projects" + where + " ORDER BY created_at DESC"
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to select projects: %w", err)
	}
	return rows, nil
}

func (s *ProjectStore) Insert(ctx context.Context, row models.Project) (*models.Project, error) {
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = row.CreatedAt
	}

	query := `
		INSERT INTO projects (id, user_id, input_image_url, output_image_url, prompt, status,
			payment_status, payment_amount, stripe_checkout_session_id, stripe_payment_intent_id,
			created_at, updated_at)
		VALUES (:id, :user_id, :input_image_url, :output_image_url, :prompt, :status,
			:payment_status, :payment_amount, :stripe_checkout_session_id, :stripe_payment_intent_id,
			:created_at, :updated_at)
		RETURNING *`

	stmt, err := s.db.PrepareNamedContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	var created models.Project
	if err := stmt.GetContext(ctx, &created, row); err != nil {
		return nil, fmt.Errorf("failed to insert project: %w", err)
	}
	return &created, nil
}

// Update is a single UPDATE ... RETURNING, so the filter doubles as the guard.
func (s *ProjectStore) Update(ctx context.Context, patch models.ProjectPatch, filter records.Filter) ([]models.Project, error) {
	cols := patch.Columns()
	if len(cols) == 0 {
		return nil, fmt.Errorf("empty patch")
	}

	sets := make([]string, 0, len(cols))
	args := make([]interface{}, 0, len(cols)+len(filter))
	for i, c := range cols {
		sets = append(sets, fmt.Sprintf("%s = $%d", c.Column, i+1))
		args = append(args, c.Value)
	}

	where, whereArgs, err := buildWhere(filter, len(cols)+1)
	if err != nil {
		return nil, err
	}
	args = append(args, whereArgs...)

	rows := []models.Project{}
	query := "UPDATE projects SET " + strings.Join(sets, ", ") + where + " RETURNING *"
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to update projects: %w", err)
	}
	return rows, nil
}

func (s *ProjectStore) Delete(ctx context.Context, filter records.Filter) (int, error) {
	if len(filter) == 0 {
		return 0, fmt.Errorf("refusing unfiltered delete")
	}
	where, args, err := buildWhere(filter, 1)
	if err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM projects"+where, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete projects: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return int(n), nil
}
