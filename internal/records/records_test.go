package records_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"image-transform-backend/internal/models"
	"image-transform-backend/internal/records"
)

func newProject(owner uuid.UUID, created time.Time) models.Project {
	return models.Project{
		ID:            uuid.New(),
		UserID:        owner,
		InputImageURL: "https://cdn.test/input.png",
		Prompt:        "P",
		Status:        models.ProjectStatusPending,
		PaymentStatus: models.PaymentStatusPending,
		PaymentAmount: 0.99,
		CreatedAt:     created,
	}
}

func TestUserRecords_ScopesByOwner(t *testing.T) {
	ctx := context.Background()
	store := records.NewMemoryStore()
	alice := models.Identity{UserID: uuid.New()}
	bob := models.Identity{UserID: uuid.New()}

	created, err := records.ForUser(store, alice).Insert(ctx, newProject(alice.UserID, time.Now()))
	require.NoError(t, err)

	_, err = records.ForUser(store, bob).Get(ctx, created.ID)
	assert.ErrorIs(t, err, records.ErrNotFound)

	err = records.ForUser(store, bob).Delete(ctx, created.ID)
	assert.ErrorIs(t, err, records.ErrNotFound)

	list, err := records.ForUser(store, bob).List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	got, err := records.ForUser(store, alice).Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProjectStatusPending, got.Status)
}

func TestUserRecords_InsertForcesOwner(t *testing.T) {
	ctx := context.Background()
	store := records.NewMemoryStore()
	alice := models.Identity{UserID: uuid.New()}

	row := newProject(uuid.New(), time.Now())
	created, err := records.ForUser(store, alice).Insert(ctx, row)
	require.NoError(t, err)
	assert.Equal(t, alice.UserID, created.UserID)
}

func TestUserRecords_InsertForcesUnpaidState(t *testing.T) {
	ctx := context.Background()
	store := records.NewMemoryStore()
	alice := models.Identity{UserID: uuid.New()}

	output := "https://cdn.test/output.png"
	intent := "pi_forged"
	row := newProject(alice.UserID, time.Now())
	row.Status = models.ProjectStatusCompleted
	row.PaymentStatus = models.PaymentStatusPaid
	row.OutputImageURL = &output
	row.StripePaymentIntentID = &intent

	created, err := records.ForUser(store, alice).Insert(ctx, row)
	require.NoError(t, err)
	assert.Equal(t, models.ProjectStatusPending, created.Status)
	assert.Equal(t, models.PaymentStatusPending, created.PaymentStatus)
	assert.Nil(t, created.OutputImageURL)
	assert.Nil(t, created.StripePaymentIntentID)
}

func TestUserRecords_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := records.NewMemoryStore()
	alice := models.Identity{UserID: uuid.New()}
	handle := records.ForUser(store, alice)

	base := time.Now()
	older, err := handle.Insert(ctx, newProject(alice.UserID, base.Add(-time.Hour)))
	require.NoError(t, err)
	newer, err := handle.Insert(ctx, newProject(alice.UserID, base))
	require.NoError(t, err)

	list, err := handle.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)
	assert.Equal(t, older.ID, list[1].ID)
}

func TestServiceRecords_ConditionalUpdate(t *testing.T) {
	ctx := context.Background()
	store := records.NewMemoryStore()
	alice := models.Identity{UserID: uuid.New()}
	created, err := records.ForUser(store, alice).Insert(ctx, newProject(alice.UserID, time.Now()))
	require.NoError(t, err)

	processing := models.ProjectStatusProcessing
	guard := records.Filter{
		records.Eq(models.ColumnID, created.ID.String()),
		records.Neq(models.ColumnStatus, string(models.ProjectStatusProcessing)),
		records.Neq(models.ColumnStatus, string(models.ProjectStatusCompleted)),
	}

	svc := records.AsService(store)
	rows, err := svc.Update(ctx, models.ProjectPatch{Status: &processing}, guard)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	rows, err = svc.Update(ctx, models.ProjectPatch{Status: &processing}, guard)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestServiceRecords_ConcurrentClaimHasOneWinner(t *testing.T) {
	ctx := context.Background()
	store := records.NewMemoryStore()
	alice := models.Identity{UserID: uuid.New()}
	created, err := records.ForUser(store, alice).Insert(ctx, newProject(alice.UserID, time.Now()))
	require.NoError(t, err)

	processing := models.ProjectStatusProcessing
	guard := records.Filter{
		records.Eq(models.ColumnID, created.ID.String()),
		records.Neq(models.ColumnStatus, string(models.ProjectStatusProcessing)),
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rows, err := records.AsService(store).Update(ctx, models.ProjectPatch{Status: &processing}, guard)
			if err == nil && len(rows) == 1 {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestServiceRecords_RefusesUnfilteredUpdate(t *testing.T) {
	paid := models.PaymentStatusPaid
	_, err := records.AsService(records.NewMemoryStore()).Update(context.Background(), models.ProjectPatch{PaymentStatus: &paid}, nil)
	assert.Error(t, err)
}

func TestFilter_NullColumns(t *testing.T) {
	p := newProject(uuid.New(), time.Now())

	assert.False(t, records.Filter{records.Eq(models.ColumnOutputImageURL, "")}.Matches(&p))
	assert.True(t, records.Filter{records.Neq(models.ColumnOutputImageURL, "x")}.Matches(&p))
	assert.True(t, records.Filter{records.Eq(models.ColumnPrompt, "P")}.Matches(&p))
}
