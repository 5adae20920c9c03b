package supabase_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"image-transform-backend/internal/models"
	"image-transform-backend/internal/records"
	"image-transform-backend/internal/supabase"
)

func TestRecordTable_GuardedUpdateSendsFilters(t *testing.T) {
	projectID := uuid.New()
	var gotQuery map[string][]string
	var gotMethod, gotAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotQuery = r.URL.Query()
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]models.Project{})
	}))
	defer server.Close()

	provider, err := supabase.NewRecordProvider(server.URL, "anon-key", "service-key")
	require.NoError(t, err)

	processing := models.ProjectStatusProcessing
	rows, err := provider.AsService().Update(context.Background(), models.ProjectPatch{Status: &processing}, records.Filter{
		records.Eq(models.ColumnID, projectID.String()),
		records.Eq(models.ColumnPaymentStatus, "paid"),
		records.Neq(models.ColumnStatus, "processing"),
		records.Neq(models.ColumnStatus, "completed"),
	})
	require.NoError(t, err)
	assert.Empty(t, rows)

	assert.Equal(t, http.MethodPatch, gotMethod)
	assert.Equal(t, []string{"eq." + projectID.String()}, gotQuery["id"])
	assert.Equal(t, []string{"eq.paid"}, gotQuery["payment_status"])
	// postgrest-go folds repeated filters on one column into a single and=(...)
	assert.Equal(t, []string{"(status.neq.processing,status.neq.completed)"}, gotQuery["and"])
	assert.Empty(t, gotQuery["status"])
	assert.Equal(t, "Bearer service-key", gotAuth)
}

func TestRecordTable_UserSelectUsesCallerToken(t *testing.T) {
	owner := uuid.New()
	var gotAuth string
	var gotQuery map[string][]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]models.Project{{
			ID:            uuid.New(),
			UserID:        owner,
			Status:        models.ProjectStatusPending,
			PaymentStatus: models.PaymentStatusPending,
			PaymentAmount: 0.99,
			CreatedAt:     time.Now().UTC(),
		}})
	}))
	defer server.Close()

	provider, err := supabase.NewRecordProvider(server.URL, "anon-key", "service-key")
	require.NoError(t, err)

	who := models.Identity{UserID: owner, Token: "user-jwt"}
	list, err := records.ForUser(provider, who).List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, owner, list[0].UserID)

	assert.Equal(t, "Bearer user-jwt", gotAuth)
	assert.Equal(t, []string{"eq." + owner.String()}, gotQuery["user_id"])
}
