package supabase

import (
	"fmt"
	"strings"

	"github.com/supabase-community/supabase-go"
	"image-transform-backend/internal/models"
	"image-transform-backend/internal/records"
)

const projectsTable = "projects"

// RecordProvider issues PostgREST tables at two privilege levels. User tables carry
// the caller's access token so row-level security applies on the server as well.
type RecordProvider struct {
	url     string
	anonKey string
	service *supabase.Client
}

func NewRecordProvider(supabaseURL, anonKey, serviceRoleKey string) (*RecordProvider, error) {
	baseURL := strings.TrimSuffix(supabaseURL, "/")
	service, err := supabase.NewClient(baseURL, serviceRoleKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create service client: %w", err)
	}

	return &RecordProvider{
		url:     baseURL,
		anonKey: anonKey,
		service: service,
	}, nil
}

func (p *RecordProvider) AsUser(who models.Identity) records.Table {
	client, err := supabase.NewClient(p.url, p.anonKey, &supabase.ClientOptions{
		Headers: map[string]string{"Authorization": "Bearer " + who.Token},
	})
	if err != nil {
		return &RecordTable{err: fmt.Errorf("failed to create user client: %w", err)}
	}
	return &RecordTable{client: client, table: projectsTable}
}

func (p *RecordProvider) AsService() records.Table {
	return &RecordTable{client: p.service, table: projectsTable}
}
