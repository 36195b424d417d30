package tenant

import (
	"context"
	"strconv"
	"testing"

	"github.com/routepbx/routepbx/internal/database"
	"github.com/routepbx/routepbx/internal/database/models"
)

func newTestResolver(t *testing.T) (*Resolver, *database.Store) {
	t.Helper()
	db, err := database.Open(t.TempDir(), "")
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store := database.NewStore(db)
	return NewResolver(store.Tenants, store.Extensions), store
}

func TestResolve(t *testing.T) {
	r, store := newTestResolver(t)
	ctx := context.Background()

	t1 := &models.Tenant{Name: "first", Domain: "t1.example.com"}
	t2 := &models.Tenant{Name: "second", Domain: "t2.example.com"}
	for _, tn := range []*models.Tenant{t1, t2} {
		if err := store.Tenants.Create(ctx, tn); err != nil {
			t.Fatalf("creating tenant: %v", err)
		}
	}
	ext := &models.Extension{TenantID: t2.ID, Extension: "2002", Password: "pw", Enabled: true}
	if err := store.Extensions.Create(ctx, ext); err != nil {
		t.Fatalf("creating extension: %v", err)
	}

	tests := []struct {
		name       string
		query      Query
		wantID     int64
		wantDomain string
	}{
		{
			name:       "exact domain match",
			query:      Query{Domain: "t2.example.com"},
			wantID:     t2.ID,
			wantDomain: "t2.example.com",
		},
		{
			name:       "context name carries the tenant id",
			query:      Query{Domain: "unknown.example.com", Context: contextName(t2.ID)},
			wantID:     t2.ID,
			wantDomain: "t2.example.com",
		},
		{
			name:       "destination maps to an extension",
			query:      Query{Destination: "2002"},
			wantID:     t2.ID,
			wantDomain: "t2.example.com",
		},
		{
			name:       "destination matches after stripping a dial prefix",
			query:      Query{Destination: "92002"},
			wantID:     t2.ID,
			wantDomain: "t2.example.com",
		},
		{
			name:       "user id maps to an extension",
			query:      Query{UserID: "2002"},
			wantID:     t2.ID,
			wantDomain: "t2.example.com",
		},
		{
			name:       "falls back to the earliest tenant",
			query:      Query{Domain: "unknown.example.com", Destination: "5551234"},
			wantID:     t1.ID,
			wantDomain: "t1.example.com",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tn, domain, err := r.Resolve(ctx, tt.query)
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if tn == nil {
				t.Fatal("resolve returned nil tenant")
			}
			if tn.ID != tt.wantID {
				t.Errorf("tenant id = %d, want %d", tn.ID, tt.wantID)
			}
			if domain != tt.wantDomain {
				t.Errorf("domain = %q, want %q", domain, tt.wantDomain)
			}
		})
	}
}

func TestResolveNoTenants(t *testing.T) {
	r, _ := newTestResolver(t)

	tn, domain, err := r.Resolve(context.Background(), Query{Domain: "t1.example.com"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if tn != nil {
		t.Errorf("expected nil tenant, got %+v", tn)
	}
	if domain != "t1.example.com" {
		t.Errorf("domain = %q, want the input domain", domain)
	}
}

func contextName(id int64) string {
	return "context_" + strconv.FormatInt(id, 10)
}
