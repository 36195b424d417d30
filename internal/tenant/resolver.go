// Package tenant resolves the tenant context of an inbound switch request.
package tenant

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/routepbx/routepbx/internal/database"
	"github.com/routepbx/routepbx/internal/database/models"
)

// contextPrefix is the per-tenant dialplan context naming convention.
const contextPrefix = "context_"

// Query carries whatever identifying hints the switch supplied. Any subset
// may be empty.
type Query struct {
	Domain      string
	Context     string
	Destination string
	UserID      string
}

// Resolver maps an inbound domain/context/destination/user to a tenant.
type Resolver struct {
	tenants    database.TenantRepository
	extensions database.ExtensionRepository
}

// NewResolver creates a Resolver over the given repositories.
func NewResolver(tenants database.TenantRepository, extensions database.ExtensionRepository) *Resolver {
	return &Resolver{tenants: tenants, extensions: extensions}
}

// Resolve applies the resolution order, first hit wins:
//  1. exact domain match;
//  2. context of the form "context_<tenantId>";
//  3. destination maps to a known extension (as given, digits-only, then
//     with successive leading digits stripped);
//  4. userId maps to a known extension;
//  5. earliest-created tenant.
//
// It returns the resolved tenant (nil when no tenant exists at all) and the
// domain to use for SIP string construction: the tenant's own domain once
// resolved, otherwise the input domain.
func (r *Resolver) Resolve(ctx context.Context, q Query) (*models.Tenant, string, error) {
	t, err := r.resolve(ctx, q)
	if err != nil {
		return nil, q.Domain, err
	}
	if t == nil {
		return nil, q.Domain, nil
	}
	domain := t.Domain
	if domain == "" {
		domain = q.Domain
	}
	return t, domain, nil
}

func (r *Resolver) resolve(ctx context.Context, q Query) (*models.Tenant, error) {
	if q.Domain != "" {
		t, err := r.tenants.GetByDomain(ctx, q.Domain)
		if err != nil {
			return nil, err
		}
		if t != nil {
			return t, nil
		}
	}

	if id, ok := tenantIDFromContext(q.Context); ok {
		t, err := r.tenants.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if t != nil {
			return t, nil
		}
	}

	if q.Destination != "" {
		t, err := r.byExtensionCandidates(ctx, q.Destination)
		if err != nil {
			return nil, err
		}
		if t != nil {
			return t, nil
		}
	}

	if q.UserID != "" {
		ext, err := r.extensions.FindAnyByNumber(ctx, q.UserID)
		if err != nil {
			return nil, err
		}
		if ext != nil {
			return r.tenants.GetByID(ctx, ext.TenantID)
		}
	}

	t, err := r.tenants.GetEarliest(ctx)
	if err != nil {
		return nil, err
	}
	if t == nil {
		slog.Warn("tenant resolution found no tenants",
			"domain", q.Domain, "context", q.Context, "destination", q.Destination)
	}
	return t, nil
}

// byExtensionCandidates tries the destination as given, then digits-only,
// then with successive leading digits stripped, and returns the owning
// tenant of the first matching extension.
func (r *Resolver) byExtensionCandidates(ctx context.Context, destination string) (*models.Tenant, error) {
	candidates := []string{destination}
	digits := digitsOnly(destination)
	if digits != destination && digits != "" {
		candidates = append(candidates, digits)
	}
	for i := 1; len(digits)-i >= 2; i++ {
		candidates = append(candidates, digits[i:])
	}

	for _, c := range candidates {
		ext, err := r.extensions.FindAnyByNumber(ctx, c)
		if err != nil {
			return nil, err
		}
		if ext != nil {
			return r.tenants.GetByID(ctx, ext.TenantID)
		}
	}
	return nil, nil
}

// tenantIDFromContext extracts the tenant id from a "context_<id>" context
// name.
func tenantIDFromContext(name string) (int64, bool) {
	if !strings.HasPrefix(name, contextPrefix) {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(name, contextPrefix), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// digitsOnly strips every non-digit character.
func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
