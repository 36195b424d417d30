package database

import (
	"context"

	"github.com/routepbx/routepbx/internal/database/models"
)

// TenantRepository manages tenants. Tenant CRUD lives in the management
// plane; the control plane mostly reads.
type TenantRepository interface {
	Create(ctx context.Context, t *models.Tenant) error
	GetByID(ctx context.Context, id int64) (*models.Tenant, error)
	GetByDomain(ctx context.Context, domain string) (*models.Tenant, error)
	// GetEarliest returns the earliest-created tenant, the resolution
	// fallback of last resort. Nil if no tenants exist.
	GetEarliest(ctx context.Context) (*models.Tenant, error)
	List(ctx context.Context) ([]models.Tenant, error)
	Count(ctx context.Context) (int64, error)
}

// RoutingConfigRepository manages per-tenant routing configuration.
type RoutingConfigRepository interface {
	Create(ctx context.Context, rc *models.RoutingConfig) error
	GetByTenant(ctx context.Context, tenantID int64) (*models.RoutingConfig, error)
}

// InboundRouteRepository manages DID routes. Matching routes are returned
// in ascending priority then creation order; first enabled match wins.
type InboundRouteRepository interface {
	Create(ctx context.Context, route *models.InboundRoute) error
	FirstEnabledByDID(ctx context.Context, did string) (*models.InboundRoute, error)
	FirstEnabledByDIDAndTenant(ctx context.Context, did string, tenantID int64) (*models.InboundRoute, error)
}

// DialplanRuleRepository manages tenant-defined dialplan rules and their
// ordered actions.
type DialplanRuleRepository interface {
	Create(ctx context.Context, rule *models.DialplanRule) error
	CreateAction(ctx context.Context, action *models.DialplanAction) error
	// ListEnabledByTenant returns enabled rules ordered by priority asc,
	// then creation order.
	ListEnabledByTenant(ctx context.Context, tenantID int64) ([]models.DialplanRule, error)
	// ListActions returns a rule's actions ordered by position, ties broken
	// by creation order.
	ListActions(ctx context.Context, ruleID int64) ([]models.DialplanAction, error)
}

// OutboundRuleRepository manages outbound carrier rules.
type OutboundRuleRepository interface {
	Create(ctx context.Context, rule *models.OutboundRule) error
	// ListEnabledByTenant returns enabled rules ordered by priority asc,
	// then creation order.
	ListEnabledByTenant(ctx context.Context, tenantID int64) ([]models.OutboundRule, error)
	GetByID(ctx context.Context, id int64) (*models.OutboundRule, error)
}

// GatewayRepository reads outbound carrier gateways.
type GatewayRepository interface {
	Create(ctx context.Context, gw *models.Gateway) error
	GetByID(ctx context.Context, id int64) (*models.Gateway, error)
	GetByTenantAndName(ctx context.Context, tenantID int64, name string) (*models.Gateway, error)
}

// IVRMenuRepository manages IVR menus and their digit options.
type IVRMenuRepository interface {
	Create(ctx context.Context, menu *models.IVRMenu) error
	// CreateOption inserts a digit option. A duplicate digit within the
	// same menu is rejected.
	CreateOption(ctx context.Context, opt *models.IVRMenuOption) error
	GetByID(ctx context.Context, id int64) (*models.IVRMenu, error)
	// ListOptions returns options ordered by position, ties broken by digit.
	ListOptions(ctx context.Context, menuID int64) ([]models.IVRMenuOption, error)
}

// BillingConfigRepository manages per-tenant billing defaults and the
// prepaid balance.
type BillingConfigRepository interface {
	Create(ctx context.Context, bc *models.BillingConfig) error
	GetByTenant(ctx context.Context, tenantID int64) (*models.BillingConfig, error)
	// Debit subtracts amount from the tenant's prepaid balance. Applied by
	// the CDR ingestion path after a call completes, never during resolution.
	Debit(ctx context.Context, tenantID int64, amount float64) error
}

// ExtensionRepository manages SIP endpoint users.
type ExtensionRepository interface {
	Create(ctx context.Context, ext *models.Extension) error
	GetByTenantAndNumber(ctx context.Context, tenantID int64, number string) (*models.Extension, error)
	// FindAnyByNumber returns the first enabled extension with the given
	// number across all tenants, earliest tenant first.
	FindAnyByNumber(ctx context.Context, number string) (*models.Extension, error)
}

// CDRRepository persists rated call detail records.
type CDRRepository interface {
	Create(ctx context.Context, cdr *models.CDR) error
	GetByCallUUID(ctx context.Context, callUUID string) (*models.CDR, error)
	CountByDirection(ctx context.Context) (map[string]int64, error)
}

// Store bundles all repositories over a single DB handle.
type Store struct {
	Tenants        TenantRepository
	RoutingConfigs RoutingConfigRepository
	InboundRoutes  InboundRouteRepository
	DialplanRules  DialplanRuleRepository
	OutboundRules  OutboundRuleRepository
	Gateways       GatewayRepository
	IVRMenus       IVRMenuRepository
	BillingConfigs BillingConfigRepository
	Extensions     ExtensionRepository
	CDRs           CDRRepository
}

// NewStore creates repositories for all entities.
func NewStore(db *DB) *Store {
	return &Store{
		Tenants:        NewTenantRepository(db),
		RoutingConfigs: NewRoutingConfigRepository(db),
		InboundRoutes:  NewInboundRouteRepository(db),
		DialplanRules:  NewDialplanRuleRepository(db),
		OutboundRules:  NewOutboundRuleRepository(db),
		Gateways:       NewGatewayRepository(db),
		IVRMenus:       NewIVRMenuRepository(db),
		BillingConfigs: NewBillingConfigRepository(db),
		Extensions:     NewExtensionRepository(db),
		CDRs:           NewCDRRepository(db),
	}
}
