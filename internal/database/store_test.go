package database

import (
	"context"
	"errors"
	"testing"

	"github.com/routepbx/routepbx/internal/database/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open(t.TempDir(), "")
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db)
}

func createTenant(t *testing.T, store *Store, domain string) *models.Tenant {
	t.Helper()
	tn := &models.Tenant{Name: domain, Domain: domain}
	if err := store.Tenants.Create(context.Background(), tn); err != nil {
		t.Fatalf("creating tenant: %v", err)
	}
	return tn
}

func TestIVROptionDigitUniqueness(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	tn := createTenant(t, store, "t1.example.com")

	menu := &models.IVRMenu{TenantID: tn.ID, Name: "main", GreetingURL: "ivr/welcome.wav"}
	if err := store.IVRMenus.Create(ctx, menu); err != nil {
		t.Fatalf("creating menu: %v", err)
	}

	first := &models.IVRMenuOption{MenuID: menu.ID, Digit: "1", ActionType: models.IVRActionExtension, ActionValue: "1001"}
	if err := store.IVRMenus.CreateOption(ctx, first); err != nil {
		t.Fatalf("creating option: %v", err)
	}

	dup := &models.IVRMenuOption{MenuID: menu.ID, Digit: "1", ActionType: models.IVRActionExtension, ActionValue: "1002"}
	if err := store.IVRMenus.CreateOption(ctx, dup); !errors.Is(err, ErrDuplicateDigit) {
		t.Fatalf("duplicate digit err = %v, want ErrDuplicateDigit", err)
	}

	// The same digit on a different menu is fine.
	other := &models.IVRMenu{TenantID: tn.ID, Name: "after-hours"}
	if err := store.IVRMenus.Create(ctx, other); err != nil {
		t.Fatalf("creating second menu: %v", err)
	}
	ok := &models.IVRMenuOption{MenuID: other.ID, Digit: "1", ActionType: models.IVRActionExtension, ActionValue: "1001"}
	if err := store.IVRMenus.CreateOption(ctx, ok); err != nil {
		t.Fatalf("creating option on second menu: %v", err)
	}
}

func TestIVROptionDigitValidation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	tn := createTenant(t, store, "t1.example.com")

	menu := &models.IVRMenu{TenantID: tn.ID, Name: "main"}
	if err := store.IVRMenus.Create(ctx, menu); err != nil {
		t.Fatalf("creating menu: %v", err)
	}

	for _, digit := range []string{"", "12", "a", "+"} {
		opt := &models.IVRMenuOption{MenuID: menu.ID, Digit: digit, ActionType: models.IVRActionExtension, ActionValue: "1001"}
		if err := store.IVRMenus.CreateOption(ctx, opt); err == nil {
			t.Errorf("digit %q accepted, want error", digit)
		}
	}
}

func TestInboundRoutePriorityOrdering(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	t1 := createTenant(t, store, "t1.example.com")
	t2 := createTenant(t, store, "t2.example.com")

	routes := []*models.InboundRoute{
		{TenantID: t1.ID, DIDNumber: "15551234", DestinationType: models.DestExtension, DestinationValue: "1001", Priority: 5, Enabled: true},
		{TenantID: t2.ID, DIDNumber: "15551234", DestinationType: models.DestExtension, DestinationValue: "2001", Priority: 1, Enabled: true},
		{TenantID: t2.ID, DIDNumber: "15551234", DestinationType: models.DestExtension, DestinationValue: "2002", Priority: 0, Enabled: false},
	}
	for _, route := range routes {
		if err := store.InboundRoutes.Create(ctx, route); err != nil {
			t.Fatalf("creating route: %v", err)
		}
	}

	got, err := store.InboundRoutes.FirstEnabledByDID(ctx, "15551234")
	if err != nil {
		t.Fatalf("FirstEnabledByDID: %v", err)
	}
	if got == nil || got.DestinationValue != "2001" {
		t.Fatalf("winner = %+v, want the enabled priority-1 route", got)
	}

	scoped, err := store.InboundRoutes.FirstEnabledByDIDAndTenant(ctx, "15551234", t1.ID)
	if err != nil {
		t.Fatalf("FirstEnabledByDIDAndTenant: %v", err)
	}
	if scoped == nil || scoped.DestinationValue != "1001" {
		t.Fatalf("scoped winner = %+v, want tenant 1's route", scoped)
	}

	miss, err := store.InboundRoutes.FirstEnabledByDID(ctx, "19990000")
	if err != nil {
		t.Fatalf("FirstEnabledByDID miss: %v", err)
	}
	if miss != nil {
		t.Fatalf("unexpected match for unknown DID: %+v", miss)
	}
}

func TestBillingDebit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	tn := createTenant(t, store, "t1.example.com")

	bc := &models.BillingConfig{TenantID: tn.ID, PrepaidEnabled: true, BalanceAmount: 50}
	if err := store.BillingConfigs.Create(ctx, bc); err != nil {
		t.Fatalf("creating billing config: %v", err)
	}

	if err := store.BillingConfigs.Debit(ctx, tn.ID, 12.5); err != nil {
		t.Fatalf("debit: %v", err)
	}

	got, err := store.BillingConfigs.GetByTenant(ctx, tn.ID)
	if err != nil {
		t.Fatalf("reading billing config: %v", err)
	}
	if got.BalanceAmount != 37.5 {
		t.Errorf("balance = %v, want 37.5", got.BalanceAmount)
	}
}

func TestCDRLookupMiss(t *testing.T) {
	store := newTestStore(t)

	cdr, err := store.CDRs.GetByCallUUID(context.Background(), "no-such-uuid")
	if err != nil {
		t.Fatalf("GetByCallUUID: %v", err)
	}
	if cdr != nil {
		t.Fatalf("expected nil for unknown uuid, got %+v", cdr)
	}
}
