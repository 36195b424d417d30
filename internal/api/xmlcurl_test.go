package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/routepbx/routepbx/internal/config"
	"github.com/routepbx/routepbx/internal/database"
	"github.com/routepbx/routepbx/internal/database/models"
	"github.com/routepbx/routepbx/internal/dialplan"
	"github.com/routepbx/routepbx/internal/fsxml"
	"github.com/routepbx/routepbx/internal/tenant"
)

func newTestServer(t *testing.T) (*Server, *database.Store) {
	t.Helper()
	db, err := database.Open(t.TempDir(), "")
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store := database.NewStore(db)
	resolver := tenant.NewResolver(store.Tenants, store.Extensions)
	engine := dialplan.NewEngine(store, resolver)
	cfg := &config.Config{LogLevel: "info", LogFormat: "text"}

	srv := NewServer(store, cfg, engine, resolver, nil, nil)
	t.Cleanup(srv.Close)
	return srv, store
}

func seedTenantWithExtension(t *testing.T, store *database.Store) *models.Tenant {
	t.Helper()
	ctx := context.Background()
	tn := &models.Tenant{Name: "t1", Domain: "t1.example.com"}
	if err := store.Tenants.Create(ctx, tn); err != nil {
		t.Fatalf("creating tenant: %v", err)
	}
	ext := &models.Extension{TenantID: tn.ID, Extension: "1001", Password: "s3cret", Enabled: true}
	if err := store.Extensions.Create(ctx, ext); err != nil {
		t.Fatalf("creating extension: %v", err)
	}
	return tn
}

func TestXMLCurlDialplanGET(t *testing.T) {
	srv, store := newTestServer(t)
	seedTenantWithExtension(t, store)

	req := httptest.NewRequest(http.MethodGet,
		"/xmlcurl?section=dialplan&destination_number=1001&domain=t1.example.com", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/xml" {
		t.Errorf("content-type = %q, want application/xml", ct)
	}

	doc, err := fsxml.Parse(w.Body.Bytes())
	if err != nil {
		t.Fatalf("parsing response: %v", err)
	}
	actions := dialplan.ProgramActions(doc)
	var bridged bool
	for _, a := range actions {
		if a.Application == "bridge" && a.Data == "user/1001@t1.example.com" {
			bridged = true
		}
	}
	if !bridged {
		t.Errorf("expected local bridge in %v", actions)
	}
}

func TestXMLCurlDialplanPOSTSwitchNames(t *testing.T) {
	srv, store := newTestServer(t)
	seedTenantWithExtension(t, store)

	// Switch-native header-style variable names via form body.
	form := url.Values{}
	form.Set("section", "dialplan")
	form.Set("Caller-Destination-Number", "1001")
	form.Set("Caller-Context", "context_1")
	form.Set("variable_domain_name", "t1.example.com")

	req := httptest.NewRequest(http.MethodPost, "/xmlcurl", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "user/1001@t1.example.com") {
		t.Errorf("missing bridge target in response:\n%s", w.Body.String())
	}
}

func TestXMLCurlDirectory(t *testing.T) {
	srv, store := newTestServer(t)
	seedTenantWithExtension(t, store)

	req := httptest.NewRequest(http.MethodGet,
		"/xmlcurl?section=directory&user=1001&domain=t1.example.com", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `<section name="directory">`) {
		t.Errorf("not a directory document:\n%s", body)
	}
	if !strings.Contains(body, `name="a1-hash"`) {
		t.Errorf("missing a1-hash param:\n%s", body)
	}
}

func TestXMLCurlDirectoryUnknownUser(t *testing.T) {
	srv, store := newTestServer(t)
	seedTenantWithExtension(t, store)

	req := httptest.NewRequest(http.MethodGet,
		"/xmlcurl?section=directory&user=9999&domain=t1.example.com", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if !strings.Contains(w.Body.String(), `status="not found"`) {
		t.Errorf("expected not-found result:\n%s", w.Body.String())
	}
}

func TestXMLCurlConfiguration(t *testing.T) {
	srv, store := newTestServer(t)
	seedTenantWithExtension(t, store)

	req := httptest.NewRequest(http.MethodGet, "/xmlcurl?section=configuration&key_value=sofia.conf", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `status="not found"`) {
		t.Errorf("configuration queries must return not-found:\n%s", w.Body.String())
	}
}

func TestXMLCurlJSONBody(t *testing.T) {
	srv, store := newTestServer(t)
	seedTenantWithExtension(t, store)

	body := `{"section":"dialplan","destination_number":"1001","domain":"t1.example.com"}`
	req := httptest.NewRequest(http.MethodPost, "/xmlcurl", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "user/1001@t1.example.com") {
		t.Errorf("missing bridge target:\n%s", w.Body.String())
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}
