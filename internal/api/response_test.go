package api

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/routepbx/routepbx/internal/fsxml"
)

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	writeJSON(w, http.StatusCreated, map[string]string{"uuid": "abc-123"})

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if env.Error != "" {
		t.Errorf("error = %q, want empty", env.Error)
	}
	data, ok := env.Data.(map[string]any)
	if !ok || data["uuid"] != "abc-123" {
		t.Errorf("data = %v", env.Data)
	}

	// Success replies never carry the error key.
	if strings.Contains(w.Body.String(), `"error"`) {
		t.Errorf("error key must be omitted on success: %s", w.Body.String())
	}
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, http.StatusBadRequest, "uuid is required")

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if env.Error != "uuid is required" {
		t.Errorf("error = %q", env.Error)
	}
	if env.Data != nil {
		t.Errorf("data = %v, want null", env.Data)
	}
}

func TestWriteJSONUnencodablePayload(t *testing.T) {
	w := httptest.NewRecorder()
	writeJSON(w, http.StatusOK, math.Inf(1))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if strings.Contains(w.Header().Get("Content-Type"), "application/json") {
		t.Error("failed encode must not claim a json body")
	}
}

func TestWriteXML(t *testing.T) {
	w := httptest.NewRecorder()
	writeXML(w, fsxml.NotFound())

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/xml" {
		t.Errorf("content type = %q", ct)
	}

	doc, err := fsxml.Parse(w.Body.Bytes())
	if err != nil {
		t.Fatalf("response is not a parseable document: %v", err)
	}
	if len(doc.Sections) == 0 {
		t.Error("document has no sections")
	}
}
