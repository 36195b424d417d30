package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/routepbx/routepbx/internal/dialplan"
	"github.com/routepbx/routepbx/internal/fsxml"
)

// Variable-name aliases: the switch posts header-style names, admin tools
// and tests tend to use the plain channel-variable names. Both are accepted
// interchangeably.
var (
	destinationKeys = []string{"destination_number", "Caller-Destination-Number", "Hunt-Destination-Number"}
	contextKeys     = []string{"context", "Caller-Context", "Hunt-Context"}
	domainKeys      = []string{"domain", "variable_domain_name", "sip_auth_realm", "Caller-Domain"}
	userKeys        = []string{"user", "sip_auth_username", "Caller-Username"}
	callerIDKeys    = []string{"caller_id_number", "Caller-Caller-ID-Number"}
)

// handleXMLCurl answers the switch's xml_curl queries. It always emits a
// parseable document: lookup misses become "not found" results, internal
// failures are logged and degrade to the same.
func (s *Server) handleXMLCurl(w http.ResponseWriter, r *http.Request) {
	params, err := xmlcurlParams(r)
	if err != nil {
		slog.Warn("unreadable xmlcurl request", "error", err)
		writeXML(w, fsxml.NotFound())
		return
	}

	var doc *fsxml.Document
	switch params.first("section") {
	case "directory":
		doc, err = s.engine.Directory(r.Context(), params.first(userKeys...), params.first(domainKeys...))

	case "configuration":
		// No dynamic configuration delivery; the switch falls back to its
		// static files.
		doc = fsxml.NotFound()

	default:
		doc, err = s.engine.Resolve(r.Context(), dialplan.Request{
			Destination: params.first(destinationKeys...),
			Context:     params.first(contextKeys...),
			Domain:      params.first(domainKeys...),
			CallerID:    params.first(callerIDKeys...),
		})
	}

	if err != nil {
		slog.Error("xmlcurl resolution failed",
			"section", params.first("section"),
			"destination", params.first(destinationKeys...),
			"error", err)
		doc = fsxml.NotFound()
	}
	writeXML(w, doc)
}

// queryParams is a merged view over query string, form body and JSON body.
type queryParams struct {
	values url.Values
}

// first returns the first non-empty value among the named keys.
func (p queryParams) first(keys ...string) string {
	for _, k := range keys {
		if v := p.values.Get(k); v != "" {
			return v
		}
	}
	return ""
}

// xmlcurlParams collects request variables from the query string and, for
// POST, from a form or JSON body.
func xmlcurlParams(r *http.Request) (queryParams, error) {
	values := url.Values{}
	for k, vs := range r.URL.Query() {
		values[k] = vs
	}

	if r.Method != http.MethodPost {
		return queryParams{values: values}, nil
	}

	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "application/json") {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return queryParams{}, fmt.Errorf("decoding json body: %w", err)
		}
		for k, v := range body {
			if s, ok := v.(string); ok {
				values.Set(k, s)
			}
		}
		return queryParams{values: values}, nil
	}

	if err := r.ParseForm(); err != nil {
		return queryParams{}, fmt.Errorf("parsing form body: %w", err)
	}
	for k, vs := range r.PostForm {
		values[k] = vs
	}
	return queryParams{values: values}, nil
}
