package middleware

import (
	"encoding/json"
	"net/http"
)

// writeJSONError emits an error in the same envelope the api package uses,
// so clients see one response shape no matter which layer rejected the
// request.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	body := struct {
		Data  any    `json:"data"`
		Error string `json:"error,omitempty"`
	}{Error: msg}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body) //nolint:errcheck
}
