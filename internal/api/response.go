package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/routepbx/routepbx/internal/fsxml"
)

// envelope wraps every JSON reply. Success carries the payload under
// "data"; failures carry a message under "error" and a null payload.
type envelope struct {
	Data  any    `json:"data"`
	Error string `json:"error,omitempty"`
}

// writeJSON replies with {"data": payload} at the given status.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	respond(w, status, envelope{Data: payload})
}

// writeError replies with {"data": null, "error": msg} at the given status.
func writeError(w http.ResponseWriter, status int, msg string) {
	respond(w, status, envelope{Error: msg})
}

// respond marshals before touching the ResponseWriter so an unencodable
// payload degrades to a clean 500 instead of a half-written body.
func respond(w http.ResponseWriter, status int, body envelope) {
	buf, err := json.Marshal(body)
	if err != nil {
		slog.Error("encoding json response", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(buf); err != nil {
		slog.Debug("writing json response", "error", err)
	}
}

// writeXML serializes an xml_curl document. Marshal failures degrade to a
// plain 500; the switch treats any non-XML reply as a lookup miss.
func writeXML(w http.ResponseWriter, doc *fsxml.Document) {
	data, err := doc.Marshal()
	if err != nil {
		slog.Error("marshaling xml document", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		slog.Debug("writing xml response", "error", err)
	}
}
