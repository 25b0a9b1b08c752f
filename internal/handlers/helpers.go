// Package handlers implements the read API: ranked story feeds resolved
// against their source articles. The API is read-only; every write in the
// system belongs to the pipeline workers.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// writeJSON encodes v as JSON and writes it to w with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("api: write json", "error", err)
	}
}
