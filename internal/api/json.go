package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"ecomap/internal/store"
)

// Problem is an RFC7807 problem details response body.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, title, detail, instance string) {
	writeJSON(w, status, Problem{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: instance,
	})
}

// writeStoreErr maps store.ErrNotFound to 404 and everything else to 500.
func writeStoreErr(w http.ResponseWriter, err error, title, instance string) {
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Not Found", title, instance)
		return
	}
	writeProblem(w, http.StatusInternalServerError, title, err.Error(), instance)
}
