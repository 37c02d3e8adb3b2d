// Package ui renders API responses in the {success, data} / {success, error} envelope.
package ui

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Render writes data wrapped in a success envelope.
func Render(w http.ResponseWriter, status int, data any) {
	write(w, status, envelope{Success: true, Data: data})
}

// RenderOK writes a success envelope without data.
func RenderOK(w http.ResponseWriter) {
	write(w, http.StatusOK, envelope{Success: true})
}

// RenderError writes a failure envelope with a client-facing message.
func RenderError(w http.ResponseWriter, status int, message string) {
	write(w, status, envelope{Success: false, Error: message})
}

func write(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(body)
	if err != nil {
		slog.Error("render failed", "error", err)
	}
}
