// handlers/response.go
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/jrkim3888/airplane-ticket-price-tracker/models"
)

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		slog.Error("Handler: marshalling JSON response", "err", err)
		http.Error(w, `{"error":"Failed to marshal JSON response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	if code >= http.StatusInternalServerError {
		slog.Error("Handler: API error", "status", code, "message", message)
	} else {
		slog.Warn("Handler: API error", "status", code, "message", message)
	}
	respondWithJSON(w, code, models.ErrorResponse{Error: message})
}
