// handlers/admin_handler.go
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jrkim3888/airplane-ticket-price-tracker/services"
)

// BriefResponse is the response of POST /api/admin/verify.
type BriefResponse struct {
	Message string                  `json:"message"`
	Results []services.VerifyResult `json:"results"`
}

// ScanHandler runs one scan cycle synchronously. Only one run may hold the
// store at a time; a concurrent request gets 409. The cycle runs to the end
// even if the client disconnects.
func (a *API) ScanHandler(w http.ResponseWriter, r *http.Request) {
	report, err := a.jobs.TryScan(context.WithoutCancel(r.Context()))
	if errors.Is(err, services.ErrRunInProgress) {
		respondWithError(w, http.StatusConflict, "A run is already in progress")
		return
	}
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Scan failed: %v", err))
		return
	}
	respondWithJSON(w, http.StatusOK, report)
}

// VerifyHandler verifies every route and sends the briefing.
func (a *API) VerifyHandler(w http.ResponseWriter, r *http.Request) {
	msg, results, err := a.jobs.TryBrief(context.WithoutCancel(r.Context()))
	if errors.Is(err, services.ErrRunInProgress) {
		respondWithError(w, http.StatusConflict, "A run is already in progress")
		return
	}
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Verification failed: %v", err))
		return
	}
	if results == nil {
		results = []services.VerifyResult{}
	}
	respondWithJSON(w, http.StatusOK, BriefResponse{Message: msg, Results: results})
}
