package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/labelforge/labelforge/internal/store"
	"github.com/labelforge/labelforge/pkg/label"
	"github.com/labelforge/labelforge/pkg/ledger"
)

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// respondMessage writes the {"message": ...} envelope every failure
// and most successes use. Reason strings only; internals never leak.
func respondMessage(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"message": message})
}

// errorStatus maps domain errors to HTTP responses.
func errorStatus(err error) (int, string) {
	var ve *label.ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest, ve.Error()
	}

	switch {
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return http.StatusBadRequest, "Insufficient Balance"
	case errors.Is(err, ledger.ErrAccountNotFound),
		errors.Is(err, store.ErrNotFound),
		errors.Is(err, label.ErrUserNotFound):
		return http.StatusNotFound, "User not found"
	case errors.Is(err, store.ErrEmailTaken):
		return http.StatusBadRequest, "User with this email already exists"
	case errors.Is(err, store.ErrServiceNotFound):
		return http.StatusBadRequest, "Service not found for this user"
	case errors.Is(err, label.ErrCourierNotSupported):
		return http.StatusBadRequest, "Courier not supported"
	}

	var pe *label.ProviderError
	if errors.As(err, &pe) {
		if pe.Kind == label.KindNoResponse {
			return http.StatusBadGateway, "No response received from label provider"
		}
		status := pe.StatusCode
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		return status, pe.Message
	}

	return http.StatusInternalServerError, "Internal server error"
}

func respondError(w http.ResponseWriter, err error) {
	status, message := errorStatus(err)
	respondMessage(w, status, message)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondMessage(w, http.StatusBadRequest, "Invalid JSON body")
		return false
	}
	return true
}
