package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type topUpRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// handleTopUp credits a user's balance. The payment gateway that
// collects the money is an external collaborator; by the time this is
// called the payment is considered settled.
func (s *Server) handleTopUp(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	var req topUpRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		respondMessage(w, http.StatusBadRequest, "amount must be positive")
		return
	}

	balance, err := s.deps.Ledger.Credit(r.Context(), userID, req.Amount)
	if err != nil {
		respondError(w, err)
		return
	}

	s.logger.Info("Balance credited",
		zap.String("user_id", userID),
		zap.String("amount", req.Amount.String()),
	)

	respondJSON(w, http.StatusOK, map[string]any{
		"message": "Payment recorded successfully",
		"balance": balance,
	})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	balance, err := s.deps.Ledger.Balance(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"balance": balance})
}
