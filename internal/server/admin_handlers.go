package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/labelforge/labelforge/pkg/account"
)

// Account administration: listing users and changing their role,
// activation, or balance, plus account deletion.

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.deps.Users.ListUsers(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, users)
}

type updateRoleRequest struct {
	Role string `json:"user_role"`
}

func (s *Server) handleUpdateUserRole(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	var req updateRoleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Role != account.RoleAdmin && req.Role != account.RoleClient {
		respondMessage(w, http.StatusBadRequest, "user_role must be admin or client")
		return
	}

	if err := s.deps.Users.UpdateUserRole(r.Context(), userID, req.Role); err != nil {
		respondError(w, err)
		return
	}
	respondMessage(w, http.StatusOK, "User role updated successfully")
}

type updateActivationRequest struct {
	Activation string `json:"activation"`
}

func (s *Server) handleUpdateUserActivation(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	var req updateActivationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Activation != account.ActivationAllow && req.Activation != account.ActivationBlock {
		respondMessage(w, http.StatusBadRequest, "activation must be allow or block")
		return
	}

	if err := s.deps.Users.UpdateUserActivation(r.Context(), userID, req.Activation); err != nil {
		respondError(w, err)
		return
	}

	s.logger.Info("User activation updated",
		zap.String("user_id", userID),
		zap.String("activation", req.Activation),
	)
	respondMessage(w, http.StatusOK, "User activation status updated successfully")
}

type setBalanceRequest struct {
	Balance decimal.Decimal `json:"balance"`
}

// handleSetUserBalance overwrites a balance outright. Unlike top-up
// this is not a ledger movement; it is the administrative correction
// path.
func (s *Server) handleSetUserBalance(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	var req setBalanceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Balance.IsNegative() {
		respondMessage(w, http.StatusBadRequest, "balance must not be negative")
		return
	}

	if err := s.deps.Users.SetBalance(r.Context(), userID, req.Balance); err != nil {
		respondError(w, err)
		return
	}

	s.logger.Info("User balance overridden",
		zap.String("user_id", userID),
		zap.String("balance", req.Balance.String()),
	)
	respondMessage(w, http.StatusOK, "User balance updated successfully")
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	if err := s.deps.Users.DeleteUser(r.Context(), userID); err != nil {
		respondError(w, err)
		return
	}

	s.logger.Info("User deleted", zap.String("user_id", userID))
	respondMessage(w, http.StatusOK, "User deleted successfully")
}
