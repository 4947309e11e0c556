package server

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/labelforge/labelforge/internal/auth"
	"github.com/labelforge/labelforge/pkg/account"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		respondMessage(w, http.StatusBadRequest, "name, email and password are required")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error("Password hashing failed", zap.Error(err))
		respondError(w, err)
		return
	}

	user := &account.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         account.RoleAdmin,
		Activation:   account.ActivationAllow,
		Services:     account.DefaultServices(),
	}

	if _, err := s.deps.Users.CreateUser(r.Context(), user); err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"ok":      true,
		"message": "User registered successfully",
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := s.deps.Users.FindUserByEmail(r.Context(), req.Email)
	if err != nil {
		respondMessage(w, http.StatusBadRequest, "User not found")
		return
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		respondMessage(w, http.StatusBadRequest, "Invalid credentials")
		return
	}
	if user.Blocked() {
		respondMessage(w, http.StatusBadRequest, "Account is blocked")
		return
	}

	token, err := s.deps.Auth.IssueToken(user.ID, user.Email)
	if err != nil {
		s.logger.Error("Token issuance failed", zap.Error(err))
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"user":  user,
	})
}

// handleProviderBalance surfaces the provider-side account balance.
func (s *Server) handleProviderBalance(w http.ResponseWriter, r *http.Request) {
	info, err := s.deps.Provider.AccountInfo(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, info)
}
