package http

import (
	"errors"
	"net/http"

	"spendlog/internal/auth"
	applog "spendlog/internal/log"
	"spendlog/internal/services"
	"spendlog/internal/store"
)

type registerResponse struct {
	Message string `json:"message"`
	UserID  string `json:"userId"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type loginResponse struct {
	Message string    `json:"message"`
	User    loginUser `json:"user"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	profile, err := s.svc.Accounts.Register(ctx, req)
	if errors.Is(err, store.ErrConflict) {
		writeError(w, http.StatusBadRequest, "User already exists")
		return
	}
	if err != nil {
		s.writeServiceError(w, r, err, applog.ComponentAuth, applog.OpCreate)
		return
	}
	writeJSON(w, http.StatusCreated, registerResponse{Message: "User created successfully", UserID: profile.ID})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	res, err := s.svc.Accounts.Login(ctx, req.Email, req.Password)
	if err != nil {
		s.writeServiceError(w, r, err, applog.ComponentAuth, applog.OpRead)
		return
	}

	auth.SetCookie(w, res.Token, s.tokens.TTL(), s.secure)
	writeJSON(w, http.StatusOK, loginResponse{
		Message: "Login successful",
		User: loginUser{
			ID:    res.User.ID,
			Name:  res.User.FullName(),
			Email: res.User.Email,
		},
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	auth.ClearCookie(w, s.secure)
	writeMessage(w, http.StatusOK, "Logout successful")
}
