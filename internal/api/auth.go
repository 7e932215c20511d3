package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/MikeSquared-Agency/EduMate/internal/auth"
	"github.com/MikeSquared-Agency/EduMate/internal/hermes"
	"github.com/MikeSquared-Agency/EduMate/internal/scoring"
	"github.com/MikeSquared-Agency/EduMate/internal/store"
)

const errUserExists = "User already exists with this email"

type AuthHandler struct {
	store      store.Store
	tokens     *auth.TokenManager
	hermes     hermes.Client
	bcryptCost int
	clock      scoring.Clock
	logger     *slog.Logger
}

func NewAuthHandler(s store.Store, tokens *auth.TokenManager, h hermes.Client, bcryptCost int, clock scoring.Clock, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{store: s, tokens: tokens, hermes: h, bcryptCost: bcryptCost, clock: clock, logger: logger}
}

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,notblank"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type authResponse struct {
	Message string      `json:"message"`
	User    *store.User `json:"user"`
	Token   string      `json:"token"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeRegisterError(w, err)
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	existing, err := h.store.GetUserByEmail(r.Context(), email)
	if err != nil {
		writeInternal(w, h.logger, "lookup user by email failed", err)
		return
	}
	if existing != nil {
		writeError(w, http.StatusBadRequest, errUserExists)
		return
	}

	hash, err := auth.HashPassword(req.Password, h.bcryptCost)
	if err != nil {
		writeInternal(w, h.logger, "hash password failed", err)
		return
	}
	user := &store.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		PasswordHash: hash,
	}
	if err := h.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			writeError(w, http.StatusBadRequest, errUserExists)
			return
		}
		writeInternal(w, h.logger, "create user failed", err)
		return
	}

	token, err := h.tokens.Issue(user)
	if err != nil {
		writeInternal(w, h.logger, "issue token failed", err)
		return
	}

	hermes.Emit(r.Context(), h.hermes, h.logger, hermes.SubjectUserRegistered(user.ID.String()), hermes.UserRegisteredEvent{
		UserID:    user.ID.String(),
		Email:     user.Email,
		Timestamp: h.clock.Now().UTC(),
	})

	writeJSON(w, http.StatusCreated, authResponse{Message: "User created successfully", User: user, Token: token})
}

// writeRegisterError keeps the registration messages clients already match on.
func writeRegisterError(w http.ResponseWriter, err error) {
	var ve *validationError
	if !errors.As(err, &ve) {
		writeBadRequest(w, err)
		return
	}
	msg := "All fields are required"
	switch {
	case ve.has("name", "required", "notblank"), ve.has("email", "required"), ve.has("password", "required"):
	case ve.has("email", "email"):
		msg = "Please enter a valid email address"
	case ve.has("password", "min"):
		msg = "Password must be at least 6 characters long"
	}
	writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": msg, "fields": ve.fields})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeAndValidate(r, &req); err != nil {
		var ve *validationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, "Email and password are required")
			return
		}
		writeBadRequest(w, err)
		return
	}

	user, err := h.store.GetUserByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		writeInternal(w, h.logger, "lookup user by email failed", err)
		return
	}
	if user == nil || auth.CheckPassword(user.PasswordHash, req.Password) != nil {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := h.tokens.Issue(user)
	if err != nil {
		writeInternal(w, h.logger, "issue token failed", err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{Message: "Login successful", User: user, Token: token})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"user": UserFromContext(r.Context())})
}
