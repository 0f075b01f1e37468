package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/aliuyar1234/projecthub/internal/apperrors"
	"github.com/aliuyar1234/projecthub/internal/audit"
	"github.com/aliuyar1234/projecthub/internal/store"
	"github.com/aliuyar1234/projecthub/internal/users"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Handler serves signup, login and the current user.
type Handler struct {
	st          store.Store
	directory   *users.Directory
	auditor     *audit.Writer
	messages    apperrors.Translator
	secret      string
	sessionDays int
}

func NewHandler(st store.Store, directory *users.Directory, auditor *audit.Writer, messages apperrors.Translator, secret string, sessionDays int) *Handler {
	return &Handler{
		st:          st,
		directory:   directory,
		auditor:     auditor,
		messages:    messages,
		secret:      secret,
		sessionDays: sessionDays,
	}
}

// SignupRequest represents the signup request payload
type SignupRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	Locale      string `json:"locale"`
}

// LoginRequest represents the login request payload
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionResponse is returned by signup and login.
type SessionResponse struct {
	Token string   `json:"token"`
	User  UserView `json:"user"`
}

type UserView struct {
	ID           uuid.UUID          `json:"id"`
	Email        string             `json:"email"`
	DisplayName  string             `json:"display_name"`
	PlatformRole store.PlatformRole `json:"platform_role"`
	Locale       string             `json:"locale,omitempty"`
}

func newUserView(u *store.User) UserView {
	return UserView{
		ID:           u.ID,
		Email:        u.Email,
		DisplayName:  u.DisplayName,
		PlatformRole: u.PlatformRole,
		Locale:       u.Locale,
	}
}

// HandleSignup registers a regular platform user and opens a session.
func (h *Handler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperrors.WriteBadRequest(w, r, "Invalid JSON body")
		return
	}

	var u *store.User
	err := h.st.InTx(r.Context(), func(ctx context.Context, q store.Queries) error {
		var err error
		u, err = h.directory.Create(ctx, q, users.CreateParams{
			Email:        req.Email,
			DisplayName:  strings.TrimSpace(req.DisplayName),
			Password:     req.Password,
			PlatformRole: store.PlatformUser,
			Locale:       strings.ToLower(strings.TrimSpace(req.Locale)),
		})
		return err
	})
	if err != nil {
		apperrors.WriteDomainError(w, r, h.messages, RequestLocale(r), err)
		return
	}

	if err := h.auditor.LogUserSignup(r.Context(), u.ID, u.Email); err != nil {
		log.Error().Err(err).Str("user_id", u.ID.String()).Msg("Failed to create audit log")
	}

	h.writeSession(w, r, http.StatusCreated, u)
}

// HandleLogin exchanges credentials for a bearer token.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperrors.WriteBadRequest(w, r, "Invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		apperrors.WriteUnauthorized(w, r, "Invalid credentials")
		return
	}

	u, err := h.directory.Authenticate(r.Context(), h.st, req.Email, req.Password)
	if errors.Is(err, users.ErrInvalidCredentials) {
		if err := h.auditor.LogLoginFailed(r.Context(), req.Email, r.RemoteAddr); err != nil {
			log.Error().Err(err).Msg("Failed to create audit log")
		}
		apperrors.WriteUnauthorized(w, r, "Invalid credentials")
		return
	}
	if err != nil {
		apperrors.WriteDomainError(w, r, h.messages, RequestLocale(r), err)
		return
	}

	log.Info().
		Str("user_id", u.ID.String()).
		Str("email", u.Email).
		Msg("User logged in successfully")

	h.writeSession(w, r, http.StatusOK, u)
}

// HandleMe returns the authenticated user.
func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	u, err := h.directory.FindByID(r.Context(), h.st, GetUserID(r.Context()))
	if err != nil {
		apperrors.WriteDomainError(w, r, h.messages, RequestLocale(r), err)
		return
	}
	apperrors.WriteSuccess(w, r, http.StatusOK, newUserView(u))
}

func (h *Handler) writeSession(w http.ResponseWriter, r *http.Request, status int, u *store.User) {
	token, err := CreateToken(u, h.secret, h.sessionDays)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create token")
		apperrors.WriteInternalError(w, r, "Failed to create session")
		return
	}
	apperrors.WriteSuccess(w, r, status, SessionResponse{Token: token, User: newUserView(u)})
}
