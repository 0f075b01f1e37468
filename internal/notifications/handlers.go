package notifications

import (
	"net/http"
	"strconv"
	"time"

	"github.com/aliuyar1234/projecthub/internal/apperrors"
	"github.com/aliuyar1234/projecthub/internal/auth"
	"github.com/aliuyar1234/projecthub/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// View is a notification with its title and message rendered.
type View struct {
	ID        uuid.UUID      `json:"id"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data"`
	ReadAt    *time.Time     `json:"readAt,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Handler exposes the caller's notifications over HTTP.
type Handler struct {
	service  *Service
	st       store.Store
	messages apperrors.Translator
}

func NewHandler(service *Service, st store.Store, messages apperrors.Translator) *Handler {
	return &Handler{service: service, st: st, messages: messages}
}

// Routes mounts the notification endpoints. All of them require authentication.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/notifications", h.HandleList)
	r.Post("/notifications/{notification_id}/read", h.HandleMarkRead)
}

// HandleList handles GET /api/v1/notifications
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid limit")
			return
		}
		limit = parsed
	}

	list, err := h.service.ListForUser(r.Context(), h.st, auth.GetUserID(r.Context()), limit)
	if err != nil {
		apperrors.WriteDomainError(w, r, h.messages, auth.RequestLocale(r), err)
		return
	}

	locale := auth.RequestLocale(r)
	out := make([]View, 0, len(list))
	for _, n := range list {
		v := View{
			ID:        n.ID,
			Type:      n.Type,
			Title:     n.TitleKey,
			Message:   n.MessageKey,
			Data:      n.Data,
			ReadAt:    n.ReadAt,
			CreatedAt: n.CreatedAt,
		}
		if h.messages != nil {
			v.Title = h.messages.Message(locale, n.TitleKey)
			v.Message = h.messages.Message(locale, n.MessageKey)
		}
		if v.Data == nil {
			v.Data = map[string]any{}
		}
		out = append(out, v)
	}
	apperrors.WriteSuccess(w, r, http.StatusOK, out)
}

// HandleMarkRead handles POST /api/v1/notifications/{notification_id}/read
func (h *Handler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "notification_id"))
	if err != nil {
		apperrors.WriteBadRequest(w, r, "Invalid notification_id")
		return
	}
	if err := h.service.MarkRead(r.Context(), h.st, id, auth.GetUserID(r.Context())); err != nil {
		apperrors.WriteDomainError(w, r, h.messages, auth.RequestLocale(r), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
