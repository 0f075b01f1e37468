package invitations

import (
	"encoding/json"
	"net/http"

	"github.com/aliuyar1234/projecthub/internal/apperrors"
	"github.com/aliuyar1234/projecthub/internal/auth"
	"github.com/aliuyar1234/projecthub/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Handler exposes invitations over HTTP.
type Handler struct {
	workflow *Workflow
	messages apperrors.Translator
}

func NewHandler(workflow *Workflow, messages apperrors.Translator) *Handler {
	return &Handler{workflow: workflow, messages: messages}
}

// Routes mounts the invitation endpoints. All of them require authentication.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/projects/{project_id}/invitations", h.HandleInvite)
	r.Get("/invitations", h.HandleListMine)
	r.Post("/invitations/{invitation_id}/accept", h.HandleAccept)
	r.Post("/invitations/{invitation_id}/reject", h.HandleReject)
}

// InviteRequest is the body of POST /projects/{project_id}/invitations.
type InviteRequest struct {
	Email  string     `json:"email"`
	RoleID *uuid.UUID `json:"roleId,omitempty"`
}

// InviteResponse reports what an invite did. Unknown emails are accepted
// without creating anything.
type InviteResponse struct {
	Invited      bool                   `json:"invited"`
	InvitationID *uuid.UUID             `json:"invitationId,omitempty"`
	Status       store.InvitationStatus `json:"status,omitempty"`
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	apperrors.WriteDomainError(w, r, h.messages, auth.RequestLocale(r), err)
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		apperrors.WriteBadRequest(w, r, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// HandleInvite handles POST /api/v1/projects/{project_id}/invitations
func (h *Handler) HandleInvite(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathUUID(w, r, "project_id")
	if !ok {
		return
	}

	var req InviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperrors.WriteBadRequest(w, r, "Invalid request body")
		return
	}

	actor, _ := auth.GetActor(r.Context())
	inv, err := h.workflow.InviteMember(r.Context(), actor, projectID, req.Email, req.RoleID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if inv == nil {
		apperrors.WriteSuccess(w, r, http.StatusAccepted, InviteResponse{})
		return
	}
	apperrors.WriteSuccess(w, r, http.StatusCreated, InviteResponse{
		Invited:      true,
		InvitationID: &inv.ID,
		Status:       inv.Status,
	})
}

// HandleListMine handles GET /api/v1/invitations
func (h *Handler) HandleListMine(w http.ResponseWriter, r *http.Request) {
	list, err := h.workflow.ListPendingForUser(r.Context(), h.workflow.st, auth.GetUserID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	apperrors.WriteSuccess(w, r, http.StatusOK, list)
}

// HandleAccept handles POST /api/v1/invitations/{invitation_id}/accept
func (h *Handler) HandleAccept(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "invitation_id")
	if !ok {
		return
	}
	if err := h.workflow.Accept(r.Context(), id, auth.GetUserID(r.Context())); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleReject handles POST /api/v1/invitations/{invitation_id}/reject
func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "invitation_id")
	if !ok {
		return
	}
	if err := h.workflow.Reject(r.Context(), id, auth.GetUserID(r.Context())); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
