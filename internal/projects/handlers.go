package projects

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/aliuyar1234/projecthub/internal/access"
	"github.com/aliuyar1234/projecthub/internal/apperrors"
	"github.com/aliuyar1234/projecthub/internal/auth"
	"github.com/aliuyar1234/projecthub/internal/filestore"
	"github.com/aliuyar1234/projecthub/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// multipartOverhead is the room left for the JSON part of an icon upload.
const multipartOverhead = 1 << 20

// Handler exposes the project lifecycle over HTTP.
type Handler struct {
	manager      *Manager
	messages     apperrors.Translator
	maxIconBytes int64
}

func NewHandler(manager *Manager, messages apperrors.Translator, maxIconBytes int64) *Handler {
	if maxIconBytes <= 0 {
		maxIconBytes = filestore.DefaultMaxBytes
	}
	return &Handler{manager: manager, messages: messages, maxIconBytes: maxIconBytes}
}

// Routes mounts the project endpoints. All of them require authentication.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/project-types", h.HandleListTypes)
	r.Get("/roles", h.HandleListRoles)

	r.Route("/projects", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/", h.HandleCreate)

		r.Route("/{project_id}", func(r chi.Router) {
			r.Get("/", h.HandleGet)
			r.Patch("/", h.HandleUpdate)
			r.Delete("/", h.HandleRemove)
			r.Get("/audit", h.HandleListAudit)
			r.Delete("/members/{user_id}", h.HandleRemoveMember)

			r.Get("/{kind}", h.HandleListLabels)
			r.Post("/{kind}", h.HandleCreateLabel)
			r.Patch("/{kind}/{label_id}", h.HandleUpdateLabel)
			r.Delete("/{kind}/{label_id}", h.HandleDeleteLabel)
		})
	})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	apperrors.WriteDomainError(w, r, h.messages, auth.RequestLocale(r), err)
}

func actorOf(r *http.Request) access.Actor {
	actor, _ := auth.GetActor(r.Context())
	return actor
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		apperrors.WriteBadRequest(w, r, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// labelKind maps the plural path segment to a label collection.
func labelKind(w http.ResponseWriter, r *http.Request) (store.LabelKind, bool) {
	switch chi.URLParam(r, "kind") {
	case "categories":
		return store.LabelCategory, true
	case "statuses":
		return store.LabelStatus, true
	}
	apperrors.WriteNotFound(w, r, "Not found")
	return "", false
}

// decodeProjectBody reads a JSON body, or a multipart form whose "project"
// field holds the JSON and whose optional "icon" field holds the file. The
// returned closer releases the uploaded file.
func (h *Handler) decodeProjectBody(w http.ResponseWriter, r *http.Request, dst any) (*filestore.File, func(), bool) {
	noop := func() {}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxIconBytes+multipartOverhead)

	if !isMultipart(r) {
		if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
			writeBodyError(w, r, err)
			return nil, noop, false
		}
		return nil, noop, true
	}

	if err := r.ParseMultipartForm(h.maxIconBytes + multipartOverhead); err != nil {
		writeBodyError(w, r, err)
		return nil, noop, false
	}
	cleanup := func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}
	if err := json.Unmarshal([]byte(r.FormValue("project")), dst); err != nil {
		cleanup()
		apperrors.WriteBadRequest(w, r, "Invalid project field")
		return nil, noop, false
	}

	file, header, err := r.FormFile("icon")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, cleanup, true
	}
	if err != nil {
		cleanup()
		apperrors.WriteBadRequest(w, r, "Invalid icon field")
		return nil, noop, false
	}

	icon, err := iconFile(file, header)
	if err != nil {
		_ = file.Close()
		cleanup()
		apperrors.WriteBadRequest(w, r, "Invalid icon field")
		return nil, noop, false
	}
	return icon, func() {
		_ = file.Close()
		cleanup()
	}, true
}

func iconFile(file multipart.File, header *multipart.FileHeader) (*filestore.File, error) {
	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		sniff := make([]byte, 512)
		n, err := io.ReadFull(file, sniff)
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
			return nil, err
		}
		contentType = http.DetectContentType(sniff[:n])
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
	}
	return &filestore.File{
		Name:        header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Body:        file,
	}, nil
}

func isMultipart(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return len(ct) >= 19 && ct[:19] == "multipart/form-data"
}

func writeBodyError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		apperrors.WritePayloadTooLarge(w, r, "Request body too large")
		return
	}
	apperrors.WriteBadRequest(w, r, "Invalid request body")
}

// HandleList handles GET /api/v1/projects
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.manager.FindAll(r.Context(), actorOf(r), auth.RequestLocale(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	apperrors.WriteSuccess(w, r, http.StatusOK, list)
}

// HandleCreate handles POST /api/v1/projects
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	icon, done, ok := h.decodeProjectBody(w, r, &in)
	if !ok {
		return
	}
	defer done()
	in.Icon = icon

	actor := actorOf(r)
	p, err := h.manager.Create(r.Context(), actor, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	details, err := h.manager.FindOneWithDetails(r.Context(), actor, p.ID, auth.RequestLocale(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	apperrors.WriteSuccess(w, r, http.StatusCreated, details)
}

// HandleGet handles GET /api/v1/projects/{project_id}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "project_id")
	if !ok {
		return
	}
	details, err := h.manager.FindOneWithDetails(r.Context(), actorOf(r), id, auth.RequestLocale(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	apperrors.WriteSuccess(w, r, http.StatusOK, details)
}

// HandleUpdate handles PATCH /api/v1/projects/{project_id}
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "project_id")
	if !ok {
		return
	}

	var in UpdateInput
	icon, done, ok := h.decodeProjectBody(w, r, &in)
	if !ok {
		return
	}
	defer done()
	in.Icon = icon

	actor := actorOf(r)
	if _, err := h.manager.Update(r.Context(), actor, id, in); err != nil {
		h.fail(w, r, err)
		return
	}

	details, err := h.manager.FindOneWithDetails(r.Context(), actor, id, auth.RequestLocale(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	apperrors.WriteSuccess(w, r, http.StatusOK, details)
}

// HandleRemove handles DELETE /api/v1/projects/{project_id}
func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "project_id")
	if !ok {
		return
	}
	if err := h.manager.Remove(r.Context(), actorOf(r), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRemoveMember handles DELETE /api/v1/projects/{project_id}/members/{user_id}
func (h *Handler) HandleRemoveMember(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathUUID(w, r, "project_id")
	if !ok {
		return
	}
	userID, ok := pathUUID(w, r, "user_id")
	if !ok {
		return
	}
	if err := h.manager.RemoveMember(r.Context(), actorOf(r), projectID, userID); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListAudit handles GET /api/v1/projects/{project_id}/audit
func (h *Handler) HandleListAudit(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathUUID(w, r, "project_id")
	if !ok {
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid limit")
			return
		}
		limit = parsed
	}

	items, err := h.manager.ListAudit(r.Context(), actorOf(r), projectID, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	apperrors.WriteSuccess(w, r, http.StatusOK, items)
}

// HandleListTypes handles GET /api/v1/project-types
func (h *Handler) HandleListTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.manager.ListTypes(r.Context(), actorOf(r), auth.RequestLocale(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	apperrors.WriteSuccess(w, r, http.StatusOK, types)
}

// HandleListRoles handles GET /api/v1/roles
func (h *Handler) HandleListRoles(w http.ResponseWriter, r *http.Request) {
	list, err := h.manager.ListRoles(r.Context(), actorOf(r), auth.RequestLocale(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	apperrors.WriteSuccess(w, r, http.StatusOK, list)
}

// HandleListLabels handles GET /api/v1/projects/{project_id}/{categories|statuses}
func (h *Handler) HandleListLabels(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathUUID(w, r, "project_id")
	if !ok {
		return
	}
	kind, ok := labelKind(w, r)
	if !ok {
		return
	}
	list, err := h.manager.ListLabels(r.Context(), actorOf(r), projectID, kind, auth.RequestLocale(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	apperrors.WriteSuccess(w, r, http.StatusOK, list)
}

// HandleCreateLabel handles POST /api/v1/projects/{project_id}/{categories|statuses}
func (h *Handler) HandleCreateLabel(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathUUID(w, r, "project_id")
	if !ok {
		return
	}
	kind, ok := labelKind(w, r)
	if !ok {
		return
	}

	var in LabelInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		apperrors.WriteBadRequest(w, r, "Invalid request body")
		return
	}

	view, err := h.manager.CreateLabel(r.Context(), actorOf(r), projectID, kind, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	apperrors.WriteSuccess(w, r, http.StatusCreated, view)
}

// HandleUpdateLabel handles PATCH /api/v1/projects/{project_id}/{categories|statuses}/{label_id}
func (h *Handler) HandleUpdateLabel(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathUUID(w, r, "project_id")
	if !ok {
		return
	}
	kind, ok := labelKind(w, r)
	if !ok {
		return
	}
	labelID, ok := pathUUID(w, r, "label_id")
	if !ok {
		return
	}

	var in LabelInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		apperrors.WriteBadRequest(w, r, "Invalid request body")
		return
	}

	view, err := h.manager.UpdateLabel(r.Context(), actorOf(r), projectID, kind, labelID, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	apperrors.WriteSuccess(w, r, http.StatusOK, view)
}

// HandleDeleteLabel handles DELETE /api/v1/projects/{project_id}/{categories|statuses}/{label_id}
func (h *Handler) HandleDeleteLabel(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathUUID(w, r, "project_id")
	if !ok {
		return
	}
	kind, ok := labelKind(w, r)
	if !ok {
		return
	}
	labelID, ok := pathUUID(w, r, "label_id")
	if !ok {
		return
	}

	if err := h.manager.DeleteLabel(r.Context(), actorOf(r), projectID, kind, labelID); err != nil {
		h.fail(w, r, err)
		return
	}

	log.Debug().
		Str("project_id", projectID.String()).
		Str("label_id", labelID.String()).
		Msg("Label deleted via API")
	w.WriteHeader(http.StatusNoContent)
}
