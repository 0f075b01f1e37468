package audit

import (
	"context"

	"github.com/aliuyar1234/projecthub/internal/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	EventUserSignup         = "user.signup"
	EventLoginFailed        = "auth.login_failed"
	EventProjectCreated     = "project.created"
	EventProjectUpdated     = "project.updated"
	EventProjectRemoved     = "project.removed"
	EventInvitationCreated  = "invitation.created"
	EventInvitationAccepted = "invitation.accepted"
	EventInvitationRejected = "invitation.rejected"
	EventMemberRoleUpdated  = "member.role_updated"
	EventMemberRemoved      = "member.removed"
	EventLabelChanged       = "label.changed"
)

// Writer records audit events. Writes are best effort: a failure is logged
// and never fails the operation being audited.
type Writer struct {
	st store.Store
}

func NewWriter(st store.Store) *Writer {
	return &Writer{st: st}
}

// LogParams contains parameters for logging an audit event.
type LogParams struct {
	ProjectID   *uuid.UUID
	ActorUserID *uuid.UUID
	Action      string
	Meta        map[string]interface{}
}

// Log writes the event immediately, outside of any transaction.
func (w *Writer) Log(ctx context.Context, params LogParams) error {
	if w == nil {
		return nil
	}

	e := &store.AuditEvent{
		ProjectID:   params.ProjectID,
		ActorUserID: params.ActorUserID,
		Action:      params.Action,
		Meta:        params.Meta,
	}
	if err := w.st.Audit().Insert(ctx, e); err != nil {
		log.Error().Err(err).Str("action", params.Action).Msg("Failed to write audit log")
		return err
	}

	log.Info().
		Str("action", params.Action).
		Interface("project_id", params.ProjectID).
		Interface("actor_user_id", params.ActorUserID).
		Msg("Audit event logged")
	return nil
}

// Record schedules the event for when q's transaction commits. Events of a
// rolled back operation are never written.
func (w *Writer) Record(q store.Queries, params LogParams) {
	if w == nil {
		return
	}
	q.AfterCommit(func(ctx context.Context) {
		_ = w.Log(context.WithoutCancel(ctx), params)
	})
}

func (w *Writer) LogUserSignup(ctx context.Context, userID uuid.UUID, email string) error {
	return w.Log(ctx, LogParams{
		ActorUserID: &userID,
		Action:      EventUserSignup,
		Meta: map[string]interface{}{
			"email": email,
		},
	})
}

func (w *Writer) LogLoginFailed(ctx context.Context, email, ip string) error {
	return w.Log(ctx, LogParams{
		Action: EventLoginFailed,
		Meta: map[string]interface{}{
			"email": email,
			"ip":    ip,
		},
	})
}

func (w *Writer) RecordProjectCreated(q store.Queries, projectID, actorUserID uuid.UUID, name string) {
	w.Record(q, LogParams{
		ProjectID:   &projectID,
		ActorUserID: &actorUserID,
		Action:      EventProjectCreated,
		Meta: map[string]interface{}{
			"name": name,
		},
	})
}

func (w *Writer) RecordProjectUpdated(q store.Queries, projectID, actorUserID uuid.UUID, changes map[string]interface{}) {
	w.Record(q, LogParams{
		ProjectID:   &projectID,
		ActorUserID: &actorUserID,
		Action:      EventProjectUpdated,
		Meta:        changes,
	})
}

func (w *Writer) RecordProjectRemoved(q store.Queries, projectID, actorUserID uuid.UUID, name string) {
	w.Record(q, LogParams{
		ProjectID:   &projectID,
		ActorUserID: &actorUserID,
		Action:      EventProjectRemoved,
		Meta: map[string]interface{}{
			"name": name,
		},
	})
}

func (w *Writer) RecordInvitationCreated(q store.Queries, projectID, actorUserID, invitationID, inviteeID uuid.UUID, reinvite bool) {
	w.Record(q, LogParams{
		ProjectID:   &projectID,
		ActorUserID: &actorUserID,
		Action:      EventInvitationCreated,
		Meta: map[string]interface{}{
			"invitation_id":   invitationID.String(),
			"invitee_user_id": inviteeID.String(),
			"reinvite":        reinvite,
		},
	})
}

func (w *Writer) RecordInvitationHandled(q store.Queries, projectID, actorUserID, invitationID uuid.UUID, status store.InvitationStatus) {
	action := EventInvitationRejected
	if status == store.InvitationAccepted {
		action = EventInvitationAccepted
	}
	w.Record(q, LogParams{
		ProjectID:   &projectID,
		ActorUserID: &actorUserID,
		Action:      action,
		Meta: map[string]interface{}{
			"invitation_id": invitationID.String(),
		},
	})
}

func (w *Writer) RecordMemberRoleUpdated(q store.Queries, projectID, actorUserID, targetUserID uuid.UUID, previousRole, newRole string) {
	w.Record(q, LogParams{
		ProjectID:   &projectID,
		ActorUserID: &actorUserID,
		Action:      EventMemberRoleUpdated,
		Meta: map[string]interface{}{
			"target_user_id": targetUserID.String(),
			"previous_role":  previousRole,
			"new_role":       newRole,
		},
	})
}

func (w *Writer) RecordMemberRemoved(q store.Queries, projectID, actorUserID, targetUserID uuid.UUID, removedRole string) {
	w.Record(q, LogParams{
		ProjectID:   &projectID,
		ActorUserID: &actorUserID,
		Action:      EventMemberRemoved,
		Meta: map[string]interface{}{
			"target_user_id": targetUserID.String(),
			"role":           removedRole,
		},
	})
}

func (w *Writer) RecordLabelChanged(q store.Queries, projectID, actorUserID, labelID uuid.UUID, kind store.LabelKind, op string) {
	w.Record(q, LogParams{
		ProjectID:   &projectID,
		ActorUserID: &actorUserID,
		Action:      EventLabelChanged,
		Meta: map[string]interface{}{
			"label_id": labelID.String(),
			"kind":     string(kind),
			"op":       op,
		},
	})
}
