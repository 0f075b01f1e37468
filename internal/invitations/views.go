package invitations

import (
	"context"
	"fmt"
	"time"

	"github.com/aliuyar1234/projecthub/internal/store"
	"github.com/google/uuid"
)

// View is an invitation with the names a client needs to render it.
type View struct {
	ID           uuid.UUID              `json:"id"`
	ProjectID    uuid.UUID              `json:"project_id"`
	ProjectName  string                 `json:"project_name"`
	InviteeID    uuid.UUID              `json:"invitee_user_id"`
	InviteeEmail string                 `json:"invitee_email"`
	InviterID    uuid.UUID              `json:"inviter_user_id"`
	InviterEmail string                 `json:"inviter_email"`
	RoleID       *uuid.UUID             `json:"role_id,omitempty"`
	RoleCode     string                 `json:"role_code,omitempty"`
	Status       store.InvitationStatus `json:"status"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// ListPendingForUser returns the pending invitations addressed to userID.
func (w *Workflow) ListPendingForUser(ctx context.Context, q store.Queries, userID uuid.UUID) ([]View, error) {
	list, err := q.Invitations().ListPendingByInvitee(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	return w.views(ctx, q, list)
}

// ListByProject returns the pending invitations of a project. Callers check
// access themselves.
func (w *Workflow) ListByProject(ctx context.Context, q store.Queries, projectID uuid.UUID) ([]View, error) {
	list, err := q.Invitations().ListPendingByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	return w.views(ctx, q, list)
}

func (w *Workflow) views(ctx context.Context, q store.Queries, list []store.Invitation) ([]View, error) {
	emails := map[uuid.UUID]string{}
	email := func(id uuid.UUID) (string, error) {
		if e, ok := emails[id]; ok {
			return e, nil
		}
		u, err := q.Users().GetByID(ctx, id)
		if err != nil {
			return "", fmt.Errorf("failed to load user %s: %w", id, err)
		}
		emails[id] = u.Email
		return u.Email, nil
	}
	projectNames := map[uuid.UUID]string{}
	roleCodes := map[uuid.UUID]string{}

	out := make([]View, 0, len(list))
	for _, inv := range list {
		v := View{
			ID:        inv.ID,
			ProjectID: inv.ProjectID,
			InviteeID: inv.InviteeUserID,
			InviterID: inv.InviterUserID,
			RoleID:    inv.RoleID,
			Status:    inv.Status,
			CreatedAt: inv.CreatedAt,
			UpdatedAt: inv.UpdatedAt,
		}

		var err error
		if v.InviteeEmail, err = email(inv.InviteeUserID); err != nil {
			return nil, err
		}
		if v.InviterEmail, err = email(inv.InviterUserID); err != nil {
			return nil, err
		}

		name, ok := projectNames[inv.ProjectID]
		if !ok {
			p, err := q.Projects().GetByID(ctx, inv.ProjectID)
			if err != nil {
				return nil, fmt.Errorf("failed to load project: %w", err)
			}
			name = p.Name
			projectNames[inv.ProjectID] = name
		}
		v.ProjectName = name

		if inv.RoleID != nil {
			code, ok := roleCodes[*inv.RoleID]
			if !ok {
				role, err := q.Roles().GetByID(ctx, *inv.RoleID)
				if err != nil {
					return nil, fmt.Errorf("failed to load role: %w", err)
				}
				code = role.Code
				roleCodes[*inv.RoleID] = code
			}
			v.RoleCode = code
		}
		out = append(out, v)
	}
	return out, nil
}
