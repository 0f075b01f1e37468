package postgres

import (
	"context"
	"time"

	"github.com/aliuyar1234/projecthub/internal/store"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const invitationColumns = `id, project_id, invitee_user_id, inviter_user_id, role_id, status, created_at, updated_at`

type invitationRepo struct{ db dbtx }

func scanInvitation(row pgx.Row) (*store.Invitation, error) {
	var inv store.Invitation
	err := row.Scan(
		&inv.ID,
		&inv.ProjectID,
		&inv.InviteeUserID,
		&inv.InviterUserID,
		&inv.RoleID,
		&inv.Status,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r invitationRepo) GetByID(ctx context.Context, id uuid.UUID) (*store.Invitation, error) {
	inv, err := scanInvitation(r.db.QueryRow(ctx, `SELECT `+invitationColumns+` FROM project_invitations WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err, "get invitation")
	}
	return inv, nil
}

func (r invitationRepo) FindPending(ctx context.Context, projectID, inviteeID uuid.UUID) (*store.Invitation, error) {
	inv, err := scanInvitation(r.db.QueryRow(ctx, `
		SELECT `+invitationColumns+`
		FROM project_invitations
		WHERE project_id = $1 AND invitee_user_id = $2 AND status = 'PENDING'
	`, projectID, inviteeID))
	if err != nil {
		return nil, mapErr(err, "find pending invitation")
	}
	return inv, nil
}

func (r invitationRepo) Insert(ctx context.Context, inv *store.Invitation) error {
	if inv.Status == "" {
		inv.Status = store.InvitationPending
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO project_invitations (project_id, invitee_user_id, inviter_user_id, role_id, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`, inv.ProjectID, inv.InviteeUserID, inv.InviterUserID, inv.RoleID, inv.Status).Scan(
		&inv.ID,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	)
	return mapErr(err, "insert invitation")
}

func (r invitationRepo) Update(ctx context.Context, inv *store.Invitation) error {
	updated, err := scanInvitation(r.db.QueryRow(ctx, `
		UPDATE project_invitations
		SET role_id = $2, inviter_user_id = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'PENDING'
		RETURNING `+invitationColumns,
		inv.ID, inv.RoleID, inv.InviterUserID))
	if err != nil {
		return mapErr(err, "update invitation")
	}
	*inv = *updated
	return nil
}

func (r invitationRepo) Transition(ctx context.Context, id uuid.UUID, from, to store.InvitationStatus, at time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE project_invitations
		SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2
	`, id, from, to, at)
	if err != nil {
		return false, mapErr(err, "transition invitation")
	}
	return tag.RowsAffected() > 0, nil
}

func (r invitationRepo) listPending(ctx context.Context, column string, id uuid.UUID) ([]store.Invitation, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+invitationColumns+`
		FROM project_invitations
		WHERE `+column+` = $1 AND status = 'PENDING'
		ORDER BY created_at ASC, id ASC
	`, id)
	if err != nil {
		return nil, mapErr(err, "list invitations")
	}
	defer rows.Close()

	var out []store.Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, mapErr(err, "scan invitation")
		}
		out = append(out, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err, "iterate invitations")
	}
	return out, nil
}

func (r invitationRepo) ListPendingByInvitee(ctx context.Context, userID uuid.UUID) ([]store.Invitation, error) {
	return r.listPending(ctx, "invitee_user_id", userID)
}

func (r invitationRepo) ListPendingByProject(ctx context.Context, projectID uuid.UUID) ([]store.Invitation, error) {
	return r.listPending(ctx, "project_id", projectID)
}

func (r invitationRepo) DeleteByProject(ctx context.Context, projectID uuid.UUID) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM project_invitations WHERE project_id = $1`, projectID)
	if err != nil {
		return 0, mapErr(err, "delete project invitations")
	}
	return tag.RowsAffected(), nil
}
