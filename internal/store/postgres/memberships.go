package postgres

import (
	"context"
	"time"

	"github.com/aliuyar1234/projecthub/internal/store"
	"github.com/google/uuid"
)

type membershipRepo struct{ db dbtx }

func (r membershipRepo) Get(ctx context.Context, projectID, userID uuid.UUID) (*store.Membership, error) {
	var m store.Membership
	err := r.db.QueryRow(ctx, `
		SELECT id, project_id, user_id, role_id, assigned_at
		FROM project_memberships
		WHERE project_id = $1 AND user_id = $2
	`, projectID, userID).Scan(&m.ID, &m.ProjectID, &m.UserID, &m.RoleID, &m.AssignedAt)
	if err != nil {
		return nil, mapErr(err, "get membership")
	}
	return &m, nil
}

func (r membershipRepo) Insert(ctx context.Context, m *store.Membership) error {
	if m.AssignedAt.IsZero() {
		m.AssignedAt = time.Now().UTC()
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO project_memberships (project_id, user_id, role_id, assigned_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, m.ProjectID, m.UserID, m.RoleID, m.AssignedAt).Scan(&m.ID)
	return mapErr(err, "insert membership")
}

func (r membershipRepo) UpdateRole(ctx context.Context, id, roleID uuid.UUID, assignedAt time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE project_memberships
		SET role_id = $2, assigned_at = $3
		WHERE id = $1
	`, id, roleID, assignedAt)
	if err != nil {
		return mapErr(err, "update membership role")
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r membershipRepo) Delete(ctx context.Context, projectID, userID uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM project_memberships
		WHERE project_id = $1 AND user_id = $2
	`, projectID, userID)
	if err != nil {
		return false, mapErr(err, "delete membership")
	}
	return tag.RowsAffected() > 0, nil
}

func (r membershipRepo) DeleteByProject(ctx context.Context, projectID uuid.UUID) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM project_memberships WHERE project_id = $1`, projectID)
	if err != nil {
		return 0, mapErr(err, "delete project memberships")
	}
	return tag.RowsAffected(), nil
}

func (r membershipRepo) list(ctx context.Context, column string, id uuid.UUID) ([]store.MemberDetail, error) {
	rows, err := r.db.Query(ctx, `
		SELECT m.id, m.project_id, m.user_id, m.role_id, m.assigned_at, u.email, ro.code
		FROM project_memberships m
		JOIN users u ON u.id = m.user_id
		JOIN roles ro ON ro.id = m.role_id
		WHERE m.`+column+` = $1
		ORDER BY m.assigned_at ASC, m.id ASC
	`, id)
	if err != nil {
		return nil, mapErr(err, "list memberships")
	}
	defer rows.Close()

	var members []store.MemberDetail
	for rows.Next() {
		var d store.MemberDetail
		if err := rows.Scan(
			&d.ID,
			&d.ProjectID,
			&d.UserID,
			&d.RoleID,
			&d.AssignedAt,
			&d.Email,
			&d.RoleCode,
		); err != nil {
			return nil, mapErr(err, "scan membership")
		}
		members = append(members, d)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err, "iterate memberships")
	}
	return members, nil
}

func (r membershipRepo) ListByProject(ctx context.Context, projectID uuid.UUID) ([]store.MemberDetail, error) {
	return r.list(ctx, "project_id", projectID)
}

func (r membershipRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]store.MemberDetail, error) {
	return r.list(ctx, "user_id", userID)
}

func (r membershipRepo) CountWithRole(ctx context.Context, projectID, roleID uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM project_memberships
		WHERE project_id = $1 AND role_id = $2
	`, projectID, roleID).Scan(&n)
	if err != nil {
		return 0, mapErr(err, "count memberships")
	}
	return n, nil
}
