package postgres

import (
	"context"

	"github.com/aliuyar1234/projecthub/internal/store"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const projectColumns = `id, name, description, is_public, type_id, icon_key, icon_url,
	created_by_user_id, created_at, updated_at`

type projectRepo struct{ db dbtx }

func scanProject(row pgx.Row) (*store.Project, error) {
	var p store.Project
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.IsPublic,
		&p.TypeID,
		&p.IconKey,
		&p.IconURL,
		&p.CreatedByUserID,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r projectRepo) Create(ctx context.Context, p *store.Project) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO projects (name, description, is_public, type_id, icon_key, icon_url, created_by_user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`, p.Name, p.Description, p.IsPublic, p.TypeID, p.IconKey, p.IconURL, p.CreatedByUserID).Scan(
		&p.ID,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return mapErr(err, "create project")
}

func (r projectRepo) Update(ctx context.Context, p *store.Project) error {
	err := r.db.QueryRow(ctx, `
		UPDATE projects
		SET name = $2, description = $3, is_public = $4, type_id = $5,
		    icon_key = $6, icon_url = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING created_by_user_id, created_at, updated_at
	`, p.ID, p.Name, p.Description, p.IsPublic, p.TypeID, p.IconKey, p.IconURL).Scan(
		&p.CreatedByUserID,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return mapErr(err, "update project")
}

func (r projectRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return mapErr(err, "delete project")
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r projectRepo) GetByID(ctx context.Context, id uuid.UUID) (*store.Project, error) {
	p, err := scanProject(r.db.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err, "get project")
	}
	return p, nil
}

func (r projectRepo) ListVisible(ctx context.Context, userID uuid.UUID) ([]store.Project, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+projectColumns+`
		FROM projects p
		WHERE p.is_public
		   OR EXISTS (
		     SELECT 1 FROM project_memberships m
		     WHERE m.project_id = p.id AND m.user_id = $1
		   )
		ORDER BY p.created_at DESC
	`, userID)
	if err != nil {
		return nil, mapErr(err, "list projects")
	}
	defer rows.Close()

	var projects []store.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, mapErr(err, "scan project")
		}
		projects = append(projects, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err, "iterate projects")
	}
	return projects, nil
}

func (r projectRepo) GetType(ctx context.Context, id uuid.UUID) (*store.ProjectType, error) {
	var t store.ProjectType
	if err := r.db.QueryRow(ctx, `SELECT id, code FROM project_types WHERE id = $1`, id).Scan(&t.ID, &t.Code); err != nil {
		return nil, mapErr(err, "get project type")
	}
	trs, err := loadTranslations(ctx, r.db, typeTranslations, []uuid.UUID{t.ID})
	if err != nil {
		return nil, err
	}
	t.Translations = trs[t.ID]
	return &t, nil
}

func (r projectRepo) ListTypes(ctx context.Context) ([]store.ProjectType, error) {
	rows, err := r.db.Query(ctx, `SELECT id, code FROM project_types ORDER BY code`)
	if err != nil {
		return nil, mapErr(err, "list project types")
	}
	defer rows.Close()

	var types []store.ProjectType
	var ids []uuid.UUID
	for rows.Next() {
		var t store.ProjectType
		if err := rows.Scan(&t.ID, &t.Code); err != nil {
			return nil, mapErr(err, "scan project type")
		}
		types = append(types, t)
		ids = append(ids, t.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err, "iterate project types")
	}

	trs, err := loadTranslations(ctx, r.db, typeTranslations, ids)
	if err != nil {
		return nil, err
	}
	for i := range types {
		types[i].Translations = trs[types[i].ID]
	}
	return types, nil
}

func (r projectRepo) UpsertType(ctx context.Context, t *store.ProjectType) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO project_types (code) VALUES ($1)
		ON CONFLICT (code) DO UPDATE SET code = EXCLUDED.code
		RETURNING id
	`, t.Code).Scan(&t.ID)
	if err != nil {
		return mapErr(err, "upsert project type")
	}
	return replaceTranslations(ctx, r.db, typeTranslations, t.ID, t.Translations)
}
