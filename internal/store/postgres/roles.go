package postgres

import (
	"context"

	"github.com/aliuyar1234/projecthub/internal/store"
	"github.com/google/uuid"
)

type roleRepo struct{ db dbtx }

func (r roleRepo) List(ctx context.Context) ([]store.Role, error) {
	rows, err := r.db.Query(ctx, `SELECT id, code, active FROM roles ORDER BY id ASC`)
	if err != nil {
		return nil, mapErr(err, "list roles")
	}
	defer rows.Close()

	var roles []store.Role
	var ids []uuid.UUID
	for rows.Next() {
		var role store.Role
		if err := rows.Scan(&role.ID, &role.Code, &role.Active); err != nil {
			return nil, mapErr(err, "scan role")
		}
		roles = append(roles, role)
		ids = append(ids, role.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err, "iterate roles")
	}

	trs, err := loadTranslations(ctx, r.db, roleTranslations, ids)
	if err != nil {
		return nil, err
	}
	for i := range roles {
		roles[i].Translations = trs[roles[i].ID]
	}
	return roles, nil
}

func (r roleRepo) get(ctx context.Context, where string, arg any) (*store.Role, error) {
	var role store.Role
	if err := r.db.QueryRow(ctx, `SELECT id, code, active FROM roles WHERE `+where, arg).Scan(&role.ID, &role.Code, &role.Active); err != nil {
		return nil, mapErr(err, "get role")
	}
	trs, err := loadTranslations(ctx, r.db, roleTranslations, []uuid.UUID{role.ID})
	if err != nil {
		return nil, err
	}
	role.Translations = trs[role.ID]
	return &role, nil
}

func (r roleRepo) GetByID(ctx context.Context, id uuid.UUID) (*store.Role, error) {
	return r.get(ctx, "id = $1", id)
}

func (r roleRepo) GetByCode(ctx context.Context, code string) (*store.Role, error) {
	return r.get(ctx, "code = $1", code)
}

func (r roleRepo) ListPermissions(ctx context.Context, roleID uuid.UUID) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT permission_code
		FROM role_permissions
		WHERE role_id = $1
		ORDER BY permission_code
	`, roleID)
	if err != nil {
		return nil, mapErr(err, "list role permissions")
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, mapErr(err, "scan role permission")
		}
		codes = append(codes, code)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err, "iterate role permissions")
	}
	return codes, nil
}

func (r roleRepo) Upsert(ctx context.Context, role *store.Role) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO roles (code, active) VALUES ($1, $2)
		ON CONFLICT (code) DO UPDATE SET active = EXCLUDED.active
		RETURNING id
	`, role.Code, role.Active).Scan(&role.ID)
	if err != nil {
		return mapErr(err, "upsert role")
	}
	return replaceTranslations(ctx, r.db, roleTranslations, role.ID, role.Translations)
}

func (r roleRepo) SetPermissions(ctx context.Context, roleID uuid.UUID, codes []string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
		return mapErr(err, "clear role permissions")
	}
	for _, code := range codes {
		if _, err := r.db.Exec(ctx, `
			INSERT INTO role_permissions (role_id, permission_code) VALUES ($1, $2)
		`, roleID, code); err != nil {
			return mapErr(err, "insert role permission")
		}
	}
	return nil
}

func (r roleRepo) UpsertPermission(ctx context.Context, p *store.Permission) error {
	if _, err := r.db.Exec(ctx, `
		INSERT INTO permissions (code) VALUES ($1)
		ON CONFLICT (code) DO NOTHING
	`, p.Code); err != nil {
		return mapErr(err, "upsert permission")
	}

	if _, err := r.db.Exec(ctx, `DELETE FROM permission_translations WHERE permission_code = $1`, p.Code); err != nil {
		return mapErr(err, "clear permission translations")
	}
	for i, tr := range p.Translations {
		if _, err := r.db.Exec(ctx, `
			INSERT INTO permission_translations (permission_code, position, locale, name, description)
			VALUES ($1, $2, $3, $4, $5)
		`, p.Code, i, tr.Locale, tr.Name, tr.Description); err != nil {
			return mapErr(err, "insert permission translation")
		}
	}
	return nil
}
