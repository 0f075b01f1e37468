package postgres

import (
	"context"
	"strings"

	"github.com/aliuyar1234/projecthub/internal/store"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const userColumns = `id, email, display_name, password_hash, platform_role, locale, created_at, updated_at`

type userRepo struct{ db dbtx }

func scanUser(row pgx.Row) (*store.User, error) {
	var u store.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.DisplayName,
		&u.PasswordHash,
		&u.PlatformRole,
		&u.Locale,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r userRepo) GetByID(ctx context.Context, id uuid.UUID) (*store.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err, "get user")
	}
	return u, nil
}

func (r userRepo) GetByEmail(ctx context.Context, email string) (*store.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE LOWER(email) = LOWER($1)
	`, strings.TrimSpace(email)))
	if err != nil {
		return nil, mapErr(err, "get user by email")
	}
	return u, nil
}

func (r userRepo) ListByEmails(ctx context.Context, emails []string) ([]store.User, error) {
	if len(emails) == 0 {
		return nil, nil
	}
	lowered := make([]string, len(emails))
	for i, e := range emails {
		lowered[i] = strings.ToLower(strings.TrimSpace(e))
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE LOWER(email) = ANY($1)
		ORDER BY created_at ASC
	`, lowered)
	if err != nil {
		return nil, mapErr(err, "list users by email")
	}
	defer rows.Close()

	var users []store.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, mapErr(err, "scan user")
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err, "iterate users")
	}
	return users, nil
}

func (r userRepo) Create(ctx context.Context, u *store.User) error {
	if u.PlatformRole == "" {
		u.PlatformRole = store.PlatformUser
	}
	if u.Locale == "" {
		u.Locale = "en"
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO users (email, display_name, password_hash, platform_role, locale)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`, u.Email, u.DisplayName, u.PasswordHash, u.PlatformRole, u.Locale).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	return mapErr(err, "create user")
}

func (r userRepo) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE users
		SET password_hash = $2, updated_at = NOW()
		WHERE id = $1
	`, id, passwordHash)
	if err != nil {
		return mapErr(err, "update password")
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
