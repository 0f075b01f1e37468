package postgres

import (
	"context"
	"fmt"

	"github.com/aliuyar1234/projecthub/internal/store"
	"github.com/google/uuid"
)

type labelTables struct {
	table        string
	translations translationTable
}

var labelTablesByKind = map[store.LabelKind]labelTables{
	store.LabelCategory: {table: "project_categories", translations: categoryTranslations},
	store.LabelStatus:   {table: "project_statuses", translations: statusTranslations},
}

func tablesFor(kind store.LabelKind) (labelTables, error) {
	t, ok := labelTablesByKind[kind]
	if !ok {
		return labelTables{}, fmt.Errorf("unknown label kind %q", kind)
	}
	return t, nil
}

type labelRepo struct{ db dbtx }

func (r labelRepo) ListByProject(ctx context.Context, kind store.LabelKind, projectID uuid.UUID) ([]store.Label, error) {
	t, err := tablesFor(kind)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, project_id, color, active, created_at, updated_at
		FROM `+t.table+`
		WHERE project_id = $1
		ORDER BY created_at ASC, id ASC
	`, projectID)
	if err != nil {
		return nil, mapErr(err, "list "+t.table)
	}
	defer rows.Close()

	var labels []store.Label
	var ids []uuid.UUID
	for rows.Next() {
		l := store.Label{Kind: kind}
		if err := rows.Scan(&l.ID, &l.ProjectID, &l.Color, &l.Active, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, mapErr(err, "scan "+t.table)
		}
		labels = append(labels, l)
		ids = append(ids, l.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err, "iterate "+t.table)
	}

	trs, err := loadTranslations(ctx, r.db, t.translations, ids)
	if err != nil {
		return nil, err
	}
	for i := range labels {
		labels[i].Translations = trs[labels[i].ID]
	}
	return labels, nil
}

func (r labelRepo) GetByID(ctx context.Context, kind store.LabelKind, id uuid.UUID) (*store.Label, error) {
	t, err := tablesFor(kind)
	if err != nil {
		return nil, err
	}

	l := store.Label{Kind: kind}
	err = r.db.QueryRow(ctx, `
		SELECT id, project_id, color, active, created_at, updated_at
		FROM `+t.table+`
		WHERE id = $1
	`, id).Scan(&l.ID, &l.ProjectID, &l.Color, &l.Active, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, mapErr(err, "get "+t.table)
	}

	trs, err := loadTranslations(ctx, r.db, t.translations, []uuid.UUID{l.ID})
	if err != nil {
		return nil, err
	}
	l.Translations = trs[l.ID]
	return &l, nil
}

func (r labelRepo) Insert(ctx context.Context, l *store.Label) error {
	t, err := tablesFor(l.Kind)
	if err != nil {
		return err
	}

	err = r.db.QueryRow(ctx, `
		INSERT INTO `+t.table+` (project_id, color, active)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`, l.ProjectID, l.Color, l.Active).Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return mapErr(err, "insert "+t.table)
	}
	return replaceTranslations(ctx, r.db, t.translations, l.ID, l.Translations)
}

func (r labelRepo) Update(ctx context.Context, l *store.Label) error {
	t, err := tablesFor(l.Kind)
	if err != nil {
		return err
	}

	err = r.db.QueryRow(ctx, `
		UPDATE `+t.table+`
		SET color = $2, active = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING project_id, created_at, updated_at
	`, l.ID, l.Color, l.Active).Scan(&l.ProjectID, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return mapErr(err, "update "+t.table)
	}
	return replaceTranslations(ctx, r.db, t.translations, l.ID, l.Translations)
}

func (r labelRepo) Delete(ctx context.Context, kind store.LabelKind, id uuid.UUID) error {
	t, err := tablesFor(kind)
	if err != nil {
		return err
	}

	tag, err := r.db.Exec(ctx, `DELETE FROM `+t.table+` WHERE id = $1`, id)
	if err != nil {
		return mapErr(err, "delete "+t.table)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r labelRepo) DeleteByProject(ctx context.Context, kind store.LabelKind, projectID uuid.UUID) (int64, error) {
	t, err := tablesFor(kind)
	if err != nil {
		return 0, err
	}

	tag, err := r.db.Exec(ctx, `DELETE FROM `+t.table+` WHERE project_id = $1`, projectID)
	if err != nil {
		return 0, mapErr(err, "delete project "+t.table)
	}
	return tag.RowsAffected(), nil
}
