package postgres

import (
	"context"
	"fmt"

	"github.com/aliuyar1234/projecthub/internal/store"
	"github.com/google/uuid"
)

// translationTable names a child table holding one row per locale.
// Names are compile-time constants and never come from user input.
type translationTable struct {
	table string
	fk    string
}

var (
	roleTranslations     = translationTable{table: "role_translations", fk: "role_id"}
	typeTranslations     = translationTable{table: "project_type_translations", fk: "type_id"}
	categoryTranslations = translationTable{table: "project_category_translations", fk: "label_id"}
	statusTranslations   = translationTable{table: "project_status_translations", fk: "label_id"}
)

func loadTranslations(ctx context.Context, db dbtx, t translationTable, ids []uuid.UUID) (map[uuid.UUID][]store.Translation, error) {
	out := make(map[uuid.UUID][]store.Translation, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	query := fmt.Sprintf(`
		SELECT %[1]s, locale, name, description
		FROM %[2]s
		WHERE %[1]s = ANY($1)
		ORDER BY %[1]s, position
	`, t.fk, t.table)

	rows, err := db.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", t.table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		var tr store.Translation
		if err := rows.Scan(&id, &tr.Locale, &tr.Name, &tr.Description); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", t.table, err)
		}
		out[id] = append(out[id], tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", t.table, err)
	}
	return out, nil
}

// replaceTranslations rewrites every locale row of the owner, keeping the
// submitted order in the position column.
func replaceTranslations(ctx context.Context, db dbtx, t translationTable, ownerID uuid.UUID, ts []store.Translation) error {
	if _, err := db.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, t.table, t.fk), ownerID); err != nil {
		return fmt.Errorf("failed to clear %s: %w", t.table, err)
	}

	insert := fmt.Sprintf(`
		INSERT INTO %s (%s, position, locale, name, description)
		VALUES ($1, $2, $3, $4, $5)
	`, t.table, t.fk)
	for i, tr := range ts {
		if _, err := db.Exec(ctx, insert, ownerID, i, tr.Locale, tr.Name, tr.Description); err != nil {
			return mapErr(err, "insert "+t.table)
		}
	}
	return nil
}
