package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aliuyar1234/projecthub/internal/store"
	"github.com/google/uuid"
)

type notificationRepo struct{ db dbtx }

func marshalJSONB(v map[string]any) ([]byte, error) {
	if v == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode jsonb: %w", err)
	}
	return b, nil
}

func (r notificationRepo) Insert(ctx context.Context, n *store.Notification) error {
	data, err := marshalJSONB(n.Data)
	if err != nil {
		return err
	}
	err = r.db.QueryRow(ctx, `
		INSERT INTO notifications (type, recipient_id, title_key, message_key, data, send_email)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, n.Type, n.RecipientID, n.TitleKey, n.MessageKey, data, n.SendEmail).Scan(&n.ID, &n.CreatedAt)
	return mapErr(err, "insert notification")
}

func (r notificationRepo) ListByRecipient(ctx context.Context, recipientID uuid.UUID, typ string, limit int) ([]store.Notification, error) {
	// LIMIT NULL means no limit.
	var lim *int
	if limit > 0 {
		lim = &limit
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, type, recipient_id, title_key, message_key, data, send_email, read_at, created_at
		FROM notifications
		WHERE recipient_id = $1 AND ($2 = '' OR type = $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`, recipientID, typ, lim)
	if err != nil {
		return nil, mapErr(err, "list notifications")
	}
	defer rows.Close()

	var out []store.Notification
	for rows.Next() {
		var n store.Notification
		var raw []byte
		if err := rows.Scan(
			&n.ID,
			&n.Type,
			&n.RecipientID,
			&n.TitleKey,
			&n.MessageKey,
			&raw,
			&n.SendEmail,
			&n.ReadAt,
			&n.CreatedAt,
		); err != nil {
			return nil, mapErr(err, "scan notification")
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &n.Data); err != nil {
				return nil, fmt.Errorf("failed to decode notification data: %w", err)
			}
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err, "iterate notifications")
	}
	return out, nil
}

func (r notificationRepo) UpdateData(ctx context.Context, id uuid.UUID, data map[string]any) error {
	raw, err := marshalJSONB(data)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, `UPDATE notifications SET data = $2 WHERE id = $1`, id, raw)
	if err != nil {
		return mapErr(err, "update notification data")
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r notificationRepo) MarkRead(ctx context.Context, id, recipientID uuid.UUID, at time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE notifications
		SET read_at = COALESCE(read_at, $3)
		WHERE id = $1 AND recipient_id = $2
	`, id, recipientID, at)
	if err != nil {
		return false, mapErr(err, "mark notification read")
	}
	return tag.RowsAffected() > 0, nil
}

func (r notificationRepo) DeleteReadBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM notifications
		WHERE read_at IS NOT NULL AND read_at < $1
	`, before)
	if err != nil {
		return 0, mapErr(err, "delete read notifications")
	}
	return tag.RowsAffected(), nil
}

type auditRepo struct{ db dbtx }

func (r auditRepo) Insert(ctx context.Context, e *store.AuditEvent) error {
	meta, err := marshalJSONB(e.Meta)
	if err != nil {
		return err
	}
	err = r.db.QueryRow(ctx, `
		INSERT INTO audit_log (project_id, actor_user_id, action, meta)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, e.ProjectID, e.ActorUserID, e.Action, meta).Scan(&e.ID, &e.CreatedAt)
	return mapErr(err, "insert audit event")
}

func (r auditRepo) ListByProject(ctx context.Context, projectID uuid.UUID, limit int) ([]store.AuditEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, project_id, actor_user_id, action, meta, created_at
		FROM audit_log
		WHERE project_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, projectID, limit)
	if err != nil {
		return nil, mapErr(err, "list audit events")
	}
	defer rows.Close()

	var out []store.AuditEvent
	for rows.Next() {
		var e store.AuditEvent
		var raw []byte
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.ActorUserID, &e.Action, &raw, &e.CreatedAt); err != nil {
			return nil, mapErr(err, "scan audit event")
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &e.Meta); err != nil {
				return nil, fmt.Errorf("failed to decode audit meta: %w", err)
			}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err, "iterate audit events")
	}
	return out, nil
}
