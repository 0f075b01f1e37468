package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/aliuyar1234/projecthub/internal/store"
	"github.com/google/uuid"
)

type Reader struct {
	q store.Queries
}

func NewReader(q store.Queries) *Reader {
	return &Reader{q: q}
}

type ListItem struct {
	ID          uuid.UUID      `json:"id"`
	Action      string         `json:"action"`
	ProjectID   *uuid.UUID     `json:"project_id,omitempty"`
	ActorUserID *uuid.UUID     `json:"actor_user_id,omitempty"`
	ActorEmail  string         `json:"actor_email,omitempty"`
	Meta        map[string]any `json:"meta"`
	CreatedAt   time.Time      `json:"created_at"`
}

// ListByProject returns the newest events of a project with actor emails
// resolved.
func (r *Reader) ListByProject(ctx context.Context, projectID uuid.UUID, limit int) ([]ListItem, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	events, err := r.q.Audit().ListByProject(ctx, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}

	emails := map[uuid.UUID]string{}
	out := make([]ListItem, 0, len(events))
	for _, e := range events {
		item := ListItem{
			ID:          e.ID,
			Action:      e.Action,
			ProjectID:   e.ProjectID,
			ActorUserID: e.ActorUserID,
			Meta:        e.Meta,
			CreatedAt:   e.CreatedAt,
		}
		if e.ActorUserID != nil {
			email, ok := emails[*e.ActorUserID]
			if !ok {
				if u, err := r.q.Users().GetByID(ctx, *e.ActorUserID); err == nil {
					email = u.Email
				}
				emails[*e.ActorUserID] = email
			}
			item.ActorEmail = email
		}
		if item.Meta == nil {
			item.Meta = map[string]any{}
		}
		out = append(out, item)
	}
	return out, nil
}
