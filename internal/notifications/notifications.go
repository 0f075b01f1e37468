// Package notifications stores user notifications and pushes them to the
// realtime channel once the creating transaction commits.
package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/aliuyar1234/projecthub/internal/apperrors"
	"github.com/aliuyar1234/projecthub/internal/metrics"
	"github.com/aliuyar1234/projecthub/internal/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const TypeProjectInvitation = "PROJECT_INVITATION"

// Data keys shared by invitation notifications.
const (
	DataInvitationID     = "invitationId"
	DataInvitationStatus = "invitationStatus"
	DataProjectID        = "projectId"
	DataProjectName      = "projectName"
	DataInviterID        = "inviterId"
)

var ErrNotificationNotFound = apperrors.New(apperrors.KindNotFound, "errors.notification.notFound")

// Publisher delivers a committed notification to connected clients.
type Publisher interface {
	Publish(ctx context.Context, n store.Notification) error
}

// Params describes a notification to create.
type Params struct {
	Type        string
	RecipientID uuid.UUID
	TitleKey    string
	MessageKey  string
	Data        map[string]any
	SendEmail   bool
}

type Service struct {
	publisher Publisher
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewService creates the service. publisher and m may be nil.
func NewService(publisher Publisher, m *metrics.Metrics) *Service {
	return &Service{
		publisher: publisher,
		metrics:   m,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateNotification stores a notification and schedules its push for
// after commit.
func (s *Service) CreateNotification(ctx context.Context, q store.Queries, p Params) (*store.Notification, error) {
	n := &store.Notification{
		Type:        p.Type,
		RecipientID: p.RecipientID,
		TitleKey:    p.TitleKey,
		MessageKey:  p.MessageKey,
		Data:        p.Data,
		SendEmail:   p.SendEmail,
	}
	if err := q.Notifications().Insert(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}

	if s.publisher != nil {
		pushed := *n
		q.AfterCommit(func(ctx context.Context) {
			s.publish(ctx, pushed)
		})
	}
	return n, nil
}

func (s *Service) publish(ctx context.Context, n store.Notification) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()

	err := s.publisher.Publish(ctx, n)
	s.metrics.ObservePublish(err)
	if err != nil {
		log.Warn().
			Err(err).
			Str("notification_id", n.ID.String()).
			Str("recipient_id", n.RecipientID.String()).
			Msg("Failed to publish notification")
	}
}

// UpdateInvitationStatus rewrites the invitationStatus of every invitation
// notification of the recipient that references invitationID. It returns
// the number of patched notifications.
func (s *Service) UpdateInvitationStatus(ctx context.Context, q store.Queries, recipientID, invitationID uuid.UUID, status store.InvitationStatus) (int, error) {
	list, err := q.Notifications().ListByRecipient(ctx, recipientID, TypeProjectInvitation, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to list invitation notifications: %w", err)
	}

	patched := 0
	for _, n := range list {
		if fmt.Sprint(n.Data[DataInvitationID]) != invitationID.String() {
			continue
		}
		data := make(map[string]any, len(n.Data))
		for k, v := range n.Data {
			data[k] = v
		}
		data[DataInvitationStatus] = string(status)
		if err := q.Notifications().UpdateData(ctx, n.ID, data); err != nil {
			return patched, fmt.Errorf("failed to patch notification: %w", err)
		}
		patched++
	}
	return patched, nil
}

// ListForUser returns the newest notifications of a user.
func (s *Service) ListForUser(ctx context.Context, q store.Queries, userID uuid.UUID, limit int) ([]store.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	list, err := q.Notifications().ListByRecipient(ctx, userID, "", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return list, nil
}

// MarkRead marks a notification of userID as read. Marking twice is allowed.
func (s *Service) MarkRead(ctx context.Context, q store.Queries, id, userID uuid.UUID) error {
	ok, err := q.Notifications().MarkRead(ctx, id, userID, s.now())
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if !ok {
		return ErrNotificationNotFound
	}
	return nil
}
