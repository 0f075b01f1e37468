package retention

import (
	"context"
	"testing"
	"time"

	"github.com/aliuyar1234/projecthub/internal/metrics"
	"github.com/aliuyar1234/projecthub/internal/store"
	"github.com/aliuyar1234/projecthub/internal/store/memory"
	"github.com/google/uuid"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func seedNotification(t *testing.T, st *memory.Store, recipient uuid.UUID, readAt *time.Time) uuid.UUID {
	t.Helper()
	ctx := context.Background()

	n := &store.Notification{Type: "PROJECT_INVITATION", RecipientID: recipient, TitleKey: "t", MessageKey: "m"}
	require.NoError(t, st.Notifications().Insert(ctx, n))
	if readAt != nil {
		ok, err := st.Notifications().MarkRead(ctx, n.ID, recipient, *readAt)
		require.NoError(t, err)
		require.True(t, ok)
	}
	return n.ID
}

func TestDeleteReadNotifications(t *testing.T) {
	st := memory.New()
	recipient := uuid.New()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	old := now.AddDate(0, 0, -40)
	recent := now.AddDate(0, 0, -1)
	seedNotification(t, st, recipient, &old)
	keptRead := seedNotification(t, st, recipient, &recent)
	keptUnread := seedNotification(t, st, recipient, nil)

	deleted, err := DeleteReadNotifications(context.Background(), st, 30, now)
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)

	left, err := st.Notifications().ListByRecipient(context.Background(), recipient, "", 10)
	require.NoError(t, err)
	ids := []uuid.UUID{}
	for _, n := range left {
		ids = append(ids, n.ID)
	}
	require.ElementsMatch(t, []uuid.UUID{keptRead, keptUnread}, ids)

	// Idempotent
	deleted, err = DeleteReadNotifications(context.Background(), st, 30, now)
	require.NoError(t, err)
	require.Zero(t, deleted)
}

func TestDeleteReadNotificationsRejectsBadRetention(t *testing.T) {
	_, err := DeleteReadNotifications(context.Background(), memory.New(), 0, time.Now())
	require.Error(t, err)
}

func TestRunRetentionJobRecordsMetric(t *testing.T) {
	st := memory.New()
	m := metrics.New()
	long := time.Now().UTC().AddDate(0, -6, 0)
	seedNotification(t, st, uuid.New(), &long)
	seedNotification(t, st, uuid.New(), &long)

	require.NoError(t, RunRetentionJob(context.Background(), st, 30, m))
	require.Equal(t, float64(2), promtestutil.ToFloat64(m.RetentionDeletedTotal))

	require.NoError(t, RunRetentionJob(context.Background(), st, 30, nil))
}
