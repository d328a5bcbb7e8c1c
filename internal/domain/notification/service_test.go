package notification

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sarvangi2609/criczz/internal/database"
	"github.com/sarvangi2609/criczz/internal/domain/realtime"
)

type recordingPusher struct {
	events map[string][]realtime.Event
}

func (p *recordingPusher) DeliverTo(payerID string, ev realtime.Event) bool {
	if p.events == nil {
		p.events = map[string][]realtime.Event{}
	}
	p.events[payerID] = append(p.events[payerID], ev)
	return true
}

func setupService(t *testing.T) (*Service, *recordingPusher) {
	t.Helper()
	db, err := database.Connect(":memory:", zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))

	pusher := &recordingPusher{}
	return NewService(NewRepository(db), pusher, zap.NewNop()), pusher
}

func TestNotifyStoresAndPushes(t *testing.T) {
	svc, pusher := setupService(t)
	ctx := context.Background()

	err := svc.Notify(ctx, Message{
		UserID:      "p1",
		Type:        TypeBookingConfirmed,
		Title:       "Booking Confirmed!",
		Body:        "Your booking CBK-20261020-ABC123 is confirmed",
		RelatedID:   "b1",
		RelatedType: "booking",
	})
	require.NoError(t, err)

	require.Len(t, pusher.events["p1"], 1)
	ev := pusher.events["p1"][0]
	assert.Equal(t, realtime.EventNotification, ev.Event)
	pushed, ok := ev.Data.(*Notification)
	require.True(t, ok)
	assert.NotEmpty(t, pushed.ID)

	list, unread, err := svc.List(ctx, "p1", false, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(1), unread)
	assert.Equal(t, "b1", list[0].RelatedID)
}

func TestNotifyStoreFailureIsLeftToCaller(t *testing.T) {
	db, err := database.Connect(":memory:", zap.NewNop())
	require.NoError(t, err)
	core, logs := observer.New(zap.DebugLevel)
	pusher := &recordingPusher{}
	svc := NewService(NewRepository(db), pusher, zap.New(core))

	err = svc.Notify(context.Background(), Message{UserID: "p1", Type: TypeMatchJoin, Title: "joined"})
	assert.Error(t, err)
	assert.Zero(t, logs.Len())

	require.Len(t, pusher.events["p1"], 1)
	pushed, ok := pusher.events["p1"][0].Data.(*Notification)
	require.True(t, ok)
	assert.Empty(t, pushed.ID)
}

func TestMarkRead(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	require.NoError(t, svc.Notify(ctx, Message{UserID: "p1", Type: TypeMatchJoin, Title: "a"}))
	require.NoError(t, svc.Notify(ctx, Message{UserID: "p1", Type: TypeMatchJoin, Title: "b"}))
	list, _, err := svc.List(ctx, "p1", false, 10)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.MarkRead(ctx, list[0].ID, "someone-else"), ErrNotificationNotFound)
	require.NoError(t, svc.MarkRead(ctx, list[0].ID, "p1"))

	unreadOnly, unread, err := svc.List(ctx, "p1", true, 10)
	require.NoError(t, err)
	assert.Len(t, unreadOnly, 1)
	assert.Equal(t, int64(1), unread)

	n, err := svc.MarkAllRead(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestCleanupRemovesOldReadOnly(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	old := time.Now().Add(-60 * 24 * time.Hour)
	svc.now = func() time.Time { return old }
	require.NoError(t, svc.Notify(ctx, Message{UserID: "p1", Type: TypeMatchJoin, Title: "old read"}))
	require.NoError(t, svc.Notify(ctx, Message{UserID: "p1", Type: TypeMatchJoin, Title: "old unread"}))
	list, _, err := svc.List(ctx, "p1", false, 10)
	require.NoError(t, err)
	for _, n := range list {
		if n.Title == "old read" {
			require.NoError(t, svc.MarkRead(ctx, n.ID, "p1"))
		}
	}

	svc.now = time.Now
	deleted, err := svc.Cleanup(ctx, 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	left, _, err := svc.List(ctx, "p1", false, 10)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "old unread", left[0].Title)
}
