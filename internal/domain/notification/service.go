package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sarvangi2609/criczz/internal/domain/realtime"
)

// Pusher delivers live events to connected users.
type Pusher interface {
	DeliverTo(payerID string, ev realtime.Event) bool
}

type Service struct {
	repo   *Repository
	pusher Pusher
	log    *zap.Logger
	now    func() time.Time
}

func NewService(repo *Repository, pusher Pusher, log *zap.Logger) *Service {
	return &Service{repo: repo, pusher: pusher, log: log, now: time.Now}
}

// Notify stores the notification and pushes it to the user if they are
// online. A failed write is returned for the caller to log and the push
// still happens.
func (s *Service) Notify(ctx context.Context, msg Message) error {
	n := &Notification{
		ID:          uuid.NewString(),
		UserID:      msg.UserID,
		Type:        msg.Type,
		Title:       msg.Title,
		Message:     msg.Body,
		RelatedID:   msg.RelatedID,
		RelatedType: msg.RelatedType,
		ActionURL:   msg.ActionURL,
		CreatedAt:   s.now(),
	}

	err := s.repo.Create(ctx, n)
	if err != nil {
		n.ID = ""
	}

	if s.pusher != nil {
		s.pusher.DeliverTo(msg.UserID, realtime.Event{Event: realtime.EventNotification, Data: n})
	}
	return err
}

func (s *Service) List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]Notification, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	list, err := s.repo.ListByUser(ctx, userID, unreadOnly, limit)
	if err != nil {
		return nil, 0, err
	}

	unread, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		unread = 0
	}

	return list, unread, nil
}

func (s *Service) MarkRead(ctx context.Context, id, userID string) error {
	ok, err := s.repo.MarkRead(ctx, id, userID, s.now())
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotificationNotFound
	}
	return nil
}

func (s *Service) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID, s.now())
}

// Cleanup drops read notifications older than retention.
func (s *Service) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	start := s.now()
	deleted, err := s.repo.DeleteReadBefore(ctx, start.Add(-retention))
	if err != nil {
		s.log.Error("notification cleanup failed", zap.Error(err))
		return 0, err
	}
	s.log.Info("notification cleanup completed", zap.Int64("deleted", deleted), zap.Duration("took", time.Since(start)))
	return deleted, nil
}
