package match

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sarvangi2609/criczz/internal/apperr"
	"github.com/sarvangi2609/criczz/internal/domain/booking"
	"github.com/sarvangi2609/criczz/internal/domain/catalog"
	"github.com/sarvangi2609/criczz/internal/domain/identity"
	"github.com/sarvangi2609/criczz/internal/domain/notification"
	"github.com/sarvangi2609/criczz/internal/domain/realtime"
	"github.com/sarvangi2609/criczz/internal/pkg/validator"
)

const (
	maxMutateAttempts = 5
	relatedTypeMatch  = "match_request"
	dateLayout        = "2006-01-02"
)

type UserReader interface {
	GetByID(ctx context.Context, id string) (*identity.User, error)
}

type BoxReader interface {
	GetByID(ctx context.Context, id string) (*catalog.CricketBox, error)
}

type Notifier interface {
	Notify(ctx context.Context, msg notification.Message) error
}

// TopicMembership keeps accepted players in the match's live topic.
type TopicMembership interface {
	JoinTopic(topic, payerID string)
	LeaveTopic(topic, payerID string)
}

// SlotReserver books the match slot once the team is complete.
type SlotReserver interface {
	Reserve(ctx context.Context, req booking.ReserveRequest) (*booking.Booking, error)
}

// Policy holds the decisions left open by the match workflow.
type Policy struct {
	// ReopenOnWithdraw reopens a closed request when an accepted player leaves.
	ReopenOnWithdraw bool
	// BookOnClose reserves the named box slot for the creator when the
	// request closes.
	BookOnClose bool
	Location    *time.Location
}

type Service struct {
	repo     *Repository
	users    UserReader
	boxes    BoxReader
	reserver SlotReserver
	topics   TopicMembership
	notifier Notifier
	policy   Policy
	log      *zap.Logger
	now      func() time.Time
}

func NewService(repo *Repository, users UserReader, boxes BoxReader, reserver SlotReserver, topics TopicMembership, notifier Notifier, policy Policy, log *zap.Logger) *Service {
	if policy.Location == nil {
		policy.Location = time.UTC
	}
	return &Service{
		repo:     repo,
		users:    users,
		boxes:    boxes,
		reserver: reserver,
		topics:   topics,
		notifier: notifier,
		policy:   policy,
		log:      log,
		now:      time.Now,
	}
}

func (s *Service) today() string {
	return s.now().In(s.policy.Location).Format(dateLayout)
}

func (s *Service) Create(ctx context.Context, creatorID string, req CreateRequest) (*MatchRequest, error) {
	if errs := validator.Validate(req); errs != nil {
		return nil, apperr.Validation("invalid match request", errs)
	}
	if req.MatchDate < s.today() {
		return nil, ErrMatchDateInPast
	}
	if (req.StartTime == "") != (req.EndTime == "") || (req.StartTime != "" && req.StartTime >= req.EndTime) {
		return nil, ErrInvalidTimeWindow
	}

	creator, err := s.users.GetByID(ctx, creatorID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	m := &MatchRequest{
		ID:                 uuid.NewString(),
		CreatorID:          creator.ID,
		CreatorName:        creator.Name,
		CreatorPhone:       creator.Phone,
		CreatorPhoto:       creator.ProfilePhoto,
		CreatorSkillLevel:  creator.SkillLevel,
		Title:              req.Title,
		Description:        req.Description,
		MatchDate:          req.MatchDate,
		PreferredTime:      req.PreferredTime,
		StartTime:          req.StartTime,
		EndTime:            req.EndTime,
		PreferredArea:      req.PreferredArea,
		PlayersNeeded:      req.PlayersNeeded,
		SkillLevelRequired: req.SkillLevelRequired,
		JoinRequests:       JoinRequests{},
		AcceptedPlayers:    PlayerIDs{},
		Status:             StatusOpen,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	m.ChatRoomID = realtime.MatchTopic(m.ID)

	if req.CricketBoxID != "" {
		box, err := s.boxes.GetByID(ctx, req.CricketBoxID)
		if err != nil {
			return nil, err
		}
		m.CricketBoxID = box.ID
		m.CricketBoxName = box.Name
	}

	if err := s.repo.Create(ctx, m); err != nil {
		return nil, err
	}
	s.join(m.ID, creator.ID)

	s.log.Info("match request created",
		zap.String("request_id", m.ID),
		zap.String("creator_id", m.CreatorID),
		zap.String("date", m.MatchDate),
		zap.Int("players_needed", m.PlayersNeeded),
	)
	return m, nil
}

// mutate applies fn to a fresh copy of the request and stores it under a
// version check, retrying on lost races.
func (s *Service) mutate(ctx context.Context, id string, fn func(m *MatchRequest) error) (*MatchRequest, error) {
	for attempt := 1; attempt <= maxMutateAttempts; attempt++ {
		m, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		version := m.Version
		if err := fn(m); err != nil {
			return nil, err
		}
		m.UpdatedAt = s.now()

		ok, err := s.repo.Save(ctx, m, version)
		if err != nil {
			return nil, err
		}
		if ok {
			m.Version = version + 1
			return m, nil
		}
		s.log.Debug("match request changed underneath, retrying",
			zap.String("request_id", id),
			zap.Int("attempt", attempt),
		)
	}
	return nil, ErrConcurrentUpdate
}

func (s *Service) Join(ctx context.Context, requestID, userID, message string) (*MatchRequest, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	p := Participant{ID: u.ID, Name: u.Name, Phone: u.Phone, Photo: u.ProfilePhoto, SkillLevel: u.SkillLevel}

	m, err := s.mutate(ctx, requestID, func(m *MatchRequest) error {
		return m.Join(p, message, s.now())
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("join requested", zap.String("request_id", m.ID), zap.String("payer_id", userID))
	s.notify(ctx, notification.Message{
		UserID:      m.CreatorID,
		Type:        notification.TypeMatchJoin,
		Title:       "New Join Request",
		Body:        fmt.Sprintf("%s wants to join your match!", u.Name),
		RelatedID:   m.ID,
		RelatedType: relatedTypeMatch,
	})
	return m, nil
}

func (s *Service) Accept(ctx context.Context, requestID, creatorID, userID string) (*MatchRequest, error) {
	var closed bool
	m, err := s.mutate(ctx, requestID, func(m *MatchRequest) error {
		if m.CreatorID != creatorID {
			return ErrNotCreator
		}
		var err error
		closed, err = m.Accept(userID, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("join accepted",
		zap.String("request_id", m.ID),
		zap.String("payer_id", userID),
		zap.Int("players_joined", m.PlayersJoined),
		zap.Bool("closed", closed),
	)
	s.join(m.ID, userID)
	s.notify(ctx, notification.Message{
		UserID:      userID,
		Type:        notification.TypeMatchAccepted,
		Title:       "Request Accepted!",
		Body:        fmt.Sprintf("You've been accepted to join %s's match!", m.CreatorName),
		RelatedID:   m.ID,
		RelatedType: relatedTypeMatch,
	})

	if closed {
		return s.onClosed(ctx, m), nil
	}
	return m, nil
}

// onClosed books the match slot for the creator when the policy asks for
// it. A failed reservation is logged and leaves the request closed.
func (s *Service) onClosed(ctx context.Context, m *MatchRequest) *MatchRequest {
	if !s.policy.BookOnClose || s.reserver == nil || m.CricketBoxID == "" || m.StartTime == "" {
		return m
	}
	requestID := m.ID
	b, err := s.reserver.Reserve(ctx, booking.ReserveRequest{
		BoxID:          m.CricketBoxID,
		Date:           m.MatchDate,
		StartTime:      m.StartTime,
		EndTime:        m.EndTime,
		PayerID:        m.CreatorID,
		Kind:           booking.TypeOnline,
		MatchRequestID: &requestID,
	})
	if err != nil {
		s.log.Warn("reserve on close", zap.String("request_id", m.ID), zap.Error(err))
		return m
	}

	linked, err := s.mutate(ctx, m.ID, func(m *MatchRequest) error {
		if m.BookingID == nil {
			m.BookingID = &b.ID
		}
		return nil
	})
	if err != nil {
		s.log.Error("link booking to match request", zap.String("request_id", m.ID), zap.String("booking_id", b.ID), zap.Error(err))
		return m
	}
	s.log.Info("match slot reserved", zap.String("request_id", m.ID), zap.String("booking_id", b.ID))
	return linked
}

func (s *Service) Reject(ctx context.Context, requestID, creatorID, userID string) (*MatchRequest, error) {
	m, err := s.mutate(ctx, requestID, func(m *MatchRequest) error {
		if m.CreatorID != creatorID {
			return ErrNotCreator
		}
		return m.Reject(userID, s.now())
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("join rejected", zap.String("request_id", m.ID), zap.String("payer_id", userID))
	s.notify(ctx, notification.Message{
		UserID:      userID,
		Type:        notification.TypeMatchRejected,
		Title:       "Request Declined",
		Body:        fmt.Sprintf("Your request to join %s's match was declined", m.CreatorName),
		RelatedID:   m.ID,
		RelatedType: relatedTypeMatch,
	})
	return m, nil
}

func (s *Service) Withdraw(ctx context.Context, requestID, userID string) (*MatchRequest, error) {
	var wasAccepted, reopened bool
	m, err := s.mutate(ctx, requestID, func(m *MatchRequest) error {
		var err error
		wasAccepted, reopened, err = m.Withdraw(userID, s.policy.ReopenOnWithdraw)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("join withdrawn",
		zap.String("request_id", m.ID),
		zap.String("payer_id", userID),
		zap.Bool("was_accepted", wasAccepted),
		zap.Bool("reopened", reopened),
	)
	if wasAccepted && s.topics != nil {
		s.topics.LeaveTopic(realtime.MatchTopic(m.ID), userID)
	}
	return m, nil
}

// Update lets the creator edit an open request.
func (s *Service) Update(ctx context.Context, requestID, creatorID string, req UpdateRequest) (*MatchRequest, error) {
	if errs := validator.Validate(req); errs != nil {
		return nil, apperr.Validation("invalid match request", errs)
	}
	if req.MatchDate != nil && *req.MatchDate < s.today() {
		return nil, ErrMatchDateInPast
	}

	var closed bool
	m, err := s.mutate(ctx, requestID, func(m *MatchRequest) error {
		if m.CreatorID != creatorID {
			return ErrNotCreator
		}
		var err error
		closed, err = m.Apply(req)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("match request updated",
		zap.String("request_id", m.ID),
		zap.Int("players_needed", m.PlayersNeeded),
		zap.Bool("closed", closed),
	)
	if closed {
		return s.onClosed(ctx, m), nil
	}
	return m, nil
}

// Cancel lets the creator call off an open request.
func (s *Service) Cancel(ctx context.Context, requestID, creatorID string) (*MatchRequest, error) {
	return s.mutate(ctx, requestID, func(m *MatchRequest) error {
		if m.CreatorID != creatorID {
			return ErrNotCreator
		}
		if !m.Status.CanTransitionTo(StatusCancelled) {
			return ErrNotOpen
		}
		m.Status = StatusCancelled
		return nil
	})
}

func (s *Service) Get(ctx context.Context, requestID string) (*MatchRequest, error) {
	return s.repo.GetByID(ctx, requestID)
}

func (s *Service) ListOpen(ctx context.Context, f OpenFilters) ([]MatchRequest, int64, error) {
	return s.repo.ListOpen(ctx, f)
}

func (s *Service) ListCreated(ctx context.Context, creatorID string, status Status) ([]MatchRequest, error) {
	return s.repo.ListByCreator(ctx, creatorID, status)
}

func (s *Service) ListJoined(ctx context.Context, userID string) ([]MatchRequest, error) {
	candidates, err := s.repo.ListJoined(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]MatchRequest, 0, len(candidates))
	for _, m := range candidates {
		if m.HasJoinRequest(userID) || m.AcceptedPlayers.Contains(userID) {
			out = append(out, m)
		}
	}
	return out, nil
}

// IsParticipant backs topic authorization for match:<id>.
func (s *Service) IsParticipant(ctx context.Context, requestID, userID string) (bool, error) {
	m, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return false, err
	}
	return m.IsParticipant(userID), nil
}

// ExpireElapsed expires open requests whose match date has passed.
func (s *Service) ExpireElapsed(ctx context.Context) (int64, error) {
	n, err := s.repo.ExpireBefore(ctx, s.today(), s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info("match requests expired", zap.Int64("count", n))
	}
	return n, nil
}

func (s *Service) join(requestID, userID string) {
	if s.topics != nil {
		s.topics.JoinTopic(realtime.MatchTopic(requestID), userID)
	}
}

func (s *Service) notify(ctx context.Context, msg notification.Message) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, msg); err != nil {
		s.log.Error("notify", zap.String("user_id", msg.UserID), zap.String("type", string(msg.Type)), zap.Error(err))
	}
}
