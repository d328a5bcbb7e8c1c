package chat

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sarvangi2609/criczz/internal/apperr"
	"github.com/sarvangi2609/criczz/internal/domain/identity"
	"github.com/sarvangi2609/criczz/internal/domain/match"
	"github.com/sarvangi2609/criczz/internal/domain/realtime"
	"github.com/sarvangi2609/criczz/internal/pkg/validator"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

type MatchReader interface {
	Get(ctx context.Context, requestID string) (*match.MatchRequest, error)
}

type UserReader interface {
	GetByID(ctx context.Context, id string) (*identity.User, error)
}

// Broadcaster fans stored chat events out to the live members of a room.
type Broadcaster interface {
	Broadcast(topic string, ev realtime.Event, exclude string) int
}

// Service keeps the conversation of every match request. Membership is
// whatever the match request says it is at the time of the call.
type Service struct {
	repo    *Repository
	matches MatchReader
	users   UserReader
	fanout  Broadcaster
	log     *zap.Logger
	now     func() time.Time
}

func NewService(repo *Repository, matches MatchReader, users UserReader, fanout Broadcaster, log *zap.Logger) *Service {
	return &Service{repo: repo, matches: matches, users: users, fanout: fanout, log: log, now: time.Now}
}

// open checks userID takes part in the match request and returns its
// conversation, creating it on first use.
func (s *Service) open(ctx context.Context, requestID, userID string) (*Conversation, error) {
	m, err := s.matches.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !m.IsParticipant(userID) {
		return nil, ErrNotParticipant
	}
	room := m.ChatRoomID
	if room == "" {
		room = realtime.MatchTopic(m.ID)
	}

	now := s.now()
	c, err := s.repo.EnsureConversation(ctx, &Conversation{
		ID:             room,
		MatchRequestID: m.ID,
		Title:          m.Title,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		return nil, err
	}
	if err := s.repo.EnsureMember(ctx, c.ID, userID, now); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) CreateConversation(ctx context.Context, requestID, userID string) (*Conversation, error) {
	return s.open(ctx, requestID, userID)
}

// ListConversations returns the conversations the user has opened, with
// the count of messages they have not read yet.
func (s *Service) ListConversations(ctx context.Context, userID string) ([]ConversationSummary, error) {
	list, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]ConversationSummary, 0, len(list))
	for _, c := range list {
		unread, err := s.repo.CountUnread(ctx, c.ID, userID)
		if err != nil {
			return nil, err
		}
		out = append(out, ConversationSummary{Conversation: c, UnreadCount: unread})
	}
	return out, nil
}

// Messages pages backwards through the conversation. before is the id of
// the oldest message the caller already has.
func (s *Service) Messages(ctx context.Context, requestID, userID, before string, limit int) (*MessagePage, error) {
	c, err := s.open(ctx, requestID, userID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}

	var cursor *Message
	if before != "" {
		cursor, err = s.repo.GetMessage(ctx, before)
		if err != nil {
			return nil, err
		}
		if cursor.ConversationID != c.ID {
			return nil, ErrMessageNotFound
		}
	}

	msgs, err := s.repo.ListMessages(ctx, c.ID, cursor, limit)
	if err != nil {
		return nil, err
	}
	total, err := s.repo.CountMessages(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	return &MessagePage{Messages: msgs, Total: total, HasMore: len(msgs) == limit}, nil
}

// Send stores a message and only then announces it to the room.
func (s *Service) Send(ctx context.Context, requestID, userID string, req SendRequest) (*Message, error) {
	req.Content = strings.TrimSpace(req.Content)
	if errs := validator.Validate(req); errs != nil {
		return nil, apperr.Validation("invalid message", errs)
	}
	c, err := s.open(ctx, requestID, userID)
	if err != nil {
		return nil, err
	}
	if req.ReplyToID != "" {
		parent, err := s.repo.GetMessage(ctx, req.ReplyToID)
		if err != nil {
			return nil, err
		}
		if parent.ConversationID != c.ID {
			return nil, ErrMessageNotFound
		}
	}

	sender, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	msg := &Message{
		ID:             uuid.NewString(),
		ConversationID: c.ID,
		SenderID:       sender.ID,
		SenderName:     sender.Name,
		SenderPhoto:    sender.ProfilePhoto,
		Type:           MessageText,
		Content:        req.Content,
		ReplyToID:      req.ReplyToID,
		CreatedAt:      s.now(),
	}
	if err := s.repo.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}

	s.log.Debug("chat message stored", zap.String("conversation_id", c.ID), zap.String("message_id", msg.ID))
	if s.fanout != nil {
		s.fanout.Broadcast(c.ID, realtime.NewMessageEvent(c.ID, msg), "")
	}
	return msg, nil
}

// MarkRead moves the user's read marker to lastReadID, or to the newest
// message when it is empty. The others in the room see the new marker.
func (s *Service) MarkRead(ctx context.Context, requestID, userID, lastReadID string) (*Member, error) {
	c, err := s.open(ctx, requestID, userID)
	if err != nil {
		return nil, err
	}

	var upTo *Message
	if lastReadID != "" {
		upTo, err = s.repo.GetMessage(ctx, lastReadID)
		if err != nil {
			return nil, err
		}
		if upTo.ConversationID != c.ID {
			return nil, ErrMessageNotFound
		}
	} else {
		upTo, err = s.repo.LatestMessage(ctx, c.ID)
		if err != nil {
			return nil, err
		}
	}

	if upTo != nil {
		moved, err := s.repo.MarkRead(ctx, userID, upTo)
		if err != nil {
			return nil, err
		}
		if moved && s.fanout != nil {
			s.fanout.Broadcast(c.ID, realtime.NewReadEvent(c.ID, userID, upTo.ID), userID)
		}
	}
	return s.repo.GetMember(ctx, c.ID, userID)
}

// DeleteMessage blanks one of the caller's own messages.
func (s *Service) DeleteMessage(ctx context.Context, messageID, userID string) error {
	msg, err := s.repo.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != userID {
		return ErrNotSender
	}
	if msg.IsDeleted {
		return nil
	}
	if _, err := s.repo.SoftDelete(ctx, msg.ID, userID, s.now()); err != nil {
		return err
	}
	s.log.Info("chat message deleted", zap.String("conversation_id", msg.ConversationID), zap.String("message_id", msg.ID))
	return nil
}

// PostToTopic serves a message frame from the websocket, which addresses
// the conversation by its room topic.
func (s *Service) PostToTopic(ctx context.Context, topic, userID, text string) error {
	requestID, ok := realtime.MatchRequestID(topic)
	if !ok {
		return ErrNotChatTopic
	}
	_, err := s.Send(ctx, requestID, userID, SendRequest{Content: text})
	return err
}

func (s *Service) ReadTopic(ctx context.Context, topic, userID, lastReadID string) error {
	requestID, ok := realtime.MatchRequestID(topic)
	if !ok {
		return ErrNotChatTopic
	}
	_, err := s.MarkRead(ctx, requestID, userID, lastReadID)
	return err
}
