package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// previewLength caps the last-message preview kept on a conversation.
const previewLength = 100

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Conversation{}, &Member{}, &Message{})
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// EnsureConversation creates c unless a conversation with its id already
// exists, and returns the stored row either way.
func (r *Repository) EnsureConversation(ctx context.Context, c *Conversation) (*Conversation, error) {
	db := r.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(c).Error; err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	var out Conversation
	if err := db.First(&out, "id = ?", c.ID).Error; err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return &out, nil
}

func (r *Repository) EnsureMember(ctx context.Context, conversationID, userID string, at time.Time) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&Member{ConversationID: conversationID, UserID: userID, JoinedAt: at}).Error
	if err != nil {
		return fmt.Errorf("add conversation member: %w", err)
	}
	return nil
}

func (r *Repository) GetMember(ctx context.Context, conversationID, userID string) (*Member, error) {
	var m Member
	err := r.db.WithContext(ctx).First(&m, "conversation_id = ? AND user_id = ?", conversationID, userID).Error
	if err != nil {
		return nil, fmt.Errorf("get conversation member: %w", err)
	}
	return &m, nil
}

// ListForUser returns the conversations userID has opened, most recently
// active first.
func (r *Repository) ListForUser(ctx context.Context, userID string) ([]Conversation, error) {
	var out []Conversation
	err := r.db.WithContext(ctx).
		Select("conversations.*").
		Joins("JOIN conversation_members cm ON cm.conversation_id = conversations.id AND cm.user_id = ?", userID).
		Order("COALESCE(conversations.last_message_at, conversations.created_at) DESC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return out, nil
}

// CreateMessage stores msg and advances its conversation's preview and
// counter in the same transaction.
func (r *Repository) CreateMessage(ctx context.Context, msg *Message) error {
	preview := []rune(msg.Content)
	if len(preview) > previewLength {
		preview = preview[:previewLength]
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&Conversation{}).Where("id = ?", msg.ConversationID).
			Updates(map[string]any{
				"last_message":    string(preview),
				"last_message_at": msg.CreatedAt,
				"last_message_by": msg.SenderID,
				"message_count":   gorm.Expr("message_count + 1"),
				"updated_at":      msg.CreatedAt,
			}).Error
	})
	if err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	return nil
}

func (r *Repository) GetMessage(ctx context.Context, id string) (*Message, error) {
	var m Message
	err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return &m, nil
}

// LatestMessage returns the newest message of a conversation, or nil when
// it has none.
func (r *Repository) LatestMessage(ctx context.Context, conversationID string) (*Message, error) {
	var out []Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC, id DESC").
		Limit(1).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("latest message: %w", err)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

// ListMessages returns up to limit live messages older than before (all
// when before is nil), oldest first.
func (r *Repository) ListMessages(ctx context.Context, conversationID string, before *Message, limit int) ([]Message, error) {
	q := r.db.WithContext(ctx).Where("conversation_id = ? AND is_deleted = ?", conversationID, false)
	if before != nil {
		q = q.Where("created_at < ? OR (created_at = ? AND id < ?)", before.CreatedAt, before.CreatedAt, before.ID)
	}
	var out []Message
	if err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (r *Repository) CountMessages(ctx context.Context, conversationID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&Message{}).
		Where("conversation_id = ? AND is_deleted = ?", conversationID, false).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}

// CountUnread counts live messages from others newer than the user's read
// marker.
func (r *Repository) CountUnread(ctx context.Context, conversationID, userID string) (int64, error) {
	m, err := r.GetMember(ctx, conversationID, userID)
	if err != nil {
		return 0, err
	}
	q := r.db.WithContext(ctx).Model(&Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND is_deleted = ?", conversationID, userID, false)
	if m.ReadUpTo != nil {
		q = q.Where("created_at > ?", *m.ReadUpTo)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return n, nil
}

// MarkRead moves the user's marker to msg. A marker already at or past
// msg is left alone.
func (r *Repository) MarkRead(ctx context.Context, userID string, msg *Message) (bool, error) {
	res := r.db.WithContext(ctx).Model(&Member{}).
		Where("conversation_id = ? AND user_id = ?", msg.ConversationID, userID).
		Where("read_up_to IS NULL OR read_up_to < ?", msg.CreatedAt).
		Updates(map[string]any{"last_read_message_id": msg.ID, "read_up_to": msg.CreatedAt})
	if res.Error != nil {
		return false, fmt.Errorf("mark read: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// SoftDelete blanks a message its sender no longer wants shown.
func (r *Repository) SoftDelete(ctx context.Context, id, senderID string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&Message{}).
		Where("id = ? AND sender_id = ? AND is_deleted = ?", id, senderID, false).
		Updates(map[string]any{"is_deleted": true, "deleted_at": at, "content": deletedContent})
	if res.Error != nil {
		return false, fmt.Errorf("delete message: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}
