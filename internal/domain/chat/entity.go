package chat

import "time"

type MessageType string

const (
	MessageText   MessageType = "text"
	MessageSystem MessageType = "system"
)

const deletedContent = "This message was deleted"

// Conversation is the stored thread behind a match request's chat room.
// Its ID is the room id the match request carries.
type Conversation struct {
	ID             string     `json:"id" gorm:"primaryKey;type:varchar(64)"`
	MatchRequestID string     `json:"match_request_id" gorm:"type:varchar(36);uniqueIndex;not null"`
	Title          string     `json:"title"`
	LastMessage    string     `json:"last_message,omitempty"`
	LastMessageAt  *time.Time `json:"last_message_at,omitempty"`
	LastMessageBy  string     `json:"last_message_by,omitempty"`
	MessageCount   int        `json:"message_count" gorm:"not null;default:0"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (Conversation) TableName() string { return "conversations" }

// Member tracks how far a user has read a conversation.
type Member struct {
	ConversationID    string     `json:"conversation_id" gorm:"primaryKey;type:varchar(64)"`
	UserID            string     `json:"user_id" gorm:"primaryKey;type:varchar(36)"`
	LastReadMessageID string     `json:"last_read_message_id,omitempty" gorm:"type:varchar(36)"`
	ReadUpTo          *time.Time `json:"read_up_to,omitempty"`
	JoinedAt          time.Time  `json:"joined_at"`
}

func (Member) TableName() string { return "conversation_members" }

type Message struct {
	ID             string      `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ConversationID string      `json:"conversation_id" gorm:"type:varchar(64);not null;index:idx_chat_messages_conversation_created"`
	SenderID       string      `json:"sender_id" gorm:"type:varchar(36);not null"`
	SenderName     string      `json:"sender_name"`
	SenderPhoto    string      `json:"sender_photo,omitempty"`
	Type           MessageType `json:"message_type" gorm:"type:varchar(16);not null"`
	Content        string      `json:"content" gorm:"type:text;not null"`
	ReplyToID      string      `json:"reply_to_message_id,omitempty" gorm:"type:varchar(36)"`
	IsDeleted      bool        `json:"is_deleted"`
	DeletedAt      *time.Time  `json:"deleted_at,omitempty"`
	CreatedAt      time.Time   `json:"created_at" gorm:"index:idx_chat_messages_conversation_created"`
}

func (Message) TableName() string { return "chat_messages" }

// ConversationSummary is a conversation as listed for one user.
type ConversationSummary struct {
	Conversation
	UnreadCount int64 `json:"unread_count"`
}

// MessagePage is a window of messages in chronological order.
type MessagePage struct {
	Messages []Message `json:"messages"`
	Total    int64     `json:"total"`
	HasMore  bool      `json:"has_more"`
}
