package chat

import "github.com/sarvangi2609/criczz/internal/apperr"

var (
	ErrNotParticipant  = apperr.New(apperr.ErrForbidden, "NOT_PARTICIPANT", "only match participants can use this chat")
	ErrMessageNotFound = apperr.New(apperr.ErrNotFound, "MESSAGE_NOT_FOUND", "message not found")
	ErrNotSender       = apperr.New(apperr.ErrForbidden, "NOT_SENDER", "you can only delete your own messages")
	ErrNotChatTopic    = apperr.New(apperr.ErrValidation, "NOT_CHAT_TOPIC", "topic has no conversation")
)
