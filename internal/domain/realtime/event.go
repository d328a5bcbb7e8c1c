package realtime

import "strings"

// Event is the frame pushed to live clients.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

const (
	EventNewMessage   = "new_message"
	EventTyping       = "typing"
	EventRead         = "read"
	EventNotification = "notification"

	// control frames answered to the sending client only
	EventPong  = "pong"
	EventError = "error"
)

const (
	matchTopicPrefix = "match:"
	ownerTopicPrefix = "owner:"
)

func MatchTopic(requestID string) string {
	return matchTopicPrefix + requestID
}

// MatchRequestID returns the match request behind a "match:<id>" topic.
func MatchRequestID(topic string) (string, bool) {
	prefix, id := splitTopic(topic)
	if prefix != matchTopicPrefix {
		return "", false
	}
	return id, true
}

func OwnerTopic(ownerID string) string {
	return ownerTopicPrefix + ownerID
}

func NewTypingEvent(topic, payerID string, isTyping bool) Event {
	return Event{Event: EventTyping, Data: map[string]any{
		"topic":     topic,
		"user_id":   payerID,
		"is_typing": isTyping,
	}}
}

func NewReadEvent(topic, payerID, lastReadID string) Event {
	return Event{Event: EventRead, Data: map[string]any{
		"topic":        topic,
		"user_id":      payerID,
		"last_read_id": lastReadID,
	}}
}

// NewMessageEvent announces a stored chat message.
func NewMessageEvent(topic string, message any) Event {
	return Event{Event: EventNewMessage, Data: map[string]any{
		"topic":   topic,
		"message": message,
	}}
}

func NewErrorEvent(code, message string) Event {
	return Event{Event: EventError, Data: map[string]string{"code": code, "message": message}}
}

func splitTopic(topic string) (prefix, id string) {
	if i := strings.IndexByte(topic, ':'); i > 0 && i < len(topic)-1 {
		return topic[:i+1], topic[i+1:]
	}
	return "", ""
}
