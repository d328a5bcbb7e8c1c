package chat

type SendRequest struct {
	Content   string `json:"content" validate:"required,max=2000"`
	ReplyToID string `json:"reply_to_message_id"`
}

type ReadRequest struct {
	LastReadID string `json:"last_read_message_id"`
}
