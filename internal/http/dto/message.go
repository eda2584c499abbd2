package dto

// SendMessageRequest es el cuerpo de POST /send-message.
type SendMessageRequest struct {
	Content     ContentBody `json:"content"`
	Target      TargetBody  `json:"target"`
	ScheduledAt string      `json:"scheduledAt,omitempty"` // RFC3339
	CreatedBy   string      `json:"createdBy,omitempty"`
}

type ContentBody struct {
	Type     string         `json:"type"`
	Text     string         `json:"text,omitempty"`
	ImageURL string         `json:"imageUrl,omitempty"`
	AltText  string         `json:"altText,omitempty"`
	Template map[string]any `json:"template,omitempty"`
}

type TargetBody struct {
	Type    string   `json:"type"`
	UserID  string   `json:"userId,omitempty"`
	UserIDs []string `json:"userIds,omitempty"`
}

// SendMessageResponse confirma el encolado del job.
type SendMessageResponse struct {
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
}
