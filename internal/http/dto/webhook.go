package dto

// WebhookPayload es el cuerpo que envía la plataforma de mensajería.
type WebhookPayload struct {
	Destination string         `json:"destination,omitempty"`
	Events      []WebhookEvent `json:"events"`
}

// WebhookEvent es un evento individual del webhook.
type WebhookEvent struct {
	Type       string          `json:"type"`
	ReplyToken string          `json:"replyToken,omitempty"`
	Timestamp  int64           `json:"timestamp,omitempty"`
	Source     *WebhookSource  `json:"source,omitempty"`
	Message    *WebhookMessage `json:"message,omitempty"`
}

type WebhookSource struct {
	Type   string `json:"type"`
	UserID string `json:"userId,omitempty"`
}

type WebhookMessage struct {
	ID   string `json:"id,omitempty"`
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}
