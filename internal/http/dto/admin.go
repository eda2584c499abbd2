package dto

import "time"

// RecipientView es la proyección de un destinatario para GET /users.
type RecipientView struct {
	UserID        string     `json:"userId"`
	DisplayName   string     `json:"displayName"`
	PictureURL    string     `json:"pictureUrl,omitempty"`
	FollowedAt    time.Time  `json:"followedAt"`
	IsActive      bool       `json:"isActive"`
	LastMessageAt *time.Time `json:"lastMessageAt,omitempty"`
}

// ListUsersResponse es la respuesta de GET /users.
type ListUsersResponse struct {
	Users []RecipientView `json:"users"`
	Count int             `json:"count"`
}

// JobView es la proyección de un message job para GET /messages.
type JobView struct {
	ID              string      `json:"id"`
	Content         ContentBody `json:"content"`
	Target          TargetBody  `json:"target"`
	Status          string      `json:"status"`
	ScheduledAt     *time.Time  `json:"scheduledAt,omitempty"`
	CreatedAt       time.Time   `json:"createdAt"`
	ProcessedAt     *time.Time  `json:"processedAt,omitempty"`
	CreatedBy       string      `json:"createdBy,omitempty"`
	TotalRecipients int         `json:"totalRecipients"`
	SuccessCount    int         `json:"successCount"`
	FailedUserIDs   []string    `json:"failedUserIds,omitempty"`
	Error           string      `json:"error,omitempty"`
}

// ListJobsResponse es la respuesta de GET /messages.
type ListJobsResponse struct {
	Messages []JobView `json:"messages"`
	Count    int       `json:"count"`
}
