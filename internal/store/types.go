// Package store define el modelo de datos del servicio y los contratos de
// persistencia. Hay dos adaptadores: memoria (dev/tests) y Postgres (prod).
package store

import (
	"errors"
	"time"
)

// Identity es la cuenta de la app ligada a uno o más proveedores de login.
// El UID es el userId de LINE cuando la cuenta nació por LINE Login.
type Identity struct {
	UID             string    `json:"uid"`
	DisplayName     string    `json:"displayName"`
	AvatarURL       string    `json:"photoURL,omitempty"`
	Email           string    `json:"email,omitempty"`
	LinkedProviders []string  `json:"linkedProviders"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// HasProvider reporta si el proveedor ya está vinculado a la identidad.
func (i *Identity) HasProvider(p string) bool {
	for _, lp := range i.LinkedProviders {
		if lp == p {
			return true
		}
	}
	return false
}

// Recipient es un seguidor del canal de mensajería, destino del fan-out.
type Recipient struct {
	LineUserID    string     `json:"lineUserId"`
	DisplayName   string     `json:"displayName"`
	PictureURL    string     `json:"pictureUrl,omitempty"`
	FollowedAt    time.Time  `json:"followedAt"`
	IsActive      bool       `json:"isActive"`
	LastMessageAt *time.Time `json:"lastMessageAt,omitempty"`
}

// Estados del ciclo de vida de un MessageJob.
const (
	JobPending    = "pending"
	JobProcessing = "processing"
	JobCompleted  = "completed"
	JobFailed     = "failed"
)

// Tipos de destino de un envío.
const (
	TargetAll    = "all"
	TargetSingle = "single"
	TargetList   = "list"
)

// MessageContent es el contenido lógico de un envío, previo a normalizarse
// al formato de la Messaging API.
type MessageContent struct {
	Type     string         `json:"type"`
	Text     string         `json:"text,omitempty"`
	ImageURL string         `json:"imageUrl,omitempty"`
	AltText  string         `json:"altText,omitempty"`
	Template map[string]any `json:"template,omitempty"`
}

// MessageTarget describe a quién va dirigido el envío.
type MessageTarget struct {
	Type    string   `json:"type"`
	UserID  string   `json:"userId,omitempty"`
	UserIDs []string `json:"userIds,omitempty"`
}

// MessageJob es un envío encolado con su resultado agregado.
type MessageJob struct {
	ID              string         `json:"id"`
	Content         MessageContent `json:"content"`
	Target          MessageTarget  `json:"target"`
	Status          string         `json:"status"`
	ScheduledAt     *time.Time     `json:"scheduledAt,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	ProcessedAt     *time.Time     `json:"processedAt,omitempty"`
	CreatedBy       string         `json:"createdBy,omitempty"`
	TotalRecipients int            `json:"totalRecipients"`
	SuccessCount    int            `json:"successCount"`
	FailedUserIDs   []string       `json:"failedUserIds,omitempty"`
	Error           string         `json:"error,omitempty"`
}

// GetBatchMax es el máximo de ids por lectura en lote. Lo impone el backend
// de persistencia; el resolutor de destinos trocea listas más largas.
const GetBatchMax = 10

// Errores sentinela de la capa de persistencia.
var (
	ErrNotFound    = errors.New("store: not found")
	ErrBatchTooBig = errors.New("store: batch exceeds max ids")
)
