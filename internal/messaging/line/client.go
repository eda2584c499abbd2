// Package line implementa el cliente de la Messaging API de LINE:
// reply, push y perfil del seguidor, más la normalización de contenido
// al formato de mensajes del API.
package line

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.line.me"

// Errores del cliente de mensajería.
var (
	ErrInvalidContent = errors.New("messaging: invalid message content")
	ErrMissingToken   = errors.New("messaging: channel access token is missing")
)

// Message es un mensaje en el formato de la Messaging API.
type Message struct {
	Type               string         `json:"type"`
	Text               string         `json:"text,omitempty"`
	OriginalContentURL string         `json:"originalContentUrl,omitempty"`
	PreviewImageURL    string         `json:"previewImageUrl,omitempty"`
	AltText            string         `json:"altText,omitempty"`
	Template           map[string]any `json:"template,omitempty"`
}

// NewText construye un mensaje de texto plano.
func NewText(text string) Message { return Message{Type: "text", Text: text} }

// FormatContent normaliza contenido lógico a mensajes del API. Valida antes
// de tocar la red: un contenido inválido corta el envío completo.
//   - text: requiere texto no vacío.
//   - image: requiere URL; va como original y preview a la vez.
//   - template: requiere el objeto template y un altText.
func FormatContent(typ, text, imageURL, altText string, template map[string]any) ([]Message, error) {
	switch typ {
	case "text":
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("%w: text message requires text", ErrInvalidContent)
		}
		return []Message{NewText(text)}, nil
	case "image":
		if strings.TrimSpace(imageURL) == "" {
			return nil, fmt.Errorf("%w: image message requires imageUrl", ErrInvalidContent)
		}
		return []Message{{
			Type:               "image",
			OriginalContentURL: imageURL,
			PreviewImageURL:    imageURL,
		}}, nil
	case "template":
		if template == nil {
			return nil, fmt.Errorf("%w: template message requires template", ErrInvalidContent)
		}
		alt := altText
		if strings.TrimSpace(alt) == "" {
			alt = "テンプレートメッセージ"
		}
		return []Message{{Type: "template", AltText: alt, Template: template}}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported type %q", ErrInvalidContent, typ)
	}
}

// Client habla con la Messaging API de un channel.
type Client struct {
	AccessToken string

	// BaseURL reemplaza api.line.me en tests.
	BaseURL string

	http *http.Client
}

// NewClient crea el cliente con el access token de larga duración del channel.
func NewClient(accessToken string) *Client {
	return &Client{
		AccessToken: accessToken,
		http:        &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) baseURL() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return defaultBaseURL
}

func (c *Client) post(ctx context.Context, path string, body any) error {
	if strings.TrimSpace(c.AccessToken) == "" {
		return ErrMissingToken
	}
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, _ := http.NewRequestWithContext(ctx, "POST", c.baseURL()+path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.AccessToken)
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("messaging http %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}

// Reply responde a un evento usando su reply token (gratis, un solo uso).
func (c *Client) Reply(ctx context.Context, replyToken string, msgs []Message) error {
	return c.post(ctx, "/v2/bot/message/reply", map[string]any{
		"replyToken": replyToken,
		"messages":   msgs,
	})
}

// Push envía mensajes a un usuario fuera de una conversación activa.
func (c *Client) Push(ctx context.Context, to string, msgs []Message) error {
	return c.post(ctx, "/v2/bot/message/push", map[string]any{
		"to":       to,
		"messages": msgs,
	})
}

// BotProfile es el perfil de un seguidor visto desde el bot.
type BotProfile struct {
	UserID        string `json:"userId"`
	DisplayName   string `json:"displayName"`
	PictureURL    string `json:"pictureUrl,omitempty"`
	StatusMessage string `json:"statusMessage,omitempty"`
}

// FetchBotProfile obtiene el perfil de un seguidor del channel.
func (c *Client) FetchBotProfile(ctx context.Context, userID string) (*BotProfile, error) {
	if strings.TrimSpace(c.AccessToken) == "" {
		return nil, ErrMissingToken
	}
	req, _ := http.NewRequestWithContext(ctx, "GET", c.baseURL()+"/v2/bot/profile/"+userID, nil)
	req.Header.Set("Authorization", "Bearer "+c.AccessToken)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("bot profile http %d", resp.StatusCode)
	}
	var p BotProfile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}
