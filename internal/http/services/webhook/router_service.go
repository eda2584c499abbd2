package webhook

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/linerelay/internal/http/dto"
	msg "github.com/dropDatabas3/linerelay/internal/messaging/line"
	"github.com/dropDatabas3/linerelay/internal/metrics"
	"github.com/dropDatabas3/linerelay/internal/observability/logger"
	"github.com/dropDatabas3/linerelay/internal/store"
)

// MessagingClient son las llamadas salientes que usa el router de eventos.
type MessagingClient interface {
	Reply(ctx context.Context, replyToken string, msgs []msg.Message) error
	FetchBotProfile(ctx context.Context, userID string) (*msg.BotProfile, error)
}

// RouterService despacha los eventos del webhook a su handler por tipo.
type RouterService interface {
	Route(ctx context.Context, payload dto.WebhookPayload)
}

// RouterDeps contains dependencies for the event router.
type RouterDeps struct {
	Messaging  MessagingClient
	Recipients store.RecipientRepository
}

type routerService struct {
	messaging  MessagingClient
	recipients store.RecipientRepository
}

func NewRouterService(deps RouterDeps) RouterService {
	return &routerService{messaging: deps.Messaging, recipients: deps.Recipients}
}

// Route procesa cada evento en su propia goroutine con recover: la falla o
// el pánico de un evento nunca aborta a sus hermanos del mismo batch.
func (s *routerService) Route(ctx context.Context, payload dto.WebhookPayload) {
	var wg sync.WaitGroup
	for i := range payload.Events {
		ev := payload.Events[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.routeOne(ctx, ev)
		}()
	}
	wg.Wait()
}

func (s *routerService) routeOne(ctx context.Context, ev dto.WebhookEvent) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("webhook.router"),
		logger.EventType(ev.Type),
	)

	defer func() {
		if r := recover(); r != nil {
			log.Error("event handler panicked", zap.Any("panic", r))
			metrics.RecordWebhookEvent(ev.Type, "panic")
		}
	}()

	var err error
	switch ev.Type {
	case "message":
		err = s.handleMessage(ctx, ev)
	case "follow":
		err = s.handleFollow(ctx, ev)
	case "unfollow":
		err = s.handleUnfollow(ctx, ev)
	default:
		log.Info("unhandled event type")
		metrics.RecordWebhookEvent(ev.Type, "ok")
		return
	}
	if err != nil {
		log.Error("event handling failed", logger.Err(err))
		metrics.RecordWebhookEvent(ev.Type, "error")
		return
	}
	metrics.RecordWebhookEvent(ev.Type, "ok")
}

// handleMessage responde con eco y, si aplica, respuestas por palabra clave.
func (s *routerService) handleMessage(ctx context.Context, ev dto.WebhookEvent) error {
	if ev.Message == nil || ev.Message.Type != "text" {
		return nil
	}
	text := ev.Message.Text
	lower := strings.ToLower(text)

	replies := []msg.Message{
		msg.NewText(fmt.Sprintf("あなたのメッセージ「%s」を受け取りました！", text)),
	}
	if strings.Contains(lower, "こんにちは") || strings.Contains(lower, "hello") {
		replies = append(replies, msg.NewText("こんにちは！お元気ですか？ / Hello! How are you?"))
	}
	if strings.Contains(lower, "help") || strings.Contains(lower, "ヘルプ") {
		replies = append(replies, msg.NewText("使い方:\n- 「こんにちは」でご挨拶\n- 「ヘルプ」でこのメッセージを表示\n\nUsage:\n- Say 'Hello' for greeting\n- Say 'Help' to show this message"))
	}

	if ev.Source != nil && ev.Source.UserID != "" {
		if err := s.recipients.TouchRecipient(ctx, ev.Source.UserID, time.Now().UTC()); err != nil {
			logger.From(ctx).Debug("recipient touch skipped", logger.Err(err))
		}
	}
	return s.messaging.Reply(ctx, ev.ReplyToken, replies)
}

// handleFollow trae el perfil fresco del seguidor, lo activa en el roster y
// envía el par de mensajes de bienvenida.
func (s *routerService) handleFollow(ctx context.Context, ev dto.WebhookEvent) error {
	if ev.Source == nil || ev.Source.UserID == "" {
		return fmt.Errorf("follow event without user id")
	}
	userID := ev.Source.UserID

	displayName := "Unknown User"
	pictureURL := ""
	profile, err := s.messaging.FetchBotProfile(ctx, userID)
	if err != nil {
		logger.From(ctx).Warn("bot profile fetch failed, storing minimal recipient",
			logger.UserID(userID), logger.Err(err))
	} else {
		if profile.DisplayName != "" {
			displayName = profile.DisplayName
		}
		pictureURL = profile.PictureURL
	}

	if err := s.recipients.UpsertRecipient(ctx, &store.Recipient{
		LineUserID:  userID,
		DisplayName: displayName,
		PictureURL:  pictureURL,
		FollowedAt:  time.Now().UTC(),
		IsActive:    true,
	}); err != nil {
		return fmt.Errorf("upsert recipient: %w", err)
	}

	welcome := []msg.Message{
		msg.NewText("友だち追加ありがとうございます！🎉\nThank you for adding me as a friend! 🎉"),
		msg.NewText("「ヘルプ」と送信すると使い方を表示します。\nSend 'Help' to see how to use."),
	}
	return s.messaging.Reply(ctx, ev.ReplyToken, welcome)
}

// handleUnfollow marca al seguidor como inactivo. No hay reply token en este
// tipo de evento, así que no se responde nada.
func (s *routerService) handleUnfollow(ctx context.Context, ev dto.WebhookEvent) error {
	if ev.Source == nil || ev.Source.UserID == "" {
		return fmt.Errorf("unfollow event without user id")
	}
	return s.recipients.SetRecipientActive(ctx, ev.Source.UserID, false)
}
