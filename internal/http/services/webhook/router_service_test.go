package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dropDatabas3/linerelay/internal/http/dto"
	msg "github.com/dropDatabas3/linerelay/internal/messaging/line"
	"github.com/dropDatabas3/linerelay/internal/store"
	storemem "github.com/dropDatabas3/linerelay/internal/store/memory"
)

type fakeMessaging struct {
	mu       sync.Mutex
	replies  [][]msg.Message
	tokens   []string
	profile  *msg.BotProfile
	replyErr error
	panicOn  string
}

func (f *fakeMessaging) Reply(_ context.Context, token string, msgs []msg.Message) error {
	if f.panicOn != "" && token == f.panicOn {
		panic("boom")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, token)
	f.replies = append(f.replies, msgs)
	return f.replyErr
}

func (f *fakeMessaging) FetchBotProfile(_ context.Context, _ string) (*msg.BotProfile, error) {
	if f.profile == nil {
		return nil, errors.New("profile unavailable")
	}
	return f.profile, nil
}

func textEvent(token, userID, text string) dto.WebhookEvent {
	return dto.WebhookEvent{
		Type:       "message",
		ReplyToken: token,
		Source:     &dto.WebhookSource{Type: "user", UserID: userID},
		Message:    &dto.WebhookMessage{Type: "text", Text: text},
	}
}

func TestVerifySignature(t *testing.T) {
	secret := "channel-secret"
	body := []byte(`{"events":[]}`)

	mac := computeSignature(secret, body)
	if !VerifySignature(secret, body, mac) {
		t.Error("valid signature rejected")
	}
	if VerifySignature(secret, body, "") {
		t.Error("empty signature accepted")
	}
	if VerifySignature(secret, []byte(`{"events":[] }`), mac) {
		t.Error("signature over different bytes accepted")
	}
	if VerifySignature("", body, mac) {
		t.Error("missing secret must reject")
	}
}

func computeSignature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestRouteMessageEchoAndKeywords(t *testing.T) {
	fm := &fakeMessaging{}
	recipients := storemem.New()
	svc := NewRouterService(RouterDeps{Messaging: fm, Recipients: recipients})

	svc.Route(context.Background(), dto.WebhookPayload{Events: []dto.WebhookEvent{
		textEvent("rt-1", "U1", "hello world"),
	}})

	if len(fm.replies) != 1 {
		t.Fatalf("replies = %d, want 1", len(fm.replies))
	}
	msgs := fm.replies[0]
	if len(msgs) != 2 {
		t.Fatalf("reply parts = %d, want echo + greeting", len(msgs))
	}
	if !strings.Contains(msgs[0].Text, "hello world") {
		t.Errorf("echo text = %q", msgs[0].Text)
	}
	if !strings.Contains(msgs[1].Text, "こんにちは") {
		t.Errorf("greeting text = %q", msgs[1].Text)
	}
}

func TestRouteMessageHelpKeyword(t *testing.T) {
	fm := &fakeMessaging{}
	svc := NewRouterService(RouterDeps{Messaging: fm, Recipients: storemem.New()})

	svc.Route(context.Background(), dto.WebhookPayload{Events: []dto.WebhookEvent{
		textEvent("rt-1", "U1", "ヘルプ"),
	}})

	if len(fm.replies) != 1 || len(fm.replies[0]) != 2 {
		t.Fatalf("replies = %+v", fm.replies)
	}
	if !strings.Contains(fm.replies[0][1].Text, "使い方") {
		t.Errorf("help text = %q", fm.replies[0][1].Text)
	}
}

func TestRouteNonTextMessageIgnored(t *testing.T) {
	fm := &fakeMessaging{}
	svc := NewRouterService(RouterDeps{Messaging: fm, Recipients: storemem.New()})

	svc.Route(context.Background(), dto.WebhookPayload{Events: []dto.WebhookEvent{
		{
			Type:       "message",
			ReplyToken: "rt-1",
			Source:     &dto.WebhookSource{UserID: "U1"},
			Message:    &dto.WebhookMessage{Type: "sticker"},
		},
	}})
	if len(fm.replies) != 0 {
		t.Errorf("sticker message should not be replied, got %d replies", len(fm.replies))
	}
}

func TestRouteFollowUpsertsAndWelcomes(t *testing.T) {
	fm := &fakeMessaging{profile: &msg.BotProfile{UserID: "U9", DisplayName: "Mika", PictureURL: "https://p/m.png"}}
	recipients := storemem.New()
	svc := NewRouterService(RouterDeps{Messaging: fm, Recipients: recipients})

	svc.Route(context.Background(), dto.WebhookPayload{Events: []dto.WebhookEvent{
		{Type: "follow", ReplyToken: "rt-f", Source: &dto.WebhookSource{UserID: "U9"}},
	}})

	r, err := recipients.GetRecipient(context.Background(), "U9")
	if err != nil {
		t.Fatalf("recipient not stored: %v", err)
	}
	if !r.IsActive || r.DisplayName != "Mika" {
		t.Errorf("recipient = %+v", r)
	}
	if len(fm.replies) != 1 || len(fm.replies[0]) != 2 {
		t.Fatalf("welcome pair expected, got %+v", fm.replies)
	}
}

func TestRouteFollowProfileDownStillStores(t *testing.T) {
	fm := &fakeMessaging{} // FetchBotProfile devuelve error
	recipients := storemem.New()
	svc := NewRouterService(RouterDeps{Messaging: fm, Recipients: recipients})

	svc.Route(context.Background(), dto.WebhookPayload{Events: []dto.WebhookEvent{
		{Type: "follow", ReplyToken: "rt-f", Source: &dto.WebhookSource{UserID: "U9"}},
	}})

	r, err := recipients.GetRecipient(context.Background(), "U9")
	if err != nil {
		t.Fatalf("recipient must be stored despite profile outage: %v", err)
	}
	if r.DisplayName != "Unknown User" {
		t.Errorf("displayName = %q", r.DisplayName)
	}
}

func TestRouteUnfollowDeactivates(t *testing.T) {
	fm := &fakeMessaging{}
	recipients := storemem.New()
	recipients.UpsertRecipient(context.Background(), &store.Recipient{
		LineUserID: "U9", IsActive: true, FollowedAt: time.Now(),
	})
	svc := NewRouterService(RouterDeps{Messaging: fm, Recipients: recipients})

	svc.Route(context.Background(), dto.WebhookPayload{Events: []dto.WebhookEvent{
		{Type: "unfollow", Source: &dto.WebhookSource{UserID: "U9"}},
	}})

	r, _ := recipients.GetRecipient(context.Background(), "U9")
	if r.IsActive {
		t.Error("recipient should be inactive after unfollow")
	}
	if len(fm.replies) != 0 {
		t.Error("unfollow has no reply token, nothing must be sent")
	}
}

func TestRoutePanicIsolation(t *testing.T) {
	fm := &fakeMessaging{panicOn: "rt-bad"}
	recipients := storemem.New()
	svc := NewRouterService(RouterDeps{Messaging: fm, Recipients: recipients})

	// El evento que entra en pánico no debe impedir el procesamiento del resto.
	svc.Route(context.Background(), dto.WebhookPayload{Events: []dto.WebhookEvent{
		textEvent("rt-bad", "U1", "x"),
		textEvent("rt-ok", "U2", "y"),
	}})

	found := false
	for _, tok := range fm.tokens {
		if tok == "rt-ok" {
			found = true
		}
	}
	if !found {
		t.Error("sibling event was not processed after panic")
	}
}

func TestRouteUnknownTypeIgnored(t *testing.T) {
	fm := &fakeMessaging{}
	svc := NewRouterService(RouterDeps{Messaging: fm, Recipients: storemem.New()})

	svc.Route(context.Background(), dto.WebhookPayload{Events: []dto.WebhookEvent{
		{Type: "postback"},
	}})
	if len(fm.replies) != 0 {
		t.Error("unknown types must be logged and ignored")
	}
}
