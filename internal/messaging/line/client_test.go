package line

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFormatContentText(t *testing.T) {
	msgs, err := FormatContent("text", "hola", "", "", nil)
	if err != nil {
		t.Fatalf("FormatContent: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Type != "text" || msgs[0].Text != "hola" {
		t.Errorf("msgs = %+v", msgs)
	}
}

func TestFormatContentTextEmpty(t *testing.T) {
	_, err := FormatContent("text", "   ", "", "", nil)
	if !errors.Is(err, ErrInvalidContent) {
		t.Fatalf("expected ErrInvalidContent, got %v", err)
	}
}

func TestFormatContentImage(t *testing.T) {
	msgs, err := FormatContent("image", "", "https://img.example/x.jpg", "", nil)
	if err != nil {
		t.Fatalf("FormatContent: %v", err)
	}
	m := msgs[0]
	if m.OriginalContentURL != "https://img.example/x.jpg" || m.PreviewImageURL != m.OriginalContentURL {
		t.Errorf("image urls = %+v", m)
	}
}

func TestFormatContentTemplate(t *testing.T) {
	tpl := map[string]any{"type": "buttons", "text": "pick one"}
	msgs, err := FormatContent("template", "", "", "", tpl)
	if err != nil {
		t.Fatalf("FormatContent: %v", err)
	}
	if msgs[0].AltText == "" {
		t.Error("template without altText should get a default")
	}
}

func TestFormatContentUnsupported(t *testing.T) {
	_, err := FormatContent("sticker", "", "", "", nil)
	if !errors.Is(err, ErrInvalidContent) {
		t.Fatalf("expected ErrInvalidContent, got %v", err)
	}
}

func TestReplyAndPush(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if auth := r.Header.Get("Authorization"); auth != "Bearer tok" {
			t.Errorf("authorization = %q", auth)
		}
		gotBody = map[string]any{}
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient("tok")
	c.BaseURL = srv.URL

	if err := c.Reply(context.Background(), "rt-1", []Message{NewText("pong")}); err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if gotPath != "/v2/bot/message/reply" {
		t.Errorf("path = %q", gotPath)
	}
	if gotBody["replyToken"] != "rt-1" {
		t.Errorf("replyToken = %v", gotBody["replyToken"])
	}

	if err := c.Push(context.Background(), "U99", []Message{NewText("hi")}); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if gotPath != "/v2/bot/message/push" {
		t.Errorf("path = %q", gotPath)
	}
	if gotBody["to"] != "U99" {
		t.Errorf("to = %v", gotBody["to"])
	}
}

func TestPushHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"message":"monthly limit"}`))
	}))
	defer srv.Close()

	c := NewClient("tok")
	c.BaseURL = srv.URL
	err := c.Push(context.Background(), "U1", []Message{NewText("x")})
	if err == nil {
		t.Fatal("expected error on 429")
	}
}

func TestMissingToken(t *testing.T) {
	c := NewClient("")
	if err := c.Push(context.Background(), "U1", []Message{NewText("x")}); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
}

func TestFetchBotProfile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/bot/profile/U42" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{"userId":"U42","displayName":"Mika","pictureUrl":"https://p.example/m.png"}`))
	}))
	defer srv.Close()

	c := NewClient("tok")
	c.BaseURL = srv.URL
	p, err := c.FetchBotProfile(context.Background(), "U42")
	if err != nil {
		t.Fatalf("FetchBotProfile: %v", err)
	}
	if p.DisplayName != "Mika" {
		t.Errorf("profile = %+v", p)
	}
}
