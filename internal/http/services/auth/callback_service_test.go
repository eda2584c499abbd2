package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	cachemem "github.com/dropDatabas3/linerelay/internal/cache/memory"
	"github.com/dropDatabas3/linerelay/internal/http/dto"
	line "github.com/dropDatabas3/linerelay/internal/oauth/line"
	"github.com/dropDatabas3/linerelay/internal/store"
	storemem "github.com/dropDatabas3/linerelay/internal/store/memory"
)

type fakeProvider struct {
	exchangeCalls int
	tokens        *line.TokenResponse
	exchangeErr   error
	profile       *line.Profile
	profileErr    error
}

func (f *fakeProvider) ExchangeCode(_ context.Context, _ string) (*line.TokenResponse, error) {
	f.exchangeCalls++
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return f.tokens, nil
}

func (f *fakeProvider) FetchProfile(_ context.Context, _ string) (*line.Profile, error) {
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	return f.profile, nil
}

type fakeIssuer struct {
	err   error
	calls int
}

func (f *fakeIssuer) IssueSession(sub string, _ map[string]any) (string, time.Time, error) {
	f.calls++
	if f.err != nil {
		return "", time.Time{}, f.err
	}
	return "custom-token-" + sub, time.Now().Add(time.Hour), nil
}

// idTokenWithNonce arma un jwt sin firma válida pero con payload decodificable.
func idTokenWithNonce(nonce string) string {
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"iss":"https://access.line.me","sub":"U1","nonce":"` + nonce + `"}`))
	return "eyJhbGciOiJIUzI1NiJ9." + payload + ".sig"
}

func newFixture(p *fakeProvider, iss *fakeIssuer) (CallbackService, *SessionStore, *storemem.Store) {
	sessions := NewSessionStore(cachemem.New(time.Minute), time.Minute)
	identities := storemem.New()
	svc := NewCallbackService(CallbackDeps{
		Provider:   p,
		Sessions:   sessions,
		Identities: identities,
		Issuer:     iss,
	})
	return svc, sessions, identities
}

func seedSession(t *testing.T, sessions *SessionStore, action string) *AuthSession {
	t.Helper()
	raw, err := NewNonce()
	if err != nil {
		t.Fatalf("NewNonce: %v", err)
	}
	state, err := NewState()
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	sess := &AuthSession{State: state, RawNonce: raw, HashedNonce: HashNonce(raw), PendingAction: action}
	if err := sessions.Save(sess); err != nil {
		t.Fatalf("Save: %v", err)
	}
	return sess
}

func TestCompleteNewUser(t *testing.T) {
	p := &fakeProvider{
		profile: &line.Profile{UserID: "U1", DisplayName: "Yuki", PictureURL: "https://p/x.jpg"},
	}
	iss := &fakeIssuer{}
	svc, sessions, identities := newFixture(p, iss)
	sess := seedSession(t, sessions, "login")
	p.tokens = &line.TokenResponse{AccessToken: "at", IDToken: idTokenWithNonce(sess.HashedNonce)}

	resp, err := svc.Complete(context.Background(), dto.CallbackRequest{Code: "code", State: sess.State})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.CustomToken != "custom-token-U1" {
		t.Errorf("customToken = %q", resp.CustomToken)
	}
	if resp.IsExistingUser {
		t.Error("first login should not be existing user")
	}
	if resp.LinkInfo != nil {
		t.Error("new user should have no linkInfo")
	}
	if resp.User.Provider != "line" || resp.User.UID != "U1" {
		t.Errorf("user = %+v", resp.User)
	}

	id, err := identities.GetIdentity(context.Background(), "U1")
	if err != nil {
		t.Fatalf("identity not persisted: %v", err)
	}
	if !id.HasProvider("line") {
		t.Errorf("identity providers = %v", id.LinkedProviders)
	}

	// La sesión se consume: reutilizar el state falla cerrado.
	if got := sessions.Load(sess.State); got != nil {
		t.Error("session should be erased after completion")
	}
}

func TestCompleteExistingUserLinkInfo(t *testing.T) {
	p := &fakeProvider{
		profile: &line.Profile{UserID: "U1", DisplayName: "Yuki"},
	}
	iss := &fakeIssuer{}
	svc, sessions, identities := newFixture(p, iss)

	now := time.Now().UTC()
	if err := identities.PutIdentity(context.Background(), &store.Identity{
		UID:             "U1",
		DisplayName:     "Yuki",
		LinkedProviders: []string{"line", "google"},
		CreatedAt:       now,
		UpdatedAt:       now,
	}); err != nil {
		t.Fatalf("PutIdentity: %v", err)
	}

	sess := seedSession(t, sessions, "login")
	p.tokens = &line.TokenResponse{AccessToken: "at"}

	resp, err := svc.Complete(context.Background(), dto.CallbackRequest{Code: "code", State: sess.State})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !resp.IsExistingUser {
		t.Error("expected existing user")
	}
	if resp.LinkInfo == nil {
		t.Fatal("expected linkInfo for existing user")
	}
	if !resp.LinkInfo.Line || !resp.LinkInfo.Google || resp.LinkInfo.Password {
		t.Errorf("linkInfo = %+v", resp.LinkInfo)
	}
}

func TestCompleteNoArtifactsFailsClosed(t *testing.T) {
	p := &fakeProvider{}
	svc, _, _ := newFixture(p, &fakeIssuer{})

	_, err := svc.Complete(context.Background(), dto.CallbackRequest{Code: "code", State: "unknown-state"})
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	if p.exchangeCalls != 0 {
		t.Error("exchange must not run without auth artifacts")
	}
}

func TestCompleteClientHeldFallback(t *testing.T) {
	raw, _ := NewNonce()
	hashed := HashNonce(raw)
	p := &fakeProvider{
		tokens:  &line.TokenResponse{AccessToken: "at", IDToken: idTokenWithNonce(hashed)},
		profile: &line.Profile{UserID: "U7", DisplayName: "Ken"},
	}
	svc, _, _ := newFixture(p, &fakeIssuer{})

	resp, err := svc.Complete(context.Background(), dto.CallbackRequest{
		Code:  "code",
		State: "expired-state",
		Nonce: raw,
	})
	if err != nil {
		t.Fatalf("Complete with client artifacts: %v", err)
	}
	if resp.User.UID != "U7" {
		t.Errorf("user = %+v", resp.User)
	}
}

func TestCompleteNonceMismatch(t *testing.T) {
	p := &fakeProvider{
		profile: &line.Profile{UserID: "U1"},
	}
	svc, sessions, _ := newFixture(p, &fakeIssuer{})
	sess := seedSession(t, sessions, "login")
	p.tokens = &line.TokenResponse{AccessToken: "at", IDToken: idTokenWithNonce("attacker-nonce")}

	_, err := svc.Complete(context.Background(), dto.CallbackRequest{Code: "code", State: sess.State})
	if !errors.Is(err, ErrNonceMismatch) {
		t.Fatalf("expected ErrNonceMismatch, got %v", err)
	}
	// Sesión consumida también en el camino de error.
	if got := sessions.Load(sess.State); got != nil {
		t.Error("session should be erased on nonce mismatch")
	}
}

func TestCompleteMalformedIDTokenContinues(t *testing.T) {
	p := &fakeProvider{
		profile: &line.Profile{UserID: "U1", DisplayName: "Yuki"},
	}
	svc, sessions, _ := newFixture(p, &fakeIssuer{})
	sess := seedSession(t, sessions, "login")
	p.tokens = &line.TokenResponse{AccessToken: "at", IDToken: "not-a-jwt"}

	resp, err := svc.Complete(context.Background(), dto.CallbackRequest{Code: "code", State: sess.State})
	if err != nil {
		t.Fatalf("malformed id_token must not abort the flow: %v", err)
	}
	if resp.CustomToken == "" {
		t.Error("expected credential despite undecodable id_token")
	}
}

func TestCompleteTokenExchangeFailed(t *testing.T) {
	p := &fakeProvider{tokens: &line.TokenResponse{}} // sin access_token
	svc, sessions, _ := newFixture(p, &fakeIssuer{})
	sess := seedSession(t, sessions, "login")

	_, err := svc.Complete(context.Background(), dto.CallbackRequest{Code: "code", State: sess.State})
	if !errors.Is(err, ErrTokenExchange) {
		t.Fatalf("expected ErrTokenExchange, got %v", err)
	}
}

func TestCompleteLinkActionNeverMintsCredential(t *testing.T) {
	p := &fakeProvider{
		profile: &line.Profile{UserID: "U1", DisplayName: "Yuki"},
	}
	iss := &fakeIssuer{}
	svc, sessions, identities := newFixture(p, iss)
	sess := seedSession(t, sessions, "link")
	p.tokens = &line.TokenResponse{AccessToken: "at"}

	resp, err := svc.Complete(context.Background(), dto.CallbackRequest{Code: "code", State: sess.State})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.LinkResult == nil || !resp.LinkResult.Success {
		t.Fatalf("linkResult = %+v", resp.LinkResult)
	}
	if resp.CustomToken != "" {
		t.Error("link action must not mint a login credential")
	}
	if iss.calls != 0 {
		t.Error("issuer must not be invoked on link action")
	}
	id, _ := identities.GetIdentity(context.Background(), "U1")
	if !id.HasProvider("line") {
		t.Errorf("providers = %v", id.LinkedProviders)
	}
}

func TestCompleteIssuerDownReturnsPartialResult(t *testing.T) {
	p := &fakeProvider{
		profile: &line.Profile{UserID: "U1", DisplayName: "Yuki"},
	}
	iss := &fakeIssuer{err: errors.New("keystore unavailable")}
	svc, sessions, _ := newFixture(p, iss)
	sess := seedSession(t, sessions, "login")
	p.tokens = &line.TokenResponse{AccessToken: "at"}

	resp, err := svc.Complete(context.Background(), dto.CallbackRequest{Code: "code", State: sess.State})
	if err != nil {
		t.Fatalf("issuer outage must not fail the callback: %v", err)
	}
	if resp.CustomToken != "" {
		t.Error("no credential expected when issuer is down")
	}
	if resp.User == nil || resp.User.UID != "U1" {
		t.Errorf("profile info must survive issuer outage, user = %+v", resp.User)
	}
}

func TestCompleteIdempotentIdentity(t *testing.T) {
	p := &fakeProvider{
		profile: &line.Profile{UserID: "U1", DisplayName: "Yuki"},
	}
	svc, sessions, identities := newFixture(p, &fakeIssuer{})

	for i := 0; i < 2; i++ {
		sess := seedSession(t, sessions, "login")
		p.tokens = &line.TokenResponse{AccessToken: "at"}
		resp, err := svc.Complete(context.Background(), dto.CallbackRequest{Code: "code", State: sess.State})
		if err != nil {
			t.Fatalf("Complete #%d: %v", i+1, err)
		}
		if i == 1 && !resp.IsExistingUser {
			t.Error("second login must report existing user")
		}
	}
	all, _ := identities.ListIdentities(context.Background())
	if len(all) != 1 {
		t.Errorf("identities = %d, want 1", len(all))
	}
}
