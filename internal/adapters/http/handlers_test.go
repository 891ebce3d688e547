package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/viralforge/suggestbox/internal/adapters/memory"
	"github.com/viralforge/suggestbox/internal/adapters/security"
	"github.com/viralforge/suggestbox/internal/feed"
	"github.com/viralforge/suggestbox/internal/ports"
)

type handlerFixture struct {
	router http.Handler
	store  *memory.LiveStore
	signer *security.JWTSigner
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	signer, err := security.NewEphemeralJWTSigner("test-key-1")
	if err != nil {
		t.Fatalf("build signer: %v", err)
	}
	store := memory.NewLiveStore()
	cfg := feed.Config{APIKey: "test-api-key", ProjectID: "testproj"}
	newProvider := func() ports.IdentityProvider {
		return security.NewAnonymousProvider(signer, time.Hour, httpLogger())
	}
	handler := NewHandler(cfg, store, store, newProvider, signer)
	return &handlerFixture{
		router: NewRouter(handler),
		store:  store,
		signer: signer,
	}
}

func (f *handlerFixture) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *handlerFixture) signIn(t *testing.T) (principalID, token string) {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/feed/v1/identity/anonymous", "", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("sign-in status %d: %s", rec.Code, rec.Body.String())
	}
	var envelope struct {
		Status string `json:"status"`
		Data   struct {
			PrincipalID string `json:"principalId"`
			Token       string `json:"token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode sign-in response: %v", err)
	}
	if envelope.Data.PrincipalID == "" || envelope.Data.Token == "" {
		t.Fatalf("incomplete sign-in response: %s", rec.Body.String())
	}
	return envelope.Data.PrincipalID, envelope.Data.Token
}

func decodeErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope apiError
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return envelope.Code
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	f := newHandlerFixture(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		if rec := f.do(t, http.MethodGet, path, "", ""); rec.Code != http.StatusOK {
			t.Fatalf("%s status %d", path, rec.Code)
		}
	}
}

func TestSignInIssuesDistinctPrincipals(t *testing.T) {
	t.Parallel()

	f := newHandlerFixture(t)
	firstID, firstToken := f.signIn(t)
	secondID, _ := f.signIn(t)

	if firstID == secondID {
		t.Fatalf("each sign-in must mint a fresh principal, got %q twice", firstID)
	}
	claims, err := f.signer.ParseAndValidate(firstToken)
	if err != nil {
		t.Fatalf("issued token does not validate: %v", err)
	}
	if claims.PrincipalID != firstID {
		t.Fatalf("token principal %q does not match %q", claims.PrincipalID, firstID)
	}
}

func TestSubmitRequiresBearerToken(t *testing.T) {
	t.Parallel()

	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodPost, "/feed/v1/suggestions", "", `{"text":"hi"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("want 401 without token, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/feed/v1/suggestions", "not-a-jwt", `{"text":"hi"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("want 401 for garbage token, got %d", rec.Code)
	}

	now := time.Now().UTC()
	expired, err := f.signer.Sign(ports.PrincipalClaims{
		PrincipalID: "anon-old",
		IssuedAt:    now.Add(-2 * time.Hour),
		ExpiresAt:   now.Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("sign expired token: %v", err)
	}
	rec = f.do(t, http.MethodPost, "/feed/v1/suggestions", expired, `{"text":"hi"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("want 401 for expired token, got %d", rec.Code)
	}
	if code := decodeErrorCode(t, rec); code != "TOKEN_EXPIRED" {
		t.Fatalf("want TOKEN_EXPIRED, got %q", code)
	}
}

func TestSubmitValidatesBeforeStore(t *testing.T) {
	t.Parallel()

	f := newHandlerFixture(t)
	_, token := f.signIn(t)

	cases := []struct {
		name string
		body string
	}{
		{name: "empty text", body: `{"text":""}`},
		{name: "whitespace text", body: `{"text":"   "}`},
		{name: "over budget", body: `{"text":"` + strings.Repeat("a", 301) + `"}`},
		{name: "unknown field", body: `{"text":"hi","priority":"high"}`},
		{name: "malformed json", body: `{"text":`},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/feed/v1/suggestions", token, tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("want 400, got %d: %s", rec.Code, rec.Body.String())
			}
			if code := decodeErrorCode(t, rec); code != "VALIDATION_ERROR" {
				t.Fatalf("want VALIDATION_ERROR, got %q", code)
			}
		})
	}

	rec := f.do(t, http.MethodGet, "/feed/v1/suggestions", "", "")
	var envelope struct {
		Data struct {
			Count int `json:"count"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if envelope.Data.Count != 0 {
		t.Fatalf("rejected submissions must not reach the store, got %d entries", envelope.Data.Count)
	}
}

func TestSubmitAndListRoundTrip(t *testing.T) {
	t.Parallel()

	f := newHandlerFixture(t)
	principalID, token := f.signIn(t)

	for _, text := range []string{"first idea", "  second idea  "} {
		rec := f.do(t, http.MethodPost, "/feed/v1/suggestions", token, `{"text":"`+text+`"}`)
		if rec.Code != http.StatusCreated {
			t.Fatalf("submit status %d: %s", rec.Code, rec.Body.String())
		}
	}

	rec := f.do(t, http.MethodGet, "/feed/v1/suggestions", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status %d", rec.Code)
	}
	var envelope struct {
		Data struct {
			Count       int             `json:"count"`
			Suggestions []suggestionDTO `json:"suggestions"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if envelope.Data.Count != 2 {
		t.Fatalf("want 2 entries, got %d", envelope.Data.Count)
	}
	// Newest first, trimmed text, attributed to the signed-in principal.
	if envelope.Data.Suggestions[0].Text != "second idea" {
		t.Fatalf("want newest entry first, got %q", envelope.Data.Suggestions[0].Text)
	}
	for _, s := range envelope.Data.Suggestions {
		if s.AuthorID != principalID {
			t.Fatalf("want author %q, got %q", principalID, s.AuthorID)
		}
		if s.CreatedAt == nil {
			t.Fatalf("committed entries must carry the server timestamp")
		}
		if s.AuthorLabel != principalID[:8] {
			t.Fatalf("want 8-char author label, got %q", s.AuthorLabel)
		}
	}
}
