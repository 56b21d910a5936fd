package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func TestIssueAndParse(t *testing.T) {
	s := NewSessions("test-secret", time.Hour)
	tok, exp, err := s.Issue(42)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if time.Until(exp) < 59*time.Minute {
		t.Fatalf("expiry too short: %v", exp)
	}
	uid, err := s.Parse(tok)
	if err != nil || uid != 42 {
		t.Fatalf("Parse = %d, %v", uid, err)
	}
}

func TestParse_Rejects(t *testing.T) {
	s := NewSessions("test-secret", time.Hour)
	tok, _, _ := s.Issue(1)

	other := NewSessions("other-secret", time.Hour)
	if _, err := other.Parse(tok); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("wrong secret: got %v", err)
	}

	expired := NewSessions("test-secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _, _ := expired.Issue(1)
	if _, err := s.Parse(old); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired token: got %v", err)
	}

	if _, err := s.Parse("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("garbage: got %v", err)
	}
}

func whoami(w http.ResponseWriter, r *http.Request) {
	if uid, ok := UserIDFromContext(r.Context()); ok {
		w.Header().Set("X-User", strconv.FormatUint(uint64(uid), 10))
	}
	w.WriteHeader(http.StatusNoContent)
}

func TestMiddleware_CookieAndBearer(t *testing.T) {
	s := NewSessions("test-secret", time.Hour)
	tok, exp, _ := s.Issue(7)
	h := s.Middleware(http.HandlerFunc(whoami))

	rec := httptest.NewRecorder()
	s.SetCookie(rec, tok, exp)
	cookie := rec.Result().Cookies()[0]

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Header().Get("X-User") != "7" {
		t.Fatalf("cookie session not attached: %q", w.Header().Get("X-User"))
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Header().Get("X-User") != "7" {
		t.Fatal("bearer session not attached")
	}
}

func TestMiddleware_Verifier(t *testing.T) {
	s := NewSessions("test-secret", time.Hour)
	s.SetUserVerifier(func(_ context.Context, uid uint) bool { return uid != 7 })
	tok, _, _ := s.Issue(7)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	s.Middleware(RequireAuth(http.HandlerFunc(whoami))).ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("rejected user reached handler: %d", w.Code)
	}
}

func TestRequireAuth(t *testing.T) {
	h := RequireAuth(http.HandlerFunc(whoami))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: got %d", w.Code)
	}
	if got := w.Body.String(); got != `{"error":"unauthorized"}` {
		t.Fatalf("body = %s", got)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithUserID(req.Context(), 3))
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("authenticated: got %d", w.Code)
	}
}
