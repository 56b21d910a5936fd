package httpx

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestJSONError(t *testing.T) {
	w := httptest.NewRecorder()
	JSONError(w, http.StatusConflict, "invalid_transition", map[string]string{"reason": "document is paid"})
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q", ct)
	}
	want := `{"error":"invalid_transition","details":{"reason":"document is paid"}}`
	if got := w.Body.String(); got != want {
		t.Fatalf("body = %s, want %s", got, want)
	}
}

func TestJSON_Nil(t *testing.T) {
	w := httptest.NewRecorder()
	JSON(w, http.StatusOK, nil)
	if w.Body.String() != "null" {
		t.Fatalf("body = %q", w.Body.String())
	}
}

func TestDecode(t *testing.T) {
	var v struct {
		Action string `json:"action"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"action":"send"}`))
	if err := Decode(req, &v); err != nil || v.Action != "send" {
		t.Fatalf("Decode = %v, %+v", err, v)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"action":"send","force":true}`))
	if err := Decode(req, &v); err == nil {
		t.Fatal("unknown field accepted")
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(``))
	if err := Decode(req, &v); !errors.Is(err, ErrEmptyBody) {
		t.Fatalf("empty body: got %v", err)
	}
}
