package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func subjectEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(SubjectFromContext(r.Context())))
	})
}

func TestMiddlewareWithSecret(t *testing.T) {
	svc := NewService("test-secret")
	tok, err := svc.Issue("alice")
	if err != nil {
		t.Fatal(err)
	}

	h := Middleware(svc)(subjectEcho())

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK || w.Body.String() != "alice" {
		t.Fatalf("valid token: %d %q", w.Code, w.Body)
	}

	req = httptest.NewRequest("GET", "/", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("missing bearer: %d", w.Code)
	}

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token: %d", w.Code)
	}

	// token signed with a different secret is rejected
	other, err := NewService("other-secret").Issue("mallory")
	if err != nil {
		t.Fatal(err)
	}
	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+other)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("cross-signed token: %d", w.Code)
	}
}

func TestMiddlewareDisabled(t *testing.T) {
	h := Middleware(NewService(""))(subjectEcho())
	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK || w.Body.String() != "anonymous" {
		t.Fatalf("disabled auth: %d %q", w.Code, w.Body)
	}
}
