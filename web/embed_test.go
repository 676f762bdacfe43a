package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestChatPage(t *testing.T) {
	h := ChatPage()

	for _, path := range []string{"/", "/play/anything", "/../etc/passwd"} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected status 200, got %d", path, w.Code)
		}
		if !strings.Contains(w.Body.String(), "/ws/play") {
			t.Errorf("%s: expected the chat page", path)
		}
		if got := w.Header().Get("Cache-Control"); got != "no-cache" {
			t.Errorf("%s: expected no-cache, got %q", path, got)
		}
	}
}

func TestChatPageRejectsWrites(t *testing.T) {
	w := httptest.NewRecorder()
	ChatPage().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))

	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
	if w.Header().Get("Allow") != "GET, HEAD" {
		t.Errorf("unexpected Allow header %q", w.Header().Get("Allow"))
	}
}
