package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func captureUserID(t *testing.T, req *http.Request) (string, *httptest.ResponseRecorder) {
	t.Helper()
	var got string
	h := Middleware(true)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = UserIDFromContext(r.Context())
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return got, rr
}

func TestMiddlewareIssuesPlayerCookie(t *testing.T) {
	id, rr := captureUserID(t, httptest.NewRequest(http.MethodGet, "/api/session", nil))
	if !IsValidPlayerID(id) {
		t.Fatalf("expected generated player id, got %q", id)
	}
	cookies := rr.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != PlayerCookieName || cookies[0].Value != id {
		t.Fatalf("unexpected cookies %+v", cookies)
	}
}

func TestMiddlewareReusesValidCookie(t *testing.T) {
	const existing = "web_0123456789abcdef0123456789abcdef"
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: PlayerCookieName, Value: existing})

	id, _ := captureUserID(t, req)
	if id != existing {
		t.Fatalf("expected %q, got %q", existing, id)
	}
}

func TestMiddlewareReplacesForgedCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: PlayerCookieName, Value: "12345"})

	id, _ := captureUserID(t, req)
	if id == "12345" || !IsValidPlayerID(id) {
		t.Fatalf("forged id must be replaced, got %q", id)
	}
}

func TestIPFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.7:5555"
	if got := IPFromRequest(req); got != "10.0.0.7" {
		t.Fatalf("unexpected ip %q", got)
	}
}
