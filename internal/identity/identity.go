// Package identity provides anonymous per-browser player identity.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"time"
)

const (
	PlayerCookieName = "sphinx_player"
	playerCookieAge  = 30 * 24 * time.Hour
)

type contextKey int

const userIDKey contextKey = iota

var playerIDPattern = regexp.MustCompile(`^web_[a-f0-9]{32}$`)

// UserIDFromContext extracts the player ID from the request context.
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

// WithUserID returns a copy of ctx carrying userID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func generatePlayerID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate player id: %w", err)
	}
	return "web_" + hex.EncodeToString(buf), nil
}

// IsValidPlayerID reports whether id has the shape of a web player id.
func IsValidPlayerID(id string) bool {
	return playerIDPattern.MatchString(id)
}

func setPlayerCookie(w http.ResponseWriter, id string, isDev bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     PlayerCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(playerCookieAge.Seconds()),
		Expires:  time.Now().Add(playerCookieAge),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !isDev,
	})
}

func getOrCreatePlayerID(w http.ResponseWriter, r *http.Request, isDev bool) (string, error) {
	if c, err := r.Cookie(PlayerCookieName); err == nil && IsValidPlayerID(c.Value) {
		setPlayerCookie(w, c.Value, isDev)
		return c.Value, nil
	}

	id, err := generatePlayerID()
	if err != nil {
		return "", err
	}
	setPlayerCookie(w, id, isDev)
	return id, nil
}

// Middleware gives every browser a stable anonymous player ID, kept in a
// cookie, and stores it in the request context.
func Middleware(isDev bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := getOrCreatePlayerID(w, r, isDev)
			if err != nil {
				http.Error(w, `{"error":"failed to establish player identity"}`, http.StatusInternalServerError)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// IPFromRequest returns a normalized remote IP for request tracing.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
