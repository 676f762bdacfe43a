package webchat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/memecoinsphinx/sphinx/internal/domain"
	"github.com/memecoinsphinx/sphinx/internal/game"
	"github.com/memecoinsphinx/sphinx/internal/identity"
	"github.com/memecoinsphinx/sphinx/internal/messenger"
)

type fakeGame struct {
	mu     sync.Mutex
	events []game.Event
	handle func(game.Event) (game.Reply, error)
}

func (g *fakeGame) Handle(_ context.Context, _ string, ev game.Event) (game.Reply, error) {
	g.mu.Lock()
	g.events = append(g.events, ev)
	g.mu.Unlock()
	if g.handle != nil {
		return g.handle(ev)
	}
	return game.Reply{
		Outcome:  domain.OutcomePlain,
		State:    domain.StateInProgress,
		Messages: []messenger.Message{messenger.Text("ok", messenger.FormatPlain)},
	}, nil
}

func newChatServer(t *testing.T, g Game, limiter *RateLimiter) *httptest.Server {
	t.Helper()
	h := NewHandler(g, NewSessionManager("/images/"), limiter, []string{"https://sphinx.example"}, false)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.ServeHTTP(w, r.WithContext(identity.WithUserID(r.Context(), "web_test")))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, f Frame) {
	t.Helper()
	data, _ := json.Marshal(f)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
}

func receive(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("Invalid frame %q: %v", data, err)
	}
	return f
}

func TestHandler_TextRoundTrip(t *testing.T) {
	g := &fakeGame{}
	conn := dial(t, newChatServer(t, g, nil))

	send(t, conn, Frame{Type: "text", Text: "is it doge?"})

	if f := receive(t, conn); f.Type != "text" || f.Text != "ok" {
		t.Errorf("Unexpected reply frame: %+v", f)
	}
	if f := receive(t, conn); f.Type != "state" || f.State != "in_progress" {
		t.Errorf("Unexpected state frame: %+v", f)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(g.events))
	}
	if ev, ok := g.events[0].(game.TextEvent); !ok || ev.Text != "is it doge?" {
		t.Errorf("Unexpected event %#v", g.events[0])
	}
}

func TestHandler_CommandFrames(t *testing.T) {
	g := &fakeGame{}
	conn := dial(t, newChatServer(t, g, nil))

	for _, typ := range []string{"start", "hint", "rules", "stats", "surrender"} {
		send(t, conn, Frame{Type: typ})
		receive(t, conn)
		receive(t, conn)
	}
	send(t, conn, Frame{Type: "text", Text: "/hint@SphinxBot"})
	receive(t, conn)
	receive(t, conn)

	want := []game.Event{
		game.StartEvent{}, game.HintEvent{}, game.RulesEvent{}, game.StatsEvent{}, game.SurrenderEvent{}, game.HintEvent{},
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.events) != len(want) {
		t.Fatalf("Expected %d events, got %d", len(want), len(g.events))
	}
	for i := range want {
		if g.events[i] != want[i] {
			t.Errorf("event %d: expected %#v, got %#v", i, want[i], g.events[i])
		}
	}
}

func TestHandler_PhotoFrame(t *testing.T) {
	g := &fakeGame{handle: func(game.Event) (game.Reply, error) {
		return game.Reply{Messages: []messenger.Message{messenger.Photo(messenger.ImageDefeat, "*Gotcha*")}}, nil
	}}
	conn := dial(t, newChatServer(t, g, nil))

	send(t, conn, Frame{Type: "surrender"})

	f := receive(t, conn)
	if f.Type != "photo" || f.Image != "/images/SuperHappySphinx.png" || f.Text != "*Gotcha*" {
		t.Errorf("Unexpected photo frame: %+v", f)
	}
}

func TestHandler_GameErrorBecomesNotice(t *testing.T) {
	g := &fakeGame{handle: func(game.Event) (game.Reply, error) {
		return game.Reply{}, errors.New("boom")
	}}
	conn := dial(t, newChatServer(t, g, nil))

	send(t, conn, Frame{Type: "text", Text: "hello"})

	want := game.InternalErrorReply().Messages[0].Text
	if f := receive(t, conn); f.Type != "text" || f.Text != want {
		t.Errorf("Expected internal error notice, got %+v", f)
	}
}

func TestHandler_PanicIsContained(t *testing.T) {
	calls := 0
	g := &fakeGame{handle: func(game.Event) (game.Reply, error) {
		calls++
		if calls == 1 {
			panic("nil round")
		}
		return game.Reply{Messages: []messenger.Message{messenger.Text("still here", messenger.FormatPlain)}}, nil
	}}
	conn := dial(t, newChatServer(t, g, nil))

	send(t, conn, Frame{Type: "text", Text: "first"})
	want := game.InternalErrorReply().Messages[0].Text
	if f := receive(t, conn); f.Text != want {
		t.Errorf("Expected internal error notice, got %+v", f)
	}

	send(t, conn, Frame{Type: "text", Text: "second"})
	if f := receive(t, conn); f.Text != "still here" {
		t.Errorf("Expected connection to survive the panic, got %+v", f)
	}
}

func TestHandler_InvalidAndUnknownFrames(t *testing.T) {
	g := &fakeGame{}
	conn := dial(t, newChatServer(t, g, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, []byte("not json")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if f := receive(t, conn); f.Type != "error" {
		t.Errorf("Expected error frame, got %+v", f)
	}

	send(t, conn, Frame{Type: "resize"})
	if f := receive(t, conn); f.Type != "error" || !strings.Contains(f.Text, "resize") {
		t.Errorf("Expected error frame naming the type, got %+v", f)
	}

	send(t, conn, Frame{Type: "ping"})
	if f := receive(t, conn); f.Type != "pong" {
		t.Errorf("Expected pong, got %+v", f)
	}
}

func TestHandler_RateLimited(t *testing.T) {
	limiter := NewRateLimiter(1, time.Minute)
	defer limiter.Stop()
	g := &fakeGame{}
	conn := dial(t, newChatServer(t, g, limiter))

	send(t, conn, Frame{Type: "rules"})
	receive(t, conn)
	receive(t, conn)

	send(t, conn, Frame{Type: "rules"})
	if f := receive(t, conn); f.Type != "error" || f.Text != "rate limit exceeded" {
		t.Errorf("Expected rate limit error, got %+v", f)
	}
}

func TestHandler_RejectsForeignOrigin(t *testing.T) {
	srv := newChatServer(t, &fakeGame{}, nil)

	req := httptest.NewRequest(http.MethodGet, srv.URL, nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	h := NewHandler(&fakeGame{}, NewSessionManager("/images/"), nil, []string{"https://sphinx.example"}, false)
	h.ServeHTTP(rec, req.WithContext(identity.WithUserID(req.Context(), "web_test")))

	if rec.Code != http.StatusForbidden {
		t.Errorf("Expected 403, got %d", rec.Code)
	}
}

func TestHandler_RequiresIdentity(t *testing.T) {
	h := NewHandler(&fakeGame{}, NewSessionManager("/images/"), nil, nil, true)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws/play", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", rec.Code)
	}
}
