// Package webchat serves the game to browsers over WebSocket.
package webchat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/coder/websocket"

	"github.com/memecoinsphinx/sphinx/internal/messenger"
)

// ErrNotConnected is returned when a message targets a player without an
// open connection.
var ErrNotConnected = errors.New("player not connected")

// Conn is the part of *websocket.Conn the transport uses.
type Conn interface {
	Read(ctx context.Context) (websocket.MessageType, []byte, error)
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error
	Close(code websocket.StatusCode, reason string) error
}

// Frame is the JSON envelope exchanged with the browser.
type Frame struct {
	Type   string `json:"type"`
	Text   string `json:"text,omitempty"`
	Image  string `json:"image,omitempty"`
	Format string `json:"format,omitempty"`
	State  string `json:"state,omitempty"`
}

// SessionManager keeps one live connection per player. A newer connection
// from the same player replaces the older one.
type SessionManager struct {
	mu          sync.RWMutex
	active      map[string]Conn
	imagePrefix string
}

// NewSessionManager creates a session manager. Photo frames reference images
// as imagePrefix + file name.
func NewSessionManager(imagePrefix string) *SessionManager {
	return &SessionManager{
		active:      make(map[string]Conn),
		imagePrefix: imagePrefix,
	}
}

// GetActive returns the live connection of a player.
func (m *SessionManager) GetActive(userID string) Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active[userID]
}

// Register adds a connection for a player, closing any previous one.
func (m *SessionManager) Register(userID string, conn Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, exists := m.active[userID]; exists && existing != conn {
		_ = existing.Close(websocket.StatusNormalClosure, "session replaced")
	}
	m.active[userID] = conn
	slog.Info("Chat session registered", "user_id", userID)
}

// Unregister removes a player's connection if it is still the current one.
func (m *SessionManager) Unregister(userID string, conn Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current, exists := m.active[userID]; exists && current == conn {
		delete(m.active, userID)
		slog.Info("Chat session unregistered", "user_id", userID)
	}
}

// Len returns the number of connected players.
func (m *SessionManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.active)
}

// CloseAll terminates every connection, used on shutdown.
func (m *SessionManager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for userID, conn := range m.active {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		delete(m.active, userID)
	}
}

// Send writes one frame to a player.
func (m *SessionManager) Send(ctx context.Context, userID string, f Frame) error {
	conn := m.GetActive(userID)
	if conn == nil {
		return fmt.Errorf("%w: %s", ErrNotConnected, userID)
	}
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

// SendText implements messenger.Messenger.
func (m *SessionManager) SendText(ctx context.Context, userID, text string, format messenger.Format) error {
	return m.Send(ctx, userID, Frame{Type: string(messenger.KindText), Text: text, Format: string(format)})
}

// SendPhoto implements messenger.Messenger.
func (m *SessionManager) SendPhoto(ctx context.Context, userID string, image messenger.Image, caption string) error {
	name, ok := messenger.FileName(image)
	if !ok {
		return fmt.Errorf("unknown image %q", image)
	}
	return m.Send(ctx, userID, Frame{
		Type:   string(messenger.KindPhoto),
		Text:   caption,
		Image:  m.imagePrefix + name,
		Format: string(messenger.FormatMarkdown),
	})
}

var _ messenger.Messenger = (*SessionManager)(nil)
