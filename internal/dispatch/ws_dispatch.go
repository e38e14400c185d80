package dispatch

import (
	"sync"

	"github.com/gorilla/websocket"

	"github.com/Mrigank923/Voy/internal/models"
)

// WSSession represents a connected driver app session.
type WSSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *WSSession) send(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

// WSRegistry holds live driver sessions keyed by driver ID.
type WSRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*WSSession
}

func NewWSRegistry() *WSRegistry { return &WSRegistry{sessions: make(map[string]*WSSession)} }

// Add registers a fresh session for the driver, displacing any previous one.
// The returned session must be handed back to Remove, so the reader of a
// dead connection cannot tear down its replacement after a reconnect.
func (r *WSRegistry) Add(driverID string, conn *websocket.Conn) *WSSession {
	s := &WSSession{conn: conn}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[driverID] = s
	return s
}

// Remove drops the driver's session only if sess is still the registered
// one. A stale reader racing a reconnect is a no-op.
func (r *WSRegistry) Remove(driverID string, sess *WSSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[driverID] == sess {
		delete(r.sessions, driverID)
	}
}

func (r *WSRegistry) NotifyDriver(driverID string, offer models.Offer) error {
	r.mu.RLock()
	s, ok := r.sessions[driverID]
	r.mu.RUnlock()
	if !ok {
		return ErrNoSession
	}
	return s.send(map[string]any{"type": "offer", "offer": offer})
}

var ErrNoSession = &NoSessionError{}

type NoSessionError struct{}

func (n *NoSessionError) Error() string { return "no ws session" }
