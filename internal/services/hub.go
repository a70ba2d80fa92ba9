package services

import (
	"encoding/json"
	"fmt"
	"sync"

	"safetrack-backend/internal/geo"
	"safetrack-backend/internal/models"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WSMessage is the envelope for every WebSocket frame, in both directions.
type WSMessage struct {
	Type        string               `json:"type"`
	SessionCode string               `json:"session_code,omitempty"`
	Session     *models.Session      `json:"session,omitempty"`
	Alerts      []models.RadiusAlert `json:"alerts,omitempty"`
	Fix         *models.Fix          `json:"fix,omitempty"`
	Message     string               `json:"message,omitempty"`
}

// Message types pushed to clients.
const (
	MsgSessionSnapshot = "session_snapshot"
	MsgSessionEnded    = "session_ended"
	MsgSessionDeleted  = "session_deleted"
	MsgRemoved         = "removed"
	MsgRadiusAlert     = "radius_alert"
	MsgError           = "error"
)

// Message types accepted from clients.
const (
	MsgLocationUpdate = "location_update"
)

// wsConn serializes writes to one websocket connection. gorilla/websocket
// permits at most one concurrent writer, and a single member can be the
// fan-out target of several sessions changed at once.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub manages WebSocket connections and pushes session snapshots to members
// as the underlying documents change.
type Hub struct {
	mu          sync.RWMutex
	connections map[string]*wsConn
}

// NewHub creates a new hub
func NewHub() *Hub {
	return &Hub{connections: make(map[string]*wsConn)}
}

// Register registers a connection for a user, replacing any previous one
func (h *Hub) Register(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.connections[userID]; ok {
		existing.conn.Close()
	}
	h.connections[userID] = &wsConn{conn: conn}

	log.Info().Str("user_id", userID).Msg("WebSocket connection registered")
}

// Unregister removes a user's connection
func (h *Hub) Unregister(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c, ok := h.connections[userID]; ok {
		c.conn.Close()
		delete(h.connections, userID)
		log.Info().Str("user_id", userID).Msg("WebSocket connection unregistered")
	}
}

// IsOnline checks if a user has a live connection
func (h *Hub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.connections[userID]
	return ok
}

// SendToUser sends a message to a specific user
func (h *Hub) SendToUser(userID string, message WSMessage) error {
	h.mu.RLock()
	c, ok := h.connections[userID]
	h.mu.RUnlock()

	if !ok {
		return fmt.Errorf("user %s is not connected", userID)
	}

	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := c.write(data); err != nil {
		h.Unregister(userID)
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// memberIDs collects everyone attached to the session, the admin included.
func memberIDs(s *models.Session) []string {
	ids := make([]string, 0, len(s.Participants)+1)
	ids = append(ids, s.AdminID)
	for _, p := range s.Participants {
		if p.ID != s.AdminID {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

// SnapshotFor renders the session as seen by one viewer, or nil when the
// viewer may no longer see it: the session ended, or the viewer is neither
// admin nor an ACTIVE participant. A nil snapshot means the client must fall
// back to its no-session view.
func SnapshotFor(s *models.Session, viewerID string) *WSMessage {
	if !s.IsActive || !(s.IsAdmin(viewerID) || s.IsActiveParticipant(viewerID)) {
		return nil
	}
	view := *s
	if !s.Settings.ShowParticipantLocations && !s.IsAdmin(viewerID) {
		// Members only see positions when the session allows it.
		ps := make([]models.Participant, len(s.Participants))
		copy(ps, s.Participants)
		for i := range ps {
			if ps[i].ID != viewerID {
				ps[i].Location = nil
			}
		}
		view.Participants = ps
	}
	return &WSMessage{
		Type:        MsgSessionSnapshot,
		SessionCode: s.Code,
		Session:     &view,
		Alerts:      geo.SessionAlerts(s),
	}
}

// PublishSession fans a changed session out to every connected member.
// Members who lost visibility get a terminal message instead of a snapshot.
func (h *Hub) PublishSession(s *models.Session) {
	for _, id := range memberIDs(s) {
		if !h.IsOnline(id) {
			continue
		}
		msg := SnapshotFor(s, id)
		if msg == nil {
			kind := MsgRemoved
			if !s.IsActive {
				kind = MsgSessionEnded
			}
			msg = &WSMessage{Type: kind, SessionCode: s.Code}
		}
		if err := h.SendToUser(id, *msg); err != nil {
			log.Error().Err(err).Str("user_id", id).Str("code", s.Code).Msg("Failed to push session snapshot")
		}
	}
}

// PublishSessionDeleted tells every member the session is gone
func (h *Hub) PublishSessionDeleted(s *models.Session) {
	msg := WSMessage{Type: MsgSessionDeleted, SessionCode: s.Code}
	for _, id := range memberIDs(s) {
		if !h.IsOnline(id) {
			continue
		}
		if err := h.SendToUser(id, msg); err != nil {
			log.Error().Err(err).Str("user_id", id).Str("code", s.Code).Msg("Failed to push session deletion")
		}
	}
}

// PublishRadiusAlerts pushes the current breach list to the session admin
func (h *Hub) PublishRadiusAlerts(s *models.Session, alerts []models.RadiusAlert) {
	if !h.IsOnline(s.AdminID) {
		return
	}
	msg := WSMessage{Type: MsgRadiusAlert, SessionCode: s.Code, Alerts: alerts}
	if err := h.SendToUser(s.AdminID, msg); err != nil {
		log.Error().Err(err).Str("user_id", s.AdminID).Str("code", s.Code).Msg("Failed to push radius alert")
	}
}
