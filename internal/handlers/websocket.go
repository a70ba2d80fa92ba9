package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"safetrack-backend/internal/middleware"
	"safetrack-backend/internal/services"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Mobile clients connect from app schemes, not browsers
	},
}

// WebSocketHandler handles live session subscriptions
type WebSocketHandler struct {
	hub            *services.Hub
	authService    *services.AuthService
	sessionService *services.SessionService
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(hub *services.Hub, authService *services.AuthService, sessionService *services.SessionService) *WebSocketHandler {
	return &WebSocketHandler{
		hub:            hub,
		authService:    authService,
		sessionService: sessionService,
	}
}

// HandleWebSocket handles WebSocket connections
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.ValidateWebSocketToken(r.URL.Query().Get("token"), h.authService)
	if err != nil {
		respondError(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}
	defer conn.Close()

	h.hub.Register(userID, conn)
	defer h.hub.Unregister(userID)

	ctx := r.Context()
	h.sendInitialSnapshots(ctx, userID)

	log.Info().Str("user_id", userID).Msg("WebSocket connection established")

	for {
		_, messageBytes, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("user_id", userID).Msg("WebSocket error")
			}
			break
		}

		var msg services.WSMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			log.Error().Err(err).Str("user_id", userID).Msg("Failed to parse WebSocket message")
			h.sendError(conn, "Invalid message format")
			continue
		}

		if err := h.handleMessage(ctx, userID, msg); err != nil {
			log.Error().Err(err).Str("user_id", userID).Str("type", msg.Type).Msg("Failed to handle message")
			h.sendError(conn, err.Error())
		}
	}
}

// sendInitialSnapshots pushes the current state of every session the user
// can see, so a reconnecting client does not wait for the next change.
func (h *WebSocketHandler) sendInitialSnapshots(ctx context.Context, userID string) {
	sessions, err := h.sessionService.ListMine(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to load sessions for initial snapshot")
		return
	}
	for _, sess := range sessions {
		msg := services.SnapshotFor(sess, userID)
		if msg == nil {
			continue
		}
		if err := h.hub.SendToUser(userID, *msg); err != nil {
			log.Error().Err(err).Str("user_id", userID).Str("code", sess.Code).Msg("Failed to send initial snapshot")
			return
		}
	}
}

// handleMessage processes incoming WebSocket messages
func (h *WebSocketHandler) handleMessage(ctx context.Context, userID string, msg services.WSMessage) error {
	switch msg.Type {
	case services.MsgLocationUpdate:
		return h.handleLocationUpdate(ctx, userID, msg)
	default:
		return h.sendErrorToUser(userID, "Unknown message type")
	}
}

// handleLocationUpdate routes a position fix into the session document
func (h *WebSocketHandler) handleLocationUpdate(ctx context.Context, userID string, msg services.WSMessage) error {
	if msg.SessionCode == "" || msg.Fix == nil {
		return h.sendErrorToUser(userID, "session_code and fix are required")
	}

	sess, err := h.sessionService.Get(ctx, userID, msg.SessionCode)
	if err != nil {
		return err
	}
	if sess.IsAdmin(userID) {
		return h.sessionService.UpdateAdminLocation(ctx, userID, msg.SessionCode, *msg.Fix)
	}
	return h.sessionService.UpdateParticipantLocation(ctx, userID, msg.SessionCode, *msg.Fix)
}

// sendError sends an error message to the WebSocket connection
func (h *WebSocketHandler) sendError(conn *websocket.Conn, message string) {
	msg := services.WSMessage{Type: services.MsgError, Message: message}
	data, _ := json.Marshal(msg)
	conn.WriteMessage(websocket.TextMessage, data)
}

// sendErrorToUser sends an error message to a user
func (h *WebSocketHandler) sendErrorToUser(userID, message string) error {
	return h.hub.SendToUser(userID, services.WSMessage{Type: services.MsgError, Message: message})
}
