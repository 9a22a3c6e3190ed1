package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/examroom/examroom-backend/internal/middleware"
	"github.com/examroom/examroom-backend/internal/service"
	ws "github.com/examroom/examroom-backend/internal/websocket"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams a session over WebSocket: autosave, submit and clock
// resync without HTTP round trips.
type WSHandler struct {
	sessionService *service.SessionService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessionService *service.SessionService, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/sessions/:session_id/stream
// Upgrades to WebSocket for real-time autosave and submit.
func (h *WSHandler) SessionStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	sessID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session ID"})
		return
	}

	// Ownership is checked before the upgrade so a foreign session never
	// gets a socket at all.
	if _, err := h.sessionService.GetSessionState(c.Request.Context(), claims.UserID, sessID); err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			status = http.StatusNotFound
		case errors.Is(err, service.ErrNotSessionOwner):
			status = http.StatusForbidden
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	userID := claims.UserID
	wsLog := h.log.With().
		Str("user_id", userID.String()).
		Str("session_id", sessID.String()).
		Logger()

	wsLog.Info().Msg("taker connected")

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("unexpected close")
			} else {
				wsLog.Debug().Msg("connection closed")
			}
			break
		}

		var envelope ws.RequestEnvelope
		if err := decode(raw, &envelope); err != nil {
			ws.WriteError(conn, "malformed message")
			continue
		}

		switch envelope.Action {
		case ws.ActionAutosave:
			h.handleAutosave(conn, wsLog, userID, sessID, raw)
		case ws.ActionSubmit:
			h.handleSubmit(conn, wsLog, userID, sessID, raw)
		case ws.ActionPing:
			h.handlePing(conn, userID, sessID)
		default:
			wsLog.Warn().Str("action", string(envelope.Action)).Msg("unknown action")
			ws.WriteError(conn, "unknown action: "+string(envelope.Action))
		}
	}
}

func (h *WSHandler) handleAutosave(conn *websocket.Conn, wsLog zerolog.Logger, userID, sessID uuid.UUID, raw []byte) {
	var req ws.AutosaveRequest
	if err := decode(raw, &req); err != nil {
		ws.WriteError(conn, "malformed autosave payload")
		return
	}
	if req.Answers == nil {
		ws.WriteError(conn, "answers are required")
		return
	}

	if err := h.sessionService.AutoSaveAnswers(context.Background(), userID, sessID, req.Answers); err != nil {
		wsLog.Debug().Err(err).Msg("autosave rejected")
		ws.WriteError(conn, err.Error())
		return
	}

	ws.WriteTyped(conn, ws.SavedResponse{Event: ws.EventSaved})
}

func (h *WSHandler) handleSubmit(conn *websocket.Conn, wsLog zerolog.Logger, userID, sessID uuid.UUID, raw []byte) {
	var req ws.SubmitRequest
	if err := decode(raw, &req); err != nil {
		ws.WriteError(conn, "malformed submit payload")
		return
	}

	result, err := h.sessionService.Submit(context.Background(), userID, sessID, req.Answers)
	if err != nil {
		wsLog.Debug().Err(err).Msg("submit rejected")
		ws.WriteError(conn, err.Error())
		return
	}

	wsLog.Info().
		Float64("score", result.Score).
		Bool("expired", result.IsExpired).
		Msg("session submitted over websocket")

	ws.WriteTyped(conn, ws.GradedResponse{Event: ws.EventGraded, Result: result})
}

func decode(raw []byte, v interface{}) error {
	return json.Unmarshal(raw, v)
}

func (h *WSHandler) handlePing(conn *websocket.Conn, userID, sessID uuid.UUID) {
	hb, err := h.sessionService.Heartbeat(context.Background(), userID, sessID)
	if err != nil {
		ws.WriteError(conn, err.Error())
		return
	}
	ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong, Heartbeat: hb})
}
