package server

import (
	"log/slog"

	"dreambook/internal/middleware"
	"dreambook/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

const localFeedSubject = "feedSubject"

// FeedUpgrade rejects plain HTTP requests to the feed endpoint and records who
// is connecting before the upgrade.
func (s *Server) FeedUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return models.RespondWithError(c, fiber.StatusUpgradeRequired,
			models.NewValidationError("WebSocket upgrade required"))
	}
	subject := "ip:" + middleware.ClientIP(c)
	if actor, ok := c.Locals(localActor).(models.Actor); ok {
		subject = actor.Key()
	}
	c.Locals(localFeedSubject, subject)
	return c.Next()
}

// FeedWebsocketHandler streams public dream and vote events to the connection.
func (s *Server) FeedWebsocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		subject, _ := conn.Locals(localFeedSubject).(string)

		client, err := s.hub.Register(conn, subject)
		if err != nil {
			middleware.Logger.Warn("feed connection rejected",
				slog.String("subject", subject), slog.String("error", err.Error()))
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}

		middleware.Logger.Debug("feed client connected", slog.String("subject", subject))
		go client.WritePump()
		client.ReadPump()
	})
}
