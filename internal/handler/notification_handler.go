package handler

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/autoeval/autoeval-go-api/internal/dto"
	"github.com/autoeval/autoeval-go-api/internal/notify"
)

// NotificationHandler streams a teacher's pipeline events over a websocket.
// Each connection watches the caller's three channels: evaluation results,
// upload results and bulk progress.
type NotificationHandler struct {
	publisher notify.Publisher
	logger    zerolog.Logger
}

// NewNotificationHandler constructs the handler.
func NewNotificationHandler(publisher notify.Publisher, logger zerolog.Logger) *NotificationHandler {
	return &NotificationHandler{
		publisher: publisher,
		logger:    logger.With().Str("component", "notification_handler").Logger(),
	}
}

// Register attaches the websocket endpoint to the router group.
func (h *NotificationHandler) Register(router fiber.Router) {
	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	router.Get("/ws", websocket.New(h.handleConnection))
}

func (h *NotificationHandler) handleConnection(conn *websocket.Conn) {
	teacher := websocketUsername(conn)
	if teacher == "" {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(fiber.StatusUnauthorized, "username missing"))
		_ = conn.Close()
		return
	}

	events := make(chan dto.Event, 16)
	done := make(chan struct{})

	var cleanups []func()
	for _, channel := range []string{
		notify.EvaluationChannel(teacher),
		notify.UploadChannel(teacher),
		notify.TeacherChannel(teacher),
	} {
		sub, cleanup := h.publisher.Subscribe(channel)
		cleanups = append(cleanups, cleanup)
		go func(sub <-chan dto.Event) {
			for event := range sub {
				select {
				case events <- event:
				case <-done:
					return
				}
			}
		}(sub)
	}
	defer func() {
		close(done)
		for _, cleanup := range cleanups {
			cleanup()
		}
	}()

	h.logger.Info().Str("teacher", teacher).Msg("notification stream connected")
	defer h.logger.Info().Str("teacher", teacher).Msg("notification stream disconnected")

	// Reads only detect disconnects; the stream is one-way.
	disconnected := make(chan struct{})
	go func() {
		defer close(disconnected)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case event := <-events:
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-disconnected:
			return
		}
	}
}

func websocketUsername(conn *websocket.Conn) string {
	if value := conn.Locals("username"); value != nil {
		if username, ok := value.(string); ok {
			return strings.TrimSpace(username)
		}
		return strings.TrimSpace(fmt.Sprint(value))
	}
	return ""
}
