package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/voltwatch/backend/internal/api/middleware"
	"github.com/voltwatch/backend/internal/services"
	"github.com/voltwatch/backend/internal/utils"
	"go.uber.org/zap"
)

// WebSocketController upgrades authenticated requests to notification channels
type WebSocketController struct {
	notifications *services.NotificationService
	upgrader      websocket.Upgrader
	logger        *utils.Logger
}

// NewWebSocketController creates a new websocket controller
func NewWebSocketController(notifications *services.NotificationService, logger *utils.Logger) *WebSocketController {
	return &WebSocketController{
		notifications: notifications,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// CORS is handled by the router
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger.Named("websocket_controller"),
	}
}

// RegisterRoutes registers the websocket route with the router group
func (wc *WebSocketController) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/ws", wc.Connect)
}

// Connect opens a notification channel for the current user. Browsers pass
// the token as a query parameter.
// @Summary Open notification channel
// @Tags notifications
// @Security Bearer
// @Param token query string false "JWT when no Authorization header can be set"
// @Success 101
// @Router /ws [get]
func (wc *WebSocketController) Connect(c *gin.Context) {
	userID, _ := middleware.CurrentUser(c)

	conn, err := wc.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the error response
		wc.logger.Warn("Websocket upgrade failed", zap.Uint("user_id", userID), zap.Error(err))
		return
	}

	wc.notifications.RegisterClient(conn, userID)
}
