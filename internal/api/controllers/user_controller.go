package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/voltwatch/backend/internal/api/middleware"
	"github.com/voltwatch/backend/internal/services"
	"github.com/voltwatch/backend/internal/utils"
)

// UserResponse represents a user in responses
type UserResponse struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// UserController serves the current user's profile and alarm list
type UserController struct {
	userService *services.UserService
	logger      *utils.Logger
}

// NewUserController creates a new user controller
func NewUserController(userService *services.UserService, logger *utils.Logger) *UserController {
	return &UserController{
		userService: userService,
		logger:      logger.Named("user_controller"),
	}
}

// RegisterRoutes registers the controller's routes with the router group
func (uc *UserController) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/users/me", uc.GetCurrentUser)

	alarms := router.Group("/alarms")
	{
		alarms.GET("", uc.ListAlarms)
		alarms.POST("/read", uc.MarkAlarmsRead)
	}
}

// GetCurrentUser returns the authenticated user
// @Summary Get current user
// @Tags users
// @Produce json
// @Security Bearer
// @Success 200 {object} UserResponse
// @Failure 401 {object} utils.ErrorResponse
// @Router /users/me [get]
func (uc *UserController) GetCurrentUser(c *gin.Context) {
	userID, _ := middleware.CurrentUser(c)

	user, err := uc.userService.GetByID(c.Request.Context(), userID)
	if err != nil {
		utils.HandleError(c, err, uc.logger)
		return
	}

	c.JSON(http.StatusOK, UserResponse{
		ID:       user.ID,
		Username: user.Username,
		Role:     string(user.Role),
	})
}

// ListAlarms returns the user's alarms, newest first
// @Summary List alarms
// @Tags alarms
// @Produce json
// @Security Bearer
// @Param page query int false "Page" default(1)
// @Param limit query int false "Page size" default(50)
// @Success 200 {object} utils.PaginatedResponse
// @Router /alarms [get]
func (uc *UserController) ListAlarms(c *gin.Context) {
	userID, _ := middleware.CurrentUser(c)
	page := utils.GetPaginationFromContext(c)

	alarms, total, err := uc.userService.AlarmPage(c.Request.Context(), userID, page)
	if err != nil {
		utils.HandleError(c, err, uc.logger)
		return
	}

	c.JSON(http.StatusOK, utils.NewPaginatedResponse(alarms, page, total))
}

// MarkAlarmsRead flags every alarm of the user as read
// @Summary Mark alarms read
// @Tags alarms
// @Produce json
// @Security Bearer
// @Success 200 {object} map[string]int64
// @Router /alarms/read [post]
func (uc *UserController) MarkAlarmsRead(c *gin.Context) {
	userID, _ := middleware.CurrentUser(c)

	updated, err := uc.userService.MarkAlarmsRead(c.Request.Context(), userID)
	if err != nil {
		utils.HandleError(c, err, uc.logger)
		return
	}

	c.JSON(http.StatusOK, gin.H{"updated": updated})
}
