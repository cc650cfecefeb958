package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/voltwatch/backend/internal/api/middleware"
	"github.com/voltwatch/backend/internal/db/models"
	"github.com/voltwatch/backend/internal/services"
	"github.com/voltwatch/backend/internal/utils"
	"go.uber.org/zap"
)

// DeviceKeyHeader carries a device's ingestion key
const DeviceKeyHeader = "X-Device-Key"

// CreateDeviceResponse returns the new device together with its plain key
type CreateDeviceResponse struct {
	Device *models.Device `json:"device"`
	Key    string         `json:"key"`
}

// SetStateRequest switches a device on or off
type SetStateRequest struct {
	Running *bool `json:"running" binding:"required"`
}

// DeviceController handles device management endpoints
type DeviceController struct {
	deviceService *services.DeviceService
	logger        *utils.Logger
}

// NewDeviceController creates a new device controller
func NewDeviceController(deviceService *services.DeviceService, logger *utils.Logger) *DeviceController {
	return &DeviceController{
		deviceService: deviceService,
		logger:        logger.Named("device_controller"),
	}
}

// RegisterRoutes registers the operator routes with the router group
func (dc *DeviceController) RegisterRoutes(router *gin.RouterGroup) {
	devices := router.Group("/devices")
	{
		devices.GET("", dc.ListDevices)
		devices.POST("", dc.CreateDevice)
		devices.GET("/:id", dc.GetDevice)
		devices.PUT("/:id", dc.UpdateDevice)
		devices.DELETE("/:id", dc.DeleteDevice)
		devices.PUT("/:id/state", dc.SetState)
	}
}

// RegisterDeviceRoutes registers the routes devices call with their own key
func (dc *DeviceController) RegisterDeviceRoutes(router *gin.RouterGroup) {
	router.GET("/devices/:id/state", dc.GetState)
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse{Error: "validation_error", Message: "Invalid device ID"})
		return 0, false
	}
	return uint(id), true
}

// ListDevices returns the caller's devices, or every device for admins
// @Summary List devices
// @Tags devices
// @Produce json
// @Security Bearer
// @Success 200 {array} models.Device
// @Router /devices [get]
func (dc *DeviceController) ListDevices(c *gin.Context) {
	devices, err := dc.deviceService.List(c.Request.Context(), middleware.OwnerScope(c))
	if err != nil {
		utils.HandleError(c, err, dc.logger)
		return
	}
	c.JSON(http.StatusOK, devices)
}

// CreateDevice registers a new device
// @Summary Create device
// @Description Creates a device and returns its ingestion key once
// @Tags devices
// @Accept json
// @Produce json
// @Security Bearer
// @Param device body services.DeviceInput true "Device"
// @Success 201 {object} CreateDeviceResponse
// @Failure 400 {object} utils.ValidationErrorResponse
// @Failure 409 {object} utils.ErrorResponse "Name already taken"
// @Router /devices [post]
func (dc *DeviceController) CreateDevice(c *gin.Context) {
	var req services.DeviceInput
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.HandleValidationErrors(c, err)
		return
	}

	userID, _ := middleware.CurrentUser(c)
	device, key, err := dc.deviceService.Create(c.Request.Context(), userID, req)
	if err != nil {
		utils.HandleError(c, err, dc.logger)
		return
	}

	c.JSON(http.StatusCreated, CreateDeviceResponse{Device: device, Key: key})
}

// GetDevice returns one device
// @Summary Get device
// @Tags devices
// @Produce json
// @Security Bearer
// @Param id path int true "Device ID"
// @Success 200 {object} models.Device
// @Failure 404 {object} utils.ErrorResponse
// @Router /devices/{id} [get]
func (dc *DeviceController) GetDevice(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	device, err := dc.deviceService.Get(c.Request.Context(), middleware.OwnerScope(c), id)
	if err != nil {
		utils.HandleError(c, err, dc.logger)
		return
	}
	c.JSON(http.StatusOK, device)
}

// UpdateDevice replaces a device's settings and schedule
// @Summary Update device
// @Tags devices
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "Device ID"
// @Param device body services.DeviceInput true "Device"
// @Success 200 {object} models.Device
// @Failure 400 {object} utils.ValidationErrorResponse
// @Failure 404 {object} utils.ErrorResponse
// @Router /devices/{id} [put]
func (dc *DeviceController) UpdateDevice(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req services.DeviceInput
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.HandleValidationErrors(c, err)
		return
	}

	device, err := dc.deviceService.Update(c.Request.Context(), middleware.OwnerScope(c), id, req)
	if err != nil {
		utils.HandleError(c, err, dc.logger)
		return
	}
	c.JSON(http.StatusOK, device)
}

// DeleteDevice removes a device and its schedule
// @Summary Delete device
// @Tags devices
// @Security Bearer
// @Param id path int true "Device ID"
// @Success 204
// @Failure 404 {object} utils.ErrorResponse
// @Router /devices/{id} [delete]
func (dc *DeviceController) DeleteDevice(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := dc.deviceService.Delete(c.Request.Context(), middleware.OwnerScope(c), id); err != nil {
		utils.HandleError(c, err, dc.logger)
		return
	}
	c.Status(http.StatusNoContent)
}

// SetState switches a device on or off
// @Summary Set device state
// @Description Sends the state command and records it once the device accepted it
// @Tags devices
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "Device ID"
// @Param state body SetStateRequest true "State"
// @Success 200 {object} models.Device
// @Failure 502 {object} utils.ErrorResponse "Device unreachable"
// @Router /devices/{id}/state [put]
func (dc *DeviceController) SetState(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req SetStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.HandleValidationErrors(c, err)
		return
	}

	device, err := dc.deviceService.SetState(c.Request.Context(), middleware.OwnerScope(c), id, *req.Running)
	if err != nil {
		dc.logger.Warn("State change failed", zap.Uint("device_id", id), zap.Error(err))
		utils.HandleError(c, err, dc.logger)
		return
	}
	c.JSON(http.StatusOK, device)
}

// GetState lets a device poll its last confirmed running state
// @Summary Get device state
// @Tags devices
// @Produce json
// @Param id path int true "Device ID"
// @Param X-Device-Key header string true "Device key"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} utils.ErrorResponse
// @Router /devices/{id}/state [get]
func (dc *DeviceController) GetState(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	device, err := dc.deviceService.Authenticate(c.Request.Context(), id, c.GetHeader(DeviceKeyHeader))
	if err != nil {
		utils.HandleError(c, err, dc.logger)
		return
	}

	status := 0
	if device.IsRunning {
		status = 1
	}
	c.JSON(http.StatusOK, gin.H{"id": device.ID, "status": status, "isRunning": device.IsRunning})
}
