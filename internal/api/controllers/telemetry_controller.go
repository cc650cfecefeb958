package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/voltwatch/backend/internal/aggregate"
	"github.com/voltwatch/backend/internal/api/middleware"
	"github.com/voltwatch/backend/internal/services"
	"github.com/voltwatch/backend/internal/timeframe"
	"github.com/voltwatch/backend/internal/utils"
	"go.uber.org/zap"
)

// IngestRequest is a reading posted by a device
type IngestRequest struct {
	DeviceID    uint     `json:"deviceId" binding:"required"`
	Current     *float64 `json:"current" binding:"required"`
	Voltage     *float64 `json:"voltage" binding:"required"`
	Power       *float64 `json:"power"`
	PowerFactor *float64 `json:"powerFactor"`
	CreatedAt   *int64   `json:"createdAt"`
}

// FrameQuery selects a time frame. Dates are RFC3339.
type FrameQuery struct {
	Frame     string     `form:"frame"`
	StartDate *time.Time `form:"startDate" time_format:"2006-01-02T15:04:05Z07:00"`
	EndDate   *time.Time `form:"endDate" time_format:"2006-01-02T15:04:05Z07:00"`
	WholeDay  *bool      `form:"wholeDay"`
}

func (q FrameQuery) request() timeframe.Request {
	return timeframe.Request{
		Frame:     timeframe.Frame(q.Frame),
		StartDate: q.StartDate,
		EndDate:   q.EndDate,
		WholeDay:  q.WholeDay,
	}
}

// SeriesQuery selects the data of an aggregated series
type SeriesQuery struct {
	FrameQuery
	DeviceID *uint `form:"deviceId"`
}

// SeriesResponse is an aggregated series over a resolved window
type SeriesResponse struct {
	Frame         timeframe.Frame    `json:"frame"`
	Window        timeframe.Window   `json:"window"`
	BucketWidthMs int64              `json:"bucketWidthMs"`
	Buckets       []aggregate.Bucket `json:"buckets"`
}

// SetFramesRequest replaces the recognised time frame names
type SetFramesRequest struct {
	Frames []string `json:"frames" binding:"required,min=1"`
}

// TelemetryController serves sample ingestion and aggregated series
type TelemetryController struct {
	telemetryService *services.TelemetryService
	timeFrameService *services.TimeFrameService
	deviceService    *services.DeviceService
	logger           *utils.Logger
}

// NewTelemetryController creates a new telemetry controller
func NewTelemetryController(
	telemetryService *services.TelemetryService,
	timeFrameService *services.TimeFrameService,
	deviceService *services.DeviceService,
	logger *utils.Logger,
) *TelemetryController {
	return &TelemetryController{
		telemetryService: telemetryService,
		timeFrameService: timeFrameService,
		deviceService:    deviceService,
		logger:           logger.Named("telemetry_controller"),
	}
}

// RegisterRoutes registers the operator routes with the router group
func (tc *TelemetryController) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/timeframes", tc.ResolveTimeFrames)
	router.GET("/series", tc.GetSeries)
}

// RegisterAdminRoutes registers the settings routes with the admin group
func (tc *TelemetryController) RegisterAdminRoutes(router *gin.RouterGroup) {
	router.GET("/timeframes", tc.GetFrames)
	router.PUT("/timeframes", tc.SetFrames)
}

// RegisterDeviceRoutes registers the routes devices call with their own key
func (tc *TelemetryController) RegisterDeviceRoutes(router *gin.RouterGroup) {
	router.POST("/samples", tc.IngestSample)
}

// IngestSample stores a reading posted by a device
// @Summary Ingest sample
// @Description Stores one reading. Power is derived from current and voltage when omitted.
// @Tags telemetry
// @Accept json
// @Produce json
// @Param X-Device-Key header string true "Device key"
// @Param sample body IngestRequest true "Reading"
// @Success 201 {object} models.Sample
// @Failure 400 {object} utils.ValidationErrorResponse
// @Failure 401 {object} utils.ErrorResponse
// @Router /samples [post]
func (tc *TelemetryController) IngestSample(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.HandleValidationErrors(c, err)
		return
	}

	ctx := c.Request.Context()
	if _, err := tc.deviceService.Authenticate(ctx, req.DeviceID, c.GetHeader(DeviceKeyHeader)); err != nil {
		tc.logger.Warn("Rejected sample", zap.Uint("device_id", req.DeviceID), zap.Error(err))
		utils.HandleError(c, err, tc.logger)
		return
	}

	sample, err := tc.telemetryService.Ingest(ctx, req.DeviceID, services.Reading{
		Current:     *req.Current,
		Voltage:     *req.Voltage,
		Power:       req.Power,
		PowerFactor: req.PowerFactor,
		CreatedAt:   req.CreatedAt,
	})
	if err != nil {
		utils.HandleError(c, err, tc.logger)
		return
	}

	c.JSON(http.StatusCreated, sample)
}

// ResolveTimeFrames returns the window of every recognised frame
// @Summary Resolve time frames
// @Tags telemetry
// @Produce json
// @Security Bearer
// @Param frame query string false "Frame that must be recognised"
// @Param startDate query string false "Start (RFC3339)"
// @Param endDate query string false "End (RFC3339)"
// @Param wholeDay query bool false "Snap custom bounds to whole days" default(true)
// @Success 200 {object} map[string]timeframe.Window
// @Failure 400 {object} utils.ErrorResponse
// @Router /timeframes [get]
func (tc *TelemetryController) ResolveTimeFrames(c *gin.Context) {
	var query FrameQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		utils.HandleValidationErrors(c, err)
		return
	}

	windows, err := tc.timeFrameService.Resolve(c.Request.Context(), query.request())
	if err != nil {
		utils.HandleError(c, err, tc.logger)
		return
	}
	c.JSON(http.StatusOK, windows)
}

// GetSeries returns the aggregated series of a frame
// @Summary Aggregated series
// @Description Minute buckets for live and partial frames, ten minute buckets for a whole day, daily buckets otherwise
// @Tags telemetry
// @Produce json
// @Security Bearer
// @Param frame query string true "Frame"
// @Param deviceId query int false "Device ID, required for non admin users"
// @Param startDate query string false "Start (RFC3339)"
// @Param endDate query string false "End (RFC3339)"
// @Param wholeDay query bool false "Snap custom bounds to whole days" default(true)
// @Success 200 {object} SeriesResponse
// @Failure 400 {object} utils.ErrorResponse
// @Failure 404 {object} utils.ErrorResponse
// @Router /series [get]
func (tc *TelemetryController) GetSeries(c *gin.Context) {
	var query SeriesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		utils.HandleValidationErrors(c, err)
		return
	}

	ctx := c.Request.Context()
	scope := middleware.OwnerScope(c)

	if query.DeviceID == nil {
		if scope != 0 {
			c.JSON(http.StatusBadRequest, utils.ErrorResponse{Error: "validation_error", Message: "deviceId is required"})
			return
		}
	} else if _, err := tc.deviceService.Get(ctx, scope, *query.DeviceID); err != nil {
		utils.HandleError(c, err, tc.logger)
		return
	}

	req := query.request()
	window, err := tc.timeFrameService.Window(ctx, req)
	if err != nil {
		utils.HandleError(c, err, tc.logger)
		return
	}

	buckets, err := tc.telemetryService.GetAggregatedSeries(ctx, query.DeviceID, window, req.Frame)
	if err != nil {
		utils.HandleError(c, err, tc.logger)
		return
	}

	c.JSON(http.StatusOK, SeriesResponse{
		Frame:         req.Frame,
		Window:        window,
		BucketWidthMs: aggregate.SelectBucketWidth(req.Frame, window).Milliseconds(),
		Buckets:       buckets,
	})
}

// GetFrames returns the recognised frame names
// @Summary List recognised frames
// @Tags settings
// @Produce json
// @Security Bearer
// @Success 200 {object} SetFramesRequest
// @Router /admin/timeframes [get]
func (tc *TelemetryController) GetFrames(c *gin.Context) {
	frames, err := tc.timeFrameService.Frames(c.Request.Context())
	if err != nil {
		utils.HandleError(c, err, tc.logger)
		return
	}
	c.JSON(http.StatusOK, SetFramesRequest{Frames: frames})
}

// SetFrames replaces the recognised frame names
// @Summary Replace recognised frames
// @Tags settings
// @Accept json
// @Produce json
// @Security Bearer
// @Param frames body SetFramesRequest true "Frames"
// @Success 200 {object} SetFramesRequest
// @Failure 400 {object} utils.ErrorResponse
// @Router /admin/timeframes [put]
func (tc *TelemetryController) SetFrames(c *gin.Context) {
	var req SetFramesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.HandleValidationErrors(c, err)
		return
	}

	if err := tc.timeFrameService.SetFrames(c.Request.Context(), req.Frames); err != nil {
		utils.HandleError(c, err, tc.logger)
		return
	}
	c.JSON(http.StatusOK, req)
}
