package handler

import (
	"net/http"
	"time"

	"nfaportal/internal/service"
	"nfaportal/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type StatisticsHandler struct {
	statisticsService service.StatisticsService
	auth              gin.HandlerFunc
	log               zerolog.Logger
	now               func() time.Time
}

func NewStatisticsHandler(statisticsService service.StatisticsService, auth gin.HandlerFunc, log zerolog.Logger) *StatisticsHandler {
	return &StatisticsHandler{statisticsService: statisticsService, auth: auth, log: log, now: time.Now}
}

func (h *StatisticsHandler) RegisterRoutes(router *gin.RouterGroup) {
	statsGroup := router.Group("/api/statistics")
	statsGroup.Use(h.auth)
	{
		statsGroup.GET("", h.GetStatistics)
	}
}

// @Summary      Get Dashboard Statistics
// @Description  Counts of the caller's own requests by status, priority and project inside a time bracket, the number of requests awaiting the caller and the most recent ones
// @Tags         statistics
// @Produce      json
// @Param        start_date query string false "Start Date (RFC3339), defaults to the first of the month"
// @Param        end_date   query string false "End Date (RFC3339), defaults to now"
// @Success      200 {object} response.Response{data=service.StatisticsResponse}
// @Failure      400 {object} response.Response "Invalid date format"
// @Failure      401 {object} response.Response "Unauthorized"
// @Failure      502 {object} response.Response "Backend unavailable"
// @Security     BearerAuth
// @Router       /api/statistics [get]
func (h *StatisticsHandler) GetStatistics(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	startDateStr := c.Query("start_date")
	endDateStr := c.Query("end_date")

	var startDate, endDate time.Time
	var err error

	// Default to current month if no dates are provided
	now := h.now()
	if startDateStr == "" {
		startDate = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	} else {
		startDate, err = time.Parse(time.RFC3339, startDateStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "invalid start_date format, expected RFC3339"))
			return
		}
	}

	if endDateStr == "" {
		endDate = now
	} else {
		endDate, err = time.Parse(time.RFC3339, endDateStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "invalid end_date format, expected RFC3339"))
			return
		}
	}

	stats, err := h.statisticsService.GetStatistics(c.Request.Context(), actor, startDate, endDate)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, stats))
}
