package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"nfaportal/internal/service"
	"nfaportal/pkg/pagination"
	"nfaportal/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type AuditHandler struct {
	auditService service.AuditService
	auth         gin.HandlerFunc
	log          zerolog.Logger
}

func NewAuditHandler(auditService service.AuditService, auth gin.HandlerFunc, log zerolog.Logger) *AuditHandler {
	return &AuditHandler{auditService: auditService, auth: auth, log: log}
}

func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/audit-logs")
	group.Use(h.auth)
	{
		group.GET("", h.GetAuditLogs)
	}
}

// GetAuditLogs retrieves the portal's own trail of mutating calls
// @Summary      Get audit logs
// @Description  Paginated audit entries, newest first, optionally for one request or one action
// @Tags         audit
// @Security     BearerAuth
// @Produce      json
// @Param        page        query     int     false  "Page number (default 1)"
// @Param        limit       query     int     false  "Number of items per page (default 20)"
// @Param        request_id  query     int     false  "Only entries about this request"
// @Param        action      query     string  false  "Only entries with this action"
// @Param        mine        query     bool    false  "Only the caller's entries"
// @Param        from        query     string  false  "Entries at or after this instant (RFC3339)"
// @Param        to          query     string  false  "Entries before this instant (RFC3339)"
// @Success      200         {object}  response.Response{data=object}
// @Router       /api/audit-logs [get]
func (h *AuditHandler) GetAuditLogs(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	p := pagination.Parse(c)

	filter := service.AuditFilter{Action: c.Query("action"), Page: p.Page, Limit: p.Limit}
	if raw := c.Query("request_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "invalid request_id"))
			return
		}
		filter.RequestID = id
	}
	if mine, _ := strconv.ParseBool(c.Query("mine")); mine {
		filter.UserID = actor.User.ID
	}
	for name, dst := range map[string]*time.Time{"from": &filter.From, "to": &filter.To} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "invalid "+name+" format, expected RFC3339"))
			return
		}
		*dst = t
	}

	logs, total, err := h.auditService.GetAuditLogs(c.Request.Context(), filter)
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			respondError(c, h.log, err)
			return
		}
		h.log.Error().Err(err).Msg("failed to retrieve audit logs")
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Failed to retrieve audit logs"))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"logs":        logs,
		"total":       total,
		"page":        p.Page,
		"limit":       p.Limit,
		"total_pages": pagination.TotalPages(int64(total), p.Limit),
	}))
}
