package handler

import (
	"net/http"
	"strconv"

	"nfaportal/internal/service"
	"nfaportal/internal/store"
	"nfaportal/pkg/pagination"
	"nfaportal/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type ApprovalHandler struct {
	approvalService service.ApprovalService
	auth            gin.HandlerFunc
	log             zerolog.Logger
}

func NewApprovalHandler(approvalService service.ApprovalService, auth gin.HandlerFunc, log zerolog.Logger) *ApprovalHandler {
	return &ApprovalHandler{approvalService: approvalService, auth: auth, log: log}
}

func (h *ApprovalHandler) RegisterRoutes(router *gin.RouterGroup) {
	approvals := router.Group("/api/approvals")
	approvals.Use(h.auth)
	{
		approvals.GET("", h.ListApprovalRequests)
	}
}

// ListApprovalRequests returns the caller's review inbox
// @Summary      Approvals inbox
// @Description  Requests where the caller is recommender or approver. PENDING holds the ones awaiting the caller's decision; APPROVED the ones the caller approved; REJECTED the rejected ones.
// @Tags         approvals
// @Security     BearerAuth
// @Produce      json
// @Param        tab      query     string  false  "ALL (default), PENDING, APPROVED, REJECTED"
// @Param        sort     query     string  false  "created (default), updated or initiator"
// @Param        refresh  query     bool    false  "Refetch from the backend first"
// @Param        page     query     int     false  "Page number (default 1)"
// @Param        limit    query     int     false  "Number of items per page (default 20)"
// @Success      200      {object}  response.Response{data=object}
// @Failure      400      {object}  response.Response
// @Router       /api/approvals [get]
func (h *ApprovalHandler) ListApprovalRequests(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	p := pagination.Parse(c)
	refresh, _ := strconv.ParseBool(c.Query("refresh"))

	filter := service.InboxFilter{
		Tab:     c.Query("tab"),
		Sort:    store.ParseSortMode(c.Query("sort")),
		Refresh: refresh,
		Page:    p.Page,
		Limit:   p.Limit,
	}

	views, total, counts, err := h.approvalService.Inbox(c.Request.Context(), actor, filter)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"requests":    views,
		"counts":      counts,
		"total":       total,
		"page":        p.Page,
		"limit":       p.Limit,
		"total_pages": pagination.TotalPages(int64(total), p.Limit),
	}))
}
