package handler

import (
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"nfaportal/internal/client"
	"nfaportal/internal/service"
	"nfaportal/internal/store"
	"nfaportal/pkg/pagination"
	"nfaportal/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const maxUploadMemory = 32 << 20

type RequestHandler struct {
	requestService service.RequestService
	auth           gin.HandlerFunc
	log            zerolog.Logger
}

func NewRequestHandler(requestService service.RequestService, auth gin.HandlerFunc, log zerolog.Logger) *RequestHandler {
	return &RequestHandler{requestService: requestService, auth: auth, log: log}
}

func (h *RequestHandler) RegisterRoutes(router *gin.RouterGroup) {
	requests := router.Group("/api/requests")
	requests.Use(h.auth)
	{
		requests.GET("", h.ListRequests)
		requests.POST("", h.CreateRequest)
		requests.GET("/:id", h.GetRequest)
		requests.PUT("/:id", h.UpdateRequest)
		requests.POST("/:id/decision", h.SubmitDecision)
		requests.DELETE("/:id/withdraw", h.WithdrawRequest)
		requests.POST("/:id/reinitiate", h.ReinitiateRequest)
		requests.GET("/:id/pdf", h.DownloadPDF)
	}
}

type decisionPayload struct {
	Approved *bool  `json:"approved" binding:"required"`
	Comment  string `json:"comment"`
}

// ListRequests returns the caller's visible requests
// @Summary      List requests
// @Description  Requests visible to the caller with their role, turn and permissions. status PENDING covers NEW and IN_PROGRESS.
// @Tags         requests
// @Security     BearerAuth
// @Produce      json
// @Param        scope           query     string    false  "all (default) or mine"
// @Param        status          query     string    false  "ALL, PENDING, NEW, IN_PROGRESS, APPROVED, REJECTED, WITHDRAWN"
// @Param        project         query     []string  false  "Project filter (repeatable)"
// @Param        tower           query     []string  false  "Tower filter (repeatable)"
// @Param        department      query     []string  false  "Department filter (repeatable)"
// @Param        priority        query     []string  false  "Priority filter (repeatable)"
// @Param        has_attachment  query     bool      false  "Only requests with (or without) files"
// @Param        q               query     string    false  "Subject or description contains"
// @Param        sort            query     string    false  "created (default), updated or initiator"
// @Param        refresh         query     bool      false  "Refetch from the backend first"
// @Param        page            query     int       false  "Page number (default 1)"
// @Param        limit           query     int       false  "Number of items per page (default 20)"
// @Success      200             {object}  response.Response{data=object}
// @Failure      400             {object}  response.Response
// @Failure      502             {object}  response.Response
// @Router       /api/requests [get]
func (h *RequestHandler) ListRequests(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	p := pagination.Parse(c)

	filter := service.ListFilter{
		Scope:       c.Query("scope"),
		Status:      c.Query("status"),
		Projects:    c.QueryArray("project"),
		Towers:      c.QueryArray("tower"),
		Departments: c.QueryArray("department"),
		Priorities:  c.QueryArray("priority"),
		Query:       c.Query("q"),
		Sort:        store.ParseSortMode(c.Query("sort")),
		Page:        p.Page,
		Limit:       p.Limit,
	}
	if raw := c.Query("has_attachment"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "invalid has_attachment"))
			return
		}
		filter.HasAttachment = &v
	}
	filter.Refresh, _ = strconv.ParseBool(c.Query("refresh"))

	views, total, err := h.requestService.List(c.Request.Context(), actor, filter)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"requests":    views,
		"total":       total,
		"page":        p.Page,
		"limit":       p.Limit,
		"total_pages": pagination.TotalPages(int64(total), p.Limit),
	}))
}

// GetRequest returns one request
// @Summary      Get request
// @Tags         requests
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "Request ID"
// @Success      200  {object}  response.Response{data=service.RequestView}
// @Failure      404  {object}  response.Response
// @Router       /api/requests/{id} [get]
func (h *RequestHandler) GetRequest(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}

	view, err := h.requestService.Get(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, view))
}

// CreateRequest raises a new NFA
// @Summary      Raise request
// @Description  Multipart form (files repeatable, approvers as a JSON array or repeated field) or a JSON body without files
// @Tags         requests
// @Security     BearerAuth
// @Accept       multipart/form-data
// @Accept       json
// @Produce      json
// @Param        payload  body      service.RequestInput  true  "Request fields"
// @Success      201      {object}  response.Response{data=service.RequestView}
// @Failure      400      {object}  response.Response
// @Failure      502      {object}  response.Response
// @Router       /api/requests [post]
func (h *RequestHandler) CreateRequest(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	input, cleanup, err := bindRequestInput(c)
	defer cleanup()
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	view, err := h.requestService.Create(c.Request.Context(), actor, input)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, view))
}

// UpdateRequest edits a NEW request in place
// @Summary      Edit request
// @Description  Only the initiator, and only while the request is NEW
// @Tags         requests
// @Security     BearerAuth
// @Accept       multipart/form-data
// @Accept       json
// @Produce      json
// @Param        id       path      int                   true  "Request ID"
// @Param        payload  body      service.RequestInput  true  "Request fields"
// @Success      200      {object}  response.Response{data=service.RequestView}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/requests/{id} [put]
func (h *RequestHandler) UpdateRequest(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}
	input, cleanup, err := bindRequestInput(c)
	defer cleanup()
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	view, err := h.requestService.Update(c.Request.Context(), actor, id, input)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, view))
}

// SubmitDecision records the caller's approve/reject decision
// @Summary      Approve or reject
// @Description  Sent to the supervisor-review or approve endpoint depending on the caller's role. 403 when it is not the caller's turn.
// @Tags         requests
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      int                     true  "Request ID"
// @Param        payload  body      service.DecisionInput   true  "Decision"
// @Success      200      {object}  response.Response{data=service.DecisionResult}
// @Failure      403      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Failure      502      {object}  response.Response
// @Router       /api/requests/{id}/decision [post]
func (h *RequestHandler) SubmitDecision(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}
	var payload decisionPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: approved is required"))
		return
	}

	result, err := h.requestService.Decide(c.Request.Context(), actor, id, service.DecisionInput{
		Approved: *payload.Approved,
		Comment:  payload.Comment,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// WithdrawRequest pulls back a NEW request
// @Summary      Withdraw request
// @Tags         requests
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "Request ID"
// @Success      200  {object}  response.Response{data=service.RequestView}
// @Failure      403  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/requests/{id}/withdraw [delete]
func (h *RequestHandler) WithdrawRequest(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}

	view, err := h.requestService.Withdraw(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, view))
}

// ReinitiateRequest restarts a REJECTED request
// @Summary      Re-initiate request
// @Description  Resets the request to NEW. With edit_details=true the submitted fields replace the stored ones.
// @Tags         requests
// @Security     BearerAuth
// @Accept       multipart/form-data
// @Accept       json
// @Produce      json
// @Param        id       path      int                      true  "Request ID"
// @Param        payload  body      service.ReinitiateInput  false "Edited fields"
// @Success      200      {object}  response.Response{data=service.RequestView}
// @Failure      403      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/requests/{id}/reinitiate [post]
func (h *RequestHandler) ReinitiateRequest(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}

	var input service.ReinitiateInput
	if c.Request.ContentLength != 0 {
		form, cleanup, err := bindRequestInput(c)
		defer cleanup()
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
			return
		}
		input.RequestInput = form
		input.EditDetails = editDetails(c)
	}

	view, err := h.requestService.Reinitiate(c.Request.Context(), actor, id, input)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, view))
}

// DownloadPDF streams the approval document
// @Summary      Download PDF
// @Description  Only for APPROVED requests; 409 otherwise
// @Tags         requests
// @Security     BearerAuth
// @Produce      application/pdf
// @Param        id   path      int  true  "Request ID"
// @Success      200  {file}    binary
// @Failure      409  {object}  response.Response
// @Router       /api/requests/{id}/pdf [get]
func (h *RequestHandler) DownloadPDF(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}

	doc, err := h.requestService.DownloadPDF(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	defer doc.Body.Close()

	c.DataFromReader(http.StatusOK, -1, doc.ContentType, doc.Body, map[string]string{
		"Content-Disposition": fmt.Sprintf(`attachment; filename="%s"`, doc.Filename),
	})
}

// bindRequestInput reads the raise/edit form from JSON or multipart. cleanup
// closes the opened uploads and is always safe to call.
func bindRequestInput(c *gin.Context) (service.RequestInput, func(), error) {
	noop := func() {}
	var input service.RequestInput

	if strings.HasPrefix(c.ContentType(), "application/json") {
		var body struct {
			service.RequestInput
			EditDetails bool `json:"edit_details"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			return input, noop, err
		}
		c.Set("edit_details", body.EditDetails)
		return body.RequestInput, noop, nil
	}

	if err := c.Request.ParseMultipartForm(maxUploadMemory); err != nil && err != http.ErrNotMultipart {
		return input, noop, err
	}

	input = service.RequestInput{
		Subject:     c.PostForm("subject"),
		Description: c.PostForm("description"),
		Area:        c.PostForm("area"),
		Project:     c.PostForm("project"),
		Tower:       c.PostForm("tower"),
		Department:  c.PostForm("department"),
		References:  c.PostForm("references"),
		Priority:    c.PostForm("priority"),
	}
	if raw := c.PostForm("supervisor_id"); raw != "" {
		id, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return input, noop, fmt.Errorf("supervisor_id must be a number")
		}
		input.SupervisorID = id
	}
	approvers, err := parseApprovers(c.PostFormArray("approvers"))
	if err != nil {
		return input, noop, err
	}
	input.Approvers = approvers

	var headers []*multipart.FileHeader
	if c.Request.MultipartForm != nil {
		headers = c.Request.MultipartForm.File["files"]
	}
	var opened []multipart.File
	cleanup := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			cleanup()
			return input, noop, fmt.Errorf("open upload %s: %w", fh.Filename, err)
		}
		opened = append(opened, f)
		input.Files = append(input.Files, client.Upload{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Content:     f,
		})
	}
	return input, cleanup, nil
}

// parseApprovers accepts a JSON array ("[3,5]"), a comma list or repeated fields.
func parseApprovers(values []string) ([]int, error) {
	var ids []int
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if strings.HasPrefix(v, "[") {
			var batch []int
			if err := json.Unmarshal([]byte(v), &batch); err != nil {
				return nil, fmt.Errorf("approvers must be a list of user ids")
			}
			ids = append(ids, batch...)
			continue
		}
		for _, part := range strings.Split(v, ",") {
			id, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return nil, fmt.Errorf("approvers must be a list of user ids")
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func editDetails(c *gin.Context) bool {
	if v, ok := c.Get("edit_details"); ok {
		b, _ := v.(bool)
		return b
	}
	b, _ := strconv.ParseBool(c.PostForm("edit_details"))
	return b
}
