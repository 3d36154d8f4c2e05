package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"nfaportal/internal/middleware"
	"nfaportal/internal/model"
	"nfaportal/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type stubAudit struct {
	filter service.AuditFilter
	err    error
}

func (s *stubAudit) Record(context.Context, model.User, string, int, map[string]any) {}

func (s *stubAudit) Append(context.Context, model.User, string, int, map[string]any) error {
	return nil
}

func (s *stubAudit) GetAuditLogs(_ context.Context, filter service.AuditFilter) ([]service.AuditLogResponse, int64, error) {
	s.filter = filter
	if s.err != nil {
		return nil, 0, s.err
	}
	return []service.AuditLogResponse{{Action: model.ActionLogin}}, 41, nil
}

func newAuditRouter(svc service.AuditService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	auth := middleware.RequireSession(&stubResolver{}, middleware.CookieOptions{})
	NewAuditHandler(svc, auth, zerolog.Nop()).RegisterRoutes(r.Group(""))
	return r
}

func TestAuditLogsFilters(t *testing.T) {
	svc := &stubAudit{}
	w := doRequest(newAuditRouter(svc), http.MethodGet,
		"/api/audit-logs?request_id=12&action=LOGIN&mine=true&from=2024-03-01T00:00:00Z&limit=20", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 12, svc.filter.RequestID)
	assert.Equal(t, 1, svc.filter.UserID)
	assert.Equal(t, "LOGIN", svc.filter.Action)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), svc.filter.From)
	assert.True(t, svc.filter.To.IsZero())

	data := decodeBody(t, w)["data"].(map[string]any)
	assert.EqualValues(t, 41, data["total"])
	assert.EqualValues(t, 3, data["total_pages"])
}

func TestAuditLogsBadInput(t *testing.T) {
	w := doRequest(newAuditRouter(&stubAudit{}), http.MethodGet, "/api/audit-logs?request_id=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(newAuditRouter(&stubAudit{}), http.MethodGet, "/api/audit-logs?to=tomorrow", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	svc := &stubAudit{err: &service.ValidationError{Fields: map[string]string{"to": "must not be before from"}}}
	w = doRequest(newAuditRouter(svc), http.MethodGet, "/api/audit-logs", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuditLogsStoreFailure(t *testing.T) {
	w := doRequest(newAuditRouter(&stubAudit{err: errors.New("db down")}), http.MethodGet, "/api/audit-logs", "", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
