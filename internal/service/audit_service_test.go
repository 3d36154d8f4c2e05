package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"nfaportal/internal/model"
	"nfaportal/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memAuditRepo struct {
	logged  []model.AuditLog
	filters []repository.AuditFilter
	err     error
}

func (r *memAuditRepo) Log(_ context.Context, entry *model.AuditLog) error {
	if r.err != nil {
		return r.err
	}
	entry.ID = uuid.New()
	r.logged = append(r.logged, *entry)
	return nil
}

func (r *memAuditRepo) List(_ context.Context, filter repository.AuditFilter, _, _ int) ([]model.AuditLog, int64, error) {
	r.filters = append(r.filters, filter)
	return r.logged, int64(len(r.logged)), nil
}

func TestAuditRecordEncodesDetails(t *testing.T) {
	repo := &memAuditRepo{}
	svc := NewAuditService(repo, zerolog.Nop())

	svc.Record(context.Background(), model.User{ID: 7, Name: "Asha"}, model.ActionApproverDecision, 12,
		map[string]any{"approved": true})

	require.Len(t, repo.logged, 1)
	assert.Equal(t, `{"approved":true}`, repo.logged[0].Details)
	assert.Equal(t, "Asha", repo.logged[0].UserName)

	logs, total, err := svc.GetAuditLogs(context.Background(), AuditFilter{RequestID: 12})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, true, logs[0].Details["approved"])
	assert.Equal(t, 12, repo.filters[0].RequestID)
}

func TestAuditRecordSwallowsStoreFailure(t *testing.T) {
	repo := &memAuditRepo{err: errors.New("db down")}
	svc := NewAuditService(repo, zerolog.Nop())

	assert.NotPanics(t, func() {
		svc.Record(context.Background(), model.User{ID: 7}, model.ActionLogin, 0, nil)
	})
}

func TestAuditRangeMustBeOrdered(t *testing.T) {
	repo := &memAuditRepo{}
	svc := NewAuditService(repo, zerolog.Nop())
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	_, _, err := svc.GetAuditLogs(context.Background(), AuditFilter{From: from, To: from.Add(-time.Hour)})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "to")
	assert.Empty(t, repo.filters)
}
