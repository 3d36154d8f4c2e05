package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"nfaportal/internal/client"
	"nfaportal/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)

func newTestEngine(backend *fakeBackend) *Engine {
	return NewEngine(backend, zerolog.Nop()).WithClock(func() time.Time { return fixedNow })
}

func actor(id int) Actor {
	return Actor{User: model.User{ID: id, Name: "user"}, Token: "Bearer tok"}
}

func TestSupervisorApprovesNewRequest(t *testing.T) {
	backend := &fakeBackend{}
	engine := newTestEngine(backend)
	req := model.Request{ID: 10, InitiatorID: 1, SupervisorID: 5, Approvers: []int{1, 2}, Status: model.StatusNew}

	out, err := engine.SubmitDecision(context.Background(), req, actor(5), true, "ok")
	require.NoError(t, err)

	assert.Equal(t, RoleRecommender, out.Role)
	assert.Equal(t, model.StatusInProgress, out.Request.Status)
	assert.Equal(t, 0, out.Request.CurrentApproverIndex)
	assert.True(t, out.Request.SupervisorApproved)
	require.NotNil(t, out.Command)
	assert.Equal(t, client.PathSupervisorReview, out.Command.Endpoint)

	require.Len(t, backend.decisions, 1)
	call := backend.decisions[0]
	assert.Equal(t, client.PathSupervisorReview, call.path)
	assert.Equal(t, client.DecisionRequest{RequestID: 10, Approved: true, Comment: "ok"}, call.decision)
	assert.Equal(t, "Bearer tok", call.token)
}

func TestApproverRejects(t *testing.T) {
	backend := &fakeBackend{}
	engine := newTestEngine(backend)
	req := model.Request{ID: 11, SupervisorID: 5, Approvers: []int{1, 2}, CurrentApproverIndex: 1, Status: model.StatusInProgress}

	out, err := engine.SubmitDecision(context.Background(), req, actor(2), false, "no budget")
	require.NoError(t, err)

	assert.Equal(t, model.StatusRejected, out.Request.Status)
	assert.Equal(t, 1, out.Request.CurrentApproverIndex)
	require.Len(t, backend.decisions, 1)
	assert.Equal(t, client.PathApprove, backend.decisions[0].path)
	assert.False(t, backend.decisions[0].decision.Approved)
	require.Len(t, out.Request.ApproverActions, 1)
	assert.Equal(t, model.DecisionRejected, out.Request.ApproverActions[0].Approved)
}

func TestStrangerIsRejectedWithoutRemoteCall(t *testing.T) {
	backend := &fakeBackend{}
	engine := newTestEngine(backend)
	req := model.Request{ID: 12, SupervisorID: 5, Approvers: []int{1, 2}, Status: model.StatusNew}

	_, err := engine.SubmitDecision(context.Background(), req, actor(99), true, "")
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Zero(t, backend.calls())
}

func TestDecisionIsNotRepeatable(t *testing.T) {
	backend := &fakeBackend{}
	engine := newTestEngine(backend)
	req := model.Request{ID: 13, SupervisorID: 5, Approvers: []int{7}, Status: model.StatusNew}

	out, err := engine.SubmitDecision(context.Background(), req, actor(5), true, "")
	require.NoError(t, err)

	_, err = engine.SubmitDecision(context.Background(), out.Request, actor(5), true, "")
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, 1, backend.calls())
}

func TestFullChainRoundTrip(t *testing.T) {
	backend := &fakeBackend{}
	engine := newTestEngine(backend)
	req := model.Request{
		ID:           14,
		InitiatorID:  1,
		SupervisorID: 5,
		Approvers:    []int{7, 9, 12},
		Status:       model.StatusNew,
		CreatedAt:    model.Timestamp{Time: fixedNow.Add(-time.Hour)},
	}

	out, err := engine.SubmitDecision(context.Background(), req, actor(5), true, "")
	require.NoError(t, err)
	req = out.Request
	assert.Equal(t, 0, req.CurrentApproverIndex)

	for i, approver := range []int{7, 9, 12} {
		other := []int{7, 9, 12}[(i+1)%3]
		_, err := engine.SubmitDecision(context.Background(), req, actor(other), true, "")
		require.ErrorIs(t, err, ErrUnauthorized)

		out, err := engine.SubmitDecision(context.Background(), req, actor(approver), true, "")
		require.NoError(t, err)
		req = out.Request
		assert.Equal(t, i+1, req.CurrentApproverIndex)
	}

	assert.Equal(t, model.StatusApproved, req.Status)
	assert.Equal(t, 3, req.CurrentApproverIndex)
	require.Len(t, req.ApprovalHierarchy, 4)
	assert.Equal(t, model.TrailRoleSupervisor, req.ApprovalHierarchy[0].Role)
	for i, approver := range []int{7, 9, 12} {
		entry := req.ApprovalHierarchy[i+1]
		assert.Equal(t, approver, entry.UserID)
		assert.Equal(t, model.DecisionApproved, entry.Approved)
	}
	assert.Equal(t, req.CreatedAt, req.ApprovalHierarchy[0].ReceivedAt)
	assert.Len(t, req.ApproverActions, 3)
	assert.Equal(t, 4, len(backend.decisions))
}

func TestRemoteFailureLeavesNoTransition(t *testing.T) {
	backend := &fakeBackend{err: errors.New("boom")}
	engine := newTestEngine(backend)
	req := model.Request{ID: 15, SupervisorID: 5, Approvers: []int{7}, Status: model.StatusNew}

	out, err := engine.SubmitDecision(context.Background(), req, actor(5), true, "")
	require.Error(t, err)
	assert.Equal(t, Outcome{}, out)
	assert.Equal(t, model.StatusNew, req.Status)
}

func TestWithdraw(t *testing.T) {
	backend := &fakeBackend{}
	engine := newTestEngine(backend)
	req := model.Request{ID: 16, InitiatorID: 1, SupervisorID: 5, Status: model.StatusNew}

	_, err := engine.Withdraw(context.Background(), req, actor(5))
	assert.ErrorIs(t, err, ErrUnauthorized)

	out, err := engine.Withdraw(context.Background(), req, actor(1))
	require.NoError(t, err)
	assert.Equal(t, model.StatusWithdrawn, out.Request.Status)
	assert.Equal(t, []int{16}, backend.withdrawn)

	req.Status = model.StatusInProgress
	_, err = engine.Withdraw(context.Background(), req, actor(1))
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestReinitiate(t *testing.T) {
	backend := &fakeBackend{}
	engine := newTestEngine(backend)
	req := model.Request{
		ID:                   17,
		InitiatorID:          1,
		SupervisorID:         5,
		Approvers:            []int{7, 9},
		CurrentApproverIndex: 1,
		Status:               model.StatusRejected,
		Subject:              "old",
		ApprovalHierarchy:    []model.ApprovalHierarchy{{UserID: 5}, {UserID: 7}},
	}
	form := client.ReinitiateForm{
		EditDetails: true,
		RequestForm: client.RequestForm{SupervisorID: 6, Subject: "new", Approvers: []int{8}},
	}

	out, err := engine.Reinitiate(context.Background(), req, actor(1), form)
	require.NoError(t, err)
	assert.Equal(t, model.StatusNew, out.Request.Status)
	assert.Equal(t, 0, out.Request.CurrentApproverIndex)
	assert.Empty(t, out.Request.ApprovalHierarchy)
	assert.Equal(t, "new", out.Request.Subject)
	assert.Equal(t, 6, out.Request.SupervisorID)
	assert.Equal(t, []int{8}, out.Request.Approvers)
	assert.Equal(t, 17, out.Request.ID)
	require.Len(t, backend.reinitiated, 1)

	req.Status = model.StatusApproved
	_, err = engine.Reinitiate(context.Background(), req, actor(1), form)
	assert.ErrorIs(t, err, ErrIllegalTransition)
}
