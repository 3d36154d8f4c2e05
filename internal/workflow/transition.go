package workflow

import (
	"errors"
	"fmt"

	"nfaportal/internal/model"
)

var (
	// ErrUnauthorized means the user may not perform the action right now.
	ErrUnauthorized = errors.New("not authorized to act on this request")
	// ErrIllegalTransition means the action is not defined for the current state.
	ErrIllegalTransition = errors.New("illegal transition")
)

// Action is what an actor does to a request.
type Action string

const (
	ActionApprove    Action = "approve"
	ActionReject     Action = "reject"
	ActionWithdraw   Action = "withdraw"
	ActionReinitiate Action = "reinitiate"
)

// Transition is the computed effect of an action.
type Transition struct {
	From           model.Status `json:"from"`
	To             model.Status `json:"to"`
	Pointer        int          `json:"current_approver_index"`
	ResetHierarchy bool         `json:"reset_hierarchy,omitempty"`
}

// Next applies the transition table to (status, role, action). It checks the
// table only; whether the user is the one whose turn it is belongs to Resolve.
func Next(req model.Request, role Role, action Action) (Transition, error) {
	t := Transition{From: req.Status, To: req.Status, Pointer: req.CurrentApproverIndex}

	switch {
	case req.Status == model.StatusNew && role == RoleRecommender && action == ActionApprove:
		t.Pointer = 0
		t.To = model.StatusInProgress
		if len(req.Approvers) == 0 {
			t.To = model.StatusApproved
		}

	case req.Status == model.StatusNew && role == RoleRecommender && action == ActionReject:
		t.To = model.StatusRejected

	case req.Status == model.StatusInProgress && role == RoleApprover && action == ActionApprove:
		i := req.CurrentApproverIndex
		if i < 0 || i >= len(req.Approvers) {
			return Transition{}, fmt.Errorf("%w: approver chain exhausted at index %d", ErrIllegalTransition, i)
		}
		if i == len(req.Approvers)-1 {
			t.To = model.StatusApproved
			t.Pointer = len(req.Approvers)
		} else {
			t.Pointer = i + 1
		}

	case req.Status == model.StatusInProgress && role == RoleApprover && action == ActionReject:
		t.To = model.StatusRejected

	case req.Status == model.StatusNew && role == RoleInitiator && action == ActionWithdraw:
		t.To = model.StatusWithdrawn

	case req.Status == model.StatusRejected && role == RoleInitiator && action == ActionReinitiate:
		t.To = model.StatusNew
		t.Pointer = 0
		t.ResetHierarchy = true

	default:
		return Transition{}, fmt.Errorf("%w: %s by %s from %s", ErrIllegalTransition, action, role, req.Status)
	}

	return t, nil
}

// Apply returns a copy of req moved along t.
func Apply(req model.Request, t Transition) model.Request {
	next := req.Clone()
	next.Status = t.To
	next.CurrentApproverIndex = t.Pointer
	if t.ResetHierarchy {
		next.ApprovalHierarchy = nil
		next.ApproverActions = nil
		next.SupervisorApproved = false
		next.SupervisorApprovedAt = model.Timestamp{}
	}
	return next
}
