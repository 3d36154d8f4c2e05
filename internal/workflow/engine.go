package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"nfaportal/internal/client"
	"nfaportal/internal/model"
)

// Backend is the slice of the NFA API that changes request state.
type Backend interface {
	SubmitDecision(ctx context.Context, token, path string, decision client.DecisionRequest) error
	Withdraw(ctx context.Context, token string, id int) error
	Reinitiate(ctx context.Context, token string, id int, form client.ReinitiateForm) error
}

// Actor is the signed-in user performing an action, with the bearer token the
// backend call is made under.
type Actor struct {
	User  model.User
	Token string
}

// DecisionCommand is the outward call a decision turns into.
type DecisionCommand struct {
	Endpoint string                 `json:"endpoint"`
	Body     client.DecisionRequest `json:"body"`
}

// Outcome is the provisional result of a confirmed remote call. Callers must
// refetch: the backend's record wins over Request.
type Outcome struct {
	Role       Role             `json:"role"`
	Transition Transition       `json:"transition"`
	Command    *DecisionCommand `json:"command,omitempty"`
	Request    model.Request    `json:"request"`
}

// Engine validates actions against the state machine and issues them.
type Engine struct {
	backend Backend
	now     func() time.Time
	log     zerolog.Logger
}

// NewEngine creates an Engine sending commands to backend.
func NewEngine(backend Backend, log zerolog.Logger) *Engine {
	return &Engine{
		backend: backend,
		now:     time.Now,
		log:     log.With().Str("component", "workflow").Logger(),
	}
}

// WithClock overrides the clock stamping trail entries.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// SubmitDecision records actor's approve/reject decision on req. It fails with
// ErrUnauthorized, without any remote call, unless it is actor's turn.
func (e *Engine) SubmitDecision(ctx context.Context, req model.Request, actor Actor, approved bool, comment string) (Outcome, error) {
	v := Resolve(req, actor.User.ID)
	if !v.CanAct {
		return Outcome{}, fmt.Errorf("%w: user %d is %s on request %d in status %s",
			ErrUnauthorized, actor.User.ID, v.Role, req.ID, req.Status)
	}

	action := ActionReject
	if approved {
		action = ActionApprove
	}
	t, err := Next(req, v.Role, action)
	if err != nil {
		return Outcome{}, err
	}

	cmd := DecisionCommand{
		Endpoint: DecisionEndpoint(v.Role),
		Body: client.DecisionRequest{
			RequestID: req.ID,
			Approved:  approved,
			Comment:   comment,
		},
	}
	if err := e.backend.SubmitDecision(ctx, actor.Token, cmd.Endpoint, cmd.Body); err != nil {
		return Outcome{}, err
	}

	next := Apply(req, t)
	e.recordDecision(&next, req, v.Role, actor.User, approved, comment)

	e.log.Info().
		Int("request_id", req.ID).
		Int("user_id", actor.User.ID).
		Str("role", string(v.Role)).
		Bool("approved", approved).
		Str("from", string(t.From)).
		Str("to", string(t.To)).
		Int("pointer", t.Pointer).
		Msg("decision submitted")

	return Outcome{Role: v.Role, Transition: t, Command: &cmd, Request: next}, nil
}

// Withdraw pulls back a NEW request on behalf of its initiator.
func (e *Engine) Withdraw(ctx context.Context, req model.Request, actor Actor) (Outcome, error) {
	t, err := e.initiatorTransition(req, actor, ActionWithdraw)
	if err != nil {
		return Outcome{}, err
	}
	if err := e.backend.Withdraw(ctx, actor.Token, req.ID); err != nil {
		return Outcome{}, err
	}

	e.log.Info().Int("request_id", req.ID).Int("user_id", actor.User.ID).Msg("request withdrawn")
	return Outcome{Role: RoleInitiator, Transition: t, Request: Apply(req, t)}, nil
}

// Reinitiate restarts a REJECTED request in place: back to NEW, pointer 0 and
// an empty trail. form carries the (possibly edited) details.
func (e *Engine) Reinitiate(ctx context.Context, req model.Request, actor Actor, form client.ReinitiateForm) (Outcome, error) {
	t, err := e.initiatorTransition(req, actor, ActionReinitiate)
	if err != nil {
		return Outcome{}, err
	}
	if err := e.backend.Reinitiate(ctx, actor.Token, req.ID, form); err != nil {
		return Outcome{}, err
	}

	next := Apply(req, t)
	if form.EditDetails {
		applyForm(&next, form.RequestForm)
	}
	next.UpdatedAt = model.Timestamp{Time: e.now()}

	e.log.Info().Int("request_id", req.ID).Int("user_id", actor.User.ID).Bool("edit_details", form.EditDetails).Msg("request reinitiated")
	return Outcome{Role: RoleInitiator, Transition: t, Request: next}, nil
}

func (e *Engine) initiatorTransition(req model.Request, actor Actor, action Action) (Transition, error) {
	if !IsInitiator(req, actor.User.ID) {
		return Transition{}, fmt.Errorf("%w: only the initiator can %s request %d", ErrUnauthorized, action, req.ID)
	}
	return Next(req, RoleInitiator, action)
}

// recordDecision appends the trail entry for the stage that just completed.
func (e *Engine) recordDecision(next *model.Request, prev model.Request, role Role, user model.User, approved bool, comment string) {
	now := model.Timestamp{Time: e.now()}
	decision := model.DecisionRejected
	if approved {
		decision = model.DecisionApproved
	}

	received := prev.CreatedAt
	if n := len(prev.ApprovalHierarchy); n > 0 {
		received = prev.ApprovalHierarchy[n-1].ActionTime
	}

	label := model.TrailRoleApprover
	if role == RoleRecommender {
		label = model.TrailRoleSupervisor
		next.SupervisorApproved = approved
		if approved {
			next.SupervisorApprovedAt = now
		}
	} else {
		next.ApproverActions = append(next.ApproverActions, model.ApproverAction{
			ApproverID: user.ID,
			Approved:   decision,
			ActionTime: now,
			ReceivedAt: received,
			Comment:    comment,
		})
	}

	next.ApprovalHierarchy = append(next.ApprovalHierarchy, model.ApprovalHierarchy{
		Role:       label,
		UserID:     user.ID,
		Name:       user.Name,
		Approved:   decision,
		ReceivedAt: received,
		ActionTime: now,
		Comment:    comment,
	})
	next.UpdatedAt = now
}

func applyForm(req *model.Request, form client.RequestForm) {
	req.SupervisorID = form.SupervisorID
	req.Subject = form.Subject
	req.Description = form.Description
	req.Area = form.Area
	req.Project = form.Project
	req.Tower = form.Tower
	req.Department = form.Department
	req.References = form.References
	if form.Priority != model.PriorityUnset {
		req.Priority = form.Priority
	}
	if len(form.Approvers) > 0 {
		req.Approvers = append([]int(nil), form.Approvers...)
	}
}
