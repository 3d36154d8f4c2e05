package service

import (
	"context"
	"io"
	"slices"
	"strings"
	"sync"
	"testing"

	"nfaportal/internal/catalog"
	"nfaportal/internal/client"
	"nfaportal/internal/model"
	"nfaportal/internal/store"
	"nfaportal/internal/websocket"
	"nfaportal/internal/workflow"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// fakeUpstream plays the NFA backend: it serves the request list and applies
// state changes the way the real backend would.
type fakeUpstream struct {
	mu        sync.Mutex
	requests  []model.Request
	created   []client.RequestForm
	decisions []client.DecisionRequest
	pdfs      []int
	nextID    int
}

func (f *fakeUpstream) ListRequests(_ context.Context, _ string) ([]model.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Request, len(f.requests))
	for i, r := range f.requests {
		out[i] = r.Clone()
	}
	return out, nil
}

func (f *fakeUpstream) CreateRequest(_ context.Context, _ string, form client.RequestForm) (model.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, form)
	f.nextID++
	req := requestFromForm(form)
	req.ID = 100 + f.nextID
	f.requests = append(f.requests, req)
	return req, nil
}

func (f *fakeUpstream) UpdateRequest(_ context.Context, _ string, id int, form client.RequestForm) (model.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.requests {
		if f.requests[i].ID == id {
			mergeForm(&f.requests[i], form)
			return f.requests[i].Clone(), nil
		}
	}
	return model.Request{}, &client.RemoteError{StatusCode: 404}
}

func (f *fakeUpstream) SubmitDecision(_ context.Context, _ string, path string, decision client.DecisionRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decisions = append(f.decisions, decision)
	role := workflow.RoleApprover
	if path == client.PathSupervisorReview {
		role = workflow.RoleRecommender
	}
	action := workflow.ActionReject
	if decision.Approved {
		action = workflow.ActionApprove
	}
	return f.transition(decision.RequestID, role, action)
}

func (f *fakeUpstream) Withdraw(_ context.Context, _ string, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.transition(id, workflow.RoleInitiator, workflow.ActionWithdraw)
}

func (f *fakeUpstream) Reinitiate(_ context.Context, _ string, id int, _ client.ReinitiateForm) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.transition(id, workflow.RoleInitiator, workflow.ActionReinitiate)
}

func (f *fakeUpstream) DownloadPDF(_ context.Context, _ string, id int) (*client.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pdfs = append(f.pdfs, id)
	return &client.Document{
		Filename:    "nfa.pdf",
		ContentType: "application/pdf",
		Body:        io.NopCloser(strings.NewReader("%PDF")),
	}, nil
}

func (f *fakeUpstream) ResolveFileURL(raw string) string {
	if raw == "" || strings.HasPrefix(raw, "http") {
		return raw
	}
	return "http://nfa.local" + raw
}

func (f *fakeUpstream) transition(id int, role workflow.Role, action workflow.Action) error {
	for i := range f.requests {
		if f.requests[i].ID != id {
			continue
		}
		t, err := workflow.Next(f.requests[i], role, action)
		if err != nil {
			return &client.RemoteError{StatusCode: 400, Message: err.Error()}
		}
		f.requests[i] = workflow.Apply(f.requests[i], t)
		return nil
	}
	return &client.RemoteError{StatusCode: 404}
}

func (f *fakeUpstream) decisionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.decisions)
}

type auditEntry struct {
	userID    int
	action    string
	requestID int
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []auditEntry
	err     error
}

func (a *fakeAudit) Record(_ context.Context, user model.User, action string, requestID int, _ map[string]any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, auditEntry{userID: user.ID, action: action, requestID: requestID})
}

func (a *fakeAudit) Append(_ context.Context, user model.User, action string, requestID int, _ map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.entries = append(a.entries, auditEntry{userID: user.ID, action: action, requestID: requestID})
	return nil
}

func (a *fakeAudit) GetAuditLogs(context.Context, AuditFilter) ([]AuditLogResponse, int64, error) {
	return nil, 0, nil
}

func (a *fakeAudit) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.action)
	}
	return out
}

type fakeEvents struct {
	mu     sync.Mutex
	events []websocket.Event
}

func (e *fakeEvents) Publish(ev websocket.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
}

type fixture struct {
	upstream *fakeUpstream
	registry *store.Registry
	audit    *fakeAudit
	events   *fakeEvents
	requests RequestService
	inbox    ApprovalService
}

func newFixture(t *testing.T, requests ...model.Request) *fixture {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)

	f := &fixture{
		upstream: &fakeUpstream{requests: slices.Clone(requests)},
		audit:    &fakeAudit{},
		events:   &fakeEvents{},
	}
	f.registry = store.NewRegistry(f.upstream, zerolog.Nop())
	engine := workflow.NewEngine(f.upstream, zerolog.Nop())
	f.requests = NewRequestService(f.upstream, engine, f.registry, cat, f.audit, f.events, zerolog.Nop())
	f.inbox = NewApprovalService(f.registry, f.upstream)
	return f
}

func as(id int) workflow.Actor {
	return workflow.Actor{User: model.User{ID: id, Name: "user"}, Token: "Bearer tok"}
}

func validInput() RequestInput {
	return RequestInput{
		SupervisorID: 5,
		Subject:      "Lift repair",
		Description:  "Replace the tower B lift motor",
		Area:         "Mirzapur",
		Project:      "Garden Isles",
		Tower:        "B",
		Department:   "Civil",
		References:   "PO-221",
		Priority:     "high",
		Approvers:    []int{7, 9},
	}
}
