package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"nfaportal/internal/catalog"
	"nfaportal/internal/client"
	"nfaportal/internal/model"
	"nfaportal/internal/store"
	"nfaportal/internal/websocket"
	"nfaportal/internal/workflow"
	"nfaportal/pkg/pagination"

	"github.com/rs/zerolog"
)

// --- DTOs ---

// RequestInput is the raise/edit form.
type RequestInput struct {
	SupervisorID int             `json:"supervisor_id"`
	Subject      string          `json:"subject"`
	Description  string          `json:"description"`
	Area         string          `json:"area"`
	Project      string          `json:"project"`
	Tower        string          `json:"tower"`
	Department   string          `json:"department"`
	References   string          `json:"references"`
	Priority     string          `json:"priority"`
	Approvers    []int           `json:"approvers"`
	Files        []client.Upload `json:"-"`
}

// ReinitiateInput restarts a rejected request, optionally with edited details.
type ReinitiateInput struct {
	EditDetails bool `json:"edit_details"`
	RequestInput
}

// DecisionInput is an approve/reject decision.
type DecisionInput struct {
	Approved bool   `json:"approved"`
	Comment  string `json:"comment"`
}

// Scopes of ListFilter.
const (
	ScopeAll  = "all"
	ScopeMine = "mine"
)

// ListFilter narrows the request list. Empty fields match everything.
type ListFilter struct {
	Scope         string
	Status        string
	Projects      []string
	Towers        []string
	Departments   []string
	Priorities    []string
	HasAttachment *bool
	Query         string
	Sort          store.SortMode
	Refresh       bool
	Page          int
	Limit         int
}

// DecisionResult is the provisional outcome of a decision.
type DecisionResult struct {
	Command    *workflow.DecisionCommand `json:"command,omitempty"`
	Transition workflow.Transition       `json:"transition"`
	Request    RequestView               `json:"request"`
}

// --- Interface ---

// RequestBackend is the slice of the NFA API the request service calls
// directly; state transitions go through the workflow engine.
type RequestBackend interface {
	CreateRequest(ctx context.Context, token string, form client.RequestForm) (model.Request, error)
	UpdateRequest(ctx context.Context, token string, id int, form client.RequestForm) (model.Request, error)
	DownloadPDF(ctx context.Context, token string, id int) (*client.Document, error)
	ResolveFileURL(raw string) string
}

// EventPublisher pushes change notifications to connected browsers.
type EventPublisher interface {
	Publish(ev websocket.Event)
}

type RequestService interface {
	List(ctx context.Context, actor workflow.Actor, filter ListFilter) ([]RequestView, int, error)
	Get(ctx context.Context, actor workflow.Actor, id int) (RequestView, error)
	Create(ctx context.Context, actor workflow.Actor, input RequestInput) (RequestView, error)
	Update(ctx context.Context, actor workflow.Actor, id int, input RequestInput) (RequestView, error)
	Decide(ctx context.Context, actor workflow.Actor, id int, input DecisionInput) (DecisionResult, error)
	Withdraw(ctx context.Context, actor workflow.Actor, id int) (RequestView, error)
	Reinitiate(ctx context.Context, actor workflow.Actor, id int, input ReinitiateInput) (RequestView, error)
	DownloadPDF(ctx context.Context, actor workflow.Actor, id int) (*client.Document, error)
}

type requestService struct {
	backend  RequestBackend
	engine   *workflow.Engine
	registry *store.Registry
	catalog  *catalog.Catalog
	audit    AuditService
	events   EventPublisher
	log      zerolog.Logger
}

func NewRequestService(
	backend RequestBackend,
	engine *workflow.Engine,
	registry *store.Registry,
	cat *catalog.Catalog,
	audit AuditService,
	events EventPublisher,
	log zerolog.Logger,
) RequestService {
	return &requestService{
		backend:  backend,
		engine:   engine,
		registry: registry,
		catalog:  cat,
		audit:    audit,
		events:   events,
		log:      log.With().Str("component", "requests").Logger(),
	}
}

// --- Implementation ---

func (s *requestService) List(ctx context.Context, actor workflow.Actor, filter ListFilter) ([]RequestView, int, error) {
	match, err := filter.matcher(actor.User.ID)
	if err != nil {
		return nil, 0, err
	}
	st, err := s.snapshot(ctx, actor, filter.Refresh)
	if err != nil {
		return nil, 0, err
	}

	var matched []model.Request
	for _, r := range st.All(filter.Sort) {
		if match(r) {
			matched = append(matched, r)
		}
	}

	total := len(matched)
	return newViews(paginate(matched, filter.Page, filter.Limit), actor.User.ID, s.backend), total, nil
}

func (s *requestService) Get(ctx context.Context, actor workflow.Actor, id int) (RequestView, error) {
	req, _, err := s.find(ctx, actor, id)
	if err != nil {
		return RequestView{}, err
	}
	return newView(req, actor.User.ID, s.backend), nil
}

func (s *requestService) Create(ctx context.Context, actor workflow.Actor, input RequestInput) (RequestView, error) {
	form, err := s.validate(input, actor.User.ID)
	if err != nil {
		return RequestView{}, err
	}

	created, err := s.backend.CreateRequest(ctx, actor.Token, form)
	if err != nil {
		return RequestView{}, err
	}
	if created.ID == 0 {
		// the backend answered without echoing the record
		created = requestFromForm(form)
	}

	st := s.registry.For(actor.User.ID, actor.Token)
	s.afterMutation(ctx, st, actor, created, model.ActionCreateRequest, map[string]any{
		"subject":   form.Subject,
		"approvers": form.Approvers,
		"files":     len(form.Files),
	})
	return s.reread(st, actor, created), nil
}

func (s *requestService) Update(ctx context.Context, actor workflow.Actor, id int, input RequestInput) (RequestView, error) {
	req, st, err := s.find(ctx, actor, id)
	if err != nil {
		return RequestView{}, err
	}
	perms := workflow.PermissionsFor(req, actor.User.ID)
	if !perms.IsInitiator {
		return RequestView{}, fmt.Errorf("%w: only the initiator can edit request %d", workflow.ErrUnauthorized, id)
	}
	if !perms.CanEdit {
		return RequestView{}, fmt.Errorf("%w: request %d is %s and can no longer be edited", workflow.ErrIllegalTransition, id, req.Status)
	}

	form, err := s.validate(input, actor.User.ID)
	if err != nil {
		return RequestView{}, err
	}
	updated, err := s.backend.UpdateRequest(ctx, actor.Token, id, form)
	if err != nil {
		return RequestView{}, err
	}
	if updated.ID == 0 {
		updated = req.Clone()
		mergeForm(&updated, form)
	}

	s.afterMutation(ctx, st, actor, updated, model.ActionUpdateRequest, map[string]any{"subject": form.Subject})
	return s.reread(st, actor, updated), nil
}

func (s *requestService) Decide(ctx context.Context, actor workflow.Actor, id int, input DecisionInput) (DecisionResult, error) {
	req, st, err := s.find(ctx, actor, id)
	if err != nil {
		return DecisionResult{}, err
	}

	out, err := s.engine.SubmitDecision(ctx, req, actor, input.Approved, strings.TrimSpace(input.Comment))
	if err != nil {
		return DecisionResult{}, err
	}

	action := model.ActionApproverDecision
	if out.Role == workflow.RoleRecommender {
		action = model.ActionSupervisorReview
	}
	s.afterMutation(ctx, st, actor, out.Request, action, map[string]any{
		"approved": input.Approved,
		"comment":  input.Comment,
		"from":     out.Transition.From,
		"to":       out.Transition.To,
	})

	return DecisionResult{
		Command:    out.Command,
		Transition: out.Transition,
		Request:    s.reread(st, actor, out.Request),
	}, nil
}

func (s *requestService) Withdraw(ctx context.Context, actor workflow.Actor, id int) (RequestView, error) {
	req, st, err := s.find(ctx, actor, id)
	if err != nil {
		return RequestView{}, err
	}
	out, err := s.engine.Withdraw(ctx, req, actor)
	if err != nil {
		return RequestView{}, err
	}
	s.afterMutation(ctx, st, actor, out.Request, model.ActionWithdrawRequest, nil)
	return s.reread(st, actor, out.Request), nil
}

func (s *requestService) Reinitiate(ctx context.Context, actor workflow.Actor, id int, input ReinitiateInput) (RequestView, error) {
	req, st, err := s.find(ctx, actor, id)
	if err != nil {
		return RequestView{}, err
	}

	form := client.ReinitiateForm{EditDetails: input.EditDetails}
	if input.EditDetails {
		if form.RequestForm, err = s.validate(input.RequestInput, actor.User.ID); err != nil {
			return RequestView{}, err
		}
	} else {
		form.RequestForm = formFromRequest(req)
	}

	out, err := s.engine.Reinitiate(ctx, req, actor, form)
	if err != nil {
		return RequestView{}, err
	}
	s.afterMutation(ctx, st, actor, out.Request, model.ActionReinitiate, map[string]any{"edit_details": input.EditDetails})
	return s.reread(st, actor, out.Request), nil
}

func (s *requestService) DownloadPDF(ctx context.Context, actor workflow.Actor, id int) (*client.Document, error) {
	req, _, err := s.find(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !workflow.PermissionsFor(req, actor.User.ID).CanDownloadPDF {
		return nil, ErrNotApproved
	}
	doc, err := s.backend.DownloadPDF(ctx, actor.Token, id)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, actor.User, model.ActionDownloadPDF, id, nil)
	return doc, nil
}

// --- helpers ---

func (s *requestService) snapshot(ctx context.Context, actor workflow.Actor, refresh bool) (*store.Store, error) {
	return loadStore(ctx, s.registry, actor, refresh)
}

// loadStore returns the actor's store, fetching first when it was never
// loaded, was invalidated or the caller asked for fresh data.
func loadStore(ctx context.Context, registry *store.Registry, actor workflow.Actor, refresh bool) (*store.Store, error) {
	st := registry.For(actor.User.ID, actor.Token)
	if refresh || st.NeedsFetch() {
		if err := st.FetchAll(ctx); err != nil && !st.Loaded() {
			return nil, err
		}
	}
	return st, nil
}

func (s *requestService) find(ctx context.Context, actor workflow.Actor, id int) (model.Request, *store.Store, error) {
	st, err := s.snapshot(ctx, actor, false)
	if err != nil {
		return model.Request{}, nil, err
	}
	req, err := st.ByID(id)
	if errors.Is(err, store.ErrNotFound) {
		// the request may be newer than the held collection
		if ferr := st.FetchAll(ctx); ferr == nil {
			req, err = st.ByID(id)
		}
	}
	if err != nil {
		return model.Request{}, nil, err
	}
	return req, st, nil
}

// afterMutation runs the bookkeeping that follows a confirmed upstream change.
// None of it can fail the mutation.
func (s *requestService) afterMutation(ctx context.Context, st *store.Store, actor workflow.Actor, req model.Request, action string, details map[string]any) {
	if req.ID != 0 {
		st.Apply(req)
	}
	if err := st.FetchAll(ctx); err != nil {
		s.log.Warn().Err(err).Int("request_id", req.ID).Msg("refetch after mutation failed; serving provisional record")
	}

	participants := participantsOf(req)
	s.registry.Invalidate(participants...)
	s.audit.Record(ctx, actor.User, action, req.ID, details)
	if s.events != nil {
		s.events.Publish(websocket.Event{
			Type:      websocket.EventRequestsChanged,
			RequestID: req.ID,
			Status:    string(req.Status),
			UserIDs:   participants,
		})
	}
}

// reread prefers the refetched record over the provisional one.
func (s *requestService) reread(st *store.Store, actor workflow.Actor, provisional model.Request) RequestView {
	if provisional.ID != 0 {
		if fresh, err := st.ByID(provisional.ID); err == nil {
			return newView(fresh, actor.User.ID, s.backend)
		}
	}
	return newView(provisional, actor.User.ID, s.backend)
}

func participantsOf(req model.Request) []int {
	ids := make([]int, 0, len(req.Approvers)+2)
	for _, id := range append([]int{req.InitiatorID, req.SupervisorID}, req.Approvers...) {
		if id != 0 && !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	return ids
}

func paginate(requests []model.Request, page, limit int) []model.Request {
	start, end := pagination.Window(page, limit, len(requests))
	if start == end {
		return nil
	}
	return requests[start:end]
}

// matcher compiles the filter into a predicate.
func (f ListFilter) matcher(userID int) (func(model.Request) bool, error) {
	verr := &ValidationError{}

	scope := strings.ToLower(strings.TrimSpace(f.Scope))
	if scope != "" && scope != ScopeAll && scope != ScopeMine {
		verr.add("scope", "must be all or mine")
	}
	statusMatch, ok := statusMatcher(f.Status)
	if !ok {
		verr.add("status", "unknown status "+f.Status)
	}
	priorities := make([]model.Priority, 0, len(f.Priorities))
	for _, raw := range f.Priorities {
		p := model.ParsePriority(raw)
		if p == model.PriorityUnset {
			verr.add("priority", "unknown priority "+raw)
			continue
		}
		priorities = append(priorities, p)
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	query := strings.ToLower(strings.TrimSpace(f.Query))
	return func(r model.Request) bool {
		if scope == ScopeMine && r.InitiatorID != userID {
			return false
		}
		if !statusMatch(r.Status) {
			return false
		}
		if len(f.Projects) > 0 && !slices.Contains(f.Projects, r.Project) {
			return false
		}
		if len(f.Towers) > 0 && !slices.Contains(f.Towers, r.Tower) {
			return false
		}
		if len(f.Departments) > 0 && !slices.Contains(f.Departments, r.Department) {
			return false
		}
		if len(priorities) > 0 && !slices.Contains(priorities, r.Priority) {
			return false
		}
		if f.HasAttachment != nil && r.HasAttachments() != *f.HasAttachment {
			return false
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(r.Subject), query) &&
			!strings.Contains(strings.ToLower(r.Description), query) {
			return false
		}
		return true
	}, nil
}

// statusMatcher maps a status tab to a predicate. PENDING covers both review
// stages.
func statusMatcher(tab string) (func(model.Status) bool, bool) {
	switch key := strings.ToUpper(strings.TrimSpace(tab)); key {
	case "", "ALL":
		return func(model.Status) bool { return true }, true
	case "PENDING":
		return model.Status.IsPending, true
	default:
		want := model.ParseStatus(key)
		if want == model.StatusUnknown && key != string(model.StatusUnknown) {
			return nil, false
		}
		return func(s model.Status) bool { return s == want }, true
	}
}

// validate applies the raise/edit form rules and builds the upstream form.
func (s *requestService) validate(in RequestInput, initiatorID int) (client.RequestForm, error) {
	verr := &ValidationError{}
	trim := strings.TrimSpace

	if len([]rune(trim(in.Subject))) < 2 {
		verr.add("subject", "must be at least 2 characters")
	}
	if len([]rune(trim(in.Description))) < 2 {
		verr.add("description", "must be at least 2 characters")
	}
	required := []struct{ field, value string }{
		{"area", in.Area},
		{"project", in.Project},
		{"tower", in.Tower},
		{"department", in.Department},
		{"references", in.References},
	}
	for _, r := range required {
		if trim(r.value) == "" {
			verr.add(r.field, "is required")
		}
	}

	priority := model.ParsePriority(in.Priority)
	if priority == model.PriorityUnset {
		verr.add("priority", "must be High, Medium or Low")
	}

	if in.SupervisorID < 1 {
		verr.add("supervisor_id", "a recommender is required")
	} else if in.SupervisorID == initiatorID {
		verr.add("supervisor_id", "the initiator cannot recommend their own request")
	}

	if len(in.Approvers) == 0 {
		verr.add("approvers", "at least one approver is required")
	}
	seen := make(map[int]bool, len(in.Approvers))
	for _, id := range in.Approvers {
		switch {
		case id < 1:
			verr.add("approvers", "approver ids must be positive")
		case seen[id]:
			verr.add("approvers", "an approver may appear only once")
		case id == initiatorID:
			verr.add("approvers", "the initiator cannot approve their own request")
		case id == in.SupervisorID:
			verr.add("approvers", "the recommender cannot also be an approver")
		}
		seen[id] = true
	}

	if s.catalog != nil && trim(in.Project) != "" && trim(in.Tower) != "" {
		if s.catalog.Towers(trim(in.Project)) == nil {
			verr.add("project", "unknown project")
		} else if !s.catalog.HasTower(trim(in.Project), trim(in.Tower)) {
			verr.add("tower", "tower does not belong to project")
		}
	}
	if s.catalog != nil && trim(in.Department) != "" && !s.catalog.HasDepartment(trim(in.Department)) {
		verr.add("department", "unknown department")
	}

	if err := verr.orNil(); err != nil {
		return client.RequestForm{}, err
	}

	return client.RequestForm{
		InitiatorID:  initiatorID,
		SupervisorID: in.SupervisorID,
		Subject:      trim(in.Subject),
		Description:  trim(in.Description),
		Area:         trim(in.Area),
		Project:      trim(in.Project),
		Tower:        trim(in.Tower),
		Department:   trim(in.Department),
		References:   trim(in.References),
		Priority:     priority,
		Approvers:    slices.Clone(in.Approvers),
		Files:        in.Files,
	}, nil
}

func formFromRequest(req model.Request) client.RequestForm {
	return client.RequestForm{
		InitiatorID:  req.InitiatorID,
		SupervisorID: req.SupervisorID,
		Subject:      req.Subject,
		Description:  req.Description,
		Area:         req.Area,
		Project:      req.Project,
		Tower:        req.Tower,
		Department:   req.Department,
		References:   req.References,
		Priority:     req.Priority,
		Approvers:    slices.Clone(req.Approvers),
	}
}

func requestFromForm(form client.RequestForm) model.Request {
	req := model.Request{InitiatorID: form.InitiatorID, Status: model.StatusNew}
	mergeForm(&req, form)
	return req
}

func mergeForm(req *model.Request, form client.RequestForm) {
	req.SupervisorID = form.SupervisorID
	req.Subject = form.Subject
	req.Description = form.Description
	req.Area = form.Area
	req.Project = form.Project
	req.Tower = form.Tower
	req.Department = form.Department
	req.References = form.References
	req.Priority = form.Priority
	req.Approvers = slices.Clone(form.Approvers)
}
