package service

import (
	"context"
	"strings"

	"nfaportal/internal/model"
	"nfaportal/internal/store"
	"nfaportal/internal/workflow"
)

// Inbox tabs.
const (
	TabAll      = "ALL"
	TabPending  = "PENDING"
	TabApproved = "APPROVED"
	TabRejected = "REJECTED"
)

type InboxFilter struct {
	Tab     string
	Sort    store.SortMode
	Refresh bool
	Page    int
	Limit   int
}

// InboxCounts feeds the tab badges.
type InboxCounts struct {
	All      int `json:"all"`
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
}

// ApprovalService lists the requests a user reviews, as recommender or approver.
type ApprovalService interface {
	Inbox(ctx context.Context, actor workflow.Actor, filter InboxFilter) ([]RequestView, int, InboxCounts, error)
}

type approvalService struct {
	registry *store.Registry
	files    FileURLResolver
}

func NewApprovalService(registry *store.Registry, files FileURLResolver) ApprovalService {
	return &approvalService{registry: registry, files: files}
}

func (s *approvalService) Inbox(ctx context.Context, actor workflow.Actor, filter InboxFilter) ([]RequestView, int, InboxCounts, error) {
	tab := strings.ToUpper(strings.TrimSpace(filter.Tab))
	if tab == "" {
		tab = TabAll
	}
	switch tab {
	case TabAll, TabPending, TabApproved, TabRejected:
	default:
		return nil, 0, InboxCounts{}, &ValidationError{Fields: map[string]string{"tab": "must be ALL, PENDING, APPROVED or REJECTED"}}
	}

	st, err := loadStore(ctx, s.registry, actor, filter.Refresh)
	if err != nil {
		return nil, 0, InboxCounts{}, err
	}

	var counts InboxCounts
	var matched []model.Request
	for _, r := range st.All(filter.Sort) {
		v := workflow.Resolve(r, actor.User.ID)
		if v.Role == workflow.RoleNone {
			continue
		}
		tabs := inboxTabs(r, v, actor.User.ID)
		counts.All++
		if tabs[TabPending] {
			counts.Pending++
		}
		if tabs[TabApproved] {
			counts.Approved++
		}
		if tabs[TabRejected] {
			counts.Rejected++
		}
		if tab == TabAll || tabs[tab] {
			matched = append(matched, r)
		}
	}

	total := len(matched)
	return newViews(paginate(matched, filter.Page, filter.Limit), actor.User.ID, s.files), total, counts, nil
}

// inboxTabs reports which non-ALL tabs a reviewed request appears under.
// Approved is what this user did; rejected is the request's outcome.
func inboxTabs(r model.Request, v workflow.Verdict, userID int) map[string]bool {
	return map[string]bool{
		TabPending:  v.CanAct,
		TabApproved: r.ApprovedBy(userID),
		TabRejected: r.Status == model.StatusRejected,
	}
}
