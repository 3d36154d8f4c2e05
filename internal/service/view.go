package service

import (
	"nfaportal/internal/model"
	"nfaportal/internal/workflow"
)

// TrailEntry is one approval_hierarchy row as the detail screen shows it.
type TrailEntry struct {
	model.ApprovalHierarchy
	RoleLabel    string        `json:"role_label"`
	DecisionTone workflow.Tone `json:"decision_tone"`
}

// RequestView is a request annotated for one viewer, so no screen needs to
// derive role, turn or colours on its own.
type RequestView struct {
	model.Request
	workflow.Permissions
	StatusTone     workflow.Tone `json:"status_tone"`
	PriorityTone   workflow.Tone `json:"priority_tone"`
	CurrentActorID int           `json:"current_actor_id,omitempty"`
	Trail          []TrailEntry  `json:"trail"`
}

// FileURLResolver turns backend-relative file links into absolute ones.
type FileURLResolver interface {
	ResolveFileURL(raw string) string
}

func newView(req model.Request, userID int, files FileURLResolver) RequestView {
	v := RequestView{
		Request:      req.Clone(),
		Permissions:  workflow.PermissionsFor(req, userID),
		StatusTone:   workflow.StatusTone(req.Status),
		PriorityTone: workflow.PriorityTone(req.Priority),
		Trail:        make([]TrailEntry, 0, len(req.ApprovalHierarchy)),
	}
	if id, ok := workflow.CurrentActor(req); ok {
		v.CurrentActorID = id
	}
	for _, h := range req.ApprovalHierarchy {
		v.Trail = append(v.Trail, TrailEntry{
			ApprovalHierarchy: h,
			RoleLabel:         workflow.TrailRoleLabel(h.Role),
			DecisionTone:      workflow.DecisionTone(h.Approved),
		})
	}

	if files != nil {
		for i := range v.Files {
			v.Files[i].FileURL = files.ResolveFileURL(v.Files[i].FileURL)
		}
		if v.FileURL != nil {
			resolved := files.ResolveFileURL(*v.FileURL)
			v.FileURL = &resolved
		}
	}
	return v
}

func newViews(requests []model.Request, userID int, files FileURLResolver) []RequestView {
	out := make([]RequestView, 0, len(requests))
	for _, r := range requests {
		out = append(out, newView(r, userID, files))
	}
	return out
}
