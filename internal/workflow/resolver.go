package workflow

import (
	"nfaportal/internal/client"
	"nfaportal/internal/model"
)

// Role is a user's relationship to a request's review chain.
type Role string

const (
	RoleNone        Role = "NONE"
	RoleRecommender Role = "RECOMMENDER"
	RoleApprover    Role = "APPROVER"
	// RoleInitiator only drives withdraw and re-initiate; Resolve never returns it.
	RoleInitiator Role = "INITIATOR"
)

// Verdict is the resolver's answer for one (request, user) pair.
type Verdict struct {
	Role   Role `json:"role"`
	CanAct bool `json:"can_act"`
}

// Resolve determines userID's review role on req and whether it is their turn.
// The supervisor match wins over an approver match.
func Resolve(req model.Request, userID int) Verdict {
	switch {
	case userID == req.SupervisorID:
		return Verdict{Role: RoleRecommender, CanAct: req.Status == model.StatusNew}
	case req.HasApprover(userID):
		return Verdict{Role: RoleApprover, CanAct: isCurrentApprover(req, userID)}
	default:
		return Verdict{Role: RoleNone}
	}
}

func isCurrentApprover(req model.Request, userID int) bool {
	if req.Status != model.StatusInProgress {
		return false
	}
	i := req.CurrentApproverIndex
	if i < 0 || i >= len(req.Approvers) {
		return false
	}
	return req.Approvers[i] == userID
}

// CurrentActor returns the user whose decision is awaited, if any.
func CurrentActor(req model.Request) (int, bool) {
	switch req.Status {
	case model.StatusNew:
		return req.SupervisorID, req.SupervisorID != 0
	case model.StatusInProgress:
		i := req.CurrentApproverIndex
		if i >= 0 && i < len(req.Approvers) {
			return req.Approvers[i], true
		}
	}
	return 0, false
}

// IsInitiator reports whether userID raised req.
func IsInitiator(req model.Request, userID int) bool {
	return userID != 0 && req.InitiatorID == userID
}

// Permissions is the full set of affordances a user has on a request.
type Permissions struct {
	Verdict
	IsInitiator      bool   `json:"is_initiator"`
	CanEdit          bool   `json:"can_edit"`
	CanWithdraw      bool   `json:"can_withdraw"`
	CanReinitiate    bool   `json:"can_reinitiate"`
	CanDownloadPDF   bool   `json:"can_download_pdf"`
	DecisionEndpoint string `json:"decision_endpoint,omitempty"`
}

// PermissionsFor extends Resolve with the initiator-side actions.
func PermissionsFor(req model.Request, userID int) Permissions {
	v := Resolve(req, userID)
	initiator := IsInitiator(req, userID)
	p := Permissions{
		Verdict:        v,
		IsInitiator:    initiator,
		CanEdit:        initiator && req.Status == model.StatusNew,
		CanWithdraw:    initiator && req.Status == model.StatusNew,
		CanReinitiate:  initiator && req.Status == model.StatusRejected,
		CanDownloadPDF: req.Status == model.StatusApproved,
	}
	if v.CanAct {
		p.DecisionEndpoint = DecisionEndpoint(v.Role)
	}
	return p
}

// DecisionEndpoint maps a resolved role to the backend path recording its decision.
func DecisionEndpoint(role Role) string {
	switch role {
	case RoleRecommender:
		return client.PathSupervisorReview
	case RoleApprover:
		return client.PathApprove
	default:
		return ""
	}
}
