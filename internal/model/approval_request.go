package model

import "slices"

// ApprovalHierarchy is one completed stage of a request's approval trail.
type ApprovalHierarchy struct {
	Role       string    `json:"role"`
	UserID     int       `json:"user_id"`
	Name       string    `json:"name"`
	Approved   Decision  `json:"approved"`
	ReceivedAt Timestamp `json:"received_at"`
	ActionTime Timestamp `json:"action_time"`
	Comment    string    `json:"comment"`
}

// ApproverAction is the decision one chain approver recorded.
type ApproverAction struct {
	ApproverID int       `json:"approver_id"`
	Approved   Decision  `json:"approved"`
	ActionTime Timestamp `json:"action_time"`
	ReceivedAt Timestamp `json:"received_at"`
	Comment    string    `json:"comment"`
}

// FileDetails describes one attachment stored by the backend.
type FileDetails struct {
	FileURL         string `json:"file_url"`
	FileDisplayName string `json:"file_display_name"`
}

// Trail role labels used by the backend in approval_hierarchy entries.
const (
	TrailRoleSupervisor = "Supervisor"
	TrailRoleApprover   = "Approver"
)

// Request is an NFA ("No Further Action") approval request as served by the
// backend. The backend owns the durable copy; this is a snapshot.
type Request struct {
	ID                   int                 `json:"id"`
	InitiatorID          int                 `json:"initiator_id"`
	SupervisorID         int                 `json:"supervisor_id"`
	Subject              string              `json:"subject"`
	Description          string              `json:"description"`
	Area                 string              `json:"area"`
	Project              string              `json:"project"`
	Tower                string              `json:"tower"`
	Department           string              `json:"department"`
	References           string              `json:"references"`
	Priority             Priority            `json:"priority"`
	Approvers            []int               `json:"approvers"`
	CurrentApproverIndex int                 `json:"current_approver_index"`
	Status               Status              `json:"status"`
	CreatedAt            Timestamp           `json:"created_at"`
	UpdatedAt            Timestamp           `json:"updated_at"`
	LastAction           string              `json:"last_action,omitempty"`
	SupervisorApproved   bool                `json:"supervisor_approved"`
	SupervisorApprovedAt Timestamp           `json:"supervisor_approved_at"`
	InitiatorName        string              `json:"initiator_name"`
	SupervisorName       string              `json:"supervisor_name"`
	PendingAt            string              `json:"pending_at,omitempty"`
	ApproverActions      []ApproverAction    `json:"approver_actions"`
	ApprovalHierarchy    []ApprovalHierarchy `json:"approval_hierarchy"`
	Files                []FileDetails       `json:"files"`
	FileURL              *string             `json:"file_url"`
	FileDisplayName      *string             `json:"file_display_name"`
}

// LastTouched is max(updated_at, created_at).
func (r Request) LastTouched() Timestamp {
	return Later(r.CreatedAt, r.UpdatedAt)
}

// HasAttachments reports whether any file is attached to the request.
func (r Request) HasAttachments() bool {
	return len(r.Files) > 0 || (r.FileURL != nil && *r.FileURL != "")
}

// HasApprover reports whether userID is part of the approval chain.
func (r Request) HasApprover(userID int) bool {
	return slices.Contains(r.Approvers, userID)
}

// ApprovedBy reports whether userID recorded an approval on this request,
// either as supervisor or as a chain approver.
func (r Request) ApprovedBy(userID int) bool {
	if userID == r.SupervisorID && r.SupervisorApproved {
		return true
	}
	for _, a := range r.ApproverActions {
		if a.ApproverID == userID && a.Approved == DecisionApproved {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can derive provisional states without
// touching a shared snapshot.
func (r Request) Clone() Request {
	c := r
	c.Approvers = slices.Clone(r.Approvers)
	c.ApproverActions = slices.Clone(r.ApproverActions)
	c.ApprovalHierarchy = slices.Clone(r.ApprovalHierarchy)
	c.Files = slices.Clone(r.Files)
	return c
}
