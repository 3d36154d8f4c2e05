package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	ActionLogin            = "LOGIN"
	ActionLogout           = "LOGOUT"
	ActionSessionExpired   = "SESSION_EXPIRED"
	ActionCreateRequest    = "CREATE_REQUEST"
	ActionUpdateRequest    = "UPDATE_REQUEST"
	ActionSupervisorReview = "SUPERVISOR_REVIEW"
	ActionApproverDecision = "APPROVER_DECISION"
	ActionWithdrawRequest  = "WITHDRAW_REQUEST"
	ActionReinitiate       = "REINITIATE_REQUEST"
	ActionDownloadPDF      = "DOWNLOAD_PDF"
)

// AuditLog records every mutating call a user made through the portal.
// The backend's approval_hierarchy stays the authoritative trail.
type AuditLog struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID    int       `gorm:"index" json:"user_id"`
	UserName  string    `gorm:"type:varchar(255)" json:"user_name"`
	Action    string    `gorm:"type:varchar(50);not null;index" json:"action"`
	RequestID int       `gorm:"index" json:"request_id,omitempty"`
	Details   string    `gorm:"type:jsonb" json:"details"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}
