package model

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// RoleCodeApprover marks users that may be placed in an approval chain.
const RoleCodeApprover = 1

// User is an account as returned by the backend's /users endpoints.
type User struct {
	ID             int    `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Username       string `json:"username"`
	Role           []int  `json:"role"`
	ProfilePicture string `json:"profile_picture,omitempty"`
}

// CanApprove reports whether the user may be selected as a chain approver.
func (u User) CanApprove() bool {
	return slices.Contains(u.Role, RoleCodeApprover)
}

// Session persists a signed-in user's bearer token. The token itself is only
// stored sealed; TokenKey is a digest used for lookups.
type Session struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	TokenKey    string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"-"`
	SealedToken []byte    `gorm:"type:bytea;not null" json:"-"`
	UserID      int       `gorm:"not null;index" json:"user_id"`
	UserName    string    `gorm:"type:varchar(255)" json:"user_name"`
	Username    string    `gorm:"type:varchar(255)" json:"username"`
	Email       string    `gorm:"type:varchar(255)" json:"email"`
	RoleCodes   []int     `gorm:"type:jsonb;serializer:json" json:"role"`
	ValidatedAt time.Time `json:"validated_at"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// SessionUser rebuilds the cached account a persisted session belongs to.
func (s Session) SessionUser() User {
	return User{ID: s.UserID, Name: s.UserName, Username: s.Username, Email: s.Email, Role: s.RoleCodes}
}
