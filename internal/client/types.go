package client

import (
	"io"

	"nfaportal/internal/model"
)

// TokenResponse is the body of a successful POST /login.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Bearer returns the Authorization header value for the token.
func (t TokenResponse) Bearer() string {
	if t.TokenType == "" {
		return "Bearer " + t.AccessToken
	}
	return t.TokenType + " " + t.AccessToken
}

// DecisionRequest is the body of the supervisor-review and approve endpoints.
type DecisionRequest struct {
	RequestID int    `json:"request_id"`
	Approved  bool   `json:"approved"`
	Comment   string `json:"comment"`
}

// Upload is one file forwarded to the backend as a "files" part.
type Upload struct {
	Name        string
	ContentType string
	Content     io.Reader
}

// RequestForm carries the multipart fields of create, edit and re-initiate.
type RequestForm struct {
	InitiatorID  int
	SupervisorID int
	Subject      string
	Description  string
	Area         string
	Project      string
	Tower        string
	Department   string
	References   string
	Priority     model.Priority
	Approvers    []int
	Files        []Upload
}

// ReinitiateForm is the re-initiate payload. When EditDetails is false the
// backend keeps the stored approvers and priority.
type ReinitiateForm struct {
	RequestForm
	EditDetails bool
}

// Document is a downloaded binary (the approval PDF).
type Document struct {
	Filename    string
	ContentType string
	Body        io.ReadCloser
}
