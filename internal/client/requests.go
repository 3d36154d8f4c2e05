package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"nfaportal/internal/model"
)

// Decision endpoints. The engine picks one from the actor's resolved role.
const (
	PathSupervisorReview = "/requests/supervisor-review"
	PathApprove          = "/requests/approve"
)

// ListRequests returns every request the backend lets token see.
func (c *Client) ListRequests(ctx context.Context, token string) ([]model.Request, error) {
	var requests []model.Request
	if err := c.getJSON(ctx, "/requests/", token, &requests); err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	return requests, nil
}

// GetRequest fetches a single request.
func (c *Client) GetRequest(ctx context.Context, token string, id int) (model.Request, error) {
	var req model.Request
	if err := c.getJSON(ctx, "/requests/"+strconv.Itoa(id), token, &req); err != nil {
		return model.Request{}, fmt.Errorf("failed to get request %d: %w", id, err)
	}
	return req, nil
}

// CreateRequest raises a new request (multipart POST /requests/).
func (c *Client) CreateRequest(ctx context.Context, token string, form RequestForm) (model.Request, error) {
	var created model.Request
	if err := c.sendForm(ctx, http.MethodPost, "/requests/", nil, token, form, nil, &created); err != nil {
		return model.Request{}, fmt.Errorf("failed to create request: %w", err)
	}
	return created, nil
}

// UpdateRequest edits a request in place (multipart PUT /requests/{id}).
func (c *Client) UpdateRequest(ctx context.Context, token string, id int, form RequestForm) (model.Request, error) {
	var updated model.Request
	if err := c.sendForm(ctx, http.MethodPut, "/requests/"+strconv.Itoa(id), nil, token, form, nil, &updated); err != nil {
		return model.Request{}, fmt.Errorf("failed to update request %d: %w", id, err)
	}
	return updated, nil
}

// SupervisorReview records the recommender-stage decision.
func (c *Client) SupervisorReview(ctx context.Context, token string, decision DecisionRequest) error {
	if err := c.postJSON(ctx, PathSupervisorReview, token, decision, nil); err != nil {
		return fmt.Errorf("failed to submit supervisor review for request %d: %w", decision.RequestID, err)
	}
	return nil
}

// Approve records an approver-stage decision.
func (c *Client) Approve(ctx context.Context, token string, decision DecisionRequest) error {
	if err := c.postJSON(ctx, PathApprove, token, decision, nil); err != nil {
		return fmt.Errorf("failed to submit approval for request %d: %w", decision.RequestID, err)
	}
	return nil
}

// SubmitDecision posts decision to path, which must be one of the decision endpoints.
func (c *Client) SubmitDecision(ctx context.Context, token, path string, decision DecisionRequest) error {
	switch path {
	case PathSupervisorReview:
		return c.SupervisorReview(ctx, token, decision)
	case PathApprove:
		return c.Approve(ctx, token, decision)
	default:
		return fmt.Errorf("unknown decision endpoint %q", path)
	}
}

// Reinitiate resets a rejected request (multipart POST /requests/reinitiate?request_id=).
func (c *Client) Reinitiate(ctx context.Context, token string, id int, form ReinitiateForm) error {
	query := url.Values{}
	query.Set("request_id", strconv.Itoa(id))
	extra := map[string]string{"edit_details": strconv.FormatBool(form.EditDetails)}

	if err := c.sendForm(ctx, http.MethodPost, "/requests/reinitiate", query, token, form.RequestForm, extra, nil); err != nil {
		return fmt.Errorf("failed to reinitiate request %d: %w", id, err)
	}
	return nil
}

// Withdraw withdraws a NEW request (DELETE /requests/{id}/withdraw).
func (c *Client) Withdraw(ctx context.Context, token string, id int) error {
	if token == "" {
		return ErrAuth
	}
	req, err := c.newRequest(ctx, http.MethodDelete, "/requests/"+strconv.Itoa(id)+"/withdraw", nil, token, nil)
	if err != nil {
		return err
	}
	if err := c.do(req, nil); err != nil {
		return fmt.Errorf("failed to withdraw request %d: %w", id, err)
	}
	return nil
}

// DownloadPDF streams the final document. The caller closes Document.Body.
func (c *Client) DownloadPDF(ctx context.Context, token string, id int) (*Document, error) {
	if token == "" {
		return nil, ErrAuth
	}
	req, err := c.newRequest(ctx, http.MethodGet, "/requests/"+strconv.Itoa(id)+"/pdf", nil, canonicalBearer(token), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/pdf")

	resp, err := c.send(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download pdf for request %d: %w", id, err)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/pdf"
	}
	return &Document{
		Filename:    fmt.Sprintf("nfa_%d.pdf", id),
		ContentType: contentType,
		Body:        resp.Body,
	}, nil
}

// canonicalBearer upper-cases a lower-case "bearer " scheme; the PDF endpoint
// is stricter about it than the rest of the API.
func canonicalBearer(token string) string {
	if strings.HasPrefix(token, "bearer ") {
		return "Bearer " + strings.TrimPrefix(token, "bearer ")
	}
	return token
}
