package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"nfaportal/internal/model"
	"nfaportal/internal/repository"

	"github.com/rs/zerolog"
)

type AuditLogResponse struct {
	ID        string         `json:"id"`
	UserID    int            `json:"user_id"`
	UserName  string         `json:"user_name"`
	Action    string         `json:"action"`
	RequestID int            `json:"request_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt string         `json:"created_at"`
}

type AuditFilter struct {
	RequestID int
	UserID    int
	Action    string
	From      time.Time
	To        time.Time
	Page      int
	Limit     int
}

type AuditService interface {
	// Record writes one entry. Failures are logged, never returned: the
	// upstream call it describes has already succeeded.
	Record(ctx context.Context, user model.User, action string, requestID int, details map[string]any)
	// Append writes one entry and reports failure, for callers that must
	// roll back with it.
	Append(ctx context.Context, user model.User, action string, requestID int, details map[string]any) error
	GetAuditLogs(ctx context.Context, filter AuditFilter) ([]AuditLogResponse, int64, error)
}

type auditService struct {
	repo repository.AuditRepository
	log  zerolog.Logger
}

// NewAuditService creates a new AuditService instance
func NewAuditService(repo repository.AuditRepository, log zerolog.Logger) AuditService {
	return &auditService{repo: repo, log: log.With().Str("component", "audit").Logger()}
}

func (s *auditService) Record(ctx context.Context, user model.User, action string, requestID int, details map[string]any) {
	if err := s.Append(ctx, user, action, requestID, details); err != nil {
		s.log.Warn().Err(err).
			Str("action", action).
			Int("user_id", user.ID).
			Int("request_id", requestID).
			Msg("failed to write audit log")
	}
}

func (s *auditService) Append(ctx context.Context, user model.User, action string, requestID int, details map[string]any) error {
	raw := []byte("{}")
	if len(details) > 0 {
		b, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("failed to encode audit details: %w", err)
		}
		raw = b
	}

	entry := &model.AuditLog{
		UserID:    user.ID,
		UserName:  user.Name,
		Action:    action,
		RequestID: requestID,
		Details:   string(raw),
	}
	if err := s.repo.Log(ctx, entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

// GetAuditLogs returns one page of entries, newest first.
func (s *auditService) GetAuditLogs(ctx context.Context, filter AuditFilter) ([]AuditLogResponse, int64, error) {
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return nil, 0, &ValidationError{Fields: map[string]string{"to": "must not be before from"}}
	}
	logs, total, err := s.repo.List(ctx, repository.AuditFilter{
		UserID:    filter.UserID,
		RequestID: filter.RequestID,
		Action:    filter.Action,
		From:      filter.From,
		To:        filter.To,
	}, filter.Page, filter.Limit)
	if err != nil {
		return nil, 0, err
	}

	res := make([]AuditLogResponse, 0, len(logs))
	for _, l := range logs {
		var details map[string]any
		if l.Details != "" {
			_ = json.Unmarshal([]byte(l.Details), &details)
		}
		res = append(res, AuditLogResponse{
			ID:        l.ID.String(),
			UserID:    l.UserID,
			UserName:  l.UserName,
			Action:    l.Action,
			RequestID: l.RequestID,
			Details:   details,
			CreatedAt: l.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}

	return res, total, nil
}
