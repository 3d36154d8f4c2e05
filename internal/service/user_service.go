package service

import (
	"context"
	"fmt"
	"strings"

	"nfaportal/internal/model"
	"nfaportal/internal/repository"
	"nfaportal/internal/session"
	"nfaportal/internal/store"
	"nfaportal/internal/websocket"
	"nfaportal/internal/workflow"

	"github.com/rs/zerolog"
)

// DTOs for Request validation
type LoginUserRequest struct {
	Username string `json:"username" form:"username" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

type LoginResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        UserResponse `json:"user"`
}

// UserResponse is a backend account as the portal exposes it.
type UserResponse struct {
	ID             int    `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Username       string `json:"username"`
	Role           []int  `json:"role"`
	CanApprove     bool   `json:"can_approve"`
	ProfilePicture string `json:"profile_picture,omitempty"`
}

// SessionManager is the session lifecycle the user service drives.
type SessionManager interface {
	Login(ctx context.Context, username, password string) (*session.Session, error)
	Revoke(ctx context.Context, token string) error
	Forget(token string)
}

// UserDirectory lists the backend's accounts.
type UserDirectory interface {
	ListUsers(ctx context.Context, token string) ([]model.User, error)
}

// UserService defines the interface for business logic related to User
type UserService interface {
	Login(ctx context.Context, req LoginUserRequest) (*LoginResponse, error)
	Logout(ctx context.Context, s *session.Session) error
	Me(s *session.Session) UserResponse
	ListUsers(ctx context.Context, actor workflow.Actor) ([]UserResponse, error)
	ListApprovers(ctx context.Context, actor workflow.Actor) ([]UserResponse, error)
	HandleExpired(s session.Session)
}

type userService struct {
	sessions  SessionManager
	directory UserDirectory
	registry  *store.Registry
	tx        repository.TransactionManager
	audit     AuditService
	events    EventPublisher
	log       zerolog.Logger
}

// NewUserService wires sign-in, sign-out and the user pickers. tx may be nil
// when the portal runs without its database.
func NewUserService(
	sessions SessionManager,
	directory UserDirectory,
	registry *store.Registry,
	tx repository.TransactionManager,
	audit AuditService,
	events EventPublisher,
	log zerolog.Logger,
) UserService {
	if tx == nil {
		tx = repository.NewTransactionManager(nil)
	}
	return &userService{
		sessions:  sessions,
		directory: directory,
		registry:  registry,
		tx:        tx,
		audit:     audit,
		events:    events,
		log:       log.With().Str("component", "users").Logger(),
	}
}

func (s *userService) Login(ctx context.Context, req LoginUserRequest) (*LoginResponse, error) {
	sess, err := s.sessions.Login(ctx, strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		return nil, err
	}
	// a fresh login starts from a fresh collection
	s.registry.For(sess.User.ID, sess.Token).Invalidate()
	s.audit.Record(ctx, sess.User, model.ActionLogin, 0, nil)

	tokenType, accessToken, found := strings.Cut(sess.Token, " ")
	if !found {
		tokenType, accessToken = "bearer", sess.Token
	}
	return &LoginResponse{
		AccessToken: accessToken,
		TokenType:   tokenType,
		User:        toUserResponse(sess.User),
	}, nil
}

// Logout deletes the persisted session and records the audit entry in one
// transaction. The live session and the user's store go only after it commits.
func (s *userService) Logout(ctx context.Context, sess *session.Session) error {
	if sess == nil {
		return nil
	}
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.sessions.Revoke(txCtx, sess.Token); err != nil {
			return err
		}
		return s.audit.Append(txCtx, sess.User, model.ActionLogout, 0, nil)
	})
	if err != nil {
		s.log.Warn().Err(err).Int("user_id", sess.User.ID).Msg("logout transaction failed")
		return fmt.Errorf("failed to sign out: %w", err)
	}
	s.sessions.Forget(sess.Token)
	s.registry.Drop(sess.User.ID)
	return nil
}

func (s *userService) Me(sess *session.Session) UserResponse {
	return toUserResponse(sess.User)
}

// ListUsers returns every account except the caller (recommender picker).
func (s *userService) ListUsers(ctx context.Context, actor workflow.Actor) ([]UserResponse, error) {
	return s.list(ctx, actor, func(model.User) bool { return true })
}

// ListApprovers returns accounts eligible for the approval chain, except the caller.
func (s *userService) ListApprovers(ctx context.Context, actor workflow.Actor) ([]UserResponse, error) {
	return s.list(ctx, actor, model.User.CanApprove)
}

// HandleExpired is the session manager's expiry hook.
func (s *userService) HandleExpired(sess session.Session) {
	s.registry.Drop(sess.User.ID)
	s.audit.Record(context.Background(), sess.User, model.ActionSessionExpired, 0, nil)
	if s.events != nil {
		s.events.Publish(websocket.Event{Type: websocket.EventSessionExpired, UserIDs: []int{sess.User.ID}})
	}
	s.log.Info().Int("user_id", sess.User.ID).Msg("session expired")
}

func (s *userService) list(ctx context.Context, actor workflow.Actor, keep func(model.User) bool) ([]UserResponse, error) {
	users, err := s.directory.ListUsers(ctx, actor.Token)
	if err != nil {
		return nil, err
	}
	res := make([]UserResponse, 0, len(users))
	for _, u := range users {
		if u.ID == actor.User.ID || !keep(u) {
			continue
		}
		res = append(res, toUserResponse(u))
	}
	return res, nil
}

func toUserResponse(u model.User) UserResponse {
	return UserResponse{
		ID:             u.ID,
		Name:           u.Name,
		Email:          u.Email,
		Username:       u.Username,
		Role:           u.Role,
		CanApprove:     u.CanApprove(),
		ProfilePicture: u.ProfilePicture,
	}
}
