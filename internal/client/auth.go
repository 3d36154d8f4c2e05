package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"nfaportal/internal/model"
)

// Login exchanges credentials for a bearer token (form-encoded POST /login).
func (c *Client) Login(ctx context.Context, username, password string) (TokenResponse, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	req, err := c.newRequest(ctx, http.MethodPost, "/login", nil, "", strings.NewReader(form.Encode()))
	if err != nil {
		return TokenResponse{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var tok TokenResponse
	if err := c.do(req, &tok); err != nil {
		return TokenResponse{}, fmt.Errorf("failed to login: %w", err)
	}
	if tok.AccessToken == "" {
		return TokenResponse{}, fmt.Errorf("failed to login: %w", ErrAuth)
	}
	return tok, nil
}

// Me resolves the user owning token. A response without an id is treated as
// an invalid token.
func (c *Client) Me(ctx context.Context, token string) (model.User, error) {
	var user model.User
	if err := c.getJSON(ctx, "/users/me", token, &user); err != nil {
		return model.User{}, fmt.Errorf("failed to fetch current user: %w", err)
	}
	if user.ID == 0 {
		return model.User{}, fmt.Errorf("failed to fetch current user: %w", ErrAuth)
	}
	return user, nil
}

// ListUsers returns every user account visible to token.
func (c *Client) ListUsers(ctx context.Context, token string) ([]model.User, error) {
	var users []model.User
	if err := c.getJSON(ctx, "/users/", token, &users); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}
