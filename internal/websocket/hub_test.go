package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nfaportal/internal/model"
	"nfaportal/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tokenResolver map[string]int

func (r tokenResolver) Resolve(_ context.Context, token string) (*session.Session, error) {
	id, ok := r[token]
	if !ok {
		return nil, errors.New("unknown token")
	}
	return &session.Session{Token: token, User: model.User{ID: id}}, nil
}

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub(nil, zerolog.Nop())
	go hub.Run(ctx)

	resolver := tokenResolver{"Bearer alice": 1, "Bearer bob": 2}
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) { ServeWs(hub, resolver, c) })
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitConnected(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Connected() == n }, time.Second, 10*time.Millisecond)
}

func TestServeWsRejectsUnknownToken(t *testing.T) {
	_, srv := startHub(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=mallory"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPublishTargetsUsers(t *testing.T) {
	hub, srv := startHub(t)
	alice := dial(t, srv, "alice")
	bob := dial(t, srv, "bob")
	waitConnected(t, hub, 2)

	hub.Publish(Event{Type: EventSessionExpired, UserIDs: []int{2}})
	hub.Publish(Event{Type: EventRequestsChanged, RequestID: 9})

	_ = bob.SetReadDeadline(time.Now().Add(time.Second))
	_, first, err := bob.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"session_expired"}`, string(first))

	_ = alice.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := alice.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"requests_changed","request_id":9}`, string(msg))
}
