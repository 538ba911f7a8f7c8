package events

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yeremiapane/restaurant-floor/models"
	"github.com/yeremiapane/restaurant-floor/utils"
)

const DefaultReconnectDelay = 5 * time.Second

// TokenSource supplies the current bearer token.
type TokenSource interface {
	Token() string
}

type Handler func(models.Event)

// Stream subscribes to the backend's per-branch event stream and hands
// creation and table events to a handler.
type Stream struct {
	BaseURL        string
	BranchID       string
	Tokens         TokenSource
	Handler        Handler
	ReconnectDelay time.Duration
	Dialer         *websocket.Dialer

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewStream(baseURL, branchID string, tokens TokenSource, handler Handler) *Stream {
	return &Stream{
		BaseURL:        strings.TrimRight(baseURL, "/"),
		BranchID:       branchID,
		Tokens:         tokens,
		Handler:        handler,
		ReconnectDelay: DefaultReconnectDelay,
		Dialer:         websocket.DefaultDialer,
	}
}

// WebSocketURL turns an http(s) base URL into its ws(s) counterpart.
func WebSocketURL(httpURL string) string {
	switch {
	case strings.HasPrefix(httpURL, "https://"):
		return "wss://" + strings.TrimPrefix(httpURL, "https://")
	case strings.HasPrefix(httpURL, "http://"):
		return "ws://" + strings.TrimPrefix(httpURL, "http://")
	}
	return httpURL
}

func (s *Stream) endpoint(token string) string {
	return s.BaseURL + "/ws/branches/" + url.PathEscape(s.BranchID) + "?token=" + url.QueryEscape(token)
}

func delivered(event string) bool {
	switch event {
	case models.EventReservationCreated, models.EventOrderCreated, models.EventTableUpdate:
		return true
	}
	return false
}

// Run keeps the subscription alive until ctx is cancelled, redialing after
// ReconnectDelay whenever the connection drops.
func (s *Stream) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, s.Close)
	defer stop()

	for {
		if err := s.session(ctx); err != nil && ctx.Err() == nil {
			utils.ErrorLogger.Errorf("Event stream for branch %s: %v", s.BranchID, err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.ReconnectDelay):
		}
	}
}

var errNoToken = errors.New("no bearer token")

func (s *Stream) session(ctx context.Context) error {
	token := s.Tokens.Token()
	if token == "" {
		return errNoToken
	}
	conn, _, err := s.Dialer.DialContext(ctx, s.endpoint(token), nil)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	if ctx.Err() != nil {
		s.Close()
		return ctx.Err()
	}
	utils.InfoLogger.Infof("Subscribed to events for branch %s", s.BranchID)

	defer s.Close()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var evt models.Event
		if err := json.Unmarshal(data, &evt); err != nil {
			utils.ErrorLogger.Errorf("Malformed stream message: %v", err)
			continue
		}
		if evt.BranchID == "" {
			evt.BranchID = s.BranchID
		}
		if delivered(evt.Event) && s.Handler != nil {
			s.Handler(evt)
		}
	}
}

// Close drops the current connection, which unsubscribes from the branch.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}

func (s *Stream) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}
