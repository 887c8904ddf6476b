// Package server exposes the gateway operations over websocket.
//
// Clients send {"type": <operation>, "payload": {<arguments>}} and receive
// the response as an event of the same type. Progress reports of long
// operations arrive as events of the same type with "progress": true before
// the final response. Broadcast events, such as closePort, are sent to every
// client.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/moffa90/go-lightning/gateway"
	"github.com/moffa90/go-lightning/logging"
)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets a logger for connection tracing.
func WithLogger(logger logging.Logger) Option {
	return func(s *Server) {
		s.log = logging.OrNop(logger)
	}
}

// WithCheckOrigin sets the origin policy of the websocket upgrade. The
// default accepts every origin.
func WithCheckOrigin(check func(r *http.Request) bool) Option {
	return func(s *Server) {
		s.upgrader.CheckOrigin = check
	}
}

// Server is an http.Handler upgrading requests to websocket connections.
type Server struct {
	router   *gateway.Router
	hub      *Hub
	log      logging.Logger
	upgrader websocket.Upgrader

	// ctx is canceled by Shutdown, not by a client disconnecting
	ctx    context.Context
	cancel context.CancelFunc

	// mu orders wg.Add against Shutdown's wg.Wait
	mu      sync.Mutex
	closing bool
	wg      sync.WaitGroup
}

// New creates a server dispatching requests to router and registering
// connections with hub.
func New(router *gateway.Router, hub *Hub, opts ...Option) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		router: router,
		hub:    hub,
		log:    logging.Nop(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ServeHTTP upgrades the request and serves the connection until it closes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	closing := s.closing
	s.mu.Unlock()
	if closing {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Info("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &client{conn: conn}
	s.hub.add(c)
	s.log.Info("client connected", "remote", r.RemoteAddr)

	defer func() {
		s.hub.remove(c)
		_ = conn.Close()
		s.log.Info("client disconnected", "remote", r.RemoteAddr)
	}()

	for {
		var ev Event
		if err := conn.ReadJSON(&ev); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("read failed", "remote", r.RemoteAddr, "error", err)
			}
			return
		}
		if ev.Type == "" {
			continue
		}

		if !s.track() {
			return
		}
		go func() {
			defer s.wg.Done()
			s.handle(c, ev)
		}()
	}
}

func (s *Server) handle(c *client, ev Event) {
	args, err := decodeArgs(ev.Payload)
	if err != nil {
		s.reply(c, ev.Type, gateway.Payload("", nil, err))
		return
	}

	progress := func(data map[string]interface{}) {
		s.reply(c, ev.Type, data)
	}
	s.reply(c, ev.Type, s.router.Handle(s.ctx, ev.Type, args, progress))
}

func (s *Server) reply(c *client, eventType string, payload interface{}) {
	if err := c.send(eventType, payload); err != nil {
		s.log.Info("reply failed", "type", eventType, "error", err)
	}
}

// decodeArgs accepts a JSON object, null or nothing.
func decodeArgs(raw json.RawMessage) (map[string]interface{}, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return map[string]interface{}{}, nil
	}

	var args map[string]interface{}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, &gateway.ValidationError{Param: "payload", Reason: "Payload should be an object", Err: err}
	}
	return args, nil
}

// track registers a request with the WaitGroup unless Shutdown has started.
func (s *Server) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.wg.Add(1)
	return true
}

// Shutdown stops accepting requests, closes every connection, cancels running
// operations and waits for them to return. It is safe to call more than once.
func (s *Server) Shutdown() {
	s.mu.Lock()
	s.closing = true
	s.cancel()
	s.mu.Unlock()

	s.hub.closeAll()
	s.wg.Wait()
}
