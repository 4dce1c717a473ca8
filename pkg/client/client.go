// Package client is the editing-session side of the sync engine: it mirrors a
// room's parts and properties, applies server broadcasts exactly once in
// arrival order, performs optimistic local drag math, and manages the
// reconnection policy. Rendering code reads the mirror; it never writes it.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/prottoy/tableproto-backend/pkg/board"
	"github.com/prottoy/tableproto-backend/pkg/wire"
)

var ErrClosed = errors.New("session closed")

const (
	defaultRenewInterval = 500 * time.Millisecond
	defaultRedialWait    = 250 * time.Millisecond
	handshakeTimeout     = 10 * time.Second
	writeTimeout         = 3 * time.Second
)

type Config struct {
	URL                string // websocket endpoint
	PrototypeVersionID string
	UserID             string
	Username           string
	Canvas             board.Canvas

	// RenewInterval paces SELECT re-sends while parts are selected, keeping
	// leases alive. Must be comfortably below the server's lease TTL.
	RenewInterval time.Duration
	// RedialWait is the pause between failed reconnect attempts. The first
	// attempt after a drop is always immediate.
	RedialWait time.Duration
	Logger     *zap.Logger
	// OnFatal fires when the connection drops for a reason outside the known
	// set. The app should show a blocking reload notice; the session will not
	// reconnect on its own.
	OnFatal func(reason string)
}

type subscriber struct {
	id int
	fn func(wire.ServerEvent)
}

type Session struct {
	cfg Config
	log *zap.Logger

	mu    sync.Mutex
	conn  *websocket.Conn
	send  func(wire.ClientEvent) error // swappable in tests
	parts map[string]board.Part
	props map[board.PropKey]board.PartProperty
	users []wire.User
	curs  []wire.Cursor

	selections map[string]map[string]bool // userID -> selected part ids
	selection  map[string]bool            // this member's selection
	origins    map[string]board.Point     // drag-origin per selected part

	handlers map[string][]subscriber
	nextSub  int

	lastCursorAt  time.Time
	lastCursorPos board.Point

	closed bool
	done   chan struct{}
}

func newSession(cfg Config) *Session {
	if cfg.RenewInterval <= 0 {
		cfg.RenewInterval = defaultRenewInterval
	}
	if cfg.RedialWait <= 0 {
		cfg.RedialWait = defaultRedialWait
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	s := &Session{
		cfg:        cfg,
		log:        cfg.Logger.With(zap.String("client", cfg.UserID)),
		parts:      make(map[string]board.Part),
		props:      make(map[board.PropKey]board.PartProperty),
		selections: make(map[string]map[string]bool),
		selection:  make(map[string]bool),
		handlers:   make(map[string][]subscriber),
		done:       make(chan struct{}),
	}
	s.send = s.writeEvent
	return s
}

// Dial connects, performs the JOIN handshake, waits for the initial snapshot,
// and starts the event pump and lease-renewal loops.
func Dial(ctx context.Context, cfg Config) (*Session, error) {
	s := newSession(cfg)
	if err := s.connect(ctx); err != nil {
		return nil, err
	}
	go s.run(ctx)
	go s.renewLoop(ctx)
	return s, nil
}

// connect dials, joins, and blocks until INITIAL_STATE rebuilds the mirror.
func (s *Session) connect(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, s.cfg.URL, nil)
	if err != nil {
		return err
	}

	join := wire.ClientEvent{
		Type:               wire.EvtJoin,
		PrototypeVersionID: s.cfg.PrototypeVersionID,
		UserID:             s.cfg.UserID,
		Username:           s.cfg.Username,
	}
	payload, err := json.Marshal(join)
	if err != nil {
		conn.Close(websocket.StatusInternalError, "")
		return err
	}
	if err := conn.Write(dialCtx, websocket.MessageText, payload); err != nil {
		conn.Close(websocket.StatusInternalError, "")
		return err
	}

	// events before INITIAL_STATE would predate our join; none are expected
	for {
		_, data, err := conn.Read(dialCtx)
		if err != nil {
			conn.Close(websocket.StatusInternalError, "")
			return err
		}
		var ev wire.ServerEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			continue
		}
		if ev.Type != wire.EvtInitialState {
			continue
		}
		s.mu.Lock()
		if s.closed {
			// Close landed while the handshake was in flight; nobody will
			// ever close this conn if we install it
			s.mu.Unlock()
			conn.Close(websocket.StatusNormalClosure, "bye")
			return ErrClosed
		}
		s.conn = conn
		s.applyLocked(ev)
		s.mu.Unlock()
		s.dispatch(ev)
		return nil
	}
}

// run pumps incoming events until the session ends, reconnecting per policy:
// transport errors and expected closes redial immediately; a deliberate local
// Close stops; anything else is fatal.
func (s *Session) run(ctx context.Context) {
	for {
		err := s.pump(ctx)
		if s.isClosed() || ctx.Err() != nil {
			return
		}

		if !s.shouldReconnect(err) {
			reason := "connection closed unexpectedly"
			if err != nil {
				reason = err.Error()
			}
			s.log.Error("fatal disconnect", zap.Error(err))
			if s.cfg.OnFatal != nil {
				s.cfg.OnFatal(reason)
			}
			s.Close()
			return
		}

		s.log.Warn("connection lost, reconnecting", zap.Error(err))
		if !s.redial(ctx) {
			return
		}
	}
}

// shouldReconnect classifies a pump error. No close frame means a transport
// error; normal closure and going-away are expected server-side drops. Any
// other close status is outside the known set.
func (s *Session) shouldReconnect(err error) bool {
	switch websocket.CloseStatus(err) {
	case -1:
		return true
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	}
	return false
}

// redial retries until connected: first attempt immediately, then a short
// fixed wait between attempts, indefinitely. Reports false once the session
// is closed or the context ends.
func (s *Session) redial(ctx context.Context) bool {
	for {
		if s.isClosed() || ctx.Err() != nil {
			return false
		}
		err := s.connect(ctx)
		if err == nil {
			// mirror was rebuilt from the fresh snapshot; re-assert our
			// selection so leases come back
			_ = s.sendSelection()
			return true
		}
		s.log.Warn("reconnect attempt failed", zap.Error(err))
		select {
		case <-time.After(s.cfg.RedialWait):
		case <-s.done:
			return false
		case <-ctx.Done():
			return false
		}
	}
}

// pump applies each incoming event exactly once, in arrival order.
func (s *Session) pump(ctx context.Context) error {
	for {
		conn := s.currentConn()
		if conn == nil {
			return ErrClosed
		}
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		var ev wire.ServerEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			s.log.Warn("dropping malformed server event", zap.Error(err))
			continue
		}

		s.mu.Lock()
		followup := s.applyLocked(ev)
		s.mu.Unlock()
		if followup != nil {
			followup()
		}
		s.dispatch(ev)
	}
}

// renewLoop re-sends SELECT while parts are selected, so the server keeps the
// leases alive for the whole time the member is holding them.
func (s *Session) renewLoop(ctx context.Context) {
	tick := time.NewTicker(s.cfg.RenewInterval)
	defer tick.Stop()
	for {
		select {
		case <-tick.C:
			s.mu.Lock()
			holding := len(s.selection) > 0
			s.mu.Unlock()
			if holding {
				s.sendSelection()
			}
		case <-s.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Subscribe registers a handler for one server event kind. Handlers run on
// the pump goroutine in registration order. The returned func unsubscribes;
// call it on session teardown regardless of exit path.
func (s *Session) Subscribe(kind string, fn func(wire.ServerEvent)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSub++
	id := s.nextSub
	s.handlers[kind] = append(s.handlers[kind], subscriber{id: id, fn: fn})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		subs := s.handlers[kind]
		for i, sub := range subs {
			if sub.id == id {
				s.handlers[kind] = append(subs[:i:i], subs[i+1:]...)
				break
			}
		}
	}
}

func (s *Session) dispatch(ev wire.ServerEvent) {
	s.mu.Lock()
	subs := make([]subscriber, len(s.handlers[ev.Type]))
	copy(subs, s.handlers[ev.Type])
	s.mu.Unlock()
	for _, sub := range subs {
		sub.fn(ev)
	}
}

// Close deliberately ends the session; no reconnect follows.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	conn := s.conn
	s.conn = nil
	close(s.done)
	s.mu.Unlock()

	if conn != nil {
		return conn.Close(websocket.StatusNormalClosure, "bye")
	}
	return nil
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) currentConn() *websocket.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

func (s *Session) writeEvent(ev wire.ClientEvent) error {
	conn := s.currentConn()
	if conn == nil {
		return ErrClosed
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, payload)
}
