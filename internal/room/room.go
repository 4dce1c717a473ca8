// Package room implements the authoritative state for one prototype version
// being edited live. Every mutation for a room flows through a single loop
// goroutine, so all members observe changes in the same total order.
package room

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/prottoy/tableproto-backend/pkg/board"
	"github.com/prottoy/tableproto-backend/pkg/wire"
)

// DefaultLeaseTTL is how long a selection lease stays active without renewal.
// Long enough to ride out jitter between renewal broadcasts, short enough that
// an abandoned tab's lock clears promptly. Tunable via config.
const DefaultLeaseTTL = 1500 * time.Millisecond

type member struct {
	userID   string
	username string
	outbox   chan wire.ServerEvent
}

type lease struct {
	userID    string
	username  string
	expiresAt time.Time
}

type Options struct {
	ID       string
	Canvas   board.Canvas
	LeaseTTL time.Duration
	Logger   *zap.Logger
	Now      func() time.Time // test hook; defaults to time.Now
	// OnEmpty runs on the room goroutine right before the room shuts itself
	// down after its last member leaves.
	OnEmpty func(parts []board.Part, props []board.PartProperty)
}

type Room struct {
	inbox   chan Msg
	id      string
	canvas  board.Canvas
	ttl     time.Duration
	now     func() time.Time
	onEmpty func(parts []board.Part, props []board.PartProperty)
	log     *zap.Logger

	parts   map[string]board.Part
	props   map[board.PropKey]board.PartProperty
	members map[string]*member
	leases  map[string]lease
	cursors map[string]wire.Cursor

	ctx    context.Context
	cancel context.CancelFunc
}

func New(parent context.Context, opts Options, parts []board.Part, props []board.PartProperty) *Room {
	ctx, cancel := context.WithCancel(parent)
	if opts.LeaseTTL <= 0 {
		opts.LeaseTTL = DefaultLeaseTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	r := &Room{
		inbox:   make(chan Msg, 64),
		id:      opts.ID,
		canvas:  opts.Canvas,
		ttl:     opts.LeaseTTL,
		now:     opts.Now,
		onEmpty: opts.OnEmpty,
		log:     opts.Logger.With(zap.String("room", opts.ID)),
		parts:   make(map[string]board.Part, len(parts)),
		props:   make(map[board.PropKey]board.PartProperty, len(props)),
		members: make(map[string]*member),
		leases:  make(map[string]lease),
		cursors: make(map[string]wire.Cursor),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, p := range parts {
		r.parts[p.ID] = p
	}
	for _, pr := range props {
		r.props[pr.Key()] = pr
	}

	go r.loop()
	return r
}

// Inbox is where the WS layer (and tests) send messages.
func (r *Room) Inbox() chan<- Msg { return r.inbox }

// Done closes once the room has shut down (last member left or explicit
// Shutdown). Senders should select against it to avoid writing into a dead
// inbox.
func (r *Room) Done() <-chan struct{} { return r.ctx.Done() }

func (r *Room) loop() {
	sweep := time.NewTicker(r.ttl / 3)
	defer sweep.Stop()

	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case <-sweep.C:
			r.sweepLeases()

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Join:
				r.handleJoin(msg)
			case Leave:
				if r.handleLeave(msg.UserID, msg.Outbox) {
					return
				}
			case AddPart:
				r.handleAdd(msg)
			case UpdateParts:
				r.handleUpdate(msg)
			case DeleteParts:
				r.handleDelete(msg)
			case ReorderPart:
				r.handleReorder(msg)
			case FlipCard:
				r.handleFlip(msg)
			case SelectParts:
				r.handleSelect(msg)
			case MoveCursor:
				r.handleCursor(msg)
			case GetView:
				msg.Reply <- r.view()
			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

func (r *Room) shutdown() {
	for id, m := range r.members {
		close(m.outbox)
		delete(r.members, id)
		membersGauge.Dec()
	}
	r.cancel()
}

func (r *Room) handleJoin(msg Join) {
	if old, ok := r.members[msg.UserID]; ok {
		// same member reconnecting: the stale outbox ends its writer
		close(old.outbox)
	} else {
		membersGauge.Inc()
	}
	r.members[msg.UserID] = &member{userID: msg.UserID, username: msg.Username, outbox: msg.Outbox}

	msg.Outbox <- wire.ServerEvent{
		Type:       wire.EvtInitialState,
		Parts:      r.partList(),
		Properties: r.propList(),
	}
	// existing selections, so the joiner can grey out locked parts right away
	for _, sel := range r.selectionEvents() {
		if sel.UserID != msg.UserID {
			msg.Outbox <- sel
		}
	}
	r.broadcast(wire.ServerEvent{Type: wire.EvtPresence, Users: r.roster()})
}

// handleLeave reports whether the room emptied and shut down. A non-nil
// outbox identifies the leaving session: if it no longer matches the current
// member, the leave is from a connection that was already replaced by a
// reconnect and is ignored.
func (r *Room) handleLeave(userID string, outbox chan wire.ServerEvent) bool {
	m, ok := r.members[userID]
	if !ok {
		return false
	}
	if outbox != nil && m.outbox != outbox {
		return false
	}
	r.dropSelection(userID, m.username)
	if _, had := r.cursors[userID]; had {
		delete(r.cursors, userID)
		r.broadcast(wire.ServerEvent{Type: wire.EvtCursors, Cursors: r.cursorList()})
	}
	close(m.outbox)
	delete(r.members, userID)
	membersGauge.Dec()

	if len(r.members) == 0 {
		if r.onEmpty != nil {
			r.onEmpty(r.partList(), r.propList())
		}
		r.cancel()
		return true
	}
	r.broadcast(wire.ServerEvent{Type: wire.EvtPresence, Users: r.roster()})
	return false
}

func (r *Room) handleCursor(msg MoveCursor) {
	m, ok := r.members[msg.UserID]
	if !ok {
		return
	}
	r.cursors[msg.UserID] = wire.Cursor{
		UserID:      msg.UserID,
		Username:    m.username,
		Position:    msg.Position,
		LastUpdated: r.now(),
	}
	r.broadcast(wire.ServerEvent{Type: wire.EvtCursors, Cursors: r.cursorList()})
}

// broadcast sends to every member; a member whose outbox is full is dropped,
// the same way the WS layer would drop a dead connection.
func (r *Room) broadcast(ev wire.ServerEvent) {
	var dead []string
	for id, m := range r.members {
		select {
		case m.outbox <- ev:
		default:
			dead = append(dead, id)
		}
	}
	for _, id := range dead {
		r.log.Warn("dropping slow member", zap.String("user", id))
		r.handleLeave(id, nil)
	}
}

// broadcastExcept sends to everyone but one member.
func (r *Room) broadcastExcept(userID string, ev wire.ServerEvent) {
	var dead []string
	for id, m := range r.members {
		if id == userID {
			continue
		}
		select {
		case m.outbox <- ev:
		default:
			dead = append(dead, id)
		}
	}
	for _, id := range dead {
		r.log.Warn("dropping slow member", zap.String("user", id))
		r.handleLeave(id, nil)
	}
}

// sendTo delivers an event to a single member (acks and rejections).
func (r *Room) sendTo(userID string, ev wire.ServerEvent) {
	m, ok := r.members[userID]
	if !ok {
		return
	}
	select {
	case m.outbox <- ev:
	default:
		r.log.Warn("dropping slow member", zap.String("user", userID))
		r.handleLeave(userID, nil)
	}
}

func (r *Room) partList() []board.Part {
	out := make([]board.Part, 0, len(r.parts))
	for _, p := range r.parts {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *Room) propList() []board.PartProperty {
	out := make([]board.PartProperty, 0, len(r.props))
	for _, pr := range r.props {
		out = append(out, pr)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PartID != out[j].PartID {
			return out[i].PartID < out[j].PartID
		}
		return out[i].Side < out[j].Side
	})
	return out
}

func (r *Room) roster() []wire.User {
	out := make([]wire.User, 0, len(r.members))
	for _, m := range r.members {
		out = append(out, wire.User{UserID: m.userID, Username: m.username})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

func (r *Room) cursorList() []wire.Cursor {
	out := make([]wire.Cursor, 0, len(r.cursors))
	for _, c := range r.cursors {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

func (r *Room) view() View {
	v := View{
		NumMembers: len(r.members),
		Parts:      make(map[string]board.Part, len(r.parts)),
		Properties: make(map[board.PropKey]board.PartProperty, len(r.props)),
		Leases:     make(map[string]LeaseView, len(r.leases)),
		Cursors:    make(map[string]wire.Cursor, len(r.cursors)),
	}
	for id, p := range r.parts {
		v.Parts[id] = p
	}
	for k, pr := range r.props {
		v.Properties[k] = pr
	}
	for id, l := range r.leases {
		v.Leases[id] = LeaseView{UserID: l.userID, ExpiresAt: l.expiresAt}
	}
	for id, c := range r.cursors {
		v.Cursors[id] = c
	}
	return v
}
