// Package hub is the room registry: it creates a Room on first join for a
// prototype version, hands sessions into it, and tears it down (saving to the
// store) once the last member leaves.
package hub

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/prottoy/tableproto-backend/internal/room"
	"github.com/prottoy/tableproto-backend/internal/store"
	"github.com/prottoy/tableproto-backend/pkg/board"
)

var roomsGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "tableproto_rooms_open",
	Help: "Rooms currently open.",
})

type HubMsg interface{ isHubMsg() }

type EnsureRoom struct {
	VersionID string
	Reply     chan *room.Room
}

type GetRoom struct {
	VersionID string
	Reply     chan *room.Room
}

type removeRoom struct {
	VersionID string
	Room      *room.Room
	Snap      store.Snapshot
}

type ShutdownHub struct{}

func (EnsureRoom) isHubMsg()  {}
func (GetRoom) isHubMsg()     {}
func (removeRoom) isHubMsg()  {}
func (ShutdownHub) isHubMsg() {}

type Options struct {
	Canvas   board.Canvas
	LeaseTTL time.Duration
	Store    store.Store
	Logger   *zap.Logger
}

type Hub struct {
	inbox  chan HubMsg
	rooms  map[string]*room.Room
	opts   Options
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(parent context.Context, opts Options) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Store == nil {
		opts.Store = store.NewMemoryStore()
	}
	h := &Hub{
		inbox:  make(chan HubMsg, 64),
		rooms:  make(map[string]*room.Room),
		opts:   opts,
		log:    opts.Logger,
		ctx:    ctx,
		cancel: cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Ensure returns the room for a prototype version, creating it (and loading
// its saved state) if needed.
func (h *Hub) Ensure(versionID string) *room.Room {
	reply := make(chan *room.Room, 1)
	h.inbox <- EnsureRoom{VersionID: versionID, Reply: reply}
	return <-reply
}

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case EnsureRoom:
				if rm := h.rooms[msg.VersionID]; rm != nil && !closed(rm) {
					msg.Reply <- rm
					break
				}
				msg.Reply <- h.open(msg.VersionID)

			case GetRoom:
				msg.Reply <- h.rooms[msg.VersionID] // may be nil

			case removeRoom:
				// only the exact room that emptied may remove itself; a
				// fresh room for the same version must stay registered
				if h.rooms[msg.VersionID] == msg.Room {
					delete(h.rooms, msg.VersionID)
					roomsGauge.Dec()
				}
				if err := h.opts.Store.Save(h.ctx, msg.VersionID, msg.Snap); err != nil {
					h.log.Error("saving room on teardown", zap.String("room", msg.VersionID), zap.Error(err))
				}

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) open(versionID string) *room.Room {
	snap, err := h.opts.Store.Load(h.ctx, versionID)
	if err != nil {
		h.log.Error("loading room state", zap.String("room", versionID), zap.Error(err))
		snap = store.Snapshot{}
	}
	var rm *room.Room
	rm = room.New(h.ctx, room.Options{
		ID:       versionID,
		Canvas:   h.opts.Canvas,
		LeaseTTL: h.opts.LeaseTTL,
		Logger:   h.log,
		OnEmpty: func(parts []board.Part, props []board.PartProperty) {
			// runs on the room goroutine; hand the final state to the hub
			select {
			case h.inbox <- removeRoom{VersionID: versionID, Room: rm, Snap: store.Snapshot{Parts: parts, Properties: props}}:
			case <-h.ctx.Done():
			}
		},
	}, snap.Parts, snap.Properties)
	h.rooms[versionID] = rm
	roomsGauge.Inc()
	h.log.Info("room opened", zap.String("room", versionID), zap.Int("parts", len(snap.Parts)))
	return rm
}

func closed(rm *room.Room) bool {
	select {
	case <-rm.Done():
		return true
	default:
		return false
	}
}

func (h *Hub) shutdown() {
	for id, rm := range h.rooms {
		rm.Inbox() <- room.Shutdown{}
		delete(h.rooms, id)
		roomsGauge.Dec()
	}
	h.cancel()
}
