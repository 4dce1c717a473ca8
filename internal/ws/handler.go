package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/prottoy/tableproto-backend/internal/hub"
	"github.com/prottoy/tableproto-backend/internal/room"
	"github.com/prottoy/tableproto-backend/pkg/board"
	"github.com/prottoy/tableproto-backend/pkg/wire"
)

const (
	joinTimeout  = 10 * time.Second
	writeTimeout = 3 * time.Second
	pingInterval = 20 * time.Second
)

type Options struct {
	AllowedOrigins []string
	Logger         *zap.Logger
}

// Handler upgrades the connection, waits for the JOIN handshake, binds the
// member to its room, and pumps events both ways until the socket drops.
func Handler(h *hub.Hub, opts Options) http.HandlerFunc {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: opts.AllowedOrigins,
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		// first frame must be JOIN
		joinCtx, cancelJoin := context.WithTimeout(r.Context(), joinTimeout)
		_, data, err := conn.Read(joinCtx)
		cancelJoin()
		if err != nil {
			return
		}
		var join wire.ClientEvent
		if err := json.Unmarshal(data, &join); err != nil || join.Type != wire.EvtJoin ||
			join.PrototypeVersionID == "" || join.UserID == "" {
			conn.Close(websocket.StatusPolicyViolation, "expected JOIN")
			return
		}

		rm := h.Ensure(join.PrototypeVersionID)
		clog := log.With(zap.String("room", join.PrototypeVersionID), zap.String("user", join.UserID))

		out := make(chan wire.ServerEvent, 32)
		if !send(rm, room.Join{UserID: join.UserID, Username: join.Username, Outbox: out}) {
			conn.Close(websocket.StatusTryAgainLater, "room closed")
			return
		}
		defer send(rm, room.Leave{UserID: join.UserID, Outbox: out})

		// writer: drain the room outbox, ping between events
		writeCtx, cancelWrite := context.WithCancel(r.Context())
		defer cancelWrite()
		go func() {
			ping := time.NewTicker(pingInterval)
			defer ping.Stop()
			for {
				select {
				case ev, ok := <-out:
					if !ok {
						conn.Close(websocket.StatusGoingAway, "room closed")
						return
					}
					payload, err := json.Marshal(ev)
					if err != nil {
						clog.Error("marshaling server event", zap.Error(err))
						continue
					}
					ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
					err = conn.Write(ctx, websocket.MessageText, payload)
					cancel()
					if err != nil {
						return
					}
				case <-ping.C:
					ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
					err := conn.Ping(ctx)
					cancel()
					if err != nil {
						return
					}
				case <-writeCtx.Done():
					return
				}
			}
		}()

		// reader loop
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				return
			}

			var ev wire.ClientEvent
			if err := json.Unmarshal(data, &ev); err != nil {
				writeError(r.Context(), conn, "bad json")
				continue
			}
			msg, ok := toRoomMsg(join.UserID, ev)
			if !ok {
				writeError(r.Context(), conn, "unknown event type")
				continue
			}
			if !send(rm, msg) {
				conn.Close(websocket.StatusGoingAway, "room closed")
				return
			}
		}
	}
}

// send delivers a message unless the room already shut down.
func send(rm *room.Room, msg room.Msg) bool {
	select {
	case rm.Inbox() <- msg:
		return true
	case <-rm.Done():
		return false
	}
}

func writeError(ctx context.Context, conn *websocket.Conn, reason string) {
	ev := wire.ServerEvent{Type: wire.EvtUpdateError, ValidationResults: []string{reason}}
	payload, _ := json.Marshal(ev)
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_ = conn.Write(wctx, websocket.MessageText, payload)
}

func toRoomMsg(userID string, ev wire.ClientEvent) (room.Msg, bool) {
	switch ev.Type {
	case wire.EvtAdd:
		if ev.Part == nil {
			return nil, false
		}
		return room.AddPart{UserID: userID, Part: *ev.Part, Properties: ev.Properties}, true
	case wire.EvtUpdate:
		return room.UpdateParts{UserID: userID, Parts: ev.Parts, Properties: ev.Properties}, true
	case wire.EvtDelete:
		return room.DeleteParts{UserID: userID, PartIDs: ev.PartIDs}, true
	case wire.EvtReorder:
		return room.ReorderPart{UserID: userID, PartID: ev.PartID, Target: ev.ReorderType}, true
	case wire.EvtFlip:
		side := board.SideFront
		if ev.IsNextFlipped {
			side = board.SideBack
		}
		return room.FlipCard{UserID: userID, CardID: ev.CardID, NextFrontSide: side}, true
	case wire.EvtSelect:
		return room.SelectParts{UserID: userID, PartIDs: ev.SelectedPartIDs}, true
	case wire.EvtCursor:
		if ev.Position == nil {
			return nil, false
		}
		return room.MoveCursor{UserID: userID, Position: *ev.Position}, true
	default:
		return nil, false
	}
}
