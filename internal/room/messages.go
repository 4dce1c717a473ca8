package room

import (
	"time"

	"github.com/prottoy/tableproto-backend/pkg/board"
	"github.com/prottoy/tableproto-backend/pkg/wire"
)

type Msg interface{ isRoomMsg() }

type Join struct {
	UserID   string
	Username string
	Outbox   chan wire.ServerEvent // where this member receives server events
}

// Leave carries the outbox of the departing session so a stale connection's
// leave cannot evict the same user's fresh session after a reconnect.
type Leave struct {
	UserID string
	Outbox chan wire.ServerEvent
}

type AddPart struct {
	UserID     string
	Part       board.Part
	Properties []board.PartProperty
}

type UpdateParts struct {
	UserID     string
	Parts      []board.Part
	Properties []board.PartProperty
}

type DeleteParts struct {
	UserID  string
	PartIDs []string
}

type ReorderPart struct {
	UserID string
	PartID string
	Target board.ReorderTarget
}

type FlipCard struct {
	UserID        string
	CardID        string
	NextFrontSide board.Side
}

type SelectParts struct {
	UserID  string
	PartIDs []string
}

type MoveCursor struct {
	UserID   string
	Position board.Point
}

type GetView struct {
	Reply chan View
}

type Shutdown struct{}

func (Join) isRoomMsg()        {}
func (Leave) isRoomMsg()       {}
func (AddPart) isRoomMsg()     {}
func (UpdateParts) isRoomMsg() {}
func (DeleteParts) isRoomMsg() {}
func (ReorderPart) isRoomMsg() {}
func (FlipCard) isRoomMsg()    {}
func (SelectParts) isRoomMsg() {}
func (MoveCursor) isRoomMsg()  {}
func (GetView) isRoomMsg()     {}
func (Shutdown) isRoomMsg()    {}

// View reflects internal state for tests without data races.
type View struct {
	NumMembers int
	Parts      map[string]board.Part
	Properties map[board.PropKey]board.PartProperty
	Leases     map[string]LeaseView
	Cursors    map[string]wire.Cursor
}

type LeaseView struct {
	UserID    string
	ExpiresAt time.Time
}
