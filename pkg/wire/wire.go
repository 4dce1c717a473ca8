// Package wire defines the JSON events exchanged over a room's websocket.
// Both the server and the client library in pkg/client speak this protocol.
package wire

import (
	"time"

	"github.com/prottoy/tableproto-backend/pkg/board"
)

// Client -> server event types.
const (
	EvtJoin    = "JOIN"
	EvtAdd     = "ADD"
	EvtUpdate  = "UPDATE"
	EvtDelete  = "DELETE"
	EvtReorder = "REORDER"
	EvtFlip    = "FLIP"
	EvtSelect  = "SELECT"
	EvtCursor  = "CURSOR"
)

// Server -> client event types. ADD, UPDATE, DELETE and FLIP reuse the names
// above; the rest are server-only.
const (
	EvtInitialState = "INITIAL_STATE"
	EvtAddAck       = "ADD_ACK"
	EvtUpdateError  = "UPDATE_ERROR"
	EvtPresence     = "PRESENCE"
	EvtSelection    = "SELECTION"
	EvtCursors      = "CURSORS"
)

type User struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type Cursor struct {
	UserID      string      `json:"userId"`
	Username    string      `json:"username"`
	Position    board.Point `json:"position"`
	LastUpdated time.Time   `json:"lastUpdated"`
}

// ClientEvent is the envelope for everything a member sends. Fields are
// populated per Type and omitted otherwise.
type ClientEvent struct {
	Type string `json:"type"`

	// JOIN
	PrototypeVersionID string `json:"prototypeVersionId,omitempty"`
	UserID             string `json:"userId,omitempty"`
	Username           string `json:"username,omitempty"`

	// ADD
	Part *board.Part `json:"part,omitempty"`

	// ADD / UPDATE
	Parts      []board.Part         `json:"parts,omitempty"`
	Properties []board.PartProperty `json:"properties,omitempty"`

	// DELETE
	PartIDs []string `json:"partIds,omitempty"`

	// REORDER
	PartID      string              `json:"partId,omitempty"`
	ReorderType board.ReorderTarget `json:"reorderType,omitempty"`

	// FLIP
	CardID        string `json:"cardId,omitempty"`
	IsNextFlipped bool   `json:"isNextFlipped,omitempty"`

	// SELECT
	SelectedPartIDs []string `json:"selectedPartIds,omitempty"`

	// CURSOR
	Position *board.Point `json:"position,omitempty"`
}

// ServerEvent is the envelope for everything the room sends back.
type ServerEvent struct {
	Type string `json:"type"`

	// INITIAL_STATE / ADD / UPDATE
	Parts      []board.Part         `json:"parts,omitempty"`
	Properties []board.PartProperty `json:"properties,omitempty"`

	// ADD (single new part)
	Part *board.Part `json:"part,omitempty"`

	// ADD_ACK
	PartID string `json:"partId,omitempty"`

	// UPDATE_ERROR
	ValidationResults []string `json:"validationResults,omitempty"`

	// DELETE
	PartIDs []string `json:"partIds,omitempty"`

	// FLIP
	CardID        string     `json:"cardId,omitempty"`
	NextFrontSide board.Side `json:"nextFrontSide,omitempty"`

	// PRESENCE
	Users []User `json:"users,omitempty"`

	// SELECTION
	UserID          string   `json:"userId,omitempty"`
	Username        string   `json:"username,omitempty"`
	SelectedPartIDs []string `json:"selectedPartIds,omitempty"`

	// CURSORS
	Cursors []Cursor `json:"cursors,omitempty"`
}
