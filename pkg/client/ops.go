package client

import (
	"github.com/prottoy/tableproto-backend/pkg/board"
	"github.com/prottoy/tableproto-backend/pkg/wire"
)

// AddPart submits a new part. The server assigns the id and stacking order
// and answers with ADD_ACK, at which point the session auto-selects the part.
func (s *Session) AddPart(part board.Part, props []board.PartProperty) error {
	return s.send(wire.ClientEvent{Type: wire.EvtAdd, Part: &part, Properties: props})
}

// UpdateParts submits a batch of part/property changes.
func (s *Session) UpdateParts(parts []board.Part, props []board.PartProperty) error {
	return s.send(wire.ClientEvent{Type: wire.EvtUpdate, Parts: parts, Properties: props})
}

// DeleteParts removes parts; properties and leases cascade server-side.
func (s *Session) DeleteParts(partIDs ...string) error {
	return s.send(wire.ClientEvent{Type: wire.EvtDelete, PartIDs: partIDs})
}

// Reorder moves a part within the stacking order.
func (s *Session) Reorder(partID string, target board.ReorderTarget) error {
	return s.send(wire.ClientEvent{Type: wire.EvtReorder, PartID: partID, ReorderType: target})
}

// Flip turns a card over. The mirror updates when the FLIP broadcast echoes
// back, so receivers (this session included) animate from the same event.
func (s *Session) Flip(cardID string, nextFrontSide board.Side) error {
	if holder := s.LockedBy(cardID); holder != "" {
		return board.ErrConflict
	}
	return s.send(wire.ClientEvent{
		Type:          wire.EvtFlip,
		CardID:        cardID,
		IsNextFlipped: nextFrontSide == board.SideBack,
	})
}
