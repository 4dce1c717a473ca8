package client

import (
	"math"
	"time"

	"github.com/prottoy/tableproto-backend/pkg/board"
	"github.com/prottoy/tableproto-backend/pkg/wire"
)

const (
	cursorMinInterval = 100 * time.Millisecond
	cursorMinDelta    = 3.0 // px
)

// DragStart begins a drag gesture on a part. If the part is not already in
// the local selection, the selection collapses to just that part. Every
// selected part's current position becomes its drag-origin.
func (s *Session) DragStart(partID string) error {
	s.mu.Lock()
	if _, ok := s.parts[partID]; !ok {
		s.mu.Unlock()
		return board.ErrNotFound
	}
	if holder := s.lockedByLocked(partID); holder != "" {
		s.mu.Unlock()
		return board.ErrConflict
	}

	changedSelection := false
	if !s.selection[partID] {
		s.selection = map[string]bool{partID: true}
		changedSelection = true
	}
	s.origins = make(map[string]board.Point, len(s.selection))
	for id := range s.selection {
		if p, ok := s.parts[id]; ok {
			s.origins[id] = p.Position
		}
	}
	s.mu.Unlock()

	if changedSelection {
		_ = s.sendSelection()
	}
	return nil
}

// DragMove applies the pointer delta to every selected part's own origin,
// clamping each part's result against its own bounds. Local-only: nothing is
// sent over the wire per frame.
func (s *Session) DragMove(dx, dy float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, origin := range s.origins {
		p, ok := s.parts[id]
		if !ok {
			continue
		}
		p.Position = board.Clamp(board.Point{X: origin.X + dx, Y: origin.Y + dy},
			p.Width, p.Height, s.cfg.Canvas)
		s.parts[id] = p
	}
}

// DragEnd converts the accumulated, already-clamped positions into a single
// batched UPDATE with integer-rounded coordinates, then clears the origin
// cache. One message per gesture, not one per frame.
func (s *Session) DragEnd() error {
	s.mu.Lock()
	if len(s.origins) == 0 {
		s.mu.Unlock()
		return nil
	}
	batch := make([]board.Part, 0, len(s.origins))
	for id := range s.origins {
		p, ok := s.parts[id]
		if !ok {
			continue
		}
		p.Position.X = math.Round(p.Position.X)
		p.Position.Y = math.Round(p.Position.Y)
		batch = append(batch, p)
	}
	s.origins = nil
	s.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	return s.send(wire.ClientEvent{Type: wire.EvtUpdate, Parts: batch})
}

// Select replaces this member's selection set and asserts it on the server.
func (s *Session) Select(partIDs ...string) error {
	s.mu.Lock()
	s.selection = make(map[string]bool, len(partIDs))
	for _, id := range partIDs {
		if _, ok := s.parts[id]; ok {
			s.selection[id] = true
		}
	}
	s.mu.Unlock()
	return s.sendSelection()
}

// Deselect drops every lease this member holds.
func (s *Session) Deselect() error {
	return s.Select()
}

func (s *Session) sendSelection() error {
	s.mu.Lock()
	ids := make([]string, 0, len(s.selection))
	for id := range s.selection {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	return s.send(wire.ClientEvent{Type: wire.EvtSelect, SelectedPartIDs: ids})
}

// ReportCursor relays the local pointer position, throttled to one report
// per interval and suppressed when the movement is below a few pixels.
func (s *Session) ReportCursor(pos board.Point) error {
	s.mu.Lock()
	now := time.Now()
	if now.Sub(s.lastCursorAt) < cursorMinInterval {
		s.mu.Unlock()
		return nil
	}
	if !s.lastCursorAt.IsZero() && dist(pos, s.lastCursorPos) < cursorMinDelta {
		s.mu.Unlock()
		return nil
	}
	s.lastCursorAt = now
	s.lastCursorPos = pos
	s.mu.Unlock()

	return s.send(wire.ClientEvent{
		Type:     wire.EvtCursor,
		UserID:   s.cfg.UserID,
		Username: s.cfg.Username,
		Position: &pos,
	})
}

func dist(a, b board.Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
