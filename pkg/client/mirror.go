package client

import (
	"sort"

	"github.com/prottoy/tableproto-backend/pkg/board"
	"github.com/prottoy/tableproto-backend/pkg/wire"
)

// applyLocked folds one authoritative event into the mirror. Caller holds
// s.mu. The returned followup (if any) must run after the lock is released.
func (s *Session) applyLocked(ev wire.ServerEvent) func() {
	switch ev.Type {
	case wire.EvtInitialState:
		// authoritative rebuild; everything local is stale
		s.parts = make(map[string]board.Part, len(ev.Parts))
		s.props = make(map[board.PropKey]board.PartProperty, len(ev.Properties))
		s.selections = make(map[string]map[string]bool)
		s.curs = nil
		for _, p := range ev.Parts {
			s.parts[p.ID] = p
		}
		for _, pr := range ev.Properties {
			s.props[pr.Key()] = pr
		}

	case wire.EvtAdd:
		if ev.Part != nil {
			s.parts[ev.Part.ID] = *ev.Part
		}
		for _, pr := range ev.Properties {
			s.props[pr.Key()] = pr
		}

	case wire.EvtAddAck:
		// our own add landed: auto-select the new part
		s.selection = map[string]bool{ev.PartID: true}
		return func() { _ = s.sendSelection() }

	case wire.EvtUpdate:
		// last-authoritative-wins: rows are replaced outright, not diffed
		for _, p := range ev.Parts {
			s.parts[p.ID] = p
		}
		for _, pr := range ev.Properties {
			s.props[pr.Key()] = pr
		}

	case wire.EvtDelete:
		for _, id := range ev.PartIDs {
			delete(s.parts, id)
			delete(s.props, board.PropKey{PartID: id, Side: board.SideFront})
			delete(s.props, board.PropKey{PartID: id, Side: board.SideBack})
			delete(s.selection, id)
			delete(s.origins, id)
			for _, set := range s.selections {
				delete(set, id)
			}
		}

	case wire.EvtFlip:
		if p, ok := s.parts[ev.CardID]; ok {
			p.FrontSide = ev.NextFrontSide
			s.parts[ev.CardID] = p
		}

	case wire.EvtPresence:
		s.users = ev.Users

	case wire.EvtSelection:
		if ev.UserID == s.cfg.UserID {
			// the server's grant is authoritative; parts it refused
			// (locked elsewhere) drop out of our selection
			s.selection = toSet(ev.SelectedPartIDs)
			break
		}
		if len(ev.SelectedPartIDs) == 0 {
			delete(s.selections, ev.UserID)
		} else {
			s.selections[ev.UserID] = toSet(ev.SelectedPartIDs)
		}

	case wire.EvtCursors:
		s.curs = ev.Cursors
	}
	return nil
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// Parts returns a copy of the parts mirror.
func (s *Session) Parts() map[string]board.Part {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]board.Part, len(s.parts))
	for id, p := range s.parts {
		out[id] = p
	}
	return out
}

// Part returns one mirrored part.
func (s *Session) Part(id string) (board.Part, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.parts[id]
	return p, ok
}

// Properties returns a copy of the properties mirror.
func (s *Session) Properties() map[board.PropKey]board.PartProperty {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[board.PropKey]board.PartProperty, len(s.props))
	for k, pr := range s.props {
		out[k] = pr
	}
	return out
}

// Users returns the connected-member roster as last broadcast.
func (s *Session) Users() []wire.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]wire.User, len(s.users))
	copy(out, s.users)
	return out
}

// Cursors returns the other members' cursors as last broadcast.
func (s *Session) Cursors() []wire.Cursor {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]wire.Cursor, len(s.curs))
	copy(out, s.curs)
	return out
}

// Selection returns this member's selected part ids, sorted.
func (s *Session) Selection() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.selection))
	for id := range s.selection {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// LockedBy returns the other member currently selecting the part, or "".
func (s *Session) LockedBy(partID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lockedByLocked(partID)
}

func (s *Session) lockedByLocked(partID string) string {
	for userID, set := range s.selections {
		if userID != s.cfg.UserID && set[partID] {
			return userID
		}
	}
	return ""
}
