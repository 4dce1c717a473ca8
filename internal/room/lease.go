package room

import (
	"sort"

	"github.com/prottoy/tableproto-backend/pkg/wire"
)

// isLocked reports whether some other member holds a non-expired lease on the
// part. A member never conflicts with its own lease.
func (r *Room) isLocked(partID, requestingUserID string) bool {
	l, ok := r.leases[partID]
	if !ok {
		return false
	}
	return l.userID != requestingUserID && l.expiresAt.After(r.now())
}

// handleSelect replaces the member's entire active selection set. Parts held
// by another member are silently excluded from the grant; every granted part
// gets a fresh expiry.
func (r *Room) handleSelect(msg SelectParts) {
	m, ok := r.members[msg.UserID]
	if !ok {
		return
	}

	granted := map[string]bool{}
	expires := r.now().Add(r.ttl)
	for _, id := range msg.PartIDs {
		if _, exists := r.parts[id]; !exists {
			continue
		}
		if r.isLocked(id, msg.UserID) {
			continue
		}
		granted[id] = true
		r.leases[id] = lease{userID: msg.UserID, username: m.username, expiresAt: expires}
	}

	// parts the member held but did not renew are released immediately
	for id, l := range r.leases {
		if l.userID == msg.UserID && !granted[id] {
			delete(r.leases, id)
		}
	}

	r.broadcast(r.selectionEvent(msg.UserID, m.username))
}

// dropSelection releases every lease the member holds (disconnect, explicit
// clear). Broadcasts only if something was actually held.
func (r *Room) dropSelection(userID, username string) {
	held := false
	for id, l := range r.leases {
		if l.userID == userID {
			delete(r.leases, id)
			held = true
		}
	}
	if held {
		r.broadcast(wire.ServerEvent{Type: wire.EvtSelection, UserID: userID, Username: username})
	}
}

// sweepLeases expires leases whose TTL passed without renewal and broadcasts
// the shrunken selection of each affected holder.
func (r *Room) sweepLeases() {
	now := r.now()
	affected := map[string]string{} // userID -> username
	for id, l := range r.leases {
		if !l.expiresAt.After(now) {
			delete(r.leases, id)
			affected[l.userID] = l.username
		}
	}
	for userID, username := range affected {
		r.broadcast(r.selectionEvent(userID, username))
	}
}

// selectionEvent builds the SELECTION broadcast for one member's current
// active set.
func (r *Room) selectionEvent(userID, username string) wire.ServerEvent {
	var ids []string
	for id, l := range r.leases {
		if l.userID == userID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return wire.ServerEvent{
		Type:            wire.EvtSelection,
		UserID:          userID,
		Username:        username,
		SelectedPartIDs: ids,
	}
}

// selectionEvents returns one SELECTION event per member holding leases,
// used to bring a joiner up to date.
func (r *Room) selectionEvents() []wire.ServerEvent {
	holders := map[string]string{}
	for _, l := range r.leases {
		holders[l.userID] = l.username
	}
	ids := make([]string, 0, len(holders))
	for id := range holders {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]wire.ServerEvent, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.selectionEvent(id, holders[id]))
	}
	return out
}
