package room

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prottoy/tableproto-backend/pkg/board"
	"github.com/prottoy/tableproto-backend/pkg/wire"
)

func (r *Room) rejectValidation(userID string, results []string) {
	mutationsRejected.WithLabelValues("validation").Inc()
	r.sendTo(userID, wire.ServerEvent{Type: wire.EvtUpdateError, ValidationResults: results})
}

func (r *Room) rejectConflict(userID, partID string) {
	mutationsRejected.WithLabelValues("conflict").Inc()
	r.sendTo(userID, wire.ServerEvent{
		Type:              wire.EvtUpdateError,
		ValidationResults: []string{fmt.Sprintf("part %s is selected by another member", partID)},
	})
}

func (r *Room) handleAdd(msg AddPart) {
	part := msg.Part
	if part.ID == "" {
		part.ID = uuid.NewString()
	}
	props := make([]board.PartProperty, len(msg.Properties))
	for i, pr := range msg.Properties {
		pr.PartID = part.ID
		props[i] = pr
	}

	if _, exists := r.parts[part.ID]; exists {
		r.rejectValidation(msg.UserID, []string{fmt.Sprintf("part %s already exists", part.ID)})
		return
	}
	if err := board.ValidateNew(part, props); err != nil {
		r.rejectValidation(msg.UserID, []string{err.Error()})
		return
	}

	// order is computed at apply time so racing adds never collide
	if part.Order == 0 {
		part.Order = board.NextOrder(r.parts)
	}
	if part.Type == board.TypeCard && part.FrontSide == "" {
		part.FrontSide = board.SideFront
	}
	part.Position = board.Clamp(part.Position, part.Width, part.Height, r.canvas)

	r.parts[part.ID] = part
	for _, pr := range props {
		r.props[pr.Key()] = pr
	}
	mutationsApplied.WithLabelValues("add").Inc()

	r.broadcastExcept(msg.UserID, wire.ServerEvent{Type: wire.EvtAdd, Part: &part, Properties: props})
	r.sendTo(msg.UserID, wire.ServerEvent{Type: wire.EvtAddAck, PartID: part.ID})
}

func (r *Room) handleUpdate(msg UpdateParts) {
	// reject the whole batch before touching anything
	for _, p := range msg.Parts {
		if _, ok := r.parts[p.ID]; !ok {
			continue
		}
		if r.isLocked(p.ID, msg.UserID) {
			r.rejectConflict(msg.UserID, p.ID)
			return
		}
		if p.Width <= 0 || p.Height <= 0 {
			r.rejectValidation(msg.UserID, []string{fmt.Sprintf("part %s has no extent", p.ID)})
			return
		}
	}

	var appliedParts []board.Part
	for _, p := range msg.Parts {
		stored, ok := r.parts[p.ID]
		if !ok {
			r.log.Warn("update for unknown part", zap.String("part", p.ID))
			continue
		}
		// the stored type is canonical; positions re-clamp server-side no
		// matter what the client sent
		p.Type = stored.Type
		p.Position = board.Clamp(p.Position, p.Width, p.Height, r.canvas)
		r.parts[p.ID] = p
		appliedParts = append(appliedParts, p)
	}

	var appliedProps []board.PartProperty
	for _, pr := range msg.Properties {
		if _, ok := r.parts[pr.PartID]; !ok {
			r.log.Warn("property for unknown part", zap.String("part", pr.PartID))
			continue
		}
		if pr.Side != board.SideFront && pr.Side != board.SideBack {
			r.log.Warn("property with unknown side", zap.String("part", pr.PartID), zap.String("side", string(pr.Side)))
			continue
		}
		r.props[pr.Key()] = pr
		appliedProps = append(appliedProps, pr)
	}

	if len(appliedParts) == 0 && len(appliedProps) == 0 {
		return
	}
	mutationsApplied.WithLabelValues("update").Inc()
	r.broadcast(wire.ServerEvent{Type: wire.EvtUpdate, Parts: appliedParts, Properties: appliedProps})
}

func (r *Room) handleDelete(msg DeleteParts) {
	var removed []string
	affectedHolders := map[string]bool{}

	for _, id := range msg.PartIDs {
		if _, ok := r.parts[id]; !ok {
			r.log.Warn("delete for unknown part", zap.String("part", id))
			continue
		}
		delete(r.parts, id)
		delete(r.props, board.PropKey{PartID: id, Side: board.SideFront})
		delete(r.props, board.PropKey{PartID: id, Side: board.SideBack})
		if l, held := r.leases[id]; held {
			affectedHolders[l.userID] = true
			delete(r.leases, id)
		}
		removed = append(removed, id)
	}
	if len(removed) == 0 {
		return
	}
	mutationsApplied.WithLabelValues("delete").Inc()
	r.broadcast(wire.ServerEvent{Type: wire.EvtDelete, PartIDs: removed})

	// holders whose selection shrank get a fresh SELECTION event
	for userID := range affectedHolders {
		if m, ok := r.members[userID]; ok {
			r.broadcast(r.selectionEvent(userID, m.username))
		}
	}
}

func (r *Room) handleReorder(msg ReorderPart) {
	part, ok := r.parts[msg.PartID]
	if !ok {
		r.log.Warn("reorder for unknown part", zap.String("part", msg.PartID))
		return
	}
	if r.isLocked(msg.PartID, msg.UserID) {
		r.rejectConflict(msg.UserID, msg.PartID)
		return
	}
	order, err := board.ReorderedValue(r.parts, msg.PartID, msg.Target)
	if err != nil {
		r.rejectValidation(msg.UserID, []string{err.Error()})
		return
	}
	part.Order = order
	r.parts[msg.PartID] = part
	mutationsApplied.WithLabelValues("reorder").Inc()
	r.broadcast(wire.ServerEvent{Type: wire.EvtUpdate, Parts: []board.Part{part}})
}

func (r *Room) handleFlip(msg FlipCard) {
	part, ok := r.parts[msg.CardID]
	if !ok {
		r.log.Warn("flip for unknown part", zap.String("part", msg.CardID))
		return
	}
	if part.Type != board.TypeCard {
		r.rejectValidation(msg.UserID, []string{fmt.Sprintf("part %s is not a card", msg.CardID)})
		return
	}
	if msg.NextFrontSide != board.SideFront && msg.NextFrontSide != board.SideBack {
		r.rejectValidation(msg.UserID, []string{"unknown side"})
		return
	}
	if r.isLocked(msg.CardID, msg.UserID) {
		r.rejectConflict(msg.UserID, msg.CardID)
		return
	}
	part.FrontSide = msg.NextFrontSide
	r.parts[msg.CardID] = part
	mutationsApplied.WithLabelValues("flip").Inc()
	// distinct from UPDATE so receivers can run a flip animation
	r.broadcast(wire.ServerEvent{Type: wire.EvtFlip, CardID: msg.CardID, NextFrontSide: msg.NextFrontSide})
}
