package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prottoy/tableproto-backend/pkg/board"
	"github.com/prottoy/tableproto-backend/pkg/wire"
)

func apply(s *Session, ev wire.ServerEvent) {
	s.mu.Lock()
	followup := s.applyLocked(ev)
	s.mu.Unlock()
	if followup != nil {
		followup()
	}
}

func TestMirror_InitialStateRebuildsEverything(t *testing.T) {
	s, _ := testSession(t, board.Canvas{Width: 100, Height: 100},
		board.Part{ID: "stale", Type: board.TypeToken, Width: 5, Height: 5})
	s.selections["them"] = map[string]bool{"stale": true}

	apply(s, wire.ServerEvent{
		Type:       wire.EvtInitialState,
		Parts:      []board.Part{{ID: "fresh", Type: board.TypeToken, Width: 5, Height: 5}},
		Properties: []board.PartProperty{{PartID: "fresh", Side: board.SideFront, Name: "pawn"}},
	})

	parts := s.Parts()
	require.Len(t, parts, 1)
	_, ok := parts["fresh"]
	assert.True(t, ok)
	assert.Empty(t, s.LockedBy("stale"))
}

func TestMirror_UpdateReplacesRowsOutright(t *testing.T) {
	s, _ := testSession(t, board.Canvas{Width: 100, Height: 100},
		board.Part{ID: "a", Type: board.TypeToken, Position: board.Point{X: 1, Y: 1}, Width: 5, Height: 5})
	s.props[board.PropKey{PartID: "a", Side: board.SideFront}] = board.PartProperty{PartID: "a", Side: board.SideFront, Name: "old"}

	apply(s, wire.ServerEvent{
		Type:       wire.EvtUpdate,
		Parts:      []board.Part{{ID: "a", Type: board.TypeToken, Position: board.Point{X: 9, Y: 9}, Width: 5, Height: 5}},
		Properties: []board.PartProperty{{PartID: "a", Side: board.SideFront, Name: "new"}},
	})

	p, _ := s.Part("a")
	assert.Equal(t, board.Point{X: 9, Y: 9}, p.Position)
	assert.Equal(t, "new", s.Properties()[board.PropKey{PartID: "a", Side: board.SideFront}].Name)
}

func TestMirror_DeleteCascadesLocalState(t *testing.T) {
	s, _ := testSession(t, board.Canvas{Width: 100, Height: 100},
		board.Part{ID: "a", Type: board.TypeToken, Width: 5, Height: 5})
	s.props[board.PropKey{PartID: "a", Side: board.SideFront}] = board.PartProperty{PartID: "a", Side: board.SideFront}
	require.NoError(t, s.Select("a"))

	apply(s, wire.ServerEvent{Type: wire.EvtDelete, PartIDs: []string{"a"}})

	assert.Empty(t, s.Parts())
	assert.Empty(t, s.Properties())
	assert.Empty(t, s.Selection())
}

func TestMirror_FlipSetsFrontSide(t *testing.T) {
	s, _ := testSession(t, board.Canvas{Width: 100, Height: 100},
		board.Part{ID: "c", Type: board.TypeCard, Width: 5, Height: 7, FrontSide: board.SideFront})

	apply(s, wire.ServerEvent{Type: wire.EvtFlip, CardID: "c", NextFrontSide: board.SideBack})
	p, _ := s.Part("c")
	assert.Equal(t, board.SideBack, p.FrontSide)
}

func TestMirror_SelectionGrantIsAuthoritativeForOwnSet(t *testing.T) {
	s, _ := testSession(t, board.Canvas{Width: 100, Height: 100},
		board.Part{ID: "a", Type: board.TypeToken, Width: 5, Height: 5},
		board.Part{ID: "b", Type: board.TypeToken, Width: 5, Height: 5})
	require.NoError(t, s.Select("a", "b"))

	// the server refused "b" (locked elsewhere)
	apply(s, wire.ServerEvent{Type: wire.EvtSelection, UserID: "me", SelectedPartIDs: []string{"a"}})
	assert.Equal(t, []string{"a"}, s.Selection())
}

func TestMirror_AddAckAutoSelectsOwnNewPart(t *testing.T) {
	s, sent := testSession(t, board.Canvas{Width: 100, Height: 100})
	s.parts["p1"] = board.Part{ID: "p1", Type: board.TypeToken, Width: 5, Height: 5}

	apply(s, wire.ServerEvent{Type: wire.EvtAddAck, PartID: "p1"})

	assert.Equal(t, []string{"p1"}, s.Selection())
	require.NotEmpty(t, *sent)
	last := (*sent)[len(*sent)-1]
	assert.Equal(t, wire.EvtSelect, last.Type)
	assert.Equal(t, []string{"p1"}, last.SelectedPartIDs)
}

func TestSubscribe_UnsubscribeStopsDelivery(t *testing.T) {
	s, _ := testSession(t, board.Canvas{Width: 100, Height: 100})

	var got int
	off := s.Subscribe(wire.EvtFlip, func(wire.ServerEvent) { got++ })
	s.dispatch(wire.ServerEvent{Type: wire.EvtFlip})
	off()
	s.dispatch(wire.ServerEvent{Type: wire.EvtFlip})
	assert.Equal(t, 1, got)
}
