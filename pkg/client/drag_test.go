package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prottoy/tableproto-backend/pkg/board"
	"github.com/prottoy/tableproto-backend/pkg/wire"
)

// testSession returns an offline session with a capturing send stub.
func testSession(t *testing.T, canvas board.Canvas, parts ...board.Part) (*Session, *[]wire.ClientEvent) {
	t.Helper()
	s := newSession(Config{UserID: "me", Username: "me", Canvas: canvas})
	var sent []wire.ClientEvent
	s.send = func(ev wire.ClientEvent) error {
		sent = append(sent, ev)
		return nil
	}
	for _, p := range parts {
		s.parts[p.ID] = p
	}
	return s, &sent
}

func TestDrag_ClampsEachPartIndependently(t *testing.T) {
	canvas := board.Canvas{Width: 12, Height: 100}
	a := board.Part{ID: "a", Type: board.TypeToken, Position: board.Point{X: 0, Y: 0}, Width: 10, Height: 10}
	b := board.Part{ID: "b", Type: board.TypeToken, Position: board.Point{X: 1, Y: 50}, Width: 2, Height: 2}
	s, _ := testSession(t, canvas, a, b)

	require.NoError(t, s.Select("a", "b"))
	require.NoError(t, s.DragStart("a"))
	s.DragMove(5, 5)

	// a hits the right wall (12-10=2); b moves the full delta regardless
	pa, _ := s.Part("a")
	pb, _ := s.Part("b")
	assert.Equal(t, board.Point{X: 2, Y: 5}, pa.Position)
	assert.Equal(t, board.Point{X: 6, Y: 55}, pb.Position)
}

func TestDrag_DeltaAppliesToOriginNotCumulative(t *testing.T) {
	canvas := board.Canvas{Width: 100, Height: 100}
	a := board.Part{ID: "a", Type: board.TypeToken, Position: board.Point{X: 10, Y: 10}, Width: 5, Height: 5}
	s, _ := testSession(t, canvas, a)

	require.NoError(t, s.DragStart("a"))
	s.DragMove(5, 0)
	s.DragMove(7, 3)

	pa, _ := s.Part("a")
	assert.Equal(t, board.Point{X: 17, Y: 13}, pa.Position)
}

func TestDragStart_CollapsesSelectionToTargetPart(t *testing.T) {
	canvas := board.Canvas{Width: 100, Height: 100}
	a := board.Part{ID: "a", Type: board.TypeToken, Width: 5, Height: 5}
	b := board.Part{ID: "b", Type: board.TypeToken, Width: 5, Height: 5}
	s, _ := testSession(t, canvas, a, b)

	require.NoError(t, s.Select("a"))
	require.NoError(t, s.DragStart("b"))
	assert.Equal(t, []string{"b"}, s.Selection())
}

func TestDragStart_KeepsMultiSelectionWhenPartAlreadySelected(t *testing.T) {
	canvas := board.Canvas{Width: 100, Height: 100}
	a := board.Part{ID: "a", Type: board.TypeToken, Width: 5, Height: 5}
	b := board.Part{ID: "b", Type: board.TypeToken, Width: 5, Height: 5}
	s, _ := testSession(t, canvas, a, b)

	require.NoError(t, s.Select("a", "b"))
	require.NoError(t, s.DragStart("a"))
	assert.Equal(t, []string{"a", "b"}, s.Selection())
}

func TestDragStart_LockedPartRefused(t *testing.T) {
	canvas := board.Canvas{Width: 100, Height: 100}
	a := board.Part{ID: "a", Type: board.TypeToken, Width: 5, Height: 5}
	s, _ := testSession(t, canvas, a)
	s.selections["them"] = map[string]bool{"a": true}

	err := s.DragStart("a")
	require.ErrorIs(t, err, board.ErrConflict)
}

func TestDragEnd_OneBatchedRoundedUpdatePerGesture(t *testing.T) {
	canvas := board.Canvas{Width: 100, Height: 100}
	a := board.Part{ID: "a", Type: board.TypeToken, Position: board.Point{X: 10, Y: 10}, Width: 5, Height: 5}
	s, sent := testSession(t, canvas, a)

	require.NoError(t, s.DragStart("a"))
	s.DragMove(2.4, 3.6)
	s.DragMove(2.6, 3.6)
	require.NoError(t, s.DragEnd())

	var updates []wire.ClientEvent
	for _, ev := range *sent {
		if ev.Type == wire.EvtUpdate {
			updates = append(updates, ev)
		}
	}
	require.Len(t, updates, 1, "one UPDATE per gesture")
	require.Len(t, updates[0].Parts, 1)
	assert.Equal(t, board.Point{X: 13, Y: 14}, updates[0].Parts[0].Position)

	// gesture is over: a second DragEnd sends nothing
	before := len(*sent)
	require.NoError(t, s.DragEnd())
	assert.Equal(t, before, len(*sent))
}

func TestReportCursor_ThrottledAndDistanceGated(t *testing.T) {
	canvas := board.Canvas{Width: 100, Height: 100}
	s, sent := testSession(t, canvas)

	require.NoError(t, s.ReportCursor(board.Point{X: 10, Y: 10}))
	require.Len(t, *sent, 1)

	// too soon after the last report
	require.NoError(t, s.ReportCursor(board.Point{X: 90, Y: 90}))
	assert.Len(t, *sent, 1)

	// interval passed but movement below the pixel threshold
	s.mu.Lock()
	s.lastCursorAt = time.Now().Add(-time.Second)
	s.mu.Unlock()
	require.NoError(t, s.ReportCursor(board.Point{X: 11, Y: 11}))
	assert.Len(t, *sent, 1)

	// interval passed and movement large enough
	s.mu.Lock()
	s.lastCursorAt = time.Now().Add(-time.Second)
	s.mu.Unlock()
	require.NoError(t, s.ReportCursor(board.Point{X: 40, Y: 40}))
	assert.Len(t, *sent, 2)
	assert.Equal(t, wire.EvtCursor, (*sent)[1].Type)
}
