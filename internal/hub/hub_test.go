package hub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prottoy/tableproto-backend/internal/room"
	"github.com/prottoy/tableproto-backend/internal/store"
	"github.com/prottoy/tableproto-backend/pkg/board"
	"github.com/prottoy/tableproto-backend/pkg/wire"
)

func drain(t *testing.T, ch <-chan wire.ServerEvent, kind string) wire.ServerEvent {
	t.Helper()
	deadline := time.After(500 * time.Millisecond)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatalf("outbox closed while waiting for %s", kind)
			}
			if ev.Type == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", kind)
		}
	}
}

func TestEnsure_SameRoomForSameVersion(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := NewHub(ctx, Options{Canvas: board.Canvas{Width: 100, Height: 100}})

	r1 := h.Ensure("v1")
	r2 := h.Ensure("v1")
	other := h.Ensure("v2")
	assert.Same(t, r1, r2)
	assert.NotSame(t, r1, other)
}

func TestTeardown_SavesFinalStateAndReloadsOnReopen(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	st := store.NewMemoryStore()
	h := NewHub(ctx, Options{Canvas: board.Canvas{Width: 500, Height: 500}, Store: st})

	rm := h.Ensure("v1")
	out := make(chan wire.ServerEvent, 32)
	rm.Inbox() <- room.Join{UserID: "u1", Username: "alice", Outbox: out}
	drain(t, out, wire.EvtInitialState)

	rm.Inbox() <- room.AddPart{
		UserID:     "u1",
		Part:       board.Part{Type: board.TypeToken, Width: 10, Height: 10},
		Properties: []board.PartProperty{{Side: board.SideFront, Name: "pawn"}},
	}
	ack := drain(t, out, wire.EvtAddAck)

	// last member leaves: room empties, hub saves and forgets it
	rm.Inbox() <- room.Leave{UserID: "u1"}
	select {
	case <-rm.Done():
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("room did not shut down")
	}

	require.Eventually(t, func() bool {
		snap, err := st.Load(ctx, "v1")
		return err == nil && len(snap.Parts) == 1
	}, 500*time.Millisecond, 10*time.Millisecond)

	// a fresh room for the same version starts from the saved state
	reopened := h.Ensure("v1")
	assert.NotSame(t, rm, reopened)

	out2 := make(chan wire.ServerEvent, 32)
	reopened.Inbox() <- room.Join{UserID: "u2", Username: "bob", Outbox: out2}
	snap := drain(t, out2, wire.EvtInitialState)
	require.Len(t, snap.Parts, 1)
	assert.Equal(t, ack.PartID, snap.Parts[0].ID)
	require.Len(t, snap.Properties, 1)
	assert.Equal(t, "pawn", snap.Properties[0].Name)
}
