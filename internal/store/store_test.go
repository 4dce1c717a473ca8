package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prottoy/tableproto-backend/pkg/board"
)

func TestMemoryStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	empty, err := st.Load(ctx, "v1")
	require.NoError(t, err)
	assert.Empty(t, empty.Parts)

	snap := Snapshot{
		Parts:      []board.Part{{ID: "a", Type: board.TypeToken, Width: 5, Height: 5}},
		Properties: []board.PartProperty{{PartID: "a", Side: board.SideFront, Name: "pawn"}},
	}
	require.NoError(t, st.Save(ctx, "v1", snap))

	loaded, err := st.Load(ctx, "v1")
	require.NoError(t, err)
	require.Len(t, loaded.Parts, 1)
	assert.Equal(t, "pawn", loaded.Properties[0].Name)

	// the stored snapshot is isolated from caller mutation
	loaded.Parts[0].ID = "mutated"
	again, err := st.Load(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, "a", again.Parts[0].ID)
}
