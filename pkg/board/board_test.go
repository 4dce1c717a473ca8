package board

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cardProps(id string) []PartProperty {
	return []PartProperty{
		{PartID: id, Side: SideFront, Name: "front"},
		{PartID: id, Side: SideBack, Name: "back"},
	}
}

func TestClamp_KeepsPartInsideCanvas(t *testing.T) {
	c := Canvas{Width: 100, Height: 50}

	assert.Equal(t, Point{X: 90, Y: 40}, Clamp(Point{X: 95, Y: 45}, 10, 10, c))
	assert.Equal(t, Point{X: 0, Y: 0}, Clamp(Point{X: -5, Y: -5}, 10, 10, c))
	assert.Equal(t, Point{X: 30, Y: 20}, Clamp(Point{X: 30, Y: 20}, 10, 10, c))
}

func TestClamp_PartWiderThanCanvasPinsToOrigin(t *testing.T) {
	c := Canvas{Width: 12, Height: 12}
	assert.Equal(t, Point{X: 0, Y: 2}, Clamp(Point{X: 4, Y: 2}, 20, 5, c))
}

func TestValidateNew_SideContract(t *testing.T) {
	card := Part{ID: "c1", Type: TypeCard, Width: 10, Height: 15}
	require.NoError(t, ValidateNew(card, cardProps("c1")))

	// card missing its back row
	err := ValidateNew(card, []PartProperty{{PartID: "c1", Side: SideFront}})
	require.ErrorIs(t, err, ErrValidation)

	token := Part{ID: "t1", Type: TypeToken, Width: 10, Height: 10}
	require.NoError(t, ValidateNew(token, []PartProperty{{PartID: "t1", Side: SideFront}}))

	// token must not carry a back row
	err = ValidateNew(token, cardProps("t1"))
	require.ErrorIs(t, err, ErrValidation)
}

func TestValidateNew_RejectsUnknownTypeAndZeroExtent(t *testing.T) {
	bad := Part{ID: "x", Type: "blob", Width: 10, Height: 10}
	require.ErrorIs(t, ValidateNew(bad, nil), ErrValidation)

	flat := Part{ID: "x", Type: TypeArea, Width: 0, Height: 10}
	require.ErrorIs(t, ValidateNew(flat, []PartProperty{{PartID: "x", Side: SideFront}}), ErrValidation)
}
