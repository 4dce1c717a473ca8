package board

import "errors"

var ErrValidation = errors.New("invalid payload")
var ErrNotFound = errors.New("part not found")
var ErrConflict = errors.New("part locked by another member")

type PartType string

const (
	TypeCard  PartType = "card"
	TypeToken PartType = "token"
	TypeHand  PartType = "hand"
	TypeDeck  PartType = "deck"
	TypeArea  PartType = "area"
)

type Side string

const (
	SideFront Side = "front"
	SideBack  Side = "back"
)

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Part is one placeable element on the canvas. Order is the real-valued
// stacking key: higher paints on top, ties broken by ascending ID.
type Part struct {
	ID                   string   `json:"id"`
	Type                 PartType `json:"type"`
	Position             Point    `json:"position"`
	Width                float64  `json:"width"`
	Height               float64  `json:"height"`
	Order                float64  `json:"order"`
	ParentID             string   `json:"parentId,omitempty"`
	FrontSide            Side     `json:"frontSide,omitempty"`
	OwnerID              string   `json:"ownerId,omitempty"`
	IsReversible         bool     `json:"isReversible,omitempty"`
	CanReverseCardOnDeck bool     `json:"canReverseCardOnDeck,omitempty"`
}

// PartProperty is the per-side display row of a part. A card has exactly a
// front and a back row; every other type has a front row only.
type PartProperty struct {
	PartID      string `json:"partId"`
	Side        Side   `json:"side"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"`
	TextColor   string `json:"textColor"`
	ImageID     string `json:"imageId,omitempty"`
}

// PropKey identifies one property row.
type PropKey struct {
	PartID string
	Side   Side
}

func (p PartProperty) Key() PropKey { return PropKey{PartID: p.PartID, Side: p.Side} }

type Canvas struct {
	Width  float64
	Height float64
}

// Clamp pulls a part's position back into the canvas so the whole part stays
// visible. Each part clamps against its own width/height, independent of any
// co-selected parts.
func Clamp(pos Point, width, height float64, c Canvas) Point {
	pos.X = clampAxis(pos.X, c.Width-width)
	pos.Y = clampAxis(pos.Y, c.Height-height)
	return pos
}

func clampAxis(v, max float64) float64 {
	if max < 0 {
		max = 0
	}
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}

func validType(t PartType) bool {
	switch t {
	case TypeCard, TypeToken, TypeHand, TypeDeck, TypeArea:
		return true
	}
	return false
}

func validSide(s Side) bool { return s == SideFront || s == SideBack }

// ValidateNew checks a part and its property rows before the part is admitted
// to a room: known type, positive extent, and the per-type side contract
// (card -> front+back, everything else -> front only).
func ValidateNew(p Part, props []PartProperty) error {
	if !validType(p.Type) {
		return ErrValidation
	}
	if p.Width <= 0 || p.Height <= 0 {
		return ErrValidation
	}
	if p.Type == TypeCard && p.FrontSide != "" && !validSide(p.FrontSide) {
		return ErrValidation
	}
	seen := map[Side]bool{}
	for _, pr := range props {
		if !validSide(pr.Side) {
			return ErrValidation
		}
		if seen[pr.Side] {
			return ErrValidation
		}
		seen[pr.Side] = true
	}
	if p.Type == TypeCard {
		if !seen[SideFront] || !seen[SideBack] {
			return ErrValidation
		}
	} else {
		if !seen[SideFront] || seen[SideBack] {
			return ErrValidation
		}
	}
	return nil
}
