package board

import "sort"

type ReorderTarget string

const (
	ToFront     ReorderTarget = "front"
	ToBack      ReorderTarget = "back"
	ToFrontmost ReorderTarget = "frontmost"
	ToBackmost  ReorderTarget = "backmost"
)

func ValidReorderTarget(t ReorderTarget) bool {
	switch t {
	case ToFront, ToBack, ToFrontmost, ToBackmost:
		return true
	}
	return false
}

// NextOrder returns the order for a freshly added part: one above the current
// top of the stack.
func NextOrder(parts map[string]Part) float64 {
	if len(parts) == 0 {
		return 1
	}
	first := true
	var top float64
	for _, p := range parts {
		if first || p.Order > top {
			top = p.Order
			first = false
		}
	}
	return top + 1
}

// sortedByOrder returns every part sorted ascending by (order, id).
func sortedByOrder(parts map[string]Part) []Part {
	out := make([]Part, 0, len(parts))
	for _, p := range parts {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ReorderedValue computes the new order for partID under the given target.
//
//	frontmost -> max(all) + 1
//	backmost  -> min(all) - 1
//	front     -> midpoint with the next strictly higher order, or current+1 at the top
//	back      -> midpoint with the next strictly lower order, or current-1 at the bottom
//
// Neighbors tied with the moving part are skipped, so front and back always
// move the part past at least one other part.
func ReorderedValue(parts map[string]Part, partID string, target ReorderTarget) (float64, error) {
	p, ok := parts[partID]
	if !ok {
		return 0, ErrNotFound
	}
	if !ValidReorderTarget(target) {
		return 0, ErrValidation
	}

	switch target {
	case ToFrontmost:
		top := p.Order
		for _, q := range parts {
			if q.Order > top {
				top = q.Order
			}
		}
		return top + 1, nil

	case ToBackmost:
		bottom := p.Order
		for _, q := range parts {
			if q.Order < bottom {
				bottom = q.Order
			}
		}
		return bottom - 1, nil
	}

	sorted := sortedByOrder(parts)
	idx := 0
	for i, q := range sorted {
		if q.ID == partID {
			idx = i
			break
		}
	}

	if target == ToFront {
		next := idx + 1
		for next < len(sorted) && sorted[next].Order == p.Order {
			next++
		}
		if next == len(sorted) {
			return p.Order + 1, nil
		}
		return (p.Order + sorted[next].Order) / 2, nil
	}
	prev := idx - 1
	for prev >= 0 && sorted[prev].Order == p.Order {
		prev--
	}
	if prev < 0 {
		return p.Order - 1, nil
	}
	return (p.Order + sorted[prev].Order) / 2, nil
}
