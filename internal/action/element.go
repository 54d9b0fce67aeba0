package action

import "math"

// ElementKind mirrors the accessibility attribute the element was harvested
// under.
type ElementKind string

const (
	ElementClickable ElementKind = "clickable"
	ElementFocusable ElementKind = "focusable"
)

// Element is one interactive control found by the perception adapter. UID is
// derived deterministically from stable UI attributes so the same logical
// control keeps the same identity across rounds; elements themselves are
// rebuilt from scratch every round and never persisted.
type Element struct {
	UID         string      `json:"uid"`
	TopLeft     Pixel       `json:"top_left"`
	BottomRight Pixel       `json:"bottom_right"`
	Kind        ElementKind `json:"kind"`
}

// Center returns the bounding-box center in device pixels.
func (e Element) Center() Pixel {
	return Pixel{
		X: (e.TopLeft.X + e.BottomRight.X) / 2,
		Y: (e.TopLeft.Y + e.BottomRight.Y) / 2,
	}
}

// Contains reports whether the pixel lies inside the bounding box.
func (e Element) Contains(p Pixel) bool {
	return p.X >= e.TopLeft.X && p.X < e.BottomRight.X &&
		p.Y >= e.TopLeft.Y && p.Y < e.BottomRight.Y
}

// FilterElements builds the round's presented element list: useless elements
// (judged ineffective or regressive earlier in the run) are dropped first so
// the numeric labels stay dense, then near-duplicates are suppressed. A
// candidate whose center lies within minDist pixels of an already kept
// element's center is dropped. Element counts per screen are small, so the
// quadratic scan is fine.
func FilterElements(elems []Element, useless map[string]struct{}, minDist float64) []Element {
	kept := make([]Element, 0, len(elems))
	for _, e := range elems {
		if _, skip := useless[e.UID]; skip {
			continue
		}
		if tooClose(e, kept, minDist) {
			continue
		}
		kept = append(kept, e)
	}
	return kept
}

func tooClose(e Element, kept []Element, minDist float64) bool {
	c := e.Center()
	for _, k := range kept {
		kc := k.Center()
		dx := float64(c.X - kc.X)
		dy := float64(c.Y - kc.Y)
		if math.Hypot(dx, dy) <= minDist {
			return true
		}
	}
	return false
}

// FindAt returns the first element containing the pixel, used to attribute a
// coordinate-mode action to a logical control for documentation purposes.
func FindAt(elems []Element, p Pixel) (Element, bool) {
	for _, e := range elems {
		if e.Contains(p) {
			return e, true
		}
	}
	return Element{}, false
}
