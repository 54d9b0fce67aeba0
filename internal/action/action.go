// Package action defines the canonical action model shared by every model
// connector and consumed by the device executors. Connectors translate their
// model's response grammar into exactly one Action per turn; nothing outside
// this package ever inspects raw model text.
package action

import "fmt"

// NormalizedMax is the upper bound of the normalized coordinate space used by
// coordinate-emitting models. Both axes run 0..1000 regardless of the actual
// screen resolution.
const NormalizedMax = 1000

// SummaryPlaceholder is substituted when a model omits the Summary field from
// an otherwise valid reply. A successful turn never carries an empty summary.
const SummaryPlaceholder = "No summary available"

// Kind enumerates the canonical action variants.
type Kind string

const (
	KindTap       Kind = "tap"
	KindLongPress Kind = "long_press"
	KindText      Kind = "text"
	KindSwipe     Kind = "swipe"
	KindGrid      Kind = "grid"
	KindFinish    Kind = "FINISH"
	KindError     Kind = "ERROR"
)

// Point is a location in the normalized 0-1000 coordinate space.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Pixel is a location in device pixels.
type Pixel struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Target identifies where an action lands. Exactly one of Label or Point is
// set; the mode is fixed per connector. Label is 1-based and refers to the
// numbered overlay drawn on the screenshot presented to the model.
type Target struct {
	Label int    `json:"label,omitempty"`
	Point *Point `json:"point,omitempty"`
}

// HasLabel reports whether the target references a labeled element.
func (t Target) HasLabel() bool { return t.Label > 0 }

// HasPoint reports whether the target carries a normalized point.
func (t Target) HasPoint() bool { return t.Point != nil }

// Action is the tagged union produced by connectors. The populated fields
// depend on Kind:
//
//	Tap, LongPress  Target
//	Text            Value (Target optionally carries the field position)
//	Swipe           Target plus either Direction+Distance or End
//	Grid            nothing (requests the precision overlay re-prompt)
//	Finish          Value holds the completion summary
//	Error           Value holds the reason
type Action struct {
	Kind      Kind    `json:"kind"`
	Target    Target  `json:"target,omitempty"`
	End       *Point  `json:"end,omitempty"`
	Value     string  `json:"value,omitempty"`
	Direction string  `json:"direction,omitempty"`
	Distance  string  `json:"distance,omitempty"`
}

// Errorf builds a canonical Error action. Parse failures surface through this
// rather than as Go errors so the task loop sees a single failure path.
func Errorf(format string, args ...any) Action {
	return Action{Kind: KindError, Value: fmt.Sprintf(format, args...)}
}

// Turn is one fully parsed model reply: the free-text reasoning fields plus
// the single canonical action. Summary feeds the next round's prompt as the
// running memory string.
type Turn struct {
	Observation string `json:"observation"`
	Thought     string `json:"thought"`
	Action      Action `json:"action"`
	Summary     string `json:"summary"`
	Raw         string `json:"raw,omitempty"`
}

// DocKind enumerates the per-element documentation slots. Swipes are split by
// axis because vertical and horizontal swipes on the same control usually do
// different things.
type DocKind string

const (
	DocTap       DocKind = "tap"
	DocText      DocKind = "text"
	DocVSwipe    DocKind = "v_swipe"
	DocHSwipe    DocKind = "h_swipe"
	DocLongPress DocKind = "long_press"
)

// DocKinds lists every documentation slot in stable order.
func DocKinds() []DocKind {
	return []DocKind{DocTap, DocText, DocVSwipe, DocHSwipe, DocLongPress}
}

// DocKindFor maps an executed action to its documentation slot. Swipe
// direction decides the axis; anything undocumentable returns "".
func DocKindFor(a Action) DocKind {
	switch a.Kind {
	case KindTap:
		return DocTap
	case KindText:
		return DocText
	case KindLongPress:
		return DocLongPress
	case KindSwipe:
		switch a.Direction {
		case "up", "down":
			return DocVSwipe
		case "left", "right":
			return DocHSwipe
		}
		// Point-to-point swipes are classified by the dominant axis.
		if a.Target.HasPoint() && a.End != nil {
			dx := abs(a.End.X - a.Target.Point.X)
			dy := abs(a.End.Y - a.Target.Point.Y)
			if dy > dx {
				return DocVSwipe
			}
			return DocHSwipe
		}
	}
	return ""
}

// Verdict is the reflection engine's classification of the last action.
type Verdict string

const (
	VerdictBack        Verdict = "BACK"
	VerdictContinue    Verdict = "CONTINUE"
	VerdictSuccess     Verdict = "SUCCESS"
	VerdictIneffective Verdict = "INEFFECTIVE"
	VerdictError       Verdict = "ERROR"
)

// Reflection is a parsed reflection reply. Documentation is non-empty for
// BACK, CONTINUE and SUCCESS (a placeholder is synthesized when the model
// omits it) and always empty for INEFFECTIVE.
type Reflection struct {
	Verdict       Verdict `json:"verdict"`
	Thought       string  `json:"thought"`
	Documentation string  `json:"documentation,omitempty"`
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
