package connector

import (
	"github.com/kleverhq/appilot/internal/action"
	"github.com/kleverhq/appilot/internal/grid"
	"github.com/kleverhq/appilot/internal/prompts"
)

// Label is the default connector for general-purpose vision models (GPT,
// Gemini, Qwen and similar). Screenshots carry numeric element labels and the
// model answers with tap(5)-style calls referencing those labels.
type Label struct{}

func (*Label) Name() string    { return "label" }
func (*Label) Annotated() bool { return true }

func (*Label) MakePrompt(req Request) string {
	return prompts.Render(prompts.ExploreTemplate, map[string]string{
		"ui_document":      req.Docs,
		"task_description": req.Task,
		"last_act":         historyOrNone(req.History),
	})
}

func (*Label) MakeGridPrompt(req Request) string {
	return prompts.Render(prompts.GridTemplate, map[string]string{
		"task_description": req.Task,
		"last_act":         historyOrNone(req.History),
	})
}

func (*Label) Parse(raw string) action.Turn {
	f, err := parseFields(raw)
	if err != nil {
		return errorTurn(raw, "parsing reply: %v", err)
	}
	return turnFrom(f, parseLabelCall(f.Action), raw)
}

func (*Label) ParseGrid(raw string, lay grid.Layout) action.Turn {
	return parseGridTurn(raw, lay)
}

func (*Label) ToPixels(t action.Target, elems []action.Element, size action.Pixel) (action.Pixel, error) {
	// Grid re-prompt turns carry normalized points instead of labels.
	if t.HasPoint() {
		return pointToPixels(t, size)
	}
	return labelToPixels(t, elems)
}

// parseLabelCall parses the label-mode action grammar: tap(N), text("..."),
// long_press(N), swipe(N, "direction", "distance"), grid(), FINISH.
func parseLabelCall(call string) action.Action {
	if isFinish(call) {
		return action.Action{Kind: action.KindFinish}
	}
	switch name := callName(call); name {
	case "tap", "long_press":
		args, ok := callArgs(call)
		if !ok {
			return action.Errorf("malformed call %q", call)
		}
		parts := splitArgs(args)
		if len(parts) != 1 {
			return action.Errorf("%s takes one element label, got %q", name, args)
		}
		label, err := parseInt(parts[0])
		if err != nil || label < 1 {
			return action.Errorf("bad element label in %q", call)
		}
		kind := action.KindTap
		if name == "long_press" {
			kind = action.KindLongPress
		}
		return action.Action{Kind: kind, Target: action.Target{Label: label}}

	case "text":
		value, ok := quotedArg(call)
		if !ok {
			return action.Errorf("text argument must be quoted in %q", call)
		}
		return action.Action{Kind: action.KindText, Value: value}

	case "swipe":
		args, ok := callArgs(call)
		if !ok {
			return action.Errorf("malformed call %q", call)
		}
		parts := splitArgs(args)
		if len(parts) != 3 {
			return action.Errorf("swipe takes (element, direction, dist), got %q", args)
		}
		label, err := parseInt(parts[0])
		if err != nil || label < 1 {
			return action.Errorf("bad element label in %q", call)
		}
		if !validDirection(parts[1]) {
			return action.Errorf("bad swipe direction %q", parts[1])
		}
		if !validDistance(parts[2]) {
			return action.Errorf("bad swipe distance %q", parts[2])
		}
		return action.Action{
			Kind:      action.KindSwipe,
			Target:    action.Target{Label: label},
			Direction: parts[1],
			Distance:  parts[2],
		}

	case "grid":
		return action.Action{Kind: action.KindGrid}

	default:
		return action.Errorf("unknown action %q", name)
	}
}

// parseGridTurn parses the grid-overlay grammar shared by every connector:
// tap(area, "subarea"), long_press(area, "subarea"), swipe(start_area,
// "start_subarea", end_area, "end_subarea"), grid(), FINISH. Area/subarea
// pairs are converted to normalized points right here so downstream code only
// ever sees point targets.
func parseGridTurn(raw string, lay grid.Layout) action.Turn {
	f, err := parseFields(raw)
	if err != nil {
		return errorTurn(raw, "parsing grid reply: %v", err)
	}
	return turnFrom(f, parseGridCall(f.Action, lay), raw)
}

func parseGridCall(call string, lay grid.Layout) action.Action {
	if isFinish(call) {
		return action.Action{Kind: action.KindFinish}
	}
	switch name := callName(call); name {
	case "tap", "long_press":
		p, err := gridPoint(call, lay, 0)
		if err != nil {
			return action.Errorf("bad grid call %q: %v", call, err)
		}
		kind := action.KindTap
		if name == "long_press" {
			kind = action.KindLongPress
		}
		return action.Action{Kind: kind, Target: action.Target{Point: &p}}

	case "swipe":
		start, err := gridPoint(call, lay, 0)
		if err != nil {
			return action.Errorf("bad grid call %q: %v", call, err)
		}
		end, err := gridPoint(call, lay, 2)
		if err != nil {
			return action.Errorf("bad grid call %q: %v", call, err)
		}
		return action.Action{
			Kind:   action.KindSwipe,
			Target: action.Target{Point: &start},
			End:    &end,
		}

	case "grid":
		return action.Action{Kind: action.KindGrid}

	default:
		return action.Errorf("unknown grid action %q", name)
	}
}

// gridPoint reads the (area, subarea) pair starting at argument offset and
// maps it into normalized space.
func gridPoint(call string, lay grid.Layout, offset int) (action.Point, error) {
	args, ok := callArgs(call)
	if !ok {
		return action.Point{}, errMalformed
	}
	parts := splitArgs(args)
	if len(parts) < offset+2 {
		return action.Point{}, errMalformed
	}
	area, err := parseInt(parts[offset])
	if err != nil {
		return action.Point{}, err
	}
	return lay.ToNormalized(area, parts[offset+1])
}
