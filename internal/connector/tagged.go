package connector

import (
	"regexp"
	"strings"

	"github.com/kleverhq/appilot/internal/action"
	"github.com/kleverhq/appilot/internal/grid"
	"github.com/kleverhq/appilot/internal/prompts"
)

// Tagged is the connector for GUI-specialized models that wrap their
// reasoning in <THINK> tags and emit tab-separated key/value pairs instead of
// bracketed function calls. Coordinates are normalized 0-1000, screenshots go
// out unannotated.
type Tagged struct{}

func (*Tagged) Name() string    { return "tagged" }
func (*Tagged) Annotated() bool { return false }

func (*Tagged) MakePrompt(req Request) string {
	var b strings.Builder
	b.WriteString(prompts.TaggedSystem)
	b.WriteString("\n\nUser instruction: ")
	b.WriteString(req.Task)
	b.WriteString("\nPreviously executed actions: ")
	if strings.TrimSpace(req.History) == "" {
		b.WriteString("No previous actions")
	} else {
		b.WriteString(req.History)
	}
	b.WriteString("\nCurrent mobile screen screenshot:\n[IMAGE]\n\n")
	b.WriteString(prompts.TaggedOutput)
	return b.String()
}

func (*Tagged) MakeGridPrompt(req Request) string {
	return prompts.Render(prompts.GridTemplate, map[string]string{
		"task_description": req.Task,
		"last_act":         historyOrNone(req.History),
	})
}

func (*Tagged) ParseGrid(raw string, lay grid.Layout) action.Turn {
	return parseGridTurn(raw, lay)
}

func (*Tagged) ToPixels(t action.Target, _ []action.Element, size action.Pixel) (action.Pixel, error) {
	return pointToPixels(t, size)
}

// Parse handles the tagged grammar:
//
//	<THINK>reasoning</THINK>
//	explain:...\taction:CLICK\tpoint:x,y\tsummary:...
//
// Delimiter typos and casing (<TINK>, <think>, stray spaces) are normalized
// before field extraction.
func (*Tagged) Parse(raw string) action.Turn {
	text := normalizeThinkTags(strings.TrimSpace(raw))

	thought := ""
	kvPart := text
	if _, rest, found := strings.Cut(text, "<THINK>"); found {
		if cot, tail, closed := strings.Cut(rest, "</THINK>"); closed {
			thought = strings.TrimSpace(cot)
			kvPart = strings.TrimSpace(tail)
		}
	}

	kv := parseTabKV(kvPart)
	act := taggedAction(kv)

	summary := kv["summary"]
	if summary == "" {
		summary = action.SummaryPlaceholder
	}
	return action.Turn{
		Observation: kv["explain"],
		Thought:     thought,
		Action:      act,
		Summary:     summary,
		Raw:         raw,
	}
}

var reThinkTag = regexp.MustCompile(`(?i)<\s*(/?)\s*T+H?I+N+K\s*>`)

// normalizeThinkTags folds the delimiter variants models actually emit
// (<TINK>, <think>, "< THINK >") into the canonical pair.
func normalizeThinkTags(text string) string {
	return reThinkTag.ReplaceAllStringFunc(text, func(m string) string {
		if strings.Contains(m, "/") {
			return "</THINK>"
		}
		return "<THINK>"
	})
}

// parseTabKV splits a tab-separated key/value line. Values may contain
// colons; only the first one separates key from value.
func parseTabKV(line string) map[string]string {
	kv := make(map[string]string)
	for _, part := range strings.Split(line, "\t") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, found := strings.Cut(part, ":")
		if !found {
			continue
		}
		kv[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return kv
}

// taggedAction maps the model's action vocabulary onto the canonical union.
func taggedAction(kv map[string]string) action.Action {
	verb := strings.ToUpper(kv["action"])
	switch verb {
	case "CLICK":
		p, ok := kvPoint(kv, "point")
		if !ok {
			return action.Errorf("CLICK without a point")
		}
		return action.Action{Kind: action.KindTap, Target: action.Target{Point: &p}}

	case "TYPE":
		a := action.Action{Kind: action.KindText, Value: kv["value"]}
		// The input-field position is optional; when present it lets the
		// executor focus the field first.
		if p, ok := kvPoint(kv, "point"); ok {
			a.Target = action.Target{Point: &p}
		}
		return a

	case "LONGPRESS":
		p, ok := kvPoint(kv, "point")
		if !ok {
			return action.Errorf("LONGPRESS without a point")
		}
		return action.Action{Kind: action.KindLongPress, Target: action.Target{Point: &p}}

	case "SLIDE":
		start, ok1 := kvPoint(kv, "point1")
		end, ok2 := kvPoint(kv, "point2")
		if !ok1 || !ok2 {
			return action.Errorf("SLIDE requires point1 and point2")
		}
		return action.Action{
			Kind:   action.KindSwipe,
			Target: action.Target{Point: &start},
			End:    &end,
		}

	case "COMPLETE":
		return action.Action{Kind: action.KindFinish, Value: kv["return"]}

	case "ABORT":
		reason := kv["value"]
		if reason == "" {
			reason = "task aborted by model"
		}
		return action.Errorf("%s", reason)

	case "":
		return action.Errorf("no action field in reply")

	default:
		return action.Errorf("unknown action %q", verb)
	}
}

// kvPoint parses an "x,y" (or "x y") point value.
func kvPoint(kv map[string]string, key string) (action.Point, bool) {
	parts := splitSpacedArgs(strings.ReplaceAll(kv[key], ",", " "))
	if len(parts) < 2 {
		return action.Point{}, false
	}
	x, err1 := parseInt(parts[0])
	y, err2 := parseInt(parts[1])
	if err1 != nil || err2 != nil {
		return action.Point{}, false
	}
	return action.Point{X: x, Y: y}, true
}
