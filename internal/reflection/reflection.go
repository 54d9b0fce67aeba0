// Package reflection judges the effect of an executed action by comparing
// before and after screenshots. The verdict drives the task loop: whether to
// go back, keep going, stop, or blacklist the element; the documentation
// string feeds the docstore.
package reflection

import (
	"fmt"
	"regexp"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/kaptinlin/jsonrepair"

	"github.com/kleverhq/appilot/internal/action"
	"github.com/kleverhq/appilot/internal/prompts"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DocPlaceholder is substituted when the model reaches a verdict that needs
// documentation but omits the Documentation field.
const DocPlaceholder = "No documentation available"

// minReplyLen guards against truncated replies; anything shorter cannot
// contain a decision.
const minReplyLen = len("INEFFECTIVE")

// BuildPrompt renders the reflection prompt for an executed action.
// actionDesc names the action ("tapping", "swiping up on"), elementDesc
// identifies the target as shown to the model, lastAct is the running
// summary from the previous round.
func BuildPrompt(actionDesc, elementDesc, taskDesc, lastAct string) string {
	if lastAct == "" {
		lastAct = "None"
	}
	return prompts.Render(prompts.ReflectTemplate, map[string]string{
		"action":     actionDesc,
		"ui_element": elementDesc,
		"task_desc":  taskDesc,
		"last_act":   lastAct,
	})
}

// ActionDesc phrases an action for the reflection prompt.
func ActionDesc(a action.Action) string {
	switch a.Kind {
	case action.KindTap:
		return "tapping"
	case action.KindLongPress:
		return "long pressing"
	case action.KindText:
		return "typing text into"
	case action.KindSwipe:
		if a.Direction != "" {
			return fmt.Sprintf("swiping %s on", a.Direction)
		}
		return "swiping on"
	}
	return "interacting with"
}

var (
	reDecision = regexp.MustCompile(`(?m)^\s*Decision:\s*(.*?)\s*$`)
	reThought  = regexp.MustCompile(`(?m)^\s*Thought:\s*(.*?)\s*$`)
	reDoc      = regexp.MustCompile(`(?m)^\s*Documentation:\s*(.*?)\s*$`)
)

// Parse extracts the verdict from a reflection reply, trying the structured
// JSON grammar first and falling back to line markers. BACK, CONTINUE and
// SUCCESS always come back with non-empty documentation; INEFFECTIVE never
// carries any.
func Parse(raw string) (action.Reflection, error) {
	if len(strings.TrimSpace(raw)) < minReplyLen {
		return action.Reflection{}, fmt.Errorf("reflection reply too short: %q", raw)
	}

	r, ok := fromJSON(raw)
	if !ok {
		var err error
		r, err = fromMarkers(raw)
		if err != nil {
			return action.Reflection{}, err
		}
	}

	verdict, err := parseVerdict(r.Verdict)
	if err != nil {
		return action.Reflection{}, err
	}
	r.Verdict = verdict

	switch verdict {
	case action.VerdictIneffective:
		r.Documentation = ""
	default:
		if strings.TrimSpace(r.Documentation) == "" {
			r.Documentation = DocPlaceholder
		}
	}
	return r, nil
}

func fromJSON(raw string) (action.Reflection, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return action.Reflection{}, false
	}
	blob := raw[start : end+1]

	var m map[string]any
	if err := json.UnmarshalFromString(blob, &m); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(blob)
		if repairErr != nil {
			return action.Reflection{}, false
		}
		if err := json.UnmarshalFromString(repaired, &m); err != nil {
			return action.Reflection{}, false
		}
	}

	decision, ok := lookup(m, "Decision")
	if !ok {
		return action.Reflection{}, false
	}
	r := action.Reflection{Verdict: action.Verdict(decision)}
	r.Thought, _ = lookup(m, "Thought")
	r.Documentation, _ = lookup(m, "Documentation")
	return r, true
}

func lookup(m map[string]any, key string) (string, bool) {
	for _, k := range []string{key, strings.ToLower(key)} {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s, true
			}
		}
	}
	return "", false
}

func fromMarkers(raw string) (action.Reflection, error) {
	m := reDecision.FindStringSubmatch(raw)
	if m == nil {
		return action.Reflection{}, fmt.Errorf("no Decision field in reflection reply")
	}
	r := action.Reflection{Verdict: action.Verdict(m[1])}
	if t := reThought.FindStringSubmatch(raw); t != nil {
		r.Thought = t[1]
	}
	if d := reDoc.FindStringSubmatch(raw); d != nil {
		r.Documentation = d[1]
	}
	return r, nil
}

// parseVerdict normalizes the decision string; models occasionally wrap the
// keyword in extra prose or punctuation.
func parseVerdict(v action.Verdict) (action.Verdict, error) {
	up := strings.ToUpper(string(v))
	for _, known := range []action.Verdict{
		action.VerdictIneffective,
		action.VerdictContinue,
		action.VerdictSuccess,
		action.VerdictBack,
	} {
		if strings.Contains(up, string(known)) {
			return known, nil
		}
	}
	return "", fmt.Errorf("unknown reflection decision %q", v)
}
