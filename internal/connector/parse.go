package connector

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/kaptinlin/jsonrepair"

	"github.com/kleverhq/appilot/internal/action"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// fields is the model-agnostic shape of a reply: the three reasoning strings
// plus the raw action call, before the action itself is parsed.
type fields struct {
	Observation string
	Thought     string
	Action      string
	Summary     string
}

var (
	reObservation = regexp.MustCompile(`(?m)^\s*Observation:\s*(.*?)\s*$`)
	reThought     = regexp.MustCompile(`(?m)^\s*Thought:\s*(.*?)\s*$`)
	reAction      = regexp.MustCompile(`(?m)^\s*Action:\s*(.*?)\s*$`)
	reSummary     = regexp.MustCompile(`(?m)^\s*Summary:\s*(.*?)\s*$`)
)

// parseFields extracts the reply fields, trying the structured JSON grammar
// first and falling back to line-oriented marker extraction. A reply without
// an Action field is an error; a missing Summary becomes the placeholder and
// missing Observation/Thought are tolerated as empty.
func parseFields(raw string) (fields, error) {
	if f, ok := fieldsFromJSON(raw); ok {
		return f, nil
	}
	return fieldsFromMarkers(raw)
}

// fieldsFromJSON extracts the outermost JSON object from the reply, repairing
// malformed JSON (unquoted keys, trailing commas, fenced blocks) before
// giving up.
func fieldsFromJSON(raw string) (fields, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return fields{}, false
	}
	blob := raw[start : end+1]

	var m map[string]any
	if err := json.UnmarshalFromString(blob, &m); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(blob)
		if repairErr != nil {
			return fields{}, false
		}
		if err := json.UnmarshalFromString(repaired, &m); err != nil {
			return fields{}, false
		}
	}

	act, ok := lookupString(m, "Action")
	if !ok {
		return fields{}, false
	}
	f := fields{Action: act}
	f.Observation, _ = lookupString(m, "Observation")
	f.Thought, _ = lookupString(m, "Thought")
	f.Summary, _ = lookupString(m, "Summary")
	if f.Summary == "" {
		f.Summary = action.SummaryPlaceholder
	}
	return f, true
}

// lookupString fetches a string value under the titled or lowercased key.
func lookupString(m map[string]any, key string) (string, bool) {
	for _, k := range []string{key, strings.ToLower(key)} {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s, true
			}
		}
	}
	return "", false
}

// fieldsFromMarkers is the plain-text fallback grammar.
func fieldsFromMarkers(raw string) (fields, error) {
	act := reAction.FindStringSubmatch(raw)
	if act == nil {
		return fields{}, fmt.Errorf("no Action field in reply")
	}
	f := fields{Action: act[1], Summary: action.SummaryPlaceholder}
	if m := reObservation.FindStringSubmatch(raw); m != nil {
		f.Observation = m[1]
	}
	if m := reThought.FindStringSubmatch(raw); m != nil {
		f.Thought = m[1]
	}
	if m := reSummary.FindStringSubmatch(raw); m != nil && m[1] != "" {
		f.Summary = m[1]
	}
	return f, nil
}

// turnFrom assembles a turn from parsed fields and the already-parsed action.
func turnFrom(f fields, act action.Action, raw string) action.Turn {
	return action.Turn{
		Observation: f.Observation,
		Thought:     f.Thought,
		Action:      act,
		Summary:     f.Summary,
		Raw:         raw,
	}
}

// errorTurn wraps a parse failure as an Error-action turn.
func errorTurn(raw string, format string, args ...any) action.Turn {
	return action.Turn{Action: action.Errorf(format, args...), Raw: raw}
}

// callName returns the function name of an action call like "tap(5)".
func callName(call string) string {
	name, _, _ := strings.Cut(call, "(")
	return strings.TrimSpace(name)
}

// callArgs returns the raw argument list of an action call.
func callArgs(call string) (string, bool) {
	open := strings.Index(call, "(")
	end := strings.LastIndex(call, ")")
	if open < 0 || end <= open {
		return "", false
	}
	return call[open+1 : end], true
}

// splitArgs splits an argument list on commas and trims whitespace and
// surrounding quotes from each part.
func splitArgs(list string) []string {
	parts := strings.Split(list, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		p = strings.Trim(p, `"'`)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

var reArgSep = regexp.MustCompile(`[,\s]+`)

// splitSpacedArgs splits an argument list on commas or whitespace, for
// models that drop the comma between coordinates.
func splitSpacedArgs(list string) []string {
	parts := reArgSep.Split(strings.TrimSpace(list), -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

var reQuoted = regexp.MustCompile(`(?s)\(\s*["'](.*)["']\s*\)`)

// quotedArg extracts the quoted string argument of a text(...) call.
func quotedArg(call string) (string, bool) {
	m := reQuoted.FindStringSubmatch(call)
	if m == nil {
		return "", false
	}
	return m[1], true
}

var errMalformed = fmt.Errorf("malformed argument list")

// isFinish matches the bare FINISH completion marker anywhere in the action
// string, which is how models tend to emit it.
func isFinish(call string) bool {
	return strings.Contains(strings.ToUpper(call), "FINISH")
}

func validDirection(dir string) bool {
	switch dir {
	case "up", "down", "left", "right":
		return true
	}
	return false
}

func validDistance(dist string) bool {
	switch dist {
	case "short", "medium", "long":
		return true
	}
	return false
}

// parseInt accepts plain integers and integer-valued floats, which some
// models emit for coordinates.
func parseInt(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	return int(f), nil
}
