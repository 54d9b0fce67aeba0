// Package report persists the artifacts of a task run: a human-readable
// markdown report per round and machine-readable JSONL logs of every model
// exchange, for replaying prompts offline.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/kleverhq/appilot/internal/action"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Exchange is one model round-trip as logged to the JSONL files.
type Exchange struct {
	Step     int       `json:"step"`
	Time     time.Time `json:"time"`
	Prompt   string    `json:"prompt"`
	Images   []string  `json:"images"`
	Response string    `json:"response"`

	// Performance accounting for the call.
	LatencyMS        int64 `json:"latency_ms"`
	PromptTokens     int   `json:"prompt_tokens"`
	CompletionTokens int   `json:"completion_tokens"`
}

// RoundImages are the screenshot paths taken during one round, relative to
// the run directory.
type RoundImages struct {
	Before        string
	BeforeLabeled string
	After         string
}

// Recorder accumulates one task run's artifacts under a single directory.
type Recorder struct {
	dir     string
	report  *os.File
	explore *os.File
	reflect *os.File
}

// New creates the run directory and opens the report and log files.
func New(dir, task string) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating run dir: %w", err)
	}

	report, err := os.Create(filepath.Join(dir, "report.md"))
	if err != nil {
		return nil, fmt.Errorf("creating report: %w", err)
	}
	explore, err := os.Create(filepath.Join(dir, "explore_log.jsonl"))
	if err != nil {
		report.Close()
		return nil, fmt.Errorf("creating explore log: %w", err)
	}
	reflect, err := os.Create(filepath.Join(dir, "reflect_log.jsonl"))
	if err != nil {
		report.Close()
		explore.Close()
		return nil, fmt.Errorf("creating reflect log: %w", err)
	}

	r := &Recorder{dir: dir, report: report, explore: explore, reflect: reflect}
	header := fmt.Sprintf("# Task run\n\n- Task: %s\n- Started: %s\n",
		task, time.Now().Format(time.RFC3339))
	if _, err := report.WriteString(header); err != nil {
		r.Close()
		return nil, fmt.Errorf("writing report header: %w", err)
	}
	return r, nil
}

// Dir returns the run directory, where round screenshots are also placed.
func (r *Recorder) Dir() string { return r.dir }

// ImagePath returns the path for a round screenshot inside the run dir.
func (r *Recorder) ImagePath(round int, suffix string) string {
	return filepath.Join(r.dir, fmt.Sprintf("%d_%s.png", round, suffix))
}

// LogExplore appends one exploration exchange to the JSONL log.
func (r *Recorder) LogExplore(e Exchange) error {
	return appendJSONL(r.explore, e)
}

// LogReflect appends one reflection exchange to the JSONL log.
func (r *Recorder) LogReflect(e Exchange) error {
	return appendJSONL(r.reflect, e)
}

// Round appends the round's section to the markdown report. refl is nil when
// the round skipped reflection.
func (r *Recorder) Round(round int, turn action.Turn, refl *action.Reflection, imgs RoundImages) error {
	var b strings.Builder
	fmt.Fprintf(&b, "\n## Round %d\n\n", round)
	writeField(&b, "Observation", turn.Observation)
	writeField(&b, "Thought", turn.Thought)
	writeField(&b, "Action", describeAction(turn.Action))
	writeField(&b, "Summary", turn.Summary)
	if refl != nil {
		writeField(&b, "Decision", string(refl.Verdict))
		writeField(&b, "Reflection", refl.Thought)
		writeField(&b, "Documentation", refl.Documentation)
	}

	b.WriteString("\n| Before | Annotated | After |\n|---|---|---|\n")
	fmt.Fprintf(&b, "| %s | %s | %s |\n",
		imageCell(r.dir, imgs.Before),
		imageCell(r.dir, imgs.BeforeLabeled),
		imageCell(r.dir, imgs.After),
	)

	_, err := r.report.WriteString(b.String())
	return err
}

// Finish records the run outcome. It is also used for aborts, so the reason
// reaches the report before the process exits.
func (r *Recorder) Finish(status, detail string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "\n## Outcome\n\n- Status: %s\n", status)
	if detail != "" {
		fmt.Fprintf(&b, "- Detail: %s\n", detail)
	}
	fmt.Fprintf(&b, "- Ended: %s\n", time.Now().Format(time.RFC3339))
	_, err := r.report.WriteString(b.String())
	return err
}

// Close flushes and closes all artifact files.
func (r *Recorder) Close() error {
	var firstErr error
	for _, f := range []*os.File{r.report, r.explore, r.reflect} {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func appendJSONL(f *os.File, e Exchange) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding log entry: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("appending log entry: %w", err)
	}
	return nil
}

func writeField(b *strings.Builder, name, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "- **%s**: %s\n", name, value)
}

func imageCell(dir, path string) string {
	if path == "" {
		return "-"
	}
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		rel = path
	}
	return fmt.Sprintf("![](%s)", rel)
}

// describeAction phrases an action for the report.
func describeAction(a action.Action) string {
	target := ""
	switch {
	case a.Target.HasLabel():
		target = fmt.Sprintf(" element %d", a.Target.Label)
	case a.Target.HasPoint():
		target = fmt.Sprintf(" (%d, %d)", a.Target.Point.X, a.Target.Point.Y)
	}
	switch a.Kind {
	case action.KindTap:
		return "tap" + target
	case action.KindLongPress:
		return "long press" + target
	case action.KindText:
		return fmt.Sprintf("type %q", a.Value)
	case action.KindSwipe:
		if a.Direction != "" {
			return fmt.Sprintf("swipe %s (%s)%s", a.Direction, a.Distance, target)
		}
		if a.End != nil {
			return fmt.Sprintf("swipe%s to (%d, %d)", target, a.End.X, a.End.Y)
		}
		return "swipe" + target
	case action.KindGrid:
		return "request grid overlay"
	case action.KindFinish:
		return "finish: " + a.Value
	case action.KindError:
		return "error: " + a.Value
	}
	return string(a.Kind)
}
