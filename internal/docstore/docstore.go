// Package docstore persists what the agent has learned about individual UI
// elements. Each element uid gets one JSON file holding a documentation slot
// per action kind; the task loop feeds these back into later prompts so the
// model does not rediscover the same controls.
package docstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/kleverhq/appilot/internal/action"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Doc holds the documentation slots for one element.
type Doc struct {
	Tap       string `json:"tap,omitempty"`
	Text      string `json:"text,omitempty"`
	VSwipe    string `json:"v_swipe,omitempty"`
	HSwipe    string `json:"h_swipe,omitempty"`
	LongPress string `json:"long_press,omitempty"`
}

// Get returns the slot for kind, empty for unknown kinds.
func (d Doc) Get(kind action.DocKind) string {
	switch kind {
	case action.DocTap:
		return d.Tap
	case action.DocText:
		return d.Text
	case action.DocVSwipe:
		return d.VSwipe
	case action.DocHSwipe:
		return d.HSwipe
	case action.DocLongPress:
		return d.LongPress
	}
	return ""
}

func (d *Doc) set(kind action.DocKind, content string) {
	switch kind {
	case action.DocTap:
		d.Tap = content
	case action.DocText:
		d.Text = content
	case action.DocVSwipe:
		d.VSwipe = content
	case action.DocHSwipe:
		d.HSwipe = content
	case action.DocLongPress:
		d.LongPress = content
	}
}

// Empty reports whether no slot is documented.
func (d Doc) Empty() bool {
	for _, k := range action.DocKinds() {
		if d.Get(k) != "" {
			return false
		}
	}
	return true
}

// Render formats the documented slots as prompt text, one sentence per slot.
func (d Doc) Render() string {
	var b strings.Builder
	write := func(lead, content string) {
		if content == "" {
			return
		}
		b.WriteString(lead)
		b.WriteString(strings.TrimSpace(content))
		b.WriteString("\n")
	}
	write("This UI element is clickable. ", d.Tap)
	write("This UI element can receive text input. The text input is used for the following purposes. ", d.Text)
	write("This element can be swiped directly without tapping. You can swipe vertically on this UI element. ", d.VSwipe)
	write("You can swipe horizontally on this UI element. ", d.HSwipe)
	write("You can long press this UI element. ", d.LongPress)
	return strings.TrimSuffix(b.String(), "\n")
}

// Store is a directory of per-uid documentation files.
type Store struct {
	dir    string
	logger *zap.Logger
}

// Open ensures the store directory exists.
func Open(dir string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating docstore dir: %w", err)
	}
	return &Store{dir: dir, logger: logger.Named("docstore")}, nil
}

// Load returns the documentation for uid, or an empty Doc when the element
// has never been documented.
func (s *Store) Load(uid string) (Doc, error) {
	data, err := os.ReadFile(s.path(uid))
	if os.IsNotExist(err) {
		return Doc{}, nil
	}
	if err != nil {
		return Doc{}, fmt.Errorf("reading doc for %s: %w", uid, err)
	}
	var d Doc
	if err := json.Unmarshal(data, &d); err != nil {
		return Doc{}, fmt.Errorf("decoding doc for %s: %w", uid, err)
	}
	return d, nil
}

// Record writes content into the element's slot for kind. A slot that is
// already documented is left untouched and Record reports false; earlier
// observations are considered more reliable than later re-derivations.
func (s *Store) Record(uid string, kind action.DocKind, content string) (bool, error) {
	if kind == "" || strings.TrimSpace(content) == "" {
		return false, nil
	}
	d, err := s.Load(uid)
	if err != nil {
		return false, err
	}
	if d.Get(kind) != "" {
		s.logger.Debug("element already documented",
			zap.String("uid", uid),
			zap.String("kind", string(kind)),
		)
		return false, nil
	}
	d.set(kind, content)

	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return false, fmt.Errorf("encoding doc for %s: %w", uid, err)
	}
	if err := os.WriteFile(s.path(uid), data, 0o644); err != nil {
		return false, fmt.Errorf("writing doc for %s: %w", uid, err)
	}
	return true, nil
}

// Size returns the number of documented elements.
func (s *Store) Size() (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("listing docstore: %w", err)
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			n++
		}
	}
	return n, nil
}

func (s *Store) path(uid string) string {
	return filepath.Join(s.dir, uid+".json")
}
