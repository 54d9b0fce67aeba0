package android

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/kleverhq/appilot/internal/action"
)

// maxDescLen caps the content-desc suffix folded into a uid; longer
// descriptions are free text and would make the uid unstable.
const maxDescLen = 20

// elementsFromDump parses a UI Automator hierarchy dump into interactive
// elements, clickable nodes first, then focusable ones.
func elementsFromDump(data []byte) ([]action.Element, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("parsing ui dump: %w", err)
	}

	var elems []action.Element
	for _, kind := range []action.ElementKind{action.ElementClickable, action.ElementFocusable} {
		collect(doc.Root(), string(kind), kind, &elems)
	}
	return elems, nil
}

// collect walks the hierarchy and appends every node whose attr (clickable
// or focusable) is "true".
func collect(el *etree.Element, attr string, kind action.ElementKind, out *[]action.Element) {
	if el == nil {
		return
	}
	if el.SelectAttrValue(attr, "") == "true" {
		if e, err := elementFrom(el, kind); err == nil {
			*out = append(*out, e)
		}
	}
	for _, child := range el.ChildElements() {
		collect(child, attr, kind, out)
	}
}

func elementFrom(el *etree.Element, kind action.ElementKind) (action.Element, error) {
	tl, br, err := parseBounds(el.SelectAttrValue("bounds", ""))
	if err != nil {
		return action.Element{}, err
	}

	uid := nodeUID(el)
	// The parent prefix keeps uids of generic children (e.g. bare
	// ImageViews inside list rows) distinct across rows.
	if parent := el.Parent(); parent != nil && parent.SelectAttrValue("bounds", "") != "" {
		uid = nodeUID(parent) + "_" + uid
	}
	if idx := el.SelectAttrValue("index", ""); idx != "" {
		uid += "_" + idx
	}

	return action.Element{UID: uid, TopLeft: tl, BottomRight: br, Kind: kind}, nil
}

// nodeUID derives a deterministic identity from stable node attributes:
// resource-id when present, otherwise class plus box size, plus a short
// content-desc suffix when available.
func nodeUID(el *etree.Element) string {
	tl, br, err := parseBounds(el.SelectAttrValue("bounds", ""))
	if err != nil {
		return el.SelectAttrValue("class", "node")
	}

	var uid string
	if rid := el.SelectAttrValue("resource-id", ""); rid != "" {
		uid = strings.NewReplacer(":", ".", "/", "_").Replace(rid)
	} else {
		uid = fmt.Sprintf("%s_%d_%d", el.SelectAttrValue("class", "node"), br.X-tl.X, br.Y-tl.Y)
	}
	if desc := el.SelectAttrValue("content-desc", ""); desc != "" && len(desc) < maxDescLen {
		uid += "_" + strings.NewReplacer("/", "_", " ", "", ":", "_").Replace(desc)
	}
	return uid
}

// parseBounds parses the UI Automator "[x1,y1][x2,y2]" bounds format.
func parseBounds(bounds string) (tl, br action.Pixel, err error) {
	trimmed := strings.TrimSuffix(strings.TrimPrefix(bounds, "["), "]")
	first, second, found := strings.Cut(trimmed, "][")
	if !found {
		return tl, br, fmt.Errorf("malformed bounds %q", bounds)
	}
	if tl, err = parsePoint(first); err != nil {
		return tl, br, fmt.Errorf("malformed bounds %q: %w", bounds, err)
	}
	if br, err = parsePoint(second); err != nil {
		return tl, br, fmt.Errorf("malformed bounds %q: %w", bounds, err)
	}
	return tl, br, nil
}

func parsePoint(s string) (action.Pixel, error) {
	xs, ys, found := strings.Cut(s, ",")
	if !found {
		return action.Pixel{}, fmt.Errorf("malformed point %q", s)
	}
	x, err := strconv.Atoi(strings.TrimSpace(xs))
	if err != nil {
		return action.Pixel{}, err
	}
	y, err := strconv.Atoi(strings.TrimSpace(ys))
	if err != nil {
		return action.Pixel{}, err
	}
	return action.Pixel{X: x, Y: y}, nil
}
