// Package web drives a Chrome tab through chromedp: screenshots for
// perception, a DOM walk for element enumeration, CDP input dispatch for
// actions.
package web

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/kleverhq/appilot/internal/action"
	"github.com/kleverhq/appilot/internal/config"
)

const longPressHold = time.Second

// Session is the chromedp-backed device adapter. It owns the browser process
// and a single tab for the lifetime of the task.
type Session struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc

	size   action.Pixel
	logger *zap.Logger
}

// New launches the browser, opens a tab and navigates to the configured
// start URL. The caller must Close the session to tear the process down.
func New(ctx context.Context, cfg config.WebConfig, logger *zap.Logger) (*Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", cfg.Headless),
		chromedp.WindowSize(cfg.ViewportWidth, cfg.ViewportHeight),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	s := &Session{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		logger:      logger.Named("device.web"),
	}

	navCtx, cancel := context.WithTimeout(tabCtx, cfg.NavTimeout)
	defer cancel()
	if err := chromedp.Run(navCtx,
		chromedp.Navigate(cfg.StartURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		s.teardown()
		return nil, fmt.Errorf("navigating to %s: %w", cfg.StartURL, err)
	}

	var dims []int
	if err := chromedp.Run(tabCtx,
		chromedp.Evaluate(`[window.innerWidth, window.innerHeight]`, &dims),
	); err != nil || len(dims) != 2 {
		s.teardown()
		return nil, fmt.Errorf("querying viewport size: %w", err)
	}
	s.size = action.Pixel{X: dims[0], Y: dims[1]}

	s.logger.Info("browser session started",
		zap.String("url", cfg.StartURL),
		zap.Int("width", s.size.X),
		zap.Int("height", s.size.Y),
	)
	return s, nil
}

func (s *Session) Name() string { return "web" }

func (s *Session) Close(context.Context) error {
	s.teardown()
	return nil
}

func (s *Session) teardown() {
	s.tabCancel()
	s.allocCancel()
}

func (s *Session) Size(context.Context) (action.Pixel, error) {
	return s.size, nil
}

// Capture screenshots the viewport and writes the PNG to dest.
func (s *Session) Capture(ctx context.Context, dest string) error {
	var buf []byte
	if err := s.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return fmt.Errorf("capturing screenshot: %w", err)
	}
	if err := os.WriteFile(dest, buf, 0o644); err != nil {
		return fmt.Errorf("writing screenshot: %w", err)
	}
	return nil
}

// Elements walks the DOM for interactive elements currently in the viewport.
func (s *Session) Elements(ctx context.Context) ([]action.Element, error) {
	var nodes []domNode
	if err := s.run(ctx, chromedp.Evaluate(collectJS, &nodes)); err != nil {
		return nil, fmt.Errorf("enumerating elements: %w", err)
	}
	elems := make([]action.Element, 0, len(nodes))
	for _, n := range nodes {
		elems = append(elems, n.element())
	}
	return elems, nil
}

func (s *Session) Tap(ctx context.Context, p action.Pixel) error {
	return s.run(ctx, chromedp.MouseClickXY(float64(p.X), float64(p.Y)))
}

func (s *Session) LongPress(ctx context.Context, p action.Pixel) error {
	x, y := float64(p.X), float64(p.Y)
	return s.run(ctx,
		chromedp.MouseEvent(input.MousePressed, x, y, chromedp.ButtonType(input.Left), chromedp.ClickCount(1)),
		chromedp.Sleep(longPressHold),
		chromedp.MouseEvent(input.MouseReleased, x, y, chromedp.ButtonType(input.Left), chromedp.ClickCount(1)),
	)
}

func (s *Session) Type(ctx context.Context, text string) error {
	return s.run(ctx, chromedp.KeyEvent(text))
}

// Swipe translates the gesture into a wheel scroll: the page moves the way
// content would under a finger dragged from "from" to "to".
func (s *Session) Swipe(ctx context.Context, from, to action.Pixel) error {
	dx := float64(from.X - to.X)
	dy := float64(from.Y - to.Y)
	opt := func(p *input.DispatchMouseEventParams) *input.DispatchMouseEventParams {
		return p.WithDeltaX(dx).WithDeltaY(dy)
	}
	return s.run(ctx, chromedp.MouseEvent(input.MouseWheel, float64(from.X), float64(from.Y), opt))
}

func (s *Session) Back(ctx context.Context) error {
	return s.run(ctx, chromedp.NavigateBack())
}

// run executes chromedp actions on the tab while honoring the caller's
// deadline. The tab context itself has no deadline, so derive one per call.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx := s.tabCtx
	if deadline, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithDeadline(s.tabCtx, deadline)
		defer cancel()
	}
	return chromedp.Run(runCtx, actions...)
}

// domNode is the raw record the in-page collector returns per element.
type domNode struct {
	Tag   string  `json:"tag"`
	ID    string  `json:"id"`
	Label string  `json:"label"`
	Kind  string  `json:"kind"`
	Index int     `json:"index"`
	X1    float64 `json:"x1"`
	Y1    float64 `json:"y1"`
	X2    float64 `json:"x2"`
	Y2    float64 `json:"y2"`
}

// maxLabelLen caps the accessible-label suffix folded into a uid; longer
// labels are free text and would make the uid unstable.
const maxLabelLen = 20

func (n domNode) element() action.Element {
	kind := action.ElementClickable
	if n.Kind == "focusable" {
		kind = action.ElementFocusable
	}
	return action.Element{
		UID:         nodeUID(n),
		TopLeft:     action.Pixel{X: int(n.X1), Y: int(n.Y1)},
		BottomRight: action.Pixel{X: int(n.X2), Y: int(n.Y2)},
		Kind:        kind,
	}
}

// nodeUID derives a deterministic identity from stable node attributes: the
// element id when present, otherwise tag plus box size, plus a short label
// suffix and the sibling index.
func nodeUID(n domNode) string {
	var uid string
	if n.ID != "" {
		uid = strings.NewReplacer(":", ".", "/", "_").Replace(n.ID)
	} else {
		uid = fmt.Sprintf("%s_%d_%d", n.Tag, int(n.X2-n.X1), int(n.Y2-n.Y1))
	}
	if n.Label != "" && len(n.Label) < maxLabelLen {
		uid += "_" + strings.NewReplacer("/", "_", " ", "", ":", "_").Replace(n.Label)
	}
	return fmt.Sprintf("%s_%d", uid, n.Index)
}

// collectJS enumerates interactive elements inside the viewport: clickable
// controls first, then focusable inputs, mirroring what an accessibility
// walk would surface.
const collectJS = `(() => {
	const out = [];
	const seen = new Set();
	const visible = (r) =>
		r.width > 0 && r.height > 0 &&
		r.bottom > 0 && r.right > 0 &&
		r.top < window.innerHeight && r.left < window.innerWidth;
	const push = (el, i, kind) => {
		if (seen.has(el)) return;
		const r = el.getBoundingClientRect();
		if (!visible(r)) return;
		seen.add(el);
		out.push({
			tag: el.tagName.toLowerCase(),
			id: el.id || '',
			label: (el.getAttribute('aria-label') || el.innerText || '').trim().slice(0, 40),
			kind: kind,
			index: i,
			x1: r.left, y1: r.top, x2: r.right, y2: r.bottom,
		});
	};
	document.querySelectorAll('a[href], button, [onclick], [role="button"], [role="link"], summary')
		.forEach((el, i) => push(el, i, 'clickable'));
	document.querySelectorAll('input, textarea, select, [contenteditable="true"], [tabindex]')
		.forEach((el, i) => push(el, i, 'focusable'));
	return out;
})()`
