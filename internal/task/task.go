// Package task runs the exploration loop: capture, prompt, parse, act,
// reflect, document, until the model declares the task finished or the round
// budget runs out.
package task

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kleverhq/appilot/internal/action"
	"github.com/kleverhq/appilot/internal/config"
	"github.com/kleverhq/appilot/internal/connector"
	"github.com/kleverhq/appilot/internal/device"
	"github.com/kleverhq/appilot/internal/device/draw"
	"github.com/kleverhq/appilot/internal/docstore"
	"github.com/kleverhq/appilot/internal/gateway"
	"github.com/kleverhq/appilot/internal/grid"
	"github.com/kleverhq/appilot/internal/reflection"
	"github.com/kleverhq/appilot/internal/report"
)

// maxGridRedraws bounds consecutive grid() answers within one round; a model
// stuck asking for the overlay is not going to converge.
const maxGridRedraws = 3

// Status is the terminal state of a run. StatusRoundLimit is a normal
// completion: the budget ran out without the model declaring failure.
type Status string

const (
	StatusCompleted  Status = "completed"
	StatusRoundLimit Status = "round_limit"
	StatusAborted    Status = "aborted"
)

// Result summarizes a finished run.
type Result struct {
	Status Status
	Rounds int
	Reason string
	Usage  gateway.Usage
}

// Succeeded reports whether the run ended without an abort.
func (r Result) Succeeded() bool { return r.Status != StatusAborted }

// Controller drives one task run against one device.
type Controller struct {
	cfg    config.Interface
	dev    device.Device
	gw     gateway.Gateway
	conn   connector.Connector
	docs   *docstore.Store
	rec    *report.Recorder
	logger *zap.Logger

	limiter *rate.Limiter
	pal     draw.Palette

	// useless collects uids judged ineffective or regressive; they are
	// filtered out of every later round's element list.
	useless map[string]struct{}
	history string
	usage   gateway.Usage
}

// New assembles a controller. The recorder and docstore are owned by the
// caller and survive the run.
func New(
	cfg config.Interface,
	dev device.Device,
	gw gateway.Gateway,
	conn connector.Connector,
	docs *docstore.Store,
	rec *report.Recorder,
	logger *zap.Logger,
) *Controller {
	limit := rate.Inf
	if interval := cfg.Task().RequestInterval; interval > 0 {
		limit = rate.Every(interval)
	}
	return &Controller{
		cfg:     cfg,
		dev:     dev,
		gw:      gw,
		conn:    conn,
		docs:    docs,
		rec:     rec,
		logger:  logger.Named("task"),
		limiter: rate.NewLimiter(limit, 1),
		pal:     draw.PaletteFor(cfg.Task().DarkMode),
		useless: make(map[string]struct{}),
	}
}

// Run executes the loop until completion, abort, or the round budget.
// Cancellation is honored at round boundaries so an in-flight action is never
// cut in half.
func (c *Controller) Run(ctx context.Context, taskDesc string) (Result, error) {
	size, err := c.dev.Size(ctx)
	if err != nil {
		return c.abort(0, fmt.Sprintf("querying screen size: %v", err), err)
	}

	maxRounds := c.cfg.Task().MaxRounds
	for round := 1; round <= maxRounds; round++ {
		if err := ctx.Err(); err != nil {
			return c.abort(round-1, "run canceled", err)
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return c.abort(round-1, "run canceled", err)
		}

		res, done, err := c.round(ctx, round, taskDesc, size)
		if done || err != nil {
			return res, err
		}
	}

	c.logger.Info("round budget exhausted", zap.Int("rounds", maxRounds))
	reason := fmt.Sprintf("round budget of %d exhausted", maxRounds)
	if err := c.rec.Finish(string(StatusRoundLimit), reason); err != nil {
		c.logger.Warn("writing report outcome", zap.Error(err))
	}
	return Result{Status: StatusRoundLimit, Rounds: maxRounds, Reason: reason, Usage: c.usage}, nil
}

// round runs one full explore/act/reflect cycle. done is true when the run
// reached a terminal state.
func (c *Controller) round(ctx context.Context, round int, taskDesc string, size action.Pixel) (Result, bool, error) {
	c.logger.Info("round started", zap.Int("round", round))

	imgs := report.RoundImages{Before: c.rec.ImagePath(round, "before")}
	if err := c.dev.Capture(ctx, imgs.Before); err != nil {
		res, e := c.abort(round, fmt.Sprintf("capturing screenshot: %v", err), err)
		return res, true, e
	}

	elems, err := c.dev.Elements(ctx)
	if err != nil {
		res, e := c.abort(round, fmt.Sprintf("enumerating elements: %v", err), err)
		return res, true, e
	}

	promptImage := imgs.Before
	docsBlock := ""
	if c.conn.Annotated() {
		elems = action.FilterElements(elems, c.useless, c.cfg.Task().MinDist)
		imgs.BeforeLabeled = c.rec.ImagePath(round, "before_labeled")
		if err := draw.Labels(imgs.Before, imgs.BeforeLabeled, elems, c.pal); err != nil {
			res, e := c.abort(round, fmt.Sprintf("annotating screenshot: %v", err), err)
			return res, true, e
		}
		promptImage = imgs.BeforeLabeled
		if docsBlock, err = c.renderDocs(elems); err != nil {
			res, e := c.abort(round, fmt.Sprintf("loading documentation: %v", err), err)
			return res, true, e
		}
	}

	req := connector.Request{Task: taskDesc, History: c.history, Docs: docsBlock}
	prompt := c.conn.MakePrompt(req)
	comp, err := c.complete(ctx, prompt, promptImage)
	if err != nil {
		res, e := c.abort(round, fmt.Sprintf("model request failed: %v", err), err)
		return res, true, e
	}
	c.logExplore(round, prompt, []string{promptImage}, comp)

	turn := c.conn.Parse(comp.Text)

	// grid() answers re-prompt with the overlay without consuming a round.
	for redraw := 0; turn.Action.Kind == action.KindGrid; redraw++ {
		if redraw == maxGridRedraws {
			res, e := c.abort(round, "model kept requesting the grid overlay", nil)
			return res, true, e
		}
		turn, err = c.gridTurn(ctx, round, redraw, req, imgs.Before, size)
		if err != nil {
			res, e := c.abort(round, fmt.Sprintf("grid re-prompt failed: %v", err), err)
			return res, true, e
		}
	}

	switch turn.Action.Kind {
	case action.KindError:
		c.recordRound(round, turn, nil, imgs)
		res, e := c.abort(round, "model reply unusable: "+turn.Action.Value, nil)
		return res, true, e

	case action.KindFinish:
		c.recordRound(round, turn, nil, imgs)
		reason := strings.TrimSpace(turn.Action.Value)
		if reason == "" {
			reason = turn.Summary
		}
		if err := c.rec.Finish(string(StatusCompleted), reason); err != nil {
			c.logger.Warn("writing report outcome", zap.Error(err))
		}
		c.logger.Info("task completed", zap.Int("rounds", round))
		return Result{Status: StatusCompleted, Rounds: round, Reason: reason, Usage: c.usage}, true, nil
	}

	target, err := c.perform(ctx, turn.Action, elems, size)
	if err != nil {
		c.recordRound(round, turn, nil, imgs)
		res, e := c.abort(round, fmt.Sprintf("executing %s: %v", turn.Action.Kind, err), err)
		return res, true, e
	}

	imgs.After = c.rec.ImagePath(round, "after")
	if err := c.dev.Capture(ctx, imgs.After); err != nil {
		res, e := c.abort(round, fmt.Sprintf("capturing screenshot: %v", err), err)
		return res, true, e
	}

	// Text input has no stable element to attribute the effect to, so it
	// skips reflection; the summary alone carries the state forward.
	var refl *action.Reflection
	if c.cfg.Task().Reflection && turn.Action.Kind != action.KindText {
		refl, err = c.reflect(ctx, round, taskDesc, turn.Action, elems, target, promptImage, imgs.After)
		if err != nil {
			c.recordRound(round, turn, refl, imgs)
			res, e := c.abort(round, fmt.Sprintf("reflection failed: %v", err), err)
			return res, true, e
		}
	}

	if refl == nil || refl.Verdict != action.VerdictIneffective {
		c.history = turn.Summary
	}
	c.recordRound(round, turn, refl, imgs)
	return Result{}, false, nil
}

// gridTurn redraws the overlay and re-prompts within the current round.
func (c *Controller) gridTurn(ctx context.Context, round, redraw int, req connector.Request, before string, size action.Pixel) (action.Turn, error) {
	lay := grid.LayoutFor(size.X, size.Y)
	gridImage := c.rec.ImagePath(round, fmt.Sprintf("grid_%d", redraw+1))
	if err := draw.Grid(before, gridImage, lay, c.pal); err != nil {
		return action.Turn{}, err
	}

	prompt := c.conn.MakeGridPrompt(req)
	comp, err := c.complete(ctx, prompt, gridImage)
	if err != nil {
		return action.Turn{}, err
	}
	c.logExplore(round, prompt, []string{gridImage}, comp)
	return c.conn.ParseGrid(comp.Text, lay), nil
}

// perform executes the action and returns the origin pixel it landed on.
func (c *Controller) perform(ctx context.Context, a action.Action, elems []action.Element, size action.Pixel) (action.Pixel, error) {
	if a.Kind == action.KindText {
		return action.Pixel{}, c.dev.Type(ctx, a.Value)
	}

	origin, err := c.conn.ToPixels(a.Target, elems, size)
	if err != nil {
		return action.Pixel{}, err
	}

	switch a.Kind {
	case action.KindTap:
		return origin, c.dev.Tap(ctx, origin)
	case action.KindLongPress:
		return origin, c.dev.LongPress(ctx, origin)
	case action.KindSwipe:
		end := action.Pixel{}
		if a.End != nil {
			end = grid.NormalizedToPixels(*a.End, size.X, size.Y)
		} else {
			if end, err = device.SwipeEnd(origin, a.Direction, a.Distance, size.X); err != nil {
				return origin, err
			}
		}
		return origin, c.dev.Swipe(ctx, origin, end)
	}
	return origin, fmt.Errorf("cannot execute action %q", a.Kind)
}

// reflect judges the action's effect and applies the verdict: BACK navigates
// back and blacklists the element, INEFFECTIVE only blacklists, CONTINUE and
// SUCCESS document the element.
func (c *Controller) reflect(
	ctx context.Context,
	round int,
	taskDesc string,
	a action.Action,
	elems []action.Element,
	target action.Pixel,
	beforeImage, afterImage string,
) (*action.Reflection, error) {
	uid, desc := describeTarget(a, elems, target)

	prompt := reflection.BuildPrompt(reflection.ActionDesc(a), desc, taskDesc, c.history)
	comp, err := c.complete(ctx, prompt, beforeImage, afterImage)
	if err != nil {
		return nil, err
	}
	if err := c.rec.LogReflect(exchange(round, prompt, []string{beforeImage, afterImage}, comp)); err != nil {
		c.logger.Warn("writing reflect log", zap.Error(err))
	}

	refl, err := reflection.Parse(comp.Text)
	if err != nil {
		return nil, err
	}
	c.logger.Info("reflection verdict",
		zap.Int("round", round),
		zap.String("verdict", string(refl.Verdict)),
		zap.String("uid", uid),
	)

	switch refl.Verdict {
	case action.VerdictBack:
		c.useless[uid] = struct{}{}
		if err := c.dev.Back(ctx); err != nil {
			return &refl, fmt.Errorf("navigating back: %w", err)
		}
	case action.VerdictIneffective:
		c.useless[uid] = struct{}{}
	}

	if refl.Documentation != "" && refl.Documentation != reflection.DocPlaceholder {
		if _, err := c.docs.Record(uid, action.DocKindFor(a), refl.Documentation); err != nil {
			return &refl, err
		}
	}
	return &refl, nil
}

// describeTarget attributes an action to an element uid and phrases the
// target for the reflection prompt. Point-based actions (coordinate and grid
// modes) fall back to a synthetic positional uid when no harvested element
// contains the pixel.
func describeTarget(a action.Action, elems []action.Element, target action.Pixel) (uid, desc string) {
	if a.Target.HasLabel() && a.Target.Label <= len(elems) {
		e := elems[a.Target.Label-1]
		return e.UID, strconv.Itoa(a.Target.Label)
	}
	desc = fmt.Sprintf("located at pixel (%d, %d)", target.X, target.Y)
	if e, ok := action.FindAt(elems, target); ok {
		return e.UID, desc
	}
	return fmt.Sprintf("point_%d_%d", target.X, target.Y), desc
}

// renderDocs assembles the documentation block for the labeled elements.
func (c *Controller) renderDocs(elems []action.Element) (string, error) {
	var b strings.Builder
	for i, e := range elems {
		d, err := c.docs.Load(e.UID)
		if err != nil {
			return "", err
		}
		if d.Empty() {
			continue
		}
		fmt.Fprintf(&b, "Documentation of UI element labeled with the number %d:\n%s\n", i+1, d.Render())
	}
	if b.Len() == 0 {
		return "", nil
	}
	return "The documentation of some UI elements, learned from previous interactions, is listed below:\n" + b.String(), nil
}

// complete sends one model request with the per-model deadline and folds the
// token usage into the run total.
func (c *Controller) complete(ctx context.Context, prompt string, images ...string) (*gateway.Completion, error) {
	callCtx, cancel := context.WithTimeout(ctx, gateway.TimeoutFor(c.cfg.Gateway()))
	defer cancel()

	comp, err := c.gw.Complete(callCtx, prompt, images)
	if err != nil {
		return nil, err
	}
	c.usage.PromptTokens += comp.Usage.PromptTokens
	c.usage.CompletionTokens += comp.Usage.CompletionTokens
	return comp, nil
}

func (c *Controller) logExplore(round int, prompt string, images []string, comp *gateway.Completion) {
	if err := c.rec.LogExplore(exchange(round, prompt, images, comp)); err != nil {
		c.logger.Warn("writing explore log", zap.Error(err))
	}
}

func exchange(round int, prompt string, images []string, comp *gateway.Completion) report.Exchange {
	return report.Exchange{
		Step:             round,
		Time:             time.Now(),
		Prompt:           prompt,
		Images:           images,
		Response:         comp.Text,
		LatencyMS:        comp.Latency.Milliseconds(),
		PromptTokens:     comp.Usage.PromptTokens,
		CompletionTokens: comp.Usage.CompletionTokens,
	}
}

func (c *Controller) recordRound(round int, turn action.Turn, refl *action.Reflection, imgs report.RoundImages) {
	if err := c.rec.Round(round, turn, refl, imgs); err != nil {
		c.logger.Warn("writing report round", zap.Error(err))
	}
}

// abort records the failure in the report before surfacing it, so the reason
// survives the process exit.
func (c *Controller) abort(rounds int, reason string, err error) (Result, error) {
	c.logger.Error("run aborted", zap.String("reason", reason), zap.Error(err))
	if werr := c.rec.Finish(string(StatusAborted), reason); werr != nil {
		c.logger.Warn("writing report outcome", zap.Error(werr))
	}
	return Result{Status: StatusAborted, Rounds: rounds, Reason: reason, Usage: c.usage}, err
}
