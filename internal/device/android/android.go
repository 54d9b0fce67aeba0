// Package android drives a device or emulator over ADB: screencap for
// perception, uiautomator dumps for element enumeration, input injection for
// actions.
package android

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kleverhq/appilot/internal/action"
	"github.com/kleverhq/appilot/internal/config"
)

// Remote staging paths on the device.
const (
	remoteScreenshot = "/sdcard/appilot_screen.png"
	remoteUIDump     = "/sdcard/appilot_ui.xml"
)

// Controller is the ADB-backed device adapter.
type Controller struct {
	serial  string
	adbPath string
	size    action.Pixel
	workDir string
	logger  *zap.Logger
}

// New connects to the device, resolving the serial to the single attached
// device when unset, and caches the screen size.
func New(ctx context.Context, cfg config.AndroidConfig, logger *zap.Logger) (*Controller, error) {
	c := &Controller{
		serial:  cfg.Serial,
		adbPath: cfg.ADBPath,
		logger:  logger.Named("device.android"),
	}
	if c.adbPath == "" {
		c.adbPath = "adb"
	}
	if c.serial == "" {
		serial, err := c.defaultSerial(ctx)
		if err != nil {
			return nil, err
		}
		c.serial = serial
	}

	size, err := c.querySize(ctx)
	if err != nil {
		return nil, err
	}
	c.size = size

	dir, err := os.MkdirTemp("", "appilot-android-")
	if err != nil {
		return nil, fmt.Errorf("creating work dir: %w", err)
	}
	c.workDir = dir

	c.logger.Info("connected to device",
		zap.String("serial", c.serial),
		zap.Int("width", size.X),
		zap.Int("height", size.Y),
	)
	return c, nil
}

func (c *Controller) Name() string { return "android:" + c.serial }

func (c *Controller) Close(context.Context) error {
	return os.RemoveAll(c.workDir)
}

func (c *Controller) Size(context.Context) (action.Pixel, error) {
	return c.size, nil
}

// Capture screencaps on the device and pulls the PNG to dest.
func (c *Controller) Capture(ctx context.Context, dest string) error {
	if _, err := c.adb(ctx, "shell", "screencap", "-p", remoteScreenshot); err != nil {
		return fmt.Errorf("screencap: %w", err)
	}
	if _, err := c.adb(ctx, "pull", remoteScreenshot, dest); err != nil {
		return fmt.Errorf("pulling screenshot: %w", err)
	}
	return nil
}

// Elements dumps the UI Automator hierarchy and returns the interactive
// elements, clickable first, then focusable.
func (c *Controller) Elements(ctx context.Context) ([]action.Element, error) {
	if _, err := c.adb(ctx, "shell", "uiautomator", "dump", remoteUIDump); err != nil {
		return nil, fmt.Errorf("uiautomator dump: %w", err)
	}
	local := filepath.Join(c.workDir, "ui.xml")
	if _, err := c.adb(ctx, "pull", remoteUIDump, local); err != nil {
		return nil, fmt.Errorf("pulling ui dump: %w", err)
	}
	data, err := os.ReadFile(local)
	if err != nil {
		return nil, fmt.Errorf("reading ui dump: %w", err)
	}
	return elementsFromDump(data)
}

func (c *Controller) Tap(ctx context.Context, p action.Pixel) error {
	_, err := c.adb(ctx, "shell", "input", "tap", itoa(p.X), itoa(p.Y))
	return err
}

func (c *Controller) LongPress(ctx context.Context, p action.Pixel) error {
	// A zero-length swipe with a hold duration is how ADB long-presses.
	_, err := c.adb(ctx, "shell", "input", "swipe",
		itoa(p.X), itoa(p.Y), itoa(p.X), itoa(p.Y), "1000")
	return err
}

func (c *Controller) Type(ctx context.Context, text string) error {
	// "input text" has no quoting; spaces become %s and single quotes are
	// dropped, matching what the shell can actually deliver.
	escaped := strings.ReplaceAll(text, " ", "%s")
	escaped = strings.ReplaceAll(escaped, "'", "")
	_, err := c.adb(ctx, "shell", "input", "text", escaped)
	return err
}

func (c *Controller) Swipe(ctx context.Context, from, to action.Pixel) error {
	_, err := c.adb(ctx, "shell", "input", "swipe",
		itoa(from.X), itoa(from.Y), itoa(to.X), itoa(to.Y), "400")
	return err
}

func (c *Controller) Back(ctx context.Context) error {
	_, err := c.adb(ctx, "shell", "input", "keyevent", "KEYCODE_BACK")
	return err
}

func (c *Controller) adb(ctx context.Context, args ...string) (string, error) {
	full := append([]string{"-s", c.serial}, args...)
	out, err := exec.CommandContext(ctx, c.adbPath, full...).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("adb %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}

// defaultSerial picks the single attached device, failing when there are
// zero or several.
func (c *Controller) defaultSerial(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, c.adbPath, "devices").CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("adb devices: %w", err)
	}
	var serials []string
	for _, line := range strings.Split(string(out), "\n")[1:] {
		fieldsOf := strings.Fields(line)
		if len(fieldsOf) == 2 && fieldsOf[1] == "device" {
			serials = append(serials, fieldsOf[0])
		}
	}
	switch len(serials) {
	case 0:
		return "", fmt.Errorf("no device attached")
	case 1:
		return serials[0], nil
	default:
		return "", fmt.Errorf("%d devices attached, set device.android.serial", len(serials))
	}
}

// querySize parses "Physical size: 1080x2400" from wm size.
func (c *Controller) querySize(ctx context.Context) (action.Pixel, error) {
	out, err := c.adb(ctx, "shell", "wm", "size")
	if err != nil {
		return action.Pixel{}, err
	}
	return parseWMSize(out)
}

func parseWMSize(out string) (action.Pixel, error) {
	_, dims, found := strings.Cut(out, ": ")
	if !found {
		return action.Pixel{}, fmt.Errorf("unexpected wm size output %q", out)
	}
	w, h, found := strings.Cut(strings.TrimSpace(dims), "x")
	if !found {
		return action.Pixel{}, fmt.Errorf("unexpected wm size output %q", out)
	}
	var p action.Pixel
	if _, err := fmt.Sscanf(w+" "+h, "%d %d", &p.X, &p.Y); err != nil {
		return action.Pixel{}, fmt.Errorf("unexpected wm size output %q", out)
	}
	return p, nil
}

func itoa(n int) string { return strconv.Itoa(n) }
