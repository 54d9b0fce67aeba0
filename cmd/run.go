package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kleverhq/appilot/internal/config"
	"github.com/kleverhq/appilot/internal/connector"
	"github.com/kleverhq/appilot/internal/device"
	"github.com/kleverhq/appilot/internal/device/android"
	"github.com/kleverhq/appilot/internal/device/web"
	"github.com/kleverhq/appilot/internal/docstore"
	"github.com/kleverhq/appilot/internal/gateway"
	"github.com/kleverhq/appilot/internal/observability"
	"github.com/kleverhq/appilot/internal/report"
	"github.com/kleverhq/appilot/internal/task"
)

func newRunCommand() *cobra.Command {
	var (
		taskDesc   string
		model      string
		maxRounds  int
		deviceKind string
		serial     string
		startURL   string
		taskDir    string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a task on the configured device",
		Long: `Run executes one task: the model is shown annotated screenshots of the
device and drives it action by action until it declares the task finished or
the round budget runs out.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if taskDesc == "" {
				return fmt.Errorf("--task-description is required")
			}

			overrides := map[string]any{}
			if model != "" {
				overrides["gateway.model"] = model
			}
			if maxRounds > 0 {
				overrides["task.max_rounds"] = maxRounds
			}
			if deviceKind != "" {
				overrides["device.kind"] = deviceKind
			}
			if serial != "" {
				overrides["device.android.serial"] = serial
			}
			if startURL != "" {
				overrides["device.web.start_url"] = startURL
			}
			if taskDir != "" {
				overrides["output.root_dir"] = taskDir
			}
			runCfg := cfg
			if len(overrides) > 0 {
				var err error
				if runCfg, err = config.LoadWithOverrides(resolveConfigPath(), overrides); err != nil {
					return err
				}
			}

			res, err := runTask(cmd.Context(), runCfg, taskDesc)
			if err != nil {
				return err
			}
			if !res.Succeeded() {
				return fmt.Errorf("task aborted after %d rounds: %s", res.Rounds, res.Reason)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&taskDesc, "task-description", "t", "", "the task to perform, in natural language")
	cmd.Flags().StringVarP(&model, "model", "m", "", "override the configured model identifier")
	cmd.Flags().IntVar(&maxRounds, "max-rounds", 0, "override the configured round budget")
	cmd.Flags().StringVar(&deviceKind, "device", "", "device adapter: android or web")
	cmd.Flags().StringVar(&serial, "serial", "", "android device serial")
	cmd.Flags().StringVar(&startURL, "url", "", "start URL for the web adapter")
	cmd.Flags().StringVar(&taskDir, "task-dir", "", "directory for run artifacts")
	return cmd
}

func runTask(ctx context.Context, cfg config.Interface, taskDesc string) (task.Result, error) {
	logger := observability.GetLogger()

	gw, err := gateway.New(cfg.Gateway(), logger)
	if err != nil {
		return task.Result{}, err
	}
	// Surface credential and endpoint problems before touching the device.
	if err := gw.Check(ctx); err != nil {
		return task.Result{}, fmt.Errorf("gateway check failed: %w", err)
	}

	dev, err := newDevice(ctx, cfg, logger)
	if err != nil {
		return task.Result{}, err
	}
	defer func() {
		if cerr := dev.Close(context.Background()); cerr != nil {
			logger.Warn("closing device", zap.Error(cerr))
		}
	}()

	docs, err := docstore.Open(cfg.Output().DocsDir, logger)
	if err != nil {
		return task.Result{}, err
	}

	runID := uuid.NewString()[:8]
	runDir := filepath.Join(cfg.Output().RootDir, time.Now().Format("20060102_150405")+"_"+runID)
	rec, err := report.New(runDir, taskDesc)
	if err != nil {
		return task.Result{}, err
	}
	defer func() {
		if cerr := rec.Close(); cerr != nil {
			logger.Warn("closing run recorder", zap.Error(cerr))
		}
	}()

	conn := connector.ForModel(cfg.Gateway().Model)
	logger.Info("task starting",
		zap.String("run_id", runID),
		zap.String("task", taskDesc),
		zap.String("model", cfg.Gateway().Model),
		zap.String("connector", conn.Name()),
		zap.String("device", dev.Name()),
		zap.String("run_dir", runDir),
	)

	res, err := task.New(cfg, dev, gw, conn, docs, rec, logger).Run(ctx, taskDesc)
	logger.Info("task finished",
		zap.String("status", string(res.Status)),
		zap.Int("rounds", res.Rounds),
		zap.Int("prompt_tokens", res.Usage.PromptTokens),
		zap.Int("completion_tokens", res.Usage.CompletionTokens),
	)
	return res, err
}

func newDevice(ctx context.Context, cfg config.Interface, logger *zap.Logger) (device.Device, error) {
	switch cfg.Device().Kind {
	case config.DeviceAndroid:
		return android.New(ctx, cfg.Device().Android, logger)
	case config.DeviceWeb:
		return web.New(ctx, cfg.Device().Web, logger)
	default:
		return nil, fmt.Errorf("unknown device kind %q", cfg.Device().Kind)
	}
}
