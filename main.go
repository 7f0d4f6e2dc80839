/*
livewall renders an animated wallpaper: a shader effect drawn over a plane,
a spinning cuboid or a textured video plane.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/spaghettifunk/livewall/engine"
	"github.com/spaghettifunk/livewall/engine/config"
	"github.com/spaghettifunk/livewall/engine/core"
	"github.com/spaghettifunk/livewall/engine/renderer"
	"github.com/spaghettifunk/livewall/engine/renderer/headless"
	"github.com/spaghettifunk/livewall/testbed"
)

// Set at build time with -ldflags "-X main.version=...".
var version = "dev"

type options struct {
	configPath string
	backend    string
	logLevel   string
	frames     int
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		core.LogError("%s", err)
		stop()
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "livewall",
		Short:         "Animated shader wallpapers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "configuration file (.toml, .yaml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "debug, info, warn, error or fatal")

	run := &cobra.Command{
		Use:   "run",
		Short: "Show the wallpaper in a window",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWallpaper(cmd.Context(), opts)
		},
	}
	run.Flags().StringVar(&opts.backend, "backend", "", "vulkan or headless")

	render := &cobra.Command{
		Use:   "render",
		Short: "Render frames without a window and print a frame report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return renderHeadless(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}
	render.Flags().IntVarP(&opts.frames, "frames", "n", 120, "number of frames to render")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "livewall %s\n", version)
		},
	}

	root.AddCommand(run, render, versionCmd)
	return root
}

// loadConfig reads the configuration file, if any, and applies the command
// line overrides.
func loadConfig(opts *options) (*config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", opts.configPath, err)
		}
		cfg = loaded
	}
	if opts.backend != "" {
		cfg.Renderer.Backend = opts.backend
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runWallpaper(ctx context.Context, opts *options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	e, err := engine.New(testbed.NewWallpaperApp(cfg), engine.Options{ConfigPath: opts.configPath})
	if err != nil {
		return err
	}
	if err := e.Initialize(); err != nil {
		return err
	}
	runErr := e.Run(ctx)
	return errors.Join(runErr, e.Shutdown())
}

func renderHeadless(ctx context.Context, opts *options, out io.Writer) error {
	if opts.frames <= 0 {
		return fmt.Errorf("--frames must be positive, got %d", opts.frames)
	}
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	cfg.Renderer.Backend = renderer.Headless.String()

	e, err := engine.New(testbed.NewWallpaperApp(cfg), engine.Options{})
	if err != nil {
		return err
	}
	if err := e.Initialize(); err != nil {
		return err
	}

	bar := progressbar.NewOptions(opts.frames,
		progressbar.OptionSetDescription("rendering"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	renderErr := e.RenderFrames(ctx, opts.frames, func(int) { _ = bar.Add(1) })
	_ = bar.Finish()

	var report frameReport
	if b, ok := e.Backend().(*headless.Backend); ok {
		report = newFrameReport(b.HeadlessDevice().Frames(), e.Renderer().Stats())
	}
	if err := errors.Join(renderErr, e.Shutdown()); err != nil {
		return err
	}
	return report.write(out)
}
