package commands

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"hackcal/internal/capture"
	"hackcal/internal/config"
	appLog "hackcal/internal/log"
	"hackcal/internal/schedule"
)

// Snapshot handles the snapshot subcommand: one screenshot of the timeline
// page of an already running server.
func Snapshot(args []string) error {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to config file")
	url := fs.String("url", "", "Page to capture (default: /timeline on the configured listen address)")
	out := fs.String("out", "", "Output PNG path (default: snapshot.output from config)")
	timeout := fs.Duration("timeout", capture.DefaultTimeoutSec*time.Second, "Capture timeout")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: hackcal snapshot [OPTIONS]\n\n")
		fmt.Fprintf(os.Stderr, "Captures the timeline page as PNG with headless Chromium.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	conf, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	opts := capture.Options{
		URL:        *url,
		OutputPath: *out,
		Width:      conf.Snapshot.Width,
		Height:     conf.Snapshot.Height,
		Timeout:    *timeout,
	}
	if opts.URL == "" {
		opts.URL = schedule.LocalURL(conf.Listen, "/timeline")
	}
	if opts.OutputPath == "" {
		opts.OutputPath = conf.Snapshot.Output
	}

	appLog.Info("capturing timeline", "url", opts.URL, "output", opts.OutputPath)
	job := &schedule.Snapshot{Options: opts}
	return job.Run(context.Background())
}
