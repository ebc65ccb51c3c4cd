package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hackcal/internal/capture"
	"hackcal/internal/commands"
	"hackcal/internal/config"
	"hackcal/internal/directory"
	"hackcal/internal/ics"
	appLog "hackcal/internal/log"
	"hackcal/internal/schedule"
	"hackcal/internal/store"
	"hackcal/internal/web"
)

const version = "0.1.0"

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	once       bool
	debug      bool
}

func main() {
	if len(os.Args) > 1 {
		var sub func([]string) error
		switch os.Args[1] {
		case "hash-password":
			sub = commands.HashPassword
		case "snapshot":
			sub = commands.Snapshot
		}
		if sub != nil {
			if err := sub(os.Args[2:]); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		}
	}

	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	level := conf.Log.Level
	if flags.debug {
		level = "debug"
	}
	appLog.Init(conf.Log.Format, level)

	appLog.Info("hackcal starting", "version", version)
	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"store", conf.Store.Backend,
		"refresh", conf.RefreshCron,
		"horizon_days", conf.HorizonDays,
		"feed_count", len(conf.Feeds),
		"admin", conf.AdminEnabled(),
		"snapshot", conf.Snapshot.Cron,
		"once", flags.once,
	)

	if err := run(conf, flags); err != nil {
		appLog.Error("hackcal failed", err)
		os.Exit(1)
	}
	appLog.Info("hackcal exiting")
}

func run(conf *config.Config, flags flagConfig) error {
	loc, err := time.LoadLocation(conf.Timezone)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", conf.Timezone)
		loc = time.Local
	}

	st, err := store.Open(conf)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	svc := directory.NewService(st)
	srv := web.NewServer(conf, svc)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	sched, refresh, err := newScheduler(conf, loc, svc, srv)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              conf.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	// Bind before scheduling so a snapshot job can reach the page.
	ln, err := net.Listen("tcp", conf.Listen)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	serveErr := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	if flags.once {
		err := sched.RunAll(ctx)
		return errors.Join(err, shutdown(httpServer))
	}

	// Load feeds right away instead of waiting for the first tick.
	go func() {
		if err := refresh.Run(ctx); err != nil {
			appLog.Error("initial feed refresh failed", err)
		}
	}()
	sched.Start(ctx)

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			cancel()
			return fmt.Errorf("http server: %w", err)
		}
	}
	return shutdown(httpServer)
}

func newScheduler(conf *config.Config, loc *time.Location, svc *directory.Service, srv *web.Server) (*schedule.Scheduler, *schedule.FeedRefresh, error) {
	sched := schedule.New(loc)

	refresh := &schedule.FeedRefresh{
		Fetcher:     ics.NewFetcher(conf.CacheDir),
		Sources:     ics.SourcesFromConfig(conf.Feeds),
		Location:    loc,
		HorizonDays: conf.HorizonDays,
		Service:     svc,
		OnUpdate:    srv.Invalidate,
	}
	if err := sched.Add(schedule.Job{Name: "feed-refresh", Spec: conf.RefreshCron, Run: refresh.Run}); err != nil {
		return nil, nil, err
	}

	if conf.Snapshot.Cron != "" {
		snap := &schedule.Snapshot{Options: capture.Options{
			URL:        schedule.LocalURL(conf.Listen, "/timeline"),
			OutputPath: conf.Snapshot.Output,
			Width:      conf.Snapshot.Width,
			Height:     conf.Snapshot.Height,
		}}
		if err := sched.Add(schedule.Job{Name: "snapshot", Spec: conf.Snapshot.Cron, Run: snap.Run}); err != nil {
			return nil, nil, err
		}
	}
	return sched, refresh, nil
}

func shutdown(httpServer *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run every scheduled job once and exit")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: hackcal [OPTIONS]\n")
		fmt.Fprintf(os.Stderr, "       hackcal hash-password [OPTIONS]\n")
		fmt.Fprintf(os.Stderr, "       hackcal snapshot [OPTIONS]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	return cfg
}
