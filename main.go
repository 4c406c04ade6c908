package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v3"

	"github.com/YunoHost/apps-tools/catalog"
	"github.com/YunoHost/apps-tools/forge"
	"github.com/YunoHost/apps-tools/giturl"
	"github.com/YunoHost/apps-tools/reconcile"
)

const metricsNamespace = "apps_tools"

var (
	loggerLevel = new(slog.LevelVar)
	logger      *slog.Logger

	levelStrings = map[string]slog.Level{
		"trace": slog.Level(-8),
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}

	flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Sources: cli.EnvVars("FORGE_MIRROR_SYNC_CONFIG"),
			Usage:   "Absolute path to the config file. optional, defaults target git.yunohost.org",
		},
		&cli.StringFlag{
			Name:    "log-level",
			Sources: cli.EnvVars("LOG_LEVEL"),
			Value:   "info",
			Usage:   "Log level",
		},
		&cli.StringFlag{
			Name:    "apps-repo-root",
			Sources: cli.EnvVars("APPS_REPO_ROOT"),
			Usage:   "Path to the apps repository containing the catalog",
		},
		&cli.StringFlag{
			Name:    "forge-token",
			Sources: cli.EnvVars("FORGEJO_TOKEN"),
			Usage:   "Access token of the forge hosting the mirrors",
		},
		&cli.StringFlag{
			Name:    "upstream-token",
			Sources: cli.EnvVars("GITHUB_TOKEN"),
			Usage:   "Access token used by the forge to pull from upstream",
		},
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "Print mirrors which would be created without modifying the forge",
		},
		&cli.StringFlag{
			Name:    "webhook-addr",
			Sources: cli.EnvVars("WEBHOOK_ADDR"),
			Usage:   "If set, keep running and serve GitHub webhook and metrics on this address e.g. ':8080'",
		},
		&cli.StringFlag{
			Name:    "webhook-secret",
			Sources: cli.EnvVars("GITHUB_WEBHOOK_SECRET"),
			Usage:   "Secret used to validate GitHub webhook signatures",
		},
		&cli.StringFlag{
			Name:    "metrics-textfile",
			Sources: cli.EnvVars("METRICS_TEXTFILE"),
			Usage:   "Path of the file where metrics are written in textfile collector format",
		},
	}
)

func init() {
	loggerLevel.Set(slog.LevelInfo)
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: loggerLevel,
	}))
}

// loadConfig reads config file if provided and overrides it with flags
func loadConfig(c *cli.Command) (*Config, error) {
	conf := &Config{}

	if path := c.String("config"); path != "" {
		var err error
		conf, err = parseConfigFile(path)
		if err != nil {
			return nil, fmt.Errorf("unable to parse config file err:%w", err)
		}
	}

	if c.IsSet("apps-repo-root") {
		conf.AppsRepoRoot = c.String("apps-repo-root")
	}
	if c.IsSet("forge-token") {
		conf.Forge.Token = c.String("forge-token")
	}
	if c.IsSet("upstream-token") {
		conf.Upstream.Token = c.String("upstream-token")
	}

	applyDefaults(conf)

	if err := conf.validate(c.Bool("dry-run")); err != nil {
		return nil, fmt.Errorf("invalid config err:%w", err)
	}

	return conf, nil
}

func run(ctx context.Context, c *cli.Command) error {
	// set log level according to argument
	if v, ok := levelStrings[strings.ToLower(c.String("log-level"))]; ok {
		loggerLevel.Set(v)
	}

	conf, err := loadConfig(c)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	forge.EnableMetrics(metricsNamespace, registry)
	reconcile.EnableMetrics(metricsNamespace, registry)

	if path := c.String("metrics-textfile"); path != "" {
		defer func() {
			if err := prometheus.WriteToTextfile(path, registry); err != nil {
				logger.Error("unable to write metrics", "path", path, "err", err)
			}
		}()
	}

	client, err := forge.New(forge.Config{
		URL:      conf.Forge.URL,
		Token:    conf.Forge.Token,
		OwnerID:  conf.Forge.OwnerID,
		PageSize: conf.Forge.PageSize,
		Timeout:  conf.Forge.Timeout,
		Retry: forge.RetryPolicy{
			Backoff:     conf.Sync.RateLimitBackoff,
			MaxAttempts: conf.Sync.RateLimitMaxAttempts,
		},
	}, nil, logger.With("logger", "forge"))
	if err != nil {
		return err
	}

	// already validated
	org, _ := giturl.ParseOrgURL(conf.Upstream.OrgURL)

	reconciler, err := reconcile.New(reconcile.Config{
		Owner:         conf.Forge.Owner,
		UpstreamOrg:   org,
		UpstreamToken: conf.Upstream.Token,
		Service:       conf.Upstream.Service,
		Cooldown:      conf.Sync.Cooldown,
		DryRun:        c.Bool("dry-run"),
	}, catalog.File{Path: conf.catalogPath()}, client, logger.With("logger", "reconcile"))
	if err != nil {
		return err
	}

	// listen for shutdown
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if addr := c.String("webhook-addr"); addr != "" {
		if c.String("webhook-secret") == "" {
			return fmt.Errorf("webhook secret is required to serve webhook")
		}
		return serve(ctx, addr, c.String("webhook-secret"), reconciler, registry)
	}

	res, err := reconciler.Run(ctx)
	if err != nil {
		return err
	}

	if c.Bool("dry-run") {
		reconcile.WritePlan(os.Stdout, res.Plan)
	}

	return nil
}

// serve runs synchronisation at start up and then every time a webhook
// event is received until ctx is cancelled. runs never overlap.
func serve(ctx context.Context, addr, secret string, reconciler *reconcile.Reconciler, registry *prometheus.Registry) error {
	trigger := make(chan struct{}, 1)

	mux := http.NewServeMux()
	mux.Handle("/github-webhook", &GithubWebhookHandler{
		trigger: trigger,
		secret:  secret,
		log:     logger.With("logger", "webhook"),
	})
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting web server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("could not start web server", "err", err)
		}
	}()

	// first run at start up
	trigger <- struct{}{}

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		case <-trigger:
			if _, err := reconciler.Run(ctx); err != nil {
				logger.Error("mirror synchronisation failed", "err", err)
			}
		}
	}
}

func main() {
	cmd := &cli.Command{
		Name:   "forge-mirror-sync",
		Usage:  "forge-mirror-sync creates forge pull mirrors of all catalog apps hosted in the upstream organization.",
		Flags:  flags,
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		logger.Error("failed to run app", "err", err)
		os.Exit(1)
	}
}
