package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/postwright/postwright/pkg/audit"
	"github.com/postwright/postwright/pkg/budget"
	cachepkg "github.com/postwright/postwright/pkg/cache/sqlite"
	"github.com/postwright/postwright/pkg/config"
	"github.com/postwright/postwright/pkg/errors"
	"github.com/postwright/postwright/pkg/errors/sentry"
	"github.com/postwright/postwright/pkg/jobs"
	"github.com/postwright/postwright/pkg/logger"
	"github.com/postwright/postwright/pkg/metrics"
	"github.com/postwright/postwright/pkg/notify"
	"github.com/postwright/postwright/pkg/providers"
	"github.com/postwright/postwright/pkg/server"
	"github.com/postwright/postwright/pkg/store"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			log := logger.New(cfg.Log)

			opts, cleanup, err := budgetOptions(cfg, log)
			if err != nil {
				return err
			}
			defer cleanup()

			a, err := newApp(cfg, log, opts...)
			if err != nil {
				return err
			}
			defer a.Close()

			tracker := errorTracker(cfg, log)
			defer tracker.Flush(context.Background())

			journal, err := audit.New(cfg.Audit)
			if err != nil {
				return fmt.Errorf("init processing log: %w", err)
			}
			a.onClose(journal.Close)

			posts, err := store.New(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("init post store: %w", err)
			}
			a.onClose(posts.Close)

			m := metrics.New()
			var promptCache providers.PromptCache
			if cfg.Cache.Enabled {
				c, err := cachepkg.New(cfg.DBPath, cfg.Cache.TTL)
				if err != nil {
					return fmt.Errorf("init cache: %w", err)
				}
				a.onClose(c.Close)
				promptCache = c
			}

			runner := jobs.New(jobs.Deps{
				Budget:    a.policy,
				Artifacts: posts,
				Files:     store.DirFiles{Dir: cfg.ArtifactsDir},
				Journal:   journal,
				Providers: providers.Build(ctx, cfg, promptCache, m, log),
				Pricing:   providers.NewPricing(cfg.Pricing),
				Tracker:   tracker,
				Metrics:   m,
				Log:       log.Named("jobs"),
				Timeout:   cfg.JobTimeout,
			})

			srv := server.New(server.Options{
				Listen:       cfg.Listen,
				ArtifactsDir: cfg.ArtifactsDir,
				Jobs:         runner,
				Ledger:       a.ledger,
				Budget:       a.policy,
				Logs:         journal,
				Posts:        posts,
				Files:        store.DirFiles{Dir: cfg.ArtifactsDir},
				TempDir:      cfg.TempDir,
				MaxUploadMB:  cfg.Downloader.MaxSizeMB,
				Metrics:      m,
				Log:          log,
			})
			log.Infow("starting postwright", "version", version, "reserve", cfg.Budget.Reserve)
			serveErr := srv.ListenAndServe(ctx)

			// Jobs outlive their requests; let them record their costs
			// before the stores close.
			wctx, cancel := context.WithTimeout(context.Background(), cfg.JobTimeout)
			defer cancel()
			if err := runner.Wait(wctx); err != nil {
				log.Warnw("jobs still running at shutdown", "error", err)
			}
			return serveErr
		},
	}
}

// budgetOptions wires alert delivery and, in reservation mode, the
// reservation counter.
func budgetOptions(cfg *config.Config, log *logger.Logger) ([]budget.Option, func(), error) {
	notifiers := notify.Multi{notify.NewLog(log)}
	if tg := cfg.Notify.Telegram; tg.Token != "" && tg.ChatID != 0 {
		t, err := notify.NewTelegram(tg.Token, tg.ChatID, "", nil)
		if err != nil {
			log.Warnw("telegram alerts disabled", "error", err)
		} else {
			notifiers = append(notifiers, t)
		}
	}
	opts := []budget.Option{budget.WithNotifier(notifiers)}
	cleanup := func() {}

	if !cfg.Budget.Reserve {
		return opts, cleanup, nil
	}
	if cfg.Budget.RedisURL == "" {
		return append(opts, budget.WithReserver(budget.NewMemoryReserver())), cleanup, nil
	}
	r, err := budget.NewRedisReserver(cfg.Budget.RedisURL, "", 2*cfg.JobTimeout)
	if err != nil {
		return nil, nil, fmt.Errorf("init redis reserver: %w", err)
	}
	cleanup = func() { _ = r.Close() }
	return append(opts, budget.WithReserver(r)), cleanup, nil
}

func errorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if cfg.Sentry.DSN == "" {
		return errors.NoopTracker{}
	}
	t, err := sentry.New(cfg.Sentry.DSN, cfg.Sentry.Environment, version)
	if err != nil {
		log.Warnw("sentry disabled", "error", err)
		return errors.NoopTracker{}
	}
	return t
}
