package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/homelabmon/internal/config"
	"github.com/hamed0406/homelabmon/internal/domain"
	"github.com/hamed0406/homelabmon/internal/health"
	"github.com/hamed0406/homelabmon/internal/hostmetrics"
	"github.com/hamed0406/homelabmon/internal/httpapi"
	apimw "github.com/hamed0406/homelabmon/internal/httpapi/middleware"
	"github.com/hamed0406/homelabmon/internal/logging"
	"github.com/hamed0406/homelabmon/internal/notify"
	"github.com/hamed0406/homelabmon/internal/probe"
	"github.com/hamed0406/homelabmon/internal/scheduler"
	"github.com/hamed0406/homelabmon/internal/store"
	"github.com/hamed0406/homelabmon/internal/torrent"
)

func main() {
	cfg := config.FromEnv()
	logger, err := logging.NewLogger(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	probe.Grace = cfg.ProbeGrace

	targets, cerr := cfg.Targets()
	for _, ce := range config.ConfigurationErrors(cerr) {
		logger.Warn("target_excluded",
			zap.String("target_id", ce.TargetID),
			zap.String("field", ce.Field),
			zap.String("reason", ce.Reason),
		)
	}

	checkers := scheduler.Checkers{
		HTTP: probe.NewResolver(probe.NewHTTPProber(cfg.TLSInsecureFallback)),
		TCP:  probe.NewTCPProber(),
		Torrent: func(t domain.Target) scheduler.TorrentFetcher {
			return torrent.NewClient(t, cfg.TorrentsHideCompleted, logger)
		},
		Host: func(t domain.Target) (scheduler.HostSampler, error) {
			src, err := hostmetrics.NewProcSource(t.Local)
			if err != nil {
				return nil, err
			}
			return hostmetrics.NewSampler(src), nil
		},
	}

	st := store.New()
	poller, perr := scheduler.NewPoller(logger, targets, checkers, health.NewAggregator(cfg.UptimeWindow), st)
	for _, ex := range scheduler.ExcludedTargets(perr) {
		logger.Warn("target_excluded",
			zap.String("target_id", string(ex.TargetID)),
			zap.String("reason", ex.Reason),
		)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var al *scheduler.Alerter
	if cfg.SlackWebhookURL != "" {
		al = scheduler.NewAlerter(st, store.NewAlerts(),
			notify.Multi{notify.Log{Logger: logger}, notify.NewSlack(cfg.SlackWebhookURL)},
			logger,
			scheduler.AlerterConfig{
				AlertOnRecovery: cfg.AlertOnRecovery,
				Cooldown:        cfg.AlertCooldown,
				PollInterval:    cfg.RefreshServices,
			})
		poller.Observer = al.Observe
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return poller.Run(gctx) })

	if cfg.TargetsFile != "" {
		g.Go(func() error {
			err := config.Watch(gctx, cfg.TargetsFile, logger, func() {
				logger.Warn("targets_file_changed_restart_required", zap.String("path", cfg.TargetsFile))
			})
			if err != nil {
				// watching is best effort; the monitor keeps running
				logger.Warn("targets_file_watch_disabled", zap.Error(err))
			}
			return nil
		})
	}

	if al != nil {
		g.Go(func() error { return al.Run(gctx) })
	}

	if cfg.StatusAddr != "" {
		api := httpapi.NewServer(logger, st, poller)
		srv := &http.Server{
			Addr: cfg.StatusAddr,
			Handler: api.Router(
				apimw.Keys{Public: cfg.PublicAPIKeys, Admin: cfg.AdminAPIKeys},
				cfg.AllowedOrigins,
				cfg.PublicRPM, cfg.PublicBurst, cfg.AdminRPM, cfg.AdminBurst,
			),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("api_listen", zap.String("addr", cfg.StatusAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				// the status surface is optional; monitoring keeps running without it
				logger.Error("api_listen_error", zap.Error(err))
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}

	logger.Info("monitor_started", zap.Int("targets", len(poller.Targets())))
	if err := g.Wait(); err != nil {
		logger.Error("monitor_stopped", zap.Error(err))
		return
	}
	logger.Info("monitor_stopped")
}
