package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"speed-dating-events/internal/config"
	"speed-dating-events/internal/handler"
	"speed-dating-events/internal/httpapi"
	"speed-dating-events/internal/logging"
	"speed-dating-events/internal/metrics"
	"speed-dating-events/internal/registry"
	"speed-dating-events/internal/session"
	"speed-dating-events/internal/storage"
	"speed-dating-events/internal/whatsapp"
)

type app struct {
	cfg      *config.Config
	log      zerolog.Logger
	store    storage.Store
	metrics  *metrics.Metrics
	reg      *registry.Registry
	sessions *session.Manager
	wa       *whatsapp.Service
}

// newApp opens the store, starts the registry and makes sure there is
// at least one event to register for.
func newApp(ctx context.Context, cfg *config.Config, withWhatsApp bool) (*app, error) {
	a := &app{
		cfg:      cfg,
		log:      logging.New(cfg.LogLevel, cfg.LogFormat),
		metrics:  metrics.New(),
		sessions: session.NewManager(cfg.AdminPassword, cfg.SessionTTL),
	}

	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	a.store = store

	opts := registry.Options{
		BaseURL: cfg.PublicBaseURL,
		Logger:  &a.log,
		Metrics: a.metrics,
	}
	if withWhatsApp && cfg.WhatsApp.Enabled {
		a.wa, err = whatsapp.NewService(ctx, &whatsapp.Config{
			DataDir:        cfg.WhatsApp.DataDir,
			OrganizerPhone: cfg.WhatsApp.OrganizerPhone,
			CountryCode:    cfg.WhatsApp.CountryCode,
		}, a.log)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to initialize WhatsApp: %w", err)
		}
		opts.Notifier = a.wa
	}

	a.reg = registry.New(store, opts)
	if err := a.reg.Start(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	if _, err := a.reg.EnsureDefaultEvent(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

// openStore opens the configured backend. The file store creates its own
// directory; sqlite needs it to exist first.
func openStore(cfg *config.Config) (storage.Store, error) {
	if cfg.StoreDriver == config.DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.StorePath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
		store, err := storage.OpenSQLite(cfg.StorePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	store, err := storage.NewFileStore(cfg.StorePath)
	if err != nil {
		return nil, err
	}
	return store, nil
}

func (a *app) close() {
	if a.wa != nil {
		a.wa.Disconnect()
	}
	a.reg.Close()
	if err := a.store.Close(); err != nil {
		a.log.Error().Err(err).Msg("Failed to close store")
	}
}

func runServe(ctx context.Context, envFile string) error {
	cfg, err := config.LoadConfig(envFile)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.close()

	if a.wa != nil {
		checkin := handler.NewCheckinHandler(a.reg, a.wa, cfg.PublicBaseURL, logging.Component(a.log, "Checkin"))
		a.wa.SetMessageHandler(checkin.HandleMessage)
		a.log.Info().Msg("Connecting to WhatsApp...")
		if err := a.wa.Connect(ctx, os.Stdout); err != nil {
			return err
		}
	}

	api := httpapi.New(httpapi.Options{
		Registry: a.reg,
		Sessions: a.sessions,
		Metrics:  a.metrics,
		Logger:   a.log,
		BaseURL:  cfg.PublicBaseURL,
		GinMode:  gin.ReleaseMode,
	})
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.log.Info().Str("addr", cfg.ListenAddr).Str("base_url", cfg.PublicBaseURL).Msg("Listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if n := a.sessions.Sweep(); n > 0 {
					a.log.Debug().Int("sessions", n).Msg("Expired sessions removed")
				}
			}
		}
	})
	g.Go(func() error {
		<-ctx.Done()
		a.log.Info().Msg("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
