/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package server wires configuration, storage, messaging, and the HTTP API
// into a runnable process.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/heimdall_signage/internal/analytics"
	"github.com/friendsincode/heimdall_signage/internal/api"
	"github.com/friendsincode/heimdall_signage/internal/audit"
	"github.com/friendsincode/heimdall_signage/internal/cache"
	"github.com/friendsincode/heimdall_signage/internal/catalog"
	"github.com/friendsincode/heimdall_signage/internal/config"
	"github.com/friendsincode/heimdall_signage/internal/db"
	"github.com/friendsincode/heimdall_signage/internal/eventbus"
	"github.com/friendsincode/heimdall_signage/internal/events"
	"github.com/friendsincode/heimdall_signage/internal/leadership"
	"github.com/friendsincode/heimdall_signage/internal/media"
	"github.com/friendsincode/heimdall_signage/internal/models"
	"github.com/friendsincode/heimdall_signage/internal/schedule"
	"github.com/friendsincode/heimdall_signage/internal/telemetry"
	"github.com/friendsincode/heimdall_signage/internal/version"
	"github.com/friendsincode/heimdall_signage/internal/webhooks"
)

// Server bundles the HTTP API and supporting services.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
	closers    []func() error

	db           *gorm.DB
	cache        *cache.Cache
	bus          events.Broker
	catalog      *catalog.Service
	api          *api.API
	mediaSvc     *media.Service
	analyticsSvc *analytics.Service
	auditSvc     *audit.Service
	webhookSvc   *webhooks.Service
	election     *leadership.Election
	tracer       *telemetry.TracerProvider
	updates      *version.Checker

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New builds a fully wired server from configuration.
func New(cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(telemetry.TracingMiddleware("heimdall-api"))
	router.Use(telemetry.MetricsMiddleware)
	router.Use(func(next http.Handler) http.Handler {
		timed := middleware.Timeout(60 * time.Second)(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// WebSocket event streams and media uploads outlive the
			// request timeout budget.
			if r.Header.Get("Upgrade") == "websocket" {
				next.ServeHTTP(w, r)
				return
			}
			if r.URL.Path == "/api/v1/media/upload" {
				next.ServeHTTP(w, r)
				return
			}
			timed.ServeHTTP(w, r)
		})
	})

	srv := &Server{
		cfg:    cfg,
		logger: logger,
		router: router,
	}

	if err := srv.initDependencies(); err != nil {
		return nil, err
	}

	srv.configureRoutes()
	srv.startBackgroundWorkers()

	addr := fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort)
	srv.httpServer = &http.Server{
		Addr:    addr,
		Handler: srv.router,
		// Header deadline guards against slowloris; no full-body read
		// deadline so large media uploads are not cut mid-request.
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       0,
		WriteTimeout:      0,
		IdleTimeout:       60 * time.Second,
	}

	return srv, nil
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("X-Frame-Options", "DENY")

		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) initDependencies() error {
	tracer, err := telemetry.InitTracer(context.Background(), telemetry.TracerConfig{
		ServiceName:    "heimdall-signage",
		ServiceVersion: version.Version,
		OTLPEndpoint:   s.cfg.OTLPEndpoint,
		Enabled:        s.cfg.TracingEnabled,
		SampleRate:     s.cfg.TracingSampleRate,
	}, s.logger)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	s.tracer = tracer
	s.DeferClose(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.tracer.Shutdown(ctx)
	})

	database, err := db.Connect(s.cfg)
	if err != nil {
		return err
	}
	if err := db.Migrate(database); err != nil {
		return err
	}
	s.db = database
	s.DeferClose(func() error { return db.Close(database) })

	if s.cfg.StorageBackend == config.StorageFilesystem {
		if err := os.MkdirAll(s.cfg.MediaRoot, 0o755); err != nil {
			return fmt.Errorf("create media directory %s: %w", s.cfg.MediaRoot, err)
		}
		s.logger.Info().Str("path", s.cfg.MediaRoot).Msg("media directory ready")
	}

	if s.cfg.CacheEnabled {
		cacheCfg := cache.DefaultConfig()
		cacheCfg.RedisAddr = s.cfg.RedisAddr
		cacheCfg.RedisPassword = s.cfg.RedisPassword
		cacheCfg.RedisDB = s.cfg.RedisDB
		entityCache, err := cache.New(cacheCfg, s.logger)
		if err != nil {
			s.logger.Warn().Err(err).Msg("cache initialization failed, continuing without cache")
		} else {
			s.cache = entityCache
			s.DeferClose(func() error { return s.cache.Close() })
		}
	}

	s.bus = s.buildBroker()
	s.DeferClose(func() error { return s.bus.Close() })

	s.catalog = catalog.New(database, s.cache, s.logger)

	timeProvider, err := schedule.NewProvider(s.cfg.DisplayTimezone)
	if err != nil {
		return err
	}
	resolver := schedule.NewResolver(s.logger)

	s.mediaSvc, err = media.NewService(s.cfg, database, s.logger)
	if err != nil {
		return fmt.Errorf("init media service: %w", err)
	}
	if err := s.mediaSvc.CheckStorageAccess(); err != nil {
		s.logger.Warn().Err(err).Msg("media storage not reachable at startup")
	}

	s.analyticsSvc = analytics.NewService(database, s.logger)
	s.analyticsSvc.SetRetention(s.cfg.ZoneEventRetention)

	s.auditSvc = audit.NewService(database, s.bus, s.logger)
	s.webhookSvc = webhooks.NewService(database, s.bus, s.logger)

	// Multi-node deployments elect one node to run fleet sweeps; a single
	// node without Redis runs them unconditionally.
	if s.cfg.CacheEnabled && s.cfg.RedisAddr != "" {
		electionCfg := leadership.DefaultConfig()
		electionCfg.RedisAddr = s.cfg.RedisAddr
		electionCfg.RedisPassword = s.cfg.RedisPassword
		electionCfg.RedisDB = s.cfg.RedisDB
		election, err := leadership.NewElection(electionCfg, s.logger)
		if err != nil {
			s.logger.Warn().Err(err).Msg("leader election unavailable, running fleet sweeps unconditionally")
		} else {
			s.election = election
			s.DeferClose(func() error { return s.election.Stop() })
		}
	}

	s.updates = version.NewChecker(s.logger)

	s.api = api.New(database, s.cfg, s.catalog, resolver, timeProvider, s.mediaSvc, s.analyticsSvc, s.auditSvc, s.webhookSvc, s.bus, s.logger)
	return nil
}

// buildBroker picks the event transport. NATS wins when enabled; otherwise a
// reachable Redis gives cross-node fan-out; a single node runs in-process.
func (s *Server) buildBroker() events.Broker {
	nodeID, _ := os.Hostname()
	if nodeID == "" {
		nodeID = uuid.NewString()
	}

	if s.cfg.NATSEnabled {
		natsCfg := eventbus.DefaultNATSConfig()
		natsCfg.URL = s.cfg.NATSURL
		bus, err := eventbus.NewNATSBus(natsCfg, nodeID, s.logger)
		if err == nil {
			s.logger.Info().Str("url", s.cfg.NATSURL).Msg("NATS event bus initialized")
			return bus
		}
		s.logger.Warn().Err(err).Msg("NATS unavailable, falling back to Redis event bus")
	}

	if s.cfg.CacheEnabled && s.cfg.RedisAddr != "" {
		redisCfg := eventbus.DefaultRedisConfig()
		redisCfg.Addr = s.cfg.RedisAddr
		redisCfg.Password = s.cfg.RedisPassword
		redisCfg.DB = s.cfg.RedisDB
		bus, err := eventbus.NewRedisBus(redisCfg, nodeID, s.logger)
		if err == nil {
			s.logger.Info().Str("addr", s.cfg.RedisAddr).Msg("Redis event bus initialized")
			return bus
		}
		s.logger.Warn().Err(err).Msg("Redis unavailable, falling back to in-process event bus")
	}

	return events.NewBus()
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok","version":"` + version.Version + `"}`))
	})

	s.router.Handle("/metrics", telemetry.Handler())

	// Filesystem-backed media is served straight from disk; S3 assets are
	// handed out as object URLs instead.
	if s.cfg.StorageBackend == config.StorageFilesystem {
		fileServer := http.StripPrefix("/media/", http.FileServer(http.Dir(s.cfg.MediaRoot)))
		s.router.Get("/media/*", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600")
			fileServer.ServeHTTP(w, r)
		})
	}

	s.api.Routes(s.router)
}

func (s *Server) startBackgroundWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		s.auditSvc.Start(ctx)
	}()

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		s.analyticsSvc.Start(ctx)
	}()

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		s.webhookSvc.Start(ctx)
	}()

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		s.runOfflineWatcher(ctx)
	}()

	if s.election != nil {
		s.election.Start(ctx)
	}

	s.updates.Start(ctx)
}

// runOfflineWatcher publishes device.offline for devices that crossed the
// silence threshold since the previous sweep. Polls publish device.online on
// the way back.
func (s *Server) runOfflineWatcher(ctx context.Context) {
	const sweep = 30 * time.Second

	offlineAfter := s.cfg.DeviceOfflineAfter
	if offlineAfter <= 0 {
		offlineAfter = 10 * time.Minute
	}

	ticker := time.NewTicker(sweep)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.election != nil && !s.election.IsLeader() {
				continue
			}
			now := time.Now()
			cutoff := now.Add(-offlineAfter)
			prevCutoff := cutoff.Add(-sweep)

			var devices []models.Device
			err := s.db.WithContext(ctx).
				Where("last_seen_at < ? AND last_seen_at >= ?", cutoff, prevCutoff).
				Find(&devices).Error
			if err != nil {
				s.logger.Warn().Err(err).Msg("offline sweep query failed")
				continue
			}

			for _, device := range devices {
				s.logger.Info().
					Str("device_id", device.ID).
					Str("serial_number", device.SerialNumber).
					Time("last_seen", *device.LastSeenAt).
					Msg("device went offline")
				s.bus.Publish(events.EventDeviceOffline, events.Payload{
					"device_id":     device.ID,
					"serial_number": device.SerialNumber,
					"tenant_id":     device.TenantID,
				})
			}
		}
	}
}

func (s *Server) stopBackgroundWorkers() {
	if s.bgCancel == nil {
		return
	}
	s.bgCancel()
	s.bgWG.Wait()
	s.bgCancel = nil
	s.updates.Stop()
}

// DeferClose registers a cleanup callback run during Shutdown in reverse
// registration order.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

// Run serves HTTP until the context is cancelled or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.httpServer.Addr).Msg("HTTP server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown()
	case err := <-errCh:
		_ = s.Shutdown()
		return err
	}
}

// Shutdown stops workers, drains HTTP, and runs deferred closers.
func (s *Server) Shutdown() error {
	s.logger.Info().Msg("shutting down")
	s.stopBackgroundWorkers()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	var firstErr error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		firstErr = err
	}

	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// DB exposes the database handle for CLI subcommands sharing server wiring.
func (s *Server) DB() *gorm.DB {
	return s.db
}
