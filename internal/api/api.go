/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/heimdall_signage/internal/analytics"
	"github.com/friendsincode/heimdall_signage/internal/audit"
	"github.com/friendsincode/heimdall_signage/internal/auth"
	"github.com/friendsincode/heimdall_signage/internal/catalog"
	"github.com/friendsincode/heimdall_signage/internal/config"
	"github.com/friendsincode/heimdall_signage/internal/events"
	"github.com/friendsincode/heimdall_signage/internal/media"
	"github.com/friendsincode/heimdall_signage/internal/models"
	"github.com/friendsincode/heimdall_signage/internal/schedule"
	"github.com/friendsincode/heimdall_signage/internal/webhooks"
)

// API exposes HTTP handlers.
type API struct {
	db           *gorm.DB
	jwtSecret    []byte
	catalog      *catalog.Service
	resolver     *schedule.Resolver
	timeProvider *schedule.Provider
	media        *media.Service
	analytics    *analytics.Service
	auditSvc     *audit.Service
	webhooks     *webhooks.Service
	bus          events.Broker
	logger       zerolog.Logger

	maxUploadBytes int64
	offlineAfter   time.Duration
}

// New creates the API router wrapper.
func New(db *gorm.DB, cfg *config.Config, catalogSvc *catalog.Service, resolver *schedule.Resolver, timeProvider *schedule.Provider, mediaSvc *media.Service, analyticsSvc *analytics.Service, auditSvc *audit.Service, webhookSvc *webhooks.Service, bus events.Broker, logger zerolog.Logger) *API {
	return &API{
		db:             db,
		jwtSecret:      []byte(cfg.JWTSigningKey),
		catalog:        catalogSvc,
		resolver:       resolver,
		timeProvider:   timeProvider,
		media:          mediaSvc,
		analytics:      analyticsSvc,
		auditSvc:       auditSvc,
		webhooks:       webhookSvc,
		bus:            bus,
		maxUploadBytes: cfg.MaxUploadSizeBytes(),
		offlineAfter:   cfg.DeviceOfflineAfter,
		logger:         logger,
	}
}

// offlineWindow is how long a device may stay silent before it is reported
// offline.
func (a *API) offlineWindow() time.Duration {
	if a.offlineAfter > 0 {
		return a.offlineAfter
	}
	return 5 * time.Minute
}

// Routes mounts API routes on the provided router.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", a.handleHealth)

		r.Group(func(pr chi.Router) {
			pr.Use(a.authMiddleware())

			// Device poll surface. Devices authenticate with X-API-Key.
			pr.Route("/devices/{serialNumber}", func(r chi.Router) {
				r.Use(auth.RequireDevice)
				r.Get("/announcements/active", a.handlePollAnnouncements)
				r.Get("/playlists", a.handlePollPlaylists)
				r.Get("/full", a.handlePollFull)
				r.Post("/heartbeat", a.handleDeviceHeartbeat)
				r.Post("/zone-events", a.handleZoneEventsIngest)
			})

			// Admin surface.
			pr.Route("/tenants", func(r chi.Router) {
				r.Get("/", a.handleTenantsList)
				r.With(a.requireRoles(models.RoleAdmin)).Post("/", a.handleTenantsCreate)
				r.Route("/{tenantID}", func(r chi.Router) {
					r.Get("/", a.handleTenantsGet)
					r.With(a.requireRoles(models.RoleAdmin)).Patch("/", a.handleTenantsUpdate)
				})
			})

			pr.Route("/fleet", func(r chi.Router) {
				r.Get("/", a.handleDevicesList)
				r.With(a.requireRoles(models.RoleAdmin, models.RoleManager)).Post("/", a.handleDevicesRegister)
				r.Route("/{deviceID}", func(r chi.Router) {
					r.Get("/", a.handleDevicesGet)
					r.With(a.requireRoles(models.RoleAdmin, models.RoleManager)).Patch("/", a.handleDevicesUpdate)
					r.With(a.requireRoles(models.RoleAdmin)).Delete("/", a.handleDevicesDelete)
					r.With(a.requireRoles(models.RoleAdmin, models.RoleManager)).Put("/playlists", a.handleDeviceAssignPlaylists)
					r.With(a.requireRoles(models.RoleAdmin, models.RoleManager)).Post("/zones", a.handleZoneCreate)
					r.Get("/zones", a.handleZonesList)
					r.Get("/zone-counts", a.handleZoneCountsForDevice)
				})
			})

			pr.Route("/media", func(r chi.Router) {
				r.Get("/", a.handleMediaList)
				r.With(a.requireRoles(models.RoleAdmin, models.RoleManager)).Post("/upload", a.handleMediaUpload)
				r.Route("/{assetID}", func(r chi.Router) {
					r.Get("/", a.handleMediaGet)
					r.Get("/content", a.handleMediaContent)
					r.With(a.requireRoles(models.RoleAdmin, models.RoleManager)).Delete("/", a.handleMediaDelete)
				})
			})

			pr.Route("/playlists", func(r chi.Router) {
				r.Get("/", a.handlePlaylistsList)
				r.With(a.requireRoles(models.RoleAdmin, models.RoleManager)).Post("/", a.handlePlaylistsCreate)
				r.Route("/{playlistID}", func(r chi.Router) {
					r.Get("/", a.handlePlaylistsGet)
					r.With(a.requireRoles(models.RoleAdmin, models.RoleManager)).Put("/", a.handlePlaylistsUpdate)
					r.With(a.requireRoles(models.RoleAdmin, models.RoleManager)).Delete("/", a.handlePlaylistsDelete)
				})
			})

			pr.Route("/announcements", func(r chi.Router) {
				r.Get("/", a.handleAnnouncementsList)
				r.With(a.requireRoles(models.RoleAdmin, models.RoleManager)).Post("/", a.handleAnnouncementsCreate)
				r.Route("/{announcementID}", func(r chi.Router) {
					r.Get("/", a.handleAnnouncementsGet)
					r.With(a.requireRoles(models.RoleAdmin, models.RoleManager)).Put("/", a.handleAnnouncementsUpdate)
					r.With(a.requireRoles(models.RoleAdmin, models.RoleManager)).Delete("/", a.handleAnnouncementsDelete)
				})
			})

			pr.Route("/analytics", func(r chi.Router) {
				r.Get("/zones/{zoneID}/counts", a.handleZoneCounts)
			})

			pr.Route("/users", func(r chi.Router) {
				r.With(a.requireRoles(models.RoleAdmin)).Get("/", a.handleUsersList)
				r.With(a.requireRoles(models.RoleAdmin)).Post("/", a.handleUsersCreate)
			})

			pr.Route("/apikeys", func(r chi.Router) {
				r.Get("/", a.handleAPIKeysList)
				r.Post("/", a.handleAPIKeysCreate)
				r.Delete("/{keyID}", a.handleAPIKeysRevoke)
			})

			pr.Route("/webhooks", func(r chi.Router) {
				r.Get("/", a.handleWebhooksList)
				r.With(a.requireRoles(models.RoleAdmin, models.RoleManager)).Post("/", a.handleWebhooksCreate)
				r.Route("/{webhookID}", func(r chi.Router) {
					r.Get("/", a.handleWebhooksGet)
					r.Get("/logs", a.handleWebhooksLogs)
					r.With(a.requireRoles(models.RoleAdmin, models.RoleManager)).Patch("/", a.handleWebhooksUpdate)
					r.With(a.requireRoles(models.RoleAdmin, models.RoleManager)).Delete("/", a.handleWebhooksDelete)
					r.With(a.requireRoles(models.RoleAdmin, models.RoleManager)).Post("/test", a.handleWebhooksTest)
				})
			})

			pr.With(a.requireRoles(models.RoleAdmin)).Get("/audit", a.handleAuditList)

			pr.Get("/events", a.handleEvents)
		})

		// Login is the only unauthenticated mutation.
		r.Post("/auth/login", a.handleLogin)
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) authMiddleware() func(http.Handler) http.Handler {
	return auth.Middleware(a.db, a.jwtSecret)
}

func (a *API) requireRoles(allowed ...models.RoleName) func(http.Handler) http.Handler {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[string(role)] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := auth.ClaimsFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			for _, role := range claims.Roles {
				if _, exists := allowedSet[role]; exists {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "insufficient_role")
		})
	}
}

func decodeJSONBody(r *http.Request, dest any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dest)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

// auditContext extracts user and request info for audit logging.
func (a *API) auditContext(r *http.Request) events.Payload {
	payload := events.Payload{
		"ip_address": r.RemoteAddr,
		"user_agent": r.UserAgent(),
	}

	if claims, ok := auth.ClaimsFromContext(r.Context()); ok && claims != nil {
		if claims.UserID != "" {
			payload["user_id"] = claims.UserID

			var user models.User
			if err := a.db.Select("email").First(&user, "id = ?", claims.UserID).Error; err == nil {
				payload["user_email"] = user.Email
			}
		}
		if claims.TenantID != "" {
			payload["tenant_id"] = claims.TenantID
		}
	}

	return payload
}

func (a *API) publishAuditEvent(r *http.Request, eventType events.EventType, data events.Payload) {
	if a.bus == nil {
		return
	}
	payload := a.auditContext(r)
	for k, v := range data {
		payload[k] = v
	}
	a.bus.Publish(eventType, payload)
}

// tenantScope returns the tenant a request may operate on. Admins may pass
// an explicit tenant_id query parameter; everyone else is pinned to their own.
func (a *API) tenantScope(r *http.Request) string {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok || claims == nil {
		return ""
	}
	if claims.HasRole(string(models.RoleAdmin)) {
		if override := r.URL.Query().Get("tenant_id"); override != "" {
			return override
		}
	}
	return claims.TenantID
}

func parseTimeRange(r *http.Request) (time.Time, time.Time, bool) {
	q := r.URL.Query()
	from, errFrom := time.Parse(time.RFC3339, q.Get("from"))
	to, errTo := time.Parse(time.RFC3339, q.Get("to"))
	if errFrom != nil || errTo != nil || !to.After(from) {
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}
