/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/heimdall_signage/internal/auth"
	"github.com/friendsincode/heimdall_signage/internal/catalog"
	"github.com/friendsincode/heimdall_signage/internal/events"
	"github.com/friendsincode/heimdall_signage/internal/models"
	"github.com/friendsincode/heimdall_signage/internal/schedule"
	"github.com/friendsincode/heimdall_signage/internal/telemetry"
)

// currentTimeBlock mirrors the resolution context back to the device so
// schedule issues can be debugged from the device side.
type currentTimeBlock struct {
	Time     string `json:"time"`
	Date     string `json:"date"`
	Weekday  string `json:"weekday"`
	Timezone string `json:"timezone"`
}

type announcementsResponse struct {
	ActiveAnnouncements          []schedule.Item    `json:"activeAnnouncements"`
	ScheduledHourlyAnnouncements []schedule.Trigger `json:"scheduledHourlyAnnouncements"`
	CurrentTime                  currentTimeBlock   `json:"currentTime"`
}

type playlistsResponse struct {
	ActivePlaylists []schedule.Item  `json:"activePlaylists"`
	CurrentTime     currentTimeBlock `json:"currentTime"`
}

type fullResponse struct {
	ActivePlaylists              []schedule.Item    `json:"activePlaylists"`
	ActiveAnnouncements          []schedule.Item    `json:"activeAnnouncements"`
	ScheduledHourlyAnnouncements []schedule.Trigger `json:"scheduledHourlyAnnouncements"`
	CurrentTime                  currentTimeBlock   `json:"currentTime"`
}

// pollDevice resolves the path serial number to a device and checks it
// matches the calling credential. A device can only poll itself.
func (a *API) pollDevice(w http.ResponseWriter, r *http.Request) (*models.Device, bool) {
	serial := chi.URLParam(r, "serialNumber")
	if serial == "" {
		writeError(w, http.StatusBadRequest, "serial_number_required")
		return nil, false
	}

	device, err := a.catalog.DeviceBySerial(r.Context(), serial)
	if err != nil {
		if errors.Is(err, catalog.ErrDeviceNotFound) {
			writeError(w, http.StatusNotFound, "device_not_found")
			return nil, false
		}
		a.logger.Error().Err(err).Str("serial_number", serial).Msg("device lookup failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return nil, false
	}

	claims, _ := auth.ClaimsFromContext(r.Context())
	if claims == nil || claims.DeviceID != device.ID {
		writeError(w, http.StatusForbidden, "device_mismatch")
		return nil, false
	}

	a.touchDevice(r.Context(), device)
	return device, true
}

// touchDevice records the poll as a liveness signal.
func (a *API) touchDevice(ctx context.Context, device *models.Device) {
	now := time.Now()
	wasOffline := device.LastSeenAt == nil || now.Sub(*device.LastSeenAt) > a.offlineWindow()
	device.Touch(now)

	if err := a.db.WithContext(ctx).Model(&models.Device{}).
		Where("id = ?", device.ID).
		Update("last_seen_at", now).Error; err != nil {
		a.logger.Warn().Err(err).Str("device_id", device.ID).Msg("failed to update last seen")
	}

	if a.bus != nil {
		a.bus.Publish(events.EventDevicePoll, events.Payload{
			"device_id":     device.ID,
			"serial_number": device.SerialNumber,
			"tenant_id":     device.TenantID,
		})
		if wasOffline {
			a.bus.Publish(events.EventDeviceOnline, events.Payload{
				"device_id":     device.ID,
				"serial_number": device.SerialNumber,
				"tenant_id":     device.TenantID,
			})
		}
	}
}

func (a *API) currentTime(ctx schedule.Context) currentTimeBlock {
	return currentTimeBlock{
		Time:     ctx.TimeOfDay,
		Date:     ctx.CalendarDate,
		Weekday:  ctx.Weekday,
		Timezone: a.timeProvider.Location().String(),
	}
}

func (a *API) resolve(items []schedule.Item) (schedule.Resolution, schedule.Context) {
	ctx := a.timeProvider.Now()
	res := a.resolver.Resolve(items, ctx)

	telemetry.ResolutionPassesTotal.Inc()
	if res.Skipped > 0 {
		telemetry.ResolutionSkippedTotal.Add(float64(res.Skipped))
	}
	return res, ctx
}

func emptyItems(items []schedule.Item) []schedule.Item {
	if items == nil {
		return []schedule.Item{}
	}
	return items
}

func emptyTriggers(triggers []schedule.Trigger) []schedule.Trigger {
	if triggers == nil {
		return []schedule.Trigger{}
	}
	return triggers
}

// isPlaylistItem inspects the opaque payload's kind tag. Cache hits arrive
// as decoded JSON maps rather than the original payload structs.
func isPlaylistItem(item schedule.Item) bool {
	switch p := item.Payload.(type) {
	case catalog.PlaylistPayload:
		return true
	case *catalog.PlaylistPayload:
		return p != nil
	case map[string]any:
		return p["kind"] == catalog.KindPlaylist
	}
	return false
}

func (a *API) handlePollAnnouncements(w http.ResponseWriter, r *http.Request) {
	telemetry.DevicePollsTotal.WithLabelValues("announcements_active").Inc()

	device, ok := a.pollDevice(w, r)
	if !ok {
		return
	}

	items, err := a.catalog.AnnouncementsForTenant(r.Context(), device.TenantID)
	if err != nil {
		telemetry.CatalogFetchErrorsTotal.Inc()
		a.logger.Error().Err(err).Str("device_id", device.ID).Msg("announcement catalog fetch failed")
		writeError(w, http.StatusInternalServerError, "catalog_error")
		return
	}

	res, ctx := a.resolve(items)

	writeJSON(w, http.StatusOK, announcementsResponse{
		ActiveAnnouncements:          emptyItems(res.Active),
		ScheduledHourlyAnnouncements: emptyTriggers(res.Upcoming),
		CurrentTime:                  a.currentTime(ctx),
	})
}

func (a *API) handlePollPlaylists(w http.ResponseWriter, r *http.Request) {
	telemetry.DevicePollsTotal.WithLabelValues("playlists").Inc()

	device, ok := a.pollDevice(w, r)
	if !ok {
		return
	}

	items, err := a.catalog.PlaylistsForDevice(r.Context(), device.ID)
	if err != nil {
		telemetry.CatalogFetchErrorsTotal.Inc()
		a.logger.Error().Err(err).Str("device_id", device.ID).Msg("playlist catalog fetch failed")
		writeError(w, http.StatusInternalServerError, "catalog_error")
		return
	}

	res, ctx := a.resolve(items)

	writeJSON(w, http.StatusOK, playlistsResponse{
		ActivePlaylists: emptyItems(res.Active),
		CurrentTime:     a.currentTime(ctx),
	})
}

func (a *API) handlePollFull(w http.ResponseWriter, r *http.Request) {
	telemetry.DevicePollsTotal.WithLabelValues("full").Inc()

	device, ok := a.pollDevice(w, r)
	if !ok {
		return
	}

	items, err := a.catalog.ForDevice(r.Context(), device)
	if err != nil {
		telemetry.CatalogFetchErrorsTotal.Inc()
		a.logger.Error().Err(err).Str("device_id", device.ID).Msg("catalog fetch failed")
		writeError(w, http.StatusInternalServerError, "catalog_error")
		return
	}

	res, ctx := a.resolve(items)

	// One resolution pass; the split into playlist and announcement lists is
	// presentation only.
	resp := fullResponse{
		ActivePlaylists:              []schedule.Item{},
		ActiveAnnouncements:          []schedule.Item{},
		ScheduledHourlyAnnouncements: emptyTriggers(res.Upcoming),
		CurrentTime:                  a.currentTime(ctx),
	}
	for _, item := range res.Active {
		if isPlaylistItem(item) {
			resp.ActivePlaylists = append(resp.ActivePlaylists, item)
		} else {
			resp.ActiveAnnouncements = append(resp.ActiveAnnouncements, item)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

type heartbeatRequest struct {
	Status   string         `json:"status,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (a *API) handleDeviceHeartbeat(w http.ResponseWriter, r *http.Request) {
	telemetry.DevicePollsTotal.WithLabelValues("heartbeat").Inc()

	device, ok := a.pollDevice(w, r)
	if !ok {
		return
	}

	var req heartbeatRequest
	_ = decodeJSONBody(r, &req) // heartbeat body is optional

	if len(req.Metadata) > 0 {
		if err := a.db.WithContext(r.Context()).Model(&models.Device{}).
			Where("id = ?", device.ID).
			Update("metadata", req.Metadata).Error; err != nil {
			a.logger.Warn().Err(err).Str("device_id", device.ID).Msg("failed to store heartbeat metadata")
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"server_time": time.Now().UTC().Format(time.RFC3339),
	})
}
