/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"github.com/friendsincode/heimdall_signage/internal/analytics"
	"github.com/friendsincode/heimdall_signage/internal/models"
)

type zoneCreateRequest struct {
	Name string `json:"name"`
}

func (a *API) handleZoneCreate(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")

	var req zoneCreateRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name_required")
		return
	}

	var device models.Device
	err := a.db.WithContext(r.Context()).First(&device, "id = ?", deviceID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "device_not_found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	zone, err := a.analytics.CreateZone(r.Context(), device.TenantID, device.ID, req.Name)
	if err != nil {
		a.logger.Error().Err(err).Str("device_id", deviceID).Msg("create zone failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	writeJSON(w, http.StatusCreated, zone)
}

func (a *API) handleZonesList(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")

	zones, err := a.analytics.ZonesForDevice(r.Context(), deviceID)
	if err != nil {
		a.logger.Error().Err(err).Str("device_id", deviceID).Msg("list zones failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, zones)
}

func (a *API) handleZoneCountsForDevice(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")

	from, to, ok := parseTimeRange(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_time_range")
		return
	}

	counts, err := a.analytics.CountsForDevice(r.Context(), deviceID, from, to)
	if err != nil {
		a.logger.Error().Err(err).Str("device_id", deviceID).Msg("zone counts failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func (a *API) handleZoneCounts(w http.ResponseWriter, r *http.Request) {
	zoneID := chi.URLParam(r, "zoneID")

	from, to, ok := parseTimeRange(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_time_range")
		return
	}

	count, err := a.analytics.Count(r.Context(), zoneID, from, to)
	if errors.Is(err, analytics.ErrZoneNotFound) {
		writeError(w, http.StatusNotFound, "zone_not_found")
		return
	}
	if err != nil {
		a.logger.Error().Err(err).Str("zone_id", zoneID).Msg("zone count failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, count)
}

type zoneEventsRequest struct {
	Observations []analytics.Observation `json:"observations"`
}

// handleZoneEventsIngest accepts a sighting batch from a device camera.
// Rows for zones the device does not own are dropped, not rejected, so a
// stale zone config on the device cannot wedge its whole reporting loop.
func (a *API) handleZoneEventsIngest(w http.ResponseWriter, r *http.Request) {
	device, ok := a.pollDevice(w, r)
	if !ok {
		return
	}

	var req zoneEventsRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if len(req.Observations) == 0 {
		writeJSON(w, http.StatusOK, map[string]int{"accepted": 0})
		return
	}

	accepted, err := a.analytics.Ingest(r.Context(), device.ID, req.Observations)
	if err != nil {
		a.logger.Error().Err(err).Str("device_id", device.ID).Msg("zone event ingest failed")
		writeError(w, http.StatusInternalServerError, "ingest_failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"accepted": accepted})
}
