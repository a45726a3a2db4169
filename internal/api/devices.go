/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/friendsincode/heimdall_signage/internal/auth"
	"github.com/friendsincode/heimdall_signage/internal/events"
	"github.com/friendsincode/heimdall_signage/internal/models"
)

type deviceResponse struct {
	models.Device
	Online bool `json:"online"`
}

func (a *API) toDeviceResponse(d models.Device) deviceResponse {
	online := d.LastSeenAt != nil && time.Since(*d.LastSeenAt) < a.offlineWindow()
	return deviceResponse{Device: d, Online: online}
}

func (a *API) handleDevicesList(w http.ResponseWriter, r *http.Request) {
	query := a.db.WithContext(r.Context()).Order("name")
	if tenantID := a.tenantScope(r); tenantID != "" {
		query = query.Where("tenant_id = ?", tenantID)
	}

	var devices []models.Device
	if err := query.Find(&devices).Error; err != nil {
		a.logger.Error().Err(err).Msg("list devices failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	out := make([]deviceResponse, 0, len(devices))
	for _, d := range devices {
		out = append(out, a.toDeviceResponse(d))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleDevicesRegister creates a device and mints its poll credential. The
// plaintext key appears in this response only; it is provisioned onto the
// device out of band.
func (a *API) handleDevicesRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TenantID     string         `json:"tenant_id"`
		SerialNumber string         `json:"serial_number"`
		Name         string         `json:"name"`
		Location     string         `json:"location"`
		Model        string         `json:"model"`
		Metadata     map[string]any `json:"metadata"`
	}
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.SerialNumber == "" || req.TenantID == "" {
		writeError(w, http.StatusBadRequest, "serial_number_and_tenant_required")
		return
	}

	device := models.Device{
		ID:           uuid.NewString(),
		TenantID:     req.TenantID,
		SerialNumber: req.SerialNumber,
		Name:         req.Name,
		Location:     req.Location,
		Model:        req.Model,
		Status:       models.DeviceStatusActive,
		Metadata:     req.Metadata,
	}

	plaintext, key, err := auth.GenerateDeviceKey(device.ID, "device:"+req.SerialNumber)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "key_generation_error")
		return
	}

	tx := a.db.WithContext(r.Context()).Begin()
	if err := tx.Create(&device).Error; err != nil {
		tx.Rollback()
		a.logger.Error().Err(err).Str("serial_number", req.SerialNumber).Msg("create device failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	if err := tx.Create(key).Error; err != nil {
		tx.Rollback()
		a.logger.Error().Err(err).Msg("create device key failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	tx.Commit()

	a.logger.Info().
		Str("device_id", device.ID).
		Str("serial_number", device.SerialNumber).
		Str("tenant_id", device.TenantID).
		Msg("device registered")

	a.publishAuditEvent(r, events.EventAuditDeviceRegister, events.Payload{
		"resource_type": "device",
		"resource_id":   device.ID,
		"serial_number": device.SerialNumber,
	})
	if a.bus != nil {
		a.bus.Publish(events.EventDeviceRegistered, events.Payload{
			"device_id":     device.ID,
			"serial_number": device.SerialNumber,
			"tenant_id":     device.TenantID,
		})
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"device":  a.toDeviceResponse(device),
		"api_key": plaintext,
	})
}

func (a *API) handleDevicesGet(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")

	var device models.Device
	err := a.db.WithContext(r.Context()).First(&device, "id = ?", deviceID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		a.logger.Error().Err(err).Msg("get device failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, a.toDeviceResponse(device))
}

func (a *API) handleDevicesUpdate(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")

	var req struct {
		Name     *string              `json:"name"`
		Location *string              `json:"location"`
		Status   *models.DeviceStatus `json:"status"`
		Metadata map[string]any       `json:"metadata"`
	}
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	updates := map[string]any{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Location != nil {
		updates["location"] = *req.Location
	}
	if req.Status != nil {
		switch *req.Status {
		case models.DeviceStatusPending, models.DeviceStatusActive, models.DeviceStatusDisabled:
			updates["status"] = *req.Status
		default:
			writeError(w, http.StatusBadRequest, "invalid_status")
			return
		}
	}
	if req.Metadata != nil {
		updates["metadata"] = req.Metadata
	}
	if len(updates) == 0 {
		writeError(w, http.StatusBadRequest, "no_updates")
		return
	}

	var device models.Device
	if err := a.db.WithContext(r.Context()).First(&device, "id = ?", deviceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	if err := a.db.WithContext(r.Context()).Model(&device).Updates(updates).Error; err != nil {
		a.logger.Error().Err(err).Msg("update device failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	a.invalidateDevice(r, &device)
	a.publishAuditEvent(r, events.EventAuditDeviceAssign, events.Payload{
		"resource_type": "device",
		"resource_id":   device.ID,
	})

	if err := a.db.WithContext(r.Context()).First(&device, "id = ?", deviceID).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, a.toDeviceResponse(device))
}

func (a *API) handleDevicesDelete(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")

	var device models.Device
	err := a.db.WithContext(r.Context()).First(&device, "id = ?", deviceID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	tx := a.db.WithContext(r.Context()).Begin()
	if err := tx.Where("device_id = ?", deviceID).Delete(&models.DevicePlaylist{}).Error; err != nil {
		tx.Rollback()
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	if err := tx.Where("device_id = ?", deviceID).Delete(&models.APIKey{}).Error; err != nil {
		tx.Rollback()
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	if err := tx.Delete(&models.Device{}, "id = ?", deviceID).Error; err != nil {
		tx.Rollback()
		a.logger.Error().Err(err).Msg("delete device failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	tx.Commit()

	a.invalidateDevice(r, &device)
	a.publishAuditEvent(r, events.EventAuditDeviceDelete, events.Payload{
		"resource_type": "device",
		"resource_id":   deviceID,
		"serial_number": device.SerialNumber,
	})

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleDeviceAssignPlaylists replaces the device's playlist assignment set.
func (a *API) handleDeviceAssignPlaylists(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")

	var req struct {
		PlaylistIDs []string `json:"playlist_ids"`
	}
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	var device models.Device
	err := a.db.WithContext(r.Context()).First(&device, "id = ?", deviceID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	// Every referenced playlist must exist and belong to the device's tenant.
	if len(req.PlaylistIDs) > 0 {
		var count int64
		if err := a.db.WithContext(r.Context()).Model(&models.Playlist{}).
			Where("id IN ? AND tenant_id = ?", req.PlaylistIDs, device.TenantID).
			Count(&count).Error; err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
		if count != int64(len(req.PlaylistIDs)) {
			writeError(w, http.StatusBadRequest, "unknown_playlist")
			return
		}
	}

	tx := a.db.WithContext(r.Context()).Begin()
	if err := tx.Where("device_id = ?", deviceID).Delete(&models.DevicePlaylist{}).Error; err != nil {
		tx.Rollback()
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	for _, playlistID := range req.PlaylistIDs {
		if err := tx.Create(&models.DevicePlaylist{DeviceID: deviceID, PlaylistID: playlistID}).Error; err != nil {
			tx.Rollback()
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
	}
	tx.Commit()

	a.invalidateDevice(r, &device)
	a.publishAuditEvent(r, events.EventAuditDeviceAssign, events.Payload{
		"resource_type": "device",
		"resource_id":   deviceID,
		"playlist_ids":  req.PlaylistIDs,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id":    deviceID,
		"playlist_ids": req.PlaylistIDs,
	})
}

// invalidateDevice drops caches touched by a device-level write.
func (a *API) invalidateDevice(r *http.Request, device *models.Device) {
	a.catalog.InvalidateForWrite(r.Context(), device.TenantID)
	if a.bus != nil {
		a.bus.Publish(events.EventDeviceUpdated, events.Payload{
			"device_id":     device.ID,
			"serial_number": device.SerialNumber,
			"tenant_id":     device.TenantID,
		})
	}
}
