/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/friendsincode/heimdall_signage/internal/catalog"
	"github.com/friendsincode/heimdall_signage/internal/events"
	"github.com/friendsincode/heimdall_signage/internal/models"
)

type playlistItemRequest struct {
	MediaAssetID string `json:"media_asset_id"`
	DurationSec  int    `json:"duration_sec,omitempty"`
}

type playlistRequest struct {
	TenantID    string                `json:"tenant_id"`
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Active      *bool                 `json:"active"`
	Schedule    models.ScheduleFields `json:"schedule"`
	Items       []playlistItemRequest `json:"items"`
}

// validateSchedule rejects writes whose schedule the resolver would skip.
// Catching this at write time beats silently dropping content at poll time.
func validateSchedule(fields models.ScheduleFields) error {
	return catalog.ToDefinition(fields).Validate()
}

func (a *API) handlePlaylistsList(w http.ResponseWriter, r *http.Request) {
	query := a.db.WithContext(r.Context()).Preload("Items").Order("name")
	if tenantID := a.tenantScope(r); tenantID != "" {
		query = query.Where("tenant_id = ?", tenantID)
	}

	var playlists []models.Playlist
	if err := query.Find(&playlists).Error; err != nil {
		a.logger.Error().Err(err).Msg("list playlists failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, playlists)
}

func (a *API) handlePlaylistsCreate(w http.ResponseWriter, r *http.Request) {
	var req playlistRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.Name == "" || req.TenantID == "" {
		writeError(w, http.StatusBadRequest, "name_and_tenant_required")
		return
	}
	if err := validateSchedule(req.Schedule); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_schedule")
		return
	}

	playlist := models.Playlist{
		ID:             uuid.NewString(),
		TenantID:       req.TenantID,
		Name:           req.Name,
		Description:    req.Description,
		Active:         true,
		ScheduleFields: req.Schedule,
	}
	if req.Active != nil {
		playlist.Active = *req.Active
	}

	tx := a.db.WithContext(r.Context()).Begin()
	if err := tx.Create(&playlist).Error; err != nil {
		tx.Rollback()
		a.logger.Error().Err(err).Msg("create playlist failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	if err := createPlaylistItems(tx, playlist.ID, req.Items); err != nil {
		tx.Rollback()
		writeError(w, http.StatusBadRequest, "invalid_items")
		return
	}
	tx.Commit()

	a.catalog.InvalidateForWrite(r.Context(), playlist.TenantID)
	a.publishAuditEvent(r, events.EventAuditPlaylistCreate, events.Payload{
		"resource_type": "playlist",
		"resource_id":   playlist.ID,
		"name":          playlist.Name,
	})
	if a.bus != nil {
		a.bus.Publish(events.EventPlaylistUpdated, events.Payload{
			"playlist_id": playlist.ID,
			"tenant_id":   playlist.TenantID,
		})
	}

	a.writePlaylist(w, r, playlist.ID, http.StatusCreated)
}

func createPlaylistItems(tx *gorm.DB, playlistID string, items []playlistItemRequest) error {
	for position, item := range items {
		if item.MediaAssetID == "" {
			return errors.New("media_asset_id required")
		}
		row := models.PlaylistItem{
			ID:           uuid.NewString(),
			PlaylistID:   playlistID,
			MediaAssetID: item.MediaAssetID,
			Position:     position,
			DurationSec:  item.DurationSec,
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
	}
	return nil
}

func (a *API) writePlaylist(w http.ResponseWriter, r *http.Request, playlistID string, status int) {
	var playlist models.Playlist
	err := a.db.WithContext(r.Context()).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Items.MediaAsset").
		First(&playlist, "id = ?", playlistID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		a.logger.Error().Err(err).Msg("load playlist failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, status, playlist)
}

func (a *API) handlePlaylistsGet(w http.ResponseWriter, r *http.Request) {
	a.writePlaylist(w, r, chi.URLParam(r, "playlistID"), http.StatusOK)
}

// handlePlaylistsUpdate replaces the playlist's fields and item list.
func (a *API) handlePlaylistsUpdate(w http.ResponseWriter, r *http.Request) {
	playlistID := chi.URLParam(r, "playlistID")

	var req playlistRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name_required")
		return
	}
	if err := validateSchedule(req.Schedule); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_schedule")
		return
	}

	var playlist models.Playlist
	err := a.db.WithContext(r.Context()).First(&playlist, "id = ?", playlistID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	active := playlist.Active
	if req.Active != nil {
		active = *req.Active
	}

	playlist.Name = req.Name
	playlist.Description = req.Description
	playlist.Active = active
	playlist.ScheduleFields = req.Schedule

	tx := a.db.WithContext(r.Context()).Begin()
	// Save bumps UpdatedAt, which is the content version devices compare.
	if err := tx.Save(&playlist).Error; err != nil {
		tx.Rollback()
		a.logger.Error().Err(err).Msg("update playlist failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	if err := tx.Where("playlist_id = ?", playlistID).Delete(&models.PlaylistItem{}).Error; err != nil {
		tx.Rollback()
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	if err := createPlaylistItems(tx, playlistID, req.Items); err != nil {
		tx.Rollback()
		writeError(w, http.StatusBadRequest, "invalid_items")
		return
	}
	tx.Commit()

	a.catalog.InvalidateForWrite(r.Context(), playlist.TenantID)
	a.publishAuditEvent(r, events.EventAuditPlaylistUpdate, events.Payload{
		"resource_type": "playlist",
		"resource_id":   playlistID,
	})
	if a.bus != nil {
		a.bus.Publish(events.EventPlaylistUpdated, events.Payload{
			"playlist_id": playlistID,
			"tenant_id":   playlist.TenantID,
		})
	}

	a.writePlaylist(w, r, playlistID, http.StatusOK)
}

func (a *API) handlePlaylistsDelete(w http.ResponseWriter, r *http.Request) {
	playlistID := chi.URLParam(r, "playlistID")

	var playlist models.Playlist
	err := a.db.WithContext(r.Context()).First(&playlist, "id = ?", playlistID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	tx := a.db.WithContext(r.Context()).Begin()
	if err := tx.Where("playlist_id = ?", playlistID).Delete(&models.PlaylistItem{}).Error; err != nil {
		tx.Rollback()
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	if err := tx.Where("playlist_id = ?", playlistID).Delete(&models.DevicePlaylist{}).Error; err != nil {
		tx.Rollback()
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	if err := tx.Delete(&models.Playlist{}, "id = ?", playlistID).Error; err != nil {
		tx.Rollback()
		a.logger.Error().Err(err).Msg("delete playlist failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	tx.Commit()

	a.catalog.InvalidateForWrite(r.Context(), playlist.TenantID)
	a.publishAuditEvent(r, events.EventAuditPlaylistDelete, events.Payload{
		"resource_type": "playlist",
		"resource_id":   playlistID,
	})
	if a.bus != nil {
		a.bus.Publish(events.EventPlaylistDeleted, events.Payload{
			"playlist_id": playlistID,
			"tenant_id":   playlist.TenantID,
		})
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
