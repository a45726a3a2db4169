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

	"github.com/friendsincode/heimdall_signage/internal/events"
	"github.com/friendsincode/heimdall_signage/internal/models"
)

type announcementRequest struct {
	TenantID     string                `json:"tenant_id"`
	Name         string                `json:"name"`
	Text         string                `json:"text"`
	AudioAssetID *string               `json:"audio_asset_id"`
	Active       *bool                 `json:"active"`
	Schedule     models.ScheduleFields `json:"schedule"`
}

func (a *API) handleAnnouncementsList(w http.ResponseWriter, r *http.Request) {
	query := a.db.WithContext(r.Context()).Order("name")
	if tenantID := a.tenantScope(r); tenantID != "" {
		query = query.Where("tenant_id = ?", tenantID)
	}

	var announcements []models.Announcement
	if err := query.Find(&announcements).Error; err != nil {
		a.logger.Error().Err(err).Msg("list announcements failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, announcements)
}

func (a *API) handleAnnouncementsCreate(w http.ResponseWriter, r *http.Request) {
	var req announcementRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.Name == "" || req.TenantID == "" {
		writeError(w, http.StatusBadRequest, "name_and_tenant_required")
		return
	}
	if req.Text == "" && req.AudioAssetID == nil {
		writeError(w, http.StatusBadRequest, "text_or_audio_required")
		return
	}
	if err := validateSchedule(req.Schedule); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_schedule")
		return
	}

	announcement := models.Announcement{
		ID:             uuid.NewString(),
		TenantID:       req.TenantID,
		Name:           req.Name,
		Text:           req.Text,
		AudioAssetID:   req.AudioAssetID,
		Active:         true,
		ScheduleFields: req.Schedule,
	}
	if req.Active != nil {
		announcement.Active = *req.Active
	}

	if err := a.db.WithContext(r.Context()).Create(&announcement).Error; err != nil {
		a.logger.Error().Err(err).Msg("create announcement failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	a.catalog.InvalidateForWrite(r.Context(), announcement.TenantID)
	a.publishAuditEvent(r, events.EventAuditAnnouncementCreate, events.Payload{
		"resource_type": "announcement",
		"resource_id":   announcement.ID,
		"name":          announcement.Name,
	})
	if a.bus != nil {
		a.bus.Publish(events.EventAnnouncementUpdated, events.Payload{
			"announcement_id": announcement.ID,
			"tenant_id":       announcement.TenantID,
		})
	}

	writeJSON(w, http.StatusCreated, announcement)
}

func (a *API) handleAnnouncementsGet(w http.ResponseWriter, r *http.Request) {
	announcementID := chi.URLParam(r, "announcementID")

	var announcement models.Announcement
	err := a.db.WithContext(r.Context()).First(&announcement, "id = ?", announcementID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, announcement)
}

func (a *API) handleAnnouncementsUpdate(w http.ResponseWriter, r *http.Request) {
	announcementID := chi.URLParam(r, "announcementID")

	var req announcementRequest
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

	var announcement models.Announcement
	err := a.db.WithContext(r.Context()).First(&announcement, "id = ?", announcementID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	announcement.Name = req.Name
	announcement.Text = req.Text
	announcement.AudioAssetID = req.AudioAssetID
	announcement.ScheduleFields = req.Schedule
	if req.Active != nil {
		announcement.Active = *req.Active
	}

	if err := a.db.WithContext(r.Context()).Save(&announcement).Error; err != nil {
		a.logger.Error().Err(err).Msg("update announcement failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	a.catalog.InvalidateForWrite(r.Context(), announcement.TenantID)
	a.publishAuditEvent(r, events.EventAuditAnnouncementUpdate, events.Payload{
		"resource_type": "announcement",
		"resource_id":   announcementID,
	})
	if a.bus != nil {
		a.bus.Publish(events.EventAnnouncementUpdated, events.Payload{
			"announcement_id": announcementID,
			"tenant_id":       announcement.TenantID,
		})
	}

	writeJSON(w, http.StatusOK, announcement)
}

func (a *API) handleAnnouncementsDelete(w http.ResponseWriter, r *http.Request) {
	announcementID := chi.URLParam(r, "announcementID")

	var announcement models.Announcement
	err := a.db.WithContext(r.Context()).First(&announcement, "id = ?", announcementID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	if err := a.db.WithContext(r.Context()).Delete(&models.Announcement{}, "id = ?", announcementID).Error; err != nil {
		a.logger.Error().Err(err).Msg("delete announcement failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	a.catalog.InvalidateForWrite(r.Context(), announcement.TenantID)
	a.publishAuditEvent(r, events.EventAuditAnnouncementDelete, events.Payload{
		"resource_type": "announcement",
		"resource_id":   announcementID,
	})
	if a.bus != nil {
		a.bus.Publish(events.EventAnnouncementDeleted, events.Payload{
			"announcement_id": announcementID,
			"tenant_id":       announcement.TenantID,
		})
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
