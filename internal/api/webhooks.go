/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/friendsincode/heimdall_signage/internal/events"
	"github.com/friendsincode/heimdall_signage/internal/models"
)

type webhookRequest struct {
	TenantID string `json:"tenant_id"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	Secret   string `json:"secret"`
	Events   string `json:"events"`
	Active   *bool  `json:"active"`
}

var allowedWebhookEvents = map[string]struct{}{
	string(events.EventDeviceRegistered): {},
	string(events.EventDeviceOnline):     {},
	string(events.EventDeviceOffline):    {},
}

func validateWebhookEvents(csv string) bool {
	if csv == "" {
		return true
	}
	for _, e := range strings.Split(csv, ",") {
		if _, ok := allowedWebhookEvents[strings.TrimSpace(e)]; !ok {
			return false
		}
	}
	return true
}

func (a *API) handleWebhooksList(w http.ResponseWriter, r *http.Request) {
	tenantID := a.tenantScope(r)
	if tenantID == "" {
		writeError(w, http.StatusBadRequest, "tenant_required")
		return
	}

	var targets []models.WebhookTarget
	if err := a.db.Where("tenant_id = ?", tenantID).Order("created_at ASC").Find(&targets).Error; err != nil {
		a.logger.Error().Err(err).Msg("list webhooks")
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	writeJSON(w, http.StatusOK, targets)
}

func (a *API) handleWebhooksCreate(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}

	tenantID := req.TenantID
	if tenantID == "" {
		tenantID = a.tenantScope(r)
	}
	if req.Name == "" || tenantID == "" {
		writeError(w, http.StatusBadRequest, "name_and_tenant_required")
		return
	}
	if parsed, err := url.Parse(req.URL); err != nil || parsed.Scheme != "http" && parsed.Scheme != "https" {
		writeError(w, http.StatusBadRequest, "invalid_url")
		return
	}
	if !validateWebhookEvents(req.Events) {
		writeError(w, http.StatusBadRequest, "invalid_events")
		return
	}

	target := models.WebhookTarget{
		ID:       uuid.NewString(),
		TenantID: tenantID,
		Name:     req.Name,
		URL:      req.URL,
		Secret:   req.Secret,
		Events:   req.Events,
		Active:   true,
	}
	if req.Active != nil {
		target.Active = *req.Active
	}

	if err := a.db.Create(&target).Error; err != nil {
		a.logger.Error().Err(err).Msg("create webhook")
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	writeJSON(w, http.StatusCreated, target)
}

func (a *API) loadWebhook(w http.ResponseWriter, r *http.Request) (*models.WebhookTarget, bool) {
	var target models.WebhookTarget
	err := a.db.First(&target, "id = ?", chi.URLParam(r, "webhookID")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "webhook_not_found")
		return nil, false
	}
	if err != nil {
		a.logger.Error().Err(err).Msg("load webhook")
		writeError(w, http.StatusInternalServerError, "internal_error")
		return nil, false
	}
	return &target, true
}

func (a *API) handleWebhooksGet(w http.ResponseWriter, r *http.Request) {
	target, ok := a.loadWebhook(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, target)
}

func (a *API) handleWebhooksUpdate(w http.ResponseWriter, r *http.Request) {
	target, ok := a.loadWebhook(w, r)
	if !ok {
		return
	}

	var req webhookRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}

	if req.Name != "" {
		target.Name = req.Name
	}
	if req.URL != "" {
		if parsed, err := url.Parse(req.URL); err != nil || parsed.Scheme != "http" && parsed.Scheme != "https" {
			writeError(w, http.StatusBadRequest, "invalid_url")
			return
		}
		target.URL = req.URL
	}
	if req.Secret != "" {
		target.Secret = req.Secret
	}
	if req.Events != "" {
		if !validateWebhookEvents(req.Events) {
			writeError(w, http.StatusBadRequest, "invalid_events")
			return
		}
		target.Events = req.Events
	}
	if req.Active != nil {
		target.Active = *req.Active
	}

	if err := a.db.Save(target).Error; err != nil {
		a.logger.Error().Err(err).Msg("update webhook")
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	writeJSON(w, http.StatusOK, target)
}

func (a *API) handleWebhooksDelete(w http.ResponseWriter, r *http.Request) {
	target, ok := a.loadWebhook(w, r)
	if !ok {
		return
	}

	if err := a.db.Delete(&models.WebhookTarget{}, "id = ?", target.ID).Error; err != nil {
		a.logger.Error().Err(err).Msg("delete webhook")
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	a.db.Delete(&models.WebhookLog{}, "target_id = ?", target.ID)

	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleWebhooksTest(w http.ResponseWriter, r *http.Request) {
	target, ok := a.loadWebhook(w, r)
	if !ok {
		return
	}
	if a.webhooks == nil {
		writeError(w, http.StatusServiceUnavailable, "webhooks_disabled")
		return
	}

	if err := a.webhooks.Test(r.Context(), target); err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"error":  "delivery_failed",
			"detail": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "delivered"})
}

func (a *API) handleWebhooksLogs(w http.ResponseWriter, r *http.Request) {
	target, ok := a.loadWebhook(w, r)
	if !ok {
		return
	}

	var logs []models.WebhookLog
	if err := a.db.Where("target_id = ?", target.ID).
		Order("created_at DESC").
		Limit(100).
		Find(&logs).Error; err != nil {
		a.logger.Error().Err(err).Msg("list webhook logs")
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	writeJSON(w, http.StatusOK, logs)
}
