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

func (a *API) handleTenantsList(w http.ResponseWriter, r *http.Request) {
	var tenants []models.Tenant
	if err := a.db.WithContext(r.Context()).Order("name").Find(&tenants).Error; err != nil {
		a.logger.Error().Err(err).Msg("list tenants failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, tenants)
}

func (a *API) handleTenantsCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name_required")
		return
	}

	tenant := models.Tenant{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
	}
	if err := a.db.WithContext(r.Context()).Create(&tenant).Error; err != nil {
		a.logger.Error().Err(err).Msg("create tenant failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	a.publishAuditEvent(r, events.EventAuditTenantCreate, events.Payload{
		"resource_type": "tenant",
		"resource_id":   tenant.ID,
		"name":          tenant.Name,
	})
	if a.bus != nil {
		a.bus.Publish(events.EventTenantUpdated, events.Payload{"tenant_id": tenant.ID})
	}

	writeJSON(w, http.StatusCreated, tenant)
}

func (a *API) handleTenantsGet(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")

	var tenant models.Tenant
	err := a.db.WithContext(r.Context()).First(&tenant, "id = ?", tenantID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		a.logger.Error().Err(err).Msg("get tenant failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, tenant)
}

func (a *API) handleTenantsUpdate(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")

	var req struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
	}
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	updates := map[string]any{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if len(updates) == 0 {
		writeError(w, http.StatusBadRequest, "no_updates")
		return
	}

	result := a.db.WithContext(r.Context()).Model(&models.Tenant{}).
		Where("id = ?", tenantID).
		Updates(updates)
	if result.Error != nil {
		a.logger.Error().Err(result.Error).Msg("update tenant failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	if result.RowsAffected == 0 {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}

	if a.bus != nil {
		a.bus.Publish(events.EventTenantUpdated, events.Payload{"tenant_id": tenantID})
	}

	var tenant models.Tenant
	if err := a.db.WithContext(r.Context()).First(&tenant, "id = ?", tenantID).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, tenant)
}
