/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/heimdall_signage/internal/events"
	"github.com/friendsincode/heimdall_signage/internal/media"
)

type mediaAssetResponse struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenant_id"`
	Title       string `json:"title"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
	DurationSec int    `json:"duration_sec"`
	URL         string `json:"url"`
	CreatedAt   string `json:"created_at"`
}

func (a *API) handleMediaList(w http.ResponseWriter, r *http.Request) {
	tenantID := a.tenantScope(r)
	if tenantID == "" {
		writeError(w, http.StatusBadRequest, "tenant_required")
		return
	}

	assets, err := a.media.List(r.Context(), tenantID)
	if err != nil {
		a.logger.Error().Err(err).Msg("list media failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	out := make([]mediaAssetResponse, 0, len(assets))
	for i := range assets {
		asset := assets[i]
		out = append(out, mediaAssetResponse{
			ID:          asset.ID,
			TenantID:    asset.TenantID,
			Title:       asset.Title,
			ContentType: asset.ContentType,
			SizeBytes:   asset.SizeBytes,
			DurationSec: asset.DurationSec,
			URL:         a.media.URL(&asset),
			CreatedAt:   asset.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleMediaUpload(w http.ResponseWriter, r *http.Request) {
	tenantID := a.tenantScope(r)
	if tenantID == "" {
		writeError(w, http.StatusBadRequest, "tenant_required")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "upload_too_large")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file_required")
		return
	}
	defer file.Close()

	title := r.FormValue("title")
	if title == "" {
		title = header.Filename
	}

	durationSec := 0
	if raw := r.FormValue("duration_sec"); raw != "" {
		durationSec, err = strconv.Atoi(raw)
		if err != nil || durationSec < 0 {
			writeError(w, http.StatusBadRequest, "invalid_duration")
			return
		}
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = sniffContentType(file)
	}

	asset, err := a.media.Upload(r.Context(), media.UploadInput{
		TenantID:    tenantID,
		Title:       title,
		ContentType: contentType,
		SizeBytes:   header.Size,
		DurationSec: durationSec,
		Body:        file,
	})
	if errors.Is(err, media.ErrUnsupportedType) {
		writeError(w, http.StatusBadRequest, "unsupported_content_type")
		return
	}
	if err != nil {
		a.logger.Error().Err(err).Msg("media upload failed")
		writeError(w, http.StatusInternalServerError, "upload_failed")
		return
	}

	a.catalog.InvalidateForWrite(r.Context(), tenantID)
	a.publishAuditEvent(r, events.EventAuditMediaUpload, events.Payload{
		"resource_type": "media_asset",
		"resource_id":   asset.ID,
		"title":         asset.Title,
		"content_type":  asset.ContentType,
		"size_bytes":    asset.SizeBytes,
	})
	if a.bus != nil {
		a.bus.Publish(events.EventMediaUpdated, events.Payload{
			"asset_id":  asset.ID,
			"tenant_id": tenantID,
		})
	}

	writeJSON(w, http.StatusCreated, mediaAssetResponse{
		ID:          asset.ID,
		TenantID:    asset.TenantID,
		Title:       asset.Title,
		ContentType: asset.ContentType,
		SizeBytes:   asset.SizeBytes,
		DurationSec: asset.DurationSec,
		URL:         a.media.URL(asset),
		CreatedAt:   asset.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	})
}

// sniffContentType reads the leading bytes to detect a type, then rewinds.
func sniffContentType(file io.ReadSeeker) string {
	buf := make([]byte, 512)
	n, _ := file.Read(buf)
	_, _ = file.Seek(0, io.SeekStart)
	return http.DetectContentType(buf[:n])
}

func (a *API) handleMediaGet(w http.ResponseWriter, r *http.Request) {
	tenantID := a.tenantScope(r)
	assetID := chi.URLParam(r, "assetID")

	asset, err := a.media.Get(r.Context(), tenantID, assetID)
	if errors.Is(err, media.ErrAssetNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	writeJSON(w, http.StatusOK, mediaAssetResponse{
		ID:          asset.ID,
		TenantID:    asset.TenantID,
		Title:       asset.Title,
		ContentType: asset.ContentType,
		SizeBytes:   asset.SizeBytes,
		DurationSec: asset.DurationSec,
		URL:         a.media.URL(asset),
		CreatedAt:   asset.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	})
}

func (a *API) handleMediaContent(w http.ResponseWriter, r *http.Request) {
	tenantID := a.tenantScope(r)
	assetID := chi.URLParam(r, "assetID")

	rc, asset, err := a.media.Open(r.Context(), tenantID, assetID)
	if errors.Is(err, media.ErrAssetNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if err != nil {
		a.logger.Error().Err(err).Str("asset_id", assetID).Msg("open media failed")
		writeError(w, http.StatusInternalServerError, "storage_error")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", asset.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(asset.SizeBytes, 10))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	if _, err := io.Copy(w, rc); err != nil {
		a.logger.Debug().Err(err).Str("asset_id", assetID).Msg("media stream interrupted")
	}
}

func (a *API) handleMediaDelete(w http.ResponseWriter, r *http.Request) {
	tenantID := a.tenantScope(r)
	assetID := chi.URLParam(r, "assetID")

	err := a.media.Delete(r.Context(), tenantID, assetID)
	if errors.Is(err, media.ErrAssetNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	if errors.Is(err, media.ErrAssetInUse) {
		writeError(w, http.StatusConflict, "asset_in_use")
		return
	}
	if err != nil {
		a.logger.Error().Err(err).Str("asset_id", assetID).Msg("delete media failed")
		writeError(w, http.StatusInternalServerError, "delete_failed")
		return
	}

	a.catalog.InvalidateForWrite(r.Context(), tenantID)
	a.publishAuditEvent(r, events.EventAuditMediaDelete, events.Payload{
		"resource_type": "media_asset",
		"resource_id":   assetID,
	})
	if a.bus != nil {
		a.bus.Publish(events.EventMediaDeleted, events.Payload{
			"asset_id":  assetID,
			"tenant_id": tenantID,
		})
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
