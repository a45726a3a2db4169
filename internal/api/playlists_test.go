package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/heimdall_signage/internal/auth"
	"github.com/friendsincode/heimdall_signage/internal/models"
)

func newAdminRequest(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, *http.Request) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(auth.WithClaims(req.Context(), &auth.Claims{
		UserID: "u-admin",
		Roles:  []string{string(models.RoleAdmin)},
	}))
	return httptest.NewRecorder(), req
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func TestPlaylistCreateRejectsUnschedulableDefinition(t *testing.T) {
	a, db := newTestAPI(t, wednesdayMorning)
	seedDevice(t, db, "t1", "d1", "SN-100")

	rr, req := newAdminRequest(t, "POST", "/api/v1/playlists", playlistRequest{
		TenantID: "t1",
		Name:     "Broken",
		Schedule: models.ScheduleFields{
			ScheduleMode: "interval", // interval without a positive period
		},
	})
	a.handlePlaylistsCreate(rr, req)

	if rr.Code != 400 {
		t.Fatalf("expected 400 for unschedulable definition, got %d body=%s", rr.Code, rr.Body.String())
	}

	var count int64
	db.Model(&models.Playlist{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected no playlist rows, got %d", count)
	}
}

func TestPlaylistCreateWithItems(t *testing.T) {
	a, db := newTestAPI(t, wednesdayMorning)
	seedDevice(t, db, "t1", "d1", "SN-100")

	if err := db.Create(&models.MediaAsset{
		ID: "asset-1", TenantID: "t1", Title: "promo", ContentType: "video/mp4",
	}).Error; err != nil {
		t.Fatalf("seed asset: %v", err)
	}

	rr, req := newAdminRequest(t, "POST", "/api/v1/playlists", playlistRequest{
		TenantID: "t1",
		Name:     "Lobby loop",
		Schedule: models.ScheduleFields{
			ScheduleMode: "timed",
			StartTime:    "08:00",
			EndTime:      "18:00",
		},
		Items: []playlistItemRequest{
			{MediaAssetID: "asset-1", DurationSec: 30},
		},
	})
	a.handlePlaylistsCreate(rr, req)

	if rr.Code != 201 {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}

	var playlist models.Playlist
	if err := db.Preload("Items").First(&playlist, "name = ?", "Lobby loop").Error; err != nil {
		t.Fatalf("reload playlist: %v", err)
	}
	if len(playlist.Items) != 1 || playlist.Items[0].MediaAssetID != "asset-1" {
		t.Fatalf("unexpected items: %+v", playlist.Items)
	}
	if playlist.Items[0].Position != 0 {
		t.Fatalf("expected position 0, got %d", playlist.Items[0].Position)
	}
}

func TestPlaylistUpdateReplacesItems(t *testing.T) {
	a, db := newTestAPI(t, wednesdayMorning)
	seedDevice(t, db, "t1", "d1", "SN-100")

	for _, id := range []string{"asset-1", "asset-2"} {
		if err := db.Create(&models.MediaAsset{
			ID: id, TenantID: "t1", Title: id, ContentType: "image/png",
		}).Error; err != nil {
			t.Fatalf("seed asset: %v", err)
		}
	}
	if err := db.Create(&models.Playlist{
		ID: "pl-1", TenantID: "t1", Name: "Loop", Active: true,
		ScheduleFields: models.ScheduleFields{ScheduleMode: "timed"},
	}).Error; err != nil {
		t.Fatalf("seed playlist: %v", err)
	}
	if err := db.Create(&models.PlaylistItem{
		ID: "item-1", PlaylistID: "pl-1", MediaAssetID: "asset-1", Position: 0,
	}).Error; err != nil {
		t.Fatalf("seed item: %v", err)
	}

	rr, req := newAdminRequest(t, "PUT", "/api/v1/playlists/pl-1", playlistRequest{
		Name: "Loop v2",
		Schedule: models.ScheduleFields{
			ScheduleMode: "timed",
			StartTime:    "09:00",
			EndTime:      "12:00",
		},
		Items: []playlistItemRequest{
			{MediaAssetID: "asset-2", DurationSec: 15},
		},
	})
	req = withURLParam(req, "playlistID", "pl-1")
	a.handlePlaylistsUpdate(rr, req)

	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	var items []models.PlaylistItem
	if err := db.Where("playlist_id = ?", "pl-1").Find(&items).Error; err != nil {
		t.Fatalf("reload items: %v", err)
	}
	if len(items) != 1 || items[0].MediaAssetID != "asset-2" {
		t.Fatalf("expected replaced item set, got %+v", items)
	}

	var playlist models.Playlist
	if err := db.First(&playlist, "id = ?", "pl-1").Error; err != nil {
		t.Fatalf("reload playlist: %v", err)
	}
	if playlist.Name != "Loop v2" || playlist.StartTime != "09:00" {
		t.Fatalf("update not applied: %+v", playlist)
	}
}

func TestPlaylistDeleteRemovesAssignments(t *testing.T) {
	a, db := newTestAPI(t, wednesdayMorning)
	seedDevice(t, db, "t1", "d1", "SN-100")

	if err := db.Create(&models.Playlist{
		ID: "pl-1", TenantID: "t1", Name: "Loop", Active: true,
		ScheduleFields: models.ScheduleFields{ScheduleMode: "timed"},
	}).Error; err != nil {
		t.Fatalf("seed playlist: %v", err)
	}
	if err := db.Create(&models.DevicePlaylist{DeviceID: "d1", PlaylistID: "pl-1"}).Error; err != nil {
		t.Fatalf("assign: %v", err)
	}

	rr, req := newAdminRequest(t, "DELETE", "/api/v1/playlists/pl-1", nil)
	req = withURLParam(req, "playlistID", "pl-1")
	a.handlePlaylistsDelete(rr, req)

	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	var assignments int64
	db.Model(&models.DevicePlaylist{}).Where("playlist_id = ?", "pl-1").Count(&assignments)
	if assignments != 0 {
		t.Fatalf("expected assignments removed, got %d", assignments)
	}
}
