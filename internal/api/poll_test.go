package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/friendsincode/heimdall_signage/internal/auth"
	"github.com/friendsincode/heimdall_signage/internal/catalog"
	"github.com/friendsincode/heimdall_signage/internal/events"
	"github.com/friendsincode/heimdall_signage/internal/models"
	"github.com/friendsincode/heimdall_signage/internal/schedule"
)

// wednesdayMorning is a fixed clock for deterministic resolution.
var wednesdayMorning = time.Date(2026, 1, 7, 10, 30, 0, 0, time.UTC)

func newTestAPI(t *testing.T, now time.Time) (*API, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Tenant{}, &models.User{}, &models.Device{}, &models.APIKey{},
		&models.MediaAsset{}, &models.Playlist{}, &models.PlaylistItem{},
		&models.Announcement{}, &models.DevicePlaylist{}, &models.AuditLog{},
		&models.CameraZone{}, &models.ZoneEvent{},
		&models.WebhookTarget{}, &models.WebhookLog{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	logger := zerolog.Nop()
	provider, err := schedule.NewProviderAt("UTC", func() time.Time { return now })
	if err != nil {
		t.Fatalf("provider: %v", err)
	}

	a := &API{
		db:             db,
		jwtSecret:      []byte("test-secret"),
		catalog:        catalog.New(db, nil, logger),
		resolver:       schedule.NewResolver(logger),
		timeProvider:   provider,
		bus:            events.NewBus(),
		logger:         logger,
		maxUploadBytes: 8 << 20,
	}
	return a, db
}

func seedDevice(t *testing.T, db *gorm.DB, tenantID, deviceID, serial string) {
	t.Helper()
	if err := db.Create(&models.Tenant{ID: tenantID, Name: "tenant-" + tenantID}).Error; err != nil {
		t.Fatalf("seed tenant: %v", err)
	}
	if err := db.Create(&models.Device{
		ID:           deviceID,
		TenantID:     tenantID,
		SerialNumber: serial,
		Name:         "lobby kiosk",
		Status:       models.DeviceStatusActive,
	}).Error; err != nil {
		t.Fatalf("seed device: %v", err)
	}
}

// newDeviceRequest builds a poll request carrying a device credential and the
// chi route context the handlers read the serial number from.
func newDeviceRequest(t *testing.T, serial, claimDeviceID, path string) (*httptest.ResponseRecorder, *http.Request) {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("serialNumber", serial)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
	req = req.WithContext(auth.WithClaims(req.Context(), &auth.Claims{DeviceID: claimDeviceID}))
	return httptest.NewRecorder(), req
}

func TestPollAnnouncementsActiveWindow(t *testing.T) {
	a, db := newTestAPI(t, wednesdayMorning)
	seedDevice(t, db, "t1", "d1", "SN-100")

	if err := db.Create(&models.Announcement{
		ID:       "ann-1",
		TenantID: "t1",
		Name:     "Morning hours",
		Text:     "Open until 5pm",
		Active:   true,
		ScheduleFields: models.ScheduleFields{
			ScheduleMode: "timed",
			DaysOfWeek:   []string{"wednesday"},
			StartTime:    "09:00",
			EndTime:      "17:00",
		},
	}).Error; err != nil {
		t.Fatalf("seed announcement: %v", err)
	}

	rr, req := newDeviceRequest(t, "SN-100", "d1", "/api/v1/devices/SN-100/announcements/active")
	a.handlePollAnnouncements(rr, req)

	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	var resp announcementsResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.ActiveAnnouncements) != 1 || resp.ActiveAnnouncements[0].ID != "ann-1" {
		t.Fatalf("expected one active announcement, got %+v", resp.ActiveAnnouncements)
	}
	if len(resp.ScheduledHourlyAnnouncements) != 0 {
		t.Fatalf("expected no interval triggers, got %+v", resp.ScheduledHourlyAnnouncements)
	}
	if resp.CurrentTime.Weekday != "wednesday" {
		t.Fatalf("expected lowercase weekday, got %q", resp.CurrentTime.Weekday)
	}
	if resp.CurrentTime.Timezone != "UTC" {
		t.Fatalf("expected UTC timezone, got %q", resp.CurrentTime.Timezone)
	}
}

func TestPollRejectsForeignDeviceCredential(t *testing.T) {
	a, db := newTestAPI(t, wednesdayMorning)
	seedDevice(t, db, "t1", "d1", "SN-100")

	rr, req := newDeviceRequest(t, "SN-100", "other-device", "/api/v1/devices/SN-100/full")
	a.handlePollFull(rr, req)

	if rr.Code != 403 {
		t.Fatalf("expected 403 for mismatched credential, got %d", rr.Code)
	}
}

func TestPollUnknownSerialNotFound(t *testing.T) {
	a, _ := newTestAPI(t, wednesdayMorning)

	rr, req := newDeviceRequest(t, "SN-MISSING", "d1", "/api/v1/devices/SN-MISSING/playlists")
	a.handlePollPlaylists(rr, req)

	if rr.Code != 404 {
		t.Fatalf("expected 404 for unknown serial, got %d", rr.Code)
	}
}

func TestPollFullSplitsPlaylistsFromAnnouncements(t *testing.T) {
	a, db := newTestAPI(t, wednesdayMorning)
	seedDevice(t, db, "t1", "d1", "SN-100")

	if err := db.Create(&models.Playlist{
		ID:       "pl-1",
		TenantID: "t1",
		Name:     "Lobby loop",
		Active:   true,
		ScheduleFields: models.ScheduleFields{
			ScheduleMode: "timed",
			StartTime:    "08:00",
			EndTime:      "18:00",
		},
	}).Error; err != nil {
		t.Fatalf("seed playlist: %v", err)
	}
	if err := db.Create(&models.DevicePlaylist{DeviceID: "d1", PlaylistID: "pl-1"}).Error; err != nil {
		t.Fatalf("assign playlist: %v", err)
	}
	if err := db.Create(&models.Announcement{
		ID:       "ann-1",
		TenantID: "t1",
		Name:     "Hourly chime",
		Text:     "ding",
		Active:   true,
		ScheduleFields: models.ScheduleFields{
			ScheduleMode:    "interval",
			StartTime:       "00:00",
			IntervalMinutes: 60,
		},
	}).Error; err != nil {
		t.Fatalf("seed announcement: %v", err)
	}

	rr, req := newDeviceRequest(t, "SN-100", "d1", "/api/v1/devices/SN-100/full")
	a.handlePollFull(rr, req)

	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	var resp fullResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.ActivePlaylists) != 1 || resp.ActivePlaylists[0].ID != "pl-1" {
		t.Fatalf("expected playlist in active list, got %+v", resp.ActivePlaylists)
	}
	if len(resp.ActiveAnnouncements) != 0 {
		t.Fatalf("interval announcement must not be active, got %+v", resp.ActiveAnnouncements)
	}
	if len(resp.ScheduledHourlyAnnouncements) != 1 {
		t.Fatalf("expected one interval trigger, got %+v", resp.ScheduledHourlyAnnouncements)
	}
	if got := resp.ScheduledHourlyAnnouncements[0].NextTrigger; got != "2026-01-07T11:00:00" {
		t.Fatalf("expected next trigger at 11:00, got %q", got)
	}
}

func TestPollUpdatesLastSeen(t *testing.T) {
	a, db := newTestAPI(t, wednesdayMorning)
	seedDevice(t, db, "t1", "d1", "SN-100")

	rr, req := newDeviceRequest(t, "SN-100", "d1", "/api/v1/devices/SN-100/playlists")
	a.handlePollPlaylists(rr, req)
	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	var device models.Device
	if err := db.First(&device, "id = ?", "d1").Error; err != nil {
		t.Fatalf("reload device: %v", err)
	}
	if device.LastSeenAt == nil {
		t.Fatal("expected last seen to be recorded")
	}
}
