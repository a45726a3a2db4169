package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/friendsincode/heimdall_signage/internal/analytics"
	"github.com/friendsincode/heimdall_signage/internal/auth"
	"github.com/friendsincode/heimdall_signage/internal/models"
)

func TestZoneEventsIngestAndCount(t *testing.T) {
	a, db := newTestAPI(t, wednesdayMorning)
	a.analytics = analytics.NewService(db, zerolog.Nop())
	seedDevice(t, db, "t1", "d1", "SN-100")

	if err := db.Create(&models.CameraZone{
		ID: "z1", TenantID: "t1", DeviceID: "d1", Name: "entrance",
	}).Error; err != nil {
		t.Fatalf("seed zone: %v", err)
	}

	body, _ := json.Marshal(map[string]any{
		"observations": []map[string]any{
			{"zone_id": "z1", "person_ident": "p-1", "observed_at": wednesdayMorning.Add(-time.Minute)},
			{"zone_id": "z1", "person_ident": "p-1", "observed_at": wednesdayMorning.Add(-30 * time.Second)},
			{"zone_id": "z1", "person_ident": "p-2", "observed_at": wednesdayMorning.Add(-10 * time.Second)},
		},
	})
	req := httptest.NewRequest("POST", "/api/v1/devices/SN-100/zone-events", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("serialNumber", "SN-100")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
	req = req.WithContext(auth.WithClaims(req.Context(), &auth.Claims{DeviceID: "d1"}))
	rr := httptest.NewRecorder()

	a.handleZoneEventsIngest(rr, req)
	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var ingest map[string]int
	if err := json.NewDecoder(rr.Body).Decode(&ingest); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ingest["accepted"] != 3 {
		t.Fatalf("expected 3 accepted sightings, got %d", ingest["accepted"])
	}

	// Three sightings from two distinct people.
	crr, creq := newAdminRequest(t, "GET",
		"/api/v1/analytics/zones/z1/counts?from="+
			wednesdayMorning.Add(-time.Hour).Format(time.RFC3339)+
			"&to="+wednesdayMorning.Format(time.RFC3339), nil)
	creq = withURLParam(creq, "zoneID", "z1")
	a.handleZoneCounts(crr, creq)
	if crr.Code != 200 {
		t.Fatalf("expected 200, got %d body=%s", crr.Code, crr.Body.String())
	}
	var count models.ZoneCount
	if err := json.NewDecoder(crr.Body).Decode(&count); err != nil {
		t.Fatalf("decode count: %v", err)
	}
	if count.UniquePeople != 2 {
		t.Fatalf("expected 2 unique people, got %d", count.UniquePeople)
	}
}

func TestZoneCountsRejectInvalidRange(t *testing.T) {
	a, db := newTestAPI(t, wednesdayMorning)
	a.analytics = analytics.NewService(db, zerolog.Nop())

	rr, req := newAdminRequest(t, "GET", "/api/v1/analytics/zones/z1/counts?from=bogus&to=also-bogus", nil)
	req = withURLParam(req, "zoneID", "z1")
	a.handleZoneCounts(rr, req)
	if rr.Code != 400 {
		t.Fatalf("expected 400 for invalid range, got %d", rr.Code)
	}
}

func TestZoneCreateRequiresExistingDevice(t *testing.T) {
	a, db := newTestAPI(t, wednesdayMorning)
	a.analytics = analytics.NewService(db, zerolog.Nop())

	rr, req := newAdminRequest(t, "POST", "/api/v1/fleet/ghost/zones", map[string]string{"name": "door"})
	req = withURLParam(req, "deviceID", "ghost")
	a.handleZoneCreate(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown device, got %d", rr.Code)
	}
}
