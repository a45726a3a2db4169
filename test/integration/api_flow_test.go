// Package integration exercises the full HTTP stack: router, auth middleware,
// handlers, catalog, and resolver against a real (in-memory) database.
package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/friendsincode/heimdall_signage/internal/analytics"
	"github.com/friendsincode/heimdall_signage/internal/api"
	"github.com/friendsincode/heimdall_signage/internal/audit"
	"github.com/friendsincode/heimdall_signage/internal/catalog"
	"github.com/friendsincode/heimdall_signage/internal/config"
	"github.com/friendsincode/heimdall_signage/internal/db"
	"github.com/friendsincode/heimdall_signage/internal/events"
	"github.com/friendsincode/heimdall_signage/internal/models"
	"github.com/friendsincode/heimdall_signage/internal/schedule"
)

// fixedNow pins resolution to a Wednesday mid-morning.
var fixedNow = time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) (*httptest.Server, *gorm.DB) {
	t.Helper()

	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.Migrate(database); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	logger := zerolog.Nop()
	cfg := &config.Config{
		JWTSigningKey:      "integration-test-secret",
		DeviceOfflineAfter: 5 * time.Minute,
		MaxUploadSizeMB:    8,
	}

	provider, err := schedule.NewProviderAt("UTC", func() time.Time { return fixedNow })
	if err != nil {
		t.Fatalf("provider: %v", err)
	}

	bus := events.NewBus()
	a := api.New(
		database,
		cfg,
		catalog.New(database, nil, logger),
		schedule.NewResolver(logger),
		provider,
		nil,
		analytics.NewService(database, logger),
		audit.NewService(database, bus, logger),
		nil,
		bus,
		logger,
	)

	router := chi.NewRouter()
	a.Routes(router)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server, database
}

func seedAdmin(t *testing.T, database *gorm.DB, email, password string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := database.Create(&models.User{
		ID:       uuid.NewString(),
		Email:    email,
		Password: string(hash),
		Role:     models.RoleAdmin,
	}).Error; err != nil {
		t.Fatalf("seed admin: %v", err)
	}
}

func doJSON(t *testing.T, client *http.Client, method, url, token string, body any, out any) int {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, url, err)
		}
	}
	return resp.StatusCode
}

// TestDeviceProvisioningAndPollFlow walks the operator path end to end:
// login, create tenant, register device, create and assign a playlist, then
// poll as the device using only the minted API key.
func TestDeviceProvisioningAndPollFlow(t *testing.T) {
	server, database := newTestServer(t)
	client := server.Client()
	base := server.URL + "/api/v1"

	seedAdmin(t, database, "ops@example.com", "integration-pass")

	// Login.
	var login struct {
		Token string `json:"token"`
	}
	status := doJSON(t, client, http.MethodPost, base+"/auth/login", "", map[string]string{
		"email":    "ops@example.com",
		"password": "integration-pass",
	}, &login)
	if status != http.StatusOK || login.Token == "" {
		t.Fatalf("login: status=%d token=%q", status, login.Token)
	}

	// Create tenant.
	var tenant struct {
		ID string
	}
	status = doJSON(t, client, http.MethodPost, base+"/tenants", login.Token, map[string]string{
		"name": "Acme Retail",
	}, &tenant)
	if status != http.StatusCreated || tenant.ID == "" {
		t.Fatalf("create tenant: status=%d id=%q", status, tenant.ID)
	}

	// Register device; the plaintext API key appears once.
	var registered struct {
		Device struct {
			ID           string
			SerialNumber string
		} `json:"device"`
		APIKey string `json:"api_key"`
	}
	status = doJSON(t, client, http.MethodPost, base+"/fleet", login.Token, map[string]string{
		"tenant_id":     tenant.ID,
		"serial_number": "KIOSK-9000",
		"name":          "Lobby kiosk",
	}, &registered)
	if status != http.StatusCreated {
		t.Fatalf("register device: status=%d", status)
	}
	if registered.APIKey == "" {
		t.Fatal("register device: missing api_key")
	}

	// Create a playlist active Wednesdays 09:00-17:00.
	var playlist struct {
		ID string
	}
	status = doJSON(t, client, http.MethodPost, base+"/playlists", login.Token, map[string]any{
		"tenant_id": tenant.ID,
		"name":      "Weekday promos",
		"schedule": map[string]any{
			"schedule_mode": "timed",
			"days_of_week":  []string{"wednesday"},
			"start_time":    "09:00:00",
			"end_time":      "17:00:00",
		},
	}, &playlist)
	if status != http.StatusCreated || playlist.ID == "" {
		t.Fatalf("create playlist: status=%d id=%q", status, playlist.ID)
	}

	// Assign the playlist to the device.
	status = doJSON(t, client, http.MethodPut, fmt.Sprintf("%s/fleet/%s/playlists", base, registered.Device.ID), login.Token, map[string]any{
		"playlist_ids": []string{playlist.ID},
	}, nil)
	if status != http.StatusOK {
		t.Fatalf("assign playlists: status=%d", status)
	}

	// Poll as the device with its API key only.
	req, err := http.NewRequest(http.MethodGet, base+"/devices/KIOSK-9000/playlists", nil)
	if err != nil {
		t.Fatalf("poll request: %v", err)
	}
	req.Header.Set("X-API-Key", registered.APIKey)

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("poll: status=%d", resp.StatusCode)
	}

	var poll struct {
		ActivePlaylists []struct {
			ID string `json:"id"`
		} `json:"activePlaylists"`
		CurrentTime struct {
			Weekday string `json:"weekday"`
		} `json:"currentTime"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&poll); err != nil {
		t.Fatalf("decode poll: %v", err)
	}

	if len(poll.ActivePlaylists) != 1 || poll.ActivePlaylists[0].ID != playlist.ID {
		t.Fatalf("expected assigned playlist active, got %+v", poll.ActivePlaylists)
	}
	if poll.CurrentTime.Weekday != "wednesday" {
		t.Fatalf("weekday = %q, want wednesday", poll.CurrentTime.Weekday)
	}
}

// TestPollRejectsAdminTokenOnDeviceSurface verifies a Bearer admin token is
// not accepted where device credentials are required.
func TestPollRejectsAdminTokenOnDeviceSurface(t *testing.T) {
	server, database := newTestServer(t)
	client := server.Client()
	base := server.URL + "/api/v1"

	seedAdmin(t, database, "ops@example.com", "integration-pass")

	var login struct {
		Token string `json:"token"`
	}
	doJSON(t, client, http.MethodPost, base+"/auth/login", "", map[string]string{
		"email":    "ops@example.com",
		"password": "integration-pass",
	}, &login)

	req, err := http.NewRequest(http.MethodGet, base+"/devices/KIOSK-1/playlists", nil)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+login.Token)

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}
