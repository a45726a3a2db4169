package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/friendsincode/heimdall_signage/internal/events"
	"github.com/friendsincode/heimdall_signage/internal/models"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.WebhookTarget{}, &models.WebhookLog{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewService(db, events.NewBus(), zerolog.Nop()), db
}

type capturedDelivery struct {
	event     string
	signature string
	body      []byte
}

func TestDispatchDeliversToMatchingTenantOnly(t *testing.T) {
	svc, db := newTestService(t)

	deliveries := make(chan capturedDelivery, 4)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		deliveries <- capturedDelivery{
			event:     r.Header.Get("X-Heimdall-Event"),
			signature: r.Header.Get("X-Heimdall-Signature"),
			body:      body,
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	targets := []models.WebhookTarget{
		{ID: "wh-1", TenantID: "t-1", Name: "ops", URL: server.URL, Secret: "s3cret", Active: true},
		{ID: "wh-2", TenantID: "t-other", Name: "other", URL: server.URL, Active: true},
		{ID: "wh-3", TenantID: "t-1", Name: "paused", URL: server.URL, Active: false},
	}
	for i := range targets {
		if err := db.Create(&targets[i]).Error; err != nil {
			t.Fatalf("seed target: %v", err)
		}
	}

	svc.dispatch(context.Background(), events.EventDeviceOffline, events.Payload{
		"tenant_id": "t-1",
		"device_id": "d-1",
	})

	select {
	case got := <-deliveries:
		if got.event != string(events.EventDeviceOffline) {
			t.Errorf("event header = %q, want %q", got.event, events.EventDeviceOffline)
		}
		mac := hmac.New(sha256.New, []byte("s3cret"))
		mac.Write(got.body)
		want := "sha256=" + hex.EncodeToString(mac.Sum(nil))
		if got.signature != want {
			t.Errorf("signature = %q, want %q", got.signature, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no delivery received")
	}

	// The foreign-tenant and inactive targets stay silent.
	select {
	case extra := <-deliveries:
		t.Fatalf("unexpected extra delivery: %+v", extra)
	case <-time.After(200 * time.Millisecond):
	}

	// Delivery attempt is recorded.
	deadline := time.Now().Add(2 * time.Second)
	for {
		var logs []models.WebhookLog
		if err := db.Find(&logs).Error; err != nil {
			t.Fatalf("query logs: %v", err)
		}
		if len(logs) == 1 {
			if logs[0].TargetID != "wh-1" || logs[0].StatusCode != http.StatusNoContent {
				t.Fatalf("unexpected log row: %+v", logs[0])
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected 1 delivery log, got %d", len(logs))
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestTargetHandlesEventFiltering(t *testing.T) {
	cases := []struct {
		name      string
		events    string
		eventType string
		want      bool
	}{
		{"empty subscribes to all", "", "device.offline", true},
		{"exact match", "device.offline", "device.offline", true},
		{"csv with spaces", "device.online, device.offline", "device.offline", true},
		{"no match", "device.online", "device.offline", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			target := models.WebhookTarget{Events: tc.events}
			if got := targetHandlesEvent(target, tc.eventType); got != tc.want {
				t.Errorf("targetHandlesEvent(%q, %q) = %v, want %v", tc.events, tc.eventType, got, tc.want)
			}
		})
	}
}

func TestTestDeliveryReportsEndpointFailure(t *testing.T) {
	svc, _ := newTestService(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	target := &models.WebhookTarget{ID: "wh-1", TenantID: "t-1", URL: server.URL}
	if err := svc.Test(context.Background(), target); err == nil {
		t.Fatal("expected error for rejecting endpoint")
	}
}
