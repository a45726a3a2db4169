/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package webhooks delivers fleet events to tenant-configured HTTP endpoints.
package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/heimdall_signage/internal/events"
	"github.com/friendsincode/heimdall_signage/internal/models"
	"github.com/friendsincode/heimdall_signage/internal/telemetry"
)

// Payload is the body posted to webhook endpoints.
type Payload struct {
	Event     string         `json:"event"`
	Timestamp time.Time      `json:"timestamp"`
	TenantID  string         `json:"tenant_id,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// Service handles webhook delivery.
type Service struct {
	db     *gorm.DB
	bus    events.Broker
	logger zerolog.Logger
	client *http.Client
}

// NewService creates a new webhook service.
func NewService(db *gorm.DB, bus events.Broker, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		bus:    bus,
		logger: logger.With().Str("component", "webhooks").Logger(),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Start listens for fleet events and fans them out to active targets. Cache
// invalidation and audit events stay internal.
func (s *Service) Start(ctx context.Context) {
	registered := s.bus.Subscribe(events.EventDeviceRegistered)
	online := s.bus.Subscribe(events.EventDeviceOnline)
	offline := s.bus.Subscribe(events.EventDeviceOffline)

	defer func() {
		s.bus.Unsubscribe(events.EventDeviceRegistered, registered)
		s.bus.Unsubscribe(events.EventDeviceOnline, online)
		s.bus.Unsubscribe(events.EventDeviceOffline, offline)
	}()

	s.logger.Info().Msg("webhook service started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("webhook service stopping")
			return

		case payload := <-registered:
			s.dispatch(ctx, events.EventDeviceRegistered, payload)

		case payload := <-online:
			s.dispatch(ctx, events.EventDeviceOnline, payload)

		case payload := <-offline:
			s.dispatch(ctx, events.EventDeviceOffline, payload)
		}
	}
}

// dispatch finds targets subscribed to the event and delivers in parallel.
func (s *Service) dispatch(ctx context.Context, eventType events.EventType, data events.Payload) {
	tenantID, _ := data["tenant_id"].(string)

	query := s.db.WithContext(ctx).Where("active = ?", true)
	if tenantID != "" {
		query = query.Where("tenant_id = ?", tenantID)
	}

	var targets []models.WebhookTarget
	if err := query.Find(&targets).Error; err != nil {
		s.logger.Error().Err(err).Str("event", string(eventType)).Msg("failed to fetch webhook targets")
		return
	}

	payload := Payload{
		Event:     string(eventType),
		Timestamp: time.Now().UTC(),
		TenantID:  tenantID,
		Data:      data,
	}

	for _, target := range targets {
		if !targetHandlesEvent(target, string(eventType)) {
			continue
		}
		go s.send(ctx, target, payload)
	}
}

func targetHandlesEvent(target models.WebhookTarget, eventType string) bool {
	if target.Events == "" {
		return true
	}
	for _, e := range strings.Split(target.Events, ",") {
		if strings.TrimSpace(e) == eventType {
			return true
		}
	}
	return false
}

// send delivers a single webhook request and records the attempt.
func (s *Service) send(ctx context.Context, target models.WebhookTarget, payload Payload) {
	body, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error().Err(err).Str("webhook", target.ID).Msg("failed to marshal webhook payload")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.URL, bytes.NewReader(body))
	if err != nil {
		s.logger.Error().Err(err).Str("webhook", target.ID).Msg("failed to create webhook request")
		s.logDelivery(target, payload.Event, http.StatusInternalServerError, err.Error())
		return
	}
	s.setHeaders(req, target, payload.Event, body)

	resp, err := s.client.Do(req)
	if err != nil {
		telemetry.WebhookDeliveriesTotal.WithLabelValues("error").Inc()
		s.logger.Warn().Err(err).Str("webhook", target.ID).Str("url", target.URL).Msg("webhook delivery failed")
		s.logDelivery(target, payload.Event, 0, err.Error())
		return
	}
	defer resp.Body.Close()

	s.logDelivery(target, payload.Event, resp.StatusCode, "")

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		telemetry.WebhookDeliveriesTotal.WithLabelValues("delivered").Inc()
		s.logger.Debug().Str("webhook", target.ID).Str("event", payload.Event).Int("status", resp.StatusCode).Msg("webhook delivered")
	} else {
		telemetry.WebhookDeliveriesTotal.WithLabelValues("rejected").Inc()
		s.logger.Warn().Str("webhook", target.ID).Str("event", payload.Event).Int("status", resp.StatusCode).Msg("webhook returned error status")
	}
}

func (s *Service) setHeaders(req *http.Request, target models.WebhookTarget, eventType string, body []byte) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Heimdall-Signage-Webhook/1.0")
	req.Header.Set("X-Heimdall-Event", eventType)
	req.Header.Set("X-Heimdall-Timestamp", fmt.Sprintf("%d", time.Now().Unix()))

	if target.Secret != "" {
		req.Header.Set("X-Heimdall-Signature", signPayload(body, target.Secret))
	}
}

// signPayload creates an HMAC-SHA256 signature.
func signPayload(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return "sha256=" + hex.EncodeToString(h.Sum(nil))
}

// logDelivery records a delivery attempt.
func (s *Service) logDelivery(target models.WebhookTarget, eventType string, statusCode int, errorMsg string) {
	log := &models.WebhookLog{
		ID:         uuid.NewString(),
		TargetID:   target.ID,
		Event:      eventType,
		StatusCode: statusCode,
		Error:      errorMsg,
	}

	if err := s.db.Create(log).Error; err != nil {
		s.logger.Error().Err(err).Msg("failed to log webhook delivery")
	}
}

// Test sends a synthetic payload to a target so operators can verify the
// endpoint before relying on it.
func (s *Service) Test(ctx context.Context, target *models.WebhookTarget) error {
	payload := Payload{
		Event:     "test",
		Timestamp: time.Now().UTC(),
		TenantID:  target.TenantID,
		Data: map[string]any{
			"message": "Heimdall Signage webhook test",
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	s.setHeaders(req, *target, "test", body)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}
