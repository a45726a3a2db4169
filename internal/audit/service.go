/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/heimdall_signage/internal/events"
	"github.com/friendsincode/heimdall_signage/internal/models"
)

// Service handles audit logging by subscribing to events and storing audit entries.
type Service struct {
	db     *gorm.DB
	bus    events.Broker
	logger zerolog.Logger
}

// NewService creates a new audit service.
func NewService(db *gorm.DB, bus events.Broker, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		bus:    bus,
		logger: logger.With().Str("component", "audit").Logger(),
	}
}

// Start subscribes to audit events and records them until ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	s.logger.Info().Msg("audit service starting")

	subscriptions := []struct {
		event  events.EventType
		action models.AuditAction
	}{
		{events.EventAuditDeviceRegister, models.AuditActionDeviceRegister},
		{events.EventAuditDeviceDelete, models.AuditActionDeviceDelete},
		{events.EventAuditDeviceAssign, models.AuditActionDeviceAssign},
		{events.EventAuditPlaylistCreate, models.AuditActionPlaylistCreate},
		{events.EventAuditPlaylistUpdate, models.AuditActionPlaylistUpdate},
		{events.EventAuditPlaylistDelete, models.AuditActionPlaylistDelete},
		{events.EventAuditAnnouncementCreate, models.AuditActionAnnouncementCreate},
		{events.EventAuditAnnouncementUpdate, models.AuditActionAnnouncementUpdate},
		{events.EventAuditAnnouncementDelete, models.AuditActionAnnouncementDelete},
		{events.EventAuditMediaUpload, models.AuditActionMediaUpload},
		{events.EventAuditMediaDelete, models.AuditActionMediaDelete},
		{events.EventAuditAPIKeyCreate, models.AuditActionAPIKeyCreate},
		{events.EventAuditAPIKeyRevoke, models.AuditActionAPIKeyRevoke},
		{events.EventAuditTenantCreate, models.AuditActionTenantCreate},
	}

	type tagged struct {
		action  models.AuditAction
		payload events.Payload
	}
	merged := make(chan tagged, 64)

	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	for _, sc := range subscriptions {
		sub := s.bus.Subscribe(sc.event)
		eventType := sc.event
		action := sc.action
		go func() {
			defer s.bus.Unsubscribe(eventType, sub)
			for {
				select {
				case <-subCtx.Done():
					return
				case payload, ok := <-sub:
					if !ok {
						return
					}
					select {
					case merged <- tagged{action: action, payload: payload}:
					case <-subCtx.Done():
						return
					}
				}
			}
		}()
	}

	s.logger.Info().Int("event_types", len(subscriptions)).Msg("audit service started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("audit service stopping")
			return
		case entry := <-merged:
			s.logAuditEntry(ctx, entry.action, entry.payload)
		}
	}
}

// logAuditEntry creates an audit log entry from an event payload.
func (s *Service) logAuditEntry(ctx context.Context, action models.AuditAction, payload events.Payload) {
	entry := &models.AuditLog{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Action:    action,
		Details:   make(map[string]any),
		CreatedAt: time.Now(),
	}

	if userID, ok := payload["user_id"].(string); ok && userID != "" {
		entry.UserID = &userID
	}
	if userEmail, ok := payload["user_email"].(string); ok {
		entry.UserEmail = userEmail
	}
	if tenantID, ok := payload["tenant_id"].(string); ok && tenantID != "" {
		entry.TenantID = &tenantID
	}
	if resourceType, ok := payload["resource_type"].(string); ok {
		entry.ResourceType = resourceType
	}
	if resourceID, ok := payload["resource_id"].(string); ok {
		entry.ResourceID = resourceID
	}
	if ipAddress, ok := payload["ip_address"].(string); ok {
		entry.IPAddress = ipAddress
	}
	if userAgent, ok := payload["user_agent"].(string); ok {
		entry.UserAgent = userAgent
	}

	for k, v := range payload {
		switch k {
		case "user_id", "user_email", "tenant_id", "resource_type", "resource_id", "ip_address", "user_agent":
			// Already extracted
		default:
			entry.Details[k] = v
		}
	}

	if err := s.Log(ctx, entry); err != nil {
		s.logger.Error().Err(err).
			Str("action", string(action)).
			Msg("failed to log audit entry")
	}
}

// Log records an audit entry directly, bypassing the event bus.
func (s *Service) Log(ctx context.Context, entry *models.AuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if entry.Details == nil {
		entry.Details = make(map[string]any)
	}

	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return err
	}

	s.logger.Debug().
		Str("action", string(entry.Action)).
		Str("id", entry.ID).
		Msg("audit entry logged")

	return nil
}

// QueryFilters defines filters for querying audit logs.
type QueryFilters struct {
	UserID    *string
	TenantID  *string
	Action    *models.AuditAction
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int
	Offset    int
}

// Query retrieves audit logs with filters, newest first.
func (s *Service) Query(ctx context.Context, filters QueryFilters) ([]models.AuditLog, int64, error) {
	var logs []models.AuditLog
	var total int64

	query := s.db.WithContext(ctx).Model(&models.AuditLog{})

	if filters.UserID != nil {
		query = query.Where("user_id = ?", *filters.UserID)
	}
	if filters.TenantID != nil {
		query = query.Where("tenant_id = ?", *filters.TenantID)
	}
	if filters.Action != nil {
		query = query.Where("action = ?", *filters.Action)
	}
	if filters.StartTime != nil {
		query = query.Where("timestamp >= ?", *filters.StartTime)
	}
	if filters.EndTime != nil {
		query = query.Where("timestamp <= ?", *filters.EndTime)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filters.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	if err := query.Order("timestamp DESC").Limit(limit).Offset(filters.Offset).Find(&logs).Error; err != nil {
		return nil, 0, err
	}

	return logs, total, nil
}

// Cleanup removes audit entries older than the retention window.
func (s *Service) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	result := s.db.WithContext(ctx).Where("timestamp < ?", cutoff).Delete(&models.AuditLog{})
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected > 0 {
		s.logger.Info().Int64("removed", result.RowsAffected).Time("cutoff", cutoff).Msg("audit retention cleanup")
	}
	return result.RowsAffected, nil
}
