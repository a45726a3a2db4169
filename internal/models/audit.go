/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// AuditAction defines the type of audited action.
type AuditAction string

// Audit action constants for all sensitive operations.
const (
	AuditActionUserRoleChange     AuditAction = "user.role_change"
	AuditActionUserDelete         AuditAction = "user.delete"
	AuditActionAPIKeyCreate       AuditAction = "apikey.create"
	AuditActionAPIKeyRevoke       AuditAction = "apikey.revoke"
	AuditActionDeviceRegister     AuditAction = "device.register"
	AuditActionDeviceUpdate       AuditAction = "device.update"
	AuditActionDeviceDelete       AuditAction = "device.delete"
	AuditActionDeviceAssign       AuditAction = "device.assign_playlist"
	AuditActionPlaylistCreate     AuditAction = "playlist.create"
	AuditActionPlaylistUpdate     AuditAction = "playlist.update"
	AuditActionPlaylistDelete     AuditAction = "playlist.delete"
	AuditActionAnnouncementCreate AuditAction = "announcement.create"
	AuditActionAnnouncementUpdate AuditAction = "announcement.update"
	AuditActionAnnouncementDelete AuditAction = "announcement.delete"
	AuditActionMediaUpload        AuditAction = "media.upload"
	AuditActionMediaDelete        AuditAction = "media.delete"
	AuditActionTenantCreate       AuditAction = "tenant.create"
	AuditActionTenantUpdate       AuditAction = "tenant.update"
)

// AuditLog records sensitive operations for security and compliance.
type AuditLog struct {
	ID           string         `gorm:"type:uuid;primaryKey"`
	Timestamp    time.Time      `gorm:"index:idx_audit_timestamp;not null"`
	UserID       *string        `gorm:"type:uuid;index:idx_audit_user"`   // NULL for system actions
	UserEmail    string         `gorm:"type:varchar(255)"`                // Denormalized for readability
	TenantID     *string        `gorm:"type:uuid;index:idx_audit_tenant"` // NULL if platform-wide
	Action       AuditAction    `gorm:"type:varchar(64);index:idx_audit_action;not null"`
	ResourceType string         `gorm:"type:varchar(64)"` // "device", "playlist", "announcement", ...
	ResourceID   string         `gorm:"type:uuid"`
	Details      map[string]any `gorm:"type:jsonb;serializer:json"`
	IPAddress    string         `gorm:"type:varchar(45)"`
	UserAgent    string         `gorm:"type:varchar(512)"`
	CreatedAt    time.Time
}

// TableName returns the table name for GORM.
func (AuditLog) TableName() string {
	return "audit_logs"
}
