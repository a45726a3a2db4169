/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"time"
)

// RoleName enumerates the RBAC roles.
type RoleName string

const (
	RoleAdmin   RoleName = "admin"
	RoleManager RoleName = "manager"
	RoleViewer  RoleName = "viewer"
)

// User represents an authenticated admin account.
type User struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	Email     string `gorm:"uniqueIndex"`
	Password  string
	Role      RoleName `gorm:"type:varchar(16)"`
	TenantID  string   `gorm:"type:uuid;index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Tenant is an organization owning devices and content.
type Tenant struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	Name        string `gorm:"uniqueIndex"`
	Description string `gorm:"type:text"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DeviceStatus tracks a device's lifecycle state.
type DeviceStatus string

const (
	DeviceStatusPending  DeviceStatus = "pending"
	DeviceStatusActive   DeviceStatus = "active"
	DeviceStatusDisabled DeviceStatus = "disabled"
)

// Device is a kiosk, robot, or display unit in the fleet. Devices identify
// themselves to poll endpoints by serial number plus API key.
type Device struct {
	ID           string `gorm:"type:uuid;primaryKey"`
	TenantID     string `gorm:"type:uuid;index"`
	SerialNumber string `gorm:"uniqueIndex;type:varchar(64)"`
	Name         string `gorm:"index"`
	Location     string
	Model        string         `gorm:"type:varchar(64)"`
	Status       DeviceStatus   `gorm:"type:varchar(16);default:'pending'"`
	Metadata     map[string]any `gorm:"type:jsonb;serializer:json"`
	LastSeenAt   *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Touch records a successful poll from the device.
func (d *Device) Touch(now time.Time) {
	d.LastSeenAt = &now
}

// MediaAsset is an uploaded media file (image, video, audio) referenced by
// playlist entries. The bytes live in object or filesystem storage under
// StorageKey; only metadata is kept here.
type MediaAsset struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	TenantID    string `gorm:"type:uuid;index"`
	Title       string `gorm:"index"`
	ContentType string `gorm:"type:varchar(64)"`
	SizeBytes   int64
	StorageKey  string
	DurationSec int // playback seconds for video/audio, display seconds for stills
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ScheduleFields embeds a schedule definition into content rows. Field
// semantics follow internal/schedule.Definition; rows are converted before
// resolution.
type ScheduleFields struct {
	ScheduleMode    string `gorm:"type:varchar(16);default:'timed'" json:"schedule_mode"`
	StartDate       string `gorm:"type:varchar(10)" json:"start_date,omitempty"`
	EndDate         string `gorm:"type:varchar(10)" json:"end_date,omitempty"`
	DaysOfWeek      []string `gorm:"type:jsonb;serializer:json" json:"days_of_week,omitempty"`
	StartTime       string `gorm:"type:varchar(8)" json:"start_time,omitempty"`
	EndTime         string `gorm:"type:varchar(8)" json:"end_time,omitempty"`
	IntervalMinutes int    `json:"interval_minutes,omitempty"`
}

// Playlist is an ordered set of media assets with a playback schedule.
type Playlist struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	TenantID    string `gorm:"type:uuid;index"`
	Name        string `gorm:"index"`
	Description string `gorm:"type:text"`
	Active      bool   `gorm:"not null;default:true"`
	ScheduleFields

	Items   []PlaylistItem `gorm:"foreignKey:PlaylistID"`
	Devices []Device       `gorm:"many2many:device_playlists"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Version is the change fingerprint devices compare between polls. It is
// derived from last-modified time so it increases monotonically; a content
// hash would not survive the existing device polling semantics.
func (p *Playlist) Version() int64 {
	return p.UpdatedAt.Unix()
}

// PlaylistItem is one entry in a playlist.
type PlaylistItem struct {
	ID           string `gorm:"type:uuid;primaryKey"`
	PlaylistID   string `gorm:"type:uuid;index"`
	MediaAssetID string `gorm:"type:uuid;index"`
	Position     int    `gorm:"not null"`
	DurationSec  int    // override; 0 means use the asset's own duration

	MediaAsset *MediaAsset `gorm:"foreignKey:MediaAssetID"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Announcement is a scheduled message (text or audio) pushed to devices,
// either across a window (timed) or repeatedly (interval).
type Announcement struct {
	ID       string `gorm:"type:uuid;primaryKey"`
	TenantID string `gorm:"type:uuid;index"`
	Name     string `gorm:"index"`
	Text     string `gorm:"type:text"`
	AudioAssetID *string `gorm:"type:uuid"`
	Active   bool    `gorm:"not null;default:true"`
	ScheduleFields

	AudioAsset *MediaAsset `gorm:"foreignKey:AudioAssetID"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Version is the announcement's change fingerprint. See Playlist.Version.
func (a *Announcement) Version() int64 {
	return a.UpdatedAt.Unix()
}

// DevicePlaylist is the assignment join table between devices and playlists.
type DevicePlaylist struct {
	DeviceID   string `gorm:"type:uuid;primaryKey"`
	PlaylistID string `gorm:"type:uuid;primaryKey"`
}
