/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// CameraZone is a named detection region watched by a device camera.
type CameraZone struct {
	ID        string `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID  string `gorm:"type:uuid;index;not null" json:"tenant_id"`
	DeviceID  string `gorm:"type:uuid;index;not null" json:"device_id"`
	Name      string `gorm:"not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the table name for GORM.
func (CameraZone) TableName() string {
	return "camera_zones"
}

// ZoneEvent is one person sighting reported by a device camera. PersonIdent
// is the tracker's re-identification label; counting unique idents per zone
// over a window yields the people count.
type ZoneEvent struct {
	ID          string    `gorm:"type:uuid;primaryKey" json:"id"`
	ZoneID      string    `gorm:"type:uuid;index:idx_zone_events_zone;not null" json:"zone_id"`
	DeviceID    string    `gorm:"type:uuid;index" json:"device_id"`
	PersonIdent string    `gorm:"type:varchar(64);not null" json:"person_ident"`
	ObservedAt  time.Time `gorm:"index:idx_zone_events_observed;not null" json:"observed_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName returns the table name for GORM.
func (ZoneEvent) TableName() string {
	return "zone_events"
}

// ZoneCount is an aggregation result row, not a persisted table.
type ZoneCount struct {
	ZoneID      string    `json:"zone_id"`
	UniquePeople int64    `json:"unique_people"`
	From        time.Time `json:"from"`
	To          time.Time `json:"to"`
}
