/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import "sync"

// EventType enumerates event categories.
type EventType string

const (
	EventDeviceRegistered EventType = "device.registered"
	EventDeviceOnline     EventType = "device.online"
	EventDeviceOffline    EventType = "device.offline"
	EventDevicePoll       EventType = "device.poll"

	// Cache invalidation events
	EventPlaylistUpdated     EventType = "cache.playlist_updated"
	EventPlaylistDeleted     EventType = "cache.playlist_deleted"
	EventAnnouncementUpdated EventType = "cache.announcement_updated"
	EventAnnouncementDeleted EventType = "cache.announcement_deleted"
	EventDeviceUpdated       EventType = "cache.device_updated"
	EventDeviceDeleted       EventType = "cache.device_deleted"
	EventTenantUpdated       EventType = "cache.tenant_updated"
	EventMediaUpdated        EventType = "cache.media_updated"
	EventMediaDeleted        EventType = "cache.media_deleted"

	// Audit events (for operations that need explicit audit logging)
	EventAuditDeviceRegister     EventType = "audit.device.register"
	EventAuditDeviceDelete       EventType = "audit.device.delete"
	EventAuditDeviceAssign       EventType = "audit.device.assign_playlist"
	EventAuditPlaylistCreate     EventType = "audit.playlist.create"
	EventAuditPlaylistUpdate     EventType = "audit.playlist.update"
	EventAuditPlaylistDelete     EventType = "audit.playlist.delete"
	EventAuditAnnouncementCreate EventType = "audit.announcement.create"
	EventAuditAnnouncementUpdate EventType = "audit.announcement.update"
	EventAuditAnnouncementDelete EventType = "audit.announcement.delete"
	EventAuditMediaUpload        EventType = "audit.media.upload"
	EventAuditMediaDelete        EventType = "audit.media.delete"
	EventAuditAPIKeyCreate       EventType = "audit.apikey.create"
	EventAuditAPIKeyRevoke       EventType = "audit.apikey.revoke"
	EventAuditTenantCreate       EventType = "audit.tenant.create"
)

// Payload generic event payload.
type Payload map[string]any

// Subscriber receives event payloads.
type Subscriber chan Payload

// Broker is the pubsub contract shared by the in-process bus and the
// distributed backends in internal/eventbus.
type Broker interface {
	Subscribe(eventType EventType) Subscriber
	Publish(eventType EventType, payload Payload)
	Unsubscribe(eventType EventType, sub Subscriber)
	Close() error
}

// Bus implements a simple in-process pubsub.
type Bus struct {
	mu   sync.RWMutex
	subs map[EventType][]Subscriber
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[EventType][]Subscriber)}
}

// Subscribe registers a subscriber for event type.
func (b *Bus) Subscribe(eventType EventType) Subscriber {
	ch := make(Subscriber, 8)
	b.mu.Lock()
	b.subs[eventType] = append(b.subs[eventType], ch)
	b.mu.Unlock()
	return ch
}

// Publish sends payload to subscribers. Slow subscribers drop events rather
// than blocking the publisher.
func (b *Bus) Publish(eventType EventType, payload Payload) {
	b.mu.RLock()
	subs := append([]Subscriber(nil), b.subs[eventType]...)
	b.mu.RUnlock()
	for _, sub := range subs {
		select {
		case sub <- payload:
		default:
		}
	}
}

// Unsubscribe removes the subscriber.
func (b *Bus) Unsubscribe(eventType EventType, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[eventType]
	for i, candidate := range subs {
		if candidate == sub {
			subs = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	b.subs[eventType] = subs
	close(sub)
}

// Close releases all subscribers.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, subs := range b.subs {
		for _, sub := range subs {
			close(sub)
		}
	}
	b.subs = make(map[EventType][]Subscriber)
	return nil
}
