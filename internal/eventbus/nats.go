/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"sync"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/friendsincode/heimdall_signage/internal/events"
)

// NATSBus is a NATS-backed event bus. It mirrors the RedisBus contract:
// publishes fan out to every node subscribed to the matching subject, and
// the in-memory bus serves as a fallback when the server is unreachable.
type NATSBus struct {
	conn     *natsgo.Conn
	logger   zerolog.Logger
	fallback *events.Bus
	nodeID   string

	mu   sync.RWMutex
	subs map[events.EventType][]events.Subscriber
	nsub map[events.EventType]*natsgo.Subscription

	useFallback bool
}

// NATSConfig contains NATS connection configuration.
type NATSConfig struct {
	URL   string
	Token string

	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// DefaultNATSConfig returns default NATS configuration.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           natsgo.DefaultURL,
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	}
}

// NewNATSBus creates a NATS-backed event bus.
// Falls back to the in-memory bus if NATS is unavailable.
func NewNATSBus(cfg NATSConfig, nodeID string, logger zerolog.Logger) (*NATSBus, error) {
	opts := []natsgo.Option{
		natsgo.Name("heimdall-" + nodeID),
		natsgo.Timeout(cfg.Timeout),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.RetryOnFailedConnect(true),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}
	if cfg.Token != "" {
		opts = append(opts, natsgo.Token(cfg.Token))
	}

	nb := &NATSBus{
		logger:   logger,
		fallback: events.NewBus(),
		nodeID:   nodeID,
		subs:     make(map[events.EventType][]events.Subscriber),
		nsub:     make(map[events.EventType]*natsgo.Subscription),
	}

	conn, err := natsgo.Connect(cfg.URL, opts...)
	if err != nil {
		logger.Warn().Err(err).Msg("NATS connection failed, using in-memory fallback")
		nb.useFallback = true
		return nb, nil
	}
	nb.conn = conn

	logger.Info().Str("url", cfg.URL).Msg("NATS event bus initialized")

	return nb, nil
}

// Subscribe registers a subscriber for an event type.
func (nb *NATSBus) Subscribe(eventType events.EventType) events.Subscriber {
	nb.mu.Lock()
	defer nb.mu.Unlock()

	if nb.useFallback {
		return nb.fallback.Subscribe(eventType)
	}

	sub := make(events.Subscriber, 100)
	nb.subs[eventType] = append(nb.subs[eventType], sub)

	if _, exists := nb.nsub[eventType]; !exists {
		subject := subjectName(eventType)
		ns, err := nb.conn.Subscribe(subject, func(msg *natsgo.Msg) {
			nb.receive(eventType, msg.Data)
		})
		if err != nil {
			nb.logger.Error().Err(err).Str("subject", subject).Msg("NATS subscribe failed")
		} else {
			nb.nsub[eventType] = ns
		}
	}

	return sub
}

func (nb *NATSBus) receive(eventType events.EventType, data []byte) {
	busMsg, err := unmarshalMessage(data)
	if err != nil {
		nb.logger.Error().Err(err).Msg("failed to unmarshal NATS message")
		return
	}

	if busMsg.NodeID == nb.nodeID {
		return
	}

	nb.mu.RLock()
	subs := nb.subs[eventType]
	nb.mu.RUnlock()

	for _, sub := range subs {
		select {
		case sub <- busMsg.Payload:
		default:
			nb.logger.Warn().Str("event_type", string(eventType)).Msg("subscriber channel full, dropping event")
		}
	}
}

// Publish sends an event payload to all subscribers, local and remote.
func (nb *NATSBus) Publish(eventType events.EventType, payload events.Payload) {
	nb.fallback.Publish(eventType, payload)

	nb.mu.RLock()
	subs := nb.subs[eventType]
	open := !nb.useFallback
	nb.mu.RUnlock()

	for _, sub := range subs {
		select {
		case sub <- payload:
		default:
			nb.logger.Warn().Str("event_type", string(eventType)).Msg("subscriber channel full, dropping event")
		}
	}

	if !open {
		return
	}

	data, err := marshalMessage(eventType, payload, nb.nodeID)
	if err != nil {
		nb.logger.Error().Err(err).Msg("failed to marshal NATS message")
		return
	}

	if err := nb.conn.Publish(subjectName(eventType), data); err != nil {
		nb.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to publish to NATS")
	}
}

// Unsubscribe removes a subscriber.
func (nb *NATSBus) Unsubscribe(eventType events.EventType, sub events.Subscriber) {
	nb.mu.Lock()
	defer nb.mu.Unlock()

	if nb.useFallback {
		nb.fallback.Unsubscribe(eventType, sub)
		return
	}

	subs := nb.subs[eventType]
	for i, s := range subs {
		if s == sub {
			nb.subs[eventType] = append(subs[:i], subs[i+1:]...)
			close(sub)
			break
		}
	}

	if len(nb.subs[eventType]) == 0 {
		if ns, exists := nb.nsub[eventType]; exists {
			ns.Unsubscribe()
			delete(nb.nsub, eventType)
		}
	}
}

// Close drains the NATS connection.
func (nb *NATSBus) Close() error {
	nb.logger.Info().Msg("closing NATS event bus")

	nb.mu.Lock()
	for _, ns := range nb.nsub {
		ns.Unsubscribe()
	}
	nb.nsub = make(map[events.EventType]*natsgo.Subscription)
	nb.mu.Unlock()

	if nb.conn != nil {
		return nb.conn.Drain()
	}
	return nil
}

func subjectName(eventType events.EventType) string {
	return "heimdall.events." + string(eventType)
}
