// Package pubsub implements the channel and pattern subscription fan-out
// from spec §4.10: SUBSCRIBE/PSUBSCRIBE register a connection's interest,
// PUBLISH fans a message out to every matching subscriber.
package pubsub

import (
	"sync"

	"github.com/nullbyte-labs/redisgo/internal/keyspace"
)

// Recipient is one connection a published message must be delivered to.
// Pattern is empty for a direct channel subscriber, non-empty for a
// pattern subscriber — the dispatcher uses that to choose between the
// "message" and "pmessage" reply shapes (spec §4.10).
type Recipient struct {
	ConnID  uint64
	Channel string
	Pattern string
}

// Manager tracks every connection's channel and pattern subscriptions.
type Manager struct {
	mu sync.Mutex

	channelSubs map[string]map[uint64]struct{}
	patternSubs map[string]map[uint64]struct{}

	connChannels map[uint64]map[string]struct{}
	connPatterns map[uint64]map[string]struct{}
}

// New returns an empty subscription manager.
func New() *Manager {
	return &Manager{
		channelSubs:  make(map[string]map[uint64]struct{}),
		patternSubs:  make(map[string]map[uint64]struct{}),
		connChannels: make(map[uint64]map[string]struct{}),
		connPatterns: make(map[uint64]map[string]struct{}),
	}
}

// Subscribe adds connID as a subscriber of channel, returning the
// connection's total subscription count (channels + patterns) for the
// SUBSCRIBE ack reply.
func (m *Manager) Subscribe(connID uint64, channel string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.channelSubs[channel] == nil {
		m.channelSubs[channel] = make(map[uint64]struct{})
	}
	m.channelSubs[channel][connID] = struct{}{}
	if m.connChannels[connID] == nil {
		m.connChannels[connID] = make(map[string]struct{})
	}
	m.connChannels[connID][channel] = struct{}{}
	return m.totalLocked(connID)
}

// Unsubscribe removes connID from channel's subscribers, returning the
// connection's remaining total subscription count.
func (m *Manager) Unsubscribe(connID uint64, channel string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.channelSubs[channel], connID)
	if len(m.channelSubs[channel]) == 0 {
		delete(m.channelSubs, channel)
	}
	delete(m.connChannels[connID], channel)
	if len(m.connChannels[connID]) == 0 {
		delete(m.connChannels, connID)
	}
	return m.totalLocked(connID)
}

// PSubscribe adds connID as a subscriber of glob pattern.
func (m *Manager) PSubscribe(connID uint64, pattern string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.patternSubs[pattern] == nil {
		m.patternSubs[pattern] = make(map[uint64]struct{})
	}
	m.patternSubs[pattern][connID] = struct{}{}
	if m.connPatterns[connID] == nil {
		m.connPatterns[connID] = make(map[string]struct{})
	}
	m.connPatterns[connID][pattern] = struct{}{}
	return m.totalLocked(connID)
}

// PUnsubscribe removes connID from pattern's subscribers.
func (m *Manager) PUnsubscribe(connID uint64, pattern string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.patternSubs[pattern], connID)
	if len(m.patternSubs[pattern]) == 0 {
		delete(m.patternSubs, pattern)
	}
	delete(m.connPatterns[connID], pattern)
	if len(m.connPatterns[connID]) == 0 {
		delete(m.connPatterns, connID)
	}
	return m.totalLocked(connID)
}

// UnsubscribeAll removes every subscription held by connID, called on
// connection close.
func (m *Manager) UnsubscribeAll(connID uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for ch := range m.connChannels[connID] {
		delete(m.channelSubs[ch], connID)
		if len(m.channelSubs[ch]) == 0 {
			delete(m.channelSubs, ch)
		}
	}
	delete(m.connChannels, connID)
	for pat := range m.connPatterns[connID] {
		delete(m.patternSubs[pat], connID)
		if len(m.patternSubs[pat]) == 0 {
			delete(m.patternSubs, pat)
		}
	}
	delete(m.connPatterns, connID)
}

// totalLocked returns connID's combined channel+pattern subscription count.
// Caller must hold m.mu.
func (m *Manager) totalLocked(connID uint64) int {
	return len(m.connChannels[connID]) + len(m.connPatterns[connID])
}

// Total returns connID's combined channel+pattern subscription count.
func (m *Manager) Total(connID uint64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totalLocked(connID)
}

// ChannelsOf returns connID's currently subscribed channels, for
// UNSUBSCRIBE with no arguments ("unsubscribe from all").
func (m *Manager) ChannelsOf(connID uint64) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.connChannels[connID]))
	for ch := range m.connChannels[connID] {
		out = append(out, ch)
	}
	return out
}

// PatternsOf returns connID's currently subscribed patterns, for
// PUNSUBSCRIBE with no arguments.
func (m *Manager) PatternsOf(connID uint64) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.connPatterns[connID]))
	for pat := range m.connPatterns[connID] {
		out = append(out, pat)
	}
	return out
}

// Publish returns every recipient of a message on channel: direct
// subscribers first, then one Recipient per distinct matching pattern
// subscriber (spec §4.10: a connection subscribed both directly and via a
// matching pattern receives the message twice, once per subscription).
func (m *Manager) Publish(channel string) []Recipient {
	m.mu.Lock()
	defer m.mu.Unlock()
	var recipients []Recipient
	for connID := range m.channelSubs[channel] {
		recipients = append(recipients, Recipient{ConnID: connID, Channel: channel})
	}
	for pattern, subs := range m.patternSubs {
		if !keyspace.GlobMatch(pattern, channel) {
			continue
		}
		for connID := range subs {
			recipients = append(recipients, Recipient{ConnID: connID, Channel: channel, Pattern: pattern})
		}
	}
	return recipients
}

// NumSubscribers reports the number of direct subscribers of channel.
func (m *Manager) NumSubscribers(channel string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.channelSubs[channel])
}

// Channels returns every channel with at least one direct subscriber,
// optionally filtered by glob pattern.
func (m *Manager) Channels(pattern string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for ch := range m.channelSubs {
		if pattern == "" || keyspace.GlobMatch(pattern, ch) {
			out = append(out, ch)
		}
	}
	return out
}
