// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package monitor serializes file events into one queue and coalesces bursts
// into a single handler pass once the debounce window closes.
package monitor

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/time/rate"
)

// DefaultDebounce is the quiet period before a pass runs.
const DefaultDebounce = 2 * time.Second

// 🏷️ EventKind is what happened to a path
type EventKind string

const (
	EventCreated  EventKind = "created"
	EventModified EventKind = "modified"
	EventDeleted  EventKind = "deleted"
)

// 📨 Event is one change reported by a watcher
type Event struct {
	Kind EventKind `json:"kind"`
	Path string    `json:"path"`
}

// Handler processes one coalesced batch, sorted by path.
type Handler func(ctx context.Context, batch []Event) error

// ⚙️ Config tunes the queue
type Config struct {
	Debounce           time.Duration `json:"debounce" yaml:"debounce"`
	MaxPassesPerMinute int           `json:"max_passes_per_minute" yaml:"max_passes_per_minute"` // 0 means unlimited
	QueueSize          int           `json:"queue_size" yaml:"queue_size"`
}

// DefaultConfig returns the stock settings.
func DefaultConfig() Config {
	return Config{Debounce: DefaultDebounce, QueueSize: 1024}
}

// Validate fills defaults.
func (c *Config) Validate() error {
	if c.Debounce < 0 {
		return errors.Errorf("debounce must not be negative, got %s", c.Debounce)
	}
	if c.Debounce == 0 {
		c.Debounce = DefaultDebounce
	}
	if c.MaxPassesPerMinute < 0 {
		return errors.Errorf("max_passes_per_minute must not be negative, got %d", c.MaxPassesPerMinute)
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultConfig().QueueSize
	}
	return nil
}

// 📈 Stats counts what the monitor has seen
type Stats struct {
	Events  int `json:"events"`
	Passes  int `json:"passes"`
	Failed  int `json:"failed"`
	Pending int `json:"pending"`
}

// 👀 Monitor owns the event queue
type Monitor struct {
	cfg     Config
	handler Handler
	events  chan Event
	limiter *rate.Limiter

	mu      sync.Mutex
	stats   Stats
	pending map[string]Event
}

// 🏭 New validates cfg and returns a monitor that calls handler per pass
func New(cfg Config, handler Handler) (*Monitor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Errorf("validating monitor config: %w", err)
	}
	if handler == nil {
		return nil, errors.New("monitor handler is required")
	}

	limit := rate.Inf
	if cfg.MaxPassesPerMinute > 0 {
		limit = rate.Limit(float64(cfg.MaxPassesPerMinute) / 60.0)
	}

	return &Monitor{
		cfg:     cfg,
		handler: handler,
		events:  make(chan Event, cfg.QueueSize),
		limiter: rate.NewLimiter(limit, 1),
		pending: map[string]Event{},
	}, nil
}

// 📥 Submit queues an event, blocking while the queue is full
func (m *Monitor) Submit(ctx context.Context, ev Event) error {
	ev.Path = filepath.Clean(ev.Path)
	select {
	case m.events <- ev:
		return nil
	case <-ctx.Done():
		return errors.Errorf("submitting event: %w", ctx.Err())
	}
}

// Stats returns a copy of the counters.
func (m *Monitor) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stats
	s.Pending = len(m.pending) + len(m.events)
	return s
}

// 🔄 Run drains the queue until ctx is done. Each event restarts the
// debounce window; when it closes the batch is handed over in one pass.
func (m *Monitor) Run(ctx context.Context) error {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Dur("debounce", m.cfg.Debounce).Msg("monitor started")

	timer := time.NewTimer(m.cfg.Debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Debug().Int("dropped", len(m.pending)).Msg("monitor stopped")
			return nil

		case ev := <-m.events:
			m.mu.Lock()
			m.pending[ev.Path] = ev
			m.stats.Events++
			m.mu.Unlock()

			timer.Reset(m.cfg.Debounce)

		case <-timer.C:
			batch := m.drain()
			if len(batch) == 0 {
				continue
			}
			if err := m.limiter.Wait(ctx); err != nil {
				logger.Debug().Err(err).Msg("monitor stopped while rate limited")
				return nil
			}
			m.pass(ctx, batch)
		}
	}
}

func (m *Monitor) drain() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	batch := make([]Event, 0, len(m.pending))
	for _, ev := range m.pending {
		batch = append(batch, ev)
	}
	m.pending = map[string]Event{}
	sort.Slice(batch, func(i, j int) bool { return batch[i].Path < batch[j].Path })
	return batch
}

func (m *Monitor) pass(ctx context.Context, batch []Event) {
	logger := zerolog.Ctx(ctx)
	start := time.Now()
	err := m.handler(ctx, batch)

	m.mu.Lock()
	m.stats.Passes++
	if err != nil {
		m.stats.Failed++
	}
	m.mu.Unlock()

	if err != nil {
		logger.Error().Err(err).Int("events", len(batch)).Msg("monitor pass failed")
		return
	}
	logger.Debug().Int("events", len(batch)).Dur("took", time.Since(start)).Msg("monitor pass finished")
}
