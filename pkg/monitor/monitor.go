// Package monitor keeps a time window of controller snapshots and turns
// protection flag changes into events.
package monitor

import (
	"sync"
	"time"

	"github.com/itohio/gomppt/pkg/protect"
	"github.com/itohio/gomppt/pkg/telemetry"
)

var _ StatusMonitor = (*Monitor)(nil)

// Event is a protection flag transition seen in the telemetry stream.
type Event struct {
	Time   time.Time `json:"time"`
	Uptime int64     `json:"uptime_ms"`
	Rule   string    `json:"rule"`
	Active bool      `json:"active"`
}

// Stats summarizes the stream.
type Stats struct {
	Latest      telemetry.Snapshot `json:"latest"`
	Transitions map[string]uint64  `json:"transitions"`
	EnergyWh    float64            `json:"energy_wh"`  // Since the monitor started
	PeakPower   float32            `json:"peak_power"` // Within the window
	Samples     int                `json:"samples"`    // Within the window
}

// StatusMonitor consumes snapshots and exposes the window.
type StatusMonitor interface {
	ProcessSnapshots(input <-chan telemetry.Snapshot)
	Snapshots() []telemetry.Snapshot                          // Window, oldest first
	Events() []Event                                          // Events within the window, oldest first
	Stats() (Stats, bool)                                     // False until the first snapshot
	OnUpdate(func(latest telemetry.Snapshot, events []Event)) // Register callback for updates
}

// Monitor implements StatusMonitor.
type Monitor struct {
	window time.Duration

	snapshots   []telemetry.Snapshot
	events      []Event
	flags       telemetry.Flags
	transitions [3]uint64
	energyWh    float64
	prev        *telemetry.Snapshot

	mu sync.RWMutex

	// Callbacks receive the latest snapshot and the events it produced.
	callbacks []func(latest telemetry.Snapshot, events []Event)
	cbMu      sync.RWMutex

	// Set when the input channel closes, prevents further callbacks.
	shutdown bool
}

// New creates a monitor retaining windowSeconds of snapshots.
func New(windowSeconds float64) *Monitor {
	return &Monitor{
		window:    time.Duration(windowSeconds * float64(time.Second)),
		snapshots: make([]telemetry.Snapshot, 0),
		events:    make([]Event, 0),
	}
}

// ProcessSnapshots consumes the input channel until it closes. After that no
// callbacks are sent until ResetShutdown.
func (m *Monitor) ProcessSnapshots(input <-chan telemetry.Snapshot) {
	for s := range input {
		m.Process(s)
	}
	m.mu.Lock()
	m.shutdown = true
	m.mu.Unlock()
}

// Process adds one snapshot and notifies callbacks.
func (m *Monitor) Process(s telemetry.Snapshot) {
	m.mu.Lock()

	m.integrate(s)
	m.snapshots = append(m.snapshots, s)
	fresh := m.detect(s)
	m.events = append(m.events, fresh...)
	m.trim(s.Timestamp)

	shouldNotify := !m.shutdown
	m.mu.Unlock()

	if shouldNotify {
		m.notifyCallbacks(s, fresh)
	}
}

// integrate accumulates energy using the trapezoid rule.
func (m *Monitor) integrate(s telemetry.Snapshot) {
	if m.prev != nil {
		dt := s.Timestamp.Sub(m.prev.Timestamp).Hours()
		if dt > 0 {
			m.energyWh += float64(s.Power+m.prev.Power) / 2 * dt
		}
	}
	prev := s
	m.prev = &prev
}

// detect compares the flags against the previous snapshot. Flags start cleared.
func (m *Monitor) detect(s telemetry.Snapshot) []Event {
	var out []Event
	for _, rule := range protect.AllRules() {
		was, is := flag(m.flags, rule), flag(s.Flags, rule)
		if was == is {
			continue
		}
		m.transitions[rule]++
		out = append(out, Event{
			Time:   s.Timestamp,
			Uptime: s.UptimeMillis,
			Rule:   rule.String(),
			Active: is,
		})
	}
	m.flags = s.Flags
	return out
}

// trim removes snapshots and events older than the window relative to now.
func (m *Monitor) trim(now time.Time) {
	cutoff := now.Add(-m.window)

	i := 0
	for i < len(m.snapshots)-1 && !m.snapshots[i].Timestamp.After(cutoff) {
		i++
	}
	if i > 0 {
		m.snapshots = append(m.snapshots[:0], m.snapshots[i:]...)
	}

	j := 0
	for j < len(m.events) && !m.events[j].Time.After(cutoff) {
		j++
	}
	if j > 0 {
		m.events = append(m.events[:0], m.events[j:]...)
	}
}

func flag(f telemetry.Flags, rule protect.Rule) bool {
	switch rule {
	case protect.MinimumDuty:
		return f.MinimumDuty
	case protect.Overcurrent:
		return f.Overcurrent
	case protect.Overvoltage:
		return f.Overvoltage
	}
	return false
}

// Snapshots returns a copy of the current window.
func (m *Monitor) Snapshots() []telemetry.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]telemetry.Snapshot, len(m.snapshots))
	copy(result, m.snapshots)
	return result
}

// Events returns a copy of the events within the window.
func (m *Monitor) Events() []Event {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Event, len(m.events))
	copy(result, m.events)
	return result
}

// Stats returns the stream summary.
func (m *Monitor) Stats() (Stats, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.snapshots) == 0 {
		return Stats{}, false
	}

	st := Stats{
		Latest:      m.snapshots[len(m.snapshots)-1],
		Transitions: make(map[string]uint64, len(m.transitions)),
		EnergyWh:    m.energyWh,
		Samples:     len(m.snapshots),
	}
	for _, rule := range protect.AllRules() {
		st.Transitions[rule.String()] = m.transitions[rule]
	}
	for _, s := range m.snapshots {
		st.PeakPower = max(st.PeakPower, s.Power)
	}
	return st, true
}

// OnUpdate registers a callback invoked after every processed snapshot.
// The callback should return quickly.
func (m *Monitor) OnUpdate(callback func(latest telemetry.Snapshot, events []Event)) {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	m.callbacks = append(m.callbacks, callback)
}

// ResetShutdown allows callbacks again after the input channel closed.
func (m *Monitor) ResetShutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdown = false
}

// notifyCallbacks invokes callbacks without holding any locks.
func (m *Monitor) notifyCallbacks(latest telemetry.Snapshot, events []Event) {
	m.cbMu.RLock()
	callbacks := make([]func(latest telemetry.Snapshot, events []Event), len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.cbMu.RUnlock()

	for _, cb := range callbacks {
		if cb != nil {
			cb(latest, events)
		}
	}
}
