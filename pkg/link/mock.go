package link

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/itohio/gomppt/pkg/config"
	"github.com/itohio/gomppt/pkg/controller"
	"github.com/itohio/gomppt/pkg/sim"
	"github.com/itohio/gomppt/pkg/telemetry"
)

// Mock runs the real control loop against a simulated panel.
type Mock struct {
	cfg *config.Config

	snapshots chan telemetry.Snapshot
	mu        sync.RWMutex
	cancel    context.CancelFunc
	run       *mockRun
	connected bool
}

// mockRun is the state of one connection, owned by its generator goroutine.
type mockRun struct {
	ctx    context.Context
	plant  *sim.Plant
	ctrl   *controller.Controller
	now    time.Duration
	rezero chan chan error
	out    chan telemetry.Snapshot
}

// NewMock creates a new mocked controller. A nil configuration uses defaults.
func NewMock(cfg *config.Config) *Mock {
	if cfg == nil {
		cfg = config.Default()
	}

	return &Mock{
		cfg:       cfg,
		snapshots: make(chan telemetry.Snapshot, DefaultBufferSize),
	}
}

// Connect calibrates the simulated controller with the load disconnected and
// starts generating snapshots. Every connection gets a new snapshots channel.
func (m *Mock) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected {
		return ErrConnected
	}

	plant := sim.NewPlant(m.cfg.Mock, m.cfg.Sensing, m.cfg.Duty.Max, time.Now().UnixNano())
	ctrl, err := controller.New(m.cfg, plant, sim.Probes(m.cfg.Mock), plant)
	if err != nil {
		return fmt.Errorf("failed to create controller: %w", err)
	}
	if err := ctrl.Init(); err != nil {
		return fmt.Errorf("failed to initialize controller: %w", err)
	}
	plant.Connect(true)

	ctx, cancel := context.WithCancel(context.Background())
	run := &mockRun{
		ctx:    ctx,
		plant:  plant,
		ctrl:   ctrl,
		rezero: make(chan chan error),
		out:    make(chan telemetry.Snapshot, DefaultBufferSize),
	}

	m.cancel = cancel
	m.run = run
	m.snapshots = run.out
	m.connected = true

	go run.generate(m.cfg.Mock)

	return nil
}

// Close stops the simulation. The snapshots channel is closed once the
// generator exits.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return nil
	}

	m.cancel()
	m.connected = false

	return nil
}

// Snapshots returns the channel of the current connection.
func (m *Mock) Snapshots() <-chan telemetry.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshots
}

// Rezero recalibrates the simulated controller with the load disconnected.
func (m *Mock) Rezero() error {
	m.mu.RLock()
	connected, run := m.connected, m.run
	m.mu.RUnlock()
	if !connected {
		return ErrNotConnected
	}

	reply := make(chan error, 1)
	select {
	case run.rezero <- reply:
	case <-run.ctx.Done():
		return ErrNotConnected
	}

	select {
	case err := <-reply:
		return err
	case <-run.ctx.Done():
		return ErrNotConnected
	}
}

// IsConnected returns whether the mock is currently running.
func (m *Mock) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// generate advances the simulation and emits a snapshot per sample period.
func (r *mockRun) generate(cfg config.MockConfig) {
	defer close(r.out)

	ticker := time.NewTicker(cfg.SampleRate)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case reply := <-r.rezero:
			reply <- r.rezeroPlant()
		case <-ticker.C:
			s := r.step(cfg)
			select {
			case r.out <- s:
			case <-r.ctx.Done():
				return
			default:
				// Channel full, skip
			}
		}
	}
}

// step runs one sample period worth of control ticks.
func (r *mockRun) step(cfg config.MockConfig) telemetry.Snapshot {
	for i := 0; i < cfg.TicksPerSample; i++ {
		r.now += cfg.TickStep
		r.ctrl.Tick(r.now)
	}

	s := r.ctrl.Snapshot()
	s.Timestamp = time.Now()
	return s
}

func (r *mockRun) rezeroPlant() error {
	r.plant.Connect(false)
	defer r.plant.Connect(true)

	if err := r.ctrl.ZeroCurrent(); err != nil {
		return err
	}
	log.Printf("Mock controller re-zeroed: %+v", r.ctrl.Thresholds())
	return nil
}
