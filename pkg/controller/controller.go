// Package controller owns the control loop state and runs the sensing,
// protection and tracking tasks in a fixed order.
package controller

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/itohio/gomppt/pkg/config"
	"github.com/itohio/gomppt/pkg/duty"
	"github.com/itohio/gomppt/pkg/mppt"
	"github.com/itohio/gomppt/pkg/protect"
	"github.com/itohio/gomppt/pkg/schedule"
	"github.com/itohio/gomppt/pkg/sense"
	"github.com/itohio/gomppt/pkg/telemetry"
	"github.com/itohio/gomppt/pkg/thermal"
)

// Tasks in the order they run within one tick. Sensing comes first, then
// protection, then tracking, so optimization never overrides a safety bias.
const (
	TaskCurrent schedule.TaskID = iota
	TaskVoltage
	TaskPower
	TaskTemperature
	TaskProtect
	TaskTrack
)

// ErrNotCalibrated is returned when the loop runs before ZeroCurrent.
var ErrNotCalibrated = errors.New("controller: zero-current offset not calibrated")

// Actuator receives the duty cycle whenever it changes.
type Actuator interface {
	SetDuty(value int)
}

// Controller is the explicit context of the control loop. It is not safe for
// concurrent use; every method must be called from the loop.
type Controller struct {
	cfg *config.Config

	sampler    *sense.Sampler
	engine     *protect.Engine
	thresholds protect.Thresholds
	history    *mppt.History
	tracker    *mppt.Tracker
	duty       *duty.Cycle
	sched      *schedule.Scheduler
	thermal    *thermal.Monitor
	actuator   Actuator

	due       []schedule.TaskID
	now       time.Duration
	direction mppt.Direction
}

// New creates a controller. probe and actuator may be nil.
func New(cfg *config.Config, adc sense.ADC, probe thermal.Probe, actuator Actuator) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sampler, err := sense.New(adc, cfg.Sensing)
	if err != nil {
		return nil, fmt.Errorf("failed to create sampler: %w", err)
	}

	history, err := mppt.NewHistory(cfg.Tracker.HistorySize)
	if err != nil {
		return nil, fmt.Errorf("failed to create power history: %w", err)
	}

	d, err := duty.New(cfg.Duty.Min, cfg.Duty.Max, cfg.Duty.Initial)
	if err != nil {
		return nil, fmt.Errorf("failed to create duty cycle: %w", err)
	}

	sched := schedule.New()
	tasks := []struct {
		id     schedule.TaskID
		name   string
		period time.Duration
	}{
		{TaskCurrent, "current", cfg.Schedule.Current},
		{TaskVoltage, "voltage", cfg.Schedule.Voltage},
		{TaskPower, "power", cfg.Schedule.Power},
		{TaskTemperature, "temperature", cfg.Schedule.Temperature},
		{TaskProtect, "protect", cfg.Schedule.Current},
		{TaskTrack, "track", cfg.Schedule.Power},
	}
	for _, t := range tasks {
		if err := sched.Add(t.id, t.name, t.period); err != nil {
			return nil, fmt.Errorf("failed to schedule task: %w", err)
		}
	}

	return &Controller{
		cfg:      cfg,
		sampler:  sampler,
		engine:   protect.NewEngine(protect.RulesFromConfig(cfg.Protection), cfg.Protection.DebounceTicks),
		history:  history,
		tracker:  mppt.NewTracker(cfg.Tracker.Step),
		duty:     d,
		sched:    sched,
		thermal:  thermal.NewMonitor(probe, cfg.Thermal.MaxProbes),
		actuator: actuator,
		due:      make([]schedule.TaskID, 0, len(tasks)),
	}, nil
}

// Init calibrates the current offset, enumerates temperature probes and
// pushes the initial duty cycle to the actuator.
func (c *Controller) Init() error {
	if err := c.ZeroCurrent(); err != nil {
		return err
	}
	c.thermal.Configure()
	c.sched.Reset(c.now)
	if c.actuator != nil {
		c.actuator.SetDuty(c.duty.Value())
	}
	return nil
}

// ZeroCurrent recomputes the zero-current offset and the thresholds derived from it.
func (c *Controller) ZeroCurrent() error {
	if err := c.sampler.ZeroCurrent(); err != nil {
		return fmt.Errorf("failed to calibrate current offset: %w", err)
	}
	c.thresholds = protect.DeriveThresholds(c.cfg.Protection, c.cfg.Sensing, c.sampler.Offset())
	return nil
}

// ReadCurrent samples and filters the load current (A).
func (c *Controller) ReadCurrent() float32 { return c.sampler.ReadCurrent() }

// ReadVoltage samples the input voltage (V).
func (c *Controller) ReadVoltage() float32 { return c.sampler.ReadVoltage() }

// ReadPower computes power from the latest readings and records it in the history (W).
func (c *Controller) ReadPower() float32 {
	p := c.sampler.ReadPower()
	c.history.Push(p)
	return p
}

// SenseTemperatures reads all configured probes.
func (c *Controller) SenseTemperatures() { c.thermal.Sense() }

// EvaluateProtections runs the protection rules against the latest readings
// and applies their duty cycle bias.
func (c *Controller) EvaluateProtections() (protect.Result, error) {
	if !c.sampler.Calibrated() {
		return protect.Result{Flags: c.engine.Flags()}, ErrNotCalibrated
	}

	op := c.sampler.OperatingPoint()
	res := c.engine.Evaluate(protect.Reading{CurrentRaw: op.CurrentRaw, VoltageRaw: op.VoltageRaw}, c.thresholds)
	c.adjust(res.Delta)

	if c.cfg.Diagnostics.LogTransitions {
		for _, rule := range protect.AllRules() {
			if res.Changed[rule] {
				log.Printf("Protection %s active=%t at %v (transitions: %d)",
					rule, res.Flags.Get(rule), c.now, c.engine.Transitions(rule))
			}
		}
	}
	return res, nil
}

// TrackPower runs one maximum power point tracking step.
func (c *Controller) TrackPower() (mppt.Direction, error) {
	if !c.sampler.Calibrated() {
		return mppt.Hold, ErrNotCalibrated
	}
	if !c.cfg.Tracker.Enabled {
		return mppt.Hold, nil
	}
	c.direction = c.tracker.Step(c.history)
	c.adjust(c.tracker.Delta(c.direction))
	return c.direction, nil
}

// Tick runs every task due at now. It returns the tasks that ran, valid until the next call.
// Protection and tracking are skipped until the offset is calibrated.
func (c *Controller) Tick(now time.Duration) []schedule.TaskID {
	c.now = now
	c.due = c.sched.Due(now, c.due[:0])
	for _, id := range c.due {
		switch id {
		case TaskCurrent:
			c.ReadCurrent()
		case TaskVoltage:
			c.ReadVoltage()
		case TaskPower:
			c.ReadPower()
		case TaskTemperature:
			c.SenseTemperatures()
		case TaskProtect:
			c.EvaluateProtections()
		case TaskTrack:
			c.TrackPower()
		}
	}
	return c.due
}

func (c *Controller) adjust(delta int) {
	if delta == 0 {
		return
	}
	if c.duty.Adjust(delta) != 0 && c.actuator != nil {
		c.actuator.SetDuty(c.duty.Value())
	}
}

// Current returns the latest load current (A).
func (c *Controller) Current() float32 { return c.sampler.OperatingPoint().Current }

// Voltage returns the latest input voltage (V).
func (c *Controller) Voltage() float32 { return c.sampler.OperatingPoint().Voltage }

// Power returns the latest power (W).
func (c *Controller) Power() float32 { return c.sampler.OperatingPoint().Power }

// OperatingPoint returns the latest readings including raw values.
func (c *Controller) OperatingPoint() sense.OperatingPoint { return c.sampler.OperatingPoint() }

// Flags returns the protection flags.
func (c *Controller) Flags() protect.Flags { return c.engine.Flags() }

// Transitions returns the number of flag changes of rule.
func (c *Controller) Transitions(rule protect.Rule) uint32 { return c.engine.Transitions(rule) }

// Thresholds returns the raw protection thresholds in use.
func (c *Controller) Thresholds() protect.Thresholds { return c.thresholds }

// Duty returns the duty cycle.
func (c *Controller) Duty() int { return c.duty.Value() }

// DutyClamps returns how many duty adjustments hit a bound.
func (c *Controller) DutyClamps() uint32 { return c.duty.Clamps() }

// Direction returns the last tracking decision.
func (c *Controller) Direction() mppt.Direction { return c.direction }

// History returns the power history, oldest first.
func (c *Controller) History() []float32 { return c.history.Values() }

// Temperatures returns the latest probe readings (°C).
func (c *Controller) Temperatures() []float32 { return c.thermal.Temperatures() }

// Uptime returns the timestamp of the last tick.
func (c *Controller) Uptime() time.Duration { return c.now }

// Snapshot returns the current status frame.
func (c *Controller) Snapshot() telemetry.Snapshot {
	op := c.sampler.OperatingPoint()
	f := c.engine.Flags()
	return telemetry.Snapshot{
		UptimeMillis: c.now.Milliseconds(),
		Current:      op.Current,
		Voltage:      op.Voltage,
		Power:        op.Power,
		Duty:         c.duty.Value(),
		Flags: telemetry.Flags{
			MinimumDuty: f.MinimumDuty,
			Overcurrent: f.Overcurrent,
			Overvoltage: f.Overvoltage,
		},
		Temperatures: c.thermal.Temperatures(),
	}
}
