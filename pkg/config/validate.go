package config

import (
	"errors"
	"fmt"
)

// ErrInvalid is returned for configurations the control loop cannot run with.
var ErrInvalid = errors.New("config: invalid configuration")

// Validate rejects degenerate configurations: zero averaging divisors, empty
// buffers, an empty duty range and non-positive task periods.
func (c *Config) Validate() error {
	s := c.Sensing
	switch {
	case s.ADCFullScale <= 0:
		return fmt.Errorf("%w: sensing.adc_full_scale must be positive, got %d", ErrInvalid, s.ADCFullScale)
	case s.WindowSize <= 0:
		return fmt.Errorf("%w: sensing.window_size must be positive, got %d", ErrInvalid, s.WindowSize)
	case s.ZeroSamples <= 0:
		return fmt.Errorf("%w: sensing.zero_samples must be positive, got %d", ErrInvalid, s.ZeroSamples)
	case s.VoltageSamples <= 0:
		return fmt.Errorf("%w: sensing.voltage_samples must be positive, got %d", ErrInvalid, s.VoltageSamples)
	case s.ADCReference <= 0 || s.ShuntScale <= 0 || s.VoltageFullScale <= 0:
		return fmt.Errorf("%w: sensing scale factors must be positive", ErrInvalid)
	}

	p := c.Protection
	if p.MaxCurrent < 0 || p.MaxVoltage < 0 || p.OvercurrentRaw < 0 || p.OvervoltageRaw < 0 {
		return fmt.Errorf("%w: protection limits must not be negative", ErrInvalid)
	}
	if p.DebounceTicks < 0 {
		return fmt.Errorf("%w: protection.debounce_ticks must not be negative, got %d", ErrInvalid, p.DebounceTicks)
	}

	if c.Tracker.HistorySize < 2 {
		return fmt.Errorf("%w: tracker.history_size must be at least 2, got %d", ErrInvalid, c.Tracker.HistorySize)
	}
	if c.Tracker.Step < 0 {
		return fmt.Errorf("%w: tracker.step must not be negative, got %d", ErrInvalid, c.Tracker.Step)
	}

	d := c.Duty
	if d.Min >= d.Max {
		return fmt.Errorf("%w: duty.min (%d) must be below duty.max (%d)", ErrInvalid, d.Min, d.Max)
	}
	if d.Initial < d.Min || d.Initial > d.Max {
		return fmt.Errorf("%w: duty.initial (%d) outside [%d, %d]", ErrInvalid, d.Initial, d.Min, d.Max)
	}

	sc := c.Schedule
	if sc.Current <= 0 || sc.Voltage <= 0 || sc.Power <= 0 || sc.Temperature <= 0 {
		return fmt.Errorf("%w: schedule periods must be positive", ErrInvalid)
	}

	if c.Thermal.MaxProbes < 0 {
		return fmt.Errorf("%w: thermal.max_probes must not be negative", ErrInvalid)
	}

	return nil
}
