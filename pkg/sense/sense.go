// Package sense converts raw current and voltage ADC readings into
// calibrated physical quantities.
package sense

import (
	"errors"
	"fmt"

	"github.com/itohio/gomppt/pkg/config"
	"github.com/itohio/gomppt/pkg/filter"
)

// ErrNoSamples is returned when an average would be taken over zero samples.
var ErrNoSamples = errors.New("sense: sample count must be positive")

// Channel identifies an analog input.
type Channel int

const (
	// CurrentSense is the load current sense output.
	CurrentSense Channel = iota
	// InputVoltage is the divided input voltage.
	InputVoltage
)

func (c Channel) String() string {
	switch c {
	case CurrentSense:
		return "current"
	case InputVoltage:
		return "voltage"
	default:
		return fmt.Sprintf("channel(%d)", int(c))
	}
}

// ADC is a one-shot raw analog read primitive.
type ADC interface {
	ReadRaw(ch Channel) int
}

// ADCFunc adapts a function to the ADC interface.
type ADCFunc func(ch Channel) int

// ReadRaw calls f(ch).
func (f ADCFunc) ReadRaw(ch Channel) int { return f(ch) }

// OperatingPoint holds the latest readings.
type OperatingPoint struct {
	CurrentRaw int     // Filtered current sense reading (ADC)
	VoltageRaw int     // Averaged voltage reading (ADC)
	Current    float32 // A
	Voltage    float32 // V
	Power      float32 // W
}

// Sampler produces calibrated current and voltage readings.
type Sampler struct {
	adc    ADC
	filter *filter.MovingAverage

	conversionFactor float32
	shuntScale       float32
	voltageScale     float32
	zeroSamples      int
	voltageSamples   int

	offset     int
	calibrated bool
	op         OperatingPoint
}

// New creates a Sampler reading from adc.
func New(adc ADC, cfg config.SensingConfig) (*Sampler, error) {
	if cfg.ZeroSamples <= 0 || cfg.VoltageSamples <= 0 {
		return nil, ErrNoSamples
	}
	if cfg.ADCFullScale <= 0 {
		return nil, fmt.Errorf("sense: adc full scale must be positive, got %d", cfg.ADCFullScale)
	}

	f, err := filter.New(cfg.WindowSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create current filter: %w", err)
	}

	return &Sampler{
		adc:              adc,
		filter:           f,
		conversionFactor: float32(cfg.ConversionFactor()),
		shuntScale:       float32(cfg.ShuntScale),
		voltageScale:     float32(cfg.VoltageScale()),
		zeroSamples:      cfg.ZeroSamples,
		voltageSamples:   cfg.VoltageSamples,
	}, nil
}

// ZeroCurrent averages several current readings taken at zero load and stores
// the result as the calibration offset.
func (s *Sampler) ZeroCurrent() error {
	offset, err := averageRaw(s.adc, CurrentSense, s.zeroSamples)
	if err != nil {
		return err
	}
	s.offset = offset
	s.calibrated = true
	return nil
}

// ReadCurrent takes one current reading, filters it and returns the load current (A).
func (s *Sampler) ReadCurrent() float32 {
	s.filter.Add(s.adc.ReadRaw(CurrentSense))
	s.op.CurrentRaw = int(s.filter.Average())
	s.op.Current = s.conversionFactor * float32(s.op.CurrentRaw-s.offset) * s.shuntScale
	return s.op.Current
}

// ReadVoltage averages several voltage readings and returns the input voltage (V).
func (s *Sampler) ReadVoltage() float32 {
	raw, err := averageRaw(s.adc, InputVoltage, s.voltageSamples)
	if err != nil {
		// New rejects a zero sample count.
		return s.op.Voltage
	}
	s.op.VoltageRaw = raw
	s.op.Voltage = float32(raw) * s.voltageScale
	return s.op.Voltage
}

// ReadPower returns voltage * current from the latest readings (W).
func (s *Sampler) ReadPower() float32 {
	s.op.Power = s.op.Voltage * s.op.Current
	return s.op.Power
}

// Offset returns the zero-current calibration offset (ADC).
func (s *Sampler) Offset() int { return s.offset }

// Calibrated reports whether ZeroCurrent has run.
func (s *Sampler) Calibrated() bool { return s.calibrated }

// OperatingPoint returns the latest readings.
func (s *Sampler) OperatingPoint() OperatingPoint { return s.op }

// averageRaw reads n samples and returns their truncated integer average.
func averageRaw(adc ADC, ch Channel, n int) (int, error) {
	if n <= 0 {
		return 0, ErrNoSamples
	}
	sum := 0
	for i := 0; i < n; i++ {
		sum += adc.ReadRaw(ch)
	}
	return sum / n, nil
}
