// Package sim models a solar panel feeding a buck stage, seen through the
// controller's analog front end.
package sim

import (
	"math/rand"

	"github.com/chewxy/math32"

	"github.com/itohio/gomppt/pkg/config"
	"github.com/itohio/gomppt/pkg/sense"
	"github.com/itohio/gomppt/pkg/thermal"
)

// thermalVoltageRatio shapes the knee of the panel I-V curve relative to Voc.
const thermalVoltageRatio = 0.06

// Plant implements sense.ADC and the controller actuator. The panel voltage is
// set by the duty cycle: Vpanel = Vbattery / D, limited to Voc.
type Plant struct {
	voc, isc, vbat float32
	vt             float32
	zeroRaw        int
	noise          int
	fullScale      int
	ampsPerCount   float32
	voltsPerCount  float32
	dutyMax        int

	duty      int
	connected bool
	rng       *rand.Rand
}

// NewPlant creates a plant. The load starts disconnected so the controller
// can calibrate its zero-current offset.
func NewPlant(mock config.MockConfig, sensing config.SensingConfig, dutyMax int, seed int64) *Plant {
	return &Plant{
		voc:           float32(mock.PanelVoc),
		isc:           float32(mock.PanelIsc),
		vbat:          float32(mock.BatteryVoltage),
		vt:            float32(mock.PanelVoc) * thermalVoltageRatio,
		zeroRaw:       mock.ZeroRaw,
		noise:         mock.NoiseCounts,
		fullScale:     sensing.ADCFullScale,
		ampsPerCount:  float32(sensing.AmpsPerCount()),
		voltsPerCount: float32(sensing.VoltageScale()),
		dutyMax:       dutyMax,
		rng:           rand.New(rand.NewSource(seed)),
	}
}

// Probes returns the simulated temperature probes.
func Probes(mock config.MockConfig) thermal.Static {
	out := make(thermal.Static, len(mock.Probes))
	for i, t := range mock.Probes {
		out[i] = float32(t)
	}
	return out
}

// SetDuty sets the buck stage duty cycle.
func (p *Plant) SetDuty(v int) { p.duty = v }

// Connect switches the load on or off.
func (p *Plant) Connect(on bool) { p.connected = on }

// PanelVoltage returns the panel operating voltage (V).
func (p *Plant) PanelVoltage() float32 {
	if !p.connected || p.duty <= 0 {
		return p.voc
	}
	v := p.vbat * float32(p.dutyMax) / float32(p.duty)
	return math32.Min(v, p.voc)
}

// PanelCurrent returns the panel current at voltage v (A).
func (p *Plant) PanelCurrent(v float32) float32 {
	if !p.connected {
		return 0
	}
	i := p.isc * (1 - math32.Exp((v-p.voc)/p.vt))
	return math32.Max(i, 0)
}

// PanelPower returns the power at the current duty cycle (W).
func (p *Plant) PanelPower() float32 {
	v := p.PanelVoltage()
	return v * p.PanelCurrent(v)
}

// ReadRaw implements sense.ADC.
func (p *Plant) ReadRaw(ch sense.Channel) int {
	v := p.PanelVoltage()
	var raw int
	switch ch {
	case sense.CurrentSense:
		raw = p.zeroRaw + int(p.PanelCurrent(v)/p.ampsPerCount)
	case sense.InputVoltage:
		raw = int(v / p.voltsPerCount)
	}
	if p.noise > 0 {
		raw += p.rng.Intn(2*p.noise+1) - p.noise
	}
	return min(max(raw, 0), p.fullScale-1)
}
