// Package thermal reads the temperature probes attached to the controller.
package thermal

// Probe is a bus of temperature sensors addressed by index.
type Probe interface {
	DeviceCount() int
	RequestConversion()
	ReadByIndex(i int) float32 // °C
}

// Monitor keeps the latest temperature of each probe.
type Monitor struct {
	probe Probe
	max   int
	count int
	temps []float32
}

// NewMonitor creates a monitor reading at most maxProbes probes. A nil probe
// behaves as an empty bus.
func NewMonitor(probe Probe, maxProbes int) *Monitor {
	if maxProbes < 0 {
		maxProbes = 0
	}
	return &Monitor{
		probe: probe,
		max:   maxProbes,
		temps: make([]float32, 0, maxProbes),
	}
}

// Configure enumerates the probes on the bus. It returns the number of probes
// that will be read.
func (m *Monitor) Configure() int {
	m.count = 0
	if m.probe != nil {
		m.count = m.probe.DeviceCount()
	}
	if m.count < 0 {
		m.count = 0
	}
	if m.count > m.max {
		m.count = m.max
	}
	m.temps = m.temps[:0]
	return m.count
}

// Sense requests a conversion and reads every configured probe. With no
// probes it does nothing.
func (m *Monitor) Sense() {
	if m.count == 0 {
		return
	}
	m.probe.RequestConversion()
	m.temps = m.temps[:0]
	for i := 0; i < m.count; i++ {
		m.temps = append(m.temps, m.probe.ReadByIndex(i))
	}
}

// Count returns the number of probes being read.
func (m *Monitor) Count() int { return m.count }

// Temperatures returns a copy of the latest readings.
func (m *Monitor) Temperatures() []float32 {
	out := make([]float32, len(m.temps))
	copy(out, m.temps)
	return out
}

// Static is a Probe returning fixed temperatures.
type Static []float32

func (s Static) DeviceCount() int { return len(s) }

func (s Static) RequestConversion() {}

func (s Static) ReadByIndex(i int) float32 {
	if i < 0 || i >= len(s) {
		return 0
	}
	return s[i]
}
