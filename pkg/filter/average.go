// Package filter implements the moving average applied to raw current samples.
package filter

import (
	"errors"
	"math"
)

// ErrWindow is returned for a non-positive window size.
var ErrWindow = errors.New("filter: window size must be positive")

// ResyncAt is the counter value at which Average recomputes the running sum.
const ResyncAt = math.MaxUint16

// MovingAverage is a fixed window moving average over raw ADC samples.
// The running sum is maintained incrementally and periodically resynchronised
// from the ring to bound accumulated rounding error.
type MovingAverage struct {
	ring    []float32
	head    int // Next slot to write
	count   int // Populated slots
	sum     float32
	counter uint16 // Wraps; Average resyncs when it reaches ResyncAt
}

// New creates a moving average with the given window size.
func New(window int) (*MovingAverage, error) {
	if window <= 0 {
		return nil, ErrWindow
	}
	return &MovingAverage{
		ring: make([]float32, window),
	}, nil
}

// Add appends a sample, evicting the oldest one when the window is full.
func (m *MovingAverage) Add(raw int) {
	v := float32(raw)
	if m.count == len(m.ring) {
		m.sum -= m.ring[m.head]
	} else {
		m.count++
	}
	m.ring[m.head] = v
	m.sum += v
	m.head = (m.head + 1) % len(m.ring)
	m.counter++
}

// FastAverage returns the average from the incrementally maintained sum.
func (m *MovingAverage) FastAverage() float32 {
	if m.count == 0 {
		return 0
	}
	return m.sum / float32(m.count)
}

// FullAverage re-sums the ring, stores the exact sum and returns the average.
func (m *MovingAverage) FullAverage() float32 {
	if m.count == 0 {
		m.sum = 0
		return 0
	}
	var sum float32
	for i := 0; i < m.count; i++ {
		sum += m.ring[i]
	}
	m.sum = sum
	return sum / float32(m.count)
}

// Average returns FastAverage, except when the update counter has reached
// ResyncAt: then FullAverage runs once and the counter restarts from zero.
func (m *MovingAverage) Average() float32 {
	if m.counter != ResyncAt {
		return m.FastAverage()
	}
	m.counter = 0
	return m.FullAverage()
}

// Len returns the number of populated slots.
func (m *MovingAverage) Len() int { return m.count }

// Window returns the window size.
func (m *MovingAverage) Window() int { return len(m.ring) }

// Reset clears all samples.
func (m *MovingAverage) Reset() {
	clear(m.ring)
	m.head = 0
	m.count = 0
	m.sum = 0
	m.counter = 0
}
