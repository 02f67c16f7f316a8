// Package mppt implements hill-climbing maximum power point tracking over a
// rolling history of power readings.
package mppt

import "errors"

// ErrCapacity is returned for a history that cannot hold a trend.
var ErrCapacity = errors.New("mppt: history capacity must be at least 2")

// History is a fixed capacity ring of power readings. Only populated slots
// are ever reported, so a partially filled history never exposes zero fill.
type History struct {
	ring  []float32
	head  int // Next slot to write
	count int
}

// NewHistory creates a history holding up to capacity readings.
func NewHistory(capacity int) (*History, error) {
	if capacity < 2 {
		return nil, ErrCapacity
	}
	return &History{ring: make([]float32, capacity)}, nil
}

// Push appends p, overwriting the oldest reading when full.
func (h *History) Push(p float32) {
	h.ring[h.head] = p
	h.head = (h.head + 1) % len(h.ring)
	if h.count < len(h.ring) {
		h.count++
	}
}

// Len returns the number of populated slots.
func (h *History) Len() int { return h.count }

// Cap returns the capacity.
func (h *History) Cap() int { return len(h.ring) }

// At returns the i-th populated reading, oldest first.
func (h *History) At(i int) float32 {
	start := h.head - h.count
	if start < 0 {
		start += len(h.ring)
	}
	return h.ring[(start+i)%len(h.ring)]
}

// Latest returns the newest reading, or false when empty.
func (h *History) Latest() (float32, bool) {
	if h.count == 0 {
		return 0, false
	}
	return h.At(h.count - 1), true
}

// Values returns a copy of the populated readings, oldest first.
func (h *History) Values() []float32 {
	out := make([]float32, h.count)
	for i := range out {
		out[i] = h.At(i)
	}
	return out
}

// Reset discards all readings.
func (h *History) Reset() {
	clear(h.ring)
	h.head = 0
	h.count = 0
}
