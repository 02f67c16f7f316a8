package mppt

import "github.com/chewxy/math32"

// Direction is the duty cycle change requested by the tracker.
type Direction int

const (
	Hold Direction = iota
	Increase
	Decrease
)

func (d Direction) String() string {
	switch d {
	case Increase:
		return "increase"
	case Decrease:
		return "decrease"
	default:
		return "hold"
	}
}

// Sign returns +1, -1 or 0.
func (d Direction) Sign() int {
	switch d {
	case Increase:
		return 1
	case Decrease:
		return -1
	}
	return 0
}

// Tracker decides the duty cycle direction from a power history.
type Tracker struct {
	step int
}

// NewTracker creates a tracker that moves the duty cycle by step per decision.
func NewTracker(step int) *Tracker {
	return &Tracker{step: step}
}

// Step returns the direction for the newest reading in h. The newest reading
// is compared with the peak of the earlier populated readings: above it climbs,
// equal holds, below it follows the trend of the last two readings, backing off
// when power was falling and climbing otherwise. A single reading becomes the
// initial peak and holds.
func (t *Tracker) Step(h *History) Direction {
	n := h.Len()
	if n < 2 {
		return Hold
	}

	current := h.At(n - 1)
	peak := Peak(h)
	switch {
	case current > peak:
		return Increase
	case current == peak:
		return Hold
	}

	if h.At(n-1) < h.At(n-2) {
		return Decrease
	}
	return Increase
}

// Delta returns the duty cycle change for direction d.
func (t *Tracker) Delta(d Direction) int {
	return d.Sign() * t.step
}

// Peak returns the maximum of every populated reading except the newest.
// With fewer than two readings the newest is returned.
func Peak(h *History) float32 {
	n := h.Len()
	switch n {
	case 0:
		return 0
	case 1:
		return h.At(0)
	}
	peak := math32.Inf(-1)
	for i := 0; i < n-1; i++ {
		peak = math32.Max(peak, h.At(i))
	}
	return peak
}
