// Package duty holds the bounded duty cycle shared by the protection engine
// and the power tracker.
package duty

import "fmt"

// Cycle is a duty cycle clamped to [Min, Max].
type Cycle struct {
	value    int
	min, max int
	clamps   uint32 // Adjustments that hit a bound
}

// New creates a duty cycle starting at initial, clamped into range.
func New(min, max, initial int) (*Cycle, error) {
	if min >= max {
		return nil, fmt.Errorf("duty: empty range [%d, %d]", min, max)
	}
	c := &Cycle{min: min, max: max}
	c.Set(initial)
	return c, nil
}

// Value returns the current duty cycle.
func (c *Cycle) Value() int { return c.value }

// Min returns the lower bound.
func (c *Cycle) Min() int { return c.min }

// Max returns the upper bound.
func (c *Cycle) Max() int { return c.max }

// Clamps returns how many adjustments were clamped.
func (c *Cycle) Clamps() uint32 { return c.clamps }

// Adjust adds delta and clamps the result. It returns the applied change.
func (c *Cycle) Adjust(delta int) int {
	before := c.value
	c.Set(c.value + delta)
	return c.value - before
}

// Set assigns v, clamped into range.
func (c *Cycle) Set(v int) {
	switch {
	case v < c.min:
		v = c.min
		c.clamps++
	case v > c.max:
		v = c.max
		c.clamps++
	}
	c.value = v
}

// Fraction returns the duty cycle as a fraction of Max.
func (c *Cycle) Fraction() float32 {
	return float32(c.value) / float32(c.max)
}
