// Package protect evaluates the controller protection rules and derives the
// duty cycle bias they request.
package protect

import (
	"github.com/chewxy/math32"

	"github.com/itohio/gomppt/pkg/config"
)

// Rule identifies a protection rule.
type Rule int

const (
	// MinimumDuty keeps the load current above zero.
	MinimumDuty Rule = iota
	// Overcurrent keeps the load current below the current limit.
	Overcurrent
	// Overvoltage keeps the input voltage below the voltage limit.
	Overvoltage

	ruleCount
)

// Duty adjustments requested by an active rule.
const (
	MinimumDutyDelta = 1
	OvercurrentDelta = -2
	OvervoltageDelta = 2
)

func (r Rule) String() string {
	switch r {
	case MinimumDuty:
		return "mdd"
	case Overcurrent:
		return "ocp"
	case Overvoltage:
		return "ovp"
	default:
		return "unknown"
	}
}

// AllRules returns all rules in evaluation order.
func AllRules() []Rule {
	return []Rule{MinimumDuty, Overcurrent, Overvoltage}
}

// Thresholds are the raw ADC limits the rules compare against.
type Thresholds struct {
	ZeroRaw        int // Zero-current offset
	OvercurrentRaw int
	OvervoltageRaw int
}

// DeriveThresholds converts the physical limits into ADC units. Raw overrides
// in cfg take precedence.
func DeriveThresholds(cfg config.ProtectionConfig, sensing config.SensingConfig, zeroRaw int) Thresholds {
	th := Thresholds{
		ZeroRaw:        zeroRaw,
		OvercurrentRaw: cfg.OvercurrentRaw,
		OvervoltageRaw: cfg.OvervoltageRaw,
	}
	if th.OvercurrentRaw == 0 {
		counts := math32.Floor(float32(cfg.MaxCurrent) / float32(sensing.AmpsPerCount()))
		th.OvercurrentRaw = zeroRaw + int(counts)
	}
	if th.OvervoltageRaw == 0 {
		th.OvervoltageRaw = int(math32.Floor(float32(cfg.MaxVoltage) / float32(sensing.VoltageScale())))
	}
	return th
}

// CheckMinimumDuty is active while the current reading is below the zero offset.
func CheckMinimumDuty(currentRaw, zeroRaw int) (bool, int) {
	if currentRaw < zeroRaw {
		return true, MinimumDutyDelta
	}
	return false, 0
}

// CheckOvercurrent is active while the current reading is above the limit.
func CheckOvercurrent(currentRaw, limitRaw int) (bool, int) {
	if currentRaw > limitRaw {
		return true, OvercurrentDelta
	}
	return false, 0
}

// CheckOvervoltage is active while the voltage reading is above the limit.
func CheckOvervoltage(voltageRaw, limitRaw int) (bool, int) {
	if voltageRaw > limitRaw {
		return true, OvervoltageDelta
	}
	return false, 0
}
