package protect

import "github.com/itohio/gomppt/pkg/config"

// Rules selects which protection rules are evaluated.
type Rules struct {
	MinimumDuty bool
	Overcurrent bool
	Overvoltage bool
}

// RulesFromConfig returns the rule set enabled in cfg.
func RulesFromConfig(cfg config.ProtectionConfig) Rules {
	return Rules{
		MinimumDuty: cfg.MinimumDuty,
		Overcurrent: cfg.Overcurrent,
		Overvoltage: cfg.Overvoltage,
	}
}

func (r Rules) enabled(rule Rule) bool {
	switch rule {
	case MinimumDuty:
		return r.MinimumDuty
	case Overcurrent:
		return r.Overcurrent
	case Overvoltage:
		return r.Overvoltage
	}
	return false
}

// Reading is the input to one protection evaluation.
type Reading struct {
	CurrentRaw int // Filtered current sense reading
	VoltageRaw int // Averaged voltage reading
}

// Flags reports which rules are active.
type Flags struct {
	MinimumDuty bool
	Overcurrent bool
	Overvoltage bool
}

// Get returns the flag for rule.
func (f Flags) Get(rule Rule) bool {
	switch rule {
	case MinimumDuty:
		return f.MinimumDuty
	case Overcurrent:
		return f.Overcurrent
	case Overvoltage:
		return f.Overvoltage
	}
	return false
}

func (f *Flags) set(rule Rule, v bool) {
	switch rule {
	case MinimumDuty:
		f.MinimumDuty = v
	case Overcurrent:
		f.Overcurrent = v
	case Overvoltage:
		f.Overvoltage = v
	}
}

// Any reports whether any rule is active.
func (f Flags) Any() bool {
	return f.MinimumDuty || f.Overcurrent || f.Overvoltage
}

// Result is the outcome of one evaluation.
type Result struct {
	Flags   Flags
	Delta   int            // Sum of the duty adjustments of all active rules
	Changed [ruleCount]bool // Rules whose flag changed in this evaluation
}

// Engine evaluates the rule table. Activation is immediate; with a non-zero
// debounce a flag stays active for that many evaluations after its condition
// clears. Flag transitions are counted for oscillation diagnostics.
type Engine struct {
	rules    Rules
	debounce int

	flags       Flags
	clearRun    [ruleCount]int
	held        [ruleCount]int // Delta of the last activation, applied while debouncing
	transitions [ruleCount]uint32
}

// NewEngine creates an engine for the given rules. A negative debounce is treated as zero.
func NewEngine(rules Rules, debounceTicks int) *Engine {
	if debounceTicks < 0 {
		debounceTicks = 0
	}
	return &Engine{
		rules:    rules,
		debounce: debounceTicks,
	}
}

// Evaluate runs every rule in order and returns the combined result.
func (e *Engine) Evaluate(r Reading, th Thresholds) Result {
	var res Result
	for _, rule := range AllRules() {
		var (
			cond  bool
			delta int
		)
		if e.rules.enabled(rule) {
			cond, delta = check(rule, r, th)
		}
		if cond {
			e.held[rule] = delta
		}

		was := e.flags.Get(rule)
		active := e.next(rule, was, cond)
		if active {
			res.Delta += e.held[rule]
		} else {
			e.held[rule] = 0
		}
		if active != was {
			e.transitions[rule]++
			res.Changed[rule] = true
		}
		e.flags.set(rule, active)
	}
	res.Flags = e.flags
	return res
}

// next returns the new flag state given the previous state and the raw condition.
func (e *Engine) next(rule Rule, was, cond bool) bool {
	if cond {
		e.clearRun[rule] = 0
		return true
	}
	if !was || !e.rules.enabled(rule) {
		e.clearRun[rule] = 0
		return false
	}
	e.clearRun[rule]++
	if e.clearRun[rule] > e.debounce {
		e.clearRun[rule] = 0
		return false
	}
	return true
}

func check(rule Rule, r Reading, th Thresholds) (bool, int) {
	switch rule {
	case MinimumDuty:
		return CheckMinimumDuty(r.CurrentRaw, th.ZeroRaw)
	case Overcurrent:
		return CheckOvercurrent(r.CurrentRaw, th.OvercurrentRaw)
	case Overvoltage:
		return CheckOvervoltage(r.VoltageRaw, th.OvervoltageRaw)
	}
	return false, 0
}

// Flags returns the current flags.
func (e *Engine) Flags() Flags { return e.flags }

// Rules returns the enabled rule set.
func (e *Engine) Rules() Rules { return e.rules }

// Transitions returns how many times the flag of rule changed state.
func (e *Engine) Transitions(rule Rule) uint32 {
	if rule < 0 || rule >= ruleCount {
		return 0
	}
	return e.transitions[rule]
}

// Reset clears flags, debounce state and counters.
func (e *Engine) Reset() {
	e.flags = Flags{}
	e.clearRun = [ruleCount]int{}
	e.held = [ruleCount]int{}
	e.transitions = [ruleCount]uint32{}
}
