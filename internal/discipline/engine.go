// Package discipline derives override directives from accumulated trading
// state: time since last action and capital/position utilization. Evaluation
// is deterministic and side-effect-free; the caller decides whether the
// resulting directive is worth publishing as a signal.
package discipline

import (
	"fmt"
)

// Level is the escalation level of a directive.
type Level string

const (
	LevelNormal  Level = "NORMAL"
	LevelWarning Level = "WARNING"
	LevelAlarm   Level = "ALARM"
)

func (l Level) rank() int {
	switch l {
	case LevelAlarm:
		return 2
	case LevelWarning:
		return 1
	default:
		return 0
	}
}

func maxLevel(a, b Level) Level {
	if b.rank() > a.rank() {
		return b
	}
	return a
}

// Facts are the caller-supplied inputs for one evaluation. Not persisted.
type Facts struct {
	DaysSinceLastAction int     `json:"days_since_last_action"`
	CapitalUtilization  float64 `json:"capital_utilization"`  // [0,1]
	PositionUtilization float64 `json:"position_utilization"` // [0,1]
}

// Thresholds holds the rule tunables.
type Thresholds struct {
	AlarmDays           int     `yaml:"alarm_days"`
	WarningDays         int     `yaml:"warning_days"`
	AlarmCapitalFloor   float64 `yaml:"alarm_capital_floor"`
	WarningCapitalFloor float64 `yaml:"warning_capital_floor"`
	ForcedMinimumTier   int     `yaml:"forced_minimum_tier"`
}

// DefaultThresholds returns the standard rule tunables.
func DefaultThresholds() Thresholds {
	return Thresholds{
		AlarmDays:           3,
		WarningDays:         2,
		AlarmCapitalFloor:   0.05,
		WarningCapitalFloor: 0.10,
		ForcedMinimumTier:   3,
	}
}

// Directive is the output of one evaluation. ForcedMinimumTier is nil when no
// idleness rule fired.
type Directive struct {
	Level             Level    `json:"level"`
	ForcedMinimumTier *int     `json:"forced_minimum_tier,omitempty"`
	Messages          []string `json:"messages,omitempty"`
}

// Evaluate applies every rule against the facts. All applicable rules fire:
// the level is the maximum severity reached and messages accumulate.
func Evaluate(facts Facts, thresholds Thresholds) Directive {
	directive := Directive{Level: LevelNormal}

	// Idleness rules. The warning rule is suppressed when the alarm rule
	// already fired for the same fact.
	switch {
	case facts.DaysSinceLastAction >= thresholds.AlarmDays:
		directive.Level = maxLevel(directive.Level, LevelAlarm)
		tier := thresholds.ForcedMinimumTier
		directive.ForcedMinimumTier = &tier
		directive.Messages = append(directive.Messages,
			fmt.Sprintf("no trading action for %d days; mandate is being buried, forcing minimum tier %d",
				facts.DaysSinceLastAction, tier))
	case facts.DaysSinceLastAction >= thresholds.WarningDays:
		directive.Level = maxLevel(directive.Level, LevelWarning)
		tier := thresholds.ForcedMinimumTier
		directive.ForcedMinimumTier = &tier
		directive.Messages = append(directive.Messages,
			fmt.Sprintf("no trading action for %d days; forcing minimum tier %d",
				facts.DaysSinceLastAction, tier))
	}

	// Capital utilization rules, same alarm-suppresses-warning shape.
	switch {
	case facts.CapitalUtilization < thresholds.AlarmCapitalFloor:
		directive.Level = maxLevel(directive.Level, LevelAlarm)
		directive.Messages = append(directive.Messages,
			fmt.Sprintf("capital utilization %.1f%% below alarm floor %.1f%%; capital is idle",
				facts.CapitalUtilization*100, thresholds.AlarmCapitalFloor*100))
	case facts.CapitalUtilization < thresholds.WarningCapitalFloor:
		directive.Level = maxLevel(directive.Level, LevelWarning)
		directive.Messages = append(directive.Messages,
			fmt.Sprintf("capital utilization %.1f%% below warning floor %.1f%%",
				facts.CapitalUtilization*100, thresholds.WarningCapitalFloor*100))
	}

	// Informational, appended regardless of level.
	if facts.PositionUtilization == 0 {
		directive.Messages = append(directive.Messages, "no positions open")
	}

	return directive
}
