package discipline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate_IdleAlarm(t *testing.T) {
	directive := Evaluate(Facts{
		DaysSinceLastAction: 3,
		CapitalUtilization:  0.5,
		PositionUtilization: 0.5,
	}, DefaultThresholds())

	assert.Equal(t, LevelAlarm, directive.Level)
	require.NotNil(t, directive.ForcedMinimumTier)
	assert.Equal(t, 3, *directive.ForcedMinimumTier)
	require.Len(t, directive.Messages, 1)
	assert.Contains(t, directive.Messages[0], "mandate")
}

func TestEvaluate_AllClear(t *testing.T) {
	directive := Evaluate(Facts{
		DaysSinceLastAction: 0,
		CapitalUtilization:  0.5,
		PositionUtilization: 0.5,
	}, DefaultThresholds())

	assert.Equal(t, LevelNormal, directive.Level)
	assert.Nil(t, directive.ForcedMinimumTier)
	assert.Empty(t, directive.Messages)
}

func TestEvaluate_IdleWarning(t *testing.T) {
	directive := Evaluate(Facts{
		DaysSinceLastAction: 2,
		CapitalUtilization:  0.5,
		PositionUtilization: 0.5,
	}, DefaultThresholds())

	assert.Equal(t, LevelWarning, directive.Level)
	require.NotNil(t, directive.ForcedMinimumTier)
	assert.Equal(t, 3, *directive.ForcedMinimumTier)
}

func TestEvaluate_CapitalRules(t *testing.T) {
	tests := []struct {
		name    string
		capital float64
		want    Level
	}{
		{"below_alarm_floor", 0.02, LevelAlarm},
		{"at_alarm_floor_is_warning", 0.05, LevelWarning},
		{"below_warning_floor", 0.08, LevelWarning},
		{"at_warning_floor_is_normal", 0.10, LevelNormal},
		{"healthy_utilization", 0.60, LevelNormal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			directive := Evaluate(Facts{
				DaysSinceLastAction: 0,
				CapitalUtilization:  tt.capital,
				PositionUtilization: 0.5,
			}, DefaultThresholds())

			assert.Equal(t, tt.want, directive.Level)
			// Capital rules never force a tier on their own.
			assert.Nil(t, directive.ForcedMinimumTier)
		})
	}
}

func TestEvaluate_RulesAccumulate(t *testing.T) {
	// All applicable rules fire: level is the max reached, messages add up.
	directive := Evaluate(Facts{
		DaysSinceLastAction: 2,    // warning
		CapitalUtilization:  0.01, // alarm
		PositionUtilization: 0,    // informational
	}, DefaultThresholds())

	assert.Equal(t, LevelAlarm, directive.Level)
	require.NotNil(t, directive.ForcedMinimumTier)
	assert.Len(t, directive.Messages, 3)
	assert.Contains(t, directive.Messages[2], "no positions open")
}

func TestEvaluate_ZeroPositionsAlwaysNoted(t *testing.T) {
	directive := Evaluate(Facts{
		DaysSinceLastAction: 0,
		CapitalUtilization:  0.5,
		PositionUtilization: 0,
	}, DefaultThresholds())

	assert.Equal(t, LevelNormal, directive.Level)
	require.Len(t, directive.Messages, 1)
	assert.Contains(t, directive.Messages[0], "no positions open")
}

func TestEvaluate_AlarmSuppressesIdleWarning(t *testing.T) {
	directive := Evaluate(Facts{
		DaysSinceLastAction: 10,
		CapitalUtilization:  0.5,
		PositionUtilization: 0.5,
	}, DefaultThresholds())

	assert.Equal(t, LevelAlarm, directive.Level)
	// Only the alarm message fires for the idleness fact, not both.
	assert.Len(t, directive.Messages, 1)
}

func TestEvaluate_Deterministic(t *testing.T) {
	facts := Facts{DaysSinceLastAction: 4, CapitalUtilization: 0.03, PositionUtilization: 0}

	first := Evaluate(facts, DefaultThresholds())
	second := Evaluate(facts, DefaultThresholds())

	assert.Equal(t, first, second)
}
