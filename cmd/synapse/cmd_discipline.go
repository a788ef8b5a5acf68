package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/tradewire/synapse/internal/bus"
	"github.com/tradewire/synapse/internal/discipline"
	"github.com/tradewire/synapse/internal/signal"
)

func newDisciplineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discipline",
		Short: "Evaluate discipline rules against supplied trading facts",
		Long: `Evaluates idleness and utilization rules against the supplied facts and
prints the resulting directive. With --publish-to, a WARNING or ALARM
directive is also published as a DIRECTION signal directed at that consumer.`,
		RunE: runDiscipline,
	}

	cmd.Flags().Int("days-idle", 0, "Days since last trading action")
	cmd.Flags().Float64("capital", 0, "Capital utilization in [0,1]")
	cmd.Flags().Float64("position", 0, "Position utilization in [0,1]")
	cmd.Flags().String("publish-to", "", "Consumer id to direct the resulting signal at")

	return cmd
}

func runDiscipline(cmd *cobra.Command, _ []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	daysIdle, _ := cmd.Flags().GetInt("days-idle")
	capital, _ := cmd.Flags().GetFloat64("capital")
	position, _ := cmd.Flags().GetFloat64("position")
	publishTo, _ := cmd.Flags().GetString("publish-to")

	facts := discipline.Facts{
		DaysSinceLastAction: daysIdle,
		CapitalUtilization:  capital,
		PositionUtilization: position,
	}

	directive := discipline.Evaluate(facts, rt.config.Discipline)

	if publishTo != "" && directive.Level != discipline.LevelNormal {
		// Always WARNING on the wire: a CRITICAL signal bypasses reception
		// filtering for every consumer, which would defeat the directed scope.
		data := map[string]interface{}{
			"level":    string(directive.Level),
			"messages": directive.Messages,
		}
		if directive.ForcedMinimumTier != nil {
			data["forced_minimum_tier"] = *directive.ForcedMinimumTier
		}

		content := directive.Messages[0]
		if _, err := rt.bus.Publish(cmd.Context(), bus.PublishRequest{
			Severity:         signal.SeverityWarning,
			Domain:           signal.DomainDirection,
			Scope:            signal.Directed(publishTo),
			Source:           "discipline-engine",
			Content:          content,
			Data:             data,
			ResponseRequired: directive.Level == discipline.LevelAlarm,
		}); err != nil {
			return err
		}
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(directive)
}
