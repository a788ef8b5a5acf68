package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tradewire/synapse/internal/bus"
	"github.com/tradewire/synapse/internal/reception"
	"github.com/tradewire/synapse/internal/signal"
)

func newPublishCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish a signal onto the bus",
		RunE:  runPublish,
	}

	cmd.Flags().String("severity", "INFO", "Severity (CRITICAL|WARNING|INFO|OBSERVE)")
	cmd.Flags().String("domain", "", "Domain (HEALTH|TRADING|RISK|LEARNING|DIRECTION|LIFECYCLE)")
	cmd.Flags().String("scope", "BROADCAST", "Scope (BROADCAST, DIRECTED:<consumer>, TIER:<name>)")
	cmd.Flags().String("source", "cli", "Publisher identifier")
	cmd.Flags().String("content", "", "Human-readable content (required)")
	cmd.Flags().String("data", "", "Optional JSON payload")
	cmd.Flags().Bool("response-required", false, "Mark the signal as requiring a response")

	return cmd
}

func runPublish(cmd *cobra.Command, _ []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	severity, _ := cmd.Flags().GetString("severity")
	domain, _ := cmd.Flags().GetString("domain")
	scopeRaw, _ := cmd.Flags().GetString("scope")
	source, _ := cmd.Flags().GetString("source")
	content, _ := cmd.Flags().GetString("content")
	dataRaw, _ := cmd.Flags().GetString("data")
	responseRequired, _ := cmd.Flags().GetBool("response-required")

	scope, err := signal.ParseScope(scopeRaw)
	if err != nil {
		return err
	}

	var data map[string]interface{}
	if dataRaw != "" {
		if err := json.Unmarshal([]byte(dataRaw), &data); err != nil {
			return fmt.Errorf("invalid --data payload: %w", err)
		}
	}

	id, err := rt.bus.Publish(cmd.Context(), bus.PublishRequest{
		Severity:         signal.Severity(strings.ToUpper(severity)),
		Domain:           signal.Domain(strings.ToUpper(domain)),
		Scope:            scope,
		Source:           source,
		Content:          content,
		Data:             data,
		ResponseRequired: responseRequired,
	})
	if err != nil {
		return err
	}

	fmt.Println(id)
	return nil
}

func newFetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch <consumer-id>",
		Short: "Fetch pending signals for a consumer, highest priority first",
		Args:  cobra.ExactArgs(1),
		RunE:  runFetch,
	}

	cmd.Flags().Int("limit", 20, "Maximum signals to return")
	return cmd
}

func runFetch(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	deliveries, err := rt.bus.Fetch(cmd.Context(), args[0], limit)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(deliveries)
}

func newAckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ack <signal-id> <consumer-id>",
		Short: "Acknowledge a signal for a consumer (idempotent)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			return rt.bus.Acknowledge(cmd.Context(), args[0], args[1])
		},
	}
}

func newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <signal-id>",
		Short: "Resolve a signal: the underlying condition is gone",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			return rt.bus.Resolve(cmd.Context(), args[0])
		},
	}
}

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Remove resolved signals past the retention window",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := newRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			removed, err := rt.bus.SweepExpired(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("removed %d signals\n", removed)
			return nil
		},
	}
}

func newRegisterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register <consumer-id>",
		Short: "Register a consumer reception profile (overwrites any prior one)",
		Args:  cobra.ExactArgs(1),
		RunE:  runRegister,
	}

	cmd.Flags().StringSlice("primary", nil, "Primary domains")
	cmd.Flags().StringSlice("secondary", nil, "Secondary domains")
	cmd.Flags().StringSlice("tier", nil, "Tier memberships")
	return cmd
}

func runRegister(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	primary, _ := cmd.Flags().GetStringSlice("primary")
	secondary, _ := cmd.Flags().GetStringSlice("secondary")
	tiers, _ := cmd.Flags().GetStringSlice("tier")

	profile := reception.ConsumerProfile{
		ConsumerID:       args[0],
		PrimaryDomains:   toDomains(primary),
		SecondaryDomains: toDomains(secondary),
		Tiers:            tiers,
	}

	return rt.bus.RegisterConsumer(cmd.Context(), profile)
}

func toDomains(raw []string) []signal.Domain {
	out := make([]signal.Domain, 0, len(raw))
	for _, s := range raw {
		out = append(out, signal.Domain(strings.ToUpper(s)))
	}
	return out
}
