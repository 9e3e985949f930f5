package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/turnplan"
)

// Output formats accepted by -o.
const (
	outputTable = "table"
	outputYAML  = "yaml"
	outputJSON  = "json"
)

func newPlanCmd(a *app) *cobra.Command {
	var (
		format string
		turns  int
		output string
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the turn plan for a format and turn count",
		Long: `Print the turn plan a session would follow.

The plan is fully determined by the format and turn count; generating it
twice always yields the same sequence.`,
		Example: `  arena plan --format oxford --turns 8
  arena plan --format lincoln-douglas -o yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.load()
			if err != nil {
				return err
			}
			if format == "" {
				format = cfg.Engine.DefaultFormat
			}
			f, err := turnplan.ParseFormat(format)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("turns") {
				turns = cfg.Engine.DefaultTurnCount
			}
			if turns < turnplan.MinTurnCount || turns > turnplan.MaxTurnCount {
				return fmt.Errorf("--turns must be between %d and %d", turnplan.MinTurnCount, turnplan.MaxTurnCount)
			}

			plan := turnplan.GeneratePlan(f, turns)
			return writePlan(cmd, plan, f, turns, output)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "debate format: standard, oxford, lincoln-douglas")
	cmd.Flags().IntVarP(&turns, "turns", "n", 0, "requested turn count (2-10)")
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "output format: table, yaml, json")
	return cmd
}

func writePlan(cmd *cobra.Command, plan turnplan.Plan, f turnplan.Format, turns int, output string) error {
	out := cmd.OutOrStdout()
	switch output {
	case outputJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(plan)
	case outputYAML:
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(plan); err != nil {
			return err
		}
		return enc.Close()
	case outputTable:
		pr := newPrinter(out)
		pr.println(pr.p.title.Render(fmt.Sprintf("%s · %d turns requested", f, turns)))
		pr.println(pr.planTable(plan))
		pr.println(pr.p.muted.Render(fmt.Sprintf("%d entries, %d debater speeches, up to %d output tokens",
			len(plan), plan.DebaterTurns(), plan.MaxOutputTokens())))
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want table, yaml, or json)", output)
	}
}
