package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sa2812/skejj/internal/engine"
	"github.com/sa2812/skejj/internal/genai"
	"github.com/sa2812/skejj/internal/load"
	"github.com/sa2812/skejj/internal/model"
	"github.com/sa2812/skejj/internal/render"
	"github.com/sa2812/skejj/internal/solver"
	"github.com/sa2812/skejj/internal/validate"
)

var (
	flagHave   []string
	flagJSON   bool
	flagOutput string
	flagWidth  int
	flagFormat string
	flagModel  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "skejj",
		Short: "Constraint-based schedule solver",
		Long: `Skejj turns a declarative template of steps, dependencies and finite
resources into a concrete timed plan: start and end per step, critical path,
slack, and wall-clock times when the template is anchored.`,
	}

	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Machine-readable JSON output")

	rootCmd.AddCommand(solveCmd())
	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(ganttCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(engineCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// parseInventory turns repeated --have name=count pairs into an inventory
// map and enforces the caller-side contract before the solver runs.
func parseInventory(t *model.Template, pairs []string) (model.Inventory, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	inv := make(model.Inventory, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --have %q (want name=count)", pair)
		}
		count, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("invalid --have count in %q: %w", pair, err)
		}
		inv[strings.TrimSpace(name)] = count
	}
	if err := validate.CheckInventory(t, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

func solveTemplate(path string) (*model.Template, *model.SolvedSchedule, error) {
	t, err := load.File(path)
	if err != nil {
		return nil, nil, err
	}
	inv, err := parseInventory(t, flagHave)
	if err != nil {
		return nil, nil, err
	}
	solved, err := solver.Solve(t, inv)
	if err != nil {
		return nil, nil, err
	}
	return t, solved, nil
}

func solveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "solve <template-file>",
		Short: "Solve a template into a concrete timed plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, solved, err := solveTemplate(args[0])
			if err != nil {
				return err
			}

			if flagJSON {
				return outputJSON(solved)
			}
			if flagOutput != "" {
				data, err := json.MarshalIndent(solved, "", "  ")
				if err != nil {
					return err
				}
				return os.WriteFile(flagOutput, data, 0644)
			}

			render.Schedule(os.Stdout, t, solved)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&flagHave, "have", nil, "Inventory override, e.g. --have Oven=2 (repeatable)")
	cmd.Flags().StringVar(&flagOutput, "output", "", "Save solved schedule to file")

	return cmd
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <template-file>",
		Short: "Validate a template and report errors and advisory warnings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := load.File(args[0])
			if err != nil {
				return err
			}

			result := validate.Check(t)

			if flagJSON {
				if err := outputJSON(result); err != nil {
					return err
				}
			} else {
				render.Diagnostics(os.Stdout, result)
			}

			if !result.OK() {
				return fmt.Errorf("template has %d error(s)", len(result.Errors))
			}
			return nil
		},
	}
}

func ganttCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gantt <template-file>",
		Short: "Solve and print an ASCII Gantt chart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, solved, err := solveTemplate(args[0])
			if err != nil {
				return err
			}
			render.Gantt(os.Stdout, t, solved, flagWidth)
			render.Warnings(os.Stdout, solved.Warnings)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&flagHave, "have", nil, "Inventory override, e.g. --have Oven=2 (repeatable)")
	cmd.Flags().IntVar(&flagWidth, "width", 60, "Chart width in columns")

	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <template-file>",
		Short: "Solve and export the schedule (mermaid, csv, json)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, solved, err := solveTemplate(args[0])
			if err != nil {
				return err
			}

			var out string
			switch flagFormat {
			case "mermaid":
				out = render.Mermaid(t, solved)
			case "csv":
				out, err = render.CSV(solved)
				if err != nil {
					return err
				}
			case "json":
				data, err := json.MarshalIndent(solved, "", "  ")
				if err != nil {
					return err
				}
				out = string(data) + "\n"
			default:
				return fmt.Errorf("unknown format %q (want mermaid, csv, or json)", flagFormat)
			}

			if flagOutput != "" {
				return os.WriteFile(flagOutput, []byte(out), 0644)
			}
			fmt.Print(out)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&flagHave, "have", nil, "Inventory override, e.g. --have Oven=2 (repeatable)")
	cmd.Flags().StringVar(&flagFormat, "format", "mermaid", "Export format (mermaid, csv, json)")
	cmd.Flags().StringVar(&flagOutput, "output", "", "Write to file instead of stdout")

	return cmd
}

func generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate <brief...>",
		Short: "Generate a template from a natural-language brief via Claude",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := genai.NewClient("", flagModel)
			if err != nil {
				return err
			}

			t, err := client.Generate(context.Background(), strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("generate template: %w", err)
			}

			// Generated templates get no trust: same gate as hand-written ones.
			if result := validate.Check(t); !result.OK() {
				render.Diagnostics(os.Stderr, result)
				return fmt.Errorf("generated template failed validation")
			}

			data, err := json.MarshalIndent(t, "", "  ")
			if err != nil {
				return err
			}
			if flagOutput != "" {
				return os.WriteFile(flagOutput, data, 0644)
			}
			fmt.Println(string(data))
			return nil
		},
	}

	cmd.Flags().StringVar(&flagModel, "model", "", "Claude model override")
	cmd.Flags().StringVar(&flagOutput, "output", "", "Write template to file instead of stdout")

	return cmd
}

func engineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "engine",
		Short: "Run one JSON request from stdin (host wire protocol)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := engine.Run(os.Stdin, os.Stdout); err != nil {
				return fmt.Errorf("engine: %w", err)
			}
			return nil
		},
	}
}

func outputJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
