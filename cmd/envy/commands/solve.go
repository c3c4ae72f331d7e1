package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/envy/internal/app"
	"go.trai.ch/envy/internal/ui/summary"
)

func (c *CLI) newSolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "solve",
		Short: "Resolve the dependencies of envy.yaml without touching the prefix",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := c.app.Solve(cmd.Context(), app.SolveOptions{Dir: c.dir})
			if err != nil {
				return explain(cmd, err)
			}

			p := summary.New(cmd.OutOrStdout())
			p.Warnings(len(res.Warnings))
			p.Solution(res.Environment, res.Solution)
			return nil
		},
	}
}

func (c *CLI) newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the transaction that would bring the prefix up to date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reinstall, _ := cmd.Flags().GetStringSlice("reinstall")

			res, err := c.app.Plan(cmd.Context(), app.PlanOptions{Dir: c.dir, Reinstall: reinstall})
			if err != nil {
				return explain(cmd, err)
			}

			p := summary.New(cmd.OutOrStdout())
			p.Warnings(len(res.Warnings))
			p.Transaction(res.Transaction)
			return nil
		},
	}
	cmd.Flags().StringSlice("reinstall", nil, "Reinstall these packages even when unchanged")
	return cmd
}
