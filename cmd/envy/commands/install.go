package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/envy/internal/app"
	"go.trai.ch/envy/internal/ui/summary"
)

func (c *CLI) newInstallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Solve envy.yaml and apply the result to the prefix",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			reinstall, _ := cmd.Flags().GetStringSlice("reinstall")

			res, err := c.app.Install(cmd.Context(), app.InstallOptions{
				Dir:       c.dir,
				Reinstall: reinstall,
				DryRun:    dryRun,
			})
			if err != nil {
				return explain(cmd, err)
			}

			p := summary.New(cmd.OutOrStdout())
			p.Warnings(len(res.Warnings))
			if res.DryRun {
				p.Transaction(res.Transaction)
				return nil
			}
			p.Applied(res.Applied, res.Environment.Prefix)
			return nil
		},
	}
	cmd.Flags().BoolP("dry-run", "n", false, "Only show the transaction")
	cmd.Flags().StringSlice("reinstall", nil, "Reinstall these packages even when unchanged")
	return cmd
}

func (c *CLI) newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the packages installed in the prefix",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := c.app.List(cmd.Context(), app.ListOptions{Dir: c.dir})
			if err != nil {
				return err
			}
			summary.New(cmd.OutOrStdout()).Records(res.Environment.Prefix, res.State)
			return nil
		},
	}
}
