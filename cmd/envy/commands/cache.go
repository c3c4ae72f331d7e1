package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/envy/internal/app"
	"go.trai.ch/envy/internal/ui/summary"
)

func (c *CLI) newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and clean the package cache",
	}
	cmd.AddCommand(c.newCacheListCmd())
	cmd.AddCommand(c.newCacheGCCmd())
	return cmd
}

func (c *CLI) newCacheListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the cached packages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries, err := c.app.CacheList(cmd.Context(), app.CacheOptions{Dir: c.dir})
			if err != nil {
				return err
			}
			summary.New(cmd.OutOrStdout()).CacheEntries(entries)
			return nil
		},
	}
}

func (c *CLI) newCacheGCCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Remove corrupt, orphaned and unused cache entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			maxAge, _ := cmd.Flags().GetDuration("max-age")
			dryRun, _ := cmd.Flags().GetBool("dry-run")

			report, err := c.app.CacheGC(cmd.Context(), app.CacheOptions{
				Dir:    c.dir,
				MaxAge: maxAge,
				DryRun: dryRun,
			})
			if err != nil {
				return err
			}
			summary.New(cmd.OutOrStdout()).GCReport(report, dryRun)
			return nil
		},
	}
	cmd.Flags().Duration("max-age", 0, "Also remove entries unused for longer than this")
	cmd.Flags().BoolP("dry-run", "n", false, "Only report what would be removed")
	return cmd
}
