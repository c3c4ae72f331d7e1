// Package commands implements the CLI commands for the envy package manager.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.trai.ch/envy/internal/app"
	"go.trai.ch/envy/internal/build"
	"go.trai.ch/envy/internal/core/domain"
	"go.trai.ch/envy/internal/ui/summary"
)

// CLI represents the command line interface for envy.
type CLI struct {
	app     Application
	rootCmd *cobra.Command
	dir     string
}

// Application represents the application logic interface.
type Application interface {
	ConfigureLogging(verbose, json bool)
	Solve(ctx context.Context, opts app.SolveOptions) (*app.SolveResult, error)
	Plan(ctx context.Context, opts app.PlanOptions) (*app.PlanResult, error)
	Install(ctx context.Context, opts app.InstallOptions) (*app.InstallResult, error)
	List(ctx context.Context, opts app.ListOptions) (*app.ListResult, error)
	CacheList(ctx context.Context, opts app.CacheOptions) ([]domain.CacheEntry, error)
	CacheGC(ctx context.Context, opts app.CacheOptions) (domain.GCReport, error)
}

// New creates a new CLI instance with the given app.
func New(a Application) *CLI {
	rootCmd := &cobra.Command{
		Use:           "envy",
		Short:         "A conda package manager for reproducible environments",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       build.Version,
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"{{.Name}} version {{.Version}} (commit: %s, date: %s)\n",
		build.Commit,
		build.Date,
	))
	rootCmd.InitDefaultVersionFlag()
	rootCmd.Flags().Lookup("version").Usage = "Print the application version"

	rootCmd.InitDefaultHelpFlag()
	rootCmd.Flags().Lookup("help").Usage = "Show help for command"

	c := &CLI{
		app:     a,
		rootCmd: rootCmd,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&c.dir, "dir", "C", ".", "Directory to search for envy.yaml")
	flags.BoolP("verbose", "v", false, "Enable debug logging")
	flags.Bool("log-json", false, "Write logs as JSON")

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, _ []string) {
		verbose, _ := cmd.Flags().GetBool("verbose")
		logJSON, _ := cmd.Flags().GetBool("log-json")
		c.app.ConfigureLogging(verbose, logJSON)
	}

	rootCmd.AddCommand(c.newSolveCmd())
	rootCmd.AddCommand(c.newPlanCmd())
	rootCmd.AddCommand(c.newInstallCmd())
	rootCmd.AddCommand(c.newListCmd())
	rootCmd.AddCommand(c.newCacheCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput sets the output and error streams for the root command. Used for testing.
func (c *CLI) SetOutput(out, err io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(err)
}

// explain prints the conflict behind an unsatisfiable solve.
func explain(cmd *cobra.Command, err error) error {
	var unsat *domain.UnsatisfiableError
	if errors.As(err, &unsat) {
		summary.New(cmd.ErrOrStderr()).Conflict(unsat.Conflict)
	}
	return err
}
