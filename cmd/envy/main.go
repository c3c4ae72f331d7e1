// Package main is the entry point for the envy package manager.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/grindlemire/graft"
	"go.trai.ch/envy/cmd/envy/commands"
	"go.trai.ch/envy/internal/adapters/telemetry"
	"go.trai.ch/envy/internal/app"
	"go.trai.ch/envy/internal/core/domain"
	_ "go.trai.ch/envy/internal/wiring"
)

// ComponentProvider is a function that returns the application components.
type ComponentProvider func(context.Context) (*app.Components, func(), error)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr, func(ctx context.Context) (*app.Components, func(), error) {
		c, _, err := graft.ExecuteFor[*app.Components](ctx)
		return c, func() {}, err
	}))
}

func run(
	ctx context.Context,
	args []string,
	stdout, stderr io.Writer,
	provider ComponentProvider,
) int {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	components, cleanup, err := provider(ctx)
	if err != nil {
		// Logger is not available yet if initialization failed
		_, _ = fmt.Fprintln(stderr, "Error: "+err.Error())
		return 1
	}
	defer cleanup()

	shutdown := telemetry.Setup(telemetry.NewBridge(components.Logger))
	defer func() { _ = shutdown(context.WithoutCancel(ctx)) }()

	cli := commands.New(components.App)
	cli.SetArgs(args)
	cli.SetOutput(stdout, stderr)

	if err := cli.Execute(ctx); err != nil {
		// The conflict explanation was already printed.
		if errors.Is(err, domain.ErrUnsatisfiable) {
			return 1
		}
		components.Logger.Error(err)
		return 1
	}
	return 0
}
