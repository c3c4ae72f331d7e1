package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.trai.ch/envy/internal/adapters/telemetry"
	"go.trai.ch/envy/internal/app"
	"go.trai.ch/envy/internal/core/domain"
	"go.trai.ch/envy/internal/core/ports/mocks"
	"go.trai.ch/envy/internal/engine/index"
	"go.trai.ch/envy/internal/engine/solver"
	"go.uber.org/mock/gomock"
)

func newApp(ctrl *gomock.Controller, loader *mocks.MockConfigLoader, logger *mocks.MockLogger) *app.App {
	tracer := telemetry.NewNoOpTracer()
	specs := index.NewSpecCache(0)
	return app.New(
		loader,
		logger,
		tracer,
		mocks.NewMockPrefixStore(ctrl),
		mocks.NewMockVirtualDetector(ctrl),
		solver.New(tracer, specs),
		specs,
		nil,
		nil,
		nil,
	)
}

// TestRun_Success verifies that the run function returns 0 when the command succeeds.
func TestRun_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	logger := mocks.NewMockLogger(ctrl)

	provider := func(_ context.Context) (*app.Components, func(), error) {
		return &app.Components{
			App:    newApp(ctrl, mocks.NewMockConfigLoader(ctrl), logger),
			Logger: logger,
		}, func() {}, nil
	}

	stdout := new(bytes.Buffer)
	exitCode := run(context.Background(), []string{"version"}, stdout, new(bytes.Buffer), provider)
	assert.Equal(t, 0, exitCode)
	assert.Contains(t, stdout.String(), "envy version")
}

// TestRun_InitializationError verifies that run returns 1 when component initialization fails.
func TestRun_InitializationError(t *testing.T) {
	provider := func(_ context.Context) (*app.Components, func(), error) {
		return nil, nil, errors.New("init failed")
	}

	stderr := new(bytes.Buffer)
	exitCode := run(context.Background(), []string{"version"}, new(bytes.Buffer), stderr, provider)

	assert.Equal(t, 1, exitCode)
	assert.Contains(t, stderr.String(), "Error: init failed")
}

// TestRun_ExecutionError verifies that run logs the error and returns 1 when a command fails.
func TestRun_ExecutionError(t *testing.T) {
	ctrl := gomock.NewController(t)
	loader := mocks.NewMockConfigLoader(ctrl)
	logger := mocks.NewMockLogger(ctrl)

	loader.EXPECT().Load("/nowhere").Return(nil, domain.ErrConfigNotFound)
	logger.EXPECT().Error(gomock.Any()).Times(1)

	provider := func(_ context.Context) (*app.Components, func(), error) {
		return &app.Components{App: newApp(ctrl, loader, logger), Logger: logger}, func() {}, nil
	}

	exitCode := run(context.Background(), []string{"list", "-C", "/nowhere"}, new(bytes.Buffer), new(bytes.Buffer), provider)
	assert.Equal(t, 1, exitCode)
}

// TestRun_Cleanup verifies that the provider's cleanup runs.
func TestRun_Cleanup(t *testing.T) {
	ctrl := gomock.NewController(t)
	logger := mocks.NewMockLogger(ctrl)

	cleaned := false
	provider := func(_ context.Context) (*app.Components, func(), error) {
		return &app.Components{
			App:    newApp(ctrl, mocks.NewMockConfigLoader(ctrl), logger),
			Logger: logger,
		}, func() { cleaned = true }, nil
	}

	exitCode := run(context.Background(), []string{"version"}, new(bytes.Buffer), new(bytes.Buffer), provider)
	assert.Equal(t, 0, exitCode)
	assert.True(t, cleaned)
}
