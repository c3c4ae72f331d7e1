package telemetry_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/mock/gomock"

	"go.trai.ch/envy/internal/adapters/telemetry"
	"go.trai.ch/envy/internal/core/domain"
	"go.trai.ch/envy/internal/core/ports"
	"go.trai.ch/envy/internal/core/ports/mocks"
)

func TestInterfaceSatisfaction(_ *testing.T) {
	var _ ports.Tracer = (*telemetry.OTelTracer)(nil)
	var _ ports.Span = (*telemetry.OTelSpan)(nil)
	var _ ports.Tracer = (*telemetry.NoOpTracer)(nil)
	var _ ports.Span = (*telemetry.NoOpSpan)(nil)
	var _ ports.Reporter = telemetry.NoOpReporter{}
	var _ ports.Reporter = (*telemetry.LogReporter)(nil)
	var _ ports.Reporter = (*telemetry.ProgressReporter)(nil)
	var _ sdktrace.SpanProcessor = (*telemetry.Bridge)(nil)
}

func TestOTelTracer_RecordsAttributesAndErrors(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	shutdown := telemetry.Setup(recorder)
	t.Cleanup(func() { _ = shutdown(context.Background()) })

	tracer := telemetry.NewOTelTracer("test")
	_, span := tracer.Start(context.Background(), "solve", ports.WithAttribute("specs", 2))
	span.SetAttribute("decisions", 7)
	span.SetAttribute("platform", domain.PlatformLinux64)
	span.RecordError(errors.New("boom"))
	span.RecordError(nil)
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	s := ended[0]
	assert.Equal(t, "solve", s.Name())
	assert.Equal(t, codes.Error, s.Status().Code)
	assert.Equal(t, "boom", s.Status().Description)
	assert.Contains(t, s.Attributes(), attribute.Int("specs", 2))
	assert.Contains(t, s.Attributes(), attribute.Int("decisions", 7))
	assert.Contains(t, s.Attributes(), attribute.String("platform", "linux-64"))
}

func TestBridge_LogsFinishedSpans(t *testing.T) {
	ctrl := gomock.NewController(t)
	log := mocks.NewMockLogger(ctrl)
	log.EXPECT().Debug(gomock.Any()).Times(2)

	shutdown := telemetry.Setup(telemetry.NewBridge(log))
	t.Cleanup(func() { _ = shutdown(context.Background()) })

	tracer := telemetry.NewOTelTracer("test")
	_, ok := tracer.Start(context.Background(), "ok")
	ok.End()
	_, failed := tracer.Start(context.Background(), "failed")
	failed.RecordError(errors.New("boom"))
	failed.End()
}

func TestNoOpTracer_Start(t *testing.T) {
	tracer := telemetry.NewNoOpTracer()

	ctx := context.Background()
	got, span := tracer.Start(ctx, "test-span")
	assert.Equal(t, ctx, got)
	assert.NotNil(t, span)

	span.SetAttribute("key", "value")
	span.RecordError(errors.New("ignored"))
	span.End()
}

func TestLogReporter_Report(t *testing.T) {
	ctrl := gomock.NewController(t)
	log := mocks.NewMockLogger(ctrl)

	rec := &domain.PackageRecord{
		Name:    domain.NewPackageName("zlib"),
		Version: domain.MustParseVersion("1.3"),
		Build:   "h0",
		Subdir:  "linux-64",
		Channel: "https://conda.anaconda.org/conda-forge",
	}
	op := domain.Install{Record: rec}

	gomock.InOrder(
		log.EXPECT().Info("install conda-forge/linux-64::zlib-1.3-h0"),
		log.EXPECT().Warn(gomock.Any()),
		log.EXPECT().Debug("fetched zlib-1.3-h0 (2.0 kB)"),
		log.EXPECT().Debug("link.start zlib-1.3-h0"),
	)

	r := telemetry.NewLogReporter(log)
	ctx := context.Background()
	r.Report(ctx, domain.Event{Kind: domain.EventOperationComplete, Operation: op, Record: rec})
	r.Report(ctx, domain.Event{Kind: domain.EventOperationComplete, Operation: op, Record: rec, Err: errors.New("x")})
	r.Report(ctx, domain.Event{Kind: domain.EventFetchComplete, Record: rec, Bytes: 2000})
	r.Report(ctx, domain.Event{Kind: domain.EventLinkStart, Record: rec})
}

func TestProgressReporter(t *testing.T) {
	lipgloss.SetColorProfile(termenv.Ascii)

	ctrl := gomock.NewController(t)
	log := mocks.NewMockLogger(ctrl)
	log.EXPECT().Warn("install b-1.0-0 failed: boom").Times(1)

	var buf bytes.Buffer
	r := telemetry.NewProgressReporter(&buf, log)
	ctx := context.Background()

	a := &domain.PackageRecord{Name: domain.NewPackageName("a"), Version: domain.MustParseVersion("1.0"), Build: "0"}
	b := &domain.PackageRecord{Name: domain.NewPackageName("b"), Version: domain.MustParseVersion("1.0"), Build: "0"}

	r.Report(ctx, domain.Event{Kind: domain.EventTransactionStart, Total: 2})
	r.Report(ctx, domain.Event{Kind: domain.EventFetchComplete, Record: a, Bytes: 2048})
	r.Report(ctx, domain.Event{Kind: domain.EventOperationComplete, Operation: domain.Install{Record: a}})
	r.Report(ctx, domain.Event{Kind: domain.EventOperationComplete, Operation: domain.Install{Record: b}, Err: errors.New("boom")})
	r.Report(ctx, domain.Event{Kind: domain.EventTransactionComplete})

	out := buf.String()
	assert.Contains(t, out, "[0/2] fetched a-1.0-0 2.0 kB")
	assert.Contains(t, out, "[1/2] install a-1.0-0 2.0 kB")
	assert.True(t, strings.HasSuffix(out, "\r\033[K"))
}
