package telemetry

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"go.trai.ch/envy/internal/core/domain"
	"go.trai.ch/envy/internal/core/ports"
)

// LogReporter writes transaction events to a logger. Operation completions
// and failures go to info and warn, everything else to debug.
type LogReporter struct {
	logger ports.Logger
}

// NewLogReporter creates a LogReporter.
func NewLogReporter(logger ports.Logger) *LogReporter {
	return &LogReporter{logger: logger}
}

// Report implements ports.Reporter.
func (r *LogReporter) Report(_ context.Context, e domain.Event) {
	switch e.Kind {
	case domain.EventOperationComplete:
		if e.Err != nil {
			r.logger.Warn(fmt.Sprintf("%s failed: %v", domain.DescribeOperation(e.Operation), e.Err))
			return
		}
		r.logger.Info(domain.DescribeOperation(e.Operation))
	case domain.EventTransactionComplete:
		if e.Err != nil {
			r.logger.Warn(fmt.Sprintf("transaction %s failed", e.TransactionID))
			return
		}
		r.logger.Debug(fmt.Sprintf("transaction %s complete", e.TransactionID))
	case domain.EventFetchComplete:
		r.logger.Debug(fmt.Sprintf("fetched %s (%s)", recordName(e.Record), humanize.Bytes(uint64(max(e.Bytes, 0)))))
	default:
		r.logger.Debug(fmt.Sprintf("%s %s", e.Kind, recordName(e.Record)))
	}
}

func recordName(r *domain.PackageRecord) string {
	if r == nil {
		return ""
	}
	return r.DistName()
}
