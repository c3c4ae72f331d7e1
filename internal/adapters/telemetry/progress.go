package telemetry

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"go.trai.ch/envy/internal/core/domain"
	"go.trai.ch/envy/internal/core/ports"
	"go.trai.ch/envy/internal/ui/style"
)

const clearLine = "\r\033[K"

var (
	counterStyle = lipgloss.NewStyle().Foreground(style.Teal).Bold(true)
	detailStyle  = lipgloss.NewStyle().Foreground(style.Slate)
)

// ProgressReporter redraws one status line per event on an interactive
// terminal. Failures are also handed to the logger.
type ProgressReporter struct {
	mu      sync.Mutex
	w       io.Writer
	logger  ports.Logger
	total   int
	done    int
	fetched int64
}

// NewProgressReporter creates a ProgressReporter writing to w.
func NewProgressReporter(w io.Writer, logger ports.Logger) *ProgressReporter {
	return &ProgressReporter{w: w, logger: logger}
}

// Report implements ports.Reporter.
func (r *ProgressReporter) Report(_ context.Context, e domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch e.Kind {
	case domain.EventTransactionStart:
		r.total, r.done, r.fetched = e.Total, 0, 0
	case domain.EventFetchComplete:
		r.fetched += max(e.Bytes, 0)
		r.draw("fetched " + recordName(e.Record))
	case domain.EventOperationStart:
		r.draw(domain.DescribeOperation(e.Operation))
	case domain.EventOperationComplete:
		r.done++
		if e.Err != nil {
			r.clear()
			r.logger.Warn(fmt.Sprintf("%s failed: %v", domain.DescribeOperation(e.Operation), e.Err))
			return
		}
		r.draw(domain.DescribeOperation(e.Operation))
	case domain.EventTransactionComplete:
		r.clear()
	}
}

func (r *ProgressReporter) draw(detail string) {
	counter := counterStyle.Render(fmt.Sprintf("[%d/%d]", r.done, r.total))
	suffix := ""
	if r.fetched > 0 {
		suffix = " " + detailStyle.Render(humanize.Bytes(uint64(r.fetched)))
	}
	_, _ = fmt.Fprintf(r.w, "%s%s %s%s", clearLine, counter, detail, suffix)
}

func (r *ProgressReporter) clear() {
	_, _ = io.WriteString(r.w, clearLine)
}
