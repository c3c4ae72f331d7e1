// Package summary renders solver, transaction and cache results for the terminal.
package summary

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"go.trai.ch/envy/internal/core/domain"
	"go.trai.ch/envy/internal/engine/installer"
	"go.trai.ch/envy/internal/ui/output"
	"go.trai.ch/envy/internal/ui/style"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(style.Teal)
	nameStyle   = lipgloss.NewStyle().Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(style.Slate)
	addStyle    = lipgloss.NewStyle().Foreground(style.Green)
	removeStyle = lipgloss.NewStyle().Foreground(style.Red)
	changeStyle = lipgloss.NewStyle().Foreground(style.Blue)
	warnStyle   = lipgloss.NewStyle().Foreground(style.Yellow)
	okStyle     = lipgloss.NewStyle().Foreground(style.Green).Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(style.Red).Bold(true)
)

// Printer writes human readable summaries to a writer.
type Printer struct {
	w   io.Writer
	now func() time.Time
}

// New creates a Printer for w and selects the color profile for it.
func New(w io.Writer) *Printer {
	lipgloss.SetColorProfile(output.New(w).Profile)
	return &Printer{w: w, now: time.Now}
}

func (p *Printer) line(format string, args ...any) {
	_, _ = fmt.Fprintf(p.w, format+"\n", args...)
}

// Solution prints the selected packages of a solve.
func (p *Printer) Solution(env *domain.Environment, sol domain.Solution) {
	p.line("%s %s", headerStyle.Render(env.Name), mutedStyle.Render(fmt.Sprintf("(%s): %s", env.Platform, plural(len(sol.Records), "package"))))

	rows := make([][]string, 0, len(sol.Records))
	for _, r := range sol.Records {
		rows = append(rows, []string{r.Name.String(), r.Version.String(), r.Build, channelOf(r)})
	}
	p.table(rows, nameStyle)

	if len(sol.Virtual) > 0 {
		virtual := make([]string, 0, len(sol.Virtual))
		for _, r := range sol.Virtual {
			virtual = append(virtual, r.Name.String()+" "+r.Version.String())
		}
		p.line("%s %s", mutedStyle.Render("virtual:"), strings.Join(virtual, ", "))
	}
}

// Transaction prints the operations of a transaction.
func (p *Printer) Transaction(tx domain.Transaction) {
	if tx.IsEmpty() {
		p.line("%s %s", okStyle.Render(style.Check), "All requested packages already installed.")
		return
	}

	p.line("%s %s", headerStyle.Render("Transaction:"), describeStats(tx.Stats))
	for _, op := range tx.Operations {
		p.line("  %s", operationLine(op))
	}
}

func operationLine(op domain.Operation) string {
	switch o := op.(type) {
	case domain.Install:
		return addStyle.Render(style.Plus) + " " + nameStyle.Render(o.Record.Name.String()) + " " +
			versionBuild(o.Record) + " " + mutedStyle.Render(channelOf(o.Record))
	case domain.Remove:
		return removeStyle.Render(style.Minus) + " " + nameStyle.Render(o.Record.Name.String()) + " " +
			versionBuild(o.Record.Record())
	case domain.Reinstall:
		return changeStyle.Render(style.Cycle) + " " + nameStyle.Render(o.Record.Name.String()) + " " +
			versionBuild(o.Record) + " " + mutedStyle.Render("("+string(o.Reason)+")")
	case domain.Change:
		return changeStyle.Render(style.Arrow) + " " + nameStyle.Render(o.To.Name.String()) + " " +
			versionBuild(o.From.Record()) + " " + style.Arrow + " " + versionBuild(o.To) + " " +
			mutedStyle.Render("("+o.Reason.String()+")")
	default:
		panic("unknown operation")
	}
}

func describeStats(s domain.Stats) string {
	var parts []string
	if s.Installs > 0 {
		parts = append(parts, plural(s.Installs, "install"))
	}
	if s.Changes > 0 {
		parts = append(parts, plural(s.Changes, "change"))
	}
	if s.Reinstalls > 0 {
		parts = append(parts, plural(s.Reinstalls, "reinstall"))
	}
	if s.Removes > 0 {
		parts = append(parts, plural(s.Removes, "remove"))
	}
	out := strings.Join(parts, ", ")
	if s.DownloadBytes > 0 {
		out += mutedStyle.Render(", download " + humanize.Bytes(uint64(s.DownloadBytes)))
	}
	return out
}

// Applied prints the outcome of an applied transaction.
func (p *Printer) Applied(res installer.Result, prefix string) {
	if res.Transaction.IsEmpty() {
		p.Transaction(res.Transaction)
		return
	}
	p.line("%s Linked %s, unlinked %s in %s",
		okStyle.Render(style.Check), plural(res.Linked, "package"), plural(res.Unlinked, "package"), prefix)

	for _, path := range sortedKeys(res.Clobbered) {
		p.line("  %s %s %s", warnStyle.Render(style.Warning), path,
			mutedStyle.Render("(shared by "+strings.Join(res.Clobbered[path], ", ")+")"))
	}
}

// Records prints the packages installed in a prefix.
func (p *Printer) Records(prefix string, state domain.PrefixState) {
	p.line("%s %s", headerStyle.Render(prefix), mutedStyle.Render(plural(len(state.Records), "package")))

	rows := make([][]string, 0, len(state.Records))
	for _, r := range state.Records {
		row := []string{r.Name.String(), r.Version.String(), r.Build, channelOf(r.Record())}
		if r.Broken {
			row = append(row, "broken")
		}
		rows = append(rows, row)
	}
	p.table(rows, nameStyle)

	for _, issue := range state.Issues {
		p.line("%s %s", warnStyle.Render(style.Warning), issue.Error())
	}
}

// CacheEntries prints the entries of the package cache.
func (p *Printer) CacheEntries(entries []domain.CacheEntry) {
	var total int64
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		total += e.Size
		row := []string{e.FileName, string(e.State), humanize.Bytes(uint64(e.Size)), "used " + humanize.RelTime(e.LastUsed, p.now(), "ago", "from now")}
		if e.RefCount > 0 {
			row = append(row, plural(e.RefCount, "lease"))
		}
		rows = append(rows, row)
	}

	p.line("%s %s", headerStyle.Render("Package cache:"),
		mutedStyle.Render(fmt.Sprintf("%s, %s", plural(len(entries), "entry"), humanize.Bytes(uint64(total)))))
	p.table(rows, nameStyle)
}

// GCReport prints the result of a cache collection.
func (p *Printer) GCReport(r domain.GCReport, dryRun bool) {
	verb := "Removed"
	if dryRun {
		verb = "Would remove"
	}
	p.line("%s %s %s, freeing %s", okStyle.Render(style.Check), verb,
		plural(len(r.Removed), "entry"), humanize.Bytes(uint64(r.FreedBytes)))
	for _, key := range r.Removed {
		p.line("  %s %s", removeStyle.Render(style.Minus), key)
	}
	if r.TempFiles > 0 {
		p.line("  %s %s", removeStyle.Render(style.Minus), plural(r.TempFiles, "temp file"))
	}
}

// Conflict prints the explanation of an unsatisfiable request.
func (p *Printer) Conflict(c domain.Conflict) {
	p.line("%s %s %s", errorStyle.Render(style.Cross), "Cannot satisfy", nameStyle.Render(strings.Join(c.Specs, ", ")))
	for _, l := range c.Lines {
		p.line("  %s %s", mutedStyle.Render(style.Dot), l)
	}
}

// Warnings prints skipped index entries.
func (p *Printer) Warnings(count int) {
	if count == 0 {
		return
	}
	p.line("%s %s skipped", warnStyle.Render(style.Warning), plural(count, "malformed index entry"))
}

// table prints rows as aligned columns. The first cell is styled with first.
func (p *Printer) table(rows [][]string, first lipgloss.Style) {
	var widths []int
	for _, row := range rows {
		for i, cell := range row {
			if i >= len(widths) {
				widths = append(widths, 0)
			}
			widths[i] = max(widths[i], len(cell))
		}
	}

	for _, row := range rows {
		var b strings.Builder
		b.WriteString("  ")
		for i, cell := range row {
			if i > 0 {
				b.WriteString("  ")
			}
			if i < len(row)-1 {
				cell += strings.Repeat(" ", widths[i]-len(cell))
			}
			if i == 0 {
				cell = first.Render(cell)
			}
			b.WriteString(cell)
		}
		p.line("%s", b.String())
	}
}

func versionBuild(r *domain.PackageRecord) string {
	return r.Version.String() + "-" + r.Build
}

func channelOf(r *domain.PackageRecord) string {
	if r.Channel == "" {
		return r.Subdir
	}
	name := domain.CanonicalChannelName(r.Channel)
	if r.Subdir == "" {
		return name
	}
	return name + "/" + r.Subdir
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	switch {
	case strings.HasSuffix(noun, "y"):
		noun = strings.TrimSuffix(noun, "y") + "ies"
	default:
		noun += "s"
	}
	return fmt.Sprintf("%d %s", n, noun)
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
