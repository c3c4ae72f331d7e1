package index

import (
	"context"
	"runtime"

	"go.trai.ch/envy/internal/core/domain"
	"go.trai.ch/envy/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// Loader fetches the index documents of a channel list and merges them.
type Loader struct {
	source ports.RepodataSource
	parser *Parser
}

// NewLoader creates a Loader reading documents from source.
func NewLoader(source ports.RepodataSource, parser *Parser) *Loader {
	if parser == nil {
		parser = defaultParser
	}
	return &Loader{source: source, parser: parser}
}

// Load fetches the platform and noarch subdir of every channel concurrently
// and merges them in channel order. A subdir a channel does not carry is
// skipped. The warnings of all documents are returned together.
func (l *Loader) Load(
	ctx context.Context,
	channels []domain.Channel,
	platform domain.Platform,
	mode domain.ChannelPriorityMode,
) (*Index, []Warning, error) {
	subdirs := []string{string(platform)}
	if platform != domain.PlatformNoArch {
		subdirs = append(subdirs, string(domain.PlatformNoArch))
	}

	type slot struct {
		index    *ChannelIndex
		warnings []Warning
		priority int
	}
	slots := make([]slot, len(channels)*len(subdirs))

	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	for ci, channel := range channels {
		for si, subdir := range subdirs {
			idx := ci*len(subdirs) + si
			g.Go(func() error {
				raw, err := l.source.Fetch(groupCtx, channel, subdir)
				if err != nil {
					return zerr.With(zerr.With(err, "channel", channel.Name), "subdir", subdir)
				}
				if raw == nil {
					return nil
				}
				parsed, warnings, err := l.parser.Parse(channel, subdir, raw)
				if err != nil {
					return err
				}
				slots[idx] = slot{index: parsed, warnings: warnings, priority: channel.Priority}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	ix := New(mode)
	var warnings []Warning
	for _, s := range slots {
		if s.index == nil {
			continue
		}
		ix.Merge(s.index, s.priority)
		warnings = append(warnings, s.warnings...)
	}
	return ix, warnings, nil
}
