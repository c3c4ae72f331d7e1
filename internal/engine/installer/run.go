package installer

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"go.trai.ch/envy/internal/core/domain"
	"go.trai.ch/envy/internal/core/ports"
	"go.trai.ch/envy/internal/engine/planner"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// run is the state of one Apply call.
type run struct {
	installer *Installer
	prefix    string
	tx        domain.Transaction
	opts      Options
	pkgs      *packages

	// paths holds the path metadata each linking operation installs.
	paths map[domain.PackageName]domain.PathsData
	// owners maps a path to the packages holding it once the transaction is done.
	owners map[string][]domain.PackageName

	linked   atomic.Int32
	unlinked atomic.Int32

	mu      sync.Mutex
	removed []string
}

// readPaths reads the path metadata of every linking operation. A change
// that reuses the installed files keeps the installed metadata.
func (r *run) readPaths() error {
	r.paths = make(map[domain.PackageName]domain.PathsData)
	for _, op := range r.tx.Operations {
		target := domain.Target(op)
		if target == nil {
			continue
		}
		if !domain.NeedsArchive(op) {
			r.paths[target.Name] = installedPaths(domain.Source(op))
			continue
		}
		pkg := r.pkgs.get(target.Name)
		paths, err := r.installer.linker.ReadPaths(pkg.Dir())
		if err != nil {
			return zerr.With(err, "package", target.Identity())
		}
		r.paths[target.Name] = paths
	}
	return nil
}

func (r *run) linkPaths() map[string][]string {
	out := make(map[string][]string, len(r.paths))
	for name, paths := range r.paths {
		out[name.String()] = entryPaths(paths.Paths, true)
	}
	return out
}

// claim computes which packages hold each path after the transaction and
// returns the files more than one package writes.
func (r *run) claim(current []*domain.PrefixRecord) map[string][]string {
	leaving := make(map[string]bool)
	for _, op := range r.tx.Operations {
		if src := domain.Source(op); src != nil {
			leaving[src.MetaFileName()] = true
		}
	}

	r.owners = make(map[string][]domain.PackageName)
	files := make(map[string][]domain.PackageName)
	for _, rec := range current {
		if leaving[rec.MetaFileName()] {
			continue
		}
		for _, p := range planner.RecordPaths(rec) {
			r.owners[p] = append(r.owners[p], rec.Name)
		}
		for _, p := range recordFiles(rec) {
			files[p] = append(files[p], rec.Name)
		}
	}
	for _, op := range r.tx.Operations {
		target := domain.Target(op)
		if target == nil {
			continue
		}
		paths := r.paths[target.Name].Paths
		for _, p := range entryPaths(paths, true) {
			r.owners[p] = append(r.owners[p], target.Name)
		}
		for _, p := range entryPaths(paths, false) {
			files[p] = append(files[p], target.Name)
		}
	}

	clobbered := make(map[string][]string)
	for p, names := range files {
		if len(names) < 2 {
			continue
		}
		out := make([]string, len(names))
		for i, n := range names {
			out[i] = n.String()
		}
		clobbered[p] = out
	}
	return clobbered
}

// execute runs removals placed ahead of links, then the links in lanes of
// path-disjoint operations, then the remaining removals.
func (r *run) execute(ctx context.Context) error {
	ops := r.tx.Operations
	last := -1
	for i, op := range ops {
		if _, remove := op.(domain.Remove); !remove {
			last = i
		}
	}

	var early, links, deferred []domain.Operation
	for i, op := range ops {
		_, remove := op.(domain.Remove)
		switch {
		case !remove:
			links = append(links, op)
		case last >= 0 && i < last:
			early = append(early, op)
		default:
			deferred = append(deferred, op)
		}
	}

	for _, op := range early {
		if err := r.apply(ctx, op); err != nil {
			return err
		}
	}

	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.IOConcurrency)
	for _, lane := range r.lanes(links) {
		g.Go(func() error {
			for _, op := range lane {
				if err := r.apply(groupCtx, op); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, op := range deferred {
		if err := r.apply(ctx, op); err != nil {
			return err
		}
	}
	return nil
}

// lanes groups linking operations that write a common file. Lanes keep the
// planned order inside and are ordered by their first operation.
func (r *run) lanes(links []domain.Operation) [][]domain.Operation {
	parent := make([]int, len(links))
	for i := range parent {
		parent[i] = i
	}
	find := func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}

	writer := make(map[string]int)
	for i, op := range links {
		for _, p := range entryPaths(r.paths[op.Name()].Paths, false) {
			j, ok := writer[p]
			if !ok {
				writer[p] = i
				continue
			}
			if a, b := find(i), find(j); a != b {
				parent[max(a, b)] = min(a, b)
			}
		}
	}

	var out [][]domain.Operation
	laneOf := make(map[int]int)
	for i, op := range links {
		root := find(i)
		idx, ok := laneOf[root]
		if !ok {
			idx = len(out)
			laneOf[root] = idx
			out = append(out, nil)
		}
		out[idx] = append(out[idx], op)
	}
	return out
}

// apply runs one operation. Once started it is not interrupted.
func (r *run) apply(ctx context.Context, op domain.Operation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ctx = context.WithoutCancel(ctx)

	r.report(ctx, domain.EventOperationStart, op, domain.Target(op), nil)
	var err error
	switch o := op.(type) {
	case domain.Install, domain.Reinstall:
		err = r.link(ctx, op)
	case domain.Change:
		if o.Reuse {
			err = r.relabel(ctx, o)
		} else {
			err = r.link(ctx, op)
		}
	case domain.Remove:
		err = r.retire(ctx, op, o.Record, "")
	default:
		panic("unknown operation")
	}
	r.report(ctx, domain.EventOperationComplete, op, domain.Target(op), err)

	if err != nil {
		return zerr.With(err, "operation", domain.DescribeOperation(op))
	}
	return nil
}

// link places the files of the operation's target and records it. The
// replaced record is retired afterwards.
func (r *run) link(ctx context.Context, op domain.Operation) error {
	target := domain.Target(op)
	pkg := r.pkgs.get(target.Name)
	paths := r.paths[target.Name]

	ctx, span := r.installer.tracer.Start(ctx, "link", ports.WithAttribute("package", target.DistName()))
	defer span.End()

	r.report(ctx, domain.EventLinkStart, op, target, nil)
	entries, err := r.installer.linker.Link(ctx, domain.LinkRequest{
		Prefix:     r.prefix,
		PackageDir: pkg.Dir(),
		Paths:      paths,
		LinkType:   r.opts.LinkType,
		Record:     target,
	})
	r.report(ctx, domain.EventLinkComplete, op, target, err)
	if err != nil {
		span.RecordError(err)
		return err
	}
	span.SetAttribute("files", len(entries))

	version := paths.PathsVersion
	if version == 0 {
		version = 1
	}
	rec := &domain.PrefixRecord{
		PackageRecord:          *target,
		Files:                  entryPaths(entries, false),
		PathsData:              domain.PathsData{PathsVersion: version, Paths: entries},
		Link:                   &domain.LinkInfo{Source: pkg.Dir(), Type: r.opts.LinkType},
		RequestedSpec:          r.requestedSpec(op),
		InstalledAt:            r.installer.now().UnixMilli(),
		ExtractedPackageDir:    pkg.Dir(),
		PackageTarballFullPath: pkg.ArchivePath(),
	}
	if err := r.installer.store.Write(r.prefix, rec); err != nil {
		return err
	}
	r.linked.Add(1)

	if from := domain.Source(op); from != nil {
		return r.retire(ctx, op, from, rec.MetaFileName())
	}
	return nil
}

// relabel records a change whose archive content is already installed.
func (r *run) relabel(ctx context.Context, o domain.Change) error {
	rec := *o.From
	rec.PackageRecord = *o.To
	rec.RequestedSpec = r.requestedSpec(o)
	rec.InstalledAt = r.installer.now().UnixMilli()
	rec.Broken = false
	if err := r.installer.store.Write(r.prefix, &rec); err != nil {
		return err
	}
	return r.retire(ctx, o, o.From, rec.MetaFileName())
}

// retire removes the paths of from that no remaining package holds, then its
// record file unless the replacement was written under the same name.
func (r *run) retire(ctx context.Context, op domain.Operation, from *domain.PrefixRecord, keep string) error {
	var paths []string
	for _, p := range planner.RecordPaths(from) {
		if len(r.owners[p]) == 0 {
			paths = append(paths, p)
		}
	}

	r.report(ctx, domain.EventUnlinkStart, op, from.Record(), nil)
	err := r.installer.linker.Unlink(ctx, r.prefix, paths)
	if err == nil && from.MetaFileName() != keep {
		err = r.installer.store.Delete(r.prefix, from)
	}
	r.report(ctx, domain.EventUnlinkComplete, op, from.Record(), err)
	if err != nil {
		return err
	}

	r.unlinked.Add(1)
	r.mu.Lock()
	r.removed = append(r.removed, paths...)
	r.mu.Unlock()
	return nil
}

func (r *run) requestedSpec(op domain.Operation) string {
	if spec, ok := r.opts.RequestedSpecs[op.Name()]; ok {
		return spec
	}
	if from := domain.Source(op); from != nil {
		return from.RequestedSpec
	}
	return ""
}

func (r *run) removedPaths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.removed)
}

func (r *run) report(ctx context.Context, kind domain.EventKind, op domain.Operation, rec *domain.PackageRecord, err error) {
	r.installer.report(ctx, domain.Event{
		Kind:          kind,
		TransactionID: r.tx.ID,
		Operation:     op,
		Record:        rec,
		Err:           err,
	})
}

// entryPaths returns the paths of entries, directories included when dirs is set.
func entryPaths(entries []domain.PathEntry, dirs bool) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if !dirs && e.PathType == domain.PathDirectory {
			continue
		}
		out = append(out, e.Path)
	}
	return out
}

// installedPaths returns the path metadata of an installed record, built
// from its file list when the record predates paths_data.
func installedPaths(rec *domain.PrefixRecord) domain.PathsData {
	if len(rec.PathsData.Paths) > 0 {
		return rec.PathsData
	}
	paths := domain.PathsData{PathsVersion: 1}
	for _, f := range rec.Files {
		paths.Paths = append(paths.Paths, domain.PathEntry{Path: f, PathType: domain.PathHardlink})
	}
	return paths
}

// recordFiles returns the files of an installed record, without directories.
func recordFiles(rec *domain.PrefixRecord) []string {
	if len(rec.PathsData.Paths) > 0 {
		return entryPaths(rec.PathsData.Paths, false)
	}
	return rec.Files
}
