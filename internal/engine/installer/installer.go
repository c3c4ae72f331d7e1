// Package installer applies transactions to a prefix.
package installer

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.trai.ch/envy/internal/core/domain"
	"go.trai.ch/envy/internal/core/ports"
	"go.trai.ch/envy/internal/engine/planner"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// Options tune how a transaction is applied.
type Options struct {
	FetchConcurrency int
	IOConcurrency    int
	LinkType         domain.LinkType
	// RequestedSpecs maps a package to the spec text that asked for it.
	RequestedSpecs map[domain.PackageName]string
}

// OptionsFromSettings derives the options of a settings block.
func OptionsFromSettings(s domain.Settings) Options {
	return Options{
		FetchConcurrency: s.FetchConcurrency,
		IOConcurrency:    s.IOConcurrency,
		LinkType:         s.LinkType,
	}
}

func (o Options) withDefaults() Options {
	defaults := domain.DefaultSettings()
	if o.FetchConcurrency < 1 {
		o.FetchConcurrency = defaults.FetchConcurrency
	}
	if o.IOConcurrency < 1 {
		o.IOConcurrency = defaults.IOConcurrency
	}
	if o.LinkType == "" {
		o.LinkType = defaults.LinkType
	}
	return o
}

// Result describes an applied transaction.
type Result struct {
	// Transaction is the transaction in the order it ran.
	Transaction domain.Transaction
	// Linked counts packages whose files were linked.
	Linked int
	// Unlinked counts packages whose files were removed.
	Unlinked int
	// Clobbered maps a path written by more than one package to those packages.
	Clobbered map[string][]string
}

// Installer applies transactions using a package cache, a prefix store and a linker.
type Installer struct {
	cache    ports.PackageCache
	store    ports.PrefixStore
	linker   ports.Linker
	reporter ports.Reporter
	tracer   ports.Tracer
	logger   ports.Logger
	now      func() time.Time
}

// New creates an Installer.
func New(
	cache ports.PackageCache,
	store ports.PrefixStore,
	linker ports.Linker,
	reporter ports.Reporter,
	tracer ports.Tracer,
	logger ports.Logger,
) *Installer {
	return &Installer{
		cache:    cache,
		store:    store,
		linker:   linker,
		reporter: reporter,
		tracer:   tracer,
		logger:   logger,
		now:      time.Now,
	}
}

// Apply runs tx against prefix under the prefix lock. Archives are acquired
// up front; operations then run in sequenced order, with operations that
// share no path running concurrently. An operation that has started always
// completes; cancellation is honored between operations and leaves the
// transaction journal behind, so the next load reports the partial state.
func (in *Installer) Apply(ctx context.Context, prefix string, tx domain.Transaction, opts Options) (result Result, err error) {
	opts = opts.withDefaults()
	result.Transaction = tx

	ctx, span := in.tracer.Start(ctx, "install",
		ports.WithAttribute("prefix", prefix),
		ports.WithAttribute("transaction", tx.ID.String()),
		ports.WithAttribute("operations", len(tx.Operations)),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}()

	unlock, err := in.store.Lock(prefix)
	if err != nil {
		return result, err
	}
	defer func() {
		if uerr := unlock(); uerr != nil {
			in.logger.Warn("failed to release prefix lock: " + uerr.Error())
		}
	}()

	if tx.IsEmpty() {
		return result, nil
	}

	state, err := in.store.Load(ctx, prefix)
	if err != nil {
		return result, err
	}
	if err := checkBase(tx, state); err != nil {
		return result, err
	}

	in.report(ctx, domain.Event{Kind: domain.EventTransactionStart, TransactionID: tx.ID, Total: len(tx.Operations)})
	defer func() {
		in.report(ctx, domain.Event{Kind: domain.EventTransactionComplete, TransactionID: tx.ID, Err: err})
	}()

	if err := in.store.BeginJournal(prefix, tx); err != nil {
		return result, err
	}

	pkgs, err := in.acquire(ctx, tx, opts)
	defer pkgs.release(in.logger)
	if err != nil {
		in.abandon(prefix)
		return result, err
	}

	r := &run{
		installer: in,
		prefix:    prefix,
		tx:        tx,
		opts:      opts,
		pkgs:      pkgs,
	}
	if err := r.readPaths(); err != nil {
		in.abandon(prefix)
		return result, err
	}

	tx = planner.Sequence(tx, r.linkPaths())
	r.tx = tx
	result.Transaction = tx
	result.Clobbered = r.claim(state.Records)
	for _, p := range sortedKeys(result.Clobbered) {
		in.logger.Warn(fmt.Sprintf("%s is written by %v, the last one wins", p, result.Clobbered[p]))
	}

	err = r.execute(ctx)
	result.Linked = int(r.linked.Load())
	result.Unlinked = int(r.unlinked.Load())
	if err != nil {
		return result, err
	}

	if err := in.linker.RemoveEmptyDirs(prefix, r.removedPaths()); err != nil {
		in.logger.Warn("failed to remove empty directories: " + err.Error())
	}

	if err := in.store.EndJournal(prefix); err != nil {
		return result, err
	}
	return result, nil
}

// checkBase verifies that tx was planned against the records now in the
// prefix. Another run may have changed it before the lock was taken.
func checkBase(tx domain.Transaction, state domain.PrefixState) error {
	installed := make(map[domain.PackageName][]string, len(state.Records))
	for _, r := range state.Records {
		installed[r.Name] = append(installed[r.Name], r.Identity())
	}
	for _, op := range tx.Operations {
		present := installed[op.Name()]
		ok := len(present) == 0
		if from := domain.Source(op); from != nil {
			ok = slices.Contains(present, from.Identity())
		}
		if !ok {
			err := zerr.Wrap(domain.ErrStaleTransaction, "cannot apply transaction")
			return zerr.With(err, "operation", domain.DescribeOperation(op))
		}
	}
	return nil
}

// abandon clears the journal of a transaction that failed before touching the prefix.
func (in *Installer) abandon(prefix string) {
	if err := in.store.EndJournal(prefix); err != nil {
		in.logger.Warn("failed to clear transaction journal: " + err.Error())
	}
}

func (in *Installer) report(ctx context.Context, e domain.Event) {
	if in.reporter != nil {
		in.reporter.Report(ctx, e)
	}
}

// packages holds the leased cache entries of a transaction by name.
type packages struct {
	mu     sync.Mutex
	byName map[domain.PackageName]ports.CachedPackage
}

func (p *packages) add(name domain.PackageName, pkg ports.CachedPackage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byName[name] = pkg
}

func (p *packages) get(name domain.PackageName) ports.CachedPackage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.byName[name]
}

func (p *packages) release(logger ports.Logger) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for name, pkg := range p.byName {
		if err := pkg.Release(); err != nil {
			logger.Warn(fmt.Sprintf("failed to release cache lease of %s: %v", name, err))
		}
	}
	clear(p.byName)
}

// acquire leases the archive of every linking operation, largest first.
func (in *Installer) acquire(ctx context.Context, tx domain.Transaction, opts Options) (*packages, error) {
	pkgs := &packages{byName: make(map[domain.PackageName]ports.CachedPackage)}

	var records []*domain.PackageRecord
	for _, op := range tx.Operations {
		if domain.NeedsArchive(op) {
			records = append(records, domain.Target(op))
		}
	}
	if len(records) == 0 {
		return pkgs, nil
	}
	slices.SortStableFunc(records, func(a, b *domain.PackageRecord) int {
		return cmp.Compare(b.Size, a.Size)
	})

	ctx, span := in.tracer.Start(ctx, "fetch", ports.WithAttribute("packages", len(records)))
	defer span.End()

	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(opts.FetchConcurrency)

	for _, rec := range records {
		g.Go(func() error {
			in.report(groupCtx, domain.Event{
				Kind:          domain.EventFetchStart,
				TransactionID: tx.ID,
				Record:        rec,
				Bytes:         rec.Size,
			})
			pkg, err := in.cache.Acquire(groupCtx, rec)
			done := domain.Event{Kind: domain.EventFetchComplete, TransactionID: tx.ID, Record: rec, Err: err}
			if err == nil {
				done.Bytes = pkg.Entry().Size
				pkgs.add(rec.Name, pkg)
			}
			in.report(groupCtx, done)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return pkgs, err
	}
	return pkgs, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
