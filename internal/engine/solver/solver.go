// Package solver selects one record per required package name so that every
// dependency and constraint of the selection holds.
package solver

import (
	"context"
	"slices"
	"strings"

	"go.trai.ch/envy/internal/core/domain"
	"go.trai.ch/envy/internal/core/ports"
	"go.trai.ch/envy/internal/engine/index"
	"go.trai.ch/zerr"
)

const (
	rootSource = -1
	lockSource = -2
)

// Solver resolves SolverProblems. It is safe for concurrent use; every Solve
// builds its own search state.
type Solver struct {
	tracer ports.Tracer
	specs  *index.SpecCache
}

// New creates a Solver. Dependency strings of records that did not come out
// of an index are parsed through specs; a nil cache gets a private one.
func New(tracer ports.Tracer, specs *index.SpecCache) *Solver {
	if specs == nil {
		specs = index.NewSpecCache(index.DefaultSpecCacheSize)
	}
	return &Solver{tracer: tracer, specs: specs}
}

// Solve finds a solution for problem.
//
// Root specs naming a package no candidate provides fail with
// domain.ErrPackageNotFound before any search. Unsatisfiable problems fail
// with a *domain.UnsatisfiableError holding a minimal conflict.
func (s *Solver) Solve(ctx context.Context, problem domain.SolverProblem) (domain.Solution, error) {
	ctx, span := s.tracer.Start(ctx, "solve")
	defer span.End()
	span.SetAttribute("specs", len(problem.Specs))
	span.SetAttribute("candidates", len(problem.Available))

	st := s.newState(problem)

	if err := st.checkMissing(); err != nil {
		span.RecordError(err)
		return domain.Solution{}, err
	}
	if conflict, ok := st.checkRootIntersections(); !ok {
		err := &domain.UnsatisfiableError{Conflict: conflict}
		span.RecordError(err)
		return domain.Solution{}, err
	}

	sol, unsat, err := st.search(ctx)
	span.SetAttribute("decisions", st.decisionCount)
	span.SetAttribute("nogoods", len(st.nogoods))
	if err != nil {
		span.RecordError(err)
		return domain.Solution{}, err
	}
	if !unsat {
		return sol, nil
	}

	conflict, err := s.explain(ctx, problem)
	if err != nil {
		span.RecordError(err)
		return domain.Solution{}, err
	}
	uerr := &domain.UnsatisfiableError{Conflict: conflict}
	span.RecordError(uerr)
	return domain.Solution{}, uerr
}

// depRef is a parsed dependency or constraint of a record with its name resolved.
type depRef struct {
	spec *domain.MatchSpec
	name int
}

type requirement struct {
	spec   *domain.MatchSpec
	source int
}

type state struct {
	problem domain.SolverProblem

	names   []domain.PackageName
	nameIdx map[domain.PackageName]int

	recs    []*domain.PackageRecord
	recName []int
	recDeps [][]depRef
	recCons [][]depRef
	recOK   []bool

	// cands holds record indices per name in preference order.
	cands [][]int

	roots []domain.MatchSpec

	assigned []int
	level    []int
	reqs     [][]requirement
	cons     [][]requirement

	trail     []trailEntry
	decisions []decision

	nogoods       [][]lit
	nogoodsByLit  map[lit][]int
	nogoodSeen    map[uint64]struct{}
	decisionCount int

	conflicts []conflictRecord
}

func (s *Solver) newState(problem domain.SolverProblem) *state {
	st := &state{
		problem:      problem,
		nameIdx:      make(map[domain.PackageName]int),
		nogoodsByLit: make(map[lit][]int),
		nogoodSeen:   make(map[uint64]struct{}),
		roots:        problem.Specs,
	}

	pool := make([]*domain.PackageRecord, 0, len(problem.Available)+len(problem.Virtual))
	pool = append(pool, problem.Available...)
	for _, v := range problem.Virtual {
		pool = append(pool, v.Record())
	}
	pool = appendMissing(pool, problem.Installed)
	pool = appendMissing(pool, problem.Locked)

	// Parse dependencies first so every referenced name gets an index.
	deps := make([][]domain.MatchSpec, len(pool))
	cons := make([][]domain.MatchSpec, len(pool))
	ok := make([]bool, len(pool))
	nameSet := make(map[domain.PackageName]struct{})
	for i, r := range pool {
		nameSet[r.Name] = struct{}{}
		d, errD := s.specsOf(r.DependSpecs, r.Depends)
		c, errC := s.specsOf(r.ConstrainSpecs, r.Constrains)
		deps[i], cons[i], ok[i] = d, c, errD == nil && errC == nil
		for _, m := range d {
			nameSet[m.Name] = struct{}{}
		}
		for _, m := range c {
			nameSet[m.Name] = struct{}{}
		}
	}
	for _, m := range problem.Specs {
		nameSet[m.Name] = struct{}{}
	}

	st.names = make([]domain.PackageName, 0, len(nameSet))
	for n := range nameSet {
		st.names = append(st.names, n)
	}
	slices.SortFunc(st.names, domain.PackageName.Compare)
	for i, n := range st.names {
		st.nameIdx[n] = i
	}

	n := len(st.names)
	st.cands = make([][]int, n)
	st.assigned = make([]int, n)
	st.level = make([]int, n)
	st.reqs = make([][]requirement, n)
	st.cons = make([][]requirement, n)
	for i := range n {
		st.assigned[i] = -1
		st.level[i] = -1
	}

	st.recs = pool
	st.recName = make([]int, len(pool))
	st.recDeps = make([][]depRef, len(pool))
	st.recCons = make([][]depRef, len(pool))
	st.recOK = ok
	for i, r := range pool {
		st.recName[i] = st.nameIdx[r.Name]
		st.recDeps[i] = st.refs(deps[i])
		st.recCons[i] = st.refs(cons[i])
		st.cands[st.recName[i]] = append(st.cands[st.recName[i]], i)
	}

	installed := make(map[domain.PackageName]string, len(problem.Installed))
	for _, r := range problem.Installed {
		installed[r.Name] = r.DistName()
	}
	usePriority := problem.Priority != domain.PriorityDisabled
	for name, list := range st.cands {
		keep := installed[st.names[name]]
		slices.SortStableFunc(list, func(a, b int) int {
			return compareCandidates(pool[a], pool[b], keep, usePriority)
		})
	}

	for i := range problem.Specs {
		spec := &problem.Specs[i]
		name := st.nameIdx[spec.Name]
		st.reqs[name] = append(st.reqs[name], requirement{spec: spec, source: rootSource})
	}
	for _, r := range problem.Locked {
		pin := lockSpec(r)
		name := st.nameIdx[r.Name]
		st.cons[name] = append(st.cons[name], requirement{spec: &pin, source: lockSource})
	}

	return st
}

// compareCandidates orders candidates: the installed build first, then higher
// version, higher build number, better channel priority and identity.
func compareCandidates(a, b *domain.PackageRecord, installed string, usePriority bool) int {
	if installed != "" {
		ai, bi := a.DistName() == installed, b.DistName() == installed
		switch {
		case ai && !bi:
			return -1
		case bi && !ai:
			return 1
		}
	}
	if c := b.Version.Compare(a.Version); c != 0 {
		return c
	}
	switch {
	case a.BuildNumber > b.BuildNumber:
		return -1
	case a.BuildNumber < b.BuildNumber:
		return 1
	}
	if usePriority && a.ChannelPriority != b.ChannelPriority {
		return a.ChannelPriority - b.ChannelPriority
	}
	return strings.Compare(a.Identity(), b.Identity())
}

func (s *Solver) specsOf(parsed []domain.MatchSpec, raw []string) ([]domain.MatchSpec, error) {
	if len(parsed) == len(raw) {
		return parsed, nil
	}
	return s.specs.ParseAll(raw)
}

func (st *state) refs(specs []domain.MatchSpec) []depRef {
	if len(specs) == 0 {
		return nil
	}
	out := make([]depRef, 0, len(specs))
	for i := range specs {
		idx, ok := st.nameIdx[specs[i].Name]
		if !ok {
			continue
		}
		out = append(out, depRef{spec: &specs[i], name: idx})
	}
	return out
}

// appendMissing adds records whose dist name is not in the pool yet.
func appendMissing(pool, extra []*domain.PackageRecord) []*domain.PackageRecord {
	if len(extra) == 0 {
		return pool
	}
	known := make(map[string]struct{}, len(pool))
	for _, r := range pool {
		known[r.DistName()] = struct{}{}
	}
	for _, r := range extra {
		if _, ok := known[r.DistName()]; ok {
			continue
		}
		known[r.DistName()] = struct{}{}
		pool = append(pool, r)
	}
	return pool
}

func lockSpec(r *domain.PackageRecord) domain.MatchSpec {
	text := r.Name.String() + " ==" + r.Version.String() + " " + r.Build
	if spec, err := domain.ParseMatchSpec(text); err == nil {
		return spec
	}
	vs, err := domain.ParseVersionSpec("==" + r.Version.String())
	if err != nil {
		vs = domain.AnyVersion()
	}
	return domain.MatchSpec{Name: r.Name, Version: vs, Build: r.Build, Original: text}
}

func (st *state) checkMissing() error {
	var missing []string
	for _, spec := range st.roots {
		if len(st.cands[st.nameIdx[spec.Name]]) == 0 {
			missing = append(missing, specText(spec))
		}
	}
	if len(missing) == 0 {
		return nil
	}
	err := zerr.Wrap(domain.ErrPackageNotFound, "no channel provides "+strings.Join(missing, ", "))
	err = zerr.With(err, "spec", missing[0])
	return zerr.With(err, "specs", missing)
}

// checkRootIntersections rejects root specs on one name whose version ranges
// cannot overlap.
func (st *state) checkRootIntersections() (domain.Conflict, bool) {
	byName := make(map[int][]domain.MatchSpec)
	order := make([]int, 0, len(st.roots))
	for _, spec := range st.roots {
		n := st.nameIdx[spec.Name]
		if _, ok := byName[n]; !ok {
			order = append(order, n)
		}
		byName[n] = append(byName[n], spec)
	}
	for _, n := range order {
		specs := byName[n]
		if len(specs) < 2 {
			continue
		}
		combined := domain.AnyVersion()
		for _, spec := range specs {
			combined = combined.Intersect(spec.Version)
		}
		if combined.Satisfiable() {
			continue
		}
		texts := make([]string, len(specs))
		for i, spec := range specs {
			texts[i] = specText(spec)
		}
		return domain.Conflict{
			Specs: texts,
			Lines: []string{strings.Join(texts, " and ") + " have no version in common"},
		}, false
	}
	return domain.Conflict{}, true
}

func specText(spec domain.MatchSpec) string {
	if spec.Original != "" {
		return strings.TrimSpace(spec.Original)
	}
	return spec.String()
}
