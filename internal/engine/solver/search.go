package solver

import (
	"context"
	"slices"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/envy/internal/core/domain"
	"go.trai.ch/zerr"
)

// lit is the assignment of a record to a name.
type lit struct {
	name int
	rec  int
}

type trailKind uint8

const (
	trailAssign trailKind = iota
	trailReq
	trailCon
)

type trailEntry struct {
	kind trailKind
	name int
}

type decision struct {
	name int
	mark int
}

type exclusionKind uint8

const (
	excludedInvalid exclusionKind = iota
	excludedByRequirement
	excludedByConstraint
	excludedByDependency
	excludedByConstrains
	excludedByNogood
)

// exclusion explains why one candidate could not be selected.
type exclusion struct {
	kind     exclusionKind
	cand     int
	spec     *domain.MatchSpec
	source   int
	selected int
}

type conflictRecord struct {
	name       int
	reqs       []requirement
	exclusions []exclusion
}

// search runs the decision loop. It reports unsat=true when the problem has
// no solution.
func (st *state) search(ctx context.Context) (domain.Solution, bool, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.Solution{}, false, zerr.Wrap(err, "solve cancelled")
		}

		name, cand := st.selectVariable()
		if name < 0 {
			return st.solution(), false, nil
		}

		if cand < 0 {
			nogood := st.analyze(name)
			if len(nogood) == 0 {
				return domain.Solution{}, true, nil
			}
			st.learn(nogood)
			st.backjump(nogood)
			continue
		}

		st.decisionCount++
		if limit := st.problem.MaxDecisions; limit > 0 && st.decisionCount > limit {
			err := zerr.Wrap(domain.ErrSolverAborted, "decision budget exhausted")
			return domain.Solution{}, false, zerr.With(err, "max_decisions", limit)
		}
		st.decide(name, cand)
	}
}

// selectVariable picks the required, unassigned name with the fewest
// admissible candidates, ties broken by name. It returns the best admissible
// candidate of that name, or -1 when none is left. name is -1 when nothing
// remains to decide.
func (st *state) selectVariable() (int, int) {
	bestName, bestCand := -1, -1
	bestCount := int(^uint(0) >> 1)

	for n := range st.names {
		if st.assigned[n] >= 0 || len(st.reqs[n]) == 0 {
			continue
		}
		count, first := 0, -1
		for _, c := range st.cands[n] {
			if !st.admissible(n, c) {
				continue
			}
			if first < 0 {
				first = c
			}
			count++
			if count >= bestCount {
				break
			}
		}
		if count < bestCount {
			bestName, bestCand, bestCount = n, first, count
			if count == 0 {
				break
			}
		}
	}
	return bestName, bestCand
}

func (st *state) admissible(n, c int) bool {
	return st.excludedReason(n, c) == nil
}

// excludedReason returns nil when candidate c of name n is admissible.
func (st *state) excludedReason(n, c int) *exclusion {
	if !st.recOK[c] {
		return &exclusion{kind: excludedInvalid, cand: c}
	}
	rec := st.recs[c]
	for _, r := range st.reqs[n] {
		if !r.spec.Matches(rec) {
			return &exclusion{kind: excludedByRequirement, cand: c, spec: r.spec, source: r.source}
		}
	}
	for _, r := range st.cons[n] {
		if !r.spec.Matches(rec) {
			return &exclusion{kind: excludedByConstraint, cand: c, spec: r.spec, source: r.source}
		}
	}
	for _, d := range st.recDeps[c] {
		if a := st.assigned[d.name]; a >= 0 && !d.spec.Matches(st.recs[a]) {
			return &exclusion{kind: excludedByDependency, cand: c, spec: d.spec, selected: a}
		}
	}
	for _, d := range st.recCons[c] {
		if a := st.assigned[d.name]; a >= 0 && !d.spec.Matches(st.recs[a]) {
			return &exclusion{kind: excludedByConstrains, cand: c, spec: d.spec, selected: a}
		}
	}
	for _, id := range st.nogoodsByLit[lit{name: n, rec: c}] {
		if st.nogoodHolds(id, n, c) {
			return &exclusion{kind: excludedByNogood, cand: c, source: id}
		}
	}
	return nil
}

// nogoodHolds reports whether assigning c to n would complete no-good id.
func (st *state) nogoodHolds(id, n, c int) bool {
	for _, l := range st.nogoods[id] {
		if l.name == n && l.rec == c {
			continue
		}
		if st.assigned[l.name] != l.rec {
			return false
		}
	}
	return true
}

func (st *state) decide(n, c int) {
	st.decisions = append(st.decisions, decision{name: n, mark: len(st.trail)})
	lvl := len(st.decisions) - 1

	st.trail = append(st.trail, trailEntry{kind: trailAssign, name: n})
	st.assigned[n] = c
	st.level[n] = lvl

	for _, d := range st.recDeps[c] {
		st.reqs[d.name] = append(st.reqs[d.name], requirement{spec: d.spec, source: c})
		st.trail = append(st.trail, trailEntry{kind: trailReq, name: d.name})
	}
	for _, d := range st.recCons[c] {
		st.cons[d.name] = append(st.cons[d.name], requirement{spec: d.spec, source: c})
		st.trail = append(st.trail, trailEntry{kind: trailCon, name: d.name})
	}
}

// analyze builds the no-good explaining why name n has no admissible
// candidate under the current assignment.
func (st *state) analyze(n int) []lit {
	record := conflictRecord{name: n, reqs: slices.Clone(st.reqs[n])}
	reasons := make(map[lit]struct{})
	add := func(source int) {
		if source >= 0 {
			reasons[lit{name: st.recName[source], rec: source}] = struct{}{}
		}
	}

	for _, c := range st.cands[n] {
		ex := st.excludedReason(n, c)
		if ex == nil {
			continue
		}
		record.exclusions = append(record.exclusions, *ex)
		switch ex.kind {
		case excludedByRequirement, excludedByConstraint:
			add(ex.source)
		case excludedByDependency, excludedByConstrains:
			add(ex.selected)
		case excludedByNogood:
			for _, l := range st.nogoods[ex.source] {
				if l.name != n || l.rec != c {
					reasons[l] = struct{}{}
				}
			}
		case excludedInvalid:
		}
	}

	// n must be required by the no-good itself.
	rootRequired := false
	for _, r := range st.reqs[n] {
		if r.source == rootSource {
			rootRequired = true
			break
		}
	}
	if !rootRequired {
		add(st.reqs[n][0].source)
	}

	st.conflicts = append(st.conflicts, record)

	out := make([]lit, 0, len(reasons))
	for l := range reasons {
		out = append(out, l)
	}
	slices.SortFunc(out, func(a, b lit) int {
		if a.name != b.name {
			return a.name - b.name
		}
		return a.rec - b.rec
	})
	return out
}

func (st *state) learn(nogood []lit) {
	h := xxhash.New()
	var buf [16]byte
	for _, l := range nogood {
		putInt(buf[:8], l.name)
		putInt(buf[8:], l.rec)
		_, _ = h.Write(buf[:])
	}
	key := h.Sum64()
	if _, ok := st.nogoodSeen[key]; ok {
		return
	}
	st.nogoodSeen[key] = struct{}{}

	id := len(st.nogoods)
	st.nogoods = append(st.nogoods, nogood)
	for _, l := range nogood {
		st.nogoodsByLit[l] = append(st.nogoodsByLit[l], id)
	}
}

func putInt(b []byte, v int) {
	u := uint64(v)
	for i := range 8 {
		b[i] = byte(u >> (8 * i))
	}
}

// backjump undoes every decision from the most recent one in the no-good on.
func (st *state) backjump(nogood []lit) {
	target := 0
	for _, l := range nogood {
		target = max(target, st.level[l.name])
	}
	for len(st.decisions) > target {
		d := st.decisions[len(st.decisions)-1]
		st.decisions = st.decisions[:len(st.decisions)-1]
		st.unwind(d.mark)
	}
}

func (st *state) unwind(mark int) {
	for len(st.trail) > mark {
		e := st.trail[len(st.trail)-1]
		st.trail = st.trail[:len(st.trail)-1]
		switch e.kind {
		case trailAssign:
			st.assigned[e.name] = -1
			st.level[e.name] = -1
		case trailReq:
			st.reqs[e.name] = st.reqs[e.name][:len(st.reqs[e.name])-1]
		case trailCon:
			st.cons[e.name] = st.cons[e.name][:len(st.cons[e.name])-1]
		}
	}
}

func (st *state) solution() domain.Solution {
	var sol domain.Solution
	for n := range st.names {
		c := st.assigned[n]
		if c < 0 {
			continue
		}
		if st.recs[c].IsVirtual() {
			sol.Virtual = append(sol.Virtual, st.recs[c])
			continue
		}
		sol.Records = append(sol.Records, st.recs[c])
	}
	return sol
}
