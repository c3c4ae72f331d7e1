package solver

import (
	"context"
	"errors"
	"slices"
	"strings"

	"go.trai.ch/envy/internal/core/domain"
)

// explain shrinks the root specs to a subset that is still unsatisfiable and
// renders the conflicts met while solving that subset.
func (s *Solver) explain(ctx context.Context, problem domain.SolverProblem) (domain.Conflict, error) {
	specs := slices.Clone(problem.Specs)

	for i := 0; i < len(specs); {
		trial := slices.Delete(slices.Clone(specs), i, i+1)
		unsat, err := s.stillUnsat(ctx, problem, trial)
		if err != nil {
			return domain.Conflict{}, err
		}
		if unsat {
			specs = trial
			continue
		}
		i++
	}

	reduced := problem
	reduced.Specs = specs
	st := s.newState(reduced)
	if conflict, ok := st.checkRootIntersections(); !ok {
		return conflict, nil
	}
	if _, _, err := st.search(ctx); err != nil && !errors.Is(err, domain.ErrSolverAborted) {
		return domain.Conflict{}, err
	}
	return st.conflict(), nil
}

// stillUnsat reports whether the problem restricted to specs has no solution.
// An exhausted decision budget counts as satisfiable so the spec is kept.
func (s *Solver) stillUnsat(ctx context.Context, problem domain.SolverProblem, specs []domain.MatchSpec) (bool, error) {
	if len(specs) == 0 {
		return false, nil
	}
	reduced := problem
	reduced.Specs = specs
	st := s.newState(reduced)
	if st.checkMissing() != nil {
		return false, nil
	}
	if _, ok := st.checkRootIntersections(); !ok {
		return true, nil
	}
	_, unsat, err := st.search(ctx)
	switch {
	case errors.Is(err, domain.ErrSolverAborted):
		return false, nil
	case err != nil:
		return false, err
	}
	return unsat, nil
}

func (st *state) conflict() domain.Conflict {
	out := domain.Conflict{Specs: make([]string, len(st.roots))}
	for i, spec := range st.roots {
		out.Specs[i] = specText(spec)
	}

	seenLine := make(map[string]struct{})
	seenRec := make(map[string]struct{})
	addLine := func(line string) {
		if _, ok := seenLine[line]; ok {
			return
		}
		seenLine[line] = struct{}{}
		out.Lines = append(out.Lines, line)
	}
	addRec := func(idx int) {
		if idx < 0 {
			return
		}
		id := st.recs[idx].Identity()
		if _, ok := seenRec[id]; ok {
			return
		}
		seenRec[id] = struct{}{}
		out.Records = append(out.Records, id)
	}

	for _, c := range st.conflicts {
		for _, line := range st.describe(c, addRec) {
			addLine(line)
		}
	}
	if len(out.Lines) == 0 {
		addLine("no combination of candidates satisfies " + strings.Join(out.Specs, ", "))
	}
	slices.Sort(out.Records)
	return out
}

// describe renders the direct exclusions of one conflict. Exclusions caused
// by learned no-goods repeat conflicts already rendered and are skipped.
func (st *state) describe(c conflictRecord, addRec func(int)) []string {
	var lines []string

	matching := false
	for _, ex := range c.exclusions {
		if ex.kind != excludedByRequirement && ex.kind != excludedInvalid {
			matching = true
			break
		}
	}
	if len(c.exclusions) == 0 || !matching {
		return st.describeRequirements(c, addRec)
	}

	for _, ex := range c.exclusions {
		switch ex.kind {
		case excludedByConstraint:
			req := primaryRequirement(c.reqs)
			addRec(req.source)
			addRec(ex.source)
			addRec(ex.cand)
			lines = append(lines, st.who(req.source)+" requires "+req.spec.String()+
				", but "+st.who(ex.source)+" constrains "+ex.spec.String())
		case excludedByDependency:
			addRec(ex.cand)
			addRec(ex.selected)
			lines = append(lines, st.recs[ex.cand].Name.String()+" "+st.recs[ex.cand].Version.String()+
				" requires "+ex.spec.String()+", but "+st.who(ex.selected)+" is selected")
		case excludedByConstrains:
			addRec(ex.cand)
			addRec(ex.selected)
			lines = append(lines, st.who(ex.cand)+" constrains "+ex.spec.String()+
				", but "+st.who(ex.selected)+" is selected")
		case excludedInvalid:
			addRec(ex.cand)
			lines = append(lines, st.who(ex.cand)+" has unparsable dependencies")
		case excludedByRequirement, excludedByNogood:
		}
	}
	return lines
}

// describeRequirements explains a name whose requirements no candidate meets.
func (st *state) describeRequirements(c conflictRecord, addRec func(int)) []string {
	cands := st.cands[c.name]

	for _, r := range c.reqs {
		if slices.ContainsFunc(cands, func(i int) bool { return st.recOK[i] && r.spec.Matches(st.recs[i]) }) {
			continue
		}
		addRec(r.source)
		line := "nothing provides " + r.spec.String()
		if r.source >= 0 {
			line += " needed by " + st.who(r.source)
		}
		if len(cands) > 0 {
			line += " (available: " + st.available(c.name) + ")"
		}
		return []string{line}
	}

	for i, a := range c.reqs {
		for _, b := range c.reqs[i+1:] {
			if a.source == b.source {
				continue
			}
			joint := slices.ContainsFunc(cands, func(idx int) bool {
				return st.recOK[idx] && a.spec.Matches(st.recs[idx]) && b.spec.Matches(st.recs[idx])
			})
			if joint {
				continue
			}
			addRec(a.source)
			addRec(b.source)
			return []string{st.who(a.source) + " requires " + a.spec.String() +
				", but " + st.who(b.source) + " requires " + b.spec.String()}
		}
	}

	parts := make([]string, len(c.reqs))
	for i, r := range c.reqs {
		addRec(r.source)
		parts[i] = st.who(r.source) + " requires " + r.spec.String()
	}
	return []string{strings.Join(parts, ", ") + " and no candidate meets all of them"}
}

// primaryRequirement prefers a requirement coming from a record so the line
// names the package that pulled the name in.
func primaryRequirement(reqs []requirement) requirement {
	for _, r := range reqs {
		if r.source >= 0 {
			return r
		}
	}
	return reqs[0]
}

func (st *state) who(source int) string {
	switch source {
	case rootSource:
		return "the request"
	case lockSource:
		return "the lock"
	}
	r := st.recs[source]
	return r.Name.String() + " " + r.Version.String()
}

// available lists the distinct versions of name, best first.
func (st *state) available(name int) string {
	var versions []string
	seen := make(map[string]struct{})
	for _, i := range st.cands[name] {
		v := st.recs[i].Version.String()
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		versions = append(versions, v)
	}
	return st.names[name].String() + " " + strings.Join(versions, ", ")
}
