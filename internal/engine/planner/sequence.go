package planner

import (
	"go.trai.ch/envy/internal/core/domain"
)

// Sequence moves each Remove in front of the first linking operation that
// writes one of the removed record's paths, so the removal cannot delete a
// file a newer package just placed. paths maps a package name to the paths
// its linking operation writes. The rest of the order is kept.
func Sequence(tx domain.Transaction, paths map[string][]string) domain.Transaction {
	var links, removes []domain.Operation
	for _, op := range tx.Operations {
		if _, ok := op.(domain.Remove); ok {
			removes = append(removes, op)
			continue
		}
		links = append(links, op)
	}
	if len(removes) == 0 || len(links) == 0 {
		return tx
	}

	owner := make(map[string]int)
	for i, op := range links {
		for _, p := range paths[op.Name().String()] {
			if _, ok := owner[p]; !ok {
				owner[p] = i
			}
		}
	}

	// before[i] holds the removals that must run ahead of links[i].
	before := make(map[int][]domain.Operation)
	var deferred []domain.Operation
	for _, op := range removes {
		first := -1
		for _, p := range RecordPaths(domain.Source(op)) {
			if i, ok := owner[p]; ok && (first < 0 || i < first) {
				first = i
			}
		}
		if first < 0 {
			deferred = append(deferred, op)
			continue
		}
		before[first] = append(before[first], op)
	}

	out := make([]domain.Operation, 0, len(tx.Operations))
	for i, op := range links {
		out = append(out, before[i]...)
		out = append(out, op)
	}
	out = append(out, deferred...)

	tx.Operations = out
	return tx
}

// RecordPaths returns the prefix-relative paths an installed record owns.
func RecordPaths(r *domain.PrefixRecord) []string {
	if r == nil {
		return nil
	}
	if len(r.PathsData.Paths) > 0 {
		out := make([]string, len(r.PathsData.Paths))
		for i, p := range r.PathsData.Paths {
			out[i] = p.Path
		}
		return out
	}
	return r.Files
}
