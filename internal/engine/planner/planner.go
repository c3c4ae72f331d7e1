// Package planner turns the difference between an installed prefix and a
// solution into an ordered transaction. Everything here is pure.
package planner

import (
	"slices"

	"go.trai.ch/envy/internal/core/domain"
)

// Options tune a plan.
type Options struct {
	// Reinstall names packages to install again even when unchanged.
	Reinstall []domain.PackageName
	// LinkType is the requested link type. Installed records linked
	// differently are reinstalled. Empty keeps whatever is installed.
	LinkType domain.LinkType
}

// Plan computes the transaction turning current into target.
//
// Installs, changes and reinstalls come first, dependencies before
// dependents over the target graph. Removals of packages absent from target
// come last, dependents before dependencies over the current graph.
func Plan(current []*domain.PrefixRecord, target domain.Solution, opts Options) domain.Transaction {
	byName := make(map[domain.PackageName]*domain.PrefixRecord, len(current))
	var duplicates []*domain.PrefixRecord
	for _, r := range current {
		if _, ok := byName[r.Name]; ok {
			duplicates = append(duplicates, r)
			continue
		}
		byName[r.Name] = r
	}

	reinstall := make(map[domain.PackageName]struct{}, len(opts.Reinstall))
	for _, n := range opts.Reinstall {
		reinstall[n] = struct{}{}
	}

	wanted := make(map[domain.PackageName]struct{}, len(target.Records))
	ops := make(map[domain.PackageName]domain.Operation, len(target.Records))
	for _, to := range target.Records {
		wanted[to.Name] = struct{}{}
		from, ok := byName[to.Name]
		if !ok {
			ops[to.Name] = domain.Install{Record: to}
			continue
		}
		if op := compare(from, to, reinstall, opts.LinkType); op != nil {
			ops[to.Name] = op
		}
	}

	var out []domain.Operation
	for _, i := range dependencyOrder(target.Records) {
		if op, ok := ops[target.Records[i].Name]; ok {
			out = append(out, op)
		}
	}

	installed := make([]*domain.PackageRecord, len(current))
	for i, r := range current {
		installed[i] = r.Record()
	}
	order := dependencyOrder(installed)
	for k := len(order) - 1; k >= 0; k-- {
		r := current[order[k]]
		if _, keep := wanted[r.Name]; keep || byName[r.Name] != r {
			continue
		}
		out = append(out, domain.Remove{Record: r})
	}
	for _, r := range duplicates {
		out = append(out, domain.Remove{Record: r})
	}

	return domain.NewTransaction(out)
}

// compare returns the operation needed to turn from into to, or nil.
func compare(
	from *domain.PrefixRecord,
	to *domain.PackageRecord,
	reinstall map[domain.PackageName]struct{},
	linkType domain.LinkType,
) domain.Operation {
	if reason := changeReason(from.Record(), to); reason != 0 {
		return domain.Change{
			From:   from,
			To:     to,
			Reason: reason,
			Reuse:  from.SameArchive(to),
		}
	}

	switch _, requested := reinstall[to.Name]; {
	case requested:
		return domain.Reinstall{Record: to, From: from, Reason: domain.ReinstallRequested}
	case from.Broken:
		return domain.Reinstall{Record: to, From: from, Reason: domain.ReinstallBroken}
	case linkType != "" && from.LinkType() != linkType:
		return domain.Reinstall{Record: to, From: from, Reason: domain.ReinstallLinkType}
	}
	return nil
}

func changeReason(from, to *domain.PackageRecord) domain.ChangeReason {
	var reason domain.ChangeReason
	if from.Version.String() != to.Version.String() {
		reason |= domain.ChangeVersion
	}
	if from.Build != to.Build || from.BuildNumber != to.BuildNumber {
		reason |= domain.ChangeBuild
	}
	if domain.CanonicalChannelName(from.Channel) != domain.CanonicalChannelName(to.Channel) {
		reason |= domain.ChangeChannel
	}
	if reason == 0 && from.Key() != "" && to.Key() != "" && !from.SameArchive(to) {
		// Same coordinates, rebuilt content.
		reason |= domain.ChangeBuild
	}
	return reason
}

// dependencyOrder returns indices of records with dependencies before
// dependents. Ties and cycles are broken by name.
func dependencyOrder(records []*domain.PackageRecord) []int {
	n := len(records)
	idx := make(map[domain.PackageName]int, n)
	for i, r := range records {
		if _, ok := idx[r.Name]; !ok {
			idx[r.Name] = i
		}
	}

	// byName lists record indices sorted by name for deterministic picks.
	byName := make([]int, n)
	for i := range byName {
		byName[i] = i
	}
	slices.SortStableFunc(byName, func(a, b int) int {
		return records[a].Name.Compare(records[b].Name)
	})

	pending := make([]int, n)
	dependents := make([][]int, n)
	for i, r := range records {
		seen := make(map[int]struct{})
		for _, name := range dependencyNames(r) {
			j, ok := idx[name]
			if !ok || j == i {
				continue
			}
			if _, dup := seen[j]; dup {
				continue
			}
			seen[j] = struct{}{}
			pending[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	done := make([]bool, n)
	out := make([]int, 0, n)
	for len(out) < n {
		next := -1
		for _, i := range byName {
			if !done[i] && pending[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			// Cycle: take the first remaining name.
			for _, i := range byName {
				if !done[i] {
					next = i
					break
				}
			}
		}
		done[next] = true
		out = append(out, next)
		for _, d := range dependents[next] {
			pending[d]--
		}
	}
	return out
}

func dependencyNames(r *domain.PackageRecord) []domain.PackageName {
	if len(r.DependSpecs) == len(r.Depends) && len(r.DependSpecs) > 0 {
		out := make([]domain.PackageName, len(r.DependSpecs))
		for i, m := range r.DependSpecs {
			out[i] = m.Name
		}
		return out
	}
	out := make([]domain.PackageName, 0, len(r.Depends))
	for _, d := range r.Depends {
		m, err := domain.ParseMatchSpec(d)
		if err != nil {
			continue
		}
		out = append(out, m.Name)
	}
	return out
}
