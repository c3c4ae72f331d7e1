package domain

import (
	"slices"
)

// SolverProblem is the input of a solve.
type SolverProblem struct {
	// Specs are the root requirements.
	Specs []MatchSpec
	// Available is the candidate pool.
	Available []*PackageRecord
	// Virtual lists the virtual packages of the target system.
	Virtual []VirtualPackage
	// Installed records are preferred over other candidates of the same name.
	Installed []*PackageRecord
	// Locked records pin their name whenever that name ends up in the solution.
	Locked []*PackageRecord
	// Priority selects how channel order takes part in candidate ordering.
	Priority ChannelPriorityMode
	// MaxDecisions bounds the search. Zero means unlimited.
	MaxDecisions int
}

// Solution is the outcome of a successful solve.
type Solution struct {
	// Records are the selected real packages, sorted by name.
	Records []*PackageRecord
	// Virtual are the selected virtual packages, sorted by name.
	Virtual []*PackageRecord
}

// Names returns the names of the selected records in order.
func (s Solution) Names() []PackageName {
	names := make([]PackageName, len(s.Records))
	for i, r := range s.Records {
		names[i] = r.Name
	}
	return names
}

// Get returns the record selected for name.
func (s Solution) Get(name PackageName) (*PackageRecord, bool) {
	i, found := slices.BinarySearchFunc(s.Records, name, func(r *PackageRecord, n PackageName) int {
		return r.Name.Compare(n)
	})
	if !found {
		return nil, false
	}
	return s.Records[i], true
}

// SortRecords orders records by name, then by descending version and build number.
func SortRecords(records []*PackageRecord) {
	slices.SortStableFunc(records, func(a, b *PackageRecord) int {
		if c := a.Name.Compare(b.Name); c != 0 {
			return c
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
		return 0
	})
}
