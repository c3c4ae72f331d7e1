package index

import (
	"slices"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/envy/internal/core/domain"
)

// Index holds the records of every merged channel, bucketed by name.
// Each bucket is ordered by version, then build number, both descending.
type Index struct {
	mode     domain.ChannelPriorityMode
	buckets  map[domain.PackageName][]*domain.PackageRecord
	channels []string
}

// New creates an empty index using the given channel priority mode.
func New(mode domain.ChannelPriorityMode) *Index {
	if mode == "" {
		mode = domain.PriorityStrict
	}
	return &Index{
		mode:    mode,
		buckets: make(map[domain.PackageName][]*domain.PackageRecord),
	}
}

// Mode returns the channel priority mode of the index.
func (ix *Index) Mode() domain.ChannelPriorityMode {
	return ix.mode
}

// Merge adds the records of a channel index. Lower priority values win.
// In strict mode a name's records from a lower priority channel are dropped
// as soon as a higher priority channel provides that name.
func (ix *Index) Merge(ci *ChannelIndex, priority int) {
	ix.channels = append(ix.channels, ci.Channel.URL+"/"+ci.Subdir+"@"+strconv.Itoa(priority))

	incoming := make(map[domain.PackageName][]*domain.PackageRecord)
	for _, r := range ci.Records {
		if r.ChannelPriority != priority {
			c := *r
			c.ChannelPriority = priority
			r = &c
		}
		incoming[r.Name] = append(incoming[r.Name], r)
	}

	for name, records := range incoming {
		bucket := ix.buckets[name]
		if ix.mode == domain.PriorityStrict && len(bucket) > 0 {
			best := bestPriority(bucket)
			switch {
			case priority > best:
				continue
			case priority < best:
				bucket = nil
			}
		}
		bucket = append(bucket, records...)
		slices.SortStableFunc(bucket, compareCandidates)
		ix.buckets[name] = bucket
	}
}

func bestPriority(records []*domain.PackageRecord) int {
	best := records[0].ChannelPriority
	for _, r := range records[1:] {
		best = min(best, r.ChannelPriority)
	}
	return best
}

// compareCandidates orders by version and build number descending,
// then channel priority and identity ascending.
func compareCandidates(a, b *domain.PackageRecord) int {
	if c := b.Version.Compare(a.Version); c != 0 {
		return c
	}
	switch {
	case a.BuildNumber > b.BuildNumber:
		return -1
	case a.BuildNumber < b.BuildNumber:
		return 1
	}
	if a.ChannelPriority != b.ChannelPriority {
		return a.ChannelPriority - b.ChannelPriority
	}
	if a.Identity() < b.Identity() {
		return -1
	}
	if a.Identity() > b.Identity() {
		return 1
	}
	return 0
}

// Records returns the bucket of name. The slice must not be modified.
func (ix *Index) Records(name domain.PackageName) []*domain.PackageRecord {
	return ix.buckets[name]
}

// Names returns every known name in lexical order.
func (ix *Index) Names() []domain.PackageName {
	names := make([]domain.PackageName, 0, len(ix.buckets))
	for name := range ix.buckets {
		names = append(names, name)
	}
	slices.SortFunc(names, domain.PackageName.Compare)
	return names
}

// Find returns the records matching spec, best candidate first.
func (ix *Index) Find(spec domain.MatchSpec) []*domain.PackageRecord {
	var out []*domain.PackageRecord
	for _, r := range ix.buckets[spec.Name] {
		if spec.Matches(r) {
			out = append(out, r)
		}
	}
	return out
}

// All returns every record, ordered by name and then bucket order.
func (ix *Index) All() []*domain.PackageRecord {
	out := make([]*domain.PackageRecord, 0, ix.Len())
	for _, name := range ix.Names() {
		out = append(out, ix.buckets[name]...)
	}
	return out
}

// Len returns the number of records.
func (ix *Index) Len() int {
	n := 0
	for _, bucket := range ix.buckets {
		n += len(bucket)
	}
	return n
}

// Fingerprint hashes the merged channels and record identities. Two indexes
// with the same fingerprint yield the same solve for the same problem.
func (ix *Index) Fingerprint() uint64 {
	h := xxhash.New()
	channels := slices.Clone(ix.channels)
	slices.Sort(channels)
	for _, c := range channels {
		_, _ = h.WriteString(c)
		_, _ = h.WriteString("\x00")
	}
	for _, r := range ix.All() {
		_, _ = h.WriteString(r.Identity())
		_, _ = h.WriteString(r.Key())
		_, _ = h.WriteString("\x00")
	}
	return h.Sum64()
}
