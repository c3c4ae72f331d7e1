package domain

import (
	"strings"

	"github.com/google/uuid"
)

// ChangeReason tells why an installed record is replaced. More than one bit may be set.
type ChangeReason uint8

const (
	// ChangeVersion means the version differs.
	ChangeVersion ChangeReason = 1 << iota
	// ChangeBuild means the build string or build number differs.
	ChangeBuild
	// ChangeChannel means the source channel differs.
	ChangeChannel
)

// Has reports whether r contains every bit of o.
func (r ChangeReason) Has(o ChangeReason) bool {
	return r&o == o
}

// String returns the set bits as "version+build".
func (r ChangeReason) String() string {
	var parts []string
	if r.Has(ChangeVersion) {
		parts = append(parts, "version")
	}
	if r.Has(ChangeBuild) {
		parts = append(parts, "build")
	}
	if r.Has(ChangeChannel) {
		parts = append(parts, "channel")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "+")
}

// ReinstallReason tells why an unchanged record is installed again.
type ReinstallReason string

const (
	// ReinstallRequested means the caller asked for it.
	ReinstallRequested ReinstallReason = "requested"
	// ReinstallBroken means files of the installed record are missing.
	ReinstallBroken ReinstallReason = "broken"
	// ReinstallLinkType means the requested link type differs from the recorded one.
	ReinstallLinkType ReinstallReason = "link-type"
)

// Operation is one step of a transaction: Install, Remove, Reinstall or Change.
type Operation interface {
	// Name returns the package the operation touches.
	Name() PackageName
	operation()
}

// Install adds a package that is not installed.
type Install struct {
	Record *PackageRecord
}

// Remove deletes an installed package.
type Remove struct {
	Record *PrefixRecord
}

// Reinstall replaces an installed package with the same record.
type Reinstall struct {
	Record *PackageRecord
	From   *PrefixRecord
	Reason ReinstallReason
}

// Change replaces an installed package with a different record of the same name.
type Change struct {
	From   *PrefixRecord
	To     *PackageRecord
	Reason ChangeReason
	// Reuse is set when both sides share the same archive content, so only the
	// prefix record needs rewriting.
	Reuse bool
}

func (Install) operation()   {}
func (Remove) operation()    {}
func (Reinstall) operation() {}
func (Change) operation()    {}

// Name implements Operation.
func (o Install) Name() PackageName { return o.Record.Name }

// Name implements Operation.
func (o Remove) Name() PackageName { return o.Record.Name }

// Name implements Operation.
func (o Reinstall) Name() PackageName { return o.Record.Name }

// Name implements Operation.
func (o Change) Name() PackageName { return o.To.Name }

// Target returns the record an operation links, or nil for a Remove.
func Target(op Operation) *PackageRecord {
	switch o := op.(type) {
	case Install:
		return o.Record
	case Reinstall:
		return o.Record
	case Change:
		return o.To
	case Remove:
		return nil
	default:
		panic("unknown operation")
	}
}

// Source returns the installed record an operation unlinks, or nil for an Install.
func Source(op Operation) *PrefixRecord {
	switch o := op.(type) {
	case Install:
		return nil
	case Reinstall:
		return o.From
	case Change:
		return o.From
	case Remove:
		return o.Record
	default:
		panic("unknown operation")
	}
}

// NeedsArchive reports whether the operation links files from an archive.
func NeedsArchive(op Operation) bool {
	switch o := op.(type) {
	case Install, Reinstall:
		return true
	case Change:
		return !o.Reuse
	case Remove:
		return false
	default:
		panic("unknown operation")
	}
}

// DescribeOperation returns a one-line, human readable form of op.
func DescribeOperation(op Operation) string {
	switch o := op.(type) {
	case Install:
		return "install " + o.Record.Identity()
	case Remove:
		return "remove " + o.Record.Identity()
	case Reinstall:
		return "reinstall " + o.Record.Identity() + " (" + string(o.Reason) + ")"
	case Change:
		return "change " + o.From.DistName() + " -> " + o.To.Identity() + " (" + o.Reason.String() + ")"
	default:
		panic("unknown operation")
	}
}

// Stats summarizes a transaction.
type Stats struct {
	DownloadBytes int64
	LinkCount     int
	UnlinkCount   int
	Installs      int
	Removes       int
	Changes       int
	Reinstalls    int
}

// Transaction is an ordered list of operations turning one prefix state into another.
type Transaction struct {
	ID         uuid.UUID
	Operations []Operation
	Stats      Stats
}

// NewTransaction creates a transaction with a fresh ID and computed stats.
func NewTransaction(ops []Operation) Transaction {
	return Transaction{ID: uuid.New(), Operations: ops, Stats: ComputeStats(ops)}
}

// IsEmpty reports whether the transaction has nothing to do.
func (t Transaction) IsEmpty() bool {
	return len(t.Operations) == 0
}

// ComputeStats derives the stats of a list of operations.
func ComputeStats(ops []Operation) Stats {
	var s Stats
	for _, op := range ops {
		switch o := op.(type) {
		case Install:
			s.Installs++
			s.LinkCount++
			s.DownloadBytes += o.Record.Size
		case Remove:
			s.Removes++
			s.UnlinkCount++
		case Reinstall:
			s.Reinstalls++
			s.LinkCount++
			s.UnlinkCount++
			s.DownloadBytes += o.Record.Size
		case Change:
			s.Changes++
			s.LinkCount++
			s.UnlinkCount++
			if !o.Reuse {
				s.DownloadBytes += o.To.Size
			}
		default:
			panic("unknown operation")
		}
	}
	return s
}
