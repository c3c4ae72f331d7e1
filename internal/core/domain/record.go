package domain

import (
	"strings"
)

// ArchiveKind is the container format of a package archive.
type ArchiveKind string

const (
	// ArchiveTarBz2 is the legacy ".tar.bz2" format.
	ArchiveTarBz2 ArchiveKind = ".tar.bz2"
	// ArchiveConda is the ".conda" format: a zip holding zstd compressed tarballs.
	ArchiveConda ArchiveKind = ".conda"
)

// ArchiveKindOf returns the archive format of a file name.
func ArchiveKindOf(fileName string) (ArchiveKind, bool) {
	switch {
	case strings.HasSuffix(fileName, string(ArchiveConda)):
		return ArchiveConda, true
	case strings.HasSuffix(fileName, string(ArchiveTarBz2)):
		return ArchiveTarBz2, true
	default:
		return "", false
	}
}

// PackageRecord describes one build of a package in a channel.
// Records are shared between the index, the solver and the planner and must not be mutated.
type PackageRecord struct {
	Name          PackageName `json:"name"`
	Version       Version     `json:"version"`
	Build         string      `json:"build"`
	BuildNumber   uint64      `json:"build_number"`
	Subdir        string      `json:"subdir,omitempty"`
	Platform      string      `json:"platform,omitempty"`
	Arch          string      `json:"arch,omitempty"`
	Depends       []string    `json:"depends"`
	Constrains    []string    `json:"constrains,omitempty"`
	MD5           string      `json:"md5,omitempty"`
	SHA256        string      `json:"sha256,omitempty"`
	Size          int64       `json:"size,omitempty"`
	Timestamp     int64       `json:"timestamp,omitempty"`
	License       string      `json:"license,omitempty"`
	NoArch        string      `json:"noarch,omitempty"`
	Features      string      `json:"features,omitempty"`
	TrackFeatures string      `json:"track_features,omitempty"`
	FileName      string      `json:"fn,omitempty"`
	URL           string      `json:"url,omitempty"`
	Channel       string      `json:"channel,omitempty"`

	// ChannelPriority is the position of the record's channel in the configured
	// channel list. Lower values win.
	ChannelPriority int `json:"-"`

	// DependSpecs and ConstrainSpecs hold the parsed forms of Depends and Constrains
	// when the record came out of an index.
	DependSpecs    []MatchSpec `json:"-"`
	ConstrainSpecs []MatchSpec `json:"-"`
}

// DistName returns "name-version-build".
func (r *PackageRecord) DistName() string {
	return r.Name.String() + "-" + r.Version.String() + "-" + r.Build
}

// Identity returns "channel/subdir::name-version-build".
func (r *PackageRecord) Identity() string {
	var b strings.Builder
	if r.Channel != "" {
		b.WriteString(CanonicalChannelName(r.Channel))
		if r.Subdir != "" {
			b.WriteString("/" + r.Subdir)
		}
		b.WriteString("::")
	}
	b.WriteString(r.DistName())
	return b.String()
}

// Key returns the content address of the record's archive: "sha256:<hex>" when a
// sha256 is known, "md5:<hex>" otherwise, or "" when the record carries no hash.
func (r *PackageRecord) Key() string {
	switch {
	case r.SHA256 != "":
		return "sha256:" + strings.ToLower(r.SHA256)
	case r.MD5 != "":
		return "md5:" + strings.ToLower(r.MD5)
	default:
		return ""
	}
}

// SameArchive reports whether both records point at the same archive content.
func (r *PackageRecord) SameArchive(o *PackageRecord) bool {
	switch {
	case r.SHA256 != "" && o.SHA256 != "":
		return strings.EqualFold(r.SHA256, o.SHA256)
	case r.MD5 != "" && o.MD5 != "":
		return strings.EqualFold(r.MD5, o.MD5)
	default:
		return false
	}
}

// IsVirtual reports whether the record stands for a virtual package.
func (r *PackageRecord) IsVirtual() bool {
	return r.Channel == VirtualChannel
}

// String returns the record identity.
func (r *PackageRecord) String() string {
	return r.Identity()
}

// ChannelPriorityMode controls how channel order affects candidate selection.
type ChannelPriorityMode string

const (
	// PriorityStrict hides a name's records from lower priority channels once a
	// higher priority channel provides that name.
	PriorityStrict ChannelPriorityMode = "strict"
	// PriorityFlexible keeps every channel's records; priority only breaks ties.
	PriorityFlexible ChannelPriorityMode = "flexible"
	// PriorityDisabled ignores channel order.
	PriorityDisabled ChannelPriorityMode = "disabled"
)

// ParseChannelPriorityMode validates a priority mode string. Empty means strict.
func ParseChannelPriorityMode(s string) (ChannelPriorityMode, bool) {
	switch ChannelPriorityMode(s) {
	case "", PriorityStrict:
		return PriorityStrict, true
	case PriorityFlexible:
		return PriorityFlexible, true
	case PriorityDisabled:
		return PriorityDisabled, true
	default:
		return "", false
	}
}
