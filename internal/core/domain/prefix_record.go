package domain

// PathType is the kind of entry a package places into a prefix.
type PathType string

const (
	// PathHardlink is a regular file.
	PathHardlink PathType = "hardlink"
	// PathSoftlink is a symbolic link shipped by the package.
	PathSoftlink PathType = "softlink"
	// PathDirectory is an explicitly created directory.
	PathDirectory PathType = "directory"
)

// FileMode tells how a prefix placeholder inside a file is rewritten.
type FileMode string

const (
	// FileModeText replaces every occurrence of the placeholder.
	FileModeText FileMode = "text"
	// FileModeBinary rewrites NUL terminated strings and pads with NUL bytes.
	FileModeBinary FileMode = "binary"
)

// LinkType is how files are placed into a prefix.
type LinkType string

const (
	// LinkHardlink hard links files from the package cache, falling back to copy.
	LinkHardlink LinkType = "hardlink"
	// LinkSoftlink symlinks files from the package cache.
	LinkSoftlink LinkType = "softlink"
	// LinkCopy copies files.
	LinkCopy LinkType = "copy"
)

// ParseLinkType validates a link type string. Empty means hardlink.
func ParseLinkType(s string) (LinkType, bool) {
	switch LinkType(s) {
	case "", LinkHardlink:
		return LinkHardlink, true
	case LinkSoftlink:
		return LinkSoftlink, true
	case LinkCopy:
		return LinkCopy, true
	default:
		return "", false
	}
}

// PathEntry describes one file of a package, both in the package's
// info/paths.json and in the prefix record after linking.
type PathEntry struct {
	Path              string   `json:"_path"`
	PathType          PathType `json:"path_type"`
	SHA256            string   `json:"sha256,omitempty"`
	SHA256InPrefix    string   `json:"sha256_in_prefix,omitempty"`
	SizeInBytes       int64    `json:"size_in_bytes,omitempty"`
	PrefixPlaceholder string   `json:"prefix_placeholder,omitempty"`
	FileMode          FileMode `json:"file_mode,omitempty"`
	NoLink            bool     `json:"no_link,omitempty"`
}

// PathsData is the paths section of a package or prefix record.
type PathsData struct {
	PathsVersion int         `json:"paths_version"`
	Paths        []PathEntry `json:"paths"`
}

// LinkInfo records where a package was linked from.
type LinkInfo struct {
	Source string   `json:"source"`
	Type   LinkType `json:"type"`
}

// PrefixRecord is the installed form of a package, persisted in conda-meta.
type PrefixRecord struct {
	PackageRecord

	Files                  []string  `json:"files"`
	PathsData              PathsData `json:"paths_data"`
	Link                   *LinkInfo `json:"link,omitempty"`
	RequestedSpec          string    `json:"requested_spec,omitempty"`
	InstalledAt            int64     `json:"installed_at,omitempty"`
	ExtractedPackageDir    string    `json:"extracted_package_dir,omitempty"`
	PackageTarballFullPath string    `json:"package_tarball_full_path,omitempty"`

	// Broken marks a record whose files are missing from the prefix.
	Broken bool `json:"-"`
}

// Record returns the package part of the prefix record.
func (p *PrefixRecord) Record() *PackageRecord {
	return &p.PackageRecord
}

// MetaFileName returns the conda-meta file name of the record.
func (p *PrefixRecord) MetaFileName() string {
	return p.DistName() + ".json"
}

// LinkType returns the recorded link type, hardlink when unknown.
func (p *PrefixRecord) LinkType() LinkType {
	if p.Link == nil || p.Link.Type == "" {
		return LinkHardlink
	}
	return p.Link.Type
}

// PrefixState is the installed state of a prefix.
type PrefixState struct {
	// Records are the installed packages, sorted by name.
	Records []*PrefixRecord
	// Issues are problems found while loading that do not prevent planning,
	// such as an interrupted transaction.
	Issues []error
}

// PackageRecords returns the package part of every record.
func (s PrefixState) PackageRecords() []*PackageRecord {
	out := make([]*PackageRecord, len(s.Records))
	for i, r := range s.Records {
		out[i] = r.Record()
	}
	return out
}

// LinkRequest asks a Linker to place one package into a prefix.
type LinkRequest struct {
	Prefix     string
	PackageDir string
	Paths      PathsData
	LinkType   LinkType
	Record     *PackageRecord
}
