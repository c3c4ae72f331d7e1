// Package index parses channel indexes and merges them into a searchable package index.
package index

import (
	"encoding/json"
	"slices"
	"strings"

	"go.trai.ch/envy/internal/core/domain"
	"go.trai.ch/zerr"
)

// Warning describes an index entry that was skipped.
type Warning struct {
	File string
	Err  error
}

// ChannelIndex holds the records of one channel subdir.
type ChannelIndex struct {
	Channel domain.Channel
	Subdir  string
	Records []*domain.PackageRecord
}

type repodata struct {
	Info struct {
		Subdir  string `json:"subdir"`
		BaseURL string `json:"base_url"`
	} `json:"info"`
	RepodataVersion int                  `json:"repodata_version"`
	Packages        map[string]rawRecord `json:"packages"`
	CondaPackages   map[string]rawRecord `json:"packages.conda"`
}

type rawRecord struct {
	Name          string          `json:"name"`
	Version       string          `json:"version"`
	Build         string          `json:"build"`
	BuildNumber   uint64          `json:"build_number"`
	Subdir        string          `json:"subdir"`
	Platform      string          `json:"platform"`
	Arch          string          `json:"arch"`
	Depends       []string        `json:"depends"`
	Constrains    []string        `json:"constrains"`
	MD5           string          `json:"md5"`
	SHA256        string          `json:"sha256"`
	Size          int64           `json:"size"`
	Timestamp     int64           `json:"timestamp"`
	License       string          `json:"license"`
	NoArch        json.RawMessage `json:"noarch"`
	Features      string          `json:"features"`
	TrackFeatures json.RawMessage `json:"track_features"`
}

// Parser turns repodata.json documents into channel indexes.
type Parser struct {
	specs *SpecCache
}

// NewParser creates a parser sharing the given spec cache. A nil cache gets a fresh one.
func NewParser(specs *SpecCache) *Parser {
	if specs == nil {
		specs = NewSpecCache(DefaultSpecCacheSize)
	}
	return &Parser{specs: specs}
}

var defaultParser = NewParser(nil)

// Parse decodes a repodata.json document with the package-wide spec cache.
func Parse(channel domain.Channel, subdir string, raw []byte) (*ChannelIndex, []Warning, error) {
	return defaultParser.Parse(channel, subdir, raw)
}

// Parse decodes a repodata.json document. Malformed entries are skipped and
// reported as warnings; a document that is not valid JSON fails with
// domain.ErrCorruptIndex.
func (p *Parser) Parse(channel domain.Channel, subdir string, raw []byte) (*ChannelIndex, []Warning, error) {
	var doc repodata
	if err := json.Unmarshal(raw, &doc); err != nil {
		err := zerr.Wrap(domain.WithCause(domain.ErrCorruptIndex, err), "failed to decode repodata.json")
		err = zerr.With(err, "channel", channel.Name)
		return nil, nil, zerr.With(err, "subdir", subdir)
	}

	if subdir == "" {
		subdir = doc.Info.Subdir
	}
	baseURL := channel.SubdirURL(subdir)
	if doc.RepodataVersion >= 2 && doc.Info.BaseURL != "" {
		baseURL = strings.TrimRight(doc.Info.BaseURL, "/")
	}

	ci := &ChannelIndex{Channel: channel, Subdir: subdir}
	var warnings []Warning

	// .conda archives win over .tar.bz2 archives of the same build.
	seen := make(map[string]struct{}, len(doc.CondaPackages))
	for _, fn := range sortedKeys(doc.CondaPackages) {
		rec, err := p.convert(channel, subdir, baseURL, fn, doc.CondaPackages[fn])
		if err != nil {
			warnings = append(warnings, Warning{File: fn, Err: err})
			continue
		}
		seen[strings.TrimSuffix(fn, string(domain.ArchiveConda))] = struct{}{}
		ci.Records = append(ci.Records, rec)
	}
	for _, fn := range sortedKeys(doc.Packages) {
		if _, dup := seen[strings.TrimSuffix(fn, string(domain.ArchiveTarBz2))]; dup {
			continue
		}
		rec, err := p.convert(channel, subdir, baseURL, fn, doc.Packages[fn])
		if err != nil {
			warnings = append(warnings, Warning{File: fn, Err: err})
			continue
		}
		ci.Records = append(ci.Records, rec)
	}

	domain.SortRecords(ci.Records)
	return ci, warnings, nil
}

func (p *Parser) convert(
	channel domain.Channel,
	subdir, baseURL, fn string,
	raw rawRecord,
) (*domain.PackageRecord, error) {
	if raw.Name == "" {
		return nil, zerr.With(zerr.Wrap(domain.ErrCorruptIndex, "entry without name"), "file", fn)
	}
	version, err := domain.ParseVersion(raw.Version)
	if err != nil {
		return nil, zerr.With(err, "file", fn)
	}
	depends, err := p.specs.ParseAll(raw.Depends)
	if err != nil {
		return nil, zerr.With(err, "file", fn)
	}
	constrains, err := p.specs.ParseAll(raw.Constrains)
	if err != nil {
		return nil, zerr.With(err, "file", fn)
	}

	recSubdir := raw.Subdir
	if recSubdir == "" {
		recSubdir = subdir
	}

	return &domain.PackageRecord{
		Name:            domain.NewPackageName(raw.Name),
		Version:         version,
		Build:           raw.Build,
		BuildNumber:     raw.BuildNumber,
		Subdir:          recSubdir,
		Platform:        raw.Platform,
		Arch:            raw.Arch,
		Depends:         slices.Clone(raw.Depends),
		Constrains:      slices.Clone(raw.Constrains),
		MD5:             strings.ToLower(raw.MD5),
		SHA256:          strings.ToLower(raw.SHA256),
		Size:            raw.Size,
		Timestamp:       raw.Timestamp,
		License:         raw.License,
		NoArch:          noArchKind(raw.NoArch),
		Features:        raw.Features,
		TrackFeatures:   trackFeatures(raw.TrackFeatures),
		FileName:        fn,
		URL:             baseURL + "/" + fn,
		Channel:         channel.URL,
		ChannelPriority: channel.Priority,
		DependSpecs:     depends,
		ConstrainSpecs:  constrains,
	}, nil
}

// noArchKind normalizes the noarch field, which is either a bool or "generic"/"python".
func noArchKind(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		if b {
			return "generic"
		}
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

// trackFeatures accepts both the string and the list form.
func trackFeatures(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.Join(list, " ")
	}
	return ""
}

func sortedKeys(m map[string]rawRecord) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
