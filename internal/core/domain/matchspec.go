package domain

import (
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/gobwas/glob"
	"go.trai.ch/zerr"
)

// BuildNumberSpec constrains a record's build number.
type BuildNumberSpec struct {
	Op    Operator
	Value uint64
}

// Matches reports whether n satisfies the constraint.
func (b BuildNumberSpec) Matches(n uint64) bool {
	switch b.Op {
	case OpEq:
		return n == b.Value
	case OpNe:
		return n != b.Value
	case OpLt:
		return n < b.Value
	case OpLe:
		return n <= b.Value
	case OpGt:
		return n > b.Value
	case OpGe:
		return n >= b.Value
	default:
		return false
	}
}

// String returns the constraint text, e.g. ">=2".
func (b BuildNumberSpec) String() string {
	if b.Op == OpEq {
		return strconv.FormatUint(b.Value, 10)
	}
	return string(b.Op) + strconv.FormatUint(b.Value, 10)
}

// ParseBuildNumberSpec parses "3", "==3", ">=2" and friends.
func ParseBuildNumberSpec(text string) (BuildNumberSpec, error) {
	t := strings.TrimSpace(text)
	op := OpEq
	for _, candidate := range []Operator{OpEq, OpNe, OpLe, OpGe, OpLt, OpGt} {
		if strings.HasPrefix(t, string(candidate)) {
			op = candidate
			t = strings.TrimSpace(strings.TrimPrefix(t, string(candidate)))
			break
		}
	}
	n, err := strconv.ParseUint(t, 10, 64)
	if err != nil {
		err := zerr.Wrap(ErrInvalidSpecSyntax, "invalid build number")
		return BuildNumberSpec{}, zerr.With(err, "build_number", text)
	}
	return BuildNumberSpec{Op: op, Value: n}, nil
}

// MatchSpec is a parsed package constraint.
type MatchSpec struct {
	Name        PackageName
	Version     VersionSpec
	Build       string
	BuildNumber *BuildNumberSpec
	Channel     string
	Subdir      string
	MD5         string
	SHA256      string
	Original    string

	build glob.Glob
}

// IsVirtual reports whether the spec targets a virtual package.
func (m MatchSpec) IsVirtual() bool {
	return m.Name.IsVirtual()
}

// Matches reports whether the record satisfies every part of the spec.
func (m MatchSpec) Matches(r *PackageRecord) bool {
	if m.Name.String() != "*" && m.Name != r.Name {
		return false
	}
	if !m.Version.Matches(r.Version) {
		return false
	}
	if m.Build != "" && !m.matchBuild(r.Build) {
		return false
	}
	if m.BuildNumber != nil && !m.BuildNumber.Matches(r.BuildNumber) {
		return false
	}
	if m.Channel != "" && CanonicalChannelName(m.Channel) != CanonicalChannelName(r.Channel) {
		return false
	}
	if m.Subdir != "" && m.Subdir != r.Subdir {
		return false
	}
	if m.MD5 != "" && !strings.EqualFold(m.MD5, r.MD5) {
		return false
	}
	if m.SHA256 != "" && !strings.EqualFold(m.SHA256, r.SHA256) {
		return false
	}
	return true
}

// String renders the canonical form "channel/subdir::name version build[key=value]".
// The result parses back into an equivalent spec.
func (m MatchSpec) String() string {
	var b strings.Builder
	if m.Channel != "" {
		b.WriteString(m.Channel)
		if m.Subdir != "" {
			b.WriteString("/" + m.Subdir)
		}
		b.WriteString("::")
	}
	b.WriteString(m.Name.String())

	switch {
	case m.Build != "":
		b.WriteString(" " + m.Version.String() + " " + m.Build)
	case !m.Version.IsAny():
		b.WriteString(" " + m.Version.String())
	}

	var extras []string
	if m.BuildNumber != nil {
		extras = append(extras, `build_number="`+m.BuildNumber.String()+`"`)
	}
	if m.Subdir != "" && m.Channel == "" {
		extras = append(extras, "subdir="+m.Subdir)
	}
	if m.MD5 != "" {
		extras = append(extras, "md5="+m.MD5)
	}
	if m.SHA256 != "" {
		extras = append(extras, "sha256="+m.SHA256)
	}
	if len(extras) > 0 {
		b.WriteString("[" + strings.Join(extras, ",") + "]")
	}
	return b.String()
}

var (
	namePattern     = regexp.MustCompile(`^([A-Za-z0-9_][A-Za-z0-9_.\-]*|\*)`)
	opSpacePattern  = regexp.MustCompile(`(==|!=|<=|>=|~=|<|>)\s+`)
	joinSpacePatter = regexp.MustCompile(`\s*([,|])\s*`)
)

// ParseMatchSpec parses a match spec string.
//
// Accepted forms include "numpy", "numpy>=1.20", "numpy 1.20.* py39*",
// "numpy=1.20=py39_0", "conda-forge::numpy", "conda-forge/linux-64::numpy"
// and the bracket form "numpy[version='>=1.20,<2',build=py*]".
func ParseMatchSpec(text string) (MatchSpec, error) {
	spec := MatchSpec{Original: text, Version: AnyVersion()}

	s := strings.TrimSpace(text)
	if i := strings.Index(s, "#"); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	if s == "" {
		return MatchSpec{}, specErr(text, "empty spec")
	}

	var brackets map[string]string
	if i := strings.Index(s, "["); i >= 0 {
		if !strings.HasSuffix(s, "]") {
			return MatchSpec{}, specErr(text, "unterminated bracket")
		}
		parsed, err := parseBrackets(text, s[i+1:len(s)-1])
		if err != nil {
			return MatchSpec{}, err
		}
		brackets = parsed
		s = strings.TrimSpace(s[:i])
	}

	if i := strings.LastIndex(s, "::"); i >= 0 {
		channel := s[:i]
		s = s[i+2:]
		if channel == "" {
			return MatchSpec{}, specErr(text, "empty channel")
		}
		spec.Channel, spec.Subdir = splitChannelSubdir(channel)
	}

	loc := namePattern.FindStringIndex(s)
	if loc == nil {
		return MatchSpec{}, specErr(text, "missing package name")
	}
	spec.Name = NewPackageName(s[:loc[1]])
	rest := strings.TrimSpace(s[loc[1]:])

	if err := parseVersionAndBuild(&spec, text, rest); err != nil {
		return MatchSpec{}, err
	}

	if err := applyBrackets(&spec, text, brackets); err != nil {
		return MatchSpec{}, err
	}

	if spec.Build != "" {
		g, err := glob.Compile(spec.Build)
		if err != nil {
			return MatchSpec{}, specErr(text, "invalid build pattern "+spec.Build)
		}
		spec.build = g
	}

	return spec, nil
}

// matchBuild matches a build string against the compiled pattern. Specs built
// as literals compile it on use.
func (m MatchSpec) matchBuild(build string) bool {
	if m.build != nil {
		return m.build.Match(build)
	}
	return GlobMatch(m.Build, build)
}

// MustParseMatchSpec parses a spec and panics on failure. Used for tests and constants.
func MustParseMatchSpec(text string) MatchSpec {
	m, err := ParseMatchSpec(text)
	if err != nil {
		panic(err)
	}
	return m
}

func parseVersionAndBuild(spec *MatchSpec, text, rest string) error {
	if rest == "" {
		return nil
	}

	// name=1.2 and name=1.2=build
	if strings.HasPrefix(rest, "=") && !strings.HasPrefix(rest, "==") && !strings.ContainsAny(rest, " \t") {
		version, build, hasBuild := strings.Cut(rest[1:], "=")
		if strings.Contains(build, "=") {
			return specErr(text, "unexpected '=' in build string")
		}
		if hasBuild {
			vs, err := ParseVersionSpec(version)
			if err != nil {
				return specErr(text, "invalid version "+version)
			}
			spec.Version = vs
			if build == "" {
				return specErr(text, "empty build string")
			}
			spec.Build = build
			return nil
		}
		vs, err := fuzzyVersionSpec(version)
		if err != nil {
			return specErr(text, "invalid version "+version)
		}
		spec.Version = vs
		return nil
	}

	rest = opSpacePattern.ReplaceAllString(rest, "$1")
	rest = joinSpacePatter.ReplaceAllString(rest, "$1")
	fields := strings.Fields(rest)
	if len(fields) > 2 {
		return specErr(text, "too many fields")
	}

	// A bare version in this position selects the whole family: "python 3.11" is 3.11.*.
	vs, err := fuzzyVersionSpec(fields[0])
	if err != nil {
		return specErr(text, "invalid version "+fields[0])
	}
	spec.Version = vs
	if len(fields) == 2 {
		spec.Build = fields[1]
	}
	return nil
}

func applyBrackets(spec *MatchSpec, text string, brackets map[string]string) error {
	keys := make([]string, 0, len(brackets))
	for k := range brackets {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, key := range keys {
		value := brackets[key]
		switch key {
		case "version":
			vs, err := ParseVersionSpec(value)
			if err != nil {
				return specErr(text, "invalid version "+value)
			}
			spec.Version = vs
		case "build":
			spec.Build = value
		case "build_number":
			bn, err := ParseBuildNumberSpec(value)
			if err != nil {
				return specErr(text, "invalid build_number "+value)
			}
			spec.BuildNumber = &bn
		case "channel":
			spec.Channel, spec.Subdir = splitChannelSubdirKeep(value, spec.Subdir)
		case "subdir":
			spec.Subdir = value
		case "md5":
			spec.MD5 = strings.ToLower(value)
		case "sha256":
			spec.SHA256 = strings.ToLower(value)
		default:
			return specErr(text, "unsupported key "+key)
		}
	}
	return nil
}

func parseBrackets(text, body string) (map[string]string, error) {
	out := make(map[string]string)
	for _, pair := range splitQuoted(body) {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, specErr(text, "bracket entry without '=': "+pair)
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `'"`)
		if key == "" || value == "" {
			return nil, specErr(text, "empty bracket entry: "+pair)
		}
		out[key] = value
	}
	return out, nil
}

// splitQuoted splits on commas outside single or double quotes.
func splitQuoted(s string) []string {
	var parts []string
	var quote byte
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0 && c == quote:
			quote = 0
		case quote == 0 && (c == '\'' || c == '"'):
			quote = c
		case quote == 0 && c == ',':
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

func splitChannelSubdir(channel string) (string, string) {
	i := strings.LastIndex(channel, "/")
	if i < 0 {
		return channel, ""
	}
	if _, err := ParsePlatform(channel[i+1:]); err == nil {
		return channel[:i], channel[i+1:]
	}
	return channel, ""
}

func splitChannelSubdirKeep(channel, subdir string) (string, string) {
	c, s := splitChannelSubdir(channel)
	if s == "" {
		s = subdir
	}
	return c, s
}

func specErr(text, reason string) error {
	err := zerr.Wrap(ErrInvalidSpecSyntax, "invalid match spec")
	err = zerr.With(err, "spec", text)
	return zerr.With(err, "reason", reason)
}

// GlobMatch matches s against a pattern where '*' matches any run and '?' one
// character. A pattern that does not compile only matches itself.
func GlobMatch(pattern, s string) bool {
	g, err := glob.Compile(pattern)
	if err != nil {
		return pattern == s
	}
	return g.Match(s)
}

// CanonicalChannelName reduces a channel URL or path to its last path element
// so "https://conda.anaconda.org/conda-forge" and "conda-forge" compare equal.
func CanonicalChannelName(channel string) string {
	c := strings.TrimRight(channel, "/")
	if i := strings.LastIndex(c, "/"); i >= 0 {
		return c[i+1:]
	}
	return c
}
