package domain

import (
	"strings"

	"go.trai.ch/zerr"
)

// versionPart is one component of a version segment.
// Numbers keep their digits without leading zeros so arbitrarily long
// numbers compare without overflow.
type versionPart struct {
	num   string
	str   string
	isStr bool
	inf   bool
}

var zeroPart = versionPart{num: "0"}

func (p versionPart) compare(o versionPart) int {
	switch {
	case p.inf && o.inf:
		return 0
	case p.inf:
		return 1
	case o.inf:
		return -1
	case p.isStr && !o.isStr:
		return -1
	case !p.isStr && o.isStr:
		return 1
	case p.isStr:
		return strings.Compare(p.str, o.str)
	}
	if len(p.num) != len(o.num) {
		if len(p.num) < len(o.num) {
			return -1
		}
		return 1
	}
	return strings.Compare(p.num, o.num)
}

func (p versionPart) String() string {
	switch {
	case p.inf:
		return "post"
	case p.isStr:
		return p.str
	default:
		return p.num
	}
}

type versionSegment []versionPart

// Version is a parsed conda version. The first segment holds the epoch.
type Version struct {
	raw      string
	segments []versionSegment
	local    []versionSegment
}

// ParseVersion parses a version string such as "1.2.3", "1!2.0rc1" or "1.0+local.7".
func ParseVersion(text string) (Version, error) {
	raw := strings.TrimSpace(text)
	if raw == "" {
		return Version{}, versionErr(text, "empty version")
	}

	normalized := strings.ToLower(raw)
	for _, r := range normalized {
		if !isVersionRune(r) {
			return Version{}, versionErr(text, "invalid character "+string(r))
		}
	}

	epoch := "0"
	if before, after, found := strings.Cut(normalized, "!"); found {
		if before == "" || !isDigits(before) {
			return Version{}, versionErr(text, "epoch must be an integer")
		}
		if strings.Contains(after, "!") {
			return Version{}, versionErr(text, "duplicated epoch separator")
		}
		epoch = before
		normalized = after
	}

	main, local, hasLocal := strings.Cut(normalized, "+")
	if hasLocal && (local == "" || strings.Contains(local, "+")) {
		return Version{}, versionErr(text, "invalid local version")
	}

	segments, err := parseSegments(main)
	if err != nil {
		return Version{}, versionErr(text, err.Error())
	}

	v := Version{
		raw:      raw,
		segments: append([]versionSegment{{{num: trimZeros(epoch)}}}, segments...),
	}

	if hasLocal {
		localSegments, err := parseSegments(local)
		if err != nil {
			return Version{}, versionErr(text, err.Error())
		}
		v.local = localSegments
	}

	return v, nil
}

// MustParseVersion parses a version and panics on failure. Used for constants and tests.
func MustParseVersion(text string) Version {
	v, err := ParseVersion(text)
	if err != nil {
		panic(err)
	}
	return v
}

func versionErr(text, reason string) error {
	err := zerr.Wrap(ErrInvalidSpecSyntax, "invalid version")
	err = zerr.With(err, "version", text)
	return zerr.With(err, "reason", reason)
}

func isVersionRune(r rune) bool {
	switch {
	case r >= '0' && r <= '9', r >= 'a' && r <= 'z':
		return true
	case r == '.', r == '_', r == '-', r == '+', r == '!':
		return true
	default:
		return false
	}
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func trimZeros(s string) string {
	t := strings.TrimLeft(s, "0")
	if t == "" {
		return "0"
	}
	return t
}

func parseSegments(text string) ([]versionSegment, error) {
	if text == "" {
		return nil, zerr.New("empty version body")
	}

	// Dashes act as underscores unless the version already uses underscores.
	if !strings.Contains(text, "_") {
		text = strings.ReplaceAll(text, "-", "_")
	} else if strings.Contains(text, "-") {
		return nil, zerr.New("mixed '-' and '_' separators")
	}

	trailingUnderscore := strings.HasSuffix(text, "_")
	if trailingUnderscore {
		text = strings.TrimSuffix(text, "_")
	}
	text = strings.ReplaceAll(text, "_", ".")

	fields := strings.Split(text, ".")
	segments := make([]versionSegment, 0, len(fields))
	for _, field := range fields {
		if field == "" {
			return nil, zerr.New("empty version segment")
		}
		segments = append(segments, splitSegment(field))
	}

	if trailingUnderscore {
		last := len(segments) - 1
		segments[last] = append(segments[last], versionPart{str: "_", isStr: true})
	}

	return segments, nil
}

// splitSegment splits "1rc2" into runs of digits and letters.
func splitSegment(field string) versionSegment {
	var seg versionSegment
	start := 0
	for start < len(field) {
		end := start + 1
		digit := field[start] >= '0' && field[start] <= '9'
		for end < len(field) && (field[end] >= '0' && field[end] <= '9') == digit {
			end++
		}
		run := field[start:end]
		switch {
		case digit:
			seg = append(seg, versionPart{num: trimZeros(run)})
		case run == "post":
			seg = append(seg, versionPart{inf: true})
		case run == "dev":
			seg = append(seg, versionPart{str: "DEV", isStr: true})
		default:
			seg = append(seg, versionPart{str: run, isStr: true})
		}
		start = end
	}
	if len(seg) > 0 && (seg[0].isStr || seg[0].inf) {
		seg = append(versionSegment{zeroPart}, seg...)
	}
	return seg
}

// String returns the version as it was written.
func (v Version) String() string {
	return v.raw
}

// IsZero reports whether v was never parsed.
func (v Version) IsZero() bool {
	return len(v.segments) == 0
}

// Compare returns -1, 0 or 1 when v sorts before, equal to or after o.
func (v Version) Compare(o Version) int {
	if c := compareSegments(v.segments, o.segments); c != 0 {
		return c
	}
	return compareSegments(v.local, o.local)
}

// Equal reports whether both versions sort equal ("1.1" equals "1.1.0").
func (v Version) Equal(o Version) bool {
	return v.Compare(o) == 0
}

// Less reports whether v sorts before o.
func (v Version) Less(o Version) bool {
	return v.Compare(o) < 0
}

func compareSegments(a, b []versionSegment) int {
	n := max(len(a), len(b))
	for i := range n {
		var sa, sb versionSegment
		if i < len(a) {
			sa = a[i]
		}
		if i < len(b) {
			sb = b[i]
		}
		if c := compareSegment(sa, sb); c != 0 {
			return c
		}
	}
	return 0
}

func compareSegment(a, b versionSegment) int {
	n := max(len(a), len(b))
	for i := range n {
		pa, pb := zeroPart, zeroPart
		if i < len(a) {
			pa = a[i]
		}
		if i < len(b) {
			pb = b[i]
		}
		if c := pa.compare(pb); c != 0 {
			return c
		}
	}
	return 0
}

// StartsWith reports whether v matches the prefix version p component-wise,
// allowing the last component of p to be a string prefix ("1.2rc" starts with "1.2r").
func (v Version) StartsWith(p Version) bool {
	t1, t2 := v.segments, p.segments
	if len(p.local) > 0 {
		if compareSegments(v.segments, p.segments) != 0 {
			return false
		}
		t1, t2 = v.local, p.local
	}
	if len(t2) == 0 {
		return true
	}

	last := len(t2) - 1
	for i := range last {
		var s versionSegment
		if i < len(t1) {
			s = t1[i]
		}
		if compareSegment(s, t2[i]) != 0 {
			return false
		}
	}

	var l1 versionSegment
	if last < len(t1) {
		l1 = t1[last]
	}
	l2 := t2[last]
	lastPart := len(l2) - 1
	for i := range lastPart {
		pa := zeroPart
		if i < len(l1) {
			pa = l1[i]
		}
		if pa.compare(l2[i]) != 0 {
			return false
		}
	}

	pa := zeroPart
	if lastPart < len(l1) {
		pa = l1[lastPart]
	}
	pb := l2[lastPart]
	if pa.isStr && pb.isStr {
		return strings.HasPrefix(pa.str, pb.str)
	}
	return pa.compare(pb) == 0
}

// compatiblePrefix returns the release without its last segment, the prefix
// a "~=" constraint pins: 1.2.3 -> 1.2.
func (v Version) compatiblePrefix() (Version, bool) {
	release := v.segments[1:]
	if len(release) < 2 {
		return Version{}, false
	}
	trimmed := make([]versionSegment, 0, len(v.segments)-1)
	trimmed = append(trimmed, v.segments[:len(v.segments)-1]...)
	parts := make([]string, 0, len(trimmed)-1)
	for _, seg := range trimmed[1:] {
		parts = append(parts, seg.String())
	}
	raw := strings.Join(parts, ".")
	if epoch := v.segments[0][0].num; epoch != "0" {
		raw = epoch + "!" + raw
	}
	return Version{raw: raw, segments: trimmed}, true
}

func (s versionSegment) String() string {
	var b strings.Builder
	for i, p := range s {
		if i == 0 && len(s) > 1 && p == zeroPart && (s[1].isStr || s[1].inf) {
			continue
		}
		if p.str == "DEV" {
			b.WriteString("dev")
			continue
		}
		b.WriteString(p.String())
	}
	return b.String()
}

// MarshalText implements encoding.TextMarshaler.
func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.raw), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Version) UnmarshalText(text []byte) error {
	parsed, err := ParseVersion(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
