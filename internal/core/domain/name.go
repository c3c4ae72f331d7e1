package domain

import (
	"strings"
	"unique"
)

// PackageName is an interned, lower-cased package name.
// Interning keeps the many repeated names of a channel index cheap to store and compare.
type PackageName struct {
	h unique.Handle[string]
}

// NewPackageName interns the lower-cased form of s.
func NewPackageName(s string) PackageName {
	return PackageName{h: unique.Make(strings.ToLower(strings.TrimSpace(s)))}
}

// NewPackageNames converts a slice of strings to a slice of PackageNames.
func NewPackageNames(ss []string) []PackageName {
	out := make([]PackageName, len(ss))
	for i, s := range ss {
		out[i] = NewPackageName(s)
	}
	return out
}

// String returns the underlying name.
func (n PackageName) String() string {
	var zero unique.Handle[string]
	if n.h == zero {
		return ""
	}
	return n.h.Value()
}

// IsZero reports whether the name was never set.
func (n PackageName) IsZero() bool {
	var zero unique.Handle[string]
	return n.h == zero
}

// IsVirtual reports whether the name denotes a virtual package ("__glibc").
func (n PackageName) IsVirtual() bool {
	return strings.HasPrefix(n.String(), "__")
}

// Compare orders names lexically.
func (n PackageName) Compare(o PackageName) int {
	return strings.Compare(n.String(), o.String())
}

// MarshalText implements encoding.TextMarshaler.
func (n PackageName) MarshalText() ([]byte, error) {
	return []byte(n.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (n *PackageName) UnmarshalText(text []byte) error {
	*n = NewPackageName(string(text))
	return nil
}
