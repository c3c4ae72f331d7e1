package domain

import (
	"strings"

	"go.trai.ch/zerr"
)

// Operator is a version comparison operator.
type Operator string

const (
	// OpEq matches an equal version.
	OpEq Operator = "=="
	// OpNe matches any other version.
	OpNe Operator = "!="
	// OpLt matches lower versions.
	OpLt Operator = "<"
	// OpLe matches lower or equal versions.
	OpLe Operator = "<="
	// OpGt matches higher versions.
	OpGt Operator = ">"
	// OpGe matches higher or equal versions.
	OpGe Operator = ">="
	// OpCompatible matches "~=": at least the version, within its release prefix.
	OpCompatible Operator = "~="
	// OpStartsWith matches versions starting with the operand ("=1.2", "1.2.*").
	OpStartsWith Operator = "=*"
	// OpNotStartsWith matches versions not starting with the operand ("!=1.2.*").
	OpNotStartsWith Operator = "!=*"
)

// versionNode is one node of a parsed version spec tree.
type versionNode interface {
	matches(v Version) bool
	String() string
}

type anyVersion struct{}

func (anyVersion) matches(Version) bool { return true }
func (anyVersion) String() string       { return "*" }

type versionConstraint struct {
	op      Operator
	operand Version
	prefix  Version
}

func (c versionConstraint) matches(v Version) bool {
	switch c.op {
	case OpEq:
		return v.Equal(c.operand)
	case OpNe:
		return !v.Equal(c.operand)
	case OpLt:
		return v.Compare(c.operand) < 0
	case OpLe:
		return v.Compare(c.operand) <= 0
	case OpGt:
		return v.Compare(c.operand) > 0
	case OpGe:
		return v.Compare(c.operand) >= 0
	case OpCompatible:
		return v.Compare(c.operand) >= 0 && v.StartsWith(c.prefix)
	case OpStartsWith:
		return v.StartsWith(c.operand)
	case OpNotStartsWith:
		return !v.StartsWith(c.operand)
	default:
		return false
	}
}

func (c versionConstraint) String() string {
	switch c.op {
	case OpStartsWith:
		return c.operand.String() + ".*"
	case OpNotStartsWith:
		return "!=" + c.operand.String() + ".*"
	default:
		return string(c.op) + c.operand.String()
	}
}

type allOf []versionNode

func (a allOf) matches(v Version) bool {
	for _, n := range a {
		if !n.matches(v) {
			return false
		}
	}
	return true
}

func (a allOf) String() string {
	parts := make([]string, len(a))
	for i, n := range a {
		if _, ok := n.(anyOf); ok {
			parts[i] = "(" + n.String() + ")"
			continue
		}
		parts[i] = n.String()
	}
	return strings.Join(parts, ",")
}

type anyOf []versionNode

func (a anyOf) matches(v Version) bool {
	for _, n := range a {
		if n.matches(v) {
			return true
		}
	}
	return false
}

func (a anyOf) String() string {
	parts := make([]string, len(a))
	for i, n := range a {
		parts[i] = n.String()
	}
	return strings.Join(parts, "|")
}

// VersionSpec is a parsed version constraint expression. The zero value matches everything.
type VersionSpec struct {
	root versionNode
}

// AnyVersion returns a spec matching every version.
func AnyVersion() VersionSpec {
	return VersionSpec{root: anyVersion{}}
}

// ParseVersionSpec parses expressions such as ">=1.2,<2", "1.2.*|>=3", "~=1.4" or "*".
// A bare version is an exact match.
func ParseVersionSpec(text string) (VersionSpec, error) {
	p := &versionSpecParser{src: text, text: strings.TrimSpace(text)}
	if p.text == "" {
		return VersionSpec{}, versionSpecErr(text, "empty version spec")
	}
	node, err := p.parseAny()
	if err != nil {
		return VersionSpec{}, err
	}
	if p.pos != len(p.text) {
		return VersionSpec{}, versionSpecErr(text, "unexpected "+p.text[p.pos:])
	}
	return VersionSpec{root: node}, nil
}

// fuzzyVersionSpec builds the "name=1.2" form, which selects the 1.2.* family.
func fuzzyVersionSpec(text string) (VersionSpec, error) {
	t := strings.TrimSpace(text)
	if strings.ContainsAny(t, "<>=!~,|*()") {
		return ParseVersionSpec(t)
	}
	v, err := ParseVersion(t)
	if err != nil {
		return VersionSpec{}, err
	}
	return VersionSpec{root: versionConstraint{op: OpStartsWith, operand: v}}, nil
}

// Matches reports whether v satisfies the spec.
func (s VersionSpec) Matches(v Version) bool {
	if s.root == nil {
		return true
	}
	return s.root.matches(v)
}

// IsAny reports whether the spec matches every version.
func (s VersionSpec) IsAny() bool {
	if s.root == nil {
		return true
	}
	_, ok := s.root.(anyVersion)
	return ok
}

// String returns the canonical text of the spec.
func (s VersionSpec) String() string {
	if s.root == nil {
		return "*"
	}
	return s.root.String()
}

// Satisfiable reports whether the ordered version domain holds any version
// the spec could match. Only range, equality and inequality operators take
// part in the check; other operators are assumed satisfiable.
func (s VersionSpec) Satisfiable() bool {
	if s.root == nil {
		return true
	}
	return satisfiable(s.root)
}

// Intersect returns a spec matching versions matched by both specs.
func (s VersionSpec) Intersect(o VersionSpec) VersionSpec {
	switch {
	case s.IsAny():
		return o
	case o.IsAny():
		return s
	}
	var nodes allOf
	for _, n := range []versionNode{s.root, o.root} {
		if all, ok := n.(allOf); ok {
			nodes = append(nodes, all...)
			continue
		}
		nodes = append(nodes, n)
	}
	return VersionSpec{root: nodes}
}

type bound struct {
	v         Version
	inclusive bool
	set       bool
}

func satisfiable(n versionNode) bool {
	switch node := n.(type) {
	case anyOf:
		for _, child := range node {
			if satisfiable(child) {
				return true
			}
		}
		return false
	case allOf:
		return conjunctionSatisfiable(node)
	default:
		return true
	}
}

func conjunctionSatisfiable(nodes allOf) bool {
	var lower, upper bound
	var excluded []Version
	for _, n := range nodes {
		c, ok := n.(versionConstraint)
		if !ok {
			if !satisfiable(n) {
				return false
			}
			continue
		}
		switch c.op {
		case OpEq:
			lower = tighterLower(lower, bound{v: c.operand, inclusive: true, set: true})
			upper = tighterUpper(upper, bound{v: c.operand, inclusive: true, set: true})
		case OpGt:
			lower = tighterLower(lower, bound{v: c.operand, set: true})
		case OpGe, OpCompatible:
			lower = tighterLower(lower, bound{v: c.operand, inclusive: true, set: true})
		case OpLt:
			upper = tighterUpper(upper, bound{v: c.operand, set: true})
		case OpLe:
			upper = tighterUpper(upper, bound{v: c.operand, inclusive: true, set: true})
		case OpNe:
			excluded = append(excluded, c.operand)
		}
	}

	if !lower.set || !upper.set {
		return true
	}
	cmp := lower.v.Compare(upper.v)
	switch {
	case cmp > 0:
		return false
	case cmp == 0:
		if !lower.inclusive || !upper.inclusive {
			return false
		}
		for _, e := range excluded {
			if e.Equal(lower.v) {
				return false
			}
		}
	}
	return true
}

func tighterLower(cur, next bound) bound {
	if !cur.set {
		return next
	}
	switch c := next.v.Compare(cur.v); {
	case c > 0:
		return next
	case c == 0 && !next.inclusive:
		return next
	}
	return cur
}

func tighterUpper(cur, next bound) bound {
	if !cur.set {
		return next
	}
	switch c := next.v.Compare(cur.v); {
	case c < 0:
		return next
	case c == 0 && !next.inclusive:
		return next
	}
	return cur
}

func versionSpecErr(text, reason string) error {
	err := zerr.Wrap(ErrInvalidSpecSyntax, "invalid version spec")
	err = zerr.With(err, "version_spec", text)
	return zerr.With(err, "reason", reason)
}

// versionSpecParser is a small precedence parser: '|' binds looser than ','.
type versionSpecParser struct {
	src  string
	text string
	pos  int
}

func (p *versionSpecParser) skipSpace() {
	for p.pos < len(p.text) && p.text[p.pos] == ' ' {
		p.pos++
	}
}

func (p *versionSpecParser) parseAny() (versionNode, error) {
	var nodes anyOf
	for {
		node, err := p.parseAll()
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
		p.skipSpace()
		if p.pos < len(p.text) && p.text[p.pos] == '|' {
			p.pos++
			continue
		}
		break
	}
	if len(nodes) == 1 {
		return nodes[0], nil
	}
	return nodes, nil
}

func (p *versionSpecParser) parseAll() (versionNode, error) {
	var nodes allOf
	for {
		node, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
		p.skipSpace()
		if p.pos < len(p.text) && p.text[p.pos] == ',' {
			p.pos++
			continue
		}
		break
	}
	if len(nodes) == 1 {
		return nodes[0], nil
	}
	return nodes, nil
}

func (p *versionSpecParser) parseTerm() (versionNode, error) {
	p.skipSpace()
	if p.pos >= len(p.text) {
		return nil, versionSpecErr(p.src, "missing version")
	}
	if p.text[p.pos] == '(' {
		p.pos++
		node, err := p.parseAny()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if p.pos >= len(p.text) || p.text[p.pos] != ')' {
			return nil, versionSpecErr(p.src, "unbalanced parenthesis")
		}
		p.pos++
		return node, nil
	}

	start := p.pos
	for p.pos < len(p.text) && !strings.ContainsRune(",|() ", rune(p.text[p.pos])) {
		p.pos++
	}
	term := p.text[start:p.pos]
	return parseConstraint(p.src, term)
}

var operators = []Operator{OpEq, OpNe, OpLe, OpGe, OpCompatible, OpLt, OpGt}

func parseConstraint(src, term string) (versionNode, error) {
	if term == "*" || term == "" {
		if term == "" {
			return nil, versionSpecErr(src, "missing version")
		}
		return anyVersion{}, nil
	}

	op := Operator("")
	operand := term
	for _, candidate := range operators {
		if strings.HasPrefix(term, string(candidate)) {
			op = candidate
			operand = strings.TrimPrefix(term, string(candidate))
			break
		}
	}
	if op == "" && strings.HasPrefix(term, "=") {
		op = OpStartsWith
		operand = strings.TrimPrefix(term, "=")
	}
	if operand == "" {
		return nil, versionSpecErr(src, "operator without version")
	}

	glob := false
	switch {
	case strings.HasSuffix(operand, ".*"):
		glob = true
		operand = strings.TrimSuffix(operand, ".*")
	case strings.HasSuffix(operand, "*"):
		glob = true
		operand = strings.TrimSuffix(operand, "*")
	}
	if strings.Contains(operand, "*") {
		return nil, versionSpecErr(src, "wildcard must be trailing")
	}

	v, err := ParseVersion(operand)
	if err != nil {
		return nil, versionSpecErr(src, "invalid version "+operand)
	}

	switch {
	case op == "" && glob, op == OpEq && glob, op == OpStartsWith:
		return versionConstraint{op: OpStartsWith, operand: v}, nil
	case op == OpNe && glob:
		return versionConstraint{op: OpNotStartsWith, operand: v}, nil
	case op == "":
		return versionConstraint{op: OpEq, operand: v}, nil
	case op == OpCompatible:
		prefix, ok := v.compatiblePrefix()
		if !ok {
			return nil, versionSpecErr(src, "~= needs at least two release segments")
		}
		return versionConstraint{op: OpCompatible, operand: v, prefix: prefix}, nil
	default:
		// ">=1.2.*" is read as ">=1.2".
		return versionConstraint{op: op, operand: v}, nil
	}
}
