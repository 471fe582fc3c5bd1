// Package specifier implements PEP 440 version specifier sets: the
// comma-separated clause language used in requirement strings such as
// ">=1.0,!=1.3.*,<2.0".
package specifier

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/AlexanderEkdahl/pkgspec/version"
)

// Clause operators, as defined by PEP 440.
const (
	OpLessOrEqual    = "<="
	OpLess           = "<"
	OpNotEqual       = "!="
	OpEqual          = "=="
	OpGreaterOrEqual = ">="
	OpGreater        = ">"
	OpCompatible     = "~="
	OpArbitraryEqual = "==="
)

// clausePattern matches a single "<op><version>" clause, allowing an
// optional ".*" wildcard suffix on the version.
var clausePattern = regexp.MustCompile(`^\s*(<=|<|!=|==|>=|>|~=|===)\s*([a-zA-Z0-9_.!+-]+?(?:\.\*)?)\s*$`)

var prefixPattern = regexp.MustCompile(`^([0-9]+)((?:a|b|c|rc)[0-9]+)$`)

// Clause is a single "<operator><version>" constraint. For OpArbitraryEqual
// ("===", the "identity escape hatch" of §4.2), the right-hand side is an
// arbitrary string rather than a PEP 440 version, so it is kept verbatim in
// Literal instead of being parsed into Version.
type Clause struct {
	Operator string
	Version  version.Version
	Literal  string // raw right-hand side text; only meaningful for "==="
	Wildcard bool   // true when the clause ended in ".*"
	Raw      string
}

func (c Clause) String() string {
	if c.Operator == OpArbitraryEqual {
		return c.Operator + c.Literal
	}
	if c.Wildcard {
		return c.Operator + c.Version.Public() + ".*"
	}
	return c.Operator + c.Version.String()
}

// InvalidSpecifierError is returned when a specifier string does not
// conform to the PEP 440 clause grammar, or when an operator is combined
// with a version in a way PEP 440 forbids (e.g. a wildcard with "~=").
type InvalidSpecifierError struct {
	Text   string
	Reason string
}

func (e *InvalidSpecifierError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid specifier %q: %s", e.Text, e.Reason)
	}
	return fmt.Sprintf("invalid specifier %q", e.Text)
}

// SpecifierSet is a conjunction ("AND") of clauses, mirroring a single
// PEP 440 version specifier string such as ">=1.0,!=1.3.*". Prereleases is
// a tri-state preference (§3.2): nil means "infer from the clauses or the
// exclusionary-bridge rule", a pointer to true/false is an explicit
// override that Contains honors unconditionally.
type SpecifierSet struct {
	Clauses     []Clause
	Prereleases *bool
}

// BoolPtr is a small convenience for constructing an explicit
// SpecifierSet.Prereleases preference.
func BoolPtr(b bool) *bool { return &b }

// Parse parses a comma-separated PEP 440 specifier string. An empty or
// all-whitespace string yields an empty SpecifierSet that matches every
// version.
func Parse(s string) (SpecifierSet, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return SpecifierSet{}, nil
	}

	var clauses []Clause
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return SpecifierSet{}, &InvalidSpecifierError{Text: s, Reason: "empty clause"}
		}
		c, err := parseClause(part)
		if err != nil {
			return SpecifierSet{}, err
		}
		clauses = append(clauses, c)
	}
	return SpecifierSet{Clauses: clauses}, nil
}

func parseClause(part string) (Clause, error) {
	m := clausePattern.FindStringSubmatch(part)
	if m == nil {
		return Clause{}, &InvalidSpecifierError{Text: part, Reason: "does not match the <op><version> grammar"}
	}
	op, versionText := m[1], m[2]

	wildcard := strings.HasSuffix(versionText, ".*")
	base := strings.TrimSuffix(versionText, ".*")

	// "===" is the arbitrary-string identity escape hatch (§4.2): its
	// right-hand side need not be a valid PEP 440 version at all, so it
	// is kept as a literal rather than run through version.Parse.
	if op == OpArbitraryEqual {
		if wildcard {
			return Clause{}, &InvalidSpecifierError{Text: part, Reason: "a wildcard is not allowed with ==="}
		}
		return Clause{Operator: op, Literal: base, Raw: part}, nil
	}

	v, err := version.Parse(base)
	if err != nil {
		return Clause{}, &InvalidSpecifierError{Text: part, Reason: fmt.Sprintf("invalid version: %v", err)}
	}

	switch op {
	case OpEqual, OpNotEqual:
		if wildcard && (v.IsDevRelease() || len(v.Local) > 0) {
			return Clause{}, &InvalidSpecifierError{Text: part,
				Reason: "(non)equality wildcards cannot be combined with a dev or local version"}
		}
	case OpCompatible:
		if wildcard {
			return Clause{}, &InvalidSpecifierError{Text: part, Reason: "a wildcard is not allowed with ~="}
		}
		if len(v.Release) < 2 {
			return Clause{}, &InvalidSpecifierError{Text: part, Reason: "~= requires at least two release segments"}
		}
	default:
		if wildcard {
			return Clause{}, &InvalidSpecifierError{Text: part, Reason: fmt.Sprintf("a wildcard is not allowed with %s", op)}
		}
	}

	return Clause{Operator: op, Version: v, Wildcard: wildcard, Raw: part}, nil
}

// String renders the set in canonical form: clauses joined by "," with
// no surrounding whitespace, sorted by their rendered text so two sets
// with the same clauses in different order stringify identically.
func (s SpecifierSet) String() string {
	parts := make([]string, len(s.Clauses))
	for i, c := range s.Clauses {
		parts[i] = c.String()
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

// Contains reports whether v satisfies every clause in the set, and then
// applies the set's pre-release admission policy (§4.2): a non-prerelease
// candidate is always subject only to the clauses; a prerelease candidate
// is admitted iff Prereleases is explicitly true, rejected iff Prereleases
// is explicitly false, and otherwise admitted iff some clause literal is
// itself a prerelease or v fills an "exclusionary bridge" gap (§4.2.1): a
// range with no non-prerelease solution around v.
func (s SpecifierSet) Contains(v version.Version) bool {
	if !s.clausesContain(v) {
		return false
	}
	if !v.IsPrerelease() {
		return true
	}
	if s.Prereleases != nil {
		return *s.Prereleases
	}
	if s.anyClausePinsPrerelease() {
		return true
	}
	return !s.clausesContain(versionWithoutPreDev(v))
}

func (s SpecifierSet) clausesContain(v version.Version) bool {
	for _, c := range s.Clauses {
		if !clauseContains(c, v) {
			return false
		}
	}
	return true
}

// versionWithoutPreDev returns v with its pre-release and dev-release
// components stripped, keeping epoch/release/post/local untouched — used
// by the exclusionary-bridge check to ask "is there a final/post solution
// near v, or does only the prerelease itself satisfy the clauses".
func versionWithoutPreDev(v version.Version) version.Version {
	return version.Version{
		Epoch:   v.Epoch,
		Release: v.Release,
		HasPost: v.HasPost,
		Post:    v.Post,
		Local:   v.Local,
	}
}

func (s SpecifierSet) anyClausePinsPrerelease() bool {
	for _, c := range s.Clauses {
		if c.Version.IsPrerelease() {
			return true
		}
	}
	return false
}

func clauseContains(c Clause, prospective version.Version) bool {
	switch c.Operator {
	case OpEqual:
		return clauseEqual(c, prospective)
	case OpNotEqual:
		return !clauseEqual(c, prospective)
	case OpLessOrEqual:
		return stripLocal(prospective).LessThanOrEqual(c.Version)
	case OpGreaterOrEqual:
		return stripLocal(prospective).GreaterThanOrEqual(c.Version)
	case OpLess:
		return clauseLessThan(c, prospective)
	case OpGreater:
		return clauseGreaterThan(c, prospective)
	case OpCompatible:
		return clauseCompatible(c, prospective)
	case OpArbitraryEqual:
		return strings.EqualFold(prospective.String(), c.Literal)
	default:
		return false
	}
}

func stripLocal(v version.Version) version.Version {
	if len(v.Local) == 0 {
		return v
	}
	return version.MustParse(v.Public())
}

func clauseEqual(c Clause, prospective version.Version) bool {
	if c.Wildcard {
		prospective = stripLocal(prospective)
		specParts := versionSplit(c.Version.Public())
		prospParts := versionSplit(prospective.String())
		if len(prospParts) > len(specParts) {
			prospParts = prospParts[:len(specParts)]
		}
		specParts, prospParts = padParts(specParts, prospParts)
		if len(specParts) != len(prospParts) {
			return false
		}
		for i := range specParts {
			if specParts[i] != prospParts[i] {
				return false
			}
		}
		return true
	}
	if len(c.Version.Local) == 0 {
		prospective = stripLocal(prospective)
	}
	return c.Version.Equal(prospective)
}

func clauseLessThan(c Clause, prospective version.Version) bool {
	prospective = stripLocal(prospective)
	if !prospective.LessThan(c.Version) {
		return false
	}
	if !c.Version.IsPrerelease() && prospective.IsPrerelease() {
		if prospective.BaseVersion() == c.Version.BaseVersion() {
			return false
		}
	}
	return true
}

func clauseGreaterThan(c Clause, prospective version.Version) bool {
	if !prospective.GreaterThan(c.Version) {
		return false
	}
	if !c.Version.IsPostRelease() && prospective.IsPostRelease() {
		if prospective.BaseVersion() == c.Version.BaseVersion() {
			return false
		}
	}
	if len(prospective.Local) > 0 && prospective.BaseVersion() == c.Version.BaseVersion() {
		return false
	}
	return true
}

// clauseCompatible implements "~=": ~=2.2 is equivalent to >=2.2,==2.*;
// ~=2.2.post3 is equivalent to >=2.2.post3,==2.*.
func clauseCompatible(c Clause, prospective version.Version) bool {
	public := c.Version.Public()
	parts := versionSplit(public)
	var prefixParts []string
	for _, p := range parts {
		if strings.HasPrefix(p, "post") || strings.HasPrefix(p, "dev") {
			break
		}
		prefixParts = append(prefixParts, p)
	}
	if len(prefixParts) == 0 {
		return false
	}
	prefix := strings.Join(prefixParts[:len(prefixParts)-1], ".")

	geClause := Clause{Operator: OpGreaterOrEqual, Version: c.Version}
	eqClause, err := parseClause(OpEqual + prefix + ".*")
	if err != nil {
		return false
	}
	return clauseContains(geClause, prospective) && clauseContains(eqClause, prospective)
}

// versionSplit splits a version string on '.', and further splits any
// segment of the form "<release><phase><n>" (e.g. "0a1") into its two
// components so the compatible/wildcard matchers can compare across the
// implicit release/pre-release boundary.
func versionSplit(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ".") {
		if m := prefixPattern.FindStringSubmatch(part); m != nil {
			out = append(out, m[1], m[2])
		} else {
			out = append(out, part)
		}
	}
	return out
}

func padParts(left, right []string) ([]string, []string) {
	leftNum := numericPrefix(left)
	rightNum := numericPrefix(right)
	leftRest := left[len(leftNum):]
	rightRest := right[len(rightNum):]
	for len(leftNum) < len(rightNum) {
		leftNum = append(leftNum, "0")
	}
	for len(rightNum) < len(leftNum) {
		rightNum = append(rightNum, "0")
	}
	return append(leftNum, leftRest...), append(rightNum, rightRest...)
}

func numericPrefix(parts []string) []string {
	var out []string
	for _, p := range parts {
		if _, err := strconv.Atoi(p); err != nil {
			break
		}
		out = append(out, p)
	}
	return out
}

// Intersect returns a SpecifierSet requiring membership in both s and
// other (clause-list concatenation, since both sets are AND
// conjunctions). The two sides' Prereleases preferences are combined:
// an unspecified side defers to the other, and two explicit but
// conflicting preferences are rejected.
func (s SpecifierSet) Intersect(other SpecifierSet) (SpecifierSet, error) {
	out := SpecifierSet{Clauses: make([]Clause, 0, len(s.Clauses)+len(other.Clauses))}
	out.Clauses = append(out.Clauses, s.Clauses...)
	out.Clauses = append(out.Clauses, other.Clauses...)

	switch {
	case s.Prereleases != nil && other.Prereleases != nil:
		if *s.Prereleases != *other.Prereleases {
			return SpecifierSet{}, fmt.Errorf("specifier: conflicting prerelease preferences (%v and %v)", *s.Prereleases, *other.Prereleases)
		}
		out.Prereleases = s.Prereleases
	case s.Prereleases != nil:
		out.Prereleases = s.Prereleases
	case other.Prereleases != nil:
		out.Prereleases = other.Prereleases
	}
	return out, nil
}

// Filter returns the subset of candidates that satisfy s's clauses and
// pre-release policy. override, when non-nil, forces prereleases on or
// off regardless of s.Prereleases or the clauses; pass nil to use s's own
// policy. When that policy is unspecified (s.Prereleases == nil and no
// clause literal pins a prerelease) and no candidate final release
// satisfies s, the "fall-through" rule lets the satisfying prereleases be
// returned instead of an empty result.
func (s SpecifierSet) Filter(candidates []version.Version, override *bool) []version.Version {
	var finals, prereleases []version.Version
	for _, v := range candidates {
		if !s.clausesContain(v) {
			continue
		}
		if v.IsPrerelease() {
			prereleases = append(prereleases, v)
		} else {
			finals = append(finals, v)
		}
	}

	allow := override
	if allow == nil {
		allow = s.Prereleases
	}
	if allow != nil {
		if *allow {
			return append(finals, prereleases...)
		}
		return finals
	}
	if s.anyClausePinsPrerelease() {
		return append(finals, prereleases...)
	}
	if len(finals) > 0 {
		return finals
	}
	return prereleases
}

// FilterStrings is Filter over raw version strings: entries that do not
// parse as PEP 440 versions are silently skipped rather than reported,
// since candidate lists commonly mix in non-PEP-440 tags from other
// versioning schemes.
func (s SpecifierSet) FilterStrings(candidates []string, override *bool) []version.Version {
	parsed := make([]version.Version, 0, len(candidates))
	for _, c := range candidates {
		v, err := version.Parse(c)
		if err != nil {
			continue
		}
		parsed = append(parsed, v)
	}
	return s.Filter(parsed, override)
}
