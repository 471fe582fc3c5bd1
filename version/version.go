// Package version implements the version scheme defined by PEP 440:
// https://www.python.org/dev/peps/pep-0440/
package version

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Pre-release phase labels, after alias normalization
// (alpha→a, beta→b, c/pre/preview→rc).
const (
	PhaseAlpha     = "a"
	PhaseBeta      = "b"
	PhaseCandidate = "rc"
)

// https://www.python.org/dev/peps/pep-0440/#appendix-b-parsing-version-strings-with-regular-expressions
var pattern = regexp.MustCompile(`^\s*v?` +
	`(?:(?P<epoch>[0-9]+)!)?` + // epoch
	`(?P<release>[0-9]+(?:\.[0-9]+)*)` + // release segment
	`(?P<pre>[-_\.]?(?P<pre_l>a|b|c|rc|alpha|beta|pre|preview)[-_\.]?(?P<pre_n>[0-9]+)?)?` + // pre-release
	`(?P<post>(?:-(?P<post_n1>[0-9]+))|(?:[-_\.]?(?P<post_l>post|rev|r)[-_\.]?(?P<post_n2>[0-9]+)?))?` + // post-release
	`(?P<dev>[-_\.]?(?P<dev_l>dev)[-_\.]?(?P<dev_n>[0-9]+)?)?` + // dev-release
	`(?:\+(?P<local>[a-z0-9]+(?:[-_\.][a-z0-9]+)*))?` + // local version
	`\s*$`)

var preAliases = map[string]string{
	"a": PhaseAlpha, "alpha": PhaseAlpha,
	"b": PhaseBeta, "beta": PhaseBeta,
	"rc": PhaseCandidate, "c": PhaseCandidate, "pre": PhaseCandidate, "preview": PhaseCandidate,
}

// PreRelease identifies the pre-release component of a Version. The zero
// value (Label == "") means "no pre-release".
type PreRelease struct {
	Label string // PhaseAlpha, PhaseBeta, PhaseCandidate, or "" if absent
	N     int
}

// LocalSegment is one dot/hyphen/underscore-separated component of a local
// version. Num is only meaningful when IsNum is true.
type LocalSegment struct {
	Str   string
	Num   int
	IsNum bool
}

func (s LocalSegment) String() string {
	if s.IsNum {
		return strconv.Itoa(s.Num)
	}
	return s.Str
}

// Version is an immutable, parsed PEP 440 version: the tuple
// (epoch, release, pre, post, dev, local).
type Version struct {
	Epoch   int
	Release []int
	Pre     PreRelease // Label == "" means absent
	HasPost bool
	Post    int
	HasDev  bool
	Dev     int
	Local   []LocalSegment
}

// InvalidVersionError is returned by Parse and Replace when the input does
// not conform to the PEP 440 grammar.
type InvalidVersionError struct {
	Text   string
	Reason string
}

func (e *InvalidVersionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid version %q: %s", e.Text, e.Reason)
	}
	return fmt.Sprintf("invalid version %q", e.Text)
}

// Parse parses s as a PEP 440 version string. Leading "v" and surrounding
// whitespace are stripped and letters are lowercased before matching.
func Parse(s string) (Version, error) {
	input := strings.ToLower(s)
	m := pattern.FindStringSubmatch(input)
	if m == nil {
		return Version{}, &InvalidVersionError{Text: s}
	}

	var v Version
	names := pattern.SubexpNames()
	for i, name := range names {
		val := m[i]
		if val == "" {
			continue
		}
		switch name {
		case "epoch":
			n, err := strconv.Atoi(val)
			if err != nil {
				return Version{}, &InvalidVersionError{Text: s, Reason: "malformed epoch"}
			}
			v.Epoch = n
		case "release":
			for _, part := range strings.Split(val, ".") {
				n, err := strconv.Atoi(part)
				if err != nil {
					return Version{}, &InvalidVersionError{Text: s, Reason: "malformed release segment"}
				}
				v.Release = append(v.Release, n)
			}
		case "pre_l":
			label, ok := preAliases[val]
			if !ok {
				return Version{}, &InvalidVersionError{Text: s, Reason: fmt.Sprintf("unknown pre-release label %q", val)}
			}
			v.Pre.Label = label
		case "pre_n":
			n, err := strconv.Atoi(val)
			if err != nil {
				return Version{}, &InvalidVersionError{Text: s, Reason: "malformed pre-release number"}
			}
			v.Pre.N = n
		case "post_l":
			v.HasPost = true
		case "post_n1", "post_n2":
			v.HasPost = true
			n, err := strconv.Atoi(val)
			if err != nil {
				return Version{}, &InvalidVersionError{Text: s, Reason: "malformed post-release number"}
			}
			v.Post = n
		case "dev_l":
			v.HasDev = true
		case "dev_n":
			v.HasDev = true
			n, err := strconv.Atoi(val)
			if err != nil {
				return Version{}, &InvalidVersionError{Text: s, Reason: "malformed dev-release number"}
			}
			v.Dev = n
		case "local":
			v.Local = parseLocal(val)
		}
	}

	if len(v.Release) == 0 {
		return Version{}, &InvalidVersionError{Text: s, Reason: "missing release segment"}
	}

	return v, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// literal version constants.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

func parseLocal(s string) []LocalSegment {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '.' || r == '-' || r == '_'
	})
	segs := make([]LocalSegment, 0, len(parts))
	for _, p := range parts {
		if n, err := strconv.Atoi(p); err == nil {
			segs = append(segs, LocalSegment{Num: n, IsNum: true})
		} else {
			segs = append(segs, LocalSegment{Str: p})
		}
	}
	return segs
}

// IsPrerelease reports whether v has a pre-release or dev-release component.
func (v Version) IsPrerelease() bool {
	return v.Pre.Label != "" || v.HasDev
}

// IsDevRelease reports whether v has a dev-release component.
func (v Version) IsDevRelease() bool {
	return v.HasDev
}

// IsPostRelease reports whether v has a post-release component.
func (v Version) IsPostRelease() bool {
	return v.HasPost
}

// Major returns the first release segment, or 0 if absent.
func (v Version) Major() int { return v.releaseAt(0) }

// Minor returns the second release segment, or 0 if absent.
func (v Version) Minor() int { return v.releaseAt(1) }

// Micro returns the third release segment, or 0 if absent.
func (v Version) Micro() int { return v.releaseAt(2) }

func (v Version) releaseAt(i int) int {
	if i < len(v.Release) {
		return v.Release[i]
	}
	return 0
}

// String returns the canonical representation of v, including any local
// version segment.
func (v Version) String() string {
	var b strings.Builder
	if v.Epoch != 0 {
		fmt.Fprintf(&b, "%d!", v.Epoch)
	}
	for i, n := range v.Release {
		if i != 0 {
			b.WriteByte('.')
		}
		b.WriteString(strconv.Itoa(n))
	}
	if v.Pre.Label != "" {
		b.WriteString(v.Pre.Label)
		b.WriteString(strconv.Itoa(v.Pre.N))
	}
	if v.HasPost {
		fmt.Fprintf(&b, ".post%d", v.Post)
	}
	if v.HasDev {
		fmt.Fprintf(&b, ".dev%d", v.Dev)
	}
	if len(v.Local) > 0 {
		b.WriteByte('+')
		for i, seg := range v.Local {
			if i != 0 {
				b.WriteByte('.')
			}
			b.WriteString(seg.String())
		}
	}
	return b.String()
}

// Public returns the canonical representation of v without the local
// version segment.
func (v Version) Public() string {
	s := v.String()
	if i := strings.IndexByte(s, '+'); i >= 0 {
		return s[:i]
	}
	return s
}

// BaseVersion returns only the epoch and release segments, e.g. "1!1.0".
func (v Version) BaseVersion() string {
	var b strings.Builder
	if v.Epoch != 0 {
		fmt.Fprintf(&b, "%d!", v.Epoch)
	}
	for i, n := range v.Release {
		if i != 0 {
			b.WriteByte('.')
		}
		b.WriteString(strconv.Itoa(n))
	}
	return b.String()
}

// Compare returns -1, 0, or +1 as a sorts before, equal to, or after b
// under the PEP 440 total order: epoch, then release (trailing zeros
// stripped), then pre-release (absent sorts after any present
// pre-release but before post/final — i.e. using a +∞ sentinel unless a
// dev-release is also present, in which case the comparison falls to
// dev), then post-release (absent sorts before any present, using a -∞
// sentinel), then dev-release (absent sorts after any present, using a
// +∞ sentinel), then local version (absent sorts before any present;
// numeric segments sort after string segments at the same index; a
// shorter segment list sorts before a longer one that shares its
// prefix).
func Compare(a, b Version) int {
	if a.Epoch != b.Epoch {
		return cmpInt(a.Epoch, b.Epoch)
	}
	if c := cmpReleases(a.Release, b.Release); c != 0 {
		return c
	}
	if c := cmpPre(a, b); c != 0 {
		return c
	}
	if c := cmpPost(a, b); c != 0 {
		return c
	}
	if c := cmpDev(a, b); c != 0 {
		return c
	}
	return cmpLocal(a.Local, b.Local)
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// cmpReleases compares release segments after stripping trailing zeros
// from each, padding the shorter with zeros for the comparison.
func cmpReleases(a, b []int) int {
	a = stripTrailingZeros(a)
	b = stripTrailingZeros(b)
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		var av, bv int
		if i < len(a) {
			av = a[i]
		}
		if i < len(b) {
			bv = b[i]
		}
		if av != bv {
			return cmpInt(av, bv)
		}
	}
	return 0
}

func stripTrailingZeros(r []int) []int {
	n := len(r)
	for n > 0 && r[n-1] == 0 {
		n--
	}
	return r[:n]
}

// preRank orders pre-release phases: a < b < rc.
func preRank(label string) int {
	switch label {
	case PhaseAlpha:
		return 0
	case PhaseBeta:
		return 1
	case PhaseCandidate:
		return 2
	default:
		return -1
	}
}

// cmpPre compares the pre-release component: a < b < rc, by number. An
// absent pre-release normally sorts after any present one (a final
// release is "more released" than any alpha/beta/rc of the same
// release). The one exception is a dev-only release with no
// post-release (1.0.dev0): it has neither a pre-release nor a
// post-release, yet must still sort before 1.0a1, so it is given the
// lowest possible pre-release rank instead of the highest.
func cmpPre(a, b Version) int {
	ra, rb := preSortKey(a), preSortKey(b)
	if ra.rank != rb.rank {
		return cmpInt(ra.rank, rb.rank)
	}
	if ra.rank != preRankPresent {
		return 0
	}
	if ra.phase != rb.phase {
		return cmpInt(ra.phase, rb.phase)
	}
	return cmpInt(ra.n, rb.n)
}

const (
	preRankDevOnly = iota // -∞: dev-release with no pre- or post-release
	preRankPresent        // an explicit a/b/rc segment is present
	preRankAbsent         // +∞: no pre-release (and not dev-only)
)

type preKey struct {
	rank  int
	phase int
	n     int
}

func preSortKey(v Version) preKey {
	if v.Pre.Label != "" {
		return preKey{rank: preRankPresent, phase: preRank(v.Pre.Label), n: v.Pre.N}
	}
	if v.HasDev && !v.HasPost {
		return preKey{rank: preRankDevOnly}
	}
	return preKey{rank: preRankAbsent}
}

// cmpPost compares the post-release component. Absent sorts before any
// present post-release.
func cmpPost(a, b Version) int {
	switch {
	case a.HasPost && b.HasPost:
		return cmpInt(a.Post, b.Post)
	case a.HasPost:
		return 1
	case b.HasPost:
		return -1
	default:
		return 0
	}
}

// cmpDev compares the dev-release component. Absent sorts after any
// present dev-release (a dev-release is always earlier than its final
// counterpart).
func cmpDev(a, b Version) int {
	switch {
	case a.HasDev && b.HasDev:
		return cmpInt(a.Dev, b.Dev)
	case a.HasDev:
		return -1
	case b.HasDev:
		return 1
	default:
		return 0
	}
}

// cmpLocal compares local-version segment lists. Absent (nil/empty)
// sorts before any present local version. Within the lists, a numeric
// segment sorts after a string segment at the same index; if one list
// is a strict prefix of the other, the shorter sorts first.
func cmpLocal(a, b []LocalSegment) int {
	if len(a) == 0 || len(b) == 0 {
		switch {
		case len(a) == 0 && len(b) == 0:
			return 0
		case len(a) == 0:
			return -1
		default:
			return 1
		}
	}
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if c := cmpLocalSegment(a[i], b[i]); c != 0 {
			return c
		}
	}
	return cmpInt(len(a), len(b))
}

func cmpLocalSegment(a, b LocalSegment) int {
	if a.IsNum != b.IsNum {
		if a.IsNum {
			return 1
		}
		return -1
	}
	if a.IsNum {
		return cmpInt(a.Num, b.Num)
	}
	return strings.Compare(a.Str, b.Str)
}

// Equal reports whether v and o compare equal under the PEP 440 total
// order (§3.1: equality is the canonical component tuple after
// trailing-zero stripping of Release and normalization of Local).
func (v Version) Equal(o Version) bool {
	return Compare(v, o) == 0
}

// GreaterThan reports whether v sorts after o.
func (v Version) GreaterThan(o Version) bool { return Compare(v, o) > 0 }

// GreaterThanOrEqual reports whether v sorts after or equal to o.
func (v Version) GreaterThanOrEqual(o Version) bool { return Compare(v, o) >= 0 }

// LessThan reports whether v sorts before o.
func (v Version) LessThan(o Version) bool { return Compare(v, o) < 0 }

// LessThanOrEqual reports whether v sorts before or equal to o.
func (v Version) LessThanOrEqual(o Version) bool { return Compare(v, o) <= 0 }

// ReplaceParams describes a selective substitution of Version components
// for use with Version.Replace. A nil field leaves the corresponding
// component of the receiver untouched.
type ReplaceParams struct {
	Epoch   *int
	Release []int
	Pre     *PreRelease
	Post    *int // implies HasPost == true
	Dev     *int // implies HasDev == true
	Local   []LocalSegment
}

// Replace returns a new Version with the selected components substituted,
// re-validating the result. Negative integers, an empty release, a
// malformed pre-release label, or an invalid local-version segment are
// rejected.
func (v Version) Replace(p ReplaceParams) (Version, error) {
	out := v
	if p.Epoch != nil {
		if *p.Epoch < 0 {
			return Version{}, &InvalidVersionError{Reason: "epoch must not be negative"}
		}
		out.Epoch = *p.Epoch
	}
	if p.Release != nil {
		if len(p.Release) == 0 {
			return Version{}, &InvalidVersionError{Reason: "release must not be empty"}
		}
		for _, n := range p.Release {
			if n < 0 {
				return Version{}, &InvalidVersionError{Reason: "release segments must not be negative"}
			}
		}
		out.Release = append([]int(nil), p.Release...)
	}
	if p.Pre != nil {
		switch p.Pre.Label {
		case "", PhaseAlpha, PhaseBeta, PhaseCandidate:
		default:
			return Version{}, &InvalidVersionError{Reason: fmt.Sprintf("unknown pre-release label %q", p.Pre.Label)}
		}
		if p.Pre.N < 0 {
			return Version{}, &InvalidVersionError{Reason: "pre-release number must not be negative"}
		}
		out.Pre = *p.Pre
	}
	if p.Post != nil {
		if *p.Post < 0 {
			return Version{}, &InvalidVersionError{Reason: "post-release number must not be negative"}
		}
		out.HasPost = true
		out.Post = *p.Post
	}
	if p.Dev != nil {
		if *p.Dev < 0 {
			return Version{}, &InvalidVersionError{Reason: "dev-release number must not be negative"}
		}
		out.HasDev = true
		out.Dev = *p.Dev
	}
	if p.Local != nil {
		for _, seg := range p.Local {
			if !seg.IsNum && !isLowerAlnum(seg.Str) {
				return Version{}, &InvalidVersionError{Reason: fmt.Sprintf("invalid local version segment %q", seg.Str)}
			}
		}
		out.Local = append([]LocalSegment(nil), p.Local...)
	}
	return out, nil
}

func isLowerAlnum(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

// Versions implements sort.Interface over the PEP 440 total order.
type Versions []Version

func (vs Versions) Len() int           { return len(vs) }
func (vs Versions) Less(i, j int) bool { return Compare(vs[i], vs[j]) < 0 }
func (vs Versions) Swap(i, j int)      { vs[i], vs[j] = vs[j], vs[i] }

var _ sort.Interface = Versions(nil)
