// Package requirement implements the PEP 508 dependency specification
// grammar: a distribution name, optional extras, an optional version
// specifier or URL, and an optional environment marker.
package requirement

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/AlexanderEkdahl/pkgspec/marker"
	"github.com/AlexanderEkdahl/pkgspec/pkgname"
	"github.com/AlexanderEkdahl/pkgspec/specifier"
)

// Requirement is a fully parsed PEP 508 dependency specification, e.g.
// "requests[security]>=2.20,!=2.24.*; python_version >= '3.6'".
//
// URL and Specifier are mutually exclusive: a requirement names either a
// direct URL or a version specifier set, never both.
type Requirement struct {
	Name      string
	Extras    []string
	URL       string
	Specifier specifier.SpecifierSet
	Marker    marker.Node
}

// InvalidRequirementError is returned by Parse when the input does not
// conform to the PEP 508 grammar.
type InvalidRequirementError struct {
	Text   string
	Offset int
	Reason string
}

func (e *InvalidRequirementError) Error() string {
	return fmt.Sprintf("invalid requirement %q at offset %d: %s", e.Text, e.Offset, e.Reason)
}

// Parse parses a PEP 508 requirement string.
func Parse(input string) (Requirement, error) {
	p := &parser{s: input}
	var r Requirement

	p.skipWhitespace()
	name := p.expectFunc(identifierRune)
	if name == "" {
		return Requirement{}, &InvalidRequirementError{Text: input, Offset: p.pos, Reason: "expected a distribution name"}
	}
	r.Name = name

	p.skipWhitespace()
	if p.peekRune() == '[' {
		extras, err := p.extras()
		if err != nil {
			return Requirement{}, err
		}
		r.Extras = extras
	}

	p.skipWhitespace()
	switch rn := p.peekRune(); {
	case rn == '@':
		p.next()
		p.skipWhitespace()
		urlStart := p.pos
		url := p.expectFunc(func(r rune, _ int) bool { return !unicode.IsSpace(r) })
		if url == "" {
			return Requirement{}, &InvalidRequirementError{Text: input, Offset: p.pos, Reason: "expected a URL after '@'"}
		}
		p.skipWhitespace()
		switch {
		case p.peekRune() == ';':
			// Separated from the marker by whitespace; the URL itself
			// does not include the ';'.
		case p.pos == len(p.s):
			// URL ran to the end of the string; a trailing ';' with
			// nothing after it is just part of the URL.
		case strings.HasSuffix(url, ";"):
			// The marker follows without a space before the ';', so the
			// greedy URL scan above swallowed it. Report the same
			// "missing space" hint a forgotten separator produces instead
			// of a generic parse error.
			hintPos := urlStart + len(url) - 1
			return Requirement{}, &InvalidRequirementError{
				Text:   input,
				Offset: hintPos,
				Reason: "expected a space before ';' (followed by markers); did you mean \"" + input[:hintPos] + " " + input[hintPos:] + "\"?",
			}
		default:
			return Requirement{}, &InvalidRequirementError{Text: input, Offset: p.pos, Reason: "expected a semicolon (followed by markers) or end of string after the URL"}
		}
		if err := validateURLScheme(url); err != nil {
			return Requirement{}, &InvalidRequirementError{Text: input, Offset: urlStart, Reason: err.Error()}
		}
		r.URL = url
	case rn == '(':
		p.next()
		set, err := p.specifierClauses()
		if err != nil {
			return Requirement{}, err
		}
		r.Specifier = set
		p.skipWhitespace()
		if p.next() != ')' {
			return Requirement{}, &InvalidRequirementError{Text: input, Offset: p.pos, Reason: "expected closing parenthesis"}
		}
	case p.peek(specifierLeaders...):
		set, err := p.specifierClauses()
		if err != nil {
			return Requirement{}, err
		}
		r.Specifier = set
	}

	p.skipWhitespace()
	if p.peekRune() == ';' {
		p.next()
		m, err := marker.Parse(p.s[p.pos:])
		if err != nil {
			return Requirement{}, err
		}
		r.Marker = m
		p.pos = len(p.s)
	}

	p.skipWhitespace()
	if p.pos != len(p.s) {
		return Requirement{}, &InvalidRequirementError{Text: input, Offset: p.pos, Reason: "unexpected trailing input"}
	}

	return r, nil
}

// CanonicalName returns the PEP 503 normalized form of r.Name.
func (r Requirement) CanonicalName() string { return pkgname.Canonicalize(r.Name) }

// String renders r back into PEP 508 requirement-string form.
func (r Requirement) String() string {
	var b strings.Builder
	b.WriteString(r.Name)
	if len(r.Extras) > 0 {
		b.WriteByte('[')
		b.WriteString(strings.Join(r.Extras, ","))
		b.WriteByte(']')
	}
	if r.URL != "" {
		b.WriteString(" @ ")
		b.WriteString(r.URL)
	} else if len(r.Specifier.Clauses) > 0 {
		b.WriteString(r.Specifier.String())
	}
	if r.Marker != nil {
		b.WriteString("; ")
		b.WriteString(r.Marker.String())
	}
	return b.String()
}

// Equal reports whether r and o are equivalent requirements: same
// canonical name, same sorted extras, same URL/specifier string, and
// same marker string. Marker ASTs compare by rendered form rather than
// structurally, mirroring how PEP 508 itself defines requirement
// equality in terms of the normalized string form.
func (r Requirement) Equal(o Requirement) bool {
	if r.CanonicalName() != o.CanonicalName() {
		return false
	}
	if !equalExtras(r.Extras, o.Extras) {
		return false
	}
	if r.URL != o.URL {
		return false
	}
	if r.Specifier.String() != o.Specifier.String() {
		return false
	}
	return markerString(r.Marker) == markerString(o.Marker)
}

func markerString(m marker.Node) string {
	if m == nil {
		return ""
	}
	return m.String()
}

func equalExtras(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	sa := append([]string(nil), a...)
	sb := append([]string(nil), b...)
	sort.Strings(sa)
	sort.Strings(sb)
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}
	return true
}

// allowedURLSchemes is the whitelist of schemes permitted in a direct URL
// reference, covering plain transport schemes plus the VCS "+"-prefixed
// forms (e.g. "git+https"). "file" additionally requires either "//"
// after the colon or a dot-path: "file:///absolute/path", "file://.",
// and "file:./relative" are accepted, but a bare "file:path" or
// single-slash "file:/path" is not.
var allowedURLSchemes = map[string]bool{
	"http":  true,
	"https": true,
	"ftp":   true,
	"ssh":   true,
	"git":   true,
	"hg":    true,
	"svn":   true,
	"bzr":   true,
	"file":  true,
}

func validateURLScheme(raw string) error {
	scheme, rest, ok := strings.Cut(raw, ":")
	if !ok || scheme == "" {
		return fmt.Errorf("URL %q is missing a scheme", raw)
	}
	scheme = strings.ToLower(scheme)
	base := scheme
	if i := strings.IndexByte(scheme, '+'); i >= 0 {
		base = scheme[:i]
	}
	if !allowedURLSchemes[base] {
		return fmt.Errorf("unsupported URL scheme %q", scheme)
	}
	if base == "file" && !strings.HasPrefix(rest, "//") && !strings.HasPrefix(rest, ".") {
		return fmt.Errorf("file: URLs must start with file:// or a dot-path (got %q)", raw)
	}
	return nil
}

// Longer operators that share a prefix with a shorter one must be tried
// first: expect/peek stop at the first prefix match, so "===" before
// "==" (and "<=" before "<", ">=" before ">") is load-bearing.
var specifierLeaders = []string{"===", "<=", "<", "!=", "==", ">=", ">", "~="}

var eof rune = -1

type parser struct {
	s   string
	pos int
}

func (p *parser) expectFunc(f func(r rune, i int) bool) string {
	start := p.pos
	for i, r := range p.s[p.pos:] {
		if !f(r, i) {
			return p.s[start : start+i]
		}
		p.pos += utf8.RuneLen(r)
	}
	return p.s[start:]
}

func (p *parser) skipWhitespace() {
	for _, r := range p.s[p.pos:] {
		if r != ' ' && r != '\t' {
			break
		}
		p.pos += utf8.RuneLen(r)
	}
}

func (p *parser) peekRune() rune {
	for _, r := range p.s[p.pos:] {
		return r
	}
	return eof
}

func (p *parser) peek(ss ...string) bool {
	for _, s := range ss {
		if strings.HasPrefix(p.s[p.pos:], s) {
			return true
		}
	}
	return false
}

func (p *parser) next() rune {
	for _, r := range p.s[p.pos:] {
		p.pos += utf8.RuneLen(r)
		return r
	}
	return eof
}

func (p *parser) extras() ([]string, error) {
	p.next() // consume '['
	var extras []string
	for {
		p.skipWhitespace()
		name := p.expectFunc(identifierRune)
		if name == "" {
			return nil, &InvalidRequirementError{Text: p.s, Offset: p.pos, Reason: "expected an extra name"}
		}
		extras = append(extras, name)

		p.skipWhitespace()
		switch p.peekRune() {
		case ']':
			p.next()
			return extras, nil
		case ',':
			p.next()
		default:
			return nil, &InvalidRequirementError{Text: p.s, Offset: p.pos, Reason: "expected ',' or ']' in extras list"}
		}
	}
}

// specifierClauses scans one or more comma-separated clauses, tolerating
// a missing comma before a clause that begins with a new operator (the
// same leniency the grammar's reference parsers apply).
func (p *parser) specifierClauses() (specifier.SpecifierSet, error) {
	start := p.pos
	for {
		p.skipWhitespace()
		op := p.expect(specifierLeaders...)
		if op == "" {
			return specifier.SpecifierSet{}, &InvalidRequirementError{Text: p.s, Offset: p.pos, Reason: "expected a version comparison operator"}
		}
		p.skipWhitespace()
		p.expectFunc(isVersionRune)

		p.skipWhitespace()
		switch {
		case p.peekRune() == ',':
			p.next()
		case p.peek(specifierLeaders...):
			continue
		default:
			clauseText := p.s[start:p.pos]
			return specifier.Parse(clauseText)
		}
	}
}

func (p *parser) expect(ss ...string) string {
	for _, s := range ss {
		if strings.HasPrefix(p.s[p.pos:], s) {
			p.pos += len(s)
			return s
		}
	}
	return ""
}

func identifierRune(r rune, i int) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || i > 0 && (r == '-' || r == '_' || r == '.')
}

func isVersionRune(r rune, _ int) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '.' || r == '*' || r == '+' || r == '!'
}
