// Package pkgname implements PEP 503 project-name normalization:
// https://peps.python.org/pep-0503/#normalized-names
package pkgname

import (
	"regexp"
	"strings"
)

var normalizationRe = regexp.MustCompile(`[-_.]+`)

// normalizedForm matches a name already in PEP 503 canonical form: a
// lowercase alphanumeric run, optionally with single hyphens separating
// further lowercase-alphanumeric runs.
var normalizedForm = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

// Canonicalize returns the normalized form of a project name: lowercased,
// with every run of "-", "_", or "." collapsed to a single "-".
func Canonicalize(name string) string {
	return strings.ToLower(normalizationRe.ReplaceAllString(name, "-"))
}

// IsNormalized reports whether name is already in its canonical form:
// canonicalizing it is a no-op, and it matches the canonical character
// class (lowercase alphanumerics and single internal hyphens only).
func IsNormalized(name string) bool {
	return Canonicalize(name) == name && normalizedForm.MatchString(name)
}
