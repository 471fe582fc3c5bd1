package requirement

import (
	"strings"
	"testing"

	"github.com/AlexanderEkdahl/pkgspec/marker"
)

func TestParse(t *testing.T) {
	r, err := Parse(`requests[security,socks]>=2.20,!=2.24.*; python_version >= "3.6"`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Name != "requests" {
		t.Fatalf("got name %q, want requests", r.Name)
	}
	if len(r.Extras) != 2 || r.Extras[0] != "security" || r.Extras[1] != "socks" {
		t.Fatalf("got extras %v, want [security socks]", r.Extras)
	}
	if len(r.Specifier.Clauses) != 2 {
		t.Fatalf("got %d clauses, want 2", len(r.Specifier.Clauses))
	}
	if r.Marker == nil {
		t.Fatal("expected a non-nil marker")
	}
	env := marker.MapEnvironment{marker.VarPythonVersion: "3.9"}
	ok, err := r.Marker.Evaluate(env)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected the marker to evaluate true for python 3.9")
	}
}

func TestParseURL(t *testing.T) {
	r, err := Parse("pip @ https://example.com/pip.whl")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.URL != "https://example.com/pip.whl" {
		t.Fatalf("got url %q", r.URL)
	}
	if len(r.Specifier.Clauses) != 0 {
		t.Fatal("expected no specifier clauses alongside a URL")
	}
}

func TestParseURLWithMarker(t *testing.T) {
	r, err := Parse(`name @ http://foo.com ; extra == "feature"`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.URL != "http://foo.com" {
		t.Fatalf("got url %q", r.URL)
	}
	if r.Marker == nil {
		t.Fatal("expected a non-nil marker")
	}
}

func TestParseFileURL(t *testing.T) {
	for _, in := range []string{"name @ file:///absolute/path", "name @ file://.", "name @ file:.", "name @ file:./relative/path"} {
		t.Run(in, func(t *testing.T) {
			if _, err := Parse(in); err != nil {
				t.Fatalf("unexpected error parsing %q: %v", in, err)
			}
		})
	}
}

func TestParseRejectsInvalidURLScheme(t *testing.T) {
	for _, in := range []string{"name @ gopher:/foo/com", "name @ file:/.", "name @ file:path"} {
		t.Run(in, func(t *testing.T) {
			if _, err := Parse(in); err == nil {
				t.Fatalf("expected an error parsing %q", in)
			}
		})
	}
}

func TestParseURLMissingSpaceBeforeSemicolonHint(t *testing.T) {
	_, err := Parse(`name @ http://foo.com; python_version<'2.7'`)
	if err == nil {
		t.Fatal("expected an error for a URL marker with no space before ';'")
	}
	if !strings.Contains(err.Error(), "space before ';'") {
		t.Fatalf("expected a missing-space hint, got: %v", err)
	}
}

func TestParseNameOnly(t *testing.T) {
	r, err := Parse("numpy")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Name != "numpy" || len(r.Extras) != 0 || r.URL != "" || len(r.Specifier.Clauses) != 0 || r.Marker != nil {
		t.Fatalf("unexpected parse result: %+v", r)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "[extra]nope", "name >= ", "name; garbage marker"} {
		t.Run(in, func(t *testing.T) {
			if _, err := Parse(in); err == nil {
				t.Fatalf("expected an error parsing %q", in)
			}
		})
	}
}

func TestString(t *testing.T) {
	r, err := Parse(`Flask[async]>=2.0`)
	if err != nil {
		t.Fatal(err)
	}
	got := r.String()
	want := `Flask[async]>=2.0`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestEqual(t *testing.T) {
	a, _ := Parse("Foo[b,a]>=1.0")
	b, _ := Parse("foo[a,b]>=1.0")
	if !a.Equal(b) {
		t.Fatal("expected requirements with equivalent canonical names and reordered extras to be equal")
	}

	c, _ := Parse("foo[a,b]>=1.1")
	if a.Equal(c) {
		t.Fatal("expected requirements with different specifiers to be unequal")
	}
}

func TestParseArbitraryEqual(t *testing.T) {
	r, err := Parse("foopkg===1.0+local")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(r.Specifier.Clauses) != 1 || r.Specifier.Clauses[0].Operator != "===" {
		t.Fatalf("expected a single === clause, got %+v", r.Specifier.Clauses)
	}
}

func TestCanonicalName(t *testing.T) {
	r, _ := Parse("Django_REST.Framework")
	if r.CanonicalName() != "django-rest-framework" {
		t.Fatalf("got %q, want django-rest-framework", r.CanonicalName())
	}
}
