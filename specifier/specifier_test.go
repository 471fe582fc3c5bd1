package specifier

import (
	"testing"

	"github.com/AlexanderEkdahl/pkgspec/version"
)

func TestContains(t *testing.T) {
	testCases := []struct {
		spec  string
		vers  string
		match bool
	}{
		{">=1.0", "1.0", true},
		{">=1.0", "0.9", false},
		{"==1.0", "1.0", true},
		{"==1.0", "1.0.0", true},
		{"!=1.0", "1.0", false},
		{"==1.0.*", "1.0.1", true},
		{"==1.0.*", "1.1", false},
		{"<2.0", "2.0.dev0", false},
		{"<2.0", "1.9.dev0", false},
		{">1.0", "1.0.post1", false},
		{">1.0.post1", "1.0.post2", true},
		{"~=2.2", "2.3", true},
		{"~=2.2", "3.0", false},
		{"~=2.2.post3", "2.2.post4", true},
		{"===1.0+local", "1.0+local", true},
		{">=1.0", "1.0+local", true},
		{"==1.0", "1.0+local", true},
		{"==1.0+local", "1.0", false},
	}
	for _, tc := range testCases {
		t.Run(tc.spec+"_"+tc.vers, func(t *testing.T) {
			set, err := Parse(tc.spec)
			if err != nil {
				t.Fatalf("unexpected parse error: %v", err)
			}
			v := version.MustParse(tc.vers)
			if got := set.Contains(v); got != tc.match {
				t.Fatalf("Contains(%s, %s) = %v, want %v", tc.spec, tc.vers, got, tc.match)
			}
		})
	}
}

func TestFilterExcludesPrereleaseByDefault(t *testing.T) {
	set, err := Parse(">=1.0")
	if err != nil {
		t.Fatal(err)
	}
	candidates := []version.Version{version.MustParse("1.0"), version.MustParse("1.1a1")}

	got := set.Filter(candidates, nil)
	if len(got) != 1 || !got[0].Equal(version.MustParse("1.0")) {
		t.Fatalf("expected only the final release by default, got %v", got)
	}

	got = set.Filter(candidates, BoolPtr(true))
	if len(got) != 2 {
		t.Fatalf("expected both candidates with includePrereleases, got %v", got)
	}
}

func TestParseRejectsInvalidClauses(t *testing.T) {
	for _, spec := range []string{"~=1.0.*", "~=1", "===1.0.*", ">1.0.*", "not-a-clause"} {
		t.Run(spec, func(t *testing.T) {
			if _, err := Parse(spec); err == nil {
				t.Fatalf("expected an error parsing %q", spec)
			}
		})
	}
}

func TestArbitraryEqualAcceptsNonVersionStrings(t *testing.T) {
	set, err := Parse("===foobar")
	if err != nil {
		t.Fatalf("expected === to accept an arbitrary non-PEP-440 string, got: %v", err)
	}
	if got := set.Clauses[0].Literal; got != "foobar" {
		t.Fatalf("got literal %q, want foobar", got)
	}
	if set.Contains(version.MustParse("1.0")) {
		t.Fatal("expected 1.0 not to match an unrelated arbitrary string")
	}
}

func TestFilterFallsThroughToPrereleases(t *testing.T) {
	set, err := Parse(">=2.0")
	if err != nil {
		t.Fatal(err)
	}
	candidates := []version.Version{
		version.MustParse("1.9"),
		version.MustParse("2.0a1"),
		version.MustParse("2.0rc1"),
	}

	got := set.Filter(candidates, nil)
	if len(got) != 2 {
		t.Fatalf("expected the pre-release fall-through to return both candidates, got %v", got)
	}

	withFinal := append(candidates, version.MustParse("2.0"))
	got = withFinal[:0:0]
	got = set.Filter(withFinal, nil)
	if len(got) != 1 || !got[0].Equal(version.MustParse("2.0")) {
		t.Fatalf("expected only the final release once one is available, got %v", got)
	}
}

func TestStringSortsClauses(t *testing.T) {
	a, err := Parse(">=2.8.1,==2.8.*")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	b, err := Parse("==2.8.*, >=2.8.1")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if a.String() != b.String() {
		t.Fatalf("expected clause order not to affect the canonical string: %q != %q", a.String(), b.String())
	}
	if want := "==2.8.*,>=2.8.1"; a.String() != want {
		t.Fatalf("String() = %q, want %q", a.String(), want)
	}
}

func TestFilterStringsSkipsInvalid(t *testing.T) {
	set, err := Parse(">=1.0")
	if err != nil {
		t.Fatal(err)
	}
	got := set.FilterStrings([]string{"1.0", "not-a-version", "2.0", "2.x"}, nil)
	if len(got) != 2 {
		t.Fatalf("expected the invalid entries to be skipped silently, got %v", got)
	}
}

func TestIntersect(t *testing.T) {
	a, _ := Parse(">=1.0")
	b, _ := Parse("<2.0")
	combined, err := a.Intersect(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !combined.Contains(version.MustParse("1.5")) {
		t.Fatal("expected 1.5 to satisfy the intersection")
	}
	if combined.Contains(version.MustParse("2.5")) {
		t.Fatal("expected 2.5 to fail the intersection")
	}
}

func TestIntersectConflictingPrereleasePreference(t *testing.T) {
	a, _ := Parse(">=1.0")
	a.Prereleases = BoolPtr(true)
	b, _ := Parse("<2.0")
	b.Prereleases = BoolPtr(false)
	if _, err := a.Intersect(b); err == nil {
		t.Fatal("expected conflicting prerelease preferences to be rejected")
	}
}

func TestIntersectUnspecifiedPreferenceDefersToExplicit(t *testing.T) {
	a, _ := Parse(">=1.0")
	b, _ := Parse("<2.0")
	b.Prereleases = BoolPtr(false)
	combined, err := a.Intersect(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if combined.Prereleases == nil || *combined.Prereleases != false {
		t.Fatal("expected the explicit side's preference to win")
	}
}

func TestExclusionaryBridgeAdmitsDevRelease(t *testing.T) {
	set, err := Parse(">=1,!=1.*,!=2.*,!=3.0,<=3.0")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if !set.Contains(version.MustParse("3.0.dev0")) {
		t.Fatal("expected the exclusionary bridge to admit 3.0.dev0")
	}
}

func TestExplicitPrereleasePreferenceOverridesBridge(t *testing.T) {
	set, err := Parse(">=1,!=1.*,!=2.*,!=3.0,<=3.0")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	set.Prereleases = BoolPtr(false)
	if set.Contains(version.MustParse("3.0.dev0")) {
		t.Fatal("expected an explicit false preference to reject the prerelease even at a bridge")
	}
}
