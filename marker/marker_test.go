package marker

import (
	"testing"
)

func TestParseAndEvaluate(t *testing.T) {
	env := MapEnvironment{
		VarPythonVersion:      "3.9",
		VarSysPlatform:        "linux",
		VarOSName:             "posix",
		VarImplementationName: "cpython",
		VarExtra:              "",
	}

	testCases := []struct {
		expr string
		want bool
	}{
		{`python_version >= "3.6"`, true},
		{`python_version < "3.6"`, false},
		{`sys_platform == "linux"`, true},
		{`sys_platform == "linux" and python_version >= "3.6"`, true},
		{`sys_platform == "win32" or python_version >= "3.6"`, true},
		{`sys_platform == "win32" or python_version < "3.6"`, false},
		{`(sys_platform == "linux" and python_version < "3.6") or implementation_name == "cpython"`, true},
		{`"posix" in os_name`, true},
		{`"nt" not in os_name`, true},
		{`python_version == "3.*"`, true},
		{`python_version == "2.*"`, false},
	}

	for _, tc := range testCases {
		t.Run(tc.expr, func(t *testing.T) {
			n, err := Parse(tc.expr)
			if err != nil {
				t.Fatalf("unexpected parse error: %v", err)
			}
			got, err := n.Evaluate(env)
			if err != nil {
				t.Fatalf("unexpected evaluation error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("Evaluate(%s) = %v, want %v", tc.expr, got, tc.want)
			}
		})
	}
}

func TestSubstringMatchOnPlatform(t *testing.T) {
	n, err := Parse(`'linux' in sys_platform`)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	got, err := n.Evaluate(MapEnvironment{VarSysPlatform: "linux2"})
	if err != nil {
		t.Fatalf("unexpected evaluation error: %v", err)
	}
	if !got {
		t.Fatal("expected 'linux' in sys_platform to match linux2 by substring")
	}
}

func TestVersionComparisonIsNotLexical(t *testing.T) {
	n, err := Parse(`python_version > '3.6'`)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	got, err := n.Evaluate(MapEnvironment{VarPythonVersion: "3.10"})
	if err != nil {
		t.Fatalf("unexpected evaluation error: %v", err)
	}
	if !got {
		t.Fatal("expected 3.10 > 3.6 under version semantics (lexical comparison would say otherwise)")
	}
}

func TestParseRejectsUnknownVariable(t *testing.T) {
	_, err := Parse(`not_a_real_variable == "1"`)
	if err == nil {
		t.Fatal("expected an error for an unknown marker variable")
	}
	var merr *InvalidMarkerError
	if !errorsAsMarker(err, &merr) {
		t.Fatalf("expected an *InvalidMarkerError, got %T", err)
	}
	if merr.Kind != KindUndefinedEnvironmentName {
		t.Fatalf("expected KindUndefinedEnvironmentName, got %v", merr.Kind)
	}
}

func errorsAsMarker(err error, target **InvalidMarkerError) bool {
	if e, ok := err.(*InvalidMarkerError); ok {
		*target = e
		return true
	}
	return false
}

func TestParseCanonicalizesDottedVariableNames(t *testing.T) {
	for _, expr := range []string{
		`platform.python_implementation == "CPython"`,
		`python_implementation == "CPython"`,
	} {
		n, err := Parse(expr)
		if err != nil {
			t.Fatalf("Parse(%s): unexpected error: %v", expr, err)
		}
		got, err := n.Evaluate(MapEnvironment{VarPlatformPythonImplementation: "CPython"})
		if err != nil {
			t.Fatalf("Evaluate(%s): unexpected error: %v", expr, err)
		}
		if !got {
			t.Fatalf("Evaluate(%s) = false, want true", expr)
		}
	}
}

func TestPythonFullVersionRepair(t *testing.T) {
	n, err := Parse(`python_full_version == "3.9.0+local"`)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	got, err := n.Evaluate(MapEnvironment{VarPythonFullVersion: "3.9.0+"})
	if err != nil {
		t.Fatalf("unexpected evaluation error: %v", err)
	}
	if !got {
		t.Fatal("expected a trailing '+' in python_full_version to be repaired to '+local'")
	}
}

func TestUndefinedComparisonOperator(t *testing.T) {
	n, err := Parse(`sys_platform ~= "linux"`)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	_, err = n.Evaluate(MapEnvironment{VarSysPlatform: "linux"})
	if err == nil {
		t.Fatal("expected an UndefinedComparisonError for ~= on non-version strings")
	}
	if _, ok := err.(*UndefinedComparisonError); !ok {
		t.Fatalf("expected *UndefinedComparisonError, got %T", err)
	}
}

func TestParseRejectsTrailingInput(t *testing.T) {
	if _, err := Parse(`python_version >= "3.6" garbage`); err == nil {
		t.Fatal("expected an error for trailing input")
	}
}

func TestExtraMarker(t *testing.T) {
	n, err := Parse(`extra == "security"`)
	if err != nil {
		t.Fatal(err)
	}
	ok, err := n.Evaluate(MapEnvironment{VarExtra: "security"})
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected extra == \"security\" to evaluate true when extra is set to security")
	}

	ok, err = n.Evaluate(MapEnvironment{VarExtra: ""})
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected extra == \"security\" to evaluate false when extra is unset")
	}
}

func TestExtraMarkerCanonicalizesBothSides(t *testing.T) {
	n, err := Parse(`extra == "Security_Extra"`)
	if err != nil {
		t.Fatal(err)
	}
	ok, err := n.Evaluate(MapEnvironment{VarExtra: "security-extra"})
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected extra comparison to canonicalize both sides before comparing")
	}
}

func TestArbitraryEqualOperator(t *testing.T) {
	n, err := Parse(`python_full_version === "3.9.0"`)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	ok, err := n.Evaluate(MapEnvironment{VarPythonFullVersion: "3.9.0"})
	if err != nil {
		t.Fatalf("unexpected evaluation error: %v", err)
	}
	if !ok {
		t.Fatal("expected === to compare for exact string identity")
	}
}

func TestDefaultEnvironmentIsComplete(t *testing.T) {
	env := DefaultEnvironment()
	for _, v := range envVars {
		if _, err := env.Get(v); err != nil {
			t.Fatalf("DefaultEnvironment is missing a value for %q", v)
		}
	}
}
