package util

import "testing"

func TestParseBoolEnvDefaults(t *testing.T) {
	t.Setenv("HUBDISPATCH_TEST_BOOL", "")
	if got := ParseBoolEnv("HUBDISPATCH_TEST_BOOL", true); !got {
		t.Errorf("Expected default true for empty value, got %v", got)
	}
}

func TestParseBoolEnvValues(t *testing.T) {
	cases := map[string]bool{"true": true, "1": true, "YES": true, "on": true, "false": false, "0": false, "No": false, "off": false}
	for val, want := range cases {
		t.Setenv("HUBDISPATCH_TEST_BOOL", val)
		if got := ParseBoolEnv("HUBDISPATCH_TEST_BOOL", !want); got != want {
			t.Errorf("Expected %v for %q, got %v", want, val, got)
		}
	}
}

func TestParseBoolEnvInvalid(t *testing.T) {
	t.Setenv("HUBDISPATCH_TEST_BOOL", "maybe")
	if got := ParseBoolEnv("HUBDISPATCH_TEST_BOOL", true); !got {
		t.Errorf("Expected default for invalid value, got %v", got)
	}
}

func TestParseInt64Env(t *testing.T) {
	t.Setenv("HUBDISPATCH_TEST_INT", "2500")
	if got := ParseInt64Env("HUBDISPATCH_TEST_INT", 1000); got != 2500 {
		t.Errorf("Expected 2500, got %d", got)
	}
}

func TestParseInt64EnvInvalid(t *testing.T) {
	t.Setenv("HUBDISPATCH_TEST_INT", "ten")
	if got := ParseInt64Env("HUBDISPATCH_TEST_INT", 1000); got != 1000 {
		t.Errorf("Expected default 1000 for invalid value, got %d", got)
	}
}
