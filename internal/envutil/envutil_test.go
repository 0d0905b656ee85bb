package envutil

import (
	"testing"
	"time"
)

func TestParseBool(t *testing.T) {
	cases := map[string]bool{
		"1":     true,
		"true":  true,
		"TRUE":  true,
		"yes":   true,
		"on":    true,
		" y ":   true,
		"false": false,
		"0":     false,
		"":      false,
	}
	for input, want := range cases {
		if got := ParseBool(input); got != want {
			t.Fatalf("ParseBool(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestString(t *testing.T) {
	t.Setenv("AXIOM_TEST_CONFIG", "  /etc/axiom/config.yaml ")
	if got := String("AXIOM_TEST_CONFIG", ""); got != "/etc/axiom/config.yaml" {
		t.Fatalf("unexpected value %q", got)
	}
	t.Setenv("AXIOM_TEST_CONFIG", "   ")
	if got := String("AXIOM_TEST_CONFIG", "fallback"); got != "fallback" {
		t.Fatalf("blank value should fall back, got %q", got)
	}
}

func TestDuration(t *testing.T) {
	t.Setenv("AXIOM_TEST_PING", "750ms")
	if got := Duration("AXIOM_TEST_PING", time.Second); got != 750*time.Millisecond {
		t.Fatalf("unexpected duration %v", got)
	}
	for _, bad := range []string{"soon", "-1s", ""} {
		t.Setenv("AXIOM_TEST_PING", bad)
		if got := Duration("AXIOM_TEST_PING", time.Second); got != time.Second {
			t.Fatalf("%q should fall back, got %v", bad, got)
		}
	}
}
