package redact_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/bdobrica/Kotoba/common/redact"
)

func TestString_RedactsSensitiveValues(t *testing.T) {
	got := redact.String("Authorization: Bearer gsk_live_12345 (request)", "gsk_live_12345")
	const want = "Authorization: Bearer [REDACTED] (request)"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestString_SkipsShortValues(t *testing.T) {
	line := "abc token"
	if got := redact.String(line, "abc"); got != line {
		t.Fatalf("short value should not be redacted; got %q", got)
	}
}

func TestError_KeepsChain(t *testing.T) {
	sentinel := errors.New("upstream")
	err := fmt.Errorf("post with key sk-998877: %w", sentinel)

	red := redact.Error(err, "sk-998877")
	if red.Error() != "post with key [REDACTED]: upstream" {
		t.Fatalf("unexpected message %q", red.Error())
	}
	if !errors.Is(red, sentinel) {
		t.Fatal("redacted error lost its chain")
	}
	if redact.Error(nil, "x") != nil {
		t.Fatal("nil error should stay nil")
	}
	if redact.Error(sentinel, "sk-998877") != sentinel {
		t.Fatal("error without secrets should be returned as-is")
	}
}

func TestSecret(t *testing.T) {
	cases := map[string]string{
		"":                  "",
		"short":             "[REDACTED]",
		"gsk_abcdefghijkl9": "[REDACTED]jkl9",
	}
	for in, want := range cases {
		if got := redact.Secret(in); got != want {
			t.Errorf("Secret(%q) = %q, want %q", in, got, want)
		}
	}
}
