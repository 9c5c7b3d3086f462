// Package redact strips credentials from strings and errors before they are
// logged or shown to the user in a chat transcript.
//
// Redaction is best-effort: it relies on callers passing the values that
// must not leak.
package redact

import "strings"

const placeholder = "[REDACTED]"

// String replaces every occurrence of each sensitive value in s with
// [REDACTED]. Values shorter than 4 characters are skipped to avoid
// redacting common substrings.
func String(s string, sensitiveValues ...string) string {
	for _, v := range sensitiveValues {
		if len(v) < 4 {
			continue
		}
		s = strings.ReplaceAll(s, v, placeholder)
	}
	return s
}

// Error wraps err so that its message has the sensitive values redacted.
// errors.Is and errors.As still see the original chain.
func Error(err error, sensitiveValues ...string) error {
	if err == nil {
		return nil
	}
	msg := String(err.Error(), sensitiveValues...)
	if msg == err.Error() {
		return err
	}
	return &redactedError{msg: msg, err: err}
}

type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }

// Secret masks a credential for display, keeping the last four characters.
func Secret(v string) string {
	if v == "" {
		return ""
	}
	if len(v) <= 8 {
		return placeholder
	}
	return placeholder + v[len(v)-4:]
}
