package nlp

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{&StatusError{StatusCode: 401}, KindUnauthorized},
		{&StatusError{StatusCode: 403}, KindUnauthorized},
		{fmt.Errorf("wrapped: %w", &StatusError{StatusCode: 429}), KindRateLimited},
		{&StatusError{StatusCode: 500}, KindUpstreamFault},
		{&StatusError{StatusCode: 503}, KindUpstreamFault},
		{&StatusError{StatusCode: 400, Message: "bad model"}, KindUnknown},
		{errors.New("connection refused"), KindUnknown},
	}
	for _, tc := range cases {
		if got := Classify(tc.err); got != tc.want {
			t.Errorf("Classify(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestErrorReply(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{&StatusError{StatusCode: 401}, "I apologize, but I encountered an error: Invalid API key. Please try again."},
		{&StatusError{StatusCode: 429}, "I apologize, but I encountered an error: Rate limit exceeded. Please wait a moment. Please try again."},
		{&StatusError{StatusCode: 502}, "I apologize, but I encountered an error: Server error. Please try again. Please try again."},
		{&StatusError{StatusCode: 400, Message: "model not found"}, "I apologize, but I encountered an error: model not found. Please try again."},
		{errors.New("dial tcp: timeout"), "I apologize, but I encountered an error: dial tcp: timeout. Please try again."},
	}
	for _, tc := range cases {
		if got := ErrorReply(tc.err); got != tc.want {
			t.Errorf("ErrorReply(%v)\n got: %q\nwant: %q", tc.err, got, tc.want)
		}
	}
}

func TestKindString(t *testing.T) {
	if KindRateLimited.String() != "rate_limited" || Kind(42).String() != "unknown" {
		t.Fatal("unexpected Kind names")
	}
}
