// Package nlp is the language layer around the completion gateway: the
// gateway seam and its OpenAI-compatible client, the system prompt, the
// content filter, follow-up suggestions and submit rate limiting.
package nlp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Message is one entry of a completion request.
type Message struct {
	// Role is "system", "user" or "assistant".
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Params are the sampling parameters sent with each request.
type Params struct {
	Model       string
	Temperature float64
	MaxTokens   int
	TopP        float64
}

// DefaultParams returns the sampling parameters used when none are
// configured.
func DefaultParams() Params {
	return Params{
		Model:       "openai/gpt-oss-120b",
		Temperature: 0.3,
		MaxTokens:   1500,
		TopP:        0.9,
	}
}

// Gateway produces one assistant reply for an ordered message list.
// Implementations must be safe for concurrent use and honour ctx
// cancellation.
type Gateway interface {
	Complete(ctx context.Context, messages []Message, params Params) (string, error)
}

// StatusError is a failed upstream call with its HTTP status.
type StatusError struct {
	StatusCode int
	// Message is the provider's error text, if it sent one.
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("nlp: upstream returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("nlp: upstream returned HTTP %d: %s", e.StatusCode, e.Message)
}

// Kind classifies a gateway failure for the user-visible error message.
type Kind int

const (
	KindUnknown Kind = iota
	KindUnauthorized
	KindRateLimited
	KindUpstreamFault
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindRateLimited:
		return "rate_limited"
	case KindUpstreamFault:
		return "upstream_fault"
	default:
		return "unknown"
	}
}

// Classify maps err to a Kind by the HTTP status it carries.
func Classify(err error) Kind {
	var se *StatusError
	if !errors.As(err, &se) {
		return KindUnknown
	}
	switch {
	case se.StatusCode == http.StatusUnauthorized, se.StatusCode == http.StatusForbidden:
		return KindUnauthorized
	case se.StatusCode == http.StatusTooManyRequests:
		return KindRateLimited
	case se.StatusCode >= 500:
		return KindUpstreamFault
	default:
		return KindUnknown
	}
}

// Describe returns the short text shown to the user for a failure.
// Unknown failures pass the underlying message through.
func Describe(err error) string {
	switch Classify(err) {
	case KindUnauthorized:
		return "Invalid API key"
	case KindRateLimited:
		return "Rate limit exceeded. Please wait a moment"
	case KindUpstreamFault:
		return "Server error. Please try again"
	}
	var se *StatusError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

// ErrorReply is the assistant message recorded in place of a reply when the
// gateway fails.
func ErrorReply(err error) string {
	return "I apologize, but I encountered an error: " + Describe(err) + ". Please try again."
}
