// Package trace tags each generation with an id that follows it through
// assembly, the gateway call and extraction, so one turn can be followed in
// the logs.
package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"
)

type generationKey struct{}

// NewGenerationID returns a random id of the form "g_<32 hex chars>".
func NewGenerationID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("g_%d", time.Now().UnixNano())
	}
	return "g_" + hex.EncodeToString(b)
}

// WithGenerationID returns a child context carrying id.
func WithGenerationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, generationKey{}, id)
}

// GenerationID extracts the id from ctx, returning "" if absent.
func GenerationID(ctx context.Context) string {
	if v, ok := ctx.Value(generationKey{}).(string); ok {
		return v
	}
	return ""
}

// Logger returns base annotated with the generation id carried by ctx, or
// base itself when ctx carries none.
func Logger(ctx context.Context, base *slog.Logger) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	if id := GenerationID(ctx); id != "" {
		return base.With("generation_id", id)
	}
	return base
}
