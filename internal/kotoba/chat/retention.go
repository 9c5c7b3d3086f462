package chat

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

const (
	// DefaultMaxConversations is the retention cap.
	DefaultMaxConversations = 50
	// DefaultRetentionSchedule is how often the sweep runs.
	DefaultRetentionSchedule = "@every 10m"
)

// RetentionRunner periodically trims the store to Max conversations.
type RetentionRunner struct {
	Store *Store
	// Max defaults to DefaultMaxConversations.
	Max int
	// Schedule is a cron spec; defaults to DefaultRetentionSchedule.
	Schedule string
	// Exempt reports conversations that must survive the sweep, typically
	// the one with a generation in flight.
	Exempt func(id string) bool
	Logger *slog.Logger

	cron *cron.Cron
}

// Start schedules the sweep. It does not run one immediately.
func (r *RetentionRunner) Start() error {
	if r.Logger == nil {
		r.Logger = slog.Default()
	}
	if r.Max <= 0 {
		r.Max = DefaultMaxConversations
	}
	if r.Schedule == "" {
		r.Schedule = DefaultRetentionSchedule
	}

	r.cron = cron.New()
	if _, err := r.cron.AddFunc(r.Schedule, func() { r.RunOnce(context.Background()) }); err != nil {
		return fmt.Errorf("chat: retention schedule %q: %w", r.Schedule, err)
	}
	r.cron.Start()
	r.Logger.Info("chat: retention sweep scheduled", "schedule", r.Schedule, "max", r.Max)
	return nil
}

// Stop cancels the schedule and waits for a running sweep to finish.
func (r *RetentionRunner) Stop() {
	if r.cron == nil {
		return
	}
	<-r.cron.Stop().Done()
}

// RunOnce performs a single sweep. Failures are logged, not returned:
// retention is housekeeping.
func (r *RetentionRunner) RunOnce(ctx context.Context) []string {
	max := r.Max
	if max <= 0 {
		max = DefaultMaxConversations
	}
	evicted, err := r.Store.Sweep(ctx, max, r.Exempt)
	if err != nil {
		r.logger().Warn("chat: retention sweep failed", "err", err)
		return nil
	}
	if len(evicted) > 0 {
		r.logger().Info("chat: retention sweep evicted conversations", "count", len(evicted))
	}
	return evicted
}

func (r *RetentionRunner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}
