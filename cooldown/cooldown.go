// Package cooldown gates how often a member may submit an application.
package cooldown

import (
	"context"
	"log/slog"
	"time"

	"github.com/korjavin/intakebot/database"
	"github.com/korjavin/intakebot/errx"
	"github.com/korjavin/intakebot/models"
)

// Check is the result of a CanStart call
type Check struct {
	Allowed        bool
	HoursRemaining int
}

// Tracker reads and writes the per-guild cooldowns document
type Tracker struct {
	store database.Store
	now   func() time.Time
}

// New creates a Tracker over store
func New(store database.Store) *Tracker {
	return &Tracker{store: store, now: time.Now}
}

// WithClock replaces the time source. Used by tests.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// CanStart reports whether userID may begin a new application in guildID.
// Administrators skip the lookup entirely.
func (t *Tracker) CanStart(ctx context.Context, guildID, userID string, isAdministrator bool) (Check, error) {
	if isAdministrator {
		return Check{Allowed: true}, nil
	}

	cfg, err := t.store.LoadConfig(ctx, guildID)
	if err != nil {
		return Check{}, err
	}
	window := time.Duration(models.DefaultCooldownHours) * time.Hour
	if cfg != nil {
		window = cfg.CooldownWindow()
	}
	if window <= 0 {
		return Check{Allowed: true}, nil
	}

	cooldowns, err := t.store.LoadCooldowns(ctx, guildID)
	if err != nil {
		return Check{}, err
	}
	last, ok := cooldowns[userID]
	if !ok {
		return Check{Allowed: true}, nil
	}

	elapsed := t.now().Sub(last)
	if elapsed >= window {
		return Check{Allowed: true}, nil
	}
	remaining := window - elapsed
	hours := int((remaining + time.Hour - 1) / time.Hour)
	return Check{Allowed: false, HoursRemaining: hours}, nil
}

// Rejection builds the error returned to a member who is still cooling down
func Rejection(c Check) *errx.Error {
	return errx.New(errx.TypeCooldown, "COOLDOWN_ACTIVE", "you must wait before applying again").
		WithDetail("hours_remaining", c.HoursRemaining)
}

// RecordSubmission stamps userID's last submission with the current time
func (t *Tracker) RecordSubmission(ctx context.Context, guildID, userID string) error {
	cooldowns, err := t.store.LoadCooldowns(ctx, guildID)
	if err != nil {
		return err
	}
	cooldowns[userID] = t.now().UTC()
	if err := t.store.SaveCooldowns(ctx, guildID, cooldowns); err != nil {
		return err
	}
	slog.Debug("cooldown recorded", "guild", guildID, "user", userID)
	return nil
}
