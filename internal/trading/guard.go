package trading

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"bracket-trader/internal/broker"
	"bracket-trader/internal/store"
	"bracket-trader/pkg/utils"
)

// Guard fires the entry executor across all pending intents exactly once per
// trading day, inside the configured trigger-time window.
//
// The in-memory flag is only a fast path; the persisted day-stamped marker in
// the store is authoritative, so a process restart inside the window cannot
// cause a second run.
type Guard struct {
	store    store.OrderStore
	gateway  broker.Gateway
	executor *Executor
	logger   zerolog.Logger

	targetHour, targetMin, targetSec int
	window                           time.Duration
	dryRun                           bool

	entryDoneToday bool
	lastDay        string
}

// GuardConfig holds entry guard configuration.
type GuardConfig struct {
	TargetHour   int
	TargetMinute int
	TargetSecond int
	Window       time.Duration
	DryRun       bool
}

// NewGuard creates a new entry guard.
func NewGuard(s store.OrderStore, g broker.Gateway, e *Executor, logger zerolog.Logger, cfg GuardConfig) *Guard {
	return &Guard{
		store:      s,
		gateway:    g,
		executor:   e,
		logger:     logger,
		targetHour: cfg.TargetHour,
		targetMin:  cfg.TargetMinute,
		targetSec:  cfg.TargetSecond,
		window:     cfg.Window,
		dryRun:     cfg.DryRun,
	}
}

// Tick evaluates the guard at the given wall-clock time and runs the entry
// executor when due. Returning an error leaves the day marker unset, so a
// later tick inside the same window retries.
func (g *Guard) Tick(ctx context.Context, now time.Time) error {
	now = now.In(utils.IndiaLocation)
	day := utils.TradingDay(now)

	// Reset the in-memory flag by date comparison, not a timer.
	if day != g.lastDay {
		g.lastDay = day
		g.entryDoneToday = false
	}

	if g.entryDoneToday || !utils.IsTradingDay(now) || !g.inWindow(now) {
		return nil
	}

	// Authoritative restart-safe check.
	done, err := g.store.EntryRunDone(ctx, day)
	if err != nil {
		return err
	}
	if done {
		g.entryDoneToday = true
		return nil
	}

	// Connectivity and funds check gates the whole run. In dry-run mode the
	// broker is never contacted.
	if !g.dryRun {
		info, err := g.gateway.CheckConnectivity(ctx)
		if err != nil {
			g.logger.Error().Err(err).Msg("Connectivity check failed, entry run aborted")
			return err
		}
		g.logger.Info().
			Str("account", info.AccountID).
			Float64("cash", info.AvailableCash).
			Int("open_positions", info.OpenPositions).
			Msg("Connectivity check passed")
	}

	intents, err := g.store.ListPending(ctx)
	if err != nil {
		return err
	}

	g.logger.Info().Str("day", day).Int("pending", len(intents)).Msg("Entry run starting")
	executed := g.executor.ExecuteAll(ctx, intents)
	g.logger.Info().Str("day", day).Int("executed", executed).Msg("Entry run finished")

	g.entryDoneToday = true
	if g.dryRun {
		// Rehearsals leave no trace in the store.
		return nil
	}
	return g.store.MarkEntryRunDone(ctx, day, now)
}

// inWindow reports whether now is within the tolerance window of the target
// trigger time.
func (g *Guard) inWindow(now time.Time) bool {
	target := time.Date(now.Year(), now.Month(), now.Day(),
		g.targetHour, g.targetMin, g.targetSec, 0, now.Location())
	diff := now.Sub(target)
	if diff < 0 {
		diff = -diff
	}
	return diff <= g.window
}
