package trading

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"bracket-trader/pkg/utils"
)

// Loop is the low-frequency orchestration loop. One ticker drives two
// independent periodic tasks: the entry guard (every tick, it decides for
// itself whether the window is open) and the reconciler (on its own period).
//
// Each task runs in its own goroutine with an in-flight flag so a slow run
// (the guard can block for minutes inside a fill wait) never stalls or
// overlaps itself, while guard and reconciler may overlap each other freely:
// they act on disjoint status transitions, and the store's conditional
// updates make any race on a single record harmless.
type Loop struct {
	guard      *Guard
	reconciler *Reconciler
	logger     zerolog.Logger

	tick            time.Duration
	reconcilePeriod time.Duration

	guardBusy     atomic.Bool
	reconcileBusy atomic.Bool
}

// NewLoop creates the orchestration loop.
func NewLoop(guard *Guard, reconciler *Reconciler, logger zerolog.Logger, tick, reconcilePeriod time.Duration) *Loop {
	if tick <= 0 {
		tick = time.Second
	}
	if reconcilePeriod <= 0 {
		reconcilePeriod = time.Minute
	}
	return &Loop{
		guard:           guard,
		reconciler:      reconciler,
		logger:          logger,
		tick:            tick,
		reconcilePeriod: reconcilePeriod,
	}
}

// Run drives the loop until the context is cancelled. It blocks; in-flight
// tasks are waited for on shutdown.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info().
		Dur("tick", l.tick).
		Dur("reconcile_period", l.reconcilePeriod).
		Msg("Orchestration loop started")

	ticker := time.NewTicker(l.tick)
	defer ticker.Stop()

	var wg sync.WaitGroup
	lastReconcile := time.Time{}

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			l.logger.Info().Msg("Orchestration loop stopped")
			return ctx.Err()
		case now := <-ticker.C:
			if l.guardBusy.CompareAndSwap(false, true) {
				wg.Add(1)
				go func(t time.Time) {
					defer wg.Done()
					defer l.guardBusy.Store(false)
					if err := l.guard.Tick(ctx, t); err != nil {
						l.logger.Error().Err(err).Msg("Entry guard tick failed")
					}
				}(now)
			}

			if now.Sub(lastReconcile) >= l.reconcilePeriod {
				if l.reconcileBusy.CompareAndSwap(false, true) {
					lastReconcile = now
					wg.Add(1)
					go func() {
						defer wg.Done()
						defer l.reconcileBusy.Store(false)
						l.reconciler.Reconcile(ctx)
					}()
				}
			}
		}
	}
}

// NextEntryWindow reports, for operator display, when the guard will next be
// eligible to fire.
func (l *Loop) NextEntryWindow(now time.Time) time.Time {
	ist := now.In(utils.IndiaLocation)
	target := time.Date(ist.Year(), ist.Month(), ist.Day(),
		l.guard.targetHour, l.guard.targetMin, l.guard.targetSec, 0, utils.IndiaLocation)
	for !target.After(ist) || !utils.IsTradingDay(target) {
		target = target.AddDate(0, 0, 1)
	}
	return target
}
