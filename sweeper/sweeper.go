// SPDX-License-Identifier: LGPL-3.0-or-later

// Package sweeper implements the once-a-second expiry sweep (component
// C9, spec §4.8): drain every message whose expiry has passed and
// delete the underlying record.
package sweeper

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/didcomm-x/mediator/internal/logger"
	"github.com/didcomm-x/mediator/internal/merr"
	"github.com/didcomm-x/mediator/internal/metrics"
	"github.com/didcomm-x/mediator/store"
)

// DefaultInterval matches spec §4.8's "runs once per second".
const DefaultInterval = time.Second

// DefaultBatchSize bounds how many expired ids one tick pulls before
// moving on, so one very overdue tick cannot starve the next.
const DefaultBatchSize = 500

// DefaultWorkers is how many deletes run concurrently per tick.
const DefaultWorkers = 4

// Sweeper periodically deletes expired messages. Store RPC failures are
// logged and retried on the next tick (spec §4.8, §9 "Retry policy")
// since delete_message is idempotent and at-least-once is safe.
type Sweeper struct {
	Store    store.ExpiryStore
	Deleter  store.MessageStore
	Sessions store.SessionStore
	Interval time.Duration
	Batch    int
	Workers  int

	lastTick atomic.Int64 // unix nanos of the last completed tick
}

// New builds a Sweeper with spec-default interval/batch/worker counts.
func New(st store.Store) *Sweeper {
	return &Sweeper{
		Store:    st,
		Deleter:  st,
		Sessions: st,
		Interval: DefaultInterval,
		Batch:    DefaultBatchSize,
		Workers:  DefaultWorkers,
	}
}

// Run blocks, ticking until ctx is canceled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick implements one sweep: pull due ids, delete each with the
// ADMIN-sentinel identity, log the totals.
func (s *Sweeper) tick(ctx context.Context) {
	now := time.Now()
	expired := 0

	for {
		ids, err := s.Store.DueMessageIDs(ctx, now, s.Batch)
		if err != nil {
			logger.ErrorMsg("sweeper: list due messages failed", logger.Error(err))
			return
		}
		if len(ids) == 0 {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.Workers)
		for _, id := range ids {
			id := id
			g.Go(func() error {
				if err := s.Deleter.DeleteMessage(gctx, id, store.AdminSentinel); err != nil {
					// A message may already be gone (race with a user's own
					// fetch/delete, spec §9 "tolerate not found"); that is not
					// a sweeper failure worth aborting the tick over.
					if merr.As(err) != merr.RequestDataError {
						logger.ErrorMsg("sweeper: delete failed", logger.String("msg_id", id), logger.Error(err))
					}
					return nil
				}
				expired++
				metrics.MessagesExpired.Inc()
				return nil
			})
		}
		_ = g.Wait()

		if len(ids) < s.Batch {
			break
		}
	}

	if expired > 0 {
		logger.Info("sweeper: tick complete", logger.Int("expired", expired))
	}

	s.sweepSessions(ctx, now)
	s.lastTick.Store(now.UnixNano())
}

// Healthy reports an error if the sweeper hasn't completed a tick
// within maxAge, for wiring into pkg/health as a liveness probe.
func (s *Sweeper) Healthy(maxAge time.Duration) error {
	last := s.lastTick.Load()
	if last == 0 {
		return fmt.Errorf("sweeper: no tick completed yet")
	}
	if age := time.Since(time.Unix(0, last)); age > maxAge {
		return fmt.Errorf("sweeper: last tick was %s ago, exceeds %s", age, maxAge)
	}
	return nil
}

// sweepSessions clears out challenge-issued sessions nobody ever
// completed the handshake for, so abandoned challenges don't linger in
// the store forever.
func (s *Sweeper) sweepSessions(ctx context.Context, now time.Time) {
	n, err := s.Sessions.DeleteExpiredSessions(ctx, now)
	if err != nil {
		logger.ErrorMsg("sweeper: delete expired sessions failed", logger.Error(err))
		return
	}
	if n > 0 {
		logger.Info("sweeper: expired sessions swept", logger.Int("count", n))
	}
}
