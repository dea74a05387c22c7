package services

import (
	"context"
	"time"

	"tapplay-backend/internal/logging"
)

const staleSweepBatch = 100

type staleAbandoner interface {
	AbandonStale(ctx context.Context, staleAfter time.Duration, batch int) (int, error)
}

// SessionSweeper periodically closes sessions whose player went silent, so
// their accrued time reaches the daily total without a client End call.
type SessionSweeper struct {
	watch      staleAbandoner
	interval   time.Duration
	staleAfter time.Duration
	stopChan   chan struct{}
}

func NewSessionSweeper(watch staleAbandoner, interval, staleAfter time.Duration) *SessionSweeper {
	return &SessionSweeper{
		watch:      watch,
		interval:   interval,
		staleAfter: staleAfter,
		stopChan:   make(chan struct{}),
	}
}

func (s *SessionSweeper) Start() {
	if s.watch == nil || s.interval <= 0 {
		return
	}

	go s.loop()

	logging.Info().
		Dur("interval", s.interval).
		Dur("stale_after", s.staleAfter).
		Msg("Session sweeper started")
}

func (s *SessionSweeper) Stop() {
	select {
	case <-s.stopChan:
		return
	default:
		close(s.stopChan)
	}
}

func (s *SessionSweeper) loop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.sweep(context.Background())
		}
	}
}

// sweep drains stale sessions in batches until a batch comes back short.
func (s *SessionSweeper) sweep(ctx context.Context) int {
	total := 0
	for {
		closed, err := s.watch.AbandonStale(ctx, s.staleAfter, staleSweepBatch)
		if err != nil {
			logging.Error().Err(err).Msg("Session sweep failed")
			return total
		}
		total += closed
		if closed < staleSweepBatch {
			break
		}
	}

	if total > 0 {
		logging.Info().Int("closed", total).Msg("Abandoned stale watch sessions")
	}
	return total
}
