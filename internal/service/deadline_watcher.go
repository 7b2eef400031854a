package service

import (
	"context"
	"time"

	"github.com/nexlearn/mocktest/config"
	"github.com/rs/zerolog/log"
)

// DeadlineWatcher is the authoritative tick driver: a periodic sweep that
// applies section and overall timeouts to attempts whose client went away.
// A candidate cannot dodge submission by staying offline; deadlines are
// absolute, so the sweep lands on the exact same transitions a live session
// would have taken.
type DeadlineWatcher struct {
	attempts AttemptService
	interval time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

func NewDeadlineWatcher(cfg *config.Config, attempts AttemptService) *DeadlineWatcher {
	interval := time.Duration(cfg.Engine.WatcherTickSeconds) * time.Second
	if interval <= 0 {
		interval = time.Second
	}
	return &DeadlineWatcher{
		attempts: attempts,
		interval: interval,
	}
}

// Start launches the sweep loop. Ticks never overlap: if a sweep is still
// running when the next tick fires, that tick is skipped, not queued.
func (w *DeadlineWatcher) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})

	go func() {
		defer close(w.done)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		log.Info().Dur("interval", w.interval).Msg("Deadline watcher started")
		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("Deadline watcher stopped")
				return
			case <-ticker.C:
				w.sweep()
			}
		}
	}()
}

func (w *DeadlineWatcher) Stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	<-w.done
}

func (w *DeadlineWatcher) sweep() {
	settled, err := w.attempts.EnforceDeadlines(time.Now())
	if err != nil {
		log.Error().Err(err).Msg("Deadline sweep failed")
		return
	}
	if settled > 0 {
		log.Info().Int("attempts", settled).Msg("Deadline sweep applied timeouts")
	}
}
