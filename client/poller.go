package client

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/appboost/bridge/domain"
)

// SessionRefresher is what the poller drives. *Bootstrapper satisfies it.
type SessionRefresher interface {
	RefreshSession(ctx context.Context) (*domain.Session, error)
}

// Poller refreshes the session on a fixed interval so long-lived embedded
// views never present an expired token.
type Poller struct {
	refresher SessionRefresher
	interval  time.Duration

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewPoller creates a Poller. interval must be shorter than the access token
// lifetime to be useful.
func NewPoller(refresher SessionRefresher, interval time.Duration) *Poller {
	return &Poller{
		refresher: refresher,
		interval:  interval,
		stop:      make(chan struct{}),
	}
}

// Start launches the refresh loop. It returns immediately; the loop runs
// until Stop is called or ctx is cancelled.
func (p *Poller) Start(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if _, err := p.refresher.RefreshSession(ctx); err != nil {
					log.Warn().Err(err).Msg("Periodic session refresh failed")
				}
			case <-p.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the refresh loop and waits for it to exit. Safe to call more
// than once.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		close(p.stop)
	})
	p.wg.Wait()
}
