package services

import (
	"context"
	"sync"
	"time"

	"github.com/yeremiapane/restaurant-floor/utils"
)

const DefaultPollInterval = 30 * time.Second

// Invalidator is anything whose cached view can be marked stale and
// refetched.
type Invalidator interface {
	Invalidate(ctx context.Context)
}

// TablePoller periodically invalidates the floor so the view catches
// changes made on other terminals.
type TablePoller struct {
	Target   Invalidator
	Interval time.Duration
	StopChan chan struct{}

	once sync.Once
}

func NewTablePoller(target Invalidator, interval time.Duration) *TablePoller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &TablePoller{
		Target:   target,
		Interval: interval,
		StopChan: make(chan struct{}),
	}
}

func (p *TablePoller) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(p.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				utils.InfoLogger.Debug("Polling floor")
				p.Target.Invalidate(ctx)
			case <-p.StopChan:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (p *TablePoller) Stop() {
	p.once.Do(func() { close(p.StopChan) })
}
