package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/yeremiapane/restaurant-floor/utils"
)

func init() {
	utils.InitLogger()
	utils.SilenceLoggers()
}

type countingTarget struct {
	calls atomic.Int32
}

func (c *countingTarget) Invalidate(context.Context) {
	c.calls.Add(1)
}

func TestTablePollerInvalidatesUntilStopped(t *testing.T) {
	target := &countingTarget{}
	p := NewTablePoller(target, 10*time.Millisecond)
	p.Start(context.Background())

	assert.Eventually(t, func() bool { return target.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	p.Stop()
	p.Stop()

	time.Sleep(20 * time.Millisecond)
	settled := target.calls.Load()
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, settled, target.calls.Load())
}

func TestTablePollerDefaultInterval(t *testing.T) {
	p := NewTablePoller(&countingTarget{}, 0)
	assert.Equal(t, DefaultPollInterval, p.Interval)
}
