package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper removes sessions idle for longer than idle and returns how many
// it removed.
type Sweeper interface {
	Sweep(ctx context.Context, idle time.Duration) int
}

// Janitor periodically evicts idle sessions.
type Janitor struct {
	sweeper  Sweeper
	idle     time.Duration
	interval time.Duration
	log      zerolog.Logger
	stopChan chan struct{}
	done     chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
	started   atomic.Bool
}

// NewJanitor sweeps every interval; a zero interval defaults to a quarter
// of the idle timeout.
func NewJanitor(sweeper Sweeper, idle, interval time.Duration, log zerolog.Logger) *Janitor {
	if interval <= 0 {
		interval = idle / 4
	}
	if interval < time.Second {
		interval = time.Second
	}
	return &Janitor{
		sweeper:  sweeper,
		idle:     idle,
		interval: interval,
		log:      log,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop. Calls after the first, or after Stop, do
// nothing.
func (j *Janitor) Start() {
	j.startOnce.Do(func() {
		select {
		case <-j.stopChan:
			return
		default:
		}
		j.started.Store(true)
		go j.loop()
		j.log.Info().Dur("idle_timeout", j.idle).Dur("interval", j.interval).Msg("session janitor started")
	})
}

// Stop ends the loop and waits for an in-progress sweep to finish. It may
// be called any number of times, concurrently, and before Start.
func (j *Janitor) Stop() {
	j.stopOnce.Do(func() { close(j.stopChan) })
	if j.started.Load() {
		<-j.done
	}
}

func (j *Janitor) loop() {
	defer close(j.done)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.stopChan:
			return
		case <-ticker.C:
			j.sweeper.Sweep(context.Background(), j.idle)
		}
	}
}
