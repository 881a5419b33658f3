// Package task schedules background refreshes such as the currency rate fetch.
package task

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/glog"
)

type Runner interface {
	Run() error
}

type Options struct {
	Interval time.Duration
	Runner   Runner
	// SkipInitialRun waits one interval before the first run.
	SkipInitialRun bool
	// Clock defaults to the wall clock.
	Clock clock.Clock
}

// TickerTask runs a Runner on a fixed interval until stopped. A zero interval runs it at most once.
type TickerTask struct {
	opts Options
	done chan struct{}
}

func NewTickerTask(interval time.Duration, runner Runner) *TickerTask {
	return NewTickerTaskWithOptions(Options{Interval: interval, Runner: runner})
}

func NewTickerTaskWithOptions(opts Options) *TickerTask {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	return &TickerTask{opts: opts, done: make(chan struct{})}
}

// Start runs the task once synchronously, unless told to skip, then keeps running it in the
// background on every tick.
func (t *TickerTask) Start() {
	if !t.opts.SkipInitialRun {
		t.run()
	}
	if t.opts.Interval > 0 {
		go t.loop()
	}
}

// Stop ends the background loop. The Runner keeps whatever state its last run left.
func (t *TickerTask) Stop() {
	close(t.done)
}

// Done is closed by Stop.
func (t *TickerTask) Done() <-chan struct{} {
	return t.done
}

func (t *TickerTask) loop() {
	ticker := t.opts.Clock.Ticker(t.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.run()
		case <-t.done:
			return
		}
	}
}

func (t *TickerTask) run() {
	if err := t.opts.Runner.Run(); err != nil {
		glog.Warningf("scheduled task failed: %v", err)
	}
}
