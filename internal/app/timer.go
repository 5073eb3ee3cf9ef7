package app

import (
	"sync"
	"time"
)

// Countdown is a cancellable once-per-second countdown decoupled from any
// transport. onTick receives the remaining seconds while they are positive;
// onExpire fires exactly once when the count reaches zero. Stop is
// idempotent and safe to call from any goroutine, including callbacks.
type Countdown struct {
	stopOnce sync.Once
	stop     chan struct{}
}

// StartCountdown begins counting down from seconds.
func StartCountdown(seconds int, onTick func(remaining int), onExpire func()) *Countdown {
	return startCountdown(seconds, time.Second, onTick, onExpire)
}

// startCountdown takes the tick interval so tests can run fast.
func startCountdown(seconds int, interval time.Duration, onTick func(int), onExpire func()) *Countdown {
	c := &Countdown{
		stop: make(chan struct{}),
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		remaining := seconds
		for {
			select {
			case <-ticker.C:
				remaining--
				if remaining <= 0 {
					if onExpire != nil {
						onExpire()
					}
					return
				}
				if onTick != nil {
					onTick(remaining)
				}
			case <-c.stop:
				return
			}
		}
	}()
	return c
}

// Stop cancels the countdown. Callbacks already in flight may still finish.
func (c *Countdown) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}
