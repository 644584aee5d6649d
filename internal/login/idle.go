package login

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
)

// idleTracker watches network events of one target and reports quiescence once
// nothing has been in flight for the quiet period. Requests older than linger
// are dropped so a long-poll cannot hold the page busy forever.
type idleTracker struct {
	quiet  time.Duration
	linger time.Duration
	now    func() time.Time

	mu       sync.Mutex
	requests map[network.RequestID]time.Time
	last     time.Time
}

func newIdleTracker(quiet time.Duration) *idleTracker {
	if quiet <= 0 {
		quiet = DefaultNetworkQuiet
	}
	return &idleTracker{
		quiet:    quiet,
		linger:   4 * quiet,
		now:      time.Now,
		requests: make(map[network.RequestID]time.Time),
		last:     time.Now(),
	}
}

// observe is registered with chromedp.ListenTarget.
func (t *idleTracker) observe(ev interface{}) {
	switch ev := ev.(type) {
	case *network.EventRequestWillBeSent:
		t.mu.Lock()
		t.requests[ev.RequestID] = t.now()
		t.last = t.now()
		t.mu.Unlock()
	case *network.EventLoadingFinished:
		t.done(ev.RequestID)
	case *network.EventLoadingFailed:
		t.done(ev.RequestID)
	}
}

func (t *idleTracker) done(id network.RequestID) {
	t.mu.Lock()
	delete(t.requests, id)
	t.last = t.now()
	t.mu.Unlock()
}

// idle prunes lingering requests and reports whether the quiet period has passed.
func (t *idleTracker) idle() (bool, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	for id, start := range t.requests {
		if now.Sub(start) > t.linger {
			Debugf("pruning lingering request %s", id)
			delete(t.requests, id)
		}
	}
	return len(t.requests) == 0 && now.Sub(t.last) >= t.quiet, len(t.requests)
}

// wait blocks until the network is idle or ctx ends. Reaching the deadline is
// not an error: quiescence is best effort once the document has loaded.
func (t *idleTracker) wait(ctx context.Context) {
	ticker := time.NewTicker(t.quiet / 5)
	defer ticker.Stop()
	for {
		ok, active := t.idle()
		if ok {
			Debugf("network idle")
			return
		}
		select {
		case <-ctx.Done():
			Warnf("network not idle before deadline (active=%d)", active)
			return
		case <-ticker.C:
		}
	}
}
