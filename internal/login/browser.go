package login

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// DefaultNetworkQuiet is how long the network must stay silent before a page
// counts as loaded.
const DefaultNetworkQuiet = 500 * time.Millisecond

// BrowsingContext is one isolated browser context (cookies, storage, DOM)
// owned by a single account attempt.
type BrowsingContext interface {
	// Navigate loads url and returns once the document has loaded and the
	// network went quiet, or the deadline of ctx passed.
	Navigate(ctx context.Context, url string) error
	WaitVisible(ctx context.Context, selector string) error
	SetValue(ctx context.Context, selector, value string) error
	// Type simulates key input into the element.
	Type(ctx context.Context, selector, text string) error
	// Exists probes the live DOM for selector.
	Exists(ctx context.Context, selector string) (bool, error)
	// ClickAndWait activates the element and waits for the navigation it triggers.
	ClickAndWait(ctx context.Context, selector string) error
	Close() error
}

// ContextOpener hands out fresh browsing contexts.
type ContextOpener interface {
	OpenContext(ctx context.Context) (BrowsingContext, error)
}

// BrowserOptions configures the single browser process of a run.
type BrowserOptions struct {
	Headless     bool
	ExecPath     string
	UserAgent    string
	NetworkQuiet time.Duration
}

// allocatorOptions targets constrained environments: CI runners and containers
// without user namespaces or a large /dev/shm.
func allocatorOptions(o BrowserOptions) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", o.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.NoSandbox,
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-accelerated-2d-canvas", true),
		chromedp.NoFirstRun,
		chromedp.Flag("no-zygote", true),
		chromedp.Flag("single-process", true),
	)
	if o.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(o.ExecPath))
	}
	if o.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(o.UserAgent))
	}
	return opts
}

// Session owns the browser process shared by every account of a run.
type Session struct {
	opts          BrowserOptions
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	releaseOnce   sync.Once
}

var _ ContextOpener = (*Session)(nil)

// Acquire launches the browser. A launch failure wraps ErrBrowserLaunch.
func Acquire(ctx context.Context, opts BrowserOptions) (*Session, error) {
	Infof("launching browser (headless=%t)", opts.Headless)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocatorOptions(opts)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(Debugf),
		chromedp.WithErrorf(Debugf),
	)
	s := &Session{
		opts:          opts,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}
	// The first Run on the browser context starts the process.
	if err := chromedp.Run(browserCtx); err != nil {
		s.Release()
		return nil, fmt.Errorf("%w: %v", ErrBrowserLaunch, err)
	}
	return s, nil
}

// Release shuts the browser down. It is safe to call more than once and after
// the process has already exited.
func (s *Session) Release() {
	s.releaseOnce.Do(func() {
		if err := chromedp.Cancel(s.browserCtx); err != nil && !errors.Is(err, context.Canceled) {
			Warnf("close browser: %v", err)
		}
		s.browserCancel()
		s.allocCancel()
		Infof("browser released")
	})
}

// OpenContext creates a tab inside a brand new CDP browser context, so nothing
// from earlier accounts is visible to it.
func (s *Session) OpenContext(ctx context.Context) (BrowsingContext, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tabCtx, cancel := chromedp.NewContext(s.browserCtx, chromedp.WithNewBrowserContext())
	tracker := newIdleTracker(s.opts.NetworkQuiet)
	chromedp.ListenTarget(tabCtx, tracker.observe)

	// Must run on tabCtx itself: a deadline-bound first Run would tie the
	// target's lifetime to that deadline.
	if err := chromedp.Run(tabCtx, network.Enable()); err != nil {
		cancel()
		return nil, fmt.Errorf("open browsing context: %w", err)
	}
	return &chromeContext{ctx: tabCtx, cancel: cancel, idle: tracker}, nil
}

type chromeContext struct {
	ctx       context.Context
	cancel    context.CancelFunc
	idle      *idleTracker
	closeOnce sync.Once
}

var _ BrowsingContext = (*chromeContext)(nil)

// scoped derives a context from the tab that also honours the deadline and
// cancellation of ctx.
func (c *chromeContext) scoped(ctx context.Context) (context.Context, context.CancelFunc) {
	var (
		run    context.Context
		cancel context.CancelFunc
	)
	if dl, ok := ctx.Deadline(); ok {
		run, cancel = context.WithDeadline(c.ctx, dl)
	} else {
		run, cancel = context.WithCancel(c.ctx)
	}
	stop := context.AfterFunc(ctx, cancel)
	return run, func() {
		stop()
		cancel()
	}
}

func (c *chromeContext) Navigate(ctx context.Context, url string) error {
	run, cancel := c.scoped(ctx)
	defer cancel()
	if err := chromedp.Run(run, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	c.idle.wait(run)
	return nil
}

func (c *chromeContext) WaitVisible(ctx context.Context, selector string) error {
	run, cancel := c.scoped(ctx)
	defer cancel()
	if err := chromedp.Run(run, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("wait for %s: %w", selector, err)
	}
	return nil
}

func (c *chromeContext) SetValue(ctx context.Context, selector, value string) error {
	run, cancel := c.scoped(ctx)
	defer cancel()
	if err := chromedp.Run(run, chromedp.SetValue(selector, value, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("set value of %s: %w", selector, err)
	}
	return nil
}

func (c *chromeContext) Type(ctx context.Context, selector, text string) error {
	run, cancel := c.scoped(ctx)
	defer cancel()
	if err := chromedp.Run(run, chromedp.SendKeys(selector, text, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("type into %s: %w", selector, err)
	}
	return nil
}

func (c *chromeContext) Exists(ctx context.Context, selector string) (bool, error) {
	run, cancel := c.scoped(ctx)
	defer cancel()
	var found bool
	expr := fmt.Sprintf(`document.querySelector(%s) !== null`, jsString(selector))
	if err := chromedp.Run(run, chromedp.Evaluate(expr, &found)); err != nil {
		return false, fmt.Errorf("query %s: %w", selector, err)
	}
	return found, nil
}

// ClickAndWait uses a native element.click() after scrolling the element into
// view; a synthesized mouse event fails on controls the panel keeps off-screen.
func (c *chromeContext) ClickAndWait(ctx context.Context, selector string) error {
	run, cancel := c.scoped(ctx)
	defer cancel()
	expr := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) return false;
		el.scrollIntoView({block: 'center'});
		el.click();
		return true;
	})()`, jsString(selector))
	var clicked bool
	gone := chromedp.ActionFunc(func(context.Context) error {
		if !clicked {
			return fmt.Errorf("%w: %s left the page before the click", ErrSubmitNotFound, selector)
		}
		return nil
	})
	if _, err := chromedp.RunResponse(run, chromedp.Evaluate(expr, &clicked), gone); err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	c.idle.wait(run)
	return nil
}

func (c *chromeContext) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = chromedp.Cancel(c.ctx)
		c.cancel()
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
