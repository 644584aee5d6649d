package login

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Runner processes accounts one at a time, each in its own browsing context.
type Runner struct {
	Opener   ContextOpener
	Machine  *Machine
	Reporter Reporter
	Pacer    Pacer

	// Sleep waits out the pacing delay; tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// Run attempts every account in input order and returns the finished batch.
// It only returns an error when ctx is cancelled; the batch then holds the
// results gathered so far.
func (r *Runner) Run(ctx context.Context, accounts []Account) (*BatchRun, error) {
	now := r.now
	if now == nil {
		now = time.Now
	}
	sleep := r.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	run := &BatchRun{
		ID:        uuid.NewString(),
		StartedAt: now(),
		Accounts:  accounts,
		Results:   make([]Result, 0, len(accounts)),
	}
	Infof("batch %s: %d accounts", run.ID, len(accounts))
	if r.Reporter != nil {
		r.Reporter.Start(run)
	}

	var err error
	for i, acct := range accounts {
		if err = ctx.Err(); err != nil {
			break
		}
		res := r.attempt(ctx, acct, now)
		run.Results = append(run.Results, res)
		if r.Reporter != nil {
			r.Reporter.Emit(res)
		}

		if i == len(accounts)-1 || r.Pacer == nil {
			continue
		}
		delay := r.Pacer.Next()
		Debugf("waiting %s before next account", delay)
		if err = sleep(ctx, delay); err != nil {
			break
		}
	}
	if err == nil {
		err = ctx.Err()
	}
	run.FinishedAt = now()
	run.Err = err

	if r.Reporter != nil {
		if ferr := r.Reporter.Finish(run); ferr != nil {
			Warnf("finish report: %v", ferr)
		}
	}
	return run, err
}

// attempt brackets one open/close pair around the state machine. Nothing that
// goes wrong in here escapes as anything but a Failure result.
func (r *Runner) attempt(ctx context.Context, acct Account, now func() time.Time) (res Result) {
	Infof("%s: starting login", acct)
	defer func() {
		if p := recover(); p != nil {
			Errorf("%s: panic: %v", acct, p)
			res = failed(acct, fmt.Errorf("panic: %v", p), now())
		}
	}()

	page, err := r.Opener.OpenContext(ctx)
	if err != nil {
		return failed(acct, fmt.Errorf("open browsing context: %w", err), now())
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			Warnf("%s: close browsing context: %v", acct, cerr)
			if res.Succeeded() {
				res = failed(acct, fmt.Errorf("close browsing context: %w", cerr), now())
			}
		}
	}()

	return r.Machine.Attempt(ctx, page, acct)
}

// Options configures RunBatch.
type Options struct {
	Browser     BrowserOptions
	LoginURL    string
	Form        Form
	StepTimeout time.Duration
	Pacer       Pacer
	Reporter    Reporter
}

// RunBatch launches the browser, attempts every account and releases the
// browser again. Only a failed launch (ErrBrowserLaunch) or a cancelled ctx
// is returned as an error.
func RunBatch(ctx context.Context, accounts []Account, opts Options) (*BatchRun, error) {
	sess, err := Acquire(ctx, opts.Browser)
	if err != nil {
		return nil, err
	}
	defer sess.Release()

	r := &Runner{
		Opener:   sess,
		Machine:  NewMachine(opts.LoginURL, opts.Form, opts.StepTimeout),
		Reporter: opts.Reporter,
		Pacer:    opts.Pacer,
	}
	return r.Run(ctx, accounts)
}
