package login

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultLoginURL is the login page template; {panelnum} is replaced by the
// account's panel number.
const DefaultLoginURL = "https://panel{panelnum}.serv00.com/login/?next=/"

// DefaultStepTimeout bounds every wait of an attempt.
const DefaultStepTimeout = 15 * time.Second

// Form is the fixed DOM contract of the panel's login page.
type Form struct {
	UsernameSelector string
	PasswordSelector string
	// SubmitSelectors are tried in order; the first that matches wins.
	SubmitSelectors []string
	SuccessSelector string
}

// DefaultForm returns the panel's selectors.
func DefaultForm() Form {
	return Form{
		UsernameSelector: "#id_username",
		PasswordSelector: "#id_password",
		SubmitSelectors: []string{
			"#submit",
			`input[type="submit"]`,
			`button[type="submit"]`,
			`[role="button"][type="submit"]`,
			".btn-primary",
			".btn-success",
		},
		SuccessSelector: `a[href="/logout/"]`,
	}
}

// PanelURL expands template for a panel number.
func PanelURL(template string, panel int) string {
	return strings.ReplaceAll(template, "{panelnum}", strconv.Itoa(panel))
}

// State is a step of a login attempt.
type State int

const (
	StateStart State = iota
	StateNavigated
	StateCredentialsEntered
	StateSubmitted
	StateResolved
)

var stateNames = [...]string{"start", "navigated", "credentials-entered", "submitted", "resolved"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "state(" + strconv.Itoa(int(s)) + ")"
}

// Classifier decides the outcome from the page reached after submission.
type Classifier struct {
	Marker string
}

// Classify probes the live page once for the success marker.
func (c Classifier) Classify(ctx context.Context, page BrowsingContext) (Outcome, error) {
	found, err := page.Exists(ctx, c.Marker)
	if err != nil {
		return Failure, err
	}
	if found {
		return Success, nil
	}
	return Failure, nil
}

// Machine drives one account through the login page.
type Machine struct {
	LoginURL     string
	Form         Form
	StepTimeout  time.Duration
	PollInterval time.Duration

	now func() time.Time
}

// NewMachine returns a Machine with defaults filled in for zero values.
func NewMachine(loginURL string, form Form, stepTimeout time.Duration) *Machine {
	if loginURL == "" {
		loginURL = DefaultLoginURL
	}
	if stepTimeout <= 0 {
		stepTimeout = DefaultStepTimeout
	}
	return &Machine{
		LoginURL:     loginURL,
		Form:         form,
		StepTimeout:  stepTimeout,
		PollInterval: 250 * time.Millisecond,
		now:          time.Now,
	}
}

type transition struct {
	to  State
	run func(ctx context.Context) error
}

// Attempt runs Start → Navigated → CredentialsEntered → Submitted → Resolved.
// Any error, including a step timeout, resolves the attempt as a Failure.
func (m *Machine) Attempt(ctx context.Context, page BrowsingContext, acct Account) Result {
	steps := []transition{
		{StateNavigated, func(ctx context.Context) error {
			return page.Navigate(ctx, PanelURL(m.LoginURL, acct.PanelNumber))
		}},
		{StateCredentialsEntered, func(ctx context.Context) error {
			return m.enterCredentials(ctx, page, acct)
		}},
		{StateSubmitted, func(ctx context.Context) error {
			sel, err := m.resolveSubmit(ctx, page)
			if err != nil {
				return err
			}
			Debugf("%s: submitting via %s", acct, sel)
			return page.ClickAndWait(ctx, sel)
		}},
	}

	state := StateStart
	for _, step := range steps {
		if err := m.step(ctx, step); err != nil {
			Warnf("%s: failed in state %s: %v", acct, state, err)
			return failed(acct, err, m.now())
		}
		state = step.to
		Debugf("%s: %s", acct, state)
	}

	var outcome Outcome
	err := m.step(ctx, transition{StateResolved, func(ctx context.Context) error {
		var err error
		outcome, err = Classifier{Marker: m.Form.SuccessSelector}.Classify(ctx, page)
		return err
	}})
	at := m.now()
	if err != nil {
		return failed(acct, err, at)
	}
	if outcome != Success {
		return failed(acct, ErrNotLoggedIn, at)
	}
	return newResult(acct, Success, "", at)
}

func (m *Machine) step(ctx context.Context, t transition) error {
	stepCtx, cancel := context.WithTimeout(ctx, m.StepTimeout)
	defer cancel()
	err := t.run(stepCtx)
	if err != nil && errors.Is(stepCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, ErrTimeout) {
		return fmt.Errorf("%w after %s reaching %s: %w", ErrTimeout, m.StepTimeout, t.to, err)
	}
	return err
}

func (m *Machine) enterCredentials(ctx context.Context, page BrowsingContext, acct Account) error {
	f := m.Form
	if err := page.WaitVisible(ctx, f.UsernameSelector); err != nil {
		return fmt.Errorf("%w: %w", ErrFieldNotFound, err)
	}
	// Autofill may have left a value behind.
	if err := page.SetValue(ctx, f.UsernameSelector, ""); err != nil {
		return err
	}
	if err := page.Type(ctx, f.UsernameSelector, acct.Username); err != nil {
		return err
	}
	if err := page.WaitVisible(ctx, f.PasswordSelector); err != nil {
		return fmt.Errorf("%w: %w", ErrFieldNotFound, err)
	}
	return page.Type(ctx, f.PasswordSelector, acct.Password)
}

// resolveSubmit polls until some submit candidate exists and returns the
// first one in list order.
func (m *Machine) resolveSubmit(ctx context.Context, page BrowsingContext) (string, error) {
	// Only an expired step deadline means the control never appeared;
	// cancellation is reported as such.
	notFound := func() error {
		if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ctx.Err()
		}
		return fmt.Errorf("%w (selectors: %s): %w", ErrSubmitNotFound,
			strings.Join(m.Form.SubmitSelectors, ", "), ctx.Err())
	}
	for {
		for _, sel := range m.Form.SubmitSelectors {
			ok, err := page.Exists(ctx, sel)
			if err != nil {
				if ctx.Err() != nil {
					return "", notFound()
				}
				return "", err
			}
			if ok {
				return sel, nil
			}
		}
		select {
		case <-ctx.Done():
			return "", notFound()
		case <-time.After(m.PollInterval):
		}
	}
}
