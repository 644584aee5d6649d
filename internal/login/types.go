package login

import (
	"fmt"
	"time"
)

// TimestampLayout is the sortable form used for every reported timestamp.
const TimestampLayout = "2006-01-02 15:04:05"

// LocalZone is the fixed UTC+8 reference reported next to UTC.
var LocalZone = time.FixedZone("UTC+8", 8*60*60)

// Account is one credential record loaded from the credential source.
type Account struct {
	Username    string
	Password    string
	PanelNumber int
}

// String identifies the account without exposing the password.
func (a Account) String() string {
	return fmt.Sprintf("%s@panel%d", a.Username, a.PanelNumber)
}

// Outcome is the binary result of a login attempt.
type Outcome int

const (
	Failure Outcome = iota
	Success
)

func (o Outcome) String() string {
	if o == Success {
		return "success"
	}
	return "failure"
}

// Result holds the outcome of a single account's login attempt.
type Result struct {
	Username        string
	PanelNumber     int
	Outcome         Outcome
	Reason          string
	ObservedAtUTC   time.Time
	ObservedAtLocal time.Time
}

// Succeeded reports whether the attempt reached the authenticated page.
func (r Result) Succeeded() bool { return r.Outcome == Success }

func newResult(acct Account, outcome Outcome, reason string, at time.Time) Result {
	return Result{
		Username:        acct.Username,
		PanelNumber:     acct.PanelNumber,
		Outcome:         outcome,
		Reason:          reason,
		ObservedAtUTC:   at.UTC(),
		ObservedAtLocal: at.In(LocalZone),
	}
}

func failed(acct Account, err error, at time.Time) Result {
	return newResult(acct, Failure, err.Error(), at)
}

// BatchRun is one pass over the loaded accounts.
type BatchRun struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Accounts   []Account
	Results    []Result
	// Err is set when the batch was cut short by cancellation.
	Err error
}

// Counts returns the number of succeeded and failed results so far.
func (b *BatchRun) Counts() (succeeded, failed int) {
	for _, r := range b.Results {
		if r.Succeeded() {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}
