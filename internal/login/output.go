package login

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Reporter consumes results as the batch advances.
type Reporter interface {
	Start(*BatchRun)
	Emit(Result)
	Finish(*BatchRun) error
}

// MultiReporter fans out to every reporter in order.
type MultiReporter []Reporter

// Start passes run to every reporter.
func (m MultiReporter) Start(run *BatchRun) {
	for _, rep := range m {
		rep.Start(run)
	}
}

// Emit passes r to every reporter.
func (m MultiReporter) Emit(r Result) {
	for _, rep := range m {
		rep.Emit(r)
	}
}

// Finish finishes every reporter and joins their errors.
func (m MultiReporter) Finish(run *BatchRun) error {
	var errs []error
	for _, rep := range m {
		if err := rep.Finish(run); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close releases reporters that hold resources, for runs that never reached
// Finish.
func (m MultiReporter) Close() error {
	var errs []error
	for _, rep := range m {
		if c, ok := rep.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

// TextReporter prints one human-readable line per result.
type TextReporter struct {
	w io.Writer
}

// NewTextReporter writes report lines to w.
func NewTextReporter(w io.Writer) *TextReporter {
	return &TextReporter{w: w}
}

// Start is a no-op; the text report has no header.
func (t *TextReporter) Start(*BatchRun) {}

// Emit prints the line for r.
func (t *TextReporter) Emit(r Result) {
	fmt.Fprintln(t.w, FormatResult(r))
}

// Finish prints the completion line, or the abort line for a cancelled batch.
func (t *TextReporter) Finish(run *BatchRun) error {
	ok, bad := run.Counts()
	if run.Err != nil {
		_, err := fmt.Fprintf(t.w, "batch aborted after %d of %d accounts: %d succeeded, %d failed\n",
			len(run.Results), len(run.Accounts), ok, bad)
		return err
	}
	_, err := fmt.Fprintf(t.w, "all accounts processed: %d succeeded, %d failed\n", ok, bad)
	return err
}

// FormatResult renders r as a single line.
func FormatResult(r Result) string {
	if r.Succeeded() {
		return fmt.Sprintf("account %s logged in at %s (UTC+8), %s (UTC)",
			r.Username,
			r.ObservedAtLocal.Format(TimestampLayout),
			r.ObservedAtUTC.Format(TimestampLayout))
	}
	return fmt.Sprintf("account %s login failed: %s", r.Username, firstLine(r.Reason))
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

var csvHeader = []string{"run_id", "username", "panel", "outcome", "observed_utc", "observed_local", "reason"}

// CSVReporter appends results to a CSV file, writing the header only when the
// file is new.
type CSVReporter struct {
	mu        sync.Mutex
	f         *os.File
	w         *csv.Writer
	runID     string
	count     int
	closeOnce sync.Once
	closeErr  error
}

// NewCSVReporter opens path for appending.
func NewCSVReporter(path string) (*CSVReporter, error) {
	Infof("writing results to %s", path)
	_, err := os.Stat(path)
	newFile := os.IsNotExist(err)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open output: %w", err)
	}
	w := csv.NewWriter(f)
	if newFile {
		Debugf("creating new output file with header")
		if err := w.Write(csvHeader); err != nil {
			f.Close()
			return nil, fmt.Errorf("write header: %w", err)
		}
		w.Flush()
	}
	return &CSVReporter{f: f, w: w}, nil
}

// Start tags the following rows with the batch they belong to.
func (c *CSVReporter) Start(run *BatchRun) {
	c.mu.Lock()
	c.runID = run.ID
	c.mu.Unlock()
}

// Emit appends one row and flushes it.
func (c *CSVReporter) Emit(r Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	row := []string{
		c.runID,
		r.Username,
		strconv.Itoa(r.PanelNumber),
		r.Outcome.String(),
		r.ObservedAtUTC.Format(TimestampLayout),
		r.ObservedAtLocal.Format(TimestampLayout),
		firstLine(r.Reason),
	}
	if err := c.w.Write(row); err != nil {
		Warnf("write row error for %s: %v", r.Username, err)
	}
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		Warnf("flush error: %v", err)
		return
	}
	c.count++
}

// Finish flushes and closes the file.
func (c *CSVReporter) Finish(*BatchRun) error {
	Infof("finished writing %d results", c.count)
	return c.Close()
}

// Close flushes pending rows and closes the file once.
func (c *CSVReporter) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.w.Flush()
		c.closeErr = errors.Join(c.w.Error(), c.f.Close())
	})
	return c.closeErr
}
