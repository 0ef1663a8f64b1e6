package completion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/polars-pyodide/pagetest-runner/framework"
)

const (
	// DefaultTimeout bounds the whole suite run, including however long the page's own
	// tests take.
	DefaultTimeout      = 15 * time.Minute
	DefaultPollInterval = 100 * time.Millisecond
	minPollInterval     = 10 * time.Millisecond
)

var (
	// ErrTimeout means the deadline passed without the matcher ever succeeding.
	ErrTimeout = errors.New("timed out waiting for test results")

	// ErrSourceClosed is returned by a Source that can never produce another Signal, such
	// as a page that has been closed or has crashed. It stops the wait immediately.
	ErrSourceClosed = errors.New("signal source closed")
)

// Source produces Signals from a live page.
type Source interface {
	Snapshot(ctx context.Context) (Signal, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (Signal, error)

func (f SourceFunc) Snapshot(ctx context.Context) (Signal, error) { return f(ctx) }

// Detector polls a Source until its Matcher succeeds or its deadline passes.
type Detector struct {
	matcher      Matcher
	timeout      time.Duration
	pollInterval time.Duration
	logger       framework.Logger
}

// Option configures a Detector.
type Option func(*Detector)

// WithMatcher replaces the default Terminal matcher.
func WithMatcher(m Matcher) Option {
	return func(d *Detector) { d.matcher = m }
}

// WithTimeout sets the overall deadline. Zero keeps DefaultTimeout.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Detector) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithPollInterval sets the pause between reads. Zero keeps DefaultPollInterval; positive
// values under 10ms are clamped to 10ms.
func WithPollInterval(interval time.Duration) Option {
	return func(d *Detector) {
		if interval > 0 {
			d.pollInterval = interval
		}
		if d.pollInterval < minPollInterval {
			d.pollInterval = minPollInterval
		}
	}
}

// WithLogger sets the debug logger.
func WithLogger(logger framework.Logger) Option {
	return func(d *Detector) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func NewDetector(opts ...Option) *Detector {
	d := &Detector{
		matcher:      Terminal(),
		timeout:      DefaultTimeout,
		pollInterval: DefaultPollInterval,
		logger:       framework.NullLogger(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func (d *Detector) Timeout() time.Duration { return d.timeout }

// Wait reads Signals from src until one satisfies the matcher, and returns that Signal.
// The Signal returned is the one that satisfied the matcher, not a later reading.
//
// It sleeps between reads rather than spinning. A read that is still in flight when the
// deadline passes is abandoned, so a page that never answers cannot hold Wait open. Errors from src other than
// ErrSourceClosed are treated as transient (a page in the middle of navigating cannot be
// evaluated) and polling continues. If the deadline passes first the error wraps
// ErrTimeout; if ctx is cancelled first the error is ctx.Err().
func (d *Detector) Wait(ctx context.Context, src Source) (Signal, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	var (
		last      Signal
		lastDesc  string
		lastErr   error
		polls     int
		startTime = time.Now()
	)
	for {
		polls++
		sig, err := snapshot(ctx, src)
		switch {
		case err == nil:
			ok, desc := d.matcher(sig)
			if ok {
				d.logger.Printf("Completion detected after %d polls (%s): %s",
					polls, time.Since(startTime).Round(time.Millisecond), sig)
				return sig, nil
			}
			if desc != lastDesc || !sig.Equal(last) {
				d.logger.Printf("Still waiting for %s; page shows %s", desc, sig)
			}
			last, lastDesc, lastErr = sig, desc, nil
		case errors.Is(err, ErrSourceClosed):
			return last, fmt.Errorf("stopped waiting after %d polls: %w", polls, err)
		default:
			if lastErr == nil || lastErr.Error() != err.Error() {
				d.logger.Printf("Could not read page state (will retry): %s", err)
			}
			lastErr = err
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return last, d.timeoutError(lastDesc, last)
			}
			return last, ctx.Err()
		case <-ticker.C:
		}
	}
}

type snapshotResult struct {
	signal Signal
	err    error
}

// snapshot returns when src does or when ctx is done, whichever is first. The buffered
// channel lets an abandoned read finish later without leaking its goroutine forever.
func snapshot(ctx context.Context, src Source) (Signal, error) {
	ch := make(chan snapshotResult, 1)
	go func() {
		sig, err := src.Snapshot(ctx)
		ch <- snapshotResult{signal: sig, err: err}
	}()
	select {
	case r := <-ch:
		return r.signal, r.err
	case <-ctx.Done():
		return Signal{}, ctx.Err()
	}
}

func (d *Detector) timeoutError(desc string, last Signal) error {
	if desc == "" {
		return fmt.Errorf("%w after %s; page state was never readable", ErrTimeout, d.timeout)
	}
	return fmt.Errorf("%w after %s; expected %s, page showed %s", ErrTimeout, d.timeout, desc, last)
}
