package pagetests

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	"github.com/polars-pyodide/pagetest-runner/assets"
	"github.com/polars-pyodide/pagetest-runner/completion"
	"github.com/polars-pyodide/pagetest-runner/framework"
)

// Page is the part of a browser session that Run uses.
type Page interface {
	completion.Source
	Navigate(ctx context.Context, url string) error
	ReadResults(ctx context.Context) (completion.Signal, error)
	Close() error
}

// DefaultResultsTimeout bounds the final read of the page's results.
const DefaultResultsTimeout = 30 * time.Second

// Launcher starts a browser with a single blank page.
type Launcher func(ctx context.Context) (Page, error)

// Environment holds the collaborators of a run.
type Environment struct {
	Launch   Launcher
	Reporter Reporter
	Detector *completion.Detector
	// Logger receives debug output. Nil discards it.
	Logger framework.Logger
	// ResultsTimeout bounds the final read after completion. Zero means
	// DefaultResultsTimeout.
	ResultsTimeout time.Duration
}

// Run serves the test page, opens it in a browser, waits for the page to report that it
// is done, and applies the exit policy to what it reports.
//
// Resources are acquired in a fixed order (server, browser) and released in the reverse
// order on every path out of Run, including timeouts and launch failures. Navigation and
// the completion wait share one deadline, the detector's timeout.
func Run(ctx context.Context, inv Invocation, env Environment) framework.Outcome {
	reporter := env.Reporter
	if reporter == nil {
		reporter = nullReporter{}
	}
	logger := env.Logger
	if logger == nil {
		logger = framework.NullLogger()
	}
	detector := env.Detector
	if detector == nil {
		detector = completion.NewDetector(completion.WithLogger(framework.PrefixedLogger(logger, "[wait] ")))
	}
	if env.Launch == nil {
		err := errors.New("no browser launcher configured")
		reporter.Error(inv, err)
		return framework.ErrorOutcome(err)
	}

	resolved, err := inv.Resolved()
	if err != nil {
		reporter.Error(inv, err)
		if errors.Is(err, ErrNoTestFile) {
			return framework.UsageOutcome(err)
		}
		return framework.ErrorOutcome(err)
	}
	inv = resolved

	resolver, err := assets.NewResolver(filepath.Dir(inv.TestFile), inv.WheelDir, framework.PrefixedLogger(logger, "[http] "))
	if err != nil {
		reporter.Error(inv, err)
		return framework.ErrorOutcome(err)
	}
	server, err := framework.StartServer(resolver, framework.PrefixedLogger(logger, "[http] "))
	if err != nil {
		reporter.Error(inv, err)
		return framework.ErrorOutcome(err)
	}
	defer server.Stop()

	pageURL := server.URL(url.PathEscape(filepath.Base(inv.TestFile)))
	reporter.Serving(server.BaseURL(), pageURL)

	runCtx, cancel := context.WithTimeout(ctx, detector.Timeout())
	defer cancel()

	page, err := env.Launch(runCtx)
	if err != nil {
		err = fmt.Errorf("could not start browser: %w", err)
		reporter.Error(inv, err)
		return framework.ErrorOutcome(err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			logger.Printf("Error while closing browser: %s", err)
		}
	}()

	if err := page.Navigate(runCtx, pageURL); err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w while loading %s", completion.ErrTimeout, pageURL)
			reporter.TimedOut(inv, err)
			return framework.TimeoutOutcome(err)
		}
		reporter.Error(inv, err)
		return framework.ErrorOutcome(err)
	}

	terminal, err := detector.Wait(runCtx, page)
	if err != nil {
		if errors.Is(err, completion.ErrTimeout) {
			reporter.TimedOut(inv, err)
			return framework.TimeoutOutcome(err)
		}
		reporter.Error(inv, err)
		return framework.ErrorOutcome(err)
	}

	resultsTimeout := env.ResultsTimeout
	if resultsTimeout <= 0 {
		resultsTimeout = DefaultResultsTimeout
	}
	readCtx, cancelRead := context.WithTimeout(ctx, resultsTimeout)
	final, err := page.ReadResults(readCtx)
	cancelRead()
	if err != nil {
		logger.Printf("Could not read final results, using the completion snapshot instead: %s", err)
		final = terminal
	}
	results := ResultsFromSignal(final)
	outcome := framework.NewOutcome(inv.Strict, results.Failed())
	reporter.Finished(inv, results, outcome)
	return outcome
}
