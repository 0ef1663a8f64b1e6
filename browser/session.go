// Package browser drives a single headless browser page with playwright-go.
package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"

	"github.com/polars-pyodide/pagetest-runner/completion"
	"github.com/polars-pyodide/pagetest-runner/framework"
)

const (
	Chromium = "chromium"
	Firefox  = "firefox"
	WebKit   = "webkit"

	// ConsoleErrorPrefix marks lines relayed from the page's console.
	ConsoleErrorPrefix = "[browser:error]"
)

// Options configures Launch.
type Options struct {
	// Browser is one of Chromium, Firefox or WebKit. Empty means Chromium.
	Browser string
	// Headed shows the browser window instead of running headless.
	Headed bool
	// Install downloads the browser and driver first if they are missing.
	Install bool
	// ConsoleOutput receives the page's console errors. Nil means os.Stderr.
	ConsoleOutput io.Writer
}

// Session is one browser with one page. Close releases both, along with the playwright
// driver process.
type Session struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	page    playwright.Page
	console *consoleForwarder
	logger  framework.Logger
	closing sync.Once
	closed  bool
	lock    sync.Mutex
}

// NormalizeBrowserName validates a browser name, mapping "" to Chromium.
func NormalizeBrowserName(name string) (string, error) {
	switch n := strings.ToLower(strings.TrimSpace(name)); n {
	case "", Chromium, "chrome":
		return Chromium, nil
	case Firefox:
		return Firefox, nil
	case WebKit, "safari":
		return WebKit, nil
	default:
		return "", fmt.Errorf("unsupported browser %q (expected %s, %s or %s)", name, Chromium, Firefox, WebKit)
	}
}

// Launch starts a fresh browser and opens a blank page in it. Console errors from the
// page are relayed as soon as the page exists. If any step fails, whatever was started
// is shut down again before Launch returns.
func Launch(ctx context.Context, opts Options, logger framework.Logger) (*Session, error) {
	if logger == nil {
		logger = framework.NullLogger()
	}
	name, err := NormalizeBrowserName(opts.Browser)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	console := opts.ConsoleOutput
	if console == nil {
		console = os.Stderr
	}

	if opts.Install {
		logger.Printf("Installing %s for playwright", name)
		if err := playwright.Install(&playwright.RunOptions{Browsers: []string{name}}); err != nil {
			return nil, fmt.Errorf("could not install %s: %w", name, err)
		}
	}

	s := &Session{
		console: newConsoleForwarder(console),
		logger:  logger,
	}
	if s.pw, err = playwright.Run(); err != nil {
		return nil, fmt.Errorf("could not start playwright: %w", err)
	}
	var browserType playwright.BrowserType
	switch name {
	case Firefox:
		browserType = s.pw.Firefox
	case WebKit:
		browserType = s.pw.WebKit
	default:
		browserType = s.pw.Chromium
	}
	s.browser, err = browserType.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(!opts.Headed),
	})
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("could not launch %s: %w", name, err)
	}
	s.page, err = s.browser.NewPage()
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("could not open page: %w", err)
	}
	s.page.OnConsole(func(msg playwright.ConsoleMessage) {
		s.console.forward(msg.Type(), msg.Text())
	})
	logger.Printf("Launched %s (headless=%t)", name, !opts.Headed)
	return s, nil
}

// Navigate loads url and returns once its initial DOM has been parsed, without waiting
// for subresources or scripts. The only time limit is ctx's deadline, if it has one.
func (s *Session) Navigate(ctx context.Context, url string) error {
	page, err := s.livePage(ctx)
	if err != nil {
		return err
	}
	s.logger.Printf("Navigating to %s", url)
	_, err = page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(remainingMillis(ctx)),
	})
	if err != nil {
		return fmt.Errorf("could not load %s: %w", url, err)
	}
	return nil
}

// Snapshot reads the textContent of the well-known elements. It implements
// completion.Source.
func (s *Session) Snapshot(ctx context.Context) (completion.Signal, error) {
	return s.read(ctx, snapshotScript)
}

// ReadResults reads the rendered innerText of the well-known elements, which is what a
// person looking at the page would see.
func (s *Session) ReadResults(ctx context.Context) (completion.Signal, error) {
	return s.read(ctx, resultsScript)
}

func (s *Session) read(ctx context.Context, script string) (completion.Signal, error) {
	page, err := s.livePage(ctx)
	if err != nil {
		return completion.Signal{}, err
	}
	raw, err := evaluate(ctx, page, script)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return completion.Signal{}, ctxErr
		}
		if _, closedErr := s.livePage(ctx); closedErr != nil {
			return completion.Signal{}, closedErr
		}
		return completion.Signal{}, fmt.Errorf("could not read page state: %w", err)
	}
	return completion.SignalFromValue(ldvalue.CopyArbitraryValue(raw)), nil
}

type evaluation struct {
	value interface{}
	err   error
}

// evaluate runs script in the page but gives up when ctx is done. Playwright has no
// per-call cancellation, and a page whose main thread is stuck never answers; closing
// the page later unblocks the abandoned call.
func evaluate(ctx context.Context, page playwright.Page, script string) (interface{}, error) {
	ch := make(chan evaluation, 1)
	go func() {
		v, err := page.Evaluate(script)
		ch <- evaluation{value: v, err: err}
	}()
	select {
	case e := <-ch:
		return e.value, e.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Session) livePage(ctx context.Context) (playwright.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.lock.Lock()
	closed := s.closed
	s.lock.Unlock()
	if closed || s.page == nil {
		return nil, fmt.Errorf("session is closed: %w", completion.ErrSourceClosed)
	}
	if s.page.IsClosed() {
		return nil, fmt.Errorf("page was closed: %w", completion.ErrSourceClosed)
	}
	if !s.browser.IsConnected() {
		return nil, fmt.Errorf("browser disconnected: %w", completion.ErrSourceClosed)
	}
	return s.page, nil
}

// Close releases the page, the browser and the driver. It may be called after a failed
// Launch, and more than once; only the first call does anything.
func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	var errs []error
	s.closing.Do(func() {
		s.lock.Lock()
		s.closed = true
		s.lock.Unlock()
		if s.page != nil && !s.page.IsClosed() {
			if err := s.page.Close(); err != nil {
				errs = append(errs, fmt.Errorf("closing page: %w", err))
			}
		}
		if s.browser != nil {
			if err := s.browser.Close(); err != nil {
				errs = append(errs, fmt.Errorf("closing browser: %w", err))
			}
		}
		if s.pw != nil {
			if err := s.pw.Stop(); err != nil {
				errs = append(errs, fmt.Errorf("stopping playwright: %w", err))
			}
		}
		if s.logger != nil {
			s.logger.Printf("Browser session closed")
		}
	})
	return errors.Join(errs...)
}

// remainingMillis converts ctx's deadline to a playwright timeout, where zero means no
// limit.
func remainingMillis(ctx context.Context) float64 {
	deadline, ok := ctx.Deadline()
	if !ok {
		return 0
	}
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return 1
	}
	return math.Ceil(float64(remaining) / float64(time.Millisecond))
}
