package pagetests

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"

	"github.com/polars-pyodide/pagetest-runner/completion"
	"github.com/polars-pyodide/pagetest-runner/framework"
)

const testPageHTML = "<html><body>test page</body></html>"

func str(s string) ldvalue.OptionalString { return ldvalue.NewOptionalString(s) }

func statusSignal(status string) completion.Signal {
	return completion.Signal{Status: str(status), Output: str("log\n"), Summary: str("")}
}

func outputSignal(output string) completion.Signal {
	return completion.Signal{Output: str(output)}
}

type fetched struct {
	status int
	body   string
}

func fetch(rawURL string) (fetched, error) {
	resp, err := http.Get(rawURL)
	if err != nil {
		return fetched{}, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	return fetched{status: resp.StatusCode, body: string(body)}, err
}

// fakePage stands in for a browser page. Navigate really fetches the URL so the server
// side of a run is exercised.
type fakePage struct {
	signals     []completion.Signal
	final       *completion.Signal
	finalErr    error
	finalHangs  bool
	navigateErr error

	lock            sync.Mutex
	reads           int
	navigatedURL    string
	navigated       fetched
	extraURLs       []string
	extraFetched    []fetched
	closeCount      int
	serverUpAtClose bool
}

func (p *fakePage) Navigate(ctx context.Context, pageURL string) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.navigatedURL = pageURL
	f, err := fetch(pageURL)
	if err != nil {
		return err
	}
	p.navigated = f
	u, _ := url.Parse(pageURL)
	for _, path := range p.extraURLs {
		f, err := fetch(u.Scheme + "://" + u.Host + path)
		if err != nil {
			return err
		}
		p.extraFetched = append(p.extraFetched, f)
	}
	return p.navigateErr
}

func (p *fakePage) Snapshot(ctx context.Context) (completion.Signal, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	i := p.reads
	if i >= len(p.signals) {
		i = len(p.signals) - 1
	}
	p.reads++
	return p.signals[i], nil
}

func (p *fakePage) ReadResults(ctx context.Context) (completion.Signal, error) {
	if p.finalHangs {
		<-ctx.Done()
		return completion.Signal{}, ctx.Err()
	}
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.finalErr != nil {
		return completion.Signal{}, p.finalErr
	}
	if p.final != nil {
		return *p.final, nil
	}
	return p.signals[len(p.signals)-1], nil
}

func (p *fakePage) Close() error {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.closeCount++
	if p.navigatedURL != "" {
		_, err := fetch(p.navigatedURL)
		p.serverUpAtClose = err == nil
	}
	return nil
}

type recordingReporter struct {
	baseURL  string
	pageURL  string
	results  *Results
	outcome  *framework.Outcome
	timedOut error
	errs     []error
}

func (r *recordingReporter) Serving(baseURL, pageURL string) {
	r.baseURL, r.pageURL = baseURL, pageURL
}

func (r *recordingReporter) Finished(inv Invocation, results Results, outcome framework.Outcome) {
	r.results, r.outcome = &results, &outcome
}

func (r *recordingReporter) TimedOut(inv Invocation, err error) { r.timedOut = err }

func (r *recordingReporter) Error(inv Invocation, err error) { r.errs = append(r.errs, err) }

type runFixture struct {
	t        *testing.T
	testFile string
	wheelDir string
	page     *fakePage
	reporter *recordingReporter
	launches int
	timeout  time.Duration
	readTime time.Duration
}

func newRunFixture(t *testing.T, signals ...completion.Signal) *runFixture {
	root := t.TempDir()
	f := &runFixture{
		t:        t,
		testFile: filepath.Join(root, "pages", "test-official.html"),
		wheelDir: filepath.Join(root, "wasm-dist"),
		page:     &fakePage{signals: signals},
		reporter: &recordingReporter{},
		timeout:  5 * time.Second,
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(f.testFile), 0o755))
	require.NoError(t, os.WriteFile(f.testFile, []byte(testPageHTML), 0o644))
	require.NoError(t, os.MkdirAll(f.wheelDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.wheelDir, "polars.whl"), []byte("PK"), 0o644))
	return f
}

func (f *runFixture) run(strict bool) framework.Outcome {
	return f.runWith(strict, func(ctx context.Context) (Page, error) {
		f.launches++
		return f.page, nil
	})
}

func (f *runFixture) runWith(strict bool, launch Launcher) framework.Outcome {
	inv := Invocation{TestFile: f.testFile, WheelDir: f.wheelDir, Strict: strict}
	return Run(context.Background(), inv, Environment{
		Launch:   launch,
		Reporter: f.reporter,
		Detector: completion.NewDetector(
			completion.WithPollInterval(time.Millisecond),
			completion.WithTimeout(f.timeout),
		),
		ResultsTimeout: f.readTime,
	})
}

func (f *runFixture) requirePortReleased() {
	f.t.Helper()
	require.NotEmpty(f.t, f.reporter.baseURL)
	u, err := url.Parse(f.reporter.baseURL)
	require.NoError(f.t, err)
	l, err := net.Listen("tcp", u.Host)
	require.NoError(f.t, err, "port should be free after the run")
	l.Close()
}

func TestLenientSuiteWithFailuresExitsZeroAndReportsCounts(t *testing.T) {
	f := newRunFixture(t,
		statusSignal("Initialising…"),
		statusSignal("Running…"),
		statusSignal("12 failed, 88 passed"),
	)
	outcome := f.run(false)

	assert.Equal(t, framework.ExitOK, outcome.ExitCode)
	assert.Equal(t, framework.ReasonFailureLenient, outcome.Reason)
	require.NotNil(t, f.reporter.results)
	assert.Equal(t, "12 failed, 88 passed", f.reporter.results.Status)
	assert.Equal(t, outcome, *f.reporter.outcome)
}

func TestStrictSuiteWithFailuresExitsOne(t *testing.T) {
	f := newRunFixture(t, statusSignal(""), statusSignal("12 failed, 88 passed"))
	outcome := f.run(true)

	assert.Equal(t, framework.ExitFailure, outcome.ExitCode)
	assert.Equal(t, framework.ReasonFailureStrict, outcome.Reason)
}

func TestStrictStatusLessSuiteThatPassesExitsZero(t *testing.T) {
	f := newRunFixture(t,
		outputSignal("loading\n"),
		outputSignal("loading\ntest_a ok\n42/42 passed\n"),
	)
	outcome := f.run(true)

	assert.Equal(t, framework.ExitOK, outcome.ExitCode)
	assert.Equal(t, framework.ReasonCompleted, outcome.Reason)
	assert.Contains(t, f.reporter.results.Output, "42/42 passed")
	assert.Empty(t, f.reporter.errs)
}

func TestRepeatedRunsGiveSameExitCode(t *testing.T) {
	for _, strict := range []bool{true, false} {
		var codes []int
		for i := 0; i < 3; i++ {
			f := newRunFixture(t, statusSignal("1 failed"))
			codes = append(codes, f.run(strict).ExitCode)
		}
		assert.Equal(t, codes[0], codes[1])
		assert.Equal(t, codes[1], codes[2])
	}
}

func TestServesTestPageAndWheelDir(t *testing.T) {
	f := newRunFixture(t, statusSignal("All tests passed."))
	f.page.extraURLs = []string{"/wasm-dist/polars.whl", "/wasm-dist/missing.whl", "/test-official.html"}
	f.run(true)

	assert.Equal(t, f.reporter.pageURL, f.page.navigatedURL)
	assert.Equal(t, f.reporter.baseURL+"/test-official.html", f.reporter.pageURL)
	assert.Equal(t, fetched{200, testPageHTML}, f.page.navigated)
	require.Len(t, f.page.extraFetched, 3)
	assert.Equal(t, fetched{200, "PK"}, f.page.extraFetched[0])
	assert.Equal(t, 404, f.page.extraFetched[1].status)
	assert.Contains(t, f.page.extraFetched[1].body, "Not found: ")
	assert.Equal(t, 200, f.page.extraFetched[2].status)
}

func TestTimeoutExitsOneAndReleasesResources(t *testing.T) {
	f := newRunFixture(t, statusSignal("Running…"))
	f.timeout = 50 * time.Millisecond
	outcome := f.run(false)

	assert.Equal(t, framework.ExitFailure, outcome.ExitCode)
	assert.Equal(t, framework.ReasonTimeout, outcome.Reason)
	assert.True(t, errors.Is(f.reporter.timedOut, completion.ErrTimeout))
	assert.Nil(t, f.reporter.results)
	assert.Equal(t, 1, f.page.closeCount)
	f.requirePortReleased()
}

func TestBrowserIsClosedBeforeServer(t *testing.T) {
	f := newRunFixture(t, statusSignal("All tests passed."))
	f.run(true)

	assert.Equal(t, 1, f.page.closeCount)
	assert.True(t, f.page.serverUpAtClose)
	f.requirePortReleased()
}

func TestLaunchFailureExitsOneAndStopsServer(t *testing.T) {
	f := newRunFixture(t)
	outcome := f.runWith(false, func(ctx context.Context) (Page, error) {
		return nil, errors.New("no chromium")
	})

	assert.Equal(t, framework.ExitFailure, outcome.ExitCode)
	assert.Equal(t, framework.ReasonError, outcome.Reason)
	require.Len(t, f.reporter.errs, 1)
	assert.Contains(t, f.reporter.errs[0].Error(), "no chromium")
	f.requirePortReleased()
}

func TestNavigationFailureExitsOneAndClosesBrowser(t *testing.T) {
	f := newRunFixture(t, statusSignal("All tests passed."))
	f.page.navigateErr = errors.New("net::ERR_CONNECTION_REFUSED")
	outcome := f.run(false)

	assert.Equal(t, framework.ExitFailure, outcome.ExitCode)
	assert.Equal(t, 1, f.page.closeCount)
	f.requirePortReleased()
}

func TestMissingTestFileNeverStartsServerOrBrowser(t *testing.T) {
	f := newRunFixture(t)
	f.testFile = filepath.Join(t.TempDir(), "nope.html")
	outcome := f.run(true)

	assert.Equal(t, framework.ExitFailure, outcome.ExitCode)
	assert.Equal(t, 0, f.launches)
	assert.Empty(t, f.reporter.baseURL)
	assert.Len(t, f.reporter.errs, 1)
}

func TestNoTestFileIsUsageError(t *testing.T) {
	f := newRunFixture(t)
	f.testFile = ""
	outcome := f.run(false)

	assert.Equal(t, framework.ExitFailure, outcome.ExitCode)
	assert.Equal(t, framework.ReasonUsage, outcome.Reason)
	assert.Equal(t, 0, f.launches)
	assert.Empty(t, f.reporter.baseURL)
}

func TestFinalResultsComeFromRenderedText(t *testing.T) {
	rendered := completion.Signal{Status: str("3 failed"), Output: str("rendered log"), Summary: str("3 failed, 7 passed")}
	f := newRunFixture(t, statusSignal("3 failed"))
	f.page.final = &rendered
	f.run(false)

	assert.Equal(t, Results{Output: "rendered log", Summary: "3 failed, 7 passed", Status: "3 failed"}, *f.reporter.results)
}

func TestUnreadableFinalResultsFallBackToTerminalSnapshot(t *testing.T) {
	f := newRunFixture(t, statusSignal("2 failed"))
	f.page.finalErr = errors.New("page crashed")
	outcome := f.run(true)

	assert.Equal(t, framework.ExitFailure, outcome.ExitCode)
	assert.Equal(t, "2 failed", f.reporter.results.Status)
}

func TestMissingLauncherIsAnError(t *testing.T) {
	f := newRunFixture(t)
	outcome := f.runWith(false, nil)
	assert.Equal(t, framework.ExitFailure, outcome.ExitCode)
	assert.Empty(t, f.reporter.baseURL)
}

func TestFinalReadThatNeverAnswersFallsBackToTerminalSnapshot(t *testing.T) {
	f := newRunFixture(t, statusSignal("4 failed, 6 passed"))
	f.page.finalHangs = true
	f.readTime = 50 * time.Millisecond

	start := time.Now()
	outcome := f.run(true)

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, framework.ExitFailure, outcome.ExitCode)
	require.NotNil(t, f.reporter.results)
	assert.Equal(t, "4 failed, 6 passed", f.reporter.results.Status)
	assert.Equal(t, 1, f.page.closeCount)
	f.requirePortReleased()
}
