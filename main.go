package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/polars-pyodide/pagetest-runner/browser"
	"github.com/polars-pyodide/pagetest-runner/completion"
	"github.com/polars-pyodide/pagetest-runner/framework"
	"github.com/polars-pyodide/pagetest-runner/pagetests"
)

type launcherFactory func(opts browser.Options, logger framework.Logger) pagetests.Launcher

func main() {
	if err := loadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Could not read .env: %s\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args, environmentConfig(), os.Stdout, os.Stderr, browserLauncher)
	stop()
	os.Exit(code)
}

// run is the whole program minus process setup. args includes the program name.
func run(
	ctx context.Context,
	args []string,
	cfg config,
	stdout, stderr io.Writer,
	newLauncher launcherFactory,
) int {
	var params commandParams
	ok, err := params.Read(args[1:], cfg, stdout, stderr)
	if err != nil {
		return framework.UsageOutcome(err).ExitCode
	}
	if !ok {
		return framework.ExitOK
	}

	debugLogger := framework.NullLogger()
	if params.debug {
		debugLogger = log.New(stdout, "", log.LstdFlags)
	}

	reporter := &ConsoleReporter{
		Out:    stdout,
		ErrOut: stderr,
		Rerun:  params.rerunCommand(filepath.Base(args[0])),
	}
	launch := newLauncher(browser.Options{
		Browser:       params.browser,
		Headed:        params.headed,
		Install:       params.install,
		ConsoleOutput: stderr,
	}, framework.PrefixedLogger(debugLogger, "[browser] "))

	outcome := pagetests.Run(ctx, pagetests.Invocation{
		TestFile: params.testFile,
		WheelDir: params.wheelDir,
		Strict:   params.strict,
	}, pagetests.Environment{
		Launch:   launch,
		Reporter: reporter,
		Detector: completion.NewDetector(
			completion.WithTimeout(completion.DefaultTimeout),
			completion.WithLogger(framework.PrefixedLogger(debugLogger, "[wait] ")),
		),
		Logger: debugLogger,
	})
	debugLogger.Printf("Run finished: %s", outcome)
	return outcome.ExitCode
}

func browserLauncher(opts browser.Options, logger framework.Logger) pagetests.Launcher {
	return func(ctx context.Context) (pagetests.Page, error) {
		s, err := browser.Launch(ctx, opts, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}
