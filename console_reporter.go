package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/polars-pyodide/pagetest-runner/completion"
	"github.com/polars-pyodide/pagetest-runner/framework"
	"github.com/polars-pyodide/pagetest-runner/pagetests"
)

type ConsoleReporter struct {
	Out    io.Writer
	ErrOut io.Writer
	// Rerun is printed after a run that exits 1, if set.
	Rerun string
}

func (c *ConsoleReporter) Serving(baseURL, pageURL string) {
	fmt.Fprintf(c.Out, "Serving repo at %s\n", baseURL)
	fmt.Fprintf(c.Out, "Opening: %s\n\n", pageURL)
}

func (c *ConsoleReporter) Finished(inv pagetests.Invocation, results pagetests.Results, outcome framework.Outcome) {
	if results.Output != "" {
		fmt.Fprintln(c.Out, strings.TrimRight(results.Output, "\n"))
	}
	if results.Summary != "" {
		fmt.Fprintln(c.Out, "Summary:", results.Summary)
	}
	if results.Status != "" {
		fmt.Fprintln(c.Out, "Status: ", results.Status)
	}

	switch outcome.Reason {
	case framework.ReasonFailureStrict:
		color.New(color.FgRed, color.Bold).Fprintf(c.Out, "FAILED (%s mode)\n", inv.Mode())
		c.printRerun()
	case framework.ReasonFailureLenient:
		color.New(color.FgYellow).Fprintf(c.Out, "Failures reported, ignored in %s mode\n", inv.Mode())
	default:
		color.New(color.FgGreen).Fprintf(c.Out, "OK (%s mode)\n", inv.Mode())
	}
}

func (c *ConsoleReporter) TimedOut(inv pagetests.Invocation, err error) {
	color.New(color.FgRed).Fprintln(c.ErrOut, "Timed out waiting for test results.")
	fmt.Fprintf(c.ErrOut, "  %s\n", err)
	c.printRerun()
}

func (c *ConsoleReporter) Error(inv pagetests.Invocation, err error) {
	if errors.Is(err, completion.ErrSourceClosed) {
		color.New(color.FgRed).Fprintln(c.ErrOut, "Lost the browser page before test results were available.")
	}
	for _, line := range strings.Split(err.Error(), "\n") {
		fmt.Fprintf(c.ErrOut, "Error: %s\n", line)
	}
	if inv.TestFile != "" {
		c.printRerun()
	}
}

func (c *ConsoleReporter) printRerun() {
	if c.Rerun != "" {
		fmt.Fprintf(c.ErrOut, "To run again: %s\n", c.Rerun)
	}
}
