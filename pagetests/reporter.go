package pagetests

import "github.com/polars-pyodide/pagetest-runner/framework"

// Reporter receives the user-facing events of a run.
type Reporter interface {
	Serving(baseURL, pageURL string)
	Finished(inv Invocation, results Results, outcome framework.Outcome)
	TimedOut(inv Invocation, err error)
	Error(inv Invocation, err error)
}

type nullReporter struct{}

func (nullReporter) Serving(string, string)                          {}
func (nullReporter) Finished(Invocation, Results, framework.Outcome) {}
func (nullReporter) TimedOut(Invocation, error)                      {}
func (nullReporter) Error(Invocation, error)                         {}
