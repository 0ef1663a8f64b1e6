package pagetests

import (
	"regexp"

	"github.com/polars-pyodide/pagetest-runner/completion"
)

var failurePattern = regexp.MustCompile(`(?i)failed|error`)

// Results is the final text a page reported. Fields are empty for elements the page
// does not have.
type Results struct {
	Output  string
	Summary string
	Status  string
}

func ResultsFromSignal(sig completion.Signal) Results {
	return Results{
		Output:  sig.OutputText(),
		Summary: sig.SummaryText(),
		Status:  sig.StatusText(),
	}
}

// Verdict is the text failure classification looks at: the summary if the page wrote
// one, otherwise the status.
func (r Results) Verdict() string {
	if r.Summary != "" {
		return r.Summary
	}
	return r.Status
}

// Failed reports whether the page says any test failed or errored. The output log is
// not consulted, since test names and tracebacks there mention errors freely.
func (r Results) Failed() bool {
	return failurePattern.MatchString(r.Verdict())
}
