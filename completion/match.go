package completion

import (
	"regexp"
	"strings"
)

// A Matcher reports whether a Signal describes a finished run.
// The string return is a human-readable description for diagnostics.
type Matcher func(s Signal) (ok bool, description string)

var (
	statusOutcomePattern = regexp.MustCompile(`(?i)passed|failed|error`)
	outputTallyPattern   = regexp.MustCompile(`\d+/\d+ passed`)
)

// isInitializing reports whether a status phrase is the placeholder a page shows before
// its first test starts.
func isInitializing(status string) bool {
	s := strings.ToLower(strings.TrimSpace(status))
	s = strings.TrimRight(strings.TrimSuffix(s, "…"), ".")
	return s == "initialising" || s == "initializing"
}

// StatusOutcome matches a status page whose status phrase names an outcome.
func StatusOutcome() Matcher {
	return func(s Signal) (bool, string) {
		const desc = "status to name an outcome (passed, failed, error)"
		if !s.HasStatusElement() {
			return false, desc + " (no status element)"
		}
		status := s.StatusText()
		if strings.TrimSpace(status) == "" || isInitializing(status) {
			return false, desc
		}
		return statusOutcomePattern.MatchString(status), desc
	}
}

// OutputTally matches a page whose output contains an "N/M passed" tally.
func OutputTally() Matcher {
	return func(s Signal) (bool, string) {
		return outputTallyPattern.MatchString(s.OutputText()), `output to contain "N/M passed"`
	}
}

// SummaryPresent matches a page whose summary element has non-blank text.
func SummaryPresent() Matcher {
	return func(s Signal) (bool, string) {
		return strings.TrimSpace(s.SummaryText()) != "", "summary to be non-empty"
	}
}

// Any matches when at least one provided matcher matches.
func Any(matchers ...Matcher) Matcher {
	return func(s Signal) (bool, string) {
		descs := make([]string, 0, len(matchers))
		for _, m := range matchers {
			ok, desc := m(s)
			descs = append(descs, desc)
			if ok {
				return true, "any of: " + strings.Join(descs, ", ")
			}
		}
		return false, "any of: " + strings.Join(descs, ", ")
	}
}

// Terminal is the completion predicate for both page conventions. Whether the page has a
// status element selects the convention; either way a non-empty summary also counts,
// even while the status still says the run is in progress.
func Terminal() Matcher {
	statusPage := Any(StatusOutcome(), SummaryPresent())
	statusLessPage := Any(OutputTally(), SummaryPresent())
	return func(s Signal) (bool, string) {
		if s.HasStatusElement() {
			ok, desc := statusPage(s)
			return ok, "status page: " + desc
		}
		ok, desc := statusLessPage(s)
		return ok, "status-less page: " + desc
	}
}
