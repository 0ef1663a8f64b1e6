// Package completion decides when an in-page test run has finished, using nothing but the
// text of a few well-known DOM elements.
//
// Test pages are authored independently of the driver and have no channel for telling it
// they are done, so the driver reads a Signal from the live page over and over and asks a
// Matcher whether it describes a terminal state. Two page conventions are supported:
//
//   - status pages have an element with id "status" whose text moves from empty or an
//     initializing sentinel to a phrase containing passed, failed or error;
//   - status-less pages have no such element, and instead append a line of the form
//     "N/M passed" to the element with id "output".
//
// Either kind of page may also fill in an element with id "summary", and any non-empty
// summary counts as completion.
package completion

import (
	"fmt"
	"strings"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

// Element ids read from the page.
const (
	StatusElementID  = "status"
	OutputElementID  = "output"
	SummaryElementID = "summary"
)

// Signal is the text content of the three well-known elements at one moment. A field is
// undefined when the page has no element with that id, which is different from the
// element being present but empty.
type Signal struct {
	Status  ldvalue.OptionalString
	Output  ldvalue.OptionalString
	Summary ldvalue.OptionalString
}

// HasStatusElement reports whether the page follows the status convention.
func (s Signal) HasStatusElement() bool {
	return s.Status.IsDefined()
}

// StatusText returns the status text, or "" if there is no status element.
func (s Signal) StatusText() string { return s.Status.OrElse("") }

// OutputText returns the output text, or "" if there is no output element.
func (s Signal) OutputText() string { return s.Output.OrElse("") }

// SummaryText returns the summary text, or "" if there is no summary element.
func (s Signal) SummaryText() string { return s.Summary.OrElse("") }

// SignalFromValue builds a Signal from the object produced by evaluating the snapshot
// script in the page: an object with optional string properties named after the element
// ids. Properties that are missing, null, or not strings are treated as absent elements.
func SignalFromValue(v ldvalue.Value) Signal {
	return Signal{
		Status:  optionalString(v.GetByKey(StatusElementID)),
		Output:  optionalString(v.GetByKey(OutputElementID)),
		Summary: optionalString(v.GetByKey(SummaryElementID)),
	}
}

func optionalString(v ldvalue.Value) ldvalue.OptionalString {
	if v.Type() != ldvalue.StringType {
		return ldvalue.OptionalString{}
	}
	return ldvalue.NewOptionalString(v.StringValue())
}

// Equal reports whether two Signals have the same elements with the same text.
func (s Signal) Equal(other Signal) bool {
	return sameOptional(s.Status, other.Status) &&
		sameOptional(s.Output, other.Output) &&
		sameOptional(s.Summary, other.Summary)
}

func sameOptional(a, b ldvalue.OptionalString) bool {
	return a.IsDefined() == b.IsDefined() && a.StringValue() == b.StringValue()
}

func (s Signal) String() string {
	var parts []string
	for _, f := range []struct {
		name  string
		value ldvalue.OptionalString
	}{
		{StatusElementID, s.Status},
		{OutputElementID, s.Output},
		{SummaryElementID, s.Summary},
	} {
		if f.value.IsDefined() {
			parts = append(parts, fmt.Sprintf("%s=%q", f.name, abbreviate(f.value.StringValue(), 60)))
		} else {
			parts = append(parts, f.name+"=<absent>")
		}
	}
	return strings.Join(parts, " ")
}

// abbreviate keeps the tail of long text, since that is where progress shows up.
func abbreviate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return "…" + string(r[len(r)-max:])
}
