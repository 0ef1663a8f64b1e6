package completion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

func matches(m Matcher, s Signal) bool {
	ok, _ := m(s)
	return ok
}

func TestStatusOutcome(t *testing.T) {
	m := StatusOutcome()
	for status, expected := range map[string]bool{
		"":                      false,
		"   ":                   false,
		"Initialising…":         false,
		"initializing":          false,
		"Initializing...":       false,
		"Running…":              false,
		"Running test 4 of 10":  false,
		"All tests passed.":     true,
		"3/5 passed":            true,
		"12 failed, 88 passed":  true,
		"FAILED":                true,
		"Error: pyodide failed": true,
		"Done.":                 false,
	} {
		assert.Equal(t, expected, matches(m, statusPage(status)), "status %q", status)
	}
	assert.False(t, matches(m, statusLessPage("5/5 passed")))
}

func TestOutputTally(t *testing.T) {
	m := OutputTally()
	for output, expected := range map[string]bool{
		"":                        false,
		"running...\n":            false,
		"test_a ok\n5/5 passed\n": true,
		"42/42 passed":            true,
		"0/3 passed":              true,
		"5/ 5 passed":             false,
		"5 /5 passed":             false,
		"5/5passed":               false,
		"5/5 Passed":              false,
		"/5 passed":               false,
		"progress: 3/5 tests\n":   false,
	} {
		assert.Equal(t, expected, matches(m, statusLessPage(output)), "output %q", output)
	}
	assert.True(t, matches(m, statusLessPage("summary\n  12/100 passed, 88 failed\n")))
}

func TestSummaryPresent(t *testing.T) {
	m := SummaryPresent()
	assert.False(t, matches(m, Signal{}))
	assert.False(t, matches(m, Signal{Summary: str(" \n\t")}))
	assert.True(t, matches(m, Signal{Summary: str("88 passed, 12 failed")}))
}

func TestTerminalStatusPageIgnoresOutputTally(t *testing.T) {
	sig := Signal{Status: str("Running…"), Output: str("5/5 passed")}
	ok, desc := Terminal()(sig)
	assert.False(t, ok)
	assert.Contains(t, desc, "status page")
}

func TestTerminalStatusPageAcceptsSummaryWhileRunning(t *testing.T) {
	sig := Signal{Status: str("Running…"), Summary: str("Total: 100")}
	assert.True(t, matches(Terminal(), sig))
}

func TestTerminalStatusLessPage(t *testing.T) {
	assert.False(t, matches(Terminal(), statusLessPage("loading\n")))
	assert.True(t, matches(Terminal(), statusLessPage("loading\n42/42 passed\n")))

	ok, desc := Terminal()(statusLessPage(""))
	assert.False(t, ok)
	assert.Contains(t, desc, "status-less page")
}

func TestTerminalStatusLessPageAcceptsSummary(t *testing.T) {
	sig := Signal{Output: str("still going"), Summary: str("done")}
	assert.True(t, matches(Terminal(), sig))
}

func TestTerminalWithNoElementsAtAll(t *testing.T) {
	assert.False(t, matches(Terminal(), Signal{}))
}

func TestAny(t *testing.T) {
	never := func(Signal) (bool, string) { return false, "never" }
	always := func(Signal) (bool, string) { return true, "always" }

	ok, desc := Any(never, always)(Signal{})
	assert.True(t, ok)
	assert.Equal(t, "any of: never, always", desc)

	ok, _ = Any(never, never)(Signal{})
	assert.False(t, ok)

	ok, _ = Any()(Signal{})
	assert.False(t, ok)
}

func TestSignalFromValue(t *testing.T) {
	v := ldvalue.CopyArbitraryValue(map[string]interface{}{
		"status":  "Initialising…",
		"output":  "",
		"summary": nil,
	})
	sig := SignalFromValue(v)
	assert.True(t, sig.HasStatusElement())
	assert.Equal(t, "Initialising…", sig.StatusText())
	assert.True(t, sig.Output.IsDefined())
	assert.Equal(t, "", sig.OutputText())
	assert.False(t, sig.Summary.IsDefined())

	empty := SignalFromValue(ldvalue.Null())
	assert.False(t, empty.HasStatusElement())
	assert.False(t, empty.Output.IsDefined())
}

func TestSignalEqualAndString(t *testing.T) {
	a := Signal{Status: str(""), Output: absent}
	b := Signal{Status: str("")}
	c := Signal{Status: absent}
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))

	assert.Equal(t, `status="" output=<absent> summary=<absent>`, a.String())
}
