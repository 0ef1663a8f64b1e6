// Package framework contains the low-level pieces of the page test driver that do not
// know anything about test pages themselves.
//
// The general model is:
//
// 1. The driver serves a set of files over an ephemeral loopback HTTP server, which is
// bound before anything tries to reach it and released on every exit path.
//
// 2. Diagnostic output goes through a Logger, which is either discarded, captured for
// later inspection, or written straight to the console.
//
// 3. The result of a run is an Outcome, whose exit code is derived from a fixed policy
// table rather than from the control flow that produced it.
//
// The code that knows about DOM conventions, browsers, and test suites lives in higher
// level packages.
package framework
