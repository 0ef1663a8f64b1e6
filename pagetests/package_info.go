// Package pagetests runs one HTML test page to completion and turns what it reports into
// an exit code.
//
// Infrastructure that does not know about test pages, such as the loopback server and
// the logging types, is in the lower-level framework package. Detecting that a page has
// finished is in the completion package.
package pagetests
