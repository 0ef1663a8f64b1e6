package pagetests

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/polars-pyodide/pagetest-runner/assets"
)

// ErrNoTestFile is returned when an Invocation does not name a test page.
var ErrNoTestFile = errors.New("no test file given")

// Invocation is what one run was asked to do.
type Invocation struct {
	// TestFile is the HTML page to run. Its directory is served at the site root.
	TestFile string
	// WheelDir is served under assets.WheelPrefix. Empty means assets.DefaultWheelDir.
	WheelDir string
	// Strict makes any failure reported by the page fail the run.
	Strict bool
}

// Resolved returns a copy with absolute paths and defaults filled in, after checking
// that the test file exists and is a regular file. The wheel directory is not required
// to exist; requests for its files will simply get 404s.
func (inv Invocation) Resolved() (Invocation, error) {
	if inv.TestFile == "" {
		return inv, ErrNoTestFile
	}
	testFile, err := filepath.Abs(inv.TestFile)
	if err != nil {
		return inv, err
	}
	info, err := os.Stat(testFile)
	if err != nil {
		return inv, fmt.Errorf("test file: %w", err)
	}
	if info.IsDir() {
		return inv, fmt.Errorf("test file %s is a directory", testFile)
	}
	wheelDir := inv.WheelDir
	if wheelDir == "" {
		wheelDir = assets.DefaultWheelDir
	}
	if wheelDir, err = filepath.Abs(wheelDir); err != nil {
		return inv, err
	}
	return Invocation{TestFile: testFile, WheelDir: wheelDir, Strict: inv.Strict}, nil
}

// Mode names the failure policy, for display.
func (inv Invocation) Mode() string {
	if inv.Strict {
		return "strict"
	}
	return "lenient"
}
