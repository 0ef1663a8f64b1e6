package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/alessio/shellescape"
	"github.com/spf13/cobra"

	"github.com/polars-pyodide/pagetest-runner/browser"
)

const usageLine = "Usage: pagetest <test-file.html> [wheel-dir] [--strict]"

var errMissingTestFile = errors.New("missing test file argument")

type commandParams struct {
	testFile string
	wheelDir string
	strict   bool
	debug    bool
	browser  string
	headed   bool
	install  bool
	ran      bool
}

// command builds the cobra command that fills in c. Flags may appear anywhere among the
// positional arguments.
func (c *commandParams) command(cfg config, stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pagetest <test-file.html> [wheel-dir]",
		Short: "Run an HTML test page in a headless browser",
		Long: `Serves an HTML test page and a directory of build artifacts on a loopback port,
opens the page in a headless browser, waits for the page's own test run to finish,
and prints what it reported.

The artifact directory is served under /wasm-dist/ and defaults to ./wasm-dist.
Without --strict, failures reported by the page are printed but do not change the
exit status. A run that does not finish within 15 minutes always exits 1.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return errMissingTestFile
			}
			return cobra.MaximumNArgs(2)(cmd, args)
		},
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			c.testFile = args[0]
			c.wheelDir = cfg.wheelDir
			if len(args) > 1 {
				c.wheelDir = args[1]
			}
			name, err := browser.NormalizeBrowserName(c.browser)
			if err != nil {
				return err
			}
			c.browser = name
			c.ran = true
			return nil
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	fs := cmd.Flags()
	fs.BoolVar(&c.strict, "strict", false, "exit 1 if the page reports any failure")
	fs.BoolVar(&c.debug, "debug", false, "enable debug logging")
	fs.StringVar(&c.browser, "browser", cfg.browser, "browser engine: chromium, firefox or webkit")
	fs.BoolVar(&c.headed, "headed", !cfg.headless, "show the browser window")
	fs.BoolVar(&c.install, "install", cfg.install, "install the browser if it is missing")
	return cmd
}

// Read parses args, which do not include the program name. It returns false if the
// program should exit without running anything; usage problems have been reported to
// stderr by then and are also returned.
func (c *commandParams) Read(args []string, cfg config, stdout, stderr io.Writer) (bool, error) {
	cmd := c.command(cfg, stdout, stderr)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		if errors.Is(err, errMissingTestFile) {
			fmt.Fprintln(stderr, usageLine)
		} else {
			fmt.Fprintf(stderr, "Invalid parameters: %s\n", err)
			fmt.Fprintln(stderr, usageLine)
		}
		return false, err
	}
	return c.ran, nil
}

// rerunCommand is a shell command line that repeats this run.
func (c *commandParams) rerunCommand(program string) string {
	var b commandBuilder
	b.add(program, c.testFile)
	if c.wheelDir != "" {
		b.add(c.wheelDir)
	}
	if c.strict {
		b.add("--strict")
	}
	if c.browser != "" && c.browser != browser.Chromium {
		b.add("--browser", c.browser)
	}
	return b.String()
}

type commandBuilder []string

func (b *commandBuilder) add(args ...string) {
	for _, a := range args {
		*b = append(*b, shellescape.Quote(a))
	}
}

func (b commandBuilder) String() string {
	return strings.Join(b, " ")
}
