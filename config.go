package main

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/polars-pyodide/pagetest-runner/assets"
	"github.com/polars-pyodide/pagetest-runner/browser"
)

// Environment variables that supply defaults for command-line flags.
const (
	envWheelDir = "PAGETEST_WHEEL_DIR"
	envBrowser  = "PAGETEST_BROWSER"
	envHeadless = "PAGETEST_HEADLESS"
	envInstall  = "PAGETEST_INSTALL"
)

type config struct {
	wheelDir string
	browser  string
	headless bool
	install  bool
}

func defaultConfig() config {
	return config{
		wheelDir: assets.DefaultWheelDir,
		browser:  browser.Chromium,
		headless: true,
	}
}

// loadDotEnv reads .env from the working directory if there is one. Variables already set
// in the environment take precedence.
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// loadConfig applies environment overrides to the defaults. Unparseable booleans are
// ignored.
func loadConfig(lookup func(string) (string, bool)) config {
	cfg := defaultConfig()
	if v, ok := lookup(envWheelDir); ok && strings.TrimSpace(v) != "" {
		cfg.wheelDir = v
	}
	if v, ok := lookup(envBrowser); ok && strings.TrimSpace(v) != "" {
		cfg.browser = strings.TrimSpace(v)
	}
	if v, ok := lookup(envHeadless); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.headless = b
		}
	}
	if v, ok := lookup(envInstall); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.install = b
		}
	}
	return cfg
}

func environmentConfig() config {
	return loadConfig(os.LookupEnv)
}
