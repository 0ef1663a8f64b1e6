// Package assets maps request paths onto the two directories a test page needs: the
// directory holding the page itself, and the directory holding the build artifacts it
// loads.
package assets

import (
	"errors"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/polars-pyodide/pagetest-runner/framework"
)

// WheelPrefix is the URL prefix under which the artifact directory is served.
const WheelPrefix = "/wasm-dist/"

// DefaultWheelDir is used when no artifact directory is given.
const DefaultWheelDir = "wasm-dist"

const defaultContentType = "application/octet-stream"

var errIsDirectory = errors.New("is a directory")

var contentTypes = map[string]string{
	".html": "text/html",
	".js":   "application/javascript",
	".mjs":  "application/javascript",
	".json": "application/json",
	".css":  "text/css",
	".wasm": "application/wasm",
	".whl":  "application/zip",
	".zip":  "application/zip",
	".tar":  "application/x-tar",
	".py":   "text/plain",
}

// ContentType returns the MIME type for a file name based on its extension.
func ContentType(name string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return ct
	}
	return defaultContentType
}

// Route is one rule of the routing table.
type Route struct {
	Prefix string
	Root   string
}

// Resolution says where a request path was routed.
type Resolution struct {
	Route    Route
	Relative string // slash-separated, relative to Route.Root
	File     string // absolute path on disk
}

// Resolver holds the two routes. The artifact route is always checked first, so a path
// can only ever resolve under one root.
type Resolver struct {
	routes []Route
	logger framework.Logger
}

// NewResolver creates a Resolver serving htmlDir at the site root and wheelDir under
// WheelPrefix. Both directories are made absolute.
func NewResolver(htmlDir, wheelDir string, logger framework.Logger) (*Resolver, error) {
	if logger == nil {
		logger = framework.NullLogger()
	}
	absHTML, err := filepath.Abs(htmlDir)
	if err != nil {
		return nil, err
	}
	absWheel, err := filepath.Abs(wheelDir)
	if err != nil {
		return nil, err
	}
	return &Resolver{
		routes: []Route{
			{Prefix: WheelPrefix, Root: absWheel},
			{Prefix: "/", Root: absHTML},
		},
		logger: logger,
	}, nil
}

// Routes returns the routing table in priority order.
func (r *Resolver) Routes() []Route {
	return append([]Route(nil), r.routes...)
}

// Resolve maps a URL path to a file. Dot segments are cleaned against the route's root,
// so the result never escapes it.
func (r *Resolver) Resolve(urlPath string) Resolution {
	for _, route := range r.routes {
		if rest, ok := strings.CutPrefix(urlPath, route.Prefix); ok {
			rel := strings.TrimPrefix(path.Clean("/"+rest), "/")
			return Resolution{
				Route:    route,
				Relative: rel,
				File:     filepath.Join(route.Root, filepath.FromSlash(rel)),
			}
		}
	}
	// Paths without a leading slash do not come from net/http, but treat them like the
	// site root anyway.
	fallback := r.routes[len(r.routes)-1]
	rel := strings.TrimPrefix(path.Clean("/"+urlPath), "/")
	return Resolution{
		Route:    fallback,
		Relative: rel,
		File:     filepath.Join(fallback.Root, filepath.FromSlash(rel)),
	}
}

// ServeHTTP serves the whole file for any resolvable path. Every read error, including
// the path being a directory, becomes a 404 naming the attempted file.
func (r *Resolver) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	res := r.Resolve(req.URL.Path)
	data, err := readRegularFile(res.File)
	if err != nil {
		r.logger.Printf("Not found: %s (%s)", req.URL.Path, err)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("Not found: " + res.File))
		return
	}
	w.Header().Set("Content-Type", ContentType(res.File))
	w.WriteHeader(http.StatusOK)
	if req.Method != http.MethodHead {
		_, _ = w.Write(data)
	}
}

func readRegularFile(name string) ([]byte, error) {
	info, err := os.Stat(name)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, &os.PathError{Op: "read", Path: name, Err: errIsDirectory}
	}
	return os.ReadFile(name)
}
