package browser

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// consoleForwarder relays error-level console messages from the page. Playwright calls
// it from its own goroutine, so writes are serialized.
type consoleForwarder struct {
	out    io.Writer
	prefix string
	lock   sync.Mutex
}

func newConsoleForwarder(out io.Writer) *consoleForwarder {
	return &consoleForwarder{
		out:    out,
		prefix: color.New(color.FgRed).Sprint(ConsoleErrorPrefix),
	}
}

func (c *consoleForwarder) forward(msgType, text string) bool {
	if msgType != "error" {
		return false
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		fmt.Fprintf(c.out, "%s %s\n", c.prefix, line)
	}
	return true
}
