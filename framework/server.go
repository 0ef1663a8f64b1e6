package framework

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"
)

const (
	loopbackHost        = "127.0.0.1"
	readinessProbePath  = "/.pagetest/ready"
	httpListenerTimeout = time.Second * 10
)

// Server is an HTTP listener on a kernel-assigned loopback port. Its port is bound by the
// time StartServer returns, so nothing that is sequenced after StartServer can race it.
type Server struct {
	server   *http.Server
	listener net.Listener
	port     int
	logger   Logger
	done     chan struct{}
	closing  sync.Once
}

// StartServer binds a free port on the loopback interface and starts serving handler on
// it. It does not return until the listener has answered a readiness probe.
func StartServer(handler http.Handler, logger Logger) (*Server, error) {
	if logger == nil {
		logger = NullLogger()
	}
	listener, err := net.Listen("tcp", net.JoinHostPort(loopbackHost, "0"))
	if err != nil {
		return nil, fmt.Errorf("could not bind loopback listener: %w", err)
	}
	s := &Server{
		listener: listener,
		port:     listener.Addr().(*net.TCPAddr).Port,
		logger:   logger,
		done:     make(chan struct{}),
	}
	s.server = &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodHead && r.URL.Path == readinessProbePath {
				w.WriteHeader(http.StatusOK)
				return
			}
			handler.ServeHTTP(w, r)
		}),
		ReadHeaderTimeout: httpListenerTimeout,
	}
	go func() {
		defer close(s.done)
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("HTTP server stopped unexpectedly: %s", err)
		}
	}()

	if err := s.awaitReady(); err != nil {
		s.Stop()
		return nil, err
	}
	logger.Printf("Listening on %s", s.BaseURL())
	return s, nil
}

func (s *Server) awaitReady() error {
	client := &http.Client{Timeout: time.Second}
	deadline := time.NewTimer(httpListenerTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(time.Millisecond * 10)
	defer ticker.Stop()
	for {
		select {
		case <-deadline.C:
			return fmt.Errorf("could not detect own listener at %s", s.BaseURL())
		case <-s.done:
			return fmt.Errorf("listener at %s closed before it became ready", s.BaseURL())
		case <-ticker.C:
			resp, err := client.Head(s.BaseURL() + readinessProbePath)
			if err == nil {
				resp.Body.Close()
				if resp.StatusCode == http.StatusOK {
					return nil
				}
			}
		}
	}
}

// Port returns the port the server is bound to.
func (s *Server) Port() int {
	if s == nil {
		return 0
	}
	return s.port
}

// BaseURL returns the server's root URL without a trailing slash.
func (s *Server) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", loopbackHost, s.Port())
}

// URL returns the absolute URL for a server-relative path.
func (s *Server) URL(path string) string {
	if len(path) == 0 || path[0] != '/' {
		path = "/" + path
	}
	return s.BaseURL() + path
}

// Stop closes the listener and every open connection, releasing the port. It is safe to
// call on a nil Server and safe to call more than once.
func (s *Server) Stop() {
	if s == nil {
		return
	}
	s.closing.Do(func() {
		if s.server != nil {
			_ = s.server.Close()
		} else if s.listener != nil {
			_ = s.listener.Close()
		}
		if s.done != nil {
			<-s.done
		}
		s.logger.Printf("Stopped listener on port %d", s.port)
	})
}
