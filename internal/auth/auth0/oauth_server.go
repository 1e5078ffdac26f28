package auth0

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// CallbackPath is the path registered as the redirect URI on the authorization server.
const CallbackPath = "/callback"

// OAuthServer is the loopback listener that receives the browser redirect for one
// flow attempt. It signals at most one CallbackResult; later requests are answered
// with an "already completed" page and do not signal again.
type OAuthServer struct {
	// port is the requested port; 0 picks a free one (tests only)
	port          int
	expectedState string

	server   *http.Server
	listener net.Listener
	group    *errgroup.Group

	// resultChan carries the single validated callback
	resultChan chan CallbackResult
	// errorChan carries a serve failure after a successful bind
	errorChan chan error
	once      sync.Once

	mu      sync.Mutex
	running bool
	stopped bool
}

// NewOAuthServer creates a listener for the given port that accepts only callbacks
// carrying expectedState.
func NewOAuthServer(port int, expectedState string) *OAuthServer {
	return &OAuthServer{
		port:          port,
		expectedState: expectedState,
		resultChan:    make(chan CallbackResult, 1),
		errorChan:     make(chan error, 1),
	}
}

// Start binds 127.0.0.1:port and serves in the background. A nil return means the
// listener is already accepting connections; bind errors are returned immediately,
// ErrPortInUse when the address is taken and ErrServerStartFailed otherwise.
func (s *OAuthServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("server is already running")
	}
	if s.stopped {
		return fmt.Errorf("server cannot be restarted")
	}

	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(s.port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return NewAuthenticationError(ErrPortInUse, err)
		}
		return NewAuthenticationError(ErrServerStartFailed, err)
	}
	if tcpAddr, ok := ln.Addr().(*net.TCPAddr); ok {
		s.port = tcpAddr.Port
	}

	s.listener = ln
	s.server = &http.Server{
		Handler:           s.router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
	s.group = new(errgroup.Group)
	srv := s.server
	s.group.Go(func() error {
		if errServe := srv.Serve(ln); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			s.sendError(fmt.Errorf("callback server stopped unexpectedly: %w", errServe))
			return errServe
		}
		return nil
	})
	s.running = true

	log.WithField("port", s.port).Debug("OAuth callback server listening")
	return nil
}

// Stop shuts the server down and waits for the serve goroutine, so the port is free
// when Stop returns. Calling Stop more than once, or before Start, is a no-op.
func (s *OAuthServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	if !s.running || s.server == nil {
		return nil
	}

	log.WithField("port", s.port).Debug("Stopping OAuth callback server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := s.server.Shutdown(shutdownCtx)
	if err != nil {
		// Shutdown gave up on in-flight requests; force the connections closed.
		_ = s.server.Close()
	}
	_ = s.group.Wait()

	s.running = false
	s.server = nil
	s.listener = nil
	return err
}

// Port returns the bound port once Start has succeeded.
func (s *OAuthServer) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// Result delivers the single callback outcome.
func (s *OAuthServer) Result() <-chan CallbackResult { return s.resultChan }

// Err delivers a serve failure that happened after Start returned.
func (s *OAuthServer) Err() <-chan error { return s.errorChan }

// WaitForCallback blocks until a callback arrives, the server fails, or ctx is done.
func (s *OAuthServer) WaitForCallback(ctx context.Context) (CallbackResult, error) {
	select {
	case result := <-s.resultChan:
		return result, nil
	case err := <-s.errorChan:
		return CallbackResult{}, err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return CallbackResult{}, NewAuthenticationError(ErrCallbackTimeout, ctx.Err())
		}
		return CallbackResult{}, NewAuthenticationError(ErrFlowCancelled, ctx.Err())
	}
}

func (s *OAuthServer) router() http.Handler {
	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	engine.Use(gin.Recovery(), securityHeaders)
	engine.GET(CallbackPath, s.handleCallback)
	engine.NoMethod(func(c *gin.Context) {
		writePage(c, http.StatusMethodNotAllowed, methodNotAllowedPage())
	})
	return engine
}

// handleCallback validates the redirect and hands the outcome to the waiting flow.
func (s *OAuthServer) handleCallback(c *gin.Context) {
	var (
		result    CallbackResult
		delivered bool
	)
	s.once.Do(func() {
		result = ValidateCallback(s.expectedState, c.Request.URL.Query())
		s.resultChan <- result
		delivered = true
	})

	if !delivered {
		log.WithField("port", s.port).Debug("Ignoring repeated OAuth callback")
		writePage(c, http.StatusConflict, alreadyCompletedPage())
		return
	}

	if !result.OK() {
		log.WithField("kind", result.Err.Kind.String()).Warn("OAuth callback rejected")
		writePage(c, http.StatusBadRequest, failurePage(result.Err))
		return
	}

	log.Debug("OAuth callback received")
	writePage(c, http.StatusOK, successPage())
}

// sendError records a serve failure without blocking.
func (s *OAuthServer) sendError(err error) {
	select {
	case s.errorChan <- err:
	default:
		log.Debugf("Dropping callback server error: %v", err)
	}
}

func securityHeaders(c *gin.Context) {
	h := c.Writer.Header()
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-Frame-Options", "DENY")
	h.Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'")
	h.Set("Referrer-Policy", "no-referrer")
	h.Set("Cache-Control", "no-store")
	c.Next()
}

func writePage(c *gin.Context, status int, data pageData) {
	body, err := renderPage(data)
	if err != nil {
		log.Errorf("failed to render callback page: %v", err)
		c.String(http.StatusInternalServerError, data.Heading)
		return
	}
	c.Data(status, "text/html; charset=utf-8", body)
}
