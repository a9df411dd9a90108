package orderserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"time"
)

// Server is a minimal order endpoint implementing the harness contract:
// POST /orders/{id} answers 200 with {"message": <Message>}.
type Server struct {
	config *ServerConfig
	logger *log.Logger
}

// NewServer creates a server after validating config.
func NewServer(config *ServerConfig, logger *log.Logger) (*Server, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Server{config: config, logger: logger}, nil
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /orders/{id}", s.handleOrder)
	return mux
}

func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var payload map[string]interface{}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			s.logger.Printf("order %s: invalid body: %v", id, err)
			s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}
	}

	s.logger.Printf("order %s received (%d fields)", id, len(payload))
	s.writeJSON(w, http.StatusOK, map[string]string{"message": s.config.Message})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Printf("failed to write response: %v", err)
	}
}

// Listen waits out the configured startup delay and binds the address.
func (s *Server) Listen(ctx context.Context) (net.Listener, error) {
	if s.config.StartupDelay > 0 {
		s.logger.Printf("delaying startup by %v", s.config.StartupDelay)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.config.StartupDelay):
		}
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.config.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	return ln, nil
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Printf("listening on %s", ln.Addr())
		errCh <- httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Printf("shutting down")
		return httpServer.Shutdown(shutdownCtx)
	}
}

// Start listens and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := s.Listen(ctx)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// RunFromEnv loads configuration from the environment and serves until ctx
// is cancelled. Output goes to stderr.
func RunFromEnv(ctx context.Context) error {
	srv, err := NewServer(LoadConfig(), log.New(os.Stderr, "orderserver: ", log.LstdFlags))
	if err != nil {
		return err
	}
	return srv.Start(ctx)
}
