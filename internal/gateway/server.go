package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/j-veylop/gateway-usage-tui/internal/logger"
)

// maxRequestBody bounds the JSON argument payload of a query.
const maxRequestBody = 1 << 20

// Server exposes a Client over the gateway's HTTP query endpoints. It stands in for
// the gateway during development and offline previews.
type Server struct {
	client     Client
	httpServer *http.Server
}

// NewServer creates a query server on addr answering from client.
func NewServer(addr string, client Client) *Server {
	s := &Server{client: client}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Router returns the chi router with every query route mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/v1/usage", func(v1 chi.Router) {
		v1.Post("/requests", s.handleEntries)
		v1.Post("/summary", s.handleSummary)
		v1.Post("/daily", s.handleDaily)
	})
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("query server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("query server: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down query server: %w", err)
	}
	return <-errCh
}

func (s *Server) handleEntries(w http.ResponseWriter, r *http.Request) {
	var args EntriesArgs
	if !decodeArgs(w, r, &args) {
		return
	}
	page, err := s.client.UsageRequestEntries(r.Context(), args)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	var args SummaryArgs
	if !decodeArgs(w, r, &args) {
		return
	}
	summary, err := s.client.UsageRequestSummary(r.Context(), args)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleDaily(w http.ResponseWriter, r *http.Request) {
	var args DailyArgs
	if !decodeArgs(w, r, &args) {
		return
	}
	totals, err := s.client.UsageRequestDailyTotals(r.Context(), args)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

func decodeArgs(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	// Legacy argument names must fail loudly rather than be ignored.
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": err.Error()})
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, err error) {
	logger.Warn("query failed", "error", err)
	writeJSON(w, http.StatusBadGateway, map[string]any{"ok": false, "error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
