package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/zdbackup/internal/common"
	"github.com/dmitrijs2005/zdbackup/internal/logging"
	"github.com/dmitrijs2005/zdbackup/internal/server/auth"
	"github.com/dmitrijs2005/zdbackup/internal/syncer"
)

// SyncFunc runs one full sync pass.
type SyncFunc func(ctx context.Context) (*syncer.Report, error)

// HTTPServer exposes the sync trigger. At most one pass runs at a time.
type HTTPServer struct {
	address   string
	sync      SyncFunc
	logger    logging.Logger
	jwtSecret []byte
	running   atomic.Bool
	inflight  sync.WaitGroup
}

func NewHTTPServer(addr string, l logging.Logger, run SyncFunc, secretKey string) *HTTPServer {
	if l == nil {
		l = logging.Nop()
	}
	return &HTTPServer{
		address:   addr,
		sync:      run,
		logger:    l.With("module", "http_server"),
		jwtSecret: []byte(secretKey),
	}
}

type syncResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
	RunID   string `json:"run_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Handler returns the routes of the trigger.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "running": s.running.Load()})
	})
	mux.Handle("POST /sync", s.requireToken(http.HandlerFunc(s.handleSync)))
	return mux
}

func (s *HTTPServer) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			writeJSON(w, http.StatusUnauthorized, syncResponse{Error: "missing token"})
			return
		}
		caller, err := auth.CallerFromToken(strings.TrimSpace(raw), s.jwtSecret)
		if err != nil {
			s.logger.Warn(r.Context(), "rejected trigger", "error", err)
			writeJSON(w, http.StatusUnauthorized, syncResponse{Error: err.Error()})
			return
		}
		s.logger.Debug(r.Context(), "trigger accepted", "caller", caller)
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) handleSync(w http.ResponseWriter, r *http.Request) {
	if !s.running.CompareAndSwap(false, true) {
		writeJSON(w, http.StatusConflict, syncResponse{Error: common.ErrRunInProgress.Error()})
		return
	}
	s.inflight.Add(1)
	defer s.inflight.Done()
	defer s.running.Store(false)

	// A dropped client connection does not abort a pass in progress.
	ctx := context.WithoutCancel(r.Context())

	rep, err := s.sync(ctx)
	resp := syncResponse{}
	if rep != nil {
		resp.RunID = rep.RunID
	}
	if err != nil {
		s.logger.Error(ctx, "triggered sync failed", "run_id", resp.RunID, "error", err)
		resp.Error = err.Error()
		writeJSON(w, http.StatusInternalServerError, resp)
		return
	}
	resp.OK = true
	resp.Message = "backup finished"
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts triggers on listen until ctx is cancelled. It returns only
// after a pass that was already running has finished.
func (s *HTTPServer) Serve(ctx context.Context, listen net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	<-stopped
	if s.running.Load() {
		s.logger.Info(ctx, "Waiting for the running sync to finish...")
	}
	s.inflight.Wait()
	return nil
}
