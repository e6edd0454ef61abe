// Package api serves the local control API of the daemon.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/genricoloni/tilesync/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Controller is the part of the engine the API drives
type Controller interface {
	QueryPinned(ctx context.Context) (bool, error)
	QueryCanPin(ctx context.Context) (bool, error)
	RequestPin(ctx context.Context) (bool, error)
	OnStatusChanged()
	Clear(ctx context.Context) error
}

// DesignStore reads and persists the selected tile design
type DesignStore interface {
	CurrentDesign() domain.Design
	SetDesign(d domain.Design) error
}

// Server is the HTTP control API
type Server struct {
	logger  *zap.Logger
	addr    string
	ctrl    Controller
	designs DesignStore
	router  *chi.Mux
	srv     *http.Server
}

// NewServer creates the control API listening on addr. An empty addr disables it.
func NewServer(logger *zap.Logger, addr string, ctrl Controller, designs DesignStore) *Server {
	s := &Server{
		logger:  logger,
		addr:    addr,
		ctrl:    ctrl,
		designs: designs,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/pin", s.handleGetPin)
		r.Post("/pin", s.handleRequestPin)
		r.Get("/pin/supported", s.handleCanPin)

		r.Post("/tile/refresh", s.handleRefresh)
		r.Delete("/tile", s.handleClear)

		r.Get("/design", s.handleGetDesign)
		r.Put("/design", s.handleSetDesign)
	})

	s.router = r
	return s
}

// Handler returns the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins serving in the background
func (s *Server) Start(ctx context.Context) error {
	if s.addr == "" {
		s.logger.Info("Control API disabled")
		return nil
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return err
	}

	s.srv = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Control API stopped", zap.Error(err))
		}
	}()

	s.logger.Info("Control API listening", zap.String("addr", ln.Addr().String()))
	return nil
}

// Stop shuts the server down, waiting for requests in flight
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		s.logger.Debug("Request served",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("requestID", middleware.GetReqID(r.Context())))
	})
}

func (s *Server) handleGetPin(w http.ResponseWriter, r *http.Request) {
	pinned, err := s.ctrl.QueryPinned(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"pinned": pinned})
}

func (s *Server) handleCanPin(w http.ResponseWriter, r *http.Request) {
	supported, err := s.ctrl.QueryCanPin(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"supported": supported})
}

func (s *Server) handleRequestPin(w http.ResponseWriter, r *http.Request) {
	pinned, err := s.ctrl.RequestPin(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"pinned": pinned})
}

func (s *Server) handleRefresh(w http.ResponseWriter, _ *http.Request) {
	s.ctrl.OnStatusChanged()
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Clear(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetDesign(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"design": s.designs.CurrentDesign().String()})
}

func (s *Server) handleSetDesign(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Design string `json:"design"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	d, err := domain.ParseDesign(req.Design)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.designs.SetDesign(d); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.logger.Info("Design changed", zap.String("design", d.String()))
	s.ctrl.OnStatusChanged()
	writeJSON(w, http.StatusOK, map[string]string{"design": d.String()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
