// Package server levanta el http.Server con apagado ordenado.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/credengine/internal/observability/logger"
)

// Config del servidor.
type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration // ReadHeader/Read/Write
}

// Server envuelve http.Server.
type Server struct {
	cfg Config
	srv *http.Server
}

// New crea el servidor. El handler se envuelve con http.TimeoutHandler si hay
// RequestTimeout.
func New(cfg Config, h http.Handler) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 15 * time.Second
	}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	if cfg.RequestTimeout > 0 {
		srv.ReadTimeout = cfg.RequestTimeout
		srv.WriteTimeout = cfg.RequestTimeout + time.Second
		srv.Handler = http.TimeoutHandler(h, cfg.RequestTimeout, `{"code":"TIMEOUT","message":"request timed out"}`)
	}
	return &Server{cfg: cfg, srv: srv}
}

// Run sirve hasta que ctx se cancela y luego apaga ordenadamente.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve es Run sobre un listener ya abierto (tests).
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	log := logger.L().With(logger.Component("http.server"))
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("http server listening", logger.String("addr", ln.Addr().String()))
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		log.Info("http server shutting down")
		return s.srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
