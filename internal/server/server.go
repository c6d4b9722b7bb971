package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/wisnuc/appifi/internal/db"
	"github.com/wisnuc/appifi/internal/utils"
	"github.com/wisnuc/appifi/internal/version"
	"golang.org/x/sync/errgroup"
)

const (
	lockFile        = "appifi.lock"
	shutdownTimeout = 5 * time.Second
)

var ErrServerLocked = errors.New("another appifi server owns the state directory")

type Server struct {
	config *Config
	server *http.Server
	svc    *Services
	flock  *flock.Flock
}

func New(config *Config) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	s := &Server{config: config}
	if config.Drives.DBPath != db.MemoryPath {
		s.flock = flock.New(filepath.Join(filepath.Dir(config.Drives.DBPath), lockFile))
	}
	if err := s.lock(); err != nil {
		return nil, err
	}

	svc, err := NewServices(config)
	if err != nil {
		s.unlock()
		return nil, err
	}

	handler, err := SetupRoutes(config, svc)
	if err != nil {
		svc.Shutdown(context.Background())
		s.unlock()
		return nil, err
	}

	s.svc = svc
	s.server = &http.Server{
		Addr:              config.HTTP.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	slog.Info("appifi server start", "version", version.Short(), "config", s.config)
	defer slog.Info("appifi server stop")

	if err := s.svc.Start(ctx); err != nil {
		s.shutdown(context.WithoutCancel(ctx))
		return err
	}

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		return s.svc.Drives.Run(egCtx)
	})

	eg.Go(func() error {
		if err := s.runHttpServer(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egCtx.Done()
		slog.Info("appifi shutdown signal")
		return s.shutdown(context.WithoutCancel(ctx))
	})

	return eg.Wait()
}

func (s *Server) shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	var errs []error
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := s.svc.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	if err := s.unlock(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Server) runHttpServer() error {
	if s.config.HTTP.TLS() {
		slog.Info("server start https", "addr", s.config.HTTP.Addr, "cert", s.config.HTTP.CertFile, "key", s.config.HTTP.KeyFile)
		return s.server.ListenAndServeTLS(s.config.HTTP.CertFile, s.config.HTTP.KeyFile)
	}
	slog.Info("server start http", "addr", s.config.HTTP.Addr)
	return s.server.ListenAndServe()
}

func (s *Server) lock() error {
	if s.flock == nil {
		return nil
	}
	if err := utils.EnsureParent(s.flock.Path()); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	locked, err := s.flock.TryLock()
	if err != nil {
		return fmt.Errorf("lock state directory: %w", err)
	}
	if !locked {
		return ErrServerLocked
	}
	return nil
}

func (s *Server) unlock() error {
	if s.flock == nil || !s.flock.Locked() {
		return nil
	}
	if err := s.flock.Unlock(); err != nil {
		return fmt.Errorf("unlock state directory: %w", err)
	}
	return os.Remove(s.flock.Path())
}
