package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/wisnuc/appifi/internal/db"
	"github.com/wisnuc/appifi/internal/drive"
	"github.com/wisnuc/appifi/internal/nfs"
	"github.com/wisnuc/appifi/internal/server/accesslog"
	"github.com/wisnuc/appifi/internal/server/auth"
)

type Services struct {
	Drives    *drive.Service
	NFS       *nfs.Service
	Auth      *auth.AuthService
	AccessLog *accesslog.AccessLogger

	store *drive.Store
}

func NewServices(config *Config) (*Services, error) {
	conn, err := db.NewSqliteDB(db.WithPath(config.Drives.DBPath))
	if err != nil {
		return nil, fmt.Errorf("open drive db: %w", err)
	}

	store, err := drive.NewStore(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}

	driveSvc := drive.NewService(&config.Drives, store)

	nfsSvc, err := nfs.NewService(driveSvc.Registry(), config.NFS)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("create nfs service: %w", err)
	}

	accessLogger, err := accesslog.New(filepath.Join(config.LogDir, "access"), slog.Default())
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("create access logger: %w", err)
	}

	return &Services{
		Drives:    driveSvc,
		NFS:       nfsSvc,
		Auth:      auth.NewAuthService(&config.Auth),
		AccessLog: accessLogger,
		store:     store,
	}, nil
}

// Start seeds the drive registry. The probe loop is run by the server.
func (s *Services) Start(ctx context.Context) error {
	if err := s.Drives.Init(ctx); err != nil {
		return fmt.Errorf("start drive service: %w", err)
	}
	return nil
}

func (s *Services) Shutdown(ctx context.Context) error {
	var errs []error
	if err := s.AccessLog.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close access logger: %w", err))
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close drive store: %w", err))
	}
	return errors.Join(errs...)
}
