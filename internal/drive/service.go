package drive

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const DefaultProbeInterval = 10 * time.Second

type Config struct {
	DBPath        string        `mapstructure:"db_path" validate:"required"`
	Probe         bool          `mapstructure:"probe"`
	ProbeInterval time.Duration `mapstructure:"probe_interval" validate:"gte=0"`
	Static        []Drive       `mapstructure:"static" validate:"dive"`
}

// Service keeps the registry current: it seeds it from configuration or the
// store, accepts out-of-band replacements and optionally polls partitions.
type Service struct {
	cfg      *Config
	registry *Registry
	store    *Store
	prober   *Prober
}

func NewService(cfg *Config, store *Store) *Service {
	s := &Service{
		cfg:      cfg,
		registry: NewRegistry(),
		store:    store,
	}
	if cfg.Probe {
		s.prober = NewProber()
	}
	return s
}

func (s *Service) Registry() *Registry {
	return s.registry
}

// Init loads the initial snapshot. Static drives win over the stored ones.
func (s *Service) Init(ctx context.Context) error {
	if len(s.cfg.Static) > 0 {
		return s.Replace(ctx, s.cfg.Static)
	}
	drives, err := s.store.Load(ctx)
	if err != nil {
		return err
	}
	if err := s.registry.Replace(drives); err != nil {
		return fmt.Errorf("stored snapshot: %w", err)
	}
	return nil
}

// Replace installs and persists a new snapshot.
func (s *Service) Replace(ctx context.Context, drives []Drive) error {
	if err := s.registry.Replace(drives); err != nil {
		return err
	}
	if err := s.store.Save(ctx, drives); err != nil {
		return fmt.Errorf("persist snapshot: %w", err)
	}
	return nil
}

// Run probes partitions until ctx is done, on every tick and on every udev
// by-uuid change. It returns immediately when probing is disabled.
func (s *Service) Run(ctx context.Context) error {
	if s.prober == nil {
		return nil
	}
	interval := s.cfg.ProbeInterval
	if interval <= 0 {
		interval = DefaultProbeInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	events, stop := s.prober.watch()
	defer stop()

	for {
		s.refresh(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case ev := <-events:
			slog.Debug("drive change", "path", ev.Path(), "event", ev.Event())
		}
	}
}

func (s *Service) refresh(ctx context.Context) {
	drives, err := s.prober.Probe(ctx)
	if err != nil {
		slog.Warn("drive probe failed", "error", err)
		return
	}
	if s.registry.Equal(drives) {
		return
	}
	if err := s.Replace(ctx, drives); err != nil {
		slog.Error("drive snapshot update failed", "error", err)
	}
}
