package worker

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// CleanupLockName serialises upload cleanup across instances
const CleanupLockName = "cleanup:uploads"

// Sweeper periodically deletes uploaded files older than the retention period.
// For multi-instance deployments configure a DistributedLock so only one
// instance sweeps a shared upload directory per cycle.
type Sweeper struct {
	dir       string
	retention time.Duration
	interval  time.Duration
	lock      driven.DistributedLock
	lockTTL   time.Duration
	logger    *slog.Logger
	now       func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// SweeperConfig holds configuration for the sweeper.
type SweeperConfig struct {
	Dir       string
	Retention time.Duration          // Default: 1h
	Interval  time.Duration          // Default: 10m
	Lock      driven.DistributedLock // Optional
	LockTTL   time.Duration          // Default: Interval
	Logger    *slog.Logger
}

// SweepResult summarises one cleanup pass
type SweepResult struct {
	Removed int
	Failed  int
	Skipped bool // Another instance held the lock
}

// NewSweeper creates a new upload sweeper.
func NewSweeper(cfg SweeperConfig) *Sweeper {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	retention := cfg.Retention
	if retention <= 0 {
		retention = time.Hour
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = interval
	}
	return &Sweeper{
		dir:       cfg.Dir,
		retention: retention,
		interval:  interval,
		lock:      cfg.Lock,
		lockTTL:   lockTTL,
		logger:    logger,
		now:       time.Now,
	}
}

// Start begins the sweep loop in the background.
// It runs until Stop is called or ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	s.logger.Info("upload sweeper starting", "dir", s.dir, "interval", s.interval, "retention", s.retention)
	go s.run(ctx, s.stopCh, s.doneCh)
}

// Stop stops the loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	done := s.doneCh
	s.mu.Unlock()

	<-done

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	s.logger.Info("upload sweeper stopped")
}

func (s *Sweeper) run(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Error("upload sweep failed", "error", err)
			}
		}
	}
}

// Sweep runs one cleanup pass, removing regular files in the upload
// directory whose modification time is older than the retention period.
// Subdirectories are left alone.
func (s *Sweeper) Sweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult

	if s.lock != nil {
		acquired, err := s.lock.Acquire(ctx, CleanupLockName, s.lockTTL)
		if err != nil {
			return result, fmt.Errorf("acquire cleanup lock: %w", err)
		}
		if !acquired {
			s.logger.Debug("cleanup lock held by another instance, skipping sweep")
			result.Skipped = true
			return result, nil
		}
		defer func() {
			if err := s.lock.Release(context.WithoutCancel(ctx), CleanupLockName); err != nil {
				s.logger.Warn("failed to release cleanup lock", "error", err)
			}
		}()
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return result, nil
		}
		return result, fmt.Errorf("read upload dir: %w", err)
	}

	cutoff := s.now().Add(-s.retention)
	for _, entry := range entries {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue // removed concurrently
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		path := filepath.Join(s.dir, entry.Name())
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("failed to remove expired upload", "path", path, "error", err)
			result.Failed++
			continue
		}
		result.Removed++
	}

	if result.Removed > 0 || result.Failed > 0 {
		s.logger.Info("upload sweep completed", "removed", result.Removed, "failed", result.Failed)
	}
	return result, nil
}
