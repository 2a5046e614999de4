// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package uploads

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweep defaults: uploads outlive their last modification by a day, and
// the janitor wakes every ten minutes.
const (
	DefaultRetention     = 24 * time.Hour
	DefaultSweepSchedule = "*/10 * * * *"
)

// SessionSweeper expires stale vision sessions during a sweep and reports
// how many it removed.
type SessionSweeper interface {
	SweepExpired(now time.Time) int
}

// JanitorConfig configures the retention sweep.
type JanitorConfig struct {
	// UploadsDir is the directory holding stored uploads.
	UploadsDir string
	// Retention is how long an upload survives past its last modification.
	// Zero means DefaultRetention.
	Retention time.Duration
	// Schedule is a standard 5-field cron expression. Empty means
	// DefaultSweepSchedule.
	Schedule string
	// Sweepers run on every sweep to expire their own state.
	Sweepers []SessionSweeper
	Logger   *zap.Logger
}

// Janitor deletes uploads past retention and expires vision sessions on a
// cron schedule.
type Janitor struct {
	dir       string
	retention time.Duration
	schedule  string
	sweepers  []SessionSweeper
	logger    *zap.Logger

	cronEngine *cron.Cron

	mu      sync.Mutex
	started bool
}

// SweepResult reports what one sweep removed.
type SweepResult struct {
	FilesRemoved    int
	SessionsExpired int
}

// NewJanitor validates the configuration and returns a stopped Janitor.
func NewJanitor(cfg JanitorConfig) (*Janitor, error) {
	if cfg.UploadsDir == "" {
		return nil, fmt.Errorf("uploads dir is required")
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSweepSchedule
	}
	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule: %w", err)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	j := &Janitor{
		dir:        cfg.UploadsDir,
		retention:  cfg.Retention,
		schedule:   cfg.Schedule,
		sweepers:   cfg.Sweepers,
		logger:     cfg.Logger,
		cronEngine: cron.New(),
	}
	if _, err := j.cronEngine.AddFunc(j.schedule, func() {
		if _, err := j.Sweep(context.Background()); err != nil {
			j.logger.Error("Upload sweep failed", zap.Error(err))
		}
	}); err != nil {
		return nil, fmt.Errorf("failed to schedule sweep: %w", err)
	}
	return j, nil
}

// Start begins the scheduled sweeps.
func (j *Janitor) Start() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.started {
		return fmt.Errorf("janitor already started")
	}

	j.cronEngine.Start()
	j.started = true
	j.logger.Info("Upload janitor started",
		zap.String("schedule", j.schedule),
		zap.Duration("retention", j.retention))
	return nil
}

// Stop halts scheduling and waits for an in-flight sweep to finish or the
// context to expire.
func (j *Janitor) Stop(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.started {
		return nil
	}

	cronCtx := j.cronEngine.Stop()
	select {
	case <-cronCtx.Done():
	case <-ctx.Done():
		j.logger.Warn("Janitor shutdown timeout, sweep may still be running")
	}
	j.started = false
	return nil
}

// Sweep expires vision sessions and removes uploads whose last modification
// is older than the retention window, along with sidecars whose image is
// gone. A missing uploads directory only runs the session sweepers.
func (j *Janitor) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	now := time.Now()

	for _, s := range j.sweepers {
		res.SessionsExpired += s.SweepExpired(now)
	}

	entries, err := os.ReadDir(j.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return res, nil
		}
		return res, fmt.Errorf("failed to scan uploads: %w", err)
	}

	cutoff := now.Add(-j.retention)
	kept := make(map[string]bool)
	var sidecars []string

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, sidecarSuffix) {
			sidecars = append(sidecars, name)
			continue
		}

		info, err := entry.Info()
		if err != nil {
			kept[name] = true
			continue
		}
		if info.ModTime().After(cutoff) {
			kept[name] = true
			continue
		}
		if err := os.Remove(filepath.Join(j.dir, name)); err != nil {
			j.logger.Warn("Failed to remove stale upload",
				zap.String("file", name), zap.Error(err))
			kept[name] = true
			continue
		}
		res.FilesRemoved++
	}

	// A sidecar lives exactly as long as its image, regardless of when the
	// last question was pinned to it.
	for _, name := range sidecars {
		if kept[strings.TrimSuffix(name, sidecarSuffix)] {
			continue
		}
		if err := os.Remove(filepath.Join(j.dir, name)); err != nil {
			j.logger.Warn("Failed to remove orphaned sidecar",
				zap.String("file", name), zap.Error(err))
			continue
		}
		res.FilesRemoved++
	}

	if res.FilesRemoved > 0 || res.SessionsExpired > 0 {
		j.logger.Info("Sweep completed",
			zap.Int("files_removed", res.FilesRemoved),
			zap.Int("sessions_expired", res.SessionsExpired))
	}
	return res, nil
}
