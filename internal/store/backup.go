package store

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// BackupConfig controls the periodic sqlite file backup.
type BackupConfig struct {
	Enabled       bool
	Interval      time.Duration
	Dir           string
	RetentionDays int
}

// Backupper periodically copies the sqlite database file aside and prunes
// copies older than the retention window.
type Backupper struct {
	dbPath string
	cfg    BackupConfig
	logger zerolog.Logger
	now    func() time.Time
}

func NewBackupper(dbPath string, cfg BackupConfig, logger zerolog.Logger) *Backupper {
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}
	return &Backupper{dbPath: dbPath, cfg: cfg, logger: logger, now: time.Now}
}

// Run blocks until ctx is cancelled. The first backup happens immediately.
func (b *Backupper) Run(ctx context.Context) {
	if !b.cfg.Enabled {
		b.logger.Info().Msg("database backup disabled")
		return
	}
	b.logger.Info().Dur("interval", b.cfg.Interval).Str("dir", b.cfg.Dir).Msg("database backup started")

	ticker := time.NewTicker(b.cfg.Interval)
	defer ticker.Stop()

	if err := b.Backup(); err != nil {
		b.logger.Error().Err(err).Msg("initial backup failed")
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := b.Backup(); err != nil {
				b.logger.Error().Err(err).Msg("scheduled backup failed")
			}
			b.pruneOld()
		}
	}
}

// Backup copies the database file into the backup directory with a timestamped
// name.
func (b *Backupper) Backup() error {
	if err := os.MkdirAll(b.cfg.Dir, 0o755); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}

	name := fmt.Sprintf("salonbook_%s.db", b.now().Format("20060102_150405"))
	dst := filepath.Join(b.cfg.Dir, name)

	source, err := os.Open(b.dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer source.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create backup file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, source); err != nil {
		return fmt.Errorf("copy database: %w", err)
	}

	b.logger.Info().Str("path", dst).Msg("backup written")
	return nil
}

func (b *Backupper) pruneOld() {
	if b.cfg.RetentionDays <= 0 {
		return
	}
	entries, err := os.ReadDir(b.cfg.Dir)
	if err != nil {
		b.logger.Error().Err(err).Msg("read backup dir for pruning")
		return
	}

	cutoff := b.now().AddDate(0, 0, -b.cfg.RetentionDays)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			b.logger.Info().Str("file", entry.Name()).Msg("pruning old backup")
			_ = os.Remove(filepath.Join(b.cfg.Dir, entry.Name()))
		}
	}
}
