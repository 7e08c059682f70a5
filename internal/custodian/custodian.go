// Package custodian enforces retention and storage quota over completed
// recordings: a periodic sweep deletes outputs past their retention age,
// then deletes the oldest outputs until total usage fits under the cap.
package custodian

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/recordarr/recordarr/internal/models"
	"github.com/recordarr/recordarr/pkg/bytesize"
)

const (
	// sweepSchedule is the steady-state sweep cadence.
	sweepSchedule = "@every 3h"
	// initialSweepDelay is the delay before the first sweep after Start.
	initialSweepDelay = 5 * time.Second
	// completionSweepDelay is the delay before the extra sweep that follows
	// a successful recording completion.
	completionSweepDelay = time.Second
)

// RecordingStore is the slice of the persistence layer the custodian needs.
type RecordingStore interface {
	List() []*models.Recording
	Delete(id models.ULID) error
}

// SettingsProvider yields the current settings snapshot.
type SettingsProvider interface {
	Get() models.Settings
}

// Result reports what one sweep did.
type Result struct {
	DeletedOld       int     `json:"deletedOld"`
	DeletedForSpace  int     `json:"deletedForSpace"`
	CurrentStorageGB float64 `json:"currentStorageGb"`
}

// Custodian owns the sweep schedule. Sweeps are serialized; triggering one
// while another runs blocks until the first finishes.
type Custodian struct {
	store    RecordingStore
	settings SettingsProvider
	logger   *slog.Logger

	sweepMu sync.Mutex

	mu      sync.Mutex
	cron    *cron.Cron
	timers  []*time.Timer
	started bool
}

// New creates a custodian.
func New(store RecordingStore, settings SettingsProvider) *Custodian {
	return &Custodian{
		store:    store,
		settings: settings,
		logger:   slog.Default(),
	}
}

// WithLogger sets a custom logger.
func (c *Custodian) WithLogger(logger *slog.Logger) *Custodian {
	c.logger = logger
	return c
}

// Start arms the periodic schedule and an initial sweep shortly after boot.
func (c *Custodian) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}
	c.cron = cron.New()
	if _, err := c.cron.AddFunc(sweepSchedule, func() { c.Sweep() }); err != nil {
		return err
	}
	c.cron.Start()
	c.timers = append(c.timers, time.AfterFunc(initialSweepDelay, func() { c.Sweep() }))
	c.started = true
	return nil
}

// Stop halts the schedule. A sweep already running completes.
func (c *Custodian) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return
	}
	c.cron.Stop()
	for _, t := range c.timers {
		t.Stop()
	}
	c.timers = nil
	c.started = false
}

// NotifyCompleted schedules an extra sweep shortly after a recording
// completes, so quota pressure from the new file is relieved promptly.
func (c *Custodian) NotifyCompleted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return
	}
	c.timers = append(c.timers, time.AfterFunc(completionSweepDelay, func() { c.Sweep() }))
}

// Sweep runs one retention-then-quota pass. It is idempotent when no files
// have changed and safe to trigger on demand.
func (c *Custodian) Sweep() Result {
	c.sweepMu.Lock()
	defer c.sweepMu.Unlock()

	settings := c.settings.Get()
	var result Result

	if settings.AutoDeleteAfterDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -settings.AutoDeleteAfterDays)
		for _, rec := range c.successfulRecordings() {
			if rec.CompletedAt == nil || !rec.CompletedAt.Before(cutoff) {
				continue
			}
			if c.purge(rec) {
				result.DeletedOld++
			}
		}
	}

	if settings.MaxStorageGB > 0 {
		limit := bytesize.FromGigabytes(settings.MaxStorageGB)
		recs := c.successfulRecordings()
		sort.Slice(recs, func(i, j int) bool {
			return completedAt(recs[i]).Before(completedAt(recs[j]))
		})
		total := totalSize(recs)
		for _, rec := range recs {
			if total <= limit {
				break
			}
			size := outputSize(rec)
			if c.purge(rec) {
				result.DeletedForSpace++
				total -= size
			}
		}
	}

	result.CurrentStorageGB = c.UsedStorage().Gigabytes()
	c.logger.Debug("custodian sweep finished",
		slog.Int("deleted_old", result.DeletedOld),
		slog.Int("deleted_for_space", result.DeletedForSpace),
		slog.Float64("current_storage_gb", result.CurrentStorageGB))
	return result
}

// UsedStorage sums the on-disk size of all successful recordings' outputs.
func (c *Custodian) UsedStorage() bytesize.Size {
	return totalSize(c.successfulRecordings())
}

// purge deletes a recording's output file and, only if that succeeded, its
// persistence row. A missing file counts as already deleted.
func (c *Custodian) purge(rec *models.Recording) bool {
	if err := os.Remove(rec.OutputPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		c.logger.Warn("deleting recording output",
			slog.String("recording_id", rec.ID.String()),
			slog.String("path", rec.OutputPath),
			slog.String("error", err.Error()))
		return false
	}
	if err := c.store.Delete(rec.ID); err != nil {
		c.logger.Warn("deleting recording row",
			slog.String("recording_id", rec.ID.String()),
			slog.String("error", err.Error()))
		return false
	}
	c.logger.Info("purged recording",
		slog.String("recording_id", rec.ID.String()),
		slog.String("name", rec.Name),
		slog.String("path", rec.OutputPath))
	return true
}

func (c *Custodian) successfulRecordings() []*models.Recording {
	var out []*models.Recording
	for _, rec := range c.store.List() {
		if rec.Success != nil && *rec.Success && rec.OutputPath != "" {
			out = append(out, rec)
		}
	}
	return out
}

func completedAt(rec *models.Recording) time.Time {
	if rec.CompletedAt != nil {
		return *rec.CompletedAt
	}
	return rec.UpdatedAt
}

func outputSize(rec *models.Recording) bytesize.Size {
	info, err := os.Stat(rec.OutputPath)
	if err != nil {
		return 0
	}
	return bytesize.Size(info.Size())
}

func totalSize(recs []*models.Recording) bytesize.Size {
	var total bytesize.Size
	for _, rec := range recs {
		total += outputSize(rec)
	}
	return total
}
