package custodian

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recordarr/recordarr/internal/models"
	"github.com/recordarr/recordarr/internal/store"
	"github.com/recordarr/recordarr/pkg/bytesize"
)

type settingsStub struct {
	settings models.Settings
}

func (s settingsStub) Get() models.Settings { return s.settings }

type fixture struct {
	store    *store.RecordingStore
	outDir   string
	settings models.Settings
}

func newFixture(t *testing.T, mutate func(*models.Settings)) *fixture {
	t.Helper()
	dir := t.TempDir()
	settings := models.DefaultSettings()
	settings.OutputDir = filepath.Join(dir, "recordings")
	require.NoError(t, os.MkdirAll(settings.OutputDir, 0750))
	if mutate != nil {
		mutate(&settings)
	}
	return &fixture{
		store:    store.NewRecordingStore(filepath.Join(dir, "recordings.json")),
		outDir:   settings.OutputDir,
		settings: settings,
	}
}

func (f *fixture) custodian() *Custodian {
	return New(f.store, settingsStub{f.settings})
}

// addCompleted stores a successful recording with an output file of the
// given size, completed the given duration ago.
func (f *fixture) addCompleted(t *testing.T, name string, sizeBytes int, completedAgo time.Duration) *models.Recording {
	t.Helper()
	path := filepath.Join(f.outDir, name+".mp4")
	require.NoError(t, os.WriteFile(path, make([]byte, sizeBytes), 0640))

	now := time.Now()
	completed := now.Add(-completedAgo)
	rec := &models.Recording{
		ID:          models.NewULID(),
		Name:        name,
		RTSPURL:     "rtsp://h/" + name,
		StartTime:   completed.Add(-time.Minute),
		Duration:    60,
		Success:     models.BoolPtr(true),
		OutputPath:  path,
		CreatedAt:   completed.Add(-2 * time.Minute),
		UpdatedAt:   completed,
		CompletedAt: &completed,
	}
	require.NoError(t, f.store.Create(rec))
	return rec
}

const day = 24 * time.Hour

func TestRetentionPurge(t *testing.T) {
	f := newFixture(t, func(s *models.Settings) {
		s.AutoDeleteAfterDays = 7
	})
	keep1 := f.addCompleted(t, "fresh", 100, 1*day)
	keep2 := f.addCompleted(t, "recent", 100, 3*day)
	old1 := f.addCompleted(t, "old8", 100, 8*day)
	old2 := f.addCompleted(t, "old10", 100, 10*day)
	old3 := f.addCompleted(t, "old30", 100, 30*day)

	result := f.custodian().Sweep()

	assert.Equal(t, 3, result.DeletedOld)
	assert.Equal(t, 0, result.DeletedForSpace)

	for _, rec := range []*models.Recording{old1, old2, old3} {
		_, err := f.store.Get(rec.ID)
		assert.ErrorIs(t, err, models.ErrNotFound)
		assert.NoFileExists(t, rec.OutputPath)
	}
	for _, rec := range []*models.Recording{keep1, keep2} {
		_, err := f.store.Get(rec.ID)
		assert.NoError(t, err)
		assert.FileExists(t, rec.OutputPath)
	}
}

func TestQuotaPurgeDeletesOldestFirst(t *testing.T) {
	// Cap of 1100 bytes against files of 600+500+500: only the oldest goes.
	f := newFixture(t, func(s *models.Settings) {
		s.MaxStorageGB = bytesize.Size(1100).Gigabytes()
	})
	oldest := f.addCompleted(t, "first", 600, 3*time.Hour)
	mid := f.addCompleted(t, "second", 500, 2*time.Hour)
	newest := f.addCompleted(t, "third", 500, 1*time.Hour)

	result := f.custodian().Sweep()

	assert.Equal(t, 1, result.DeletedForSpace)
	assert.NoFileExists(t, oldest.OutputPath)
	assert.FileExists(t, mid.OutputPath)
	assert.FileExists(t, newest.OutputPath)
	assert.InDelta(t, bytesize.Size(1000).Gigabytes(), result.CurrentStorageGB, 1e-12)
}

func TestQuotaDisabledWhenZero(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.addCompleted(t, "big", 10000, time.Hour)

	result := f.custodian().Sweep()

	assert.Equal(t, 0, result.DeletedForSpace)
	assert.FileExists(t, rec.OutputPath)
}

func TestSweepIdempotent(t *testing.T) {
	f := newFixture(t, func(s *models.Settings) {
		s.AutoDeleteAfterDays = 7
		s.MaxStorageGB = bytesize.Size(1100).Gigabytes()
	})
	f.addCompleted(t, "old", 600, 8*day)
	f.addCompleted(t, "kept", 500, 1*day)

	c := f.custodian()
	first := c.Sweep()
	assert.Equal(t, 1, first.DeletedOld)

	second := c.Sweep()
	assert.Equal(t, 0, second.DeletedOld)
	assert.Equal(t, 0, second.DeletedForSpace)
	assert.Equal(t, first.CurrentStorageGB, second.CurrentStorageGB)
}

func TestMissingFileStillDropsRow(t *testing.T) {
	f := newFixture(t, func(s *models.Settings) {
		s.AutoDeleteAfterDays = 1
	})
	rec := f.addCompleted(t, "gone", 100, 5*day)
	require.NoError(t, os.Remove(rec.OutputPath))

	result := f.custodian().Sweep()

	assert.Equal(t, 1, result.DeletedOld)
	_, err := f.store.Get(rec.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestUnsuccessfulRecordingsAreIgnored(t *testing.T) {
	f := newFixture(t, func(s *models.Settings) {
		s.AutoDeleteAfterDays = 1
	})
	now := time.Now()
	old := now.Add(-10 * day)
	pending := &models.Recording{
		ID:        models.NewULID(),
		Name:      "pending",
		RTSPURL:   "rtsp://h/pending",
		StartTime: now.Add(time.Hour),
		Duration:  60,
		CreatedAt: old,
		UpdatedAt: old,
	}
	require.NoError(t, f.store.Create(pending))

	failed := &models.Recording{
		ID:           models.NewULID(),
		Name:         "failed",
		RTSPURL:      "rtsp://h/failed",
		StartTime:    old,
		Duration:     60,
		Success:      models.BoolPtr(false),
		ErrorMessage: "stream never went live",
		CreatedAt:    old,
		UpdatedAt:    old,
		CompletedAt:  &old,
	}
	require.NoError(t, f.store.Create(failed))

	result := f.custodian().Sweep()

	assert.Equal(t, 0, result.DeletedOld)
	_, err := f.store.Get(pending.ID)
	assert.NoError(t, err)
	_, err = f.store.Get(failed.ID)
	assert.NoError(t, err)
}

func TestUsedStorage(t *testing.T) {
	f := newFixture(t, nil)
	f.addCompleted(t, "a", 700, time.Hour)
	f.addCompleted(t, "b", 300, time.Hour)

	used := f.custodian().UsedStorage()
	assert.Equal(t, bytesize.Size(1000), used)
}

func TestStartStopLifecycle(t *testing.T) {
	f := newFixture(t, nil)
	c := f.custodian()

	require.NoError(t, c.Start())
	require.NoError(t, c.Start(), "second start is a no-op")
	c.NotifyCompleted()
	c.Stop()
	c.Stop()
}
