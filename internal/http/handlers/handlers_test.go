package handlers

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recordarr/recordarr/internal/config"
	"github.com/recordarr/recordarr/internal/models"
	"github.com/recordarr/recordarr/internal/service"
)

func newServices(t *testing.T) *service.Services {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Server: config.ServerConfig{Port: 8080},
		Storage: config.StorageConfig{
			DataDir:        dir,
			RecordingsFile: "recordings.json",
			StreamsFile:    "streams.json",
			SettingsFile:   "settings.json",
			OutputDir:      filepath.Join(dir, "recordings"),
			LogsDir:        filepath.Join(dir, "logs"),
		},
		Logging: config.LoggingConfig{Level: "info", Format: "text"},
		Prober: config.ProberConfig{
			Pooled:          true,
			DefaultTimeout:  time.Second,
			EndpointIdleTTL: 10 * time.Minute,
		},
	}
	svcs := service.New(cfg, nil)
	t.Cleanup(svcs.Shutdown)
	return svcs
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var se huma.StatusError
	require.ErrorAs(t, err, &se)
	return se.GetStatus()
}

func TestRecordingHandlerCreateAndGet(t *testing.T) {
	svcs := newServices(t)
	h := NewRecordingHandler(svcs.Recordings)

	create := &CreateRecordingInput{}
	create.Body.Name = "front door"
	create.Body.RTSPURL = "rtsp://cam1/stream"
	create.Body.StartTime = time.Now().Add(time.Hour)
	create.Body.Duration = 60

	created, err := h.Create(context.Background(), create)
	require.NoError(t, err)
	assert.Equal(t, models.StatusScheduled, created.Body.Status)

	got, err := h.GetByID(context.Background(), &GetRecordingInput{ID: created.Body.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, "front door", got.Body.Name)

	list, err := h.List(context.Background(), &ListRecordingsInput{})
	require.NoError(t, err)
	assert.Len(t, list.Body.Recordings, 1)

	stats, err := h.Stats(context.Background(), &RecordingStatsInput{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Body.Total)

	_, err = h.Stop(context.Background(), &RecordingActionInput{ID: created.Body.ID.String()})
	require.NoError(t, err)
}

func TestRecordingHandlerErrorMapping(t *testing.T) {
	svcs := newServices(t)
	h := NewRecordingHandler(svcs.Recordings)

	_, err := h.GetByID(context.Background(), &GetRecordingInput{ID: "not-a-ulid"})
	assert.Equal(t, 400, statusOf(t, err))

	_, err = h.GetByID(context.Background(), &GetRecordingInput{ID: models.NewULID().String()})
	assert.Equal(t, 404, statusOf(t, err))

	create := &CreateRecordingInput{}
	create.Body.Name = "cam"
	create.Body.RTSPURL = "http://not-rtsp/stream"
	create.Body.StartTime = time.Now().Add(time.Hour)
	create.Body.Duration = 60
	_, err = h.Create(context.Background(), create)
	assert.Equal(t, 422, statusOf(t, err))

	// A finished recording conflicts with further stop requests.
	good := &CreateRecordingInput{}
	good.Body.Name = "cam"
	good.Body.RTSPURL = "rtsp://cam1/stream"
	good.Body.StartTime = time.Now().Add(time.Hour)
	good.Body.Duration = 60
	created, err := h.Create(context.Background(), good)
	require.NoError(t, err)

	_, err = h.Stop(context.Background(), &RecordingActionInput{ID: created.Body.ID.String()})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		got, err := h.GetByID(context.Background(), &GetRecordingInput{ID: created.Body.ID.String()})
		return err == nil && got.Body.Status == models.StatusCancelled
	}, 5*time.Second, 10*time.Millisecond)

	_, err = h.Stop(context.Background(), &RecordingActionInput{ID: created.Body.ID.String()})
	assert.Equal(t, 409, statusOf(t, err))
}

func TestStreamHandlerCRUD(t *testing.T) {
	svcs := newServices(t)
	h := NewStreamHandler(svcs.Streams)

	create := &CreateStreamInput{}
	create.Body.Name = "garage"
	create.Body.RTSPURL = "rtsp://cam2/stream"
	created, err := h.Create(context.Background(), create)
	require.NoError(t, err)

	update := &UpdateStreamInput{ID: created.Body.ID.String()}
	fav := true
	update.Body.Favorite = &fav
	updated, err := h.Update(context.Background(), update)
	require.NoError(t, err)
	assert.True(t, updated.Body.Favorite)

	deleted, err := h.Delete(context.Background(), &DeleteStreamInput{ID: created.Body.ID.String()})
	require.NoError(t, err)
	assert.True(t, deleted.Body.Deleted)

	_, err = h.GetByID(context.Background(), &GetStreamInput{ID: created.Body.ID.String()})
	assert.Equal(t, 404, statusOf(t, err))
}

func TestSettingsHandlerRoundTrip(t *testing.T) {
	svcs := newServices(t)
	h := NewSettingsHandler(svcs.Settings)

	got, err := h.GetSettings(context.Background(), &GetSettingsInput{})
	require.NoError(t, err)
	assert.Equal(t, "ffmpeg", got.Body.TranscoderPath)

	update := &UpdateSettingsInput{}
	format := models.FormatMKV
	update.Body.OutputFormat = &format
	updated, err := h.UpdateSettings(context.Background(), update)
	require.NoError(t, err)
	assert.Equal(t, models.FormatMKV, updated.Body.OutputFormat)

	bad := &UpdateSettingsInput{}
	hw := "gpu"
	bad.Body.HWAccel = &hw
	_, err = h.UpdateSettings(context.Background(), bad)
	assert.Equal(t, 422, statusOf(t, err))
}

func TestStorageHandlerStats(t *testing.T) {
	svcs := newServices(t)
	h := NewStorageHandler(svcs.Storage)

	stats, err := h.Stats(context.Background(), &StorageStatsInput{})
	require.NoError(t, err)
	assert.Zero(t, stats.Body.UsedGB)

	result, err := h.Cleanup(context.Background(), &StorageCleanupInput{})
	require.NoError(t, err)
	assert.Zero(t, result.Body.DeletedOld)
}

func TestProbeHandlerRejectsNonRTSP(t *testing.T) {
	svcs := newServices(t)
	h := NewProbeHandler(svcs.Probe)

	input := &ProbeInput{}
	input.Body.URL = "http://cam1/stream"
	_, err := h.Probe(context.Background(), input)
	assert.Equal(t, 422, statusOf(t, err))
}

func TestHealthHandlerReportsMetrics(t *testing.T) {
	h := NewHealthHandler("1.2.3").WithOutputDir(t.TempDir())

	out, err := h.GetHealth(context.Background(), &HealthInput{})
	require.NoError(t, err)
	assert.Equal(t, "healthy", out.Body.Status)
	assert.Equal(t, "1.2.3", out.Body.Version)
	assert.Positive(t, out.Body.CPUInfo.Cores)
}
