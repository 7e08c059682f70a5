// Package service implements the transport-agnostic command surface: thin
// operations that translate external calls into supervisor, store, prober,
// and custodian actions and return derived views.
package service

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/recordarr/recordarr/internal/models"
	"github.com/recordarr/recordarr/internal/store"
	"github.com/recordarr/recordarr/internal/supervisor"
)

// RecordingService owns the recording commands.
type RecordingService struct {
	store    *store.RecordingStore
	registry *supervisor.Registry
	deps     supervisor.Deps
	logger   *slog.Logger
}

// NewRecordingService creates the recording command surface. deps is handed
// to every supervisor the service instantiates.
func NewRecordingService(st *store.RecordingStore, registry *supervisor.Registry, deps supervisor.Deps) *RecordingService {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RecordingService{store: st, registry: registry, deps: deps, logger: logger}
}

// CreateRecordingInput is the payload for Create.
type CreateRecordingInput struct {
	Name      string
	RTSPURL   string
	StartTime time.Time
	Duration  int // seconds; 0 selects the settings default
}

// UpdateRecordingInput is the partial payload for Update; nil fields are
// left unchanged.
type UpdateRecordingInput struct {
	Name      *string
	RTSPURL   *string
	StartTime *time.Time
	Duration  *int
}

// RecordingStats counts recordings per derived status.
type RecordingStats struct {
	Total    int                   `json:"total"`
	ByStatus map[models.Status]int `json:"byStatus"`
}

// List returns every recording with its derived status snapshot.
func (s *RecordingService) List() []models.View {
	recs := s.store.List()
	views := make([]models.View, 0, len(recs))
	for _, rec := range recs {
		views = append(views, s.view(rec))
	}
	return views
}

// Get returns one recording with its snapshot.
func (s *RecordingService) Get(id models.ULID) (models.View, error) {
	rec, err := s.store.Get(id)
	if err != nil {
		return models.View{}, err
	}
	return s.view(rec), nil
}

// Create validates and stores a new recording and instantiates its
// supervisor.
func (s *RecordingService) Create(input CreateRecordingInput) (models.View, error) {
	duration := input.Duration
	if duration == 0 {
		duration = s.deps.Settings.Get().DefaultDuration
	}
	now := time.Now()
	rec := &models.Recording{
		ID:        models.NewULID(),
		Name:      input.Name,
		RTSPURL:   input.RTSPURL,
		StartTime: input.StartTime,
		Duration:  duration,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := rec.Validate(); err != nil {
		return models.View{}, err
	}
	if err := s.store.Create(rec); err != nil {
		return models.View{}, err
	}

	sup := supervisor.New(rec, s.deps)
	if err := s.registry.Register(sup); err != nil {
		sup.Stop()
		return models.View{}, err
	}
	s.reap(sup)
	s.logger.Info("recording created",
		slog.String("recording_id", rec.ID.String()),
		slog.String("name", rec.Name),
		slog.Time("start_time", rec.StartTime))
	return sup.View(), nil
}

// Update mutates schedule fields of a still-scheduled recording. Started or
// finished recordings conflict.
func (s *RecordingService) Update(id models.ULID, input UpdateRecordingInput) (models.View, error) {
	rec, err := s.store.Get(id)
	if err != nil {
		return models.View{}, err
	}
	sup, ok := s.registry.Lookup(id)
	if !ok {
		// No live supervisor means the recording already finished.
		return models.View{}, models.ErrConflict
	}

	name := rec.Name
	url := rec.RTSPURL
	start := rec.StartTime
	duration := rec.Duration
	if input.Name != nil {
		name = *input.Name
	}
	if input.RTSPURL != nil {
		url = *input.RTSPURL
	}
	if input.StartTime != nil {
		start = *input.StartTime
	}
	if input.Duration != nil {
		duration = *input.Duration
	}

	if _, err := sup.UpdateSchedule(name, url, start, duration); err != nil {
		return models.View{}, err
	}
	return sup.View(), nil
}

// Delete cancels any live supervisor, removes the output file, and drops the
// row.
func (s *RecordingService) Delete(id models.ULID) error {
	rec, err := s.store.Get(id)
	if err != nil {
		return err
	}
	if sup, ok := s.registry.Lookup(id); ok {
		sup.Stop()
		s.registry.Remove(id)
	}
	if rec.OutputPath != "" {
		if err := os.Remove(rec.OutputPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("deleting recording output",
				slog.String("recording_id", id.String()),
				slog.String("error", err.Error()))
		}
	}
	return s.store.Delete(id)
}

// Start moves a scheduled recording into starting immediately.
func (s *RecordingService) Start(id models.ULID) error {
	sup, ok := s.registry.Lookup(id)
	if !ok {
		if _, err := s.store.Get(id); err != nil {
			return err
		}
		return models.ErrConflict
	}
	return sup.Start()
}

// Stop cancels a recording that has not finished yet.
func (s *RecordingService) Stop(id models.ULID) error {
	sup, ok := s.registry.Lookup(id)
	if !ok {
		if _, err := s.store.Get(id); err != nil {
			return err
		}
		return models.ErrConflict
	}
	if sup.Status().Terminal() {
		return models.ErrConflict
	}
	return sup.Stop()
}

// SetIgnoreProbe toggles the recording's ignore-probe flag.
func (s *RecordingService) SetIgnoreProbe(id models.ULID, ignore bool) error {
	sup, ok := s.registry.Lookup(id)
	if !ok {
		if _, err := s.store.Get(id); err != nil {
			return err
		}
		return models.ErrConflict
	}
	sup.SetIgnoreProbe(ignore)
	return nil
}

// Stats counts recordings per derived status.
func (s *RecordingService) Stats() RecordingStats {
	stats := RecordingStats{ByStatus: make(map[models.Status]int)}
	for _, view := range s.List() {
		stats.Total++
		stats.ByStatus[view.Status]++
	}
	return stats
}

// Recover re-instantiates supervisors for recordings left unfinished by a
// previous process. Called once at boot, before the command surface opens.
func (s *RecordingService) Recover() error {
	for _, rec := range s.store.List() {
		if rec.Terminal() {
			continue
		}
		sup, err := supervisor.Recover(rec, s.deps)
		if err != nil {
			return err
		}
		if sup == nil {
			s.logger.Warn("recording missed its window while process was down",
				slog.String("recording_id", rec.ID.String()),
				slog.String("name", rec.Name))
			continue
		}
		if err := s.registry.Register(sup); err != nil {
			return err
		}
		s.reap(sup)
		s.logger.Info("recording supervision resumed",
			slog.String("recording_id", rec.ID.String()),
			slog.String("name", rec.Name))
	}
	return nil
}

// reap drops the registry entry once the supervisor finalizes, so a finished
// recording does not pin its supervisor for the rest of the process. The
// terminal outcome is persisted before Done closes, so later reads fall back
// to the stored row.
func (s *RecordingService) reap(sup *supervisor.Supervisor) {
	go func() {
		<-sup.Done()
		s.registry.Remove(sup.ID())
	}()
}

// view joins the stored recording with live supervisor state when present.
func (s *RecordingService) view(rec *models.Recording) models.View {
	if sup, ok := s.registry.Lookup(rec.ID); ok {
		return sup.View()
	}
	return models.View{Recording: *rec, Status: rec.PersistedStatus()}
}
