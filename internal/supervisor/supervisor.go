// Package supervisor runs one state machine per recording: it waits out the
// scheduled delay, confirms source liveness, drives capture attempts through
// the transcoder runner, retries for the remaining wall-clock budget, and
// finalizes the outcome exactly once.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/recordarr/recordarr/internal/ffmpeg"
	"github.com/recordarr/recordarr/internal/models"
	"github.com/recordarr/recordarr/internal/rtsp"
)

const (
	// MissedStartMessage is recorded when a restarted recording's whole
	// window elapsed while the process was down.
	MissedStartMessage = "missed scheduled start"
	// neverLiveMessage is recorded when the probe budget ran out before the
	// source answered.
	neverLiveMessage = "stream never went live"
	// stopGrace bounds how long a cancelled capture may take to exit after
	// the soft stop before it is killed.
	stopGrace = 10 * time.Second
)

// SettingsProvider yields the current settings snapshot.
type SettingsProvider interface {
	Get() models.Settings
}

// RecordingWriter is the slice of the persistence layer the supervisor needs.
type RecordingWriter interface {
	Update(rec *models.Recording, durable bool) error
}

// Deps are the collaborators a supervisor calls through. The supervisor owns
// none of them.
type Deps struct {
	Store    RecordingWriter
	Settings SettingsProvider
	Prober   rtsp.Prober
	Runner   ffmpeg.Runner
	LogsDir  string
	Logger   *slog.Logger

	// OnComplete is invoked after a successful finalization, outside the
	// supervisor's lock. May be nil.
	OnComplete func(rec *models.Recording)
}

// Supervisor owns the lifecycle of one recording.
type Supervisor struct {
	deps   Deps
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	rearm  chan struct{}

	mu           sync.Mutex
	rec          *models.Recording
	status       models.Status
	handle       ffmpeg.Handle
	progress     *models.Progress
	ignoreProbe  bool
	attempt      int
	attemptPaths []string
	initialStart time.Time
	startNow     bool
	finalized    bool
}

// New instantiates a supervisor for a non-terminal recording and starts its
// task. The scheduled-start timer arms immediately.
func New(rec *models.Recording, deps Deps) *Supervisor {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Supervisor{
		deps: deps,
		logger: deps.Logger.With(
			slog.String("recording_id", rec.ID.String()),
			slog.String("recording", rec.Name)),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		rearm:  make(chan struct{}, 1),
		rec:    rec.Clone(),
		status: models.StatusScheduled,
	}
	go s.run()
	return s
}

// ID returns the recording id.
func (s *Supervisor) ID() models.ULID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.ID
}

// Status returns the current derived status.
func (s *Supervisor) Status() models.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Done is closed once the recording has been finalized.
func (s *Supervisor) Done() <-chan struct{} { return s.done }

// View returns the recording together with its runtime snapshot.
func (s *Supervisor) View() models.View {
	s.mu.Lock()
	view := models.View{
		Recording:   *s.rec.Clone(),
		Status:      s.status,
		IgnoreProbe: s.ignoreProbe,
		Attempt:     s.attempt,
	}
	if s.progress != nil {
		p := *s.progress
		view.Progress = &p
	}
	handle := s.handle
	s.mu.Unlock()

	if handle != nil {
		if stats := handle.Stats(); stats.PID != 0 {
			view.Resources = &models.ResourceUsage{
				PID:         stats.PID,
				CPUPercent:  stats.CPUPercent,
				MemoryRSSMB: stats.MemoryRSSMB,
			}
		}
	}
	return view
}

// Start moves a scheduled recording into starting without waiting for its
// timer. Any other state is a conflict.
func (s *Supervisor) Start() error {
	s.mu.Lock()
	if s.status != models.StatusScheduled {
		s.mu.Unlock()
		return models.ErrConflict
	}
	s.startNow = true
	s.mu.Unlock()
	s.wake()
	return nil
}

// Stop cancels the recording. Stopping a recording that already reached a
// terminal state is a no-op.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	terminal := s.status.Terminal()
	s.mu.Unlock()
	if terminal {
		return nil
	}
	s.cancel()
	return nil
}

// SetIgnoreProbe toggles the ignore-probe flag. The probe waiter observes it
// on its next tick; no status transition happens here.
func (s *Supervisor) SetIgnoreProbe(ignore bool) {
	s.mu.Lock()
	s.ignoreProbe = ignore
	s.mu.Unlock()
}

// UpdateSchedule replaces name, URL, start time, and duration. Only permitted
// while scheduled; a changed start time re-arms the timer.
func (s *Supervisor) UpdateSchedule(name, rtspURL string, startTime time.Time, duration int) (*models.Recording, error) {
	s.mu.Lock()
	if s.status != models.StatusScheduled {
		s.mu.Unlock()
		return nil, models.ErrConflict
	}
	updated := s.rec.Clone()
	updated.Name = name
	updated.RTSPURL = rtspURL
	updated.StartTime = startTime
	updated.Duration = duration
	updated.UpdatedAt = time.Now()
	if err := updated.Validate(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.rec = updated
	result := updated.Clone()
	s.mu.Unlock()

	if err := s.deps.Store.Update(result, true); err != nil {
		return nil, err
	}
	s.wake()
	return result, nil
}

func (s *Supervisor) wake() {
	select {
	case s.rearm <- struct{}{}:
	default:
	}
}

func (s *Supervisor) run() {
	if !s.waitForStart() {
		s.finalize(false, models.CancelledMessage)
		return
	}

	s.mu.Lock()
	now := time.Now()
	if s.rec.StartTime.Before(now) {
		// Freeze the planned start so a late start still bounds total
		// capture to the scheduled window.
		s.initialStart = s.rec.StartTime
	} else {
		s.initialStart = now
	}
	s.status = models.StatusStarting
	s.mu.Unlock()

	s.captureLoop()
}

// waitForStart blocks until the scheduled instant, an explicit start, or
// cancellation. It re-arms whenever the schedule changes.
func (s *Supervisor) waitForStart() bool {
	for {
		s.mu.Lock()
		if s.startNow {
			s.mu.Unlock()
			return true
		}
		start := s.rec.StartTime
		s.mu.Unlock()

		delay := time.Until(start)
		if delay <= 0 {
			return true
		}
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
			return true
		case <-s.rearm:
			timer.Stop()
		case <-s.ctx.Done():
			timer.Stop()
			return false
		}
	}
}

// remaining is the wall-clock capture budget left, in whole seconds.
func (s *Supervisor) remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	elapsed := time.Since(s.initialStart)
	left := s.rec.Duration - int(elapsed.Seconds())
	if left < 0 {
		return 0
	}
	return left
}

func (s *Supervisor) setStatus(status models.Status) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

// bumpAttempt increments the shared attempt counter and reports whether the
// budget is exhausted. A budget of -1 never exhausts.
func (s *Supervisor) bumpAttempt(budget int) (exhausted bool) {
	s.mu.Lock()
	s.attempt++
	n := s.attempt
	s.mu.Unlock()
	return budget != -1 && n >= budget
}

// captureLoop alternates the probe-wait phase and the capture phase until the
// recording finalizes.
func (s *Supervisor) captureLoop() {
	for {
		settings := s.deps.Settings.Get()

		if !s.awaitLiveness(settings) {
			return
		}
		if !s.runAttempt(settings) {
			return
		}

		s.setStatus(models.StatusRetrying)
		if !s.sleep(settings.ReconnectDelayDuration()) {
			s.finalize(false, models.CancelledMessage)
			return
		}
		s.setStatus(models.StatusStarting)
	}
}

// awaitLiveness probes the source until it is live or the ignore-probe flag
// is set. It finalizes and returns false when the budget or the window runs
// out, or on cancellation.
func (s *Supervisor) awaitLiveness(settings models.Settings) bool {
	for {
		s.mu.Lock()
		ignore := s.ignoreProbe
		url := s.rec.RTSPURL
		s.mu.Unlock()

		if ignore {
			return true
		}
		outcome := s.deps.Prober.Probe(s.ctx, url, 0)
		if s.ctx.Err() != nil {
			s.finalize(false, models.CancelledMessage)
			return false
		}
		if outcome.Live() {
			return true
		}
		s.logger.Debug("source not live",
			slog.String("outcome", string(outcome)),
			slog.Int("attempt", s.attempt+1))

		if s.bumpAttempt(settings.ReconnectAttempts) {
			s.finalizeWithSegments(neverLiveMessage)
			return false
		}
		if s.remaining() <= 0 {
			s.finalizeWithSegments(neverLiveMessage)
			return false
		}
		if !s.sleep(settings.ReconnectDelayDuration()) {
			s.finalize(false, models.CancelledMessage)
			return false
		}
	}
}

// runAttempt spawns one capture attempt and supervises it to exit. It
// returns true when the loop should retry, false when the recording was
// finalized.
func (s *Supervisor) runAttempt(settings models.Settings) bool {
	remaining := s.remaining()
	if remaining <= 0 {
		s.finalizeWithSegments("capture window elapsed")
		return false
	}

	s.mu.Lock()
	attemptNo := len(s.attemptPaths) + 1
	name := s.rec.Name
	url := s.rec.RTSPURL
	id := s.rec.ID
	attemptPath := filepath.Join(settings.OutputDir,
		models.AttemptFileName(name, time.Now(), attemptNo, settings.Extension()))
	// Bookkeeping before spawn, so a crash cannot orphan the file.
	s.attemptPaths = append(s.attemptPaths, attemptPath)
	s.mu.Unlock()

	args, err := settings.BuildCaptureArgs(url, attemptPath, remaining)
	if err != nil {
		s.finalize(false, fmt.Sprintf("building transcoder arguments: %v", err))
		return false
	}
	if err := os.MkdirAll(settings.OutputDir, 0750); err != nil {
		s.finalize(false, fmt.Sprintf("creating output directory: %v", err))
		return false
	}

	logPath := ""
	if s.deps.LogsDir != "" {
		if err := os.MkdirAll(s.deps.LogsDir, 0750); err == nil {
			logPath = filepath.Join(s.deps.LogsDir, id.String()+".log")
		}
	}

	handle, err := s.deps.Runner.StartCapture(s.ctx, ffmpeg.CaptureRequest{
		Binary:     settings.TranscoderPath,
		Args:       args,
		LogPath:    logPath,
		OnProgress: s.onProgress,
	})
	if err != nil {
		s.logger.Error("spawning transcoder", slog.String("error", err.Error()))
		return s.retryOrFinalize(settings, fmt.Sprintf("spawning transcoder: %v", err))
	}

	s.mu.Lock()
	s.handle = handle
	s.status = models.StatusRecording
	s.mu.Unlock()
	s.logger.Info("capture started",
		slog.Int("attempt", attemptNo),
		slog.Int("duration_secs", remaining),
		slog.String("output", attemptPath))

	cancelled := false
	select {
	case <-s.ctx.Done():
		cancelled = true
		if err := handle.Stop(); err != nil {
			s.logger.Warn("soft stop failed", slog.String("error", err.Error()))
		}
		select {
		case <-handle.Done():
		case <-time.After(stopGrace):
			handle.Kill()
			<-handle.Done()
		}
	case <-handle.Done():
	}

	s.mu.Lock()
	s.handle = nil
	s.progress = nil
	s.mu.Unlock()

	exitErr := handle.Err()
	if cancelled {
		s.finalize(false, models.CancelledMessage)
		return false
	}
	if s.remaining() <= 0 {
		msg := ""
		if exitErr != nil {
			msg = exitErr.Error()
		}
		s.finalizeCompleted(msg)
		return false
	}

	reason := "transcoder exited before the capture window elapsed"
	if exitErr != nil {
		reason = exitErr.Error()
	}
	s.logger.Warn("capture attempt ended early", slog.String("reason", reason))
	return s.retryOrFinalize(settings, reason)
}

// retryOrFinalize charges one attempt against the budget. It returns true to
// retry, false after finalizing.
func (s *Supervisor) retryOrFinalize(settings models.Settings, reason string) bool {
	if s.bumpAttempt(settings.ReconnectAttempts) {
		s.finalizeWithSegments(fmt.Sprintf("retries exhausted: %s", reason))
		return false
	}
	return true
}

// onProgress stores the latest progress snapshot and touches the recording's
// cache entry without a disk write.
func (s *Supervisor) onProgress(p models.Progress) {
	s.mu.Lock()
	s.progress = &p
	s.rec.UpdatedAt = time.Now()
	rec := s.rec.Clone()
	s.mu.Unlock()
	if err := s.deps.Store.Update(rec, false); err != nil {
		s.logger.Debug("caching progress update", slog.String("error", err.Error()))
	}
}

// finalizeWithSegments resolves a budget or window exhaustion: partial data
// on disk still counts as a completed recording, nothing on disk is a
// failure.
func (s *Supervisor) finalizeWithSegments(reason string) {
	if len(s.segmentsOnDisk()) > 0 {
		s.finalizeCompleted(reason)
		return
	}
	s.finalize(false, reason)
}

// finalizeCompleted marks the recording successful, stitching whatever
// attempt segments exist.
func (s *Supervisor) finalizeCompleted(note string) {
	s.finalizeOutcome(true, note)
}

// finalize marks the recording unsuccessful with the given message.
func (s *Supervisor) finalize(success bool, message string) {
	s.finalizeOutcome(success, message)
}

// segmentsOnDisk filters the attempt list to files that actually exist.
func (s *Supervisor) segmentsOnDisk() []string {
	s.mu.Lock()
	paths := append([]string(nil), s.attemptPaths...)
	s.mu.Unlock()
	var out []string
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil && info.Size() > 0 {
			out = append(out, p)
		}
	}
	return out
}

// finalizeOutcome writes the terminal outcome exactly once: stitch any
// segments, then persist success, outputPath, completedAt durably.
func (s *Supervisor) finalizeOutcome(success bool, message string) {
	s.mu.Lock()
	if s.finalized {
		s.mu.Unlock()
		return
	}
	s.finalized = true
	s.progress = nil
	settings := s.deps.Settings.Get()
	name := s.rec.Name
	id := s.rec.ID
	s.mu.Unlock()

	segments := s.segmentsOnDisk()
	outputPath := ""
	if len(segments) > 0 {
		finalPath := models.FinalPath(settings.OutputDir, name, id, settings.Extension())
		// Stitching must run even after cancellation, so it does not use
		// the supervisor's context.
		err := s.deps.Runner.Stitch(context.Background(), settings.TranscoderPath, segments, finalPath)
		outputPath = finalPath
		if err != nil {
			s.logger.Error("stitching segments", slog.String("error", err.Error()))
			message = joinMessages(message, fmt.Sprintf("stitch failed: %v", err))
		}
	}

	now := time.Now()
	s.mu.Lock()
	s.rec.Success = models.BoolPtr(success)
	s.rec.OutputPath = outputPath
	s.rec.ErrorMessage = message
	s.rec.CompletedAt = &now
	s.rec.UpdatedAt = now
	s.status = s.rec.PersistedStatus()
	rec := s.rec.Clone()
	status := s.status
	s.mu.Unlock()

	if err := s.deps.Store.Update(rec, true); err != nil {
		s.logger.Error("persisting terminal outcome", slog.String("error", err.Error()))
	}
	s.logger.Info("recording finalized",
		slog.String("status", string(status)),
		slog.Bool("success", success),
		slog.String("output", outputPath),
		slog.String("message", message))

	close(s.done)
	if success && s.deps.OnComplete != nil {
		s.deps.OnComplete(rec)
	}
}

// sleep waits for d or cancellation; false means cancelled.
func (s *Supervisor) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-s.ctx.Done():
		return false
	}
}

func joinMessages(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + "; " + b
	}
}

// Recover re-instantiates supervision for a recording found non-terminal at
// boot. A recording whose whole window elapsed while the process was down is
// finalized as failed instead.
func Recover(rec *models.Recording, deps Deps) (*Supervisor, error) {
	remaining := rec.Duration - int(time.Since(rec.StartTime).Seconds())
	if rec.StartTime.After(time.Now()) || remaining > 0 {
		return New(rec, deps), nil
	}

	now := time.Now()
	rec = rec.Clone()
	rec.Success = models.BoolPtr(false)
	rec.ErrorMessage = MissedStartMessage
	rec.CompletedAt = &now
	rec.UpdatedAt = now
	if err := deps.Store.Update(rec, true); err != nil {
		return nil, fmt.Errorf("finalizing missed recording: %w", err)
	}
	return nil, nil
}
