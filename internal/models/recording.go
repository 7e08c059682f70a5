package models

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Status is the derived runtime status of a recording. It is computed from
// live supervisor state plus the persisted Success field; only Success and
// its companions are written to disk.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusStarting  Status = "starting"
	StatusRecording Status = "recording"
	StatusRetrying  Status = "retrying"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the status is a terminal state.
func (s Status) Terminal() bool {
	switch s {
	case StatusCancelled, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// CancelledMessage is the error message recorded when a recording is
// cancelled by an external stop.
const CancelledMessage = "cancelled"

// Progress is a live snapshot of transcoder output counters. It is never
// persisted; observers read it through the derived recording view.
type Progress struct {
	Frame   int64         `json:"frame"`
	FPS     float64       `json:"fps"`
	Time    time.Duration `json:"time"`
	Bitrate string        `json:"bitrate"`
	Speed   float64       `json:"speed"`
}

// Recording is the unit owned by a supervisor: one scheduled capture of an
// RTSP source.
type Recording struct {
	ID           ULID       `json:"id"`
	Name         string     `json:"name"`
	RTSPURL      string     `json:"rtspUrl"`
	StartTime    time.Time  `json:"startTime"`
	Duration     int        `json:"duration"` // seconds
	Success      *bool      `json:"success,omitempty"`
	OutputPath   string     `json:"outputPath,omitempty"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`

	// extra holds unknown JSON fields so they survive rewrites of the
	// recordings document by older or newer versions.
	extra map[string]json.RawMessage
}

// knownRecordingFields are the JSON keys owned by this version of the model.
var knownRecordingFields = map[string]struct{}{
	"id": {}, "name": {}, "rtspUrl": {}, "startTime": {}, "duration": {},
	"success": {}, "outputPath": {}, "errorMessage": {},
	"createdAt": {}, "updatedAt": {}, "completedAt": {},
}

// recordingAlias avoids recursive marshal calls.
type recordingAlias Recording

// UnmarshalJSON decodes a recording and retains unknown fields.
func (r *Recording) UnmarshalJSON(data []byte) error {
	var alias recordingAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for k := range raw {
		if _, known := knownRecordingFields[k]; known {
			delete(raw, k)
		}
	}
	*r = Recording(alias)
	if len(raw) > 0 {
		r.extra = raw
	}
	return nil
}

// MarshalJSON encodes a recording, replaying any retained unknown fields.
func (r Recording) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(recordingAlias(r))
	if err != nil {
		return nil, err
	}
	if len(r.extra) == 0 {
		return data, nil
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	for k, v := range r.extra {
		if _, known := knownRecordingFields[k]; !known {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// Validate checks the structural invariants of a recording.
func (r *Recording) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrNameRequired
	}
	if r.RTSPURL == "" {
		return ErrURLRequired
	}
	if !strings.HasPrefix(r.RTSPURL, "rtsp://") {
		return ErrInvalidRTSPURL
	}
	if r.Duration <= 0 {
		return ErrInvalidDuration
	}
	if r.StartTime.IsZero() {
		return ErrStartTimeRequired
	}
	return nil
}

// Terminal reports whether the recording has reached a terminal outcome.
// Once Success is set the recording is immutable except for deletion.
func (r *Recording) Terminal() bool {
	return r.Success != nil
}

// PersistedStatus derives a status from persisted fields alone. Live
// supervisor state, when present, takes precedence over this.
func (r *Recording) PersistedStatus() Status {
	switch {
	case r.Success == nil:
		return StatusScheduled
	case *r.Success:
		return StatusCompleted
	case r.ErrorMessage == CancelledMessage:
		return StatusCancelled
	default:
		return StatusFailed
	}
}

// Clone returns a deep copy of the recording.
func (r *Recording) Clone() *Recording {
	out := *r
	if r.Success != nil {
		s := *r.Success
		out.Success = &s
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		out.CompletedAt = &t
	}
	if r.extra != nil {
		out.extra = make(map[string]json.RawMessage, len(r.extra))
		for k, v := range r.extra {
			out.extra[k] = v
		}
	}
	return &out
}

// ResourceUsage is a live snapshot of the capture process footprint. Like
// Progress it is never persisted.
type ResourceUsage struct {
	PID         int     `json:"pid"`
	CPUPercent  float64 `json:"cpuPercent"`
	MemoryRSSMB float64 `json:"memoryRssMb"`
}

// View is a recording plus its derived runtime snapshot, as returned by the
// command surface.
type View struct {
	Recording
	Status      Status         `json:"status"`
	Progress    *Progress      `json:"progress,omitempty"`
	Resources   *ResourceUsage `json:"resources,omitempty"`
	IgnoreProbe bool           `json:"ignoreProbe"`
	Attempt     int            `json:"attempt,omitempty"`
}

// MarshalJSON merges the recording fields with the runtime snapshot. Without
// this the embedded Recording marshaler would be promoted and the snapshot
// fields silently dropped.
func (v View) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(v.Recording)
	if err != nil {
		return nil, err
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	set := func(key string, val any) error {
		raw, err := json.Marshal(val)
		if err != nil {
			return err
		}
		merged[key] = raw
		return nil
	}
	if err := set("status", v.Status); err != nil {
		return nil, err
	}
	if err := set("ignoreProbe", v.IgnoreProbe); err != nil {
		return nil, err
	}
	if v.Progress != nil {
		if err := set("progress", v.Progress); err != nil {
			return nil, err
		}
	}
	if v.Resources != nil {
		if err := set("resources", v.Resources); err != nil {
			return nil, err
		}
	}
	if v.Attempt != 0 {
		if err := set("attempt", v.Attempt); err != nil {
			return nil, err
		}
	}
	return json.Marshal(merged)
}

// SanitizeName reduces a recording name to a filesystem-safe form: ASCII
// letters, digits, dash and underscore; everything else becomes underscore.
func SanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "recording"
	}
	return b.String()
}

// AttemptFileName names one contiguous capture attempt:
// <sanitized_name>_<iso_timestamp>_attempt<k>.<ext>.
func AttemptFileName(name string, start time.Time, attempt int, ext string) string {
	ts := start.UTC().Format("2006-01-02T15-04-05Z")
	return fmt.Sprintf("%s_%s_attempt%d.%s", SanitizeName(name), ts, attempt, ext)
}

// FinalFileName names the stitched output: <sanitized_name>_<id>.<ext>.
func FinalFileName(name string, id ULID, ext string) string {
	return fmt.Sprintf("%s_%s.%s", SanitizeName(name), id.String(), ext)
}

// FinalPath joins the output directory with the final stitched file name.
func FinalPath(dir, name string, id ULID, ext string) string {
	return filepath.Join(dir, FinalFileName(name, id, ext))
}
