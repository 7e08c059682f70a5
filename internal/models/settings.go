package models

import (
	"fmt"
	"strconv"
	"time"
)

// Hardware acceleration families.
const (
	HWAccelAuto   = "auto"
	HWAccelNvidia = "nvidia"
	HWAccelIntel  = "intel"
	HWAccelAMD    = "amd"
	HWAccelNone   = "none"
)

// Container formats.
const (
	FormatMP4 = "mp4"
	FormatMKV = "mkv"
	FormatAVI = "avi"
	FormatTS  = "ts"
)

// Settings is the process-wide document of tunables. It is persisted as one
// JSON document and merged with defaults on load.
type Settings struct {
	TranscoderPath      string  `json:"transcoderPath"`
	HWAccel             string  `json:"hwAccel"`       // auto, nvidia, intel, amd, none
	OutputFormat        string  `json:"outputFormat"`  // mp4, mkv, avi, ts
	VideoCodec          string  `json:"videoCodec"`    // copy, h264, h265, vp9
	AudioCodec          string  `json:"audioCodec"`    // copy, aac, mp3, opus
	RTSPTransport       string  `json:"rtspTransport"` // tcp, udp, http
	DefaultDuration     int     `json:"defaultDuration"`     // seconds
	ReconnectAttempts   int     `json:"reconnectAttempts"`   // -1 = infinite, 0 = none
	ReconnectDelay      int     `json:"reconnectDelay"`      // seconds, >= 1
	OutputDir           string  `json:"outputDir"`
	MaxStorageGB        float64 `json:"maxStorageGb"`        // 0 = unlimited
	AutoDeleteAfterDays int     `json:"autoDeleteAfterDays"` // 0 = disabled
	PreviewEnabled      bool    `json:"previewEnabled"`
	PreviewQuality      string  `json:"previewQuality"`
	PreviewInterval     int     `json:"previewInterval"` // seconds
}

// DefaultSettings returns the built-in defaults.
func DefaultSettings() Settings {
	return Settings{
		TranscoderPath:      "ffmpeg",
		HWAccel:             HWAccelNone,
		OutputFormat:        FormatMP4,
		VideoCodec:          "copy",
		AudioCodec:          "copy",
		RTSPTransport:       "tcp",
		DefaultDuration:     3600,
		ReconnectAttempts:   5,
		ReconnectDelay:      5,
		OutputDir:           "recordings",
		MaxStorageGB:        0,
		AutoDeleteAfterDays: 0,
		PreviewEnabled:      true,
		PreviewQuality:      "medium",
		PreviewInterval:     5,
	}
}

// SettingsPatch is a partial settings document: nil fields are "leave as is".
// It is used both for API updates and for merging a possibly-sparse persisted
// document over the defaults; applying the same patch twice yields the same
// result as applying it once.
type SettingsPatch struct {
	TranscoderPath      *string  `json:"transcoderPath,omitempty"`
	HWAccel             *string  `json:"hwAccel,omitempty"`
	OutputFormat        *string  `json:"outputFormat,omitempty"`
	VideoCodec          *string  `json:"videoCodec,omitempty"`
	AudioCodec          *string  `json:"audioCodec,omitempty"`
	RTSPTransport       *string  `json:"rtspTransport,omitempty"`
	DefaultDuration     *int     `json:"defaultDuration,omitempty"`
	ReconnectAttempts   *int     `json:"reconnectAttempts,omitempty"`
	ReconnectDelay      *int     `json:"reconnectDelay,omitempty"`
	OutputDir           *string  `json:"outputDir,omitempty"`
	MaxStorageGB        *float64 `json:"maxStorageGb,omitempty"`
	AutoDeleteAfterDays *int     `json:"autoDeleteAfterDays,omitempty"`
	PreviewEnabled      *bool    `json:"previewEnabled,omitempty"`
	PreviewQuality      *string  `json:"previewQuality,omitempty"`
	PreviewInterval     *int     `json:"previewInterval,omitempty"`
}

// ApplyTo returns base with every non-nil patch field overlaid.
func (p SettingsPatch) ApplyTo(base Settings) Settings {
	out := base
	if p.TranscoderPath != nil {
		out.TranscoderPath = *p.TranscoderPath
	}
	if p.HWAccel != nil {
		out.HWAccel = *p.HWAccel
	}
	if p.OutputFormat != nil {
		out.OutputFormat = *p.OutputFormat
	}
	if p.VideoCodec != nil {
		out.VideoCodec = *p.VideoCodec
	}
	if p.AudioCodec != nil {
		out.AudioCodec = *p.AudioCodec
	}
	if p.RTSPTransport != nil {
		out.RTSPTransport = *p.RTSPTransport
	}
	if p.DefaultDuration != nil {
		out.DefaultDuration = *p.DefaultDuration
	}
	if p.ReconnectAttempts != nil {
		out.ReconnectAttempts = *p.ReconnectAttempts
	}
	if p.ReconnectDelay != nil {
		out.ReconnectDelay = *p.ReconnectDelay
	}
	if p.OutputDir != nil {
		out.OutputDir = *p.OutputDir
	}
	if p.MaxStorageGB != nil {
		out.MaxStorageGB = *p.MaxStorageGB
	}
	if p.AutoDeleteAfterDays != nil {
		out.AutoDeleteAfterDays = *p.AutoDeleteAfterDays
	}
	if p.PreviewEnabled != nil {
		out.PreviewEnabled = *p.PreviewEnabled
	}
	if p.PreviewQuality != nil {
		out.PreviewQuality = *p.PreviewQuality
	}
	if p.PreviewInterval != nil {
		out.PreviewInterval = *p.PreviewInterval
	}
	return out
}

// Validate checks enumerated options and numeric ranges.
func (s Settings) Validate() error {
	switch s.HWAccel {
	case HWAccelAuto, HWAccelNvidia, HWAccelIntel, HWAccelAMD, HWAccelNone:
	default:
		return ErrValidation{Field: "hwAccel", Message: "must be auto, nvidia, intel, amd, or none"}
	}
	switch s.OutputFormat {
	case FormatMP4, FormatMKV, FormatAVI, FormatTS:
	default:
		return ErrValidation{Field: "outputFormat", Message: "must be mp4, mkv, avi, or ts"}
	}
	switch s.VideoCodec {
	case "copy", "h264", "h265", "vp9":
	default:
		return ErrValidation{Field: "videoCodec", Message: "must be copy, h264, h265, or vp9"}
	}
	switch s.AudioCodec {
	case "copy", "aac", "mp3", "opus":
	default:
		return ErrValidation{Field: "audioCodec", Message: "must be copy, aac, mp3, or opus"}
	}
	switch s.RTSPTransport {
	case "tcp", "udp", "http":
	default:
		return ErrValidation{Field: "rtspTransport", Message: "must be tcp, udp, or http"}
	}
	if s.DefaultDuration <= 0 {
		return ErrValidation{Field: "defaultDuration", Message: "must be positive"}
	}
	if s.ReconnectAttempts < -1 {
		return ErrValidation{Field: "reconnectAttempts", Message: "must be -1, 0, or positive"}
	}
	if s.ReconnectDelay < 1 {
		return ErrValidation{Field: "reconnectDelay", Message: "must be at least 1 second"}
	}
	if s.MaxStorageGB < 0 {
		return ErrValidation{Field: "maxStorageGb", Message: "must be zero or positive"}
	}
	if s.AutoDeleteAfterDays < 0 {
		return ErrValidation{Field: "autoDeleteAfterDays", Message: "must be zero or positive"}
	}
	return nil
}

// Extension returns the output file extension for the configured container.
func (s Settings) Extension() string {
	return s.OutputFormat
}

// ReconnectDelayDuration returns the reconnect delay as a time.Duration.
func (s Settings) ReconnectDelayDuration() time.Duration {
	return time.Duration(s.ReconnectDelay) * time.Second
}

// hwaccelInputArgs maps the acceleration family to the transcoder's input
// hwaccel flags.
func (s Settings) hwaccelInputArgs() []string {
	switch s.HWAccel {
	case HWAccelNvidia:
		return []string{"-hwaccel", "cuda", "-hwaccel_output_format", "cuda"}
	case HWAccelIntel:
		return []string{"-hwaccel", "qsv", "-hwaccel_output_format", "qsv"}
	case HWAccelAMD:
		return []string{"-hwaccel", "amf"}
	case HWAccelAuto:
		return []string{"-hwaccel", "auto"}
	default:
		return nil
	}
}

// VideoEncoder resolves the concrete encoder from (codec, hwaccel).
// "copy" short-circuits regardless of acceleration. Families with no encoder
// for the requested codec fall back to the software encoder.
func (s Settings) VideoEncoder() string {
	if s.VideoCodec == "copy" {
		return "copy"
	}
	software := map[string]string{"h264": "libx264", "h265": "libx265", "vp9": "libvpx-vp9"}
	switch s.HWAccel {
	case HWAccelNvidia:
		if enc, ok := map[string]string{"h264": "h264_nvenc", "h265": "hevc_nvenc"}[s.VideoCodec]; ok {
			return enc
		}
	case HWAccelIntel:
		if enc, ok := map[string]string{"h264": "h264_qsv", "h265": "hevc_qsv", "vp9": "vp9_qsv"}[s.VideoCodec]; ok {
			return enc
		}
	case HWAccelAMD:
		if enc, ok := map[string]string{"h264": "h264_amf", "h265": "hevc_amf"}[s.VideoCodec]; ok {
			return enc
		}
	}
	return software[s.VideoCodec]
}

// AudioEncoder resolves the concrete audio encoder.
func (s Settings) AudioEncoder() string {
	switch s.AudioCodec {
	case "aac":
		return "aac"
	case "mp3":
		return "libmp3lame"
	case "opus":
		return "libopus"
	default:
		return "copy"
	}
}

// containerArgs returns container-specific mux flags.
func (s Settings) containerArgs() []string {
	if s.OutputFormat == FormatMP4 {
		return []string{"-movflags", "+faststart"}
	}
	return nil
}

// BuildCaptureArgs returns the ordered transcoder argument list for one
// capture attempt. It is a pure function of (url, outPath, durationSecs) and
// the receiver; build order is:
//
//	[hwaccel-input]*, -rtsp_transport <t>, -rtsp_flags prefer_tcp,
//	-i <url>, -c:v <enc>, -c:a <enc>, -t <duration>, [container-flags]*,
//	-y, <outPath>
func (s Settings) BuildCaptureArgs(url, outPath string, durationSecs int) ([]string, error) {
	if url == "" {
		return nil, ErrURLRequired
	}
	if outPath == "" {
		return nil, ErrValidation{Field: "outPath", Message: "output path is required"}
	}
	if durationSecs <= 0 {
		return nil, ErrInvalidDuration
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("building transcoder args: %w", err)
	}

	args := append([]string{}, s.hwaccelInputArgs()...)
	args = append(args,
		"-rtsp_transport", s.RTSPTransport,
		"-rtsp_flags", "prefer_tcp",
		"-i", url,
		"-c:v", s.VideoEncoder(),
		"-c:a", s.AudioEncoder(),
		"-t", strconv.Itoa(durationSecs),
	)
	args = append(args, s.containerArgs()...)
	args = append(args, "-y", outPath)
	return args, nil
}
