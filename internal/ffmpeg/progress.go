package ffmpeg

import (
	"regexp"
	"strconv"
	"time"

	"github.com/recordarr/recordarr/internal/models"
)

// Regex patterns for parsing ffmpeg stats output.
var (
	frameRe   = regexp.MustCompile(`frame=\s*(\d+)`)
	fpsRe     = regexp.MustCompile(`fps=\s*([\d.]+)`)
	bitrateRe = regexp.MustCompile(`bitrate=\s*([\d.]+\s*\w+/s)`)
	timeRe    = regexp.MustCompile(`time=(\d+):(\d+):(\d+)\.(\d+)`)
	speedRe   = regexp.MustCompile(`speed=\s*([\d.]+)x`)
)

// parseProgressLine folds one stderr line into progress. It reports whether
// the line carried any stats field; other lines (codec banners, warnings)
// leave progress untouched.
func parseProgressLine(line string, progress *models.Progress) bool {
	matched := false

	if m := frameRe.FindStringSubmatch(line); len(m) > 1 {
		progress.Frame, _ = strconv.ParseInt(m[1], 10, 64)
		matched = true
	}
	if m := fpsRe.FindStringSubmatch(line); len(m) > 1 {
		progress.FPS, _ = strconv.ParseFloat(m[1], 64)
		matched = true
	}
	if m := bitrateRe.FindStringSubmatch(line); len(m) > 1 {
		progress.Bitrate = m[1]
		matched = true
	}
	if m := timeRe.FindStringSubmatch(line); len(m) > 4 {
		hours, _ := strconv.Atoi(m[1])
		mins, _ := strconv.Atoi(m[2])
		secs, _ := strconv.Atoi(m[3])
		centis, _ := strconv.Atoi(m[4])
		progress.Time = time.Duration(hours)*time.Hour +
			time.Duration(mins)*time.Minute +
			time.Duration(secs)*time.Second +
			time.Duration(centis)*10*time.Millisecond
		matched = true
	}
	if m := speedRe.FindStringSubmatch(line); len(m) > 1 {
		progress.Speed, _ = strconv.ParseFloat(m[1], 64)
		matched = true
	}

	return matched
}
