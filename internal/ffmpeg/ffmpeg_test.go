package ffmpeg

import (
	"bufio"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recordarr/recordarr/internal/models"
)

// writeScript writes an executable shell script standing in for the
// transcoder binary.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	path := filepath.Join(t.TempDir(), "fake-transcoder.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755))
	return path
}

func TestParseProgressLine(t *testing.T) {
	var p models.Progress
	line := "frame= 1234 fps= 25.0 q=-1.0 size=  10240KiB time=00:01:23.45 bitrate=1006.1kbits/s speed=1.01x"
	require.True(t, parseProgressLine(line, &p))

	assert.Equal(t, int64(1234), p.Frame)
	assert.Equal(t, 25.0, p.FPS)
	assert.Equal(t, time.Minute+23*time.Second+450*time.Millisecond, p.Time)
	assert.Equal(t, "1006.1kbits/s", p.Bitrate)
	assert.Equal(t, 1.01, p.Speed)
}

func TestParseProgressLinePartial(t *testing.T) {
	p := models.Progress{Frame: 10, FPS: 30}
	require.True(t, parseProgressLine("frame=   20 q=-1.0", &p))

	// Unmatched fields keep their previous values.
	assert.Equal(t, int64(20), p.Frame)
	assert.Equal(t, 30.0, p.FPS)
}

func TestParseProgressLineIgnoresNoise(t *testing.T) {
	var p models.Progress
	assert.False(t, parseProgressLine("Stream #0:0: Video: h264", &p))
	assert.False(t, parseProgressLine("[rtsp @ 0x5555] method DESCRIBE failed", &p))
	assert.Equal(t, models.Progress{}, p)
}

func TestScanCarriageLines(t *testing.T) {
	input := "first\rsecond\r\nthird\nfourth"
	scanner := bufio.NewScanner(strings.NewReader(input))
	scanner.Split(scanCarriageLines)

	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	assert.Equal(t, []string{"first", "second", "third", "fourth"}, lines)
}

func TestStartCaptureProgressAndLog(t *testing.T) {
	script := writeScript(t, strings.Join([]string{
		`echo "Input #0, rtsp, from 'rtsp://cam/stream':" >&2`,
		`echo "frame=   10 fps= 25.0 time=00:00:00.40 bitrate= 900.0kbits/s speed=1.0x" >&2`,
		`echo "frame=   50 fps= 25.0 time=00:00:02.00 bitrate= 950.0kbits/s speed=1.0x" >&2`,
	}, "\n"))
	logPath := filepath.Join(t.TempDir(), "capture.log")

	var mu sync.Mutex
	var last models.Progress
	handle, err := NewRunner().StartCapture(context.Background(), CaptureRequest{
		Binary:  script,
		Args:    []string{"-i", "rtsp://cam/stream"},
		LogPath: logPath,
		OnProgress: func(p models.Progress) {
			mu.Lock()
			last = p
			mu.Unlock()
		},
	})
	require.NoError(t, err)

	<-handle.Done()
	require.NoError(t, handle.Err())

	mu.Lock()
	assert.Equal(t, int64(50), last.Frame)
	assert.Equal(t, 2*time.Second, last.Time)
	mu.Unlock()

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	log := string(data)
	assert.Contains(t, log, "=== capture started at")
	assert.Contains(t, log, "Command: "+script)
	assert.Contains(t, log, "Input #0, rtsp")
	assert.Contains(t, log, "frame=   50")
	assert.Contains(t, log, "=== capture ended at")

	assert.NotZero(t, handle.Stats().PID)
}

func TestStartCaptureFailureDecoratesError(t *testing.T) {
	script := writeScript(t, strings.Join([]string{
		`echo "rtsp://cam/stream: Connection refused" >&2`,
		`exit 1`,
	}, "\n"))

	handle, err := NewRunner().StartCapture(context.Background(), CaptureRequest{
		Binary: script,
	})
	require.NoError(t, err)

	<-handle.Done()
	err = handle.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Connection refused")
}

func TestStartCaptureLogsBothStreams(t *testing.T) {
	script := writeScript(t, strings.Join([]string{
		`echo "wrote to stdout"`,
		`echo "wrote to stderr" >&2`,
	}, "\n"))
	logPath := filepath.Join(t.TempDir(), "capture.log")

	handle, err := NewRunner().StartCapture(context.Background(), CaptureRequest{
		Binary:  script,
		LogPath: logPath,
	})
	require.NoError(t, err)

	<-handle.Done()
	require.NoError(t, handle.Err())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "wrote to stdout")
	assert.Contains(t, string(data), "wrote to stderr")
}

func TestCaptureStopIsGraceful(t *testing.T) {
	script := writeScript(t, strings.Join([]string{
		`trap 'exit 0' INT`,
		`i=0`,
		`while [ $i -lt 100 ]; do sleep 0.1; i=$((i+1)); done`,
		`exit 7`,
	}, "\n"))

	handle, err := NewRunner().StartCapture(context.Background(), CaptureRequest{Binary: script})
	require.NoError(t, err)

	time.Sleep(200 * time.Millisecond)
	require.NoError(t, handle.Stop())

	select {
	case <-handle.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("capture did not exit after stop")
	}
	assert.NoError(t, handle.Err())
}

func TestCaptureContextCancelAllowsCleanExit(t *testing.T) {
	// The trap stands in for the transcoder finalizing its container after
	// the interrupt; an immediate kill would surface as "signal: killed".
	script := writeScript(t, strings.Join([]string{
		`trap 'sleep 0.2; exit 0' INT`,
		`i=0`,
		`while [ $i -lt 100 ]; do sleep 0.1; i=$((i+1)); done`,
		`exit 7`,
	}, "\n"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	handle, err := NewRunner().StartCapture(ctx, CaptureRequest{Binary: script})
	require.NoError(t, err)

	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case <-handle.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("capture did not exit after cancellation")
	}
	assert.NoError(t, handle.Err())
}

func TestStitchSingleSegmentRenames(t *testing.T) {
	dir := t.TempDir()
	seg := filepath.Join(dir, "cam_2026-01-02T03-04-05Z_attempt1.mp4")
	final := filepath.Join(dir, "cam_final.mp4")
	require.NoError(t, os.WriteFile(seg, []byte("payload"), 0640))

	require.NoError(t, NewRunner().Stitch(context.Background(), "unused", []string{seg}, final))

	assert.NoFileExists(t, seg)
	data, err := os.ReadFile(final)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestStitchNoSegments(t *testing.T) {
	err := NewRunner().Stitch(context.Background(), "unused", nil, "out.mp4")
	assert.Error(t, err)
}

// concatScript emulates the concat demuxer: it reads the list file passed
// after -i and concatenates the referenced segments into the last argument.
const concatScript = `
list=""
prev=""
for a in "$@"; do
  if [ "$prev" = "-i" ]; then list="$a"; fi
  prev="$a"
  last="$a"
done
dir=$(dirname "$list")
: > "$last"
while IFS= read -r line; do
  f=${line#file \'}
  f=${f%\'}
  cat "$dir/$f" >> "$last"
done < "$list"
`

func TestStitchConcatAndCleanup(t *testing.T) {
	script := writeScript(t, concatScript)
	dir := t.TempDir()
	seg1 := filepath.Join(dir, "cam_attempt1.mp4")
	seg2 := filepath.Join(dir, "cam_attempt2.mp4")
	final := filepath.Join(dir, "cam_final.mp4")
	require.NoError(t, os.WriteFile(seg1, []byte(strings.Repeat("a", 1000)), 0640))
	require.NoError(t, os.WriteFile(seg2, []byte(strings.Repeat("b", 500)), 0640))

	require.NoError(t, NewRunner().Stitch(context.Background(), script, []string{seg1, seg2}, final))

	info, err := os.Stat(final)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), info.Size())

	// Segments and list file are gone after a verified stitch.
	assert.NoFileExists(t, seg1)
	assert.NoFileExists(t, seg2)
	assert.NoFileExists(t, final+".concat.txt")
}

func TestStitchRejectsShortOutput(t *testing.T) {
	// The fake binary writes a final file far smaller than the inputs.
	script := writeScript(t, `for a in "$@"; do last="$a"; done; echo tiny > "$last"`)
	dir := t.TempDir()
	seg1 := filepath.Join(dir, "a.mp4")
	seg2 := filepath.Join(dir, "b.mp4")
	final := filepath.Join(dir, "final.mp4")
	require.NoError(t, os.WriteFile(seg1, []byte(strings.Repeat("a", 1000)), 0640))
	require.NoError(t, os.WriteFile(seg2, []byte(strings.Repeat("b", 1000)), 0640))

	err := NewRunner().Stitch(context.Background(), script, []string{seg1, seg2}, final)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too small")

	// Inputs survive a failed stitch; the partial output does not.
	assert.FileExists(t, seg1)
	assert.FileExists(t, seg2)
	assert.NoFileExists(t, final)
}

func TestWriteConcatListEscaping(t *testing.T) {
	dir := t.TempDir()
	final := filepath.Join(dir, "out.mp4")
	segments := []string{
		filepath.Join(dir, "plain.mp4"),
		filepath.Join(dir, "it's here.mp4"),
	}

	listPath, err := writeConcatList(segments, final)
	require.NoError(t, err)
	defer os.Remove(listPath)

	data, err := os.ReadFile(listPath)
	require.NoError(t, err)
	assert.Equal(t, "file 'plain.mp4'\nfile 'it'\\''s here.mp4'\n", string(data))
}

func TestSnapshotFailureRemovesOutput(t *testing.T) {
	script := writeScript(t, strings.Join([]string{
		`for a in "$@"; do last="$a"; done`,
		`echo partial > "$last"`,
		`echo "Invalid data found when processing input" >&2`,
		`exit 1`,
	}, "\n"))
	out := filepath.Join(t.TempDir(), "preview.jpg")

	err := NewRunner().Snapshot(context.Background(), script, "missing.mp4", out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid data")
	assert.NoFileExists(t, out)
}

func TestProcessMonitorSamplesSelf(t *testing.T) {
	pm := NewProcessMonitor(os.Getpid())
	pm.Start()
	time.Sleep(50 * time.Millisecond)
	pm.Stop()

	stats := pm.Stats()
	assert.Equal(t, os.Getpid(), stats.PID)
	assert.Greater(t, stats.MemoryRSSBytes, uint64(0))
	assert.False(t, stats.LastUpdated.IsZero())
}
