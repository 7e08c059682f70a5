package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// snapshotTimeout bounds a preview grab. A capture on a wedged file must not
// hold a worker forever; past the deadline the process is killed.
const snapshotTimeout = 10 * time.Second

// Snapshot extracts a single preview frame from a recorded file.
func (r *ExecRunner) Snapshot(ctx context.Context, binary, videoPath, outPath string) error {
	ctx, cancel := context.WithTimeout(ctx, snapshotTimeout)
	defer cancel()

	args := []string{
		"-ss", "00:00:01",
		"-i", videoPath,
		"-frames:v", "1",
		"-q:v", "2",
		"-y", outPath,
	}
	cmd := exec.CommandContext(ctx, binary, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		os.Remove(outPath)
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("snapshot timed out after %s", snapshotTimeout)
		}
		last := lastLine(string(out))
		if last != "" {
			return fmt.Errorf("snapshot failed: %w: %s", err, last)
		}
		return fmt.Errorf("snapshot failed: %w", err)
	}
	return nil
}
