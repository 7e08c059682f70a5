package ffmpeg

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// stitchSizeRatio is the minimum final/segments size ratio for a stitch to
// count as successful. Container overhead shrinks the output slightly; a
// large shortfall means the concat silently dropped data.
const stitchSizeRatio = 0.9

// Stitch combines attempt segments into the final output file. A single
// segment is renamed into place without re-muxing. Multiple segments go
// through the concat demuxer with stream copy, and the result is accepted
// only if its size is close to the sum of the inputs. Segments are removed
// only after a verified stitch; on failure they stay on disk.
func (r *ExecRunner) Stitch(ctx context.Context, binary string, segments []string, finalPath string) error {
	if len(segments) == 0 {
		return fmt.Errorf("no segments to stitch")
	}
	if len(segments) == 1 {
		if err := os.Rename(segments[0], finalPath); err != nil {
			return fmt.Errorf("renaming segment to final path: %w", err)
		}
		return nil
	}

	var total int64
	for _, seg := range segments {
		info, err := os.Stat(seg)
		if err != nil {
			return fmt.Errorf("stat segment %s: %w", seg, err)
		}
		total += info.Size()
	}

	listPath, err := writeConcatList(segments, finalPath)
	if err != nil {
		return err
	}
	defer os.Remove(listPath)

	args := []string{
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		"-y", finalPath,
	}
	cmd := exec.CommandContext(ctx, binary, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		os.Remove(finalPath)
		last := lastLine(string(out))
		if last != "" {
			return fmt.Errorf("concat failed: %w: %s", err, last)
		}
		return fmt.Errorf("concat failed: %w", err)
	}

	info, err := os.Stat(finalPath)
	if err != nil {
		return fmt.Errorf("stat stitched output: %w", err)
	}
	if float64(info.Size()) < float64(total)*stitchSizeRatio {
		os.Remove(finalPath)
		return fmt.Errorf("stitched output too small: %d of %d bytes", info.Size(), total)
	}

	for _, seg := range segments {
		if err := os.Remove(seg); err != nil {
			r.logger.Warn("removing stitched segment",
				slog.String("segment", seg),
				slog.String("error", err.Error()))
		}
	}
	return nil
}

// writeConcatList writes the concat demuxer input file next to the final
// output. Entries are relative to the list's directory, single-quoted with
// embedded quotes escaped the way the demuxer expects.
func writeConcatList(segments []string, finalPath string) (string, error) {
	var b strings.Builder
	for _, seg := range segments {
		name := filepath.Base(seg)
		escaped := strings.ReplaceAll(name, "'", `'\''`)
		fmt.Fprintf(&b, "file '%s'\n", escaped)
	}
	listPath := finalPath + ".concat.txt"
	if err := os.WriteFile(listPath, []byte(b.String()), 0640); err != nil {
		return "", fmt.Errorf("writing concat list: %w", err)
	}
	return listPath, nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
