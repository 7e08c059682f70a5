// Package ffmpeg drives the transcoder binary: spawning capture processes,
// parsing their output for progress, stitching attempt segments, and grabbing
// preview snapshots.
package ffmpeg

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/recordarr/recordarr/internal/models"
)

const (
	// maxOutputLines bounds the in-memory output ring buffer per capture.
	maxOutputLines = 100
	// cancelGrace bounds how long an interrupted capture may keep running
	// after context cancellation before it is killed.
	cancelGrace = 10 * time.Second
)

// CaptureRequest describes one capture attempt to spawn.
type CaptureRequest struct {
	Binary string
	Args   []string

	// LogPath, when set, receives the verbatim transcoder output with a
	// session header and footer. Appended, so attempts of one recording
	// share a file.
	LogPath string

	// OnProgress is invoked for every output line that carries stats
	// counters. May be nil.
	OnProgress func(models.Progress)
}

// Handle is a running capture attempt.
type Handle interface {
	// Done is closed when the process has exited and its output is drained.
	Done() <-chan struct{}
	// Err returns the exit error, decorated with the last output line.
	// Valid after Done is closed; nil means a zero exit.
	Err() error
	// Stop asks the transcoder to finish cleanly so the container index is
	// written. The process exits on its own afterwards.
	Stop() error
	// Kill terminates the process immediately.
	Kill() error
	// Stats reports live resource usage of the capture process.
	Stats() ProcessStats
}

// Runner spawns transcoder processes. The interface exists so the supervisor
// can be tested against a fake.
type Runner interface {
	StartCapture(ctx context.Context, req CaptureRequest) (Handle, error)
	Stitch(ctx context.Context, binary string, segments []string, finalPath string) error
	Snapshot(ctx context.Context, binary, videoPath, outPath string) error
}

// ExecRunner runs the real binary via os/exec.
type ExecRunner struct {
	logger *slog.Logger
}

// NewRunner creates an ExecRunner.
func NewRunner() *ExecRunner {
	return &ExecRunner{logger: slog.Default()}
}

// WithLogger sets a custom logger.
func (r *ExecRunner) WithLogger(logger *slog.Logger) *ExecRunner {
	r.logger = logger
	return r
}

// StartCapture spawns one capture attempt and begins consuming its output.
// Both child streams are merged into one pipe: progress lines arrive on
// stderr, but a misconfigured invocation may talk on stdout too.
func (r *ExecRunner) StartCapture(ctx context.Context, req CaptureRequest) (Handle, error) {
	cmd := exec.CommandContext(ctx, req.Binary, req.Args...)
	// Cancellation sends the same soft interrupt as Stop so the transcoder
	// can still write the container index; WaitDelay bounds how long it may
	// take before the process is killed.
	cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGINT) }
	cmd.WaitDelay = cancelGrace

	outR, outW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("creating output pipe: %w", err)
	}
	cmd.Stdout = outW
	cmd.Stderr = outW
	if err := cmd.Start(); err != nil {
		outR.Close()
		outW.Close()
		return nil, fmt.Errorf("starting %s: %w", req.Binary, err)
	}
	outW.Close()

	c := &capture{
		cmd:     cmd,
		logger:  r.logger,
		done:    make(chan struct{}),
		monitor: NewProcessMonitor(cmd.Process.Pid),
	}
	c.monitor.Start()

	outputDone := make(chan struct{})
	go c.consumeOutput(outR, req, outputDone)
	go func() {
		waitErr := cmd.Wait()
		<-outputDone
		c.monitor.Stop()
		c.finish(waitErr)
	}()
	return c, nil
}

type capture struct {
	cmd     *exec.Cmd
	logger  *slog.Logger
	done    chan struct{}
	monitor *ProcessMonitor

	mu          sync.Mutex
	err         error
	outputLines []string
}

func (c *capture) Done() <-chan struct{} { return c.done }

func (c *capture) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *capture) Stop() error {
	if c.cmd.Process == nil {
		return nil
	}
	return c.cmd.Process.Signal(syscall.SIGINT)
}

func (c *capture) Kill() error {
	if c.cmd.Process == nil {
		return nil
	}
	return c.cmd.Process.Kill()
}

// Stats returns current resource usage of the capture process.
func (c *capture) Stats() ProcessStats {
	return c.monitor.Stats()
}

// finish records the exit error, decorated with the last output line, and
// closes done.
func (c *capture) finish(waitErr error) {
	// Wait reports the context error even when the interrupted process
	// exited zero; a zero exit is a clean exit.
	if waitErr != nil && c.cmd.ProcessState != nil && c.cmd.ProcessState.Success() {
		waitErr = nil
	}

	c.mu.Lock()
	if waitErr != nil {
		last := ""
		if n := len(c.outputLines); n > 0 {
			last = c.outputLines[n-1]
		}
		if last != "" {
			c.err = fmt.Errorf("%w: %s", waitErr, last)
		} else {
			c.err = waitErr
		}
	}
	c.mu.Unlock()
	close(c.done)
}

// consumeOutput scans the transcoder's merged output, folding stats lines
// into a progress snapshot and appending everything verbatim to the session
// log.
func (c *capture) consumeOutput(out io.ReadCloser, req CaptureRequest, done chan struct{}) {
	defer close(done)
	defer out.Close()

	var logFile *os.File
	if req.LogPath != "" {
		var err error
		logFile, err = os.OpenFile(req.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640)
		if err != nil {
			c.logger.Warn("opening capture log file",
				slog.String("path", req.LogPath),
				slog.String("error", err.Error()))
		} else {
			defer logFile.Close()
			fmt.Fprintf(logFile, "\n=== capture started at %s ===\n", time.Now().Format(time.RFC3339))
			fmt.Fprintf(logFile, "Command: %s %s\n\n", req.Binary, strings.Join(req.Args, " "))
		}
	}

	scanner := bufio.NewScanner(out)
	scanner.Split(scanCarriageLines)
	var progress models.Progress
	for scanner.Scan() {
		line := scanner.Text()

		c.mu.Lock()
		if len(c.outputLines) >= maxOutputLines {
			c.outputLines = c.outputLines[1:]
		}
		c.outputLines = append(c.outputLines, line)
		c.mu.Unlock()

		if logFile != nil {
			fmt.Fprintln(logFile, line)
		}

		if parseProgressLine(line, &progress) && req.OnProgress != nil {
			req.OnProgress(progress)
		}
	}

	if logFile != nil {
		fmt.Fprintf(logFile, "\n=== capture ended at %s ===\n", time.Now().Format(time.RFC3339))
	}
}

// scanCarriageLines splits on \n like bufio.ScanLines but also on bare \r,
// which is how the transcoder terminates its in-place stats updates.
func scanCarriageLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	for i, b := range data {
		if b == '\n' || b == '\r' {
			// Swallow the \n of a \r\n pair.
			if b == '\r' && i+1 < len(data) && data[i+1] == '\n' {
				return i + 2, data[:i], nil
			}
			if b == '\r' && i+1 == len(data) && !atEOF {
				// Might be the first half of \r\n; wait for more data.
				return 0, nil, nil
			}
			return i + 1, data[:i], nil
		}
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}
