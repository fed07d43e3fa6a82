package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Diagnostic output kept per job; ffmpeg can produce megabytes of stderr
// on pathological inputs
const maxDiagnosticsBytes = 16 * 1024

// Result reports the outcome of one external process run
type Result struct {
	Success      bool
	BytesWritten int64
	Diagnostics  string
}

// Runner executes capture plans as external processes. The process is
// spawned from an explicit argument vector, never through a shell, so
// file paths with shell metacharacters cannot inject commands.
type Runner struct {
	timeout time.Duration
	logger  *logrus.Logger
}

// NewRunner creates a runner with a hard wall-clock ceiling per job
func NewRunner(timeout time.Duration, logger *logrus.Logger) *Runner {
	return &Runner{
		timeout: timeout,
		logger:  logger,
	}
}

// Run executes the plan and waits for the process to exit. It returns
// failure on non-zero exit, on a missing or empty output file, and when
// the wall-clock ceiling kills a wedged process. Diagnostics hold the
// tail of the process's stderr in every case.
func (r *Runner) Run(ctx context.Context, plan *Plan) Result {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	r.logger.WithFields(logrus.Fields{
		"args":   strings.Join(plan.Args, " "),
		"output": plan.OutputPath,
	}).Info("Running ffmpeg")

	cmd := exec.CommandContext(ctx, plan.Args[0], plan.Args[1:]...)
	stderr := &tailBuffer{max: maxDiagnosticsBytes}
	cmd.Stderr = stderr

	runErr := cmd.Run()
	diagnostics := stderr.String()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		r.logger.WithField("timeout", r.timeout).Error("ffmpeg job killed after timeout")
		return Result{
			Diagnostics: fmt.Sprintf("process killed after %s\n%s", r.timeout, diagnostics),
		}
	}

	if runErr != nil {
		r.logger.WithError(runErr).WithField("stderr", diagnostics).Error("ffmpeg failed")
		return Result{Diagnostics: diagnostics}
	}

	info, err := os.Stat(plan.OutputPath)
	if err != nil || info.Size() == 0 {
		r.logger.WithField("output", plan.OutputPath).Error("ffmpeg produced no output file")
		return Result{
			Diagnostics: fmt.Sprintf("process exited cleanly but produced no output\n%s", diagnostics),
		}
	}

	r.logger.WithFields(logrus.Fields{
		"output":     plan.OutputPath,
		"size_bytes": info.Size(),
	}).Info("ffmpeg completed")

	return Result{
		Success:      true,
		BytesWritten: info.Size(),
		Diagnostics:  diagnostics,
	}
}

// tailBuffer keeps only the most recent max bytes written to it
type tailBuffer struct {
	max int
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if len(t.buf) > t.max {
		t.buf = t.buf[len(t.buf)-t.max:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	return strings.TrimSpace(string(t.buf))
}
