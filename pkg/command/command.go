package command

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/converge/pkg/log"
	"github.com/cuemby/converge/pkg/metrics"
	"github.com/cuemby/converge/pkg/types"
)

// Output is the captured result of one command invocation
type Output struct {
	Command string
	Stdout  []byte
	Stderr  []byte
}

// Lines returns stdout split into trimmed, non-empty lines
func (o *Output) Lines() []string {
	var lines []string
	for _, line := range strings.Split(string(o.Stdout), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// Runner runs external programs
type Runner interface {
	// Run executes name with args, feeding stdin when it is non-nil. A
	// non-zero exit is returned as an error wrapping types.ErrPrimitive.
	Run(ctx context.Context, stdin []byte, name string, args ...string) (*Output, error)

	// LookPath reports whether name can be executed
	LookPath(name string) bool
}

// ExecRunner runs commands on the host with os/exec
type ExecRunner struct {
	// Prefix is prepended to every command line (e.g. nsenter into PID 1)
	Prefix []string

	// Timeout bounds each command; zero means the command may block forever
	Timeout time.Duration

	logger zerolog.Logger
}

// NewExecRunner creates a runner for the given command prefix
func NewExecRunner(prefix []string, timeout time.Duration) *ExecRunner {
	return &ExecRunner{
		Prefix:  prefix,
		Timeout: timeout,
		logger:  log.WithComponent("command"),
	}
}

// Run executes the command and captures its output
func (r *ExecRunner) Run(ctx context.Context, stdin []byte, name string, args ...string) (*Output, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	argv := append(append([]string{}, r.Prefix...), name)
	argv = append(argv, args...)

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	label := filepath.Base(name)
	timer := metrics.NewTimer()
	r.logger.Debug().Str("cmd", cmd.String()).Msg("running command")

	err := cmd.Run()
	timer.ObserveDurationVec(metrics.CommandDuration, label)

	out := &Output{
		Command: cmd.String(),
		Stdout:  stdout.Bytes(),
		Stderr:  stderr.Bytes(),
	}

	if err != nil {
		metrics.CommandFailures.WithLabelValues(label).Inc()
		msg := strings.TrimSpace(stderr.String())
		r.logger.Warn().Err(err).Str("cmd", out.Command).Str("stderr", msg).Msg("command failed")
		if msg != "" {
			return out, fmt.Errorf("%w: %s: %v: %s", types.ErrPrimitive, label, err, msg)
		}
		return out, fmt.Errorf("%w: %s: %v", types.ErrPrimitive, label, err)
	}

	return out, nil
}

// LookPath reports whether name is found on PATH, or exists when absolute
func (r *ExecRunner) LookPath(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
