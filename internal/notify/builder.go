package notify

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// waitDelay bounds how long a killed build may hold its output pipes open.
const waitDelay = 2 * time.Second

// RunResult is the outcome of one build command.
type RunResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// RunFunc runs a shell command in dir. A command that starts but exits
// non-zero is a result, not an error; errors mean it could not be run.
type RunFunc func(ctx context.Context, command, dir string) (RunResult, error)

// ShellRun runs command with /bin/sh -c in dir.
func ShellRun(ctx context.Context, command, dir string) (RunResult, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
	cmd.Dir = dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	err := cmd.Run()
	res := RunResult{Stdout: stdout.String(), Stderr: stderr.String()}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	return res, err
}

// Builder runs the build command single-flight: one run at a time, and at
// most one more queued behind it however many triggers arrive meanwhile.
type Builder struct {
	command string
	dir     string
	timeout time.Duration
	run     RunFunc
	log     zerolog.Logger

	mu      sync.Mutex
	running bool
	pending chan struct{} // closed when the queued run finishes; nil if none queued
	wg      sync.WaitGroup
}

// NewBuilder creates a builder for command. A zero timeout means none.
func NewBuilder(command, dir string, timeout time.Duration, run RunFunc, logger zerolog.Logger) *Builder {
	if run == nil {
		run = ShellRun
	}
	return &Builder{
		command: command,
		dir:     dir,
		timeout: timeout,
		run:     run,
		log:     logger,
	}
}

// Trigger requests a build. It starts one immediately when idle; otherwise
// it joins the single queued run. The returned channel is closed when the
// run covering this trigger has finished.
func (b *Builder) Trigger() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		if b.pending == nil {
			b.pending = make(chan struct{})
		}
		return b.pending
	}

	b.running = true
	done := make(chan struct{})
	b.wg.Add(1)
	go b.loop(done)
	return done
}

// Running reports whether a build is in progress.
func (b *Builder) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

// Wait blocks until no build is running or queued.
func (b *Builder) Wait() {
	b.wg.Wait()
}

func (b *Builder) loop(done chan struct{}) {
	defer b.wg.Done()
	for {
		b.runOnce()

		b.mu.Lock()
		close(done)
		if b.pending == nil {
			b.running = false
			b.mu.Unlock()
			return
		}
		done = b.pending
		b.pending = nil
		b.mu.Unlock()
	}
}

func (b *Builder) runOnce() {
	ctx := context.Background()
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	b.log.Info().Str("command", b.command).Msg("Starting build")
	start := time.Now()
	res, err := b.run(ctx, b.command, b.dir)
	if err != nil {
		b.log.Error().Err(err).Str("command", b.command).Msg("Failed to start build")
		return
	}
	if res.ExitCode != 0 {
		evt := b.log.Error().Int("exit_code", res.ExitCode).Dur("elapsed", time.Since(start))
		if stderr := strings.TrimSpace(res.Stderr); stderr != "" {
			evt = evt.Str("stderr", stderr)
		}
		evt.Msg("Build exited with non-zero code")
		return
	}
	b.log.Info().Int("exit_code", 0).Dur("elapsed", time.Since(start)).Msg("Build finished")
}
