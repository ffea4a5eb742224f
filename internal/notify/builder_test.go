package notify

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatedRun is a RunFunc whose runs block until released one at a time.
type gatedRun struct {
	started atomic.Int32
	release chan struct{}
}

func newGatedRun() *gatedRun {
	return &gatedRun{release: make(chan struct{})}
}

func (g *gatedRun) run(ctx context.Context, command, dir string) (RunResult, error) {
	g.started.Add(1)
	<-g.release
	return RunResult{}, nil
}

func TestBuilder_SingleFlight(t *testing.T) {
	g := newGatedRun()
	b := NewBuilder("make site", "", 0, g.run, zerolog.Nop())

	first := b.Trigger()
	require.Eventually(t, func() bool { return g.started.Load() == 1 }, time.Second, time.Millisecond)

	second := b.Trigger()
	third := b.Trigger()
	fourth := b.Trigger()
	assert.Equal(t, second, third, "triggers during a run share the queued run")
	assert.Equal(t, second, fourth)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), g.started.Load(), "no second run starts while the first is active")
	assert.True(t, b.Running())

	g.release <- struct{}{}
	<-first
	require.Eventually(t, func() bool { return g.started.Load() == 2 }, time.Second, time.Millisecond)

	g.release <- struct{}{}
	<-second
	b.Wait()
	assert.Equal(t, int32(2), g.started.Load(), "exactly one extra run follows the first")
	assert.False(t, b.Running())

	// Idle again: the next trigger starts a fresh run.
	next := b.Trigger()
	require.Eventually(t, func() bool { return g.started.Load() == 3 }, time.Second, time.Millisecond)
	g.release <- struct{}{}
	<-next
}

func TestBuilder_FailuresDoNotBlock(t *testing.T) {
	var buf bytes.Buffer
	var calls atomic.Int32
	run := func(ctx context.Context, command, dir string) (RunResult, error) {
		switch calls.Add(1) {
		case 1:
			return RunResult{ExitCode: 2, Stderr: "boom\n"}, nil
		case 2:
			return RunResult{}, errors.New("no such shell")
		default:
			return RunResult{}, nil
		}
	}
	b := NewBuilder("false", "", 0, run, zerolog.New(&buf))

	<-b.Trigger()
	<-b.Trigger()
	<-b.Trigger()
	b.Wait()

	assert.Equal(t, int32(3), calls.Load())
	out := buf.String()
	assert.Contains(t, out, `"exit_code":2`)
	assert.Contains(t, out, `"stderr":"boom"`)
	assert.Contains(t, out, "Failed to start build")
	assert.Contains(t, out, "Build finished")
}

func TestShellRun(t *testing.T) {
	dir := t.TempDir()

	res, err := ShellRun(context.Background(), "echo out; echo err >&2; touch built; exit 3", dir)
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "out\n", res.Stdout)
	assert.Equal(t, "err\n", res.Stderr)
	_, err = os.Stat(filepath.Join(dir, "built"))
	assert.NoError(t, err, "command runs in the given directory")

	res, err = ShellRun(context.Background(), "pwd", dir)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	resolved, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	assert.Equal(t, resolved, strings.TrimSpace(res.Stdout))
}

func TestShellRun_Timeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	res, err := ShellRun(ctx, "sleep 5", t.TempDir())
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 4*time.Second)
	if err == nil {
		assert.NotEqual(t, 0, res.ExitCode)
	}
}
