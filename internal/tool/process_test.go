package tool

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, inv *Invocation) []Event {
	t.Helper()
	var got []Event
	timeout := time.After(10 * time.Second)
	for {
		select {
		case ev, ok := <-inv.Events():
			if !ok {
				return got
			}
			got = append(got, ev)
		case <-timeout:
			t.Fatal("timed out waiting for tool events")
		}
	}
}

func TestProcessInvoker_StreamsOutputThenExit(t *testing.T) {
	inv, err := ProcessInvoker{}.Start(context.Background(), "sh",
		[]string{"-c", "echo one; echo two; echo oops >&2; exit 3"})
	require.NoError(t, err)

	got := collect(t, inv)
	require.NotEmpty(t, got)

	last := got[len(got)-1]
	assert.Equal(t, Exited, last.Kind)
	assert.Equal(t, 3, last.Code)
	assert.NoError(t, last.Err)

	var stdout, stderr strings.Builder
	for _, ev := range got[:len(got)-1] {
		require.Equal(t, Output, ev.Kind, "no event may follow Exited")
		if ev.Stream == Stderr {
			stderr.WriteString(ev.Text)
		} else {
			stdout.WriteString(ev.Text)
		}
	}
	assert.Equal(t, "one\ntwo\n", stdout.String())
	assert.Equal(t, "oops\n", stderr.String())
}

func TestProcessInvoker_OverlongLineKeepsLaterOutput(t *testing.T) {
	inv, err := ProcessInvoker{}.Start(context.Background(), "sh", []string{"-c",
		`head -c 1100000 /dev/zero | tr '\0' x; echo; echo "Flashing Image 1 of 4"; printf tail`})
	require.NoError(t, err)

	got := collect(t, inv)
	require.GreaterOrEqual(t, len(got), 4)

	var stdout strings.Builder
	for _, ev := range got[:len(got)-1] {
		require.Equal(t, Output, ev.Kind)
		assert.LessOrEqual(t, len(ev.Text), maxLine)
		stdout.WriteString(ev.Text)
	}
	want := strings.Repeat("x", 1100000) + "\nFlashing Image 1 of 4\ntail\n"
	assert.Equal(t, len(want), stdout.Len())
	assert.True(t, stdout.String() == want, "stdout must survive an overlong line intact")
	assert.Equal(t, "Flashing Image 1 of 4\n", got[len(got)-3].Text)
	assert.Equal(t, 0, got[len(got)-1].Code)
}

func TestProcessInvoker_ExitZero(t *testing.T) {
	inv, err := ProcessInvoker{}.Start(context.Background(), "sh", []string{"-c", "true"})
	require.NoError(t, err)

	res, err := inv.Wait()
	require.NoError(t, err)
	assert.Equal(t, 0, res.Code)
}

func TestProcessInvoker_MissingExecutable(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "no-such-programmer")
	_, err := ProcessInvoker{}.Start(context.Background(), missing, nil)

	var launchErr *LaunchError
	require.True(t, errors.As(err, &launchErr), "expected LaunchError, got %v", err)
	assert.Equal(t, missing, launchErr.Path)
}

func TestProcessInvoker_CanceledContextDoesNotLaunch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ProcessInvoker{}.Start(ctx, "sh", []string{"-c", "true"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcessInvoker_Stop(t *testing.T) {
	inv, err := ProcessInvoker{}.Start(context.Background(), "sleep", []string{"30"})
	require.NoError(t, err)

	require.NoError(t, inv.Stop())
	// Second Stop is a no-op.
	require.NoError(t, inv.Stop())

	got := collect(t, inv)
	require.NotEmpty(t, got)
	assert.Equal(t, Exited, got[len(got)-1].Kind)
}

func TestProcessRunner_Run(t *testing.T) {
	res, err := ProcessRunner{}.Run(context.Background(), "sh", []string{"-c", "echo out; echo err >&2; exit 5"})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Code)
	assert.Equal(t, "out\n", res.Stdout)
	assert.Equal(t, "err\n", res.Stderr)
}

func TestProcessRunner_MissingExecutable(t *testing.T) {
	_, err := ProcessRunner{}.Run(context.Background(), filepath.Join(t.TempDir(), "missing"), nil)

	var launchErr *LaunchError
	assert.True(t, errors.As(err, &launchErr), "expected LaunchError, got %v", err)
}

type fakeRunner struct {
	res Result
	err error
}

func (f fakeRunner) Run(ctx context.Context, path string, args []string) (Result, error) {
	return f.res, f.err
}

func TestSyncInvoker_AdaptsResult(t *testing.T) {
	inv, err := SyncInvoker{Runner: fakeRunner{res: Result{Code: 2, Stdout: "Flashing Image 1 of 4\n", Stderr: "warn\n"}}}.
		Start(context.Background(), "sh", nil)
	require.NoError(t, err)

	got := collect(t, inv)
	require.Len(t, got, 3)
	assert.Equal(t, Event{Kind: Output, Stream: Stdout, Text: "Flashing Image 1 of 4\n"}, got[0])
	assert.Equal(t, Event{Kind: Output, Stream: Stderr, Text: "warn\n"}, got[1])
	assert.Equal(t, Exited, got[2].Kind)
	assert.Equal(t, 2, got[2].Code)
}

func TestSyncInvoker_RunError(t *testing.T) {
	boom := errors.New("boom")
	inv, err := SyncInvoker{Runner: fakeRunner{err: boom}}.Start(context.Background(), "sh", nil)
	require.NoError(t, err)

	res, err := inv.Wait()
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, -1, res.Code)
}

func TestSyncInvoker_MissingExecutable(t *testing.T) {
	_, err := SyncInvoker{Runner: fakeRunner{}}.Start(context.Background(), filepath.Join(t.TempDir(), "missing"), nil)

	var launchErr *LaunchError
	assert.True(t, errors.As(err, &launchErr))
}

// writeTool drops an executable shell script named name into dir.
func writeTool(t *testing.T, dir, name, body string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script tools")
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("#!/bin/sh\n"+body+"\n"), 0755))
}

func TestProcessInvoker_BareNameFromDir(t *testing.T) {
	dir := t.TempDir()
	writeTool(t, dir, "wifi-image-tool", `echo "Flashing Image 1 of 4"; pwd`)

	inv, err := ProcessInvoker{Dir: dir}.Start(context.Background(), "wifi-image-tool", nil)
	require.NoError(t, err)

	got := collect(t, inv)
	require.Len(t, got, 3)
	assert.Equal(t, "Flashing Image 1 of 4\n", got[0].Text)
	wantDir, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	gotDir, err := filepath.EvalSymlinks(strings.TrimSpace(got[1].Text))
	require.NoError(t, err)
	assert.Equal(t, wantDir, gotDir)
	assert.Equal(t, Exited, got[2].Kind)
	assert.Equal(t, 0, got[2].Code)
}

func TestProcessRunner_BareNameFromDir(t *testing.T) {
	dir := t.TempDir()
	writeTool(t, dir, "wifi-image-tool", "echo done; exit 4")

	res, err := ProcessRunner{Dir: dir}.Run(context.Background(), "wifi-image-tool", nil)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Code)
	assert.Equal(t, "done\n", res.Stdout)
}

func TestSyncInvoker_BareNameFromDir(t *testing.T) {
	dir := t.TempDir()
	writeTool(t, dir, "wifi-image-tool", "echo done")

	_, err := SyncInvoker{Runner: ProcessRunner{Dir: dir}}.Start(context.Background(), "wifi-image-tool", nil)
	var launchErr *LaunchError
	require.ErrorAs(t, err, &launchErr, "without Dir the tool is only searched on PATH")

	inv, err := SyncInvoker{Runner: ProcessRunner{Dir: dir}, Dir: dir}.Start(context.Background(), "wifi-image-tool", nil)
	require.NoError(t, err)
	res, err := inv.Wait()
	require.NoError(t, err)
	assert.Equal(t, 0, res.Code)
}

func TestResolvePath(t *testing.T) {
	dir := t.TempDir()
	writeTool(t, dir, "wifi-image-tool", "true")

	t.Run("bare name in dir", func(t *testing.T) {
		got, err := resolvePath(dir, "wifi-image-tool")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "wifi-image-tool"), got)
	})

	t.Run("falls back to PATH", func(t *testing.T) {
		got, err := resolvePath(dir, "sh")
		require.NoError(t, err)
		assert.True(t, filepath.IsAbs(got))
	})

	t.Run("separator is left alone", func(t *testing.T) {
		got, err := resolvePath(dir, "tools/ipecmd")
		require.NoError(t, err)
		assert.Equal(t, "tools/ipecmd", got)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := resolvePath(dir, "")
		assert.ErrorIs(t, err, exec.ErrNotFound)
	})
}

func TestResolvePath_CurrentDirectoryMatch(t *testing.T) {
	dir := t.TempDir()
	writeTool(t, dir, "wifi-image-tool", "true")
	t.Chdir(dir)
	t.Setenv("PATH", ".")

	// unset dir means the current directory is the tool directory
	got, err := resolvePath("", "wifi-image-tool")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got))
	assert.Equal(t, "wifi-image-tool", filepath.Base(got))

	// a match in the current directory is refused for an unrelated dir
	_, err = resolvePath(t.TempDir(), "wifi-image-tool")
	assert.ErrorIs(t, err, exec.ErrDot)
}
