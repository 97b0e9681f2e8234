package cli

import (
	"bytes"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runVersion(t *testing.T, app *App, args ...string) string {
	t.Helper()
	cmd := NewVersionCmd(app)
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return buf.String()
}

func TestVersionCmd(t *testing.T) {
	app := New()
	app.SetVersion("1.2.3", "abc1234", "2026-01-15T10:30:00Z")

	want := "flashrig 1.2.3 (commit abc1234, built 2026-01-15T10:30:00Z)\n" +
		runtime.Version() + " " + runtime.GOOS + "/" + runtime.GOARCH + "\n"
	assert.Equal(t, want, runVersion(t, app))
	assert.Equal(t, "1.2.3\n", runVersion(t, app, "--short"))
}

func TestVersionCmd_UnstampedBuild(t *testing.T) {
	out := runVersion(t, New())
	assert.Contains(t, out, "flashrig dev (commit unknown, built unknown)\n")
}
