package updater

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecErrorKeepsStderrTail(t *testing.T) {
	long := strings.Repeat("x", 600) + "actual failure reason"
	err := &ExecError{Name: "npm", Args: []string{"ci"}, Stderr: long, Err: errors.New("exit status 1")}

	msg := err.Error()
	assert.Contains(t, msg, "npm ci")
	assert.Contains(t, msg, "actual failure reason")
	assert.NotContains(t, msg, strings.Repeat("x", 500), "long stderr must be truncated to its tail")
}

func TestExecErrorTimeout(t *testing.T) {
	err := &ExecError{Name: "npm", Args: []string{"run", "build"}, TimedOut: true, Err: errors.New("signal: killed")}
	assert.Equal(t, "command timed out: npm run build", err.Error())
}

func TestExecErrorFallsBackToWrappedError(t *testing.T) {
	cause := errors.New("executable file not found")
	err := &ExecError{Name: "pm2", Args: []string{"restart", "all"}, Err: cause}
	assert.Contains(t, err.Error(), "executable file not found")
	assert.ErrorIs(t, err, cause)
}

func TestCapWriterDiscardsExcess(t *testing.T) {
	w := &capWriter{limit: 10}

	n, err := w.Write([]byte("0123456789abcdef"))
	require.NoError(t, err)
	assert.Equal(t, 16, n, "writes must report full length even when truncated")
	assert.Equal(t, "0123456789", w.buf.String())

	n, err = w.Write(bytes.Repeat([]byte("y"), 100))
	require.NoError(t, err)
	assert.Equal(t, 100, n)
	assert.Equal(t, 10, w.buf.Len())
}

func TestExecRunnerCapturesOutput(t *testing.T) {
	r := NewRunner(t.TempDir())

	res, err := r.Run("sh", []string{"-c", "echo out; echo err 1>&2"}, RunOpts{})
	require.NoError(t, err)
	assert.Equal(t, "out\n", res.Stdout)
	assert.Equal(t, "err\n", res.Stderr)
}

func TestExecRunnerReportsFailure(t *testing.T) {
	r := NewRunner(t.TempDir())

	_, err := r.Run("sh", []string{"-c", "echo broken 1>&2; exit 3"}, RunOpts{})
	require.Error(t, err)

	var execErr *ExecError
	require.ErrorAs(t, err, &execErr)
	assert.Contains(t, execErr.Stderr, "broken")
	assert.False(t, execErr.TimedOut)
}
