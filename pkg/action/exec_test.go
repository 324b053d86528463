package action

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monoco-io/fabric/pkg/types"
)

func TestRunnerCapturesOutput(t *testing.T) {
	r := NewRunner(t.TempDir())
	res, err := r.Run(context.Background(), "sh", "-c", "echo out; echo err >&2")
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Contains(t, res.Stdout, "out")
	assert.Contains(t, res.Stderr, "err")
	assert.Equal(t, "out\nerr", res.CombinedOutput())
}

func TestRunnerNonZeroExitIsNotError(t *testing.T) {
	r := NewRunner(t.TempDir())
	res, err := r.Run(context.Background(), "sh", "-c", "exit 3")
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
}

func TestRunnerTimeout(t *testing.T) {
	r := NewRunner(t.TempDir()).WithTimeout(50 * time.Millisecond)
	res, err := r.Run(context.Background(), "sleep", "5")
	require.Error(t, err)
	assert.True(t, res.TimedOut)
}

func TestRunTestParsesSummary(t *testing.T) {
	a := NewRunTest(t.TempDir(), []string{"sh", "-c", "echo '12 passed, 0 failed, 12 total'"}, 0)
	res := Run(context.Background(), a, testEvent(nil))

	require.Equal(t, types.ActionSuccess, res.Status)
	counts, ok := res.Output.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 12, counts["passed"])
	assert.Equal(t, 0, counts["failed"])
	assert.Equal(t, 12, counts["total"])
	assert.Equal(t, 0, counts["exit_code"])
}

func TestRunTestFailureFollowsExitCode(t *testing.T) {
	a := NewRunTest(t.TempDir(), []string{"sh", "-c", "echo '3 passed, 1 failed'; exit 1"}, 0)
	res := Run(context.Background(), a, testEvent(nil))

	assert.Equal(t, types.ActionFailed, res.Status)
	counts, ok := res.Output.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 1, counts["failed"])
	assert.Equal(t, 1, counts["exit_code"])
}
