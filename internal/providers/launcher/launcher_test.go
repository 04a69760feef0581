package launcher

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/exthost/internal/providers/ipc"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestStartCapturesOutputAndExitCode(t *testing.T) {
	requireShell(t)
	l := New(nil)

	info, err := l.Start(Spec{Name: "greeter", Command: "sh", Args: []string{"-c", "echo hello; exit 3"}})
	require.NoError(t, err)
	assert.Equal(t, "greeter", info.Name)
	assert.Equal(t, StateRunning, info.State)

	require.NoError(t, l.Wait(waitCtx(t), info.PID))

	out, err := l.Output(info.PID)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(out))

	stats, err := l.GetProcessStats(context.Background(), info.PID)
	require.NoError(t, err)
	assert.Equal(t, StateExited, stats.State)
	require.NotNil(t, stats.ExitCode)
	assert.Equal(t, 3, *stats.ExitCode)
	assert.Equal(t, int64(6), stats.OutputBytes)

	active, err := l.GetActiveProcesses(context.Background())
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestStopRunningProcess(t *testing.T) {
	requireShell(t)
	l := New(nil)

	info, err := l.Start(Spec{Command: "sh", Args: []string{"-c", "exec sleep 30"}})
	require.NoError(t, err)
	assert.Equal(t, "sh", info.Name)

	active, err := l.GetActiveProcesses(context.Background())
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, info.PID, active[0].PID)

	assert.Error(t, l.Remove(info.PID))
	require.NoError(t, l.Stop(waitCtx(t), info.PID))
	require.NoError(t, l.Stop(waitCtx(t), info.PID))

	require.NoError(t, l.Remove(info.PID))
	_, err = l.GetProcessStats(context.Background(), info.PID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStartErrors(t *testing.T) {
	l := New(nil)
	_, err := l.Start(Spec{})
	assert.Error(t, err)

	_, err = l.Start(Spec{Command: "/definitely/not/a/binary"})
	assert.Error(t, err)
}

func TestHostOperations(t *testing.T) {
	requireShell(t)
	l := New(nil)
	b := ipc.NewBridge(nil)
	b.Register(l)

	info, err := l.Start(Spec{Command: "sh", Args: []string{"-c", "exec sleep 30"}})
	require.NoError(t, err)
	t.Cleanup(func() { l.StopAll(context.Background()) })

	got, err := b.InvokeHostOperation(context.Background(), "launcher.list")
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = b.InvokeHostOperation(context.Background(), "launcher.stats", int64(info.PID))
	require.NoError(t, err)
	assert.NotNil(t, got)

	_, err = b.InvokeHostOperation(context.Background(), "launcher.stats")
	assert.Error(t, err)
}

func TestBufferKeepsTail(t *testing.T) {
	b := NewBuffer(4)
	_, _ = b.Write([]byte("abc"))
	_, _ = b.Write([]byte("def"))

	assert.Equal(t, "cdef", string(b.Bytes()))
	assert.Equal(t, int64(6), b.Total())
}
