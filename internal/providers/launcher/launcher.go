package launcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/exthost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/providers/ipc"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/shared/types"
)

const (
	StateRunning = "running"
	StateExited  = "exited"

	outputLimit = 256 * 1024
)

var ErrNotFound = errors.New("process not found")

// Spec describes a process to start
type Spec struct {
	Name    string            `json:"name"`
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Dir     string            `json:"dir,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

type process struct {
	info   types.ProcessInfo
	cmd    *exec.Cmd
	output *Buffer
	done   chan struct{}

	mu       sync.RWMutex
	exitCode *int
	exitedAt time.Time
}

// Launcher starts and tracks host processes
type Launcher struct {
	processes sync.Map // pid -> *process
	logger    *logging.Logger
}

// New creates an empty process table
func New(logger *logging.Logger) *Launcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Launcher{logger: logger.Named("launcher")}
}

// Start launches spec and begins tracking it
func (l *Launcher) Start(spec Spec) (*types.ProcessInfo, error) {
	if spec.Command == "" {
		return nil, fmt.Errorf("start process: command required")
	}
	if spec.Name == "" {
		spec.Name = spec.Command
	}

	cmd := exec.Command(spec.Command, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = os.Environ()
	for key, value := range spec.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", key, value))
	}

	output := NewBuffer(outputLimit)
	cmd.Stdout = output
	cmd.Stderr = output
	// Orphaned children may hold the output pipe open after the process dies
	cmd.WaitDelay = time.Second

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", spec.Name, err)
	}

	p := &process{
		info: types.ProcessInfo{
			PID:       cmd.Process.Pid,
			Name:      spec.Name,
			Command:   spec.Command,
			Args:      spec.Args,
			State:     StateRunning,
			StartedAt: time.Now(),
		},
		cmd:    cmd,
		output: output,
		done:   make(chan struct{}),
	}
	l.processes.Store(p.info.PID, p)
	go l.monitor(p)

	l.logger.Info("process started", zap.Int("pid", p.info.PID), zap.String("name", spec.Name))
	info := p.snapshot()
	return &info, nil
}

// monitor waits for exit and records the exit code
func (l *Launcher) monitor(p *process) {
	err := p.cmd.Wait()

	code := 0
	if p.cmd.ProcessState != nil {
		code = p.cmd.ProcessState.ExitCode()
	}

	p.mu.Lock()
	p.exitCode = &code
	p.exitedAt = time.Now()
	p.info.State = StateExited
	p.mu.Unlock()
	close(p.done)

	l.logger.Info("process exited", zap.Int("pid", p.info.PID), zap.Int("exit_code", code), zap.Error(err))
}

// Stop kills pid and waits for it to exit
func (l *Launcher) Stop(ctx context.Context, pid int) error {
	p, err := l.get(pid)
	if err != nil {
		return err
	}

	select {
	case <-p.done:
		return nil
	default:
	}

	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("stop %d: %w", pid, err)
	}
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until pid exits
func (l *Launcher) Wait(ctx context.Context, pid int) error {
	p, err := l.get(pid)
	if err != nil {
		return err
	}
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Remove forgets an exited process
func (l *Launcher) Remove(pid int) error {
	p, err := l.get(pid)
	if err != nil {
		return err
	}
	select {
	case <-p.done:
		l.processes.Delete(pid)
		return nil
	default:
		return fmt.Errorf("remove %d: process still running", pid)
	}
}

// Output returns the retained output of pid
func (l *Launcher) Output(pid int) ([]byte, error) {
	p, err := l.get(pid)
	if err != nil {
		return nil, err
	}
	return p.output.Bytes(), nil
}

// StopAll kills every running process
func (l *Launcher) StopAll(ctx context.Context) {
	l.processes.Range(func(key, _ interface{}) bool {
		if err := l.Stop(ctx, key.(int)); err != nil {
			l.logger.Warn("stop process failed", zap.Int("pid", key.(int)), zap.Error(err))
		}
		return true
	})
}

// GetActiveProcesses lists running processes sorted by pid
func (l *Launcher) GetActiveProcesses(_ context.Context) ([]types.ProcessInfo, error) {
	out := []types.ProcessInfo{}
	l.processes.Range(func(_, value interface{}) bool {
		if info := value.(*process).snapshot(); info.State == StateRunning {
			out = append(out, info)
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].PID < out[j].PID })
	return out, nil
}

// GetProcessStats returns statistics for pid
func (l *Launcher) GetProcessStats(_ context.Context, pid int) (*types.ProcessStats, error) {
	p, err := l.get(pid)
	if err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	end := time.Now()
	if !p.exitedAt.IsZero() {
		end = p.exitedAt
	}
	stats := &types.ProcessStats{
		PID:           pid,
		State:         p.info.State,
		UptimeSeconds: end.Sub(p.info.StartedAt).Seconds(),
		OutputBytes:   p.output.Total(),
	}
	if p.exitCode != nil {
		code := *p.exitCode
		stats.ExitCode = &code
	}
	return stats, nil
}

// Operations exposes the read-only process queries as host operations
func (l *Launcher) Operations() []ipc.Operation {
	return []ipc.Operation{
		{
			Name:        "launcher.list",
			Description: "Running host processes",
			Handler: func(ctx context.Context, _ ...interface{}) (interface{}, error) {
				return l.GetActiveProcesses(ctx)
			},
		},
		{
			Name:        "launcher.stats",
			Description: "Statistics for (pid)",
			Handler: func(ctx context.Context, args ...interface{}) (interface{}, error) {
				pid := ipc.IntArg(args, 0, -1)
				if pid < 0 {
					return nil, fmt.Errorf("launcher.stats: pid required")
				}
				return l.GetProcessStats(ctx, pid)
			},
		},
	}
}

func (l *Launcher) get(pid int) (*process, error) {
	value, ok := l.processes.Load(pid)
	if !ok {
		return nil, fmt.Errorf("pid %d: %w", pid, ErrNotFound)
	}
	return value.(*process), nil
}

func (p *process) snapshot() types.ProcessInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()
	info := p.info
	info.Args = append([]string(nil), p.info.Args...)
	return info
}
