package system

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/GriffinCanCode/AgentOS/exthost/internal/domain/capability"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/providers/ipc"
)

const defaultLogLimit = 100

// Provider implements system information and utilities
type Provider struct {
	startTime time.Time
	logs      *CircularLogBuffer
	now       func() time.Time
}

// NewProvider creates a system provider
func NewProvider() *Provider {
	return &Provider{
		startTime: time.Now(),
		logs:      NewCircularLogBuffer(1000),
		now:       time.Now,
	}
}

// Logs exposes the extension log buffer
func (s *Provider) Logs() *CircularLogBuffer {
	return s.logs
}

// Operations returns the host operations this provider contributes
func (s *Provider) Operations() []ipc.Operation {
	return []ipc.Operation{
		{Name: "system.info", Description: "Host runtime information", Handler: s.info},
		{Name: "system.time", Description: "Current server time", Handler: s.currentTime},
		{Name: "system.log", Description: "Append (message, level?) to the extension log", Handler: s.log},
		{Name: "system.getLogs", Description: "Recent extension logs (limit?, level?)", Handler: s.getLogs},
		{Name: "system.ping", Description: "Availability check", Handler: s.ping},
	}
}

func (s *Provider) info(_ context.Context, _ ...interface{}) (interface{}, error) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]interface{}{
		"go_version":     runtime.Version(),
		"os":             runtime.GOOS,
		"arch":           runtime.GOARCH,
		"cpus":           runtime.NumCPU(),
		"goroutines":     runtime.NumGoroutine(),
		"memory_alloc":   m.Alloc / 1024 / 1024, // MB
		"memory_sys":     m.Sys / 1024 / 1024,   // MB
		"uptime_seconds": s.now().Sub(s.startTime).Seconds(),
	}, nil
}

func (s *Provider) currentTime(_ context.Context, _ ...interface{}) (interface{}, error) {
	now := s.now()
	return map[string]interface{}{
		"timestamp": now.Unix(),
		"iso":       now.Format(time.RFC3339),
		"unix_ms":   now.UnixMilli(),
	}, nil
}

func (s *Provider) log(ctx context.Context, args ...interface{}) (interface{}, error) {
	message, ok := ipc.StringArg(args, 0)
	if !ok || message == "" {
		return nil, fmt.Errorf("system.log: message required")
	}

	level := "info"
	if l, ok := ipc.StringArg(args, 1); ok && l != "" {
		level = l
	}

	entry := &LogEntry{
		Timestamp: s.now(),
		Level:     level,
		Message:   message,
	}
	if extID, ok := capability.ExtensionIDFromContext(ctx); ok {
		entry.ExtensionID = extID
	}
	if fields, ok := ipc.MapArg(args, 2); ok {
		entry.Context = fields
	}

	s.logs.Add(entry)
	return true, nil
}

func (s *Provider) getLogs(_ context.Context, args ...interface{}) (interface{}, error) {
	limit := ipc.IntArg(args, 0, defaultLogLimit)
	if limit <= 0 {
		limit = defaultLogLimit
	}
	level, _ := ipc.StringArg(args, 1)

	logs := s.logs.GetRecent(limit, level)
	return map[string]interface{}{
		"logs":  logs,
		"count": len(logs),
	}, nil
}

func (s *Provider) ping(_ context.Context, _ ...interface{}) (interface{}, error) {
	return map[string]interface{}{
		"pong":      true,
		"timestamp": s.now().Unix(),
	}, nil
}
