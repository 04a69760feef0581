package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/exthost/internal/providers/system"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/shared/utils"
)

const maxLogBatch = 200

// UILogEntry represents a log entry from the UI
type UILogEntry struct {
	ID          string                 `json:"id"`
	Level       string                 `json:"level"`
	Message     string                 `json:"message"`
	ExtensionID string                 `json:"extension_id,omitempty"`
	Context     map[string]interface{} `json:"context"`
	Timestamp   string                 `json:"timestamp"`
}

// UILogStreamRequest represents a batch of logs from the UI
type UILogStreamRequest struct {
	Source  string       `json:"source"` // "ui"
	Entries []UILogEntry `json:"entries"`
}

// StreamLogs accepts log batches from the UI shell
func (h *Handlers) StreamLogs(c *gin.Context) {
	var req UILogStreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failf(c, http.StatusBadRequest, "Invalid log request format")
		return
	}
	if req.Source != "ui" {
		failf(c, http.StatusBadRequest, "Invalid log source")
		return
	}
	if len(req.Entries) == 0 {
		failf(c, http.StatusBadRequest, "No log entries provided")
		return
	}
	if len(req.Entries) > maxLogBatch {
		req.Entries = req.Entries[:maxLogBatch]
	}

	processed := 0
	for _, entry := range req.Entries {
		if err := utils.ValidateString(entry.Message, "message", 1, utils.MaxDescriptionLength, true); err != nil {
			continue
		}
		h.processUILogEntry(entry)
		processed++
	}

	ok(c, gin.H{
		"entries_received":  len(req.Entries),
		"entries_processed": processed,
	})
}

func (h *Handlers) processUILogEntry(entry UILogEntry) {
	fields := make([]zap.Field, 0, len(entry.Context)+3)
	fields = append(fields,
		zap.String("ui_log_id", entry.ID),
		zap.String("source", "ui"),
		zap.String("ui_timestamp", entry.Timestamp),
	)
	if entry.ExtensionID != "" {
		fields = append(fields, zap.String("extension_id", entry.ExtensionID))
	}
	for key, value := range entry.Context {
		fields = append(fields, zap.Any(key, value))
	}

	level := entry.Level
	switch level {
	case "error":
		h.logger.Error(entry.Message, fields...)
	case "warn":
		h.logger.Warn(entry.Message, fields...)
	case "debug", "verbose":
		level = "debug"
		h.logger.Debug(entry.Message, fields...)
	default:
		level = "info"
		h.logger.Info(entry.Message, fields...)
	}

	if h.deps.Logs != nil {
		h.deps.Logs.Add(&system.LogEntry{
			Timestamp:   time.Now(),
			Level:       level,
			Message:     entry.Message,
			ExtensionID: entry.ExtensionID,
			Context:     entry.Context,
		})
	}
}

// GetLogs returns buffered log lines, optionally for one extension
func (h *Handlers) GetLogs(c *gin.Context) {
	if h.deps.Logs == nil {
		ok(c, gin.H{"logs": []interface{}{}})
		return
	}

	limit := queryLimit(c, 100, 1000)
	var logs []system.LogEntry
	if extID := c.Query("extension_id"); extID != "" {
		logs = h.deps.Logs.ForExtension(extID, limit)
	} else {
		logs = h.deps.Logs.GetRecent(limit, c.Query("level"))
	}
	ok(c, gin.H{"logs": logs, "total": h.deps.Logs.Len()})
}
