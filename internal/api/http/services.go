package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ListToasts returns recent toasts, newest first
func (h *Handlers) ListToasts(c *gin.Context) {
	if h.deps.Toasts == nil {
		ok(c, gin.H{"toasts": []interface{}{}})
		return
	}
	ok(c, gin.H{"toasts": h.deps.Toasts.Recent(queryLimit(c, 20, 100))})
}

// ListProcesses lists running host processes
func (h *Handlers) ListProcesses(c *gin.Context) {
	if h.deps.Processes == nil {
		failf(c, http.StatusServiceUnavailable, "process table unavailable")
		return
	}
	procs, err := h.deps.Processes.GetActiveProcesses(c.Request.Context())
	if err != nil {
		fail(c, statusFor(err), err)
		return
	}
	ok(c, gin.H{"processes": procs})
}

// GetProcess returns stats for one process
func (h *Handlers) GetProcess(c *gin.Context) {
	if h.deps.Processes == nil {
		failf(c, http.StatusServiceUnavailable, "process table unavailable")
		return
	}
	pid, err := strconv.Atoi(c.Param("pid"))
	if err != nil || pid <= 0 {
		failf(c, http.StatusBadRequest, "invalid pid")
		return
	}
	stats, err := h.deps.Processes.GetProcessStats(c.Request.Context(), pid)
	if err != nil {
		fail(c, statusFor(err), err)
		return
	}
	ok(c, stats)
}

// ListOperations lists host operations extensions may call
func (h *Handlers) ListOperations(c *gin.Context) {
	if h.deps.Operations == nil {
		ok(c, gin.H{"operations": []interface{}{}})
		return
	}
	ok(c, gin.H{"operations": h.deps.Operations.Operations()})
}

// InvokeOperation calls a host operation directly, for diagnostics
func (h *Handlers) InvokeOperation(c *gin.Context) {
	if h.deps.Operations == nil {
		failf(c, http.StatusServiceUnavailable, "host operations unavailable")
		return
	}

	var req struct {
		Args []interface{} `json:"args"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			failf(c, http.StatusBadRequest, "Invalid request: "+err.Error())
			return
		}
	}

	result, err := h.deps.Operations.InvokeHostOperation(c.Request.Context(), c.Param("name"), req.Args...)
	if err != nil {
		fail(c, statusFor(err), err)
		return
	}
	ok(c, result)
}

// MetricsSummary returns a JSON snapshot for dashboards
func (h *Handlers) MetricsSummary(c *gin.Context) {
	summary := gin.H{"extensions": h.deps.Runtime.Stats()}
	if h.deps.Metrics != nil {
		summary["http"] = h.deps.Metrics.Snapshot()
	}
	if len(h.deps.Breakers) > 0 {
		breakers := make(map[string]gin.H, len(h.deps.Breakers))
		for _, b := range h.deps.Breakers {
			counts := b.Counts()
			breakers[b.Name()] = gin.H{
				"state":                b.State().String(),
				"requests":             counts.Requests,
				"consecutive_failures": counts.ConsecutiveFailures,
			}
		}
		summary["breakers"] = breakers
	}
	ok(c, summary)
}
