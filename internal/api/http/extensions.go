package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/exthost/internal/shared/types"
)

// ExtensionView pairs a descriptor with its runtime status
type ExtensionView struct {
	types.ExtensionDescriptor
	Status *types.ExtensionStatus `json:"status,omitempty"`
}

// ListExtensions lists installed extensions with their state
func (h *Handlers) ListExtensions(c *gin.Context) {
	rt := h.deps.Runtime
	descs := rt.InstalledExtensions()

	out := make([]ExtensionView, 0, len(descs))
	for _, d := range descs {
		view := ExtensionView{ExtensionDescriptor: d}
		if st, found := rt.Status(d.ID); found {
			view.Status = &st
		}
		out = append(out, view)
	}

	ok(c, gin.H{
		"extensions": out,
		"stats":      rt.Stats(),
		"loading":    rt.Loading(),
	})
}

// GetExtension returns one extension's status
func (h *Handlers) GetExtension(c *gin.Context) {
	extID, valid := extensionID(c)
	if !valid {
		return
	}
	st, found := h.deps.Runtime.Status(extID)
	if !found {
		failf(c, http.StatusNotFound, "extension not found: "+extID)
		return
	}
	ok(c, st)
}

// RefreshExtensions re-lists packages and reconciles
func (h *Handlers) RefreshExtensions(c *gin.Context) {
	if err := h.deps.Runtime.Refresh(c.Request.Context()); err != nil {
		fail(c, statusFor(err), err)
		return
	}
	ok(c, h.deps.Runtime.Stats())
}

// ToggleExtension persists the enabled flag and reconciles
func (h *Handlers) ToggleExtension(c *gin.Context) {
	extID, valid := extensionID(c)
	if !valid {
		return
	}

	var req struct {
		Enabled *bool `json:"enabled" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		failf(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	if err := h.deps.Runtime.ToggleExtension(c.Request.Context(), extID, *req.Enabled); err != nil {
		h.logger.Warn("toggle failed", zap.String("extension_id", extID), zap.Error(err))
		fail(c, statusFor(err), err)
		return
	}
	h.respondStatus(c, extID)
}

// ReloadExtension unloads and loads an enabled extension
func (h *Handlers) ReloadExtension(c *gin.Context) {
	extID, valid := extensionID(c)
	if !valid {
		return
	}
	if err := h.deps.Runtime.Reload(c.Request.Context(), extID); err != nil {
		fail(c, statusFor(err), err)
		return
	}
	h.respondStatus(c, extID)
}

// InstallExtension installs a package from a local path or URL
func (h *Handlers) InstallExtension(c *gin.Context) {
	var req struct {
		Path string `json:"path" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		failf(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	if err := h.deps.Runtime.HandleNewExtensionFile(c.Request.Context(), req.Path); err != nil {
		h.logger.Warn("install failed", zap.String("path", req.Path), zap.Error(err))
		fail(c, statusFor(err), err)
		return
	}
	ok(c, h.deps.Runtime.Stats())
}

// RemoveExtension unloads and deletes a package
func (h *Handlers) RemoveExtension(c *gin.Context) {
	extID, valid := extensionID(c)
	if !valid {
		return
	}
	if err := h.deps.Runtime.RemoveExtension(c.Request.Context(), extID); err != nil {
		fail(c, statusFor(err), err)
		return
	}
	ok(c, gin.H{"removed": extID})
}

func (h *Handlers) respondStatus(c *gin.Context, extID string) {
	st, found := h.deps.Runtime.Status(extID)
	if !found {
		ok(c, gin.H{"id": extID})
		return
	}
	ok(c, st)
}
