package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListSlots returns the names of slots holding views
func (h *Handlers) ListSlots(c *gin.Context) {
	ok(c, gin.H{"slots": h.deps.Runtime.Views().Slots()})
}

// GetSlotViews returns a slot's registrations in render order
func (h *Handlers) GetSlotViews(c *gin.Context) {
	slot := c.Param("slot")
	ok(c, gin.H{
		"slot":  slot,
		"views": h.deps.Runtime.GetViews(slot),
	})
}

// RenderSlot renders a slot. ?format=json returns per-view results.
func (h *Handlers) RenderSlot(c *gin.Context) {
	if h.deps.Renderer == nil {
		failf(c, http.StatusServiceUnavailable, "rendering unavailable")
		return
	}
	slot := c.Param("slot")

	if c.Query("format") == "json" {
		views, err := h.deps.Renderer.RenderViews(c.Request.Context(), slot)
		if err != nil {
			fail(c, statusFor(err), err)
			return
		}
		ok(c, gin.H{"slot": slot, "views": views})
		return
	}

	out, err := h.deps.Renderer.RenderSlot(c.Request.Context(), slot)
	if err != nil {
		fail(c, statusFor(err), err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(out))
}
