// Package slots implements the view slot registry and the slot renderer.
//
// A slot is a named extension point ("sidebar.bottom", "header.right").
// Extensions contribute views to slots; the registry keeps them in
// insertion order, which is also render order.
//
// Registering the same component again from the same extension into the
// same slot replaces the earlier registration in place with a fresh id.
// Distinct components append, so one extension may contribute several views
// to a slot.
//
// The Renderer renders every view of a slot inside its own error boundary:
// a view that fails, panics or times out becomes an inert placeholder while
// its siblings render normally. An empty slot renders nothing.
package slots
