/*
Package monitoring provides metrics collection for the extension host.

# Overview

Prometheus metrics cover HTTP requests, extension lifecycle transitions,
hook durations, slot occupancy, toasts, installs and websocket traffic.

# Usage

	// Create metrics collector
	metrics := monitoring.NewMetrics()

	// Add middleware to Gin router
	router.Use(monitoring.Middleware(metrics))

	// Time a hook
	timer := monitoring.NewTimer(metrics, "activate")
	// ... call into the extension ...
	timer.Stop()

# Metrics Endpoint

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
*/
package monitoring
