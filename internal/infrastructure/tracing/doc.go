/*
Package tracing provides lightweight request and transition tracing.

# Overview

Spans are collected on a buffered channel and emitted as structured log
lines. HTTP requests are traced by middleware; extension load, unload and
reload transitions are traced by the runtime with an extension_id tag.

# Usage

	// Create tracer
	tracer := tracing.New("exthost", logger)
	defer tracer.Close()

	// HTTP middleware
	router.Use(tracing.HTTPMiddleware(tracer))

	// Wrap an operation
	err := tracer.Trace(ctx, "extension.load", map[string]string{
		"extension_id": id,
	}, func(ctx context.Context) error {
		return load(ctx)
	})

# Trace Format

Traces use standard HTTP headers for propagation:

	X-Trace-ID: req_01HF...
	X-Span-ID:  req_01HF...
*/
package tracing
