// Package config provides 12-factor configuration management for the extension host.
//
// Configuration is loaded from environment variables with sensible defaults.
// CLI flags can override environment variables for development flexibility.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host, shutdown)
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting configuration
//   - Extensions: Install root and hook timeouts
//   - Storage, Content, Install: Host services backing the runtime
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Server running on %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//
// Environment Variables:
//   - PORT, HOST, SHUTDOWN_TIMEOUT
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
//   - EXTENSIONS_DIR, EXT_EVAL_TIMEOUT, EXT_ACTIVATION_TIMEOUT,
//     EXT_DEACTIVATION_TIMEOUT, EXT_RENDER_TIMEOUT, EXT_TOAST_RATE, EXT_TOAST_BURST
//   - STORAGE_DIR, CONTENT_BASE_URL, CONTENT_TIMEOUT
//   - INSTALL_WATCH_DIR, INSTALL_PATTERNS, INSTALL_CONFIRM, INSTALL_CONFIRM_TIMEOUT
package config
