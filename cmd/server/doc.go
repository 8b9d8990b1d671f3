// Package main is the entry point for the content policy engine server.
//
// The server hosts a browser shell's policy plane: blocklist-driven
// request filtering, HTTPS-only enforcement, paywall bypass techniques,
// and a userscript registry with a sandboxed capability API.
//
// The browser process talks to it over a small REST surface and receives
// capability events (notifications, menu commands, script logs) over a
// WebSocket stream.
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//   - Defaults for development
//
// Usage:
//
//	# Production mode
//	./server -port 8900 -data /var/lib/voyx
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
