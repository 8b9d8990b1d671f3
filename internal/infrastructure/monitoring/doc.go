/*
Package monitoring provides performance monitoring and metrics collection.

# Overview

This package implements Prometheus-based metrics collection for the content
policy engine, tracking HTTP requests, policy decisions, rule reloads,
userscript activity, and system metrics.

# Features

- HTTP request metrics (latency, throughput)
- Policy decision metrics (verdicts, reasons, latency)
- Rule set metrics (reload counts, rules per category)
- Userscript metrics (loaded scripts, injections, capability calls)
- Paywall bypass metrics
- WebSocket connection metrics
- System metrics (uptime)

# Usage

	// Create metrics collector
	metrics := monitoring.NewMetrics()

	// Add middleware to Gin router
	router.Use(monitoring.Middleware(metrics))

	// Record domain metrics
	metrics.RecordDecision("navigate", "block", "phishing", d, true)
	metrics.SetScriptsLoaded(3)

# Metrics Endpoint

Expose metrics via the standard Prometheus endpoint:

	import "github.com/prometheus/client_golang/prometheus/promhttp"
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
*/
package monitoring
