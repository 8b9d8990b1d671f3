/*
Package tracing provides lightweight request tracing.

Each HTTP request gets a trace and span ID, propagated via the
X-Trace-ID and X-Span-ID headers so the browser process can correlate
its own logs with engine spans. Completed spans are logged through zap
with duration, status, and tags.

Usage:

	tracer := tracing.New("engine", logger)
	router.Use(tracing.HTTPMiddleware(tracer))

	span, ctx := tracer.StartSpan(ctx, "operation")
	defer func() {
		span.Finish()
		tracer.Submit(span)
	}()
*/
package tracing
