package sandbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/voyx/engine/internal/userscript/capability"
)

// ErrTooManyRequests is reported when a script exceeds the per-execution
// HTTP call budget; further promises resolve with an error response.
var ErrTooManyRequests = errors.New("http call budget exceeded")

// pendingHTTP queues one script request with its promise resolver until
// the main evaluation finishes.
type pendingHTTP struct {
	script  string
	req     capability.Request
	resolve goja.Callable
}

// Runtime is one isolated goja VM wired to the capability bridge.
type Runtime struct {
	vm     *goja.Runtime
	config Config
	caps   capability.Caps
	sink   capability.Sink
	logger *zap.Logger

	mu sync.Mutex // serializes Execute/RunScript on the VM

	console   []LogEntry
	consoleMu sync.Mutex

	pending  []pendingHTTP
	handlers map[string]goja.Callable // menu command id -> handler
}

// New creates a runtime bound to the given capabilities.
func New(config Config, caps capability.Caps, sink capability.Sink, logger *zap.Logger) (*Runtime, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Runtime{
		vm:       goja.New(),
		config:   config,
		caps:     caps,
		sink:     sink,
		logger:   logger,
		handlers: make(map[string]goja.Callable),
	}
	r.vm.SetMaxCallStackSize(1024)
	if err := r.setupGlobals(); err != nil {
		return nil, err
	}
	return r, nil
}

// Execute runs script code under the runtime's limits, then drains any
// HTTP requests the code queued. scriptName scopes the bridge calls the
// code makes outside the shim's own namespacing.
func (r *Runtime) Execute(ctx context.Context, scriptName, code string) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()

	r.consoleMu.Lock()
	r.console = nil
	r.consoleMu.Unlock()
	r.pending = nil

	deadline := time.Now().Add(r.config.Timeout)
	execCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	done := make(chan struct{})
	go func() {
		select {
		case <-execCtx.Done():
			r.vm.Interrupt("execution timeout exceeded")
		case <-done:
		}
	}()

	val, err := r.vm.RunString(code)
	if err == nil {
		err = r.drainPending(execCtx)
	}
	close(done)
	r.vm.ClearInterrupt()

	result := &Result{Duration: time.Since(start)}
	r.consoleMu.Lock()
	result.Console = append([]LogEntry(nil), r.console...)
	r.consoleMu.Unlock()

	if err != nil {
		r.logger.Debug("script execution failed",
			zap.String("script", scriptName), zap.Error(err))
		return result, err
	}
	if val != nil && !goja.IsUndefined(val) && !goja.IsNull(val) {
		result.Value = val.Export()
	}
	return result, nil
}

// RunScript satisfies the page host contract used by the policy engine
// and paywall bypasser. It runs host-generated code, not script code,
// under the same limits.
func (r *Runtime) RunScript(code string) (any, error) {
	result, err := r.Execute(context.Background(), "", code)
	if err != nil {
		return nil, err
	}
	return result.Value, nil
}

// RunCommand invokes a registered menu command handler by id.
func (r *Runtime) RunCommand(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	handler, ok := r.handlers[id]
	if !ok {
		return fmt.Errorf("unknown menu command: %s", id)
	}
	_, err := handler(goja.Undefined())
	return err
}

// Reset discards all VM state, keeping configuration and capabilities.
func (r *Runtime) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.vm = goja.New()
	r.vm.SetMaxCallStackSize(1024)
	r.handlers = make(map[string]goja.Callable)
	r.pending = nil
	r.consoleMu.Lock()
	r.console = nil
	r.consoleMu.Unlock()
	return r.setupGlobals()
}

// Close releases the VM.
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vm = nil
	r.handlers = nil
	return nil
}

// drainPending performs queued HTTP requests and resolves their
// promises. Resolvers run on this goroutine and may queue more work.
func (r *Runtime) drainPending(ctx context.Context) error {
	budget := r.config.MaxHTTPCalls
	if budget <= 0 {
		budget = DefaultConfig().MaxHTTPCalls
	}

	performed := 0
	for len(r.pending) > 0 {
		p := r.pending[0]
		r.pending = r.pending[1:]

		var resp capability.Response
		switch {
		case performed >= budget:
			resp = capability.Response{Error: ErrTooManyRequests.Error()}
		case r.caps.HTTP == nil:
			resp = capability.Response{Error: "http capability not available"}
		default:
			resp = r.caps.HTTP.Do(ctx, p.req)
			performed++
		}

		if _, err := p.resolve(goja.Undefined(), r.vm.ToValue(responseMap(resp))); err != nil {
			return fmt.Errorf("http resolver failed: %w", err)
		}
	}
	return nil
}

func responseMap(resp capability.Response) map[string]any {
	m := map[string]any{
		"status": resp.Status,
		"body":   resp.Body,
	}
	if len(resp.Headers) > 0 {
		m["headers"] = resp.Headers
	}
	if resp.Error != "" {
		m["error"] = resp.Error
	}
	return m
}

func (r *Runtime) setupGlobals() error {
	// Remove the Node.js surface.
	r.vm.Set("require", goja.Undefined())
	r.vm.Set("process", goja.Undefined())
	r.vm.Set("module", goja.Undefined())
	r.vm.Set("exports", goja.Undefined())
	r.vm.Set("globalThis", r.vm.GlobalObject())

	// Timers are no-ops; queued work has nowhere to run after Execute
	// returns.
	noop := func(call goja.FunctionCall) goja.Value { return goja.Undefined() }
	r.vm.Set("setTimeout", noop)
	r.vm.Set("setInterval", noop)

	if r.config.EnableConsole {
		console := r.vm.NewObject()
		for _, level := range []string{"log", "warn", "error", "info"} {
			console.Set(level, r.makeConsoleFunc(level))
		}
		r.vm.Set("console", console)
	}

	return r.setupBridge()
}

func (r *Runtime) makeConsoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		var msg string
		for i, arg := range call.Arguments {
			if i > 0 {
				msg += " "
			}
			msg += arg.String()
		}
		r.consoleMu.Lock()
		r.console = append(r.console, LogEntry{Level: level, Message: msg, Time: time.Now()})
		r.consoleMu.Unlock()
		return goja.Undefined()
	}
}
