package sandbox

import (
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/voyx/engine/internal/userscript/capability"
)

// hostGlobal is the single name the capability shim binds against.
const hostGlobal = "__voyx"

// setupBridge installs the host object. Every method takes the script
// name as its first argument; the shim supplies it, so capability state
// stays namespaced even when multiple scripts share a runtime.
func (r *Runtime) setupBridge() error {
	bridge := r.vm.NewObject()

	bridge.Set("storageGet", r.bridgeStorageGet)
	bridge.Set("storageSet", r.bridgeStorageSet)
	bridge.Set("storageDelete", r.bridgeStorageDelete)
	bridge.Set("storageList", r.bridgeStorageList)
	bridge.Set("httpRequest", r.bridgeHTTPRequest)
	bridge.Set("clipboardWrite", r.bridgeClipboardWrite)
	bridge.Set("menuRegister", r.bridgeMenuRegister)
	bridge.Set("notify", r.bridgeNotify)
	bridge.Set("log", r.bridgeLog)

	return r.vm.Set(hostGlobal, bridge)
}

// observe reports a bridge invocation to the configured hook.
func (r *Runtime) observe(name string) {
	if r.config.OnCapabilityCall != nil {
		r.config.OnCapabilityCall(name)
	}
}

func (r *Runtime) bridgeStorageGet(call goja.FunctionCall) goja.Value {
	r.observe("storage.get")
	if r.caps.Storage == nil || len(call.Arguments) < 2 {
		return goja.Undefined()
	}
	script := call.Arguments[0].String()
	key := call.Arguments[1].String()

	v, ok, err := r.caps.Storage.Get(script, key)
	if err != nil {
		r.logger.Warn("storage get failed", zap.String("script", script), zap.Error(err))
		return goja.Undefined()
	}
	if !ok {
		if len(call.Arguments) >= 3 {
			return call.Arguments[2]
		}
		return goja.Undefined()
	}
	return r.vm.ToValue(v)
}

func (r *Runtime) bridgeStorageSet(call goja.FunctionCall) goja.Value {
	r.observe("storage.set")
	if r.caps.Storage == nil || len(call.Arguments) < 3 {
		return r.vm.ToValue(false)
	}
	script := call.Arguments[0].String()
	key := call.Arguments[1].String()
	value := call.Arguments[2].Export()

	if err := r.caps.Storage.Set(script, key, value); err != nil {
		r.logger.Warn("storage set failed", zap.String("script", script), zap.Error(err))
		return r.vm.ToValue(false)
	}
	return r.vm.ToValue(true)
}

func (r *Runtime) bridgeStorageDelete(call goja.FunctionCall) goja.Value {
	r.observe("storage.delete")
	if r.caps.Storage == nil || len(call.Arguments) < 2 {
		return r.vm.ToValue(false)
	}
	script := call.Arguments[0].String()
	key := call.Arguments[1].String()

	if err := r.caps.Storage.Delete(script, key); err != nil {
		r.logger.Warn("storage delete failed", zap.String("script", script), zap.Error(err))
		return r.vm.ToValue(false)
	}
	return r.vm.ToValue(true)
}

func (r *Runtime) bridgeStorageList(call goja.FunctionCall) goja.Value {
	r.observe("storage.list")
	if r.caps.Storage == nil || len(call.Arguments) < 1 {
		return r.vm.ToValue([]string{})
	}
	script := call.Arguments[0].String()

	keys, err := r.caps.Storage.List(script)
	if err != nil {
		r.logger.Warn("storage list failed", zap.String("script", script), zap.Error(err))
		keys = nil
	}
	if keys == nil {
		keys = []string{}
	}
	return r.vm.ToValue(keys)
}

// bridgeHTTPRequest queues the request; the promise resolver fires
// during the post-evaluation drain.
func (r *Runtime) bridgeHTTPRequest(call goja.FunctionCall) goja.Value {
	r.observe("http.request")
	if len(call.Arguments) < 3 {
		return goja.Undefined()
	}
	script := call.Arguments[0].String()
	resolve, ok := goja.AssertFunction(call.Arguments[2])
	if !ok {
		return goja.Undefined()
	}

	var req capability.Request
	if opts, ok := call.Arguments[1].Export().(map[string]any); ok {
		req.Method, _ = opts["method"].(string)
		req.URL, _ = opts["url"].(string)
		req.Body, _ = opts["body"].(string)
		if timeout, ok := opts["timeout"].(int64); ok {
			req.TimeoutMs = int(timeout)
		} else if timeout, ok := opts["timeout"].(float64); ok {
			req.TimeoutMs = int(timeout)
		}
		if headers, ok := opts["headers"].(map[string]any); ok {
			req.Headers = make(map[string]string, len(headers))
			for k, v := range headers {
				if s, ok := v.(string); ok {
					req.Headers[k] = s
				}
			}
		}
	}

	r.pending = append(r.pending, pendingHTTP{script: script, req: req, resolve: resolve})
	return goja.Undefined()
}

func (r *Runtime) bridgeClipboardWrite(call goja.FunctionCall) goja.Value {
	r.observe("clipboard.write")
	if r.caps.Clipboard == nil || len(call.Arguments) < 2 {
		return r.vm.ToValue(false)
	}
	script := call.Arguments[0].String()
	text := call.Arguments[1].String()

	if err := r.caps.Clipboard.Write(script, text); err != nil {
		r.logger.Warn("clipboard write failed", zap.String("script", script), zap.Error(err))
		return r.vm.ToValue(false)
	}
	return r.vm.ToValue(true)
}

func (r *Runtime) bridgeMenuRegister(call goja.FunctionCall) goja.Value {
	r.observe("menu.register")
	if r.caps.Menu == nil || len(call.Arguments) < 3 {
		return goja.Undefined()
	}
	script := call.Arguments[0].String()
	label := call.Arguments[1].String()
	handler, ok := goja.AssertFunction(call.Arguments[2])
	if !ok {
		return goja.Undefined()
	}

	cmd, err := r.caps.Menu.Register(script, label)
	if err != nil {
		r.logger.Warn("menu register failed", zap.String("script", script), zap.Error(err))
		return goja.Undefined()
	}
	r.handlers[cmd.ID] = handler
	return r.vm.ToValue(cmd.ID)
}

func (r *Runtime) bridgeNotify(call goja.FunctionCall) goja.Value {
	r.observe("notify")
	if r.caps.Notifier == nil || len(call.Arguments) < 3 {
		return r.vm.ToValue(false)
	}
	script := call.Arguments[0].String()
	title := call.Arguments[1].String()
	text := call.Arguments[2].String()
	timeoutMs := 0
	if len(call.Arguments) >= 4 {
		timeoutMs = int(call.Arguments[3].ToInteger())
	}

	if err := r.caps.Notifier.Notify(script, title, text, timeoutMs); err != nil {
		return r.vm.ToValue(false)
	}
	return r.vm.ToValue(true)
}

func (r *Runtime) bridgeLog(call goja.FunctionCall) goja.Value {
	r.observe("log")
	if len(call.Arguments) < 2 {
		return goja.Undefined()
	}
	script := call.Arguments[0].String()

	var parts []string
	if args, ok := call.Arguments[1].Export().([]any); ok {
		for _, a := range args {
			parts = append(parts, fmt.Sprintf("%v", a))
		}
	} else {
		parts = append(parts, call.Arguments[1].String())
	}
	msg := strings.Join(parts, " ")

	r.consoleMu.Lock()
	r.console = append(r.console, LogEntry{Level: "log", Message: msg, Time: time.Now()})
	r.consoleMu.Unlock()

	r.logger.Debug("userscript log", zap.String("script", script), zap.String("message", msg))
	r.sink.Emit(capability.Event{
		Type:    capability.EventScriptLog,
		Script:  script,
		Payload: map[string]any{"message": msg},
	})
	return goja.Undefined()
}
