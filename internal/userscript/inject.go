package userscript

import (
	"strings"
	"text/template"
)

// shimVersion is bumped whenever the generated capability surface
// changes shape.
const shimVersion = "1"

// shimTemplate is the fixed capability shim wrapped around every
// injected script. The script name is JS-string-escaped before
// substitution, so a hostile filename cannot break out of the literal.
// The inner IIFE isolates the user code's lexical scope from the shim
// and from other scripts; the capability objects are the only names
// shared into it.
var shimTemplate = template.Must(template.New("shim").Parse(`// voyx capability shim v{{.Version}}
(function() {
    'use strict';
    var __script = "{{.Name}}";
    var __host = (typeof __voyx !== 'undefined') ? __voyx : null;
    if (!__host) { return; }

    var storage = {
        get: function(key, def) { return __host.storageGet(__script, key, def); },
        set: function(key, value) { return __host.storageSet(__script, key, value); },
        delete: function(key) { return __host.storageDelete(__script, key); },
        list: function() { return __host.storageList(__script); }
    };
    var http = {
        request: function(method, url, headers, body, timeout) {
            return new Promise(function(resolve) {
                __host.httpRequest(__script, {
                    method: method, url: url, headers: headers,
                    body: body, timeout: timeout
                }, resolve);
            });
        }
    };
    var clipboard = {
        write: function(text) { return __host.clipboardWrite(__script, text); }
    };
    var menu = {
        register: function(name, handler) { return __host.menuRegister(__script, name, handler); }
    };
    function notify(title, text, timeoutMs) {
        return __host.notify(__script, title, text, timeoutMs || 0);
    }
    function log() {
        return __host.log(__script, Array.prototype.slice.call(arguments));
    }

    (function() {
        'use strict';
{{.Code}}
    })();
})();
`))

type shimData struct {
	Version string
	Name    string
	Code    string
}

// InjectionCodeFor returns the exact string the page host executes for a
// script: capability shim bound to the script's own storage namespace,
// user code isolated in its own scope. Disabled scripts produce "".
func InjectionCodeFor(s *Userscript) string {
	if !s.Enabled {
		return ""
	}
	var b strings.Builder
	err := shimTemplate.Execute(&b, shimData{
		Version: shimVersion,
		Name:    template.JSEscapeString(s.Name),
		Code:    s.Code,
	})
	if err != nil {
		// The template is static; execution can only fail on a writer
		// error, which strings.Builder never returns.
		return ""
	}
	return b.String()
}
