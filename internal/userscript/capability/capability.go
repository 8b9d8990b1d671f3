// Package capability implements the host side of the userscript API:
// per-script persistent storage, guarded HTTP access, notifications,
// clipboard, and context menu commands. Scripts never touch these
// implementations directly; the page host bridges them into the
// injected shim.
package capability

import "context"

// Storage is a per-script key/value store. Keys from different scripts
// never collide.
type Storage interface {
	Get(script, key string) (any, bool, error)
	Set(script, key string, value any) error
	Delete(script, key string) error
	List(script string) ([]string, error)
}

// HTTPClient performs network requests on behalf of scripts. Do never
// returns a Go error to the caller; failures are encoded into the
// Response so script-side promise handlers always resolve.
type HTTPClient interface {
	Do(ctx context.Context, req Request) Response
}

// Notifier surfaces a user-visible notification.
type Notifier interface {
	Notify(script, title, text string, timeoutMs int) error
}

// Clipboard exposes write access to the shared clipboard.
type Clipboard interface {
	Write(script, text string) error
}

// Menu registers per-script context menu commands.
type Menu interface {
	Register(script, label string) (Command, error)
	Commands(script string) []Command
	Clear(script string)
}

// Caps bundles every capability handed to the page host.
type Caps struct {
	Storage   Storage
	HTTP      HTTPClient
	Notifier  Notifier
	Clipboard Clipboard
	Menu      Menu
}

// Event is the host-to-UI fan-out unit: notifications, registered menu
// commands, and script log lines all flow through it.
type Event struct {
	Type    string         `json:"type"`
	Script  string         `json:"script"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Event types emitted by the capability implementations.
const (
	EventNotification = "notification"
	EventMenuCommand  = "menu_command"
	EventScriptLog    = "script_log"
	EventClipboard    = "clipboard"
)

// Sink receives capability events. A nil Sink is valid and drops them.
type Sink func(Event)

// Emit delivers an event, tolerating a nil sink.
func (s Sink) Emit(e Event) {
	if s != nil {
		s(e)
	}
}
