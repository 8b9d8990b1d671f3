package capability

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Command is one registered context menu entry.
type Command struct {
	ID     string `json:"id"`
	Script string `json:"script"`
	Label  string `json:"label"`
}

// MenuRegistry tracks commands per script. Clear is called before a
// script re-runs so stale entries never accumulate across injections.
type MenuRegistry struct {
	mu       sync.Mutex
	byScript map[string][]Command
	sink     Sink
}

func NewMenu(sink Sink) *MenuRegistry {
	return &MenuRegistry{byScript: make(map[string][]Command), sink: sink}
}

func (m *MenuRegistry) Register(script, label string) (Command, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return Command{}, fmt.Errorf("menu label required")
	}

	cmd := Command{ID: uuid.NewString(), Script: script, Label: label}

	m.mu.Lock()
	m.byScript[script] = append(m.byScript[script], cmd)
	m.mu.Unlock()

	m.sink.Emit(Event{
		Type:    EventMenuCommand,
		Script:  script,
		Payload: map[string]any{"id": cmd.ID, "label": cmd.Label},
	})
	return cmd, nil
}

func (m *MenuRegistry) Commands(script string) []Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Command(nil), m.byScript[script]...)
}

func (m *MenuRegistry) Clear(script string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byScript, script)
}
