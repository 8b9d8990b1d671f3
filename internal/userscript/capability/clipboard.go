package capability

import (
	"fmt"
	"sync"
)

const maxClipboardLen = 1 << 20

// MemClipboard holds one clipboard value shared across scripts. The
// host is expected to mirror writes into the system clipboard through
// the event sink.
type MemClipboard struct {
	mu    sync.Mutex
	value string
	sink  Sink
}

func NewClipboard(sink Sink) *MemClipboard {
	return &MemClipboard{sink: sink}
}

func (c *MemClipboard) Write(script, text string) error {
	if len(text) > maxClipboardLen {
		return fmt.Errorf("clipboard content too large")
	}

	c.mu.Lock()
	c.value = text
	c.mu.Unlock()

	c.sink.Emit(Event{
		Type:    EventClipboard,
		Script:  script,
		Payload: map[string]any{"text": text},
	})
	return nil
}

// Read returns the last written value.
func (c *MemClipboard) Read() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}
