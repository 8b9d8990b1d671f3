package capability

import (
	"fmt"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
)

const maxNotificationLen = 500

// SinkNotifier sanitizes notification content and fans it out as an
// event. Scripts feed arbitrary strings in here; everything is reduced
// to plain text before it can reach a UI surface.
type SinkNotifier struct {
	policy *bluemonday.Policy
	sink   Sink
	logger *zap.Logger
}

func NewNotifier(sink Sink, logger *zap.Logger) *SinkNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SinkNotifier{
		policy: bluemonday.StrictPolicy(),
		sink:   sink,
		logger: logger,
	}
}

func (n *SinkNotifier) Notify(script, title, text string, timeoutMs int) error {
	title = n.clean(title)
	text = n.clean(text)
	if title == "" && text == "" {
		return fmt.Errorf("notification is empty")
	}
	if timeoutMs < 0 {
		timeoutMs = 0
	}

	n.logger.Debug("userscript notification",
		zap.String("script", script), zap.String("title", title))
	n.sink.Emit(Event{
		Type:   EventNotification,
		Script: script,
		Payload: map[string]any{
			"title":   title,
			"text":    text,
			"timeout": timeoutMs,
		},
	})
	return nil
}

func (n *SinkNotifier) clean(s string) string {
	s = n.policy.Sanitize(s)
	if len(s) > maxNotificationLen {
		s = s[:maxNotificationLen]
	}
	return s
}
