package paywall

import (
	"sync"

	"go.uber.org/zap"

	"github.com/voyx/engine/internal/rules"
)

// Runner executes JavaScript in the context of the current page.
type Runner interface {
	RunScript(code string) (any, error)
}

// Bypasser applies the technique table to pages as they finish loading.
// Beyond the builtin table it also honors paywall rules loaded from
// technique files, so deployments can ship site fixes without a new
// binary.
type Bypasser struct {
	logger   *zap.Logger
	snapshot func() *rules.Snapshot

	mu         sync.RWMutex
	enabled    bool
	techniques []Technique
}

// NewBypasser creates an enabled bypasser with the builtin techniques.
// snapshot may be nil when no rule store is wired in.
func NewBypasser(snapshot func() *rules.Snapshot, logger *zap.Logger) *Bypasser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bypasser{
		logger:     logger,
		snapshot:   snapshot,
		enabled:    true,
		techniques: builtinTechniques(),
	}
}

// Enabled reports whether Apply does anything.
func (b *Bypasser) Enabled() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.enabled
}

// SetEnabled toggles the bypasser.
func (b *Bypasser) SetEnabled(enabled bool) {
	b.mu.Lock()
	b.enabled = enabled
	b.mu.Unlock()
}

// Techniques returns the current table's names in order.
func (b *Bypasser) Techniques() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, len(b.techniques))
	for i := range b.techniques {
		names[i] = b.techniques[i].Name
	}
	return names
}

// Add appends a custom technique to the table.
func (b *Bypasser) Add(name string, patterns []string, action rules.Action) {
	b.mu.Lock()
	b.techniques = append(b.techniques, newTechnique(name, patterns, action))
	b.mu.Unlock()
}

// Remove drops every technique with the given name.
func (b *Bypasser) Remove(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.techniques[:0]
	for _, t := range b.techniques {
		if t.Name != name {
			kept = append(kept, t)
		}
	}
	b.techniques = kept
}

// Apply runs every applicable technique against the page. Scripts from
// later techniques run even when an earlier one fails.
func (b *Bypasser) Apply(runner Runner, url string) int {
	b.mu.RLock()
	enabled := b.enabled
	techniques := b.techniques
	b.mu.RUnlock()

	if !enabled || runner == nil {
		return 0
	}

	applied := 0
	for i := range techniques {
		t := &techniques[i]
		if !t.appliesTo(url) {
			continue
		}
		if b.run(runner, url, t.Name, t.Action) {
			applied++
		}
	}

	if b.snapshot != nil {
		if snap := b.snapshot(); snap != nil {
			set := snap.Set(rules.CategoryPaywall)
			for i := 0; i < set.Len(); i++ {
				rule := &set.Rules[i]
				if !rule.Pattern.Matches(url) {
					continue
				}
				if b.run(runner, url, rule.SourceSet, rule.Action) {
					applied++
				}
			}
		}
	}
	return applied
}

// ScriptsFor returns the JS for every applicable technique without
// running anything, for hosts that execute scripts in their own web
// view. Order matches Apply.
func (b *Bypasser) ScriptsFor(url string) []string {
	b.mu.RLock()
	enabled := b.enabled
	techniques := b.techniques
	b.mu.RUnlock()

	if !enabled {
		return nil
	}

	var scripts []string
	for i := range techniques {
		t := &techniques[i]
		if !t.appliesTo(url) {
			continue
		}
		if code := JSFor(t.Action); code != "" {
			scripts = append(scripts, code)
		}
	}

	if b.snapshot != nil {
		if snap := b.snapshot(); snap != nil {
			set := snap.Set(rules.CategoryPaywall)
			for i := 0; i < set.Len(); i++ {
				rule := &set.Rules[i]
				if !rule.Pattern.Matches(url) {
					continue
				}
				if code := JSFor(rule.Action); code != "" {
					scripts = append(scripts, code)
				}
			}
		}
	}
	return scripts
}

func (b *Bypasser) run(runner Runner, url, name string, action rules.Action) bool {
	code := JSFor(action)
	if code == "" {
		return false
	}
	if _, err := runner.RunScript(code); err != nil {
		b.logger.Warn("paywall technique failed",
			zap.String("technique", name), zap.String("url", url), zap.Error(err))
		return false
	}
	b.logger.Debug("paywall technique applied",
		zap.String("technique", name), zap.String("url", url))
	return true
}
