package userscript

import (
	"context"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/voyx/engine/internal/settings"
)

// Namespace is the settings namespace for userscript state.
const Namespace = "userscripts"

const (
	scriptSuffix     = ".user.js"
	globalEnabledKey = "userscripts_enabled"
)

// ScriptStatus reports one script file's load outcome.
type ScriptStatus struct {
	Path  string `json:"path"`
	Name  string `json:"name,omitempty"`
	Error string `json:"error,omitempty"`
}

// Report summarizes a registry reload.
type Report struct {
	Scripts  []ScriptStatus `json:"scripts"`
	Loaded   int            `json:"loaded"`
	Skipped  int            `json:"skipped"`
	Duration time.Duration  `json:"duration"`
	At       time.Time      `json:"at"`
}

// Registry owns the in-memory script set. The set is an immutable
// snapshot replaced wholesale on reload, so any single page's injection
// decision sees a consistent view.
type Registry struct {
	dir      string
	store    *settings.Store
	logger   *zap.Logger
	client   *resty.Client
	snapshot atomic.Pointer[[]*Userscript]

	mu         sync.Mutex // serializes reloads and file mutations
	lastReport atomic.Pointer[Report]
}

// NewRegistry creates a registry over a scripts directory. The resty
// client is used for install-from-URL; pass nil to disable installs.
func NewRegistry(dir string, store *settings.Store, client *resty.Client, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{dir: dir, store: store, logger: logger, client: client}
	empty := []*Userscript{}
	r.snapshot.Store(&empty)
	return r
}

// Enabled reports the persisted master toggle for all userscripts.
func (r *Registry) Enabled() bool {
	return r.store.GetBool(Namespace, globalEnabledKey, true)
}

// SetGlobalEnabled flips the master toggle.
func (r *Registry) SetGlobalEnabled(enabled bool) error {
	return r.store.SetBool(Namespace, globalEnabledKey, enabled)
}

// Reload re-parses every script file below the scripts directory and
// replaces the snapshot in one step. Files that fail to parse are
// skipped and reported; they never abort the reload.
func (r *Registry) Reload() *Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reloadLocked()
}

func (r *Registry) reloadLocked() *Report {
	start := time.Now()
	report := &Report{At: start}

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		r.logger.Error("failed to create scripts dir", zap.Error(err))
		report.Duration = time.Since(start)
		r.lastReport.Store(report)
		return report
	}

	matches, err := doublestar.Glob(os.DirFS(r.dir), "**/*"+scriptSuffix)
	if err != nil {
		r.logger.Error("script discovery failed", zap.Error(err))
		report.Duration = time.Since(start)
		r.lastReport.Store(report)
		return report
	}
	sort.Strings(matches)

	scripts := make([]*Userscript, 0, len(matches))
	for _, rel := range matches {
		status := ScriptStatus{Path: rel}
		script, err := r.loadFile(rel)
		if err != nil {
			status.Error = err.Error()
			report.Skipped++
			r.logger.Warn("userscript skipped",
				zap.String("path", rel), zap.Error(err))
		} else {
			status.Name = script.Name
			scripts = append(scripts, script)
			report.Loaded++
		}
		report.Scripts = append(report.Scripts, status)
	}

	r.snapshot.Store(&scripts)
	report.Duration = time.Since(start)
	r.lastReport.Store(report)

	r.logger.Info("userscripts reloaded",
		zap.Int("loaded", report.Loaded),
		zap.Int("skipped", report.Skipped),
		zap.Duration("duration", report.Duration),
	)
	return report
}

func (r *Registry) loadFile(rel string) (*Userscript, error) {
	content, err := os.ReadFile(filepath.Join(r.dir, filepath.FromSlash(rel)))
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}

	meta, code, err := parseSource(string(content))
	if err != nil {
		return nil, err
	}

	// Names are the slash-separated relative path minus the suffix, so
	// nested scripts cannot collide with top-level ones.
	name := strings.TrimSuffix(rel, scriptSuffix)
	enabled := r.store.GetBool(Namespace, enabledKey(name), true)
	return newScript(name, code, meta, enabled), nil
}

// LastReport returns the most recent reload report, or nil.
func (r *Registry) LastReport() *Report {
	return r.lastReport.Load()
}

// All returns the current snapshot in load order.
func (r *Registry) All() []*Userscript {
	return *r.snapshot.Load()
}

// Get returns a script by name.
func (r *Registry) Get(name string) (*Userscript, bool) {
	for _, s := range r.All() {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

// ScriptsMatching returns, in load order, every enabled script whose
// include/exclude patterns accept url. The master toggle gates the
// whole set.
func (r *Registry) ScriptsMatching(url string) []*Userscript {
	if !r.Enabled() {
		return nil
	}
	var out []*Userscript
	for _, s := range r.All() {
		if s.MatchesURL(url) {
			out = append(out, s)
		}
	}
	return out
}

// SetEnabled flips one script's persisted toggle and swaps in a snapshot
// reflecting it, without re-reading any file content.
func (r *Registry) SetEnabled(name string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.Get(name); !ok {
		return fmt.Errorf("unknown script: %s", name)
	}
	if err := r.store.SetBool(Namespace, enabledKey(name), enabled); err != nil {
		return err
	}

	old := r.All()
	next := make([]*Userscript, len(old))
	for i, s := range old {
		if s.Name == name {
			next[i] = s.withEnabled(enabled)
		} else {
			next[i] = s
		}
	}
	r.snapshot.Store(&next)
	return nil
}

// Create writes a script file (metadata block first when provided) and
// reloads. A name collision overwrites the existing file and, after the
// reload, the existing registry entry.
func (r *Registry) Create(name, code string, meta *Metadata) error {
	if err := validateName(name); err != nil {
		return err
	}

	var b strings.Builder
	if meta != nil && len(meta.Keys()) > 0 {
		b.WriteString(meta.Serialize())
		b.WriteString("\n")
	}
	b.WriteString(code)

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create scripts dir: %w", err)
	}
	path := filepath.Join(r.dir, name+scriptSuffix)
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write script: %w", err)
	}

	r.reloadLocked()
	return nil
}

// Delete removes a script's backing file, its enabled toggle, and its
// registry entry. Unlike Create it accepts nested names, since reload
// discovers scripts in subdirectories.
func (r *Registry) Delete(name string) error {
	if err := validateRef(name); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	path := filepath.Join(r.dir, filepath.FromSlash(name)+scriptSuffix)
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to delete script: %w", err)
	}
	if err := r.store.Delete(Namespace, enabledKey(name)); err != nil {
		r.logger.Warn("failed to drop script toggle", zap.String("script", name), zap.Error(err))
	}

	r.reloadLocked()
	return nil
}

// InstallFromURL downloads a script, verifies it is text, and installs
// it under a name derived from the URL's path component.
func (r *Registry) InstallFromURL(ctx context.Context, rawURL string) (string, error) {
	if r.client == nil {
		return "", fmt.Errorf("script installation is not configured")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid script url: %w", err)
	}

	resp, err := r.client.R().SetContext(ctx).Get(rawURL)
	if err != nil {
		return "", fmt.Errorf("failed to download script: %w", err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return "", fmt.Errorf("failed to download script: HTTP %d", resp.StatusCode())
	}

	body := resp.Body()
	if mt := mimetype.Detect(body); !strings.HasPrefix(mt.String(), "text/") {
		return "", fmt.Errorf("downloaded content is not a script (%s)", mt.String())
	}

	name := strings.TrimSuffix(path.Base(parsed.Path), scriptSuffix)
	name = strings.TrimSuffix(name, ".js")
	if name == "" || name == "." || name == "/" {
		return "", fmt.Errorf("cannot derive script name from url")
	}
	if err := validateName(name); err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create scripts dir: %w", err)
	}
	dest := filepath.Join(r.dir, name+scriptSuffix)
	if err := os.WriteFile(dest, body, 0o644); err != nil {
		return "", fmt.Errorf("failed to write script: %w", err)
	}

	r.reloadLocked()
	r.logger.Info("userscript installed", zap.String("script", name), zap.String("url", rawURL))
	return name, nil
}

// EnsureExample writes the starter script when the directory has no
// scripts at all, then reloads.
func (r *Registry) EnsureExample() error {
	if len(r.All()) > 0 {
		return nil
	}

	meta := NewMetadata()
	meta.Add("name", "Example Userscript")
	meta.Add("namespace", "VoyxBrowser")
	meta.Add("version", "1.0")
	meta.Add("description", "Example userscript for Voyx Browser")
	meta.Add("include", "*")

	code := `log('Example userscript loaded!');

document.querySelectorAll('.ad, .popup, [class*="advertisement"]').forEach(el => {
    el.style.display = 'none';
});`

	return r.Create("example", code, meta)
}

func enabledKey(name string) string {
	return "script_" + name + "_enabled"
}

// validateName keeps created script names usable as top-level file
// stems. Path separators and traversal would let a script escape the
// scripts directory.
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("script name required")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || strings.Contains(name, "..") {
		return fmt.Errorf("invalid script name: %q", name)
	}
	if !fs.ValidPath(name) {
		return fmt.Errorf("invalid script name: %q", name)
	}
	return nil
}

// validateRef accepts any name reload can produce, including nested
// slash-separated ones, while still rejecting traversal out of the
// scripts directory.
func validateRef(name string) error {
	if name == "" {
		return fmt.Errorf("script name required")
	}
	if strings.Contains(name, `\`) || name == "." || !fs.ValidPath(name) {
		return fmt.Errorf("invalid script name: %q", name)
	}
	return nil
}
