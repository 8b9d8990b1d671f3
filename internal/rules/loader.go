package rules

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"go.uber.org/zap"

	"github.com/voyx/engine/internal/pattern"
)

// Source describes one rule source file.
type Source struct {
	Path     string   `yaml:"path"`
	Category Category `yaml:"category"`
}

// Manifest lists the rule sources to load. It is optional: without one,
// the blocklists directory is scanned with the default category mapping
// (.txt files feed the ads set, .json files the phishing set).
type Manifest struct {
	Sources []Source `yaml:"sources"`
}

// LoadManifest parses a YAML source manifest.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}

// DiscoverSources scans a blocklists directory and applies the original
// category mapping. Files are ordered by name so reloads are stable.
func DiscoverSources(dir string) ([]Source, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read blocklists dir: %w", err)
	}

	var sources []Source
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".txt":
			sources = append(sources, Source{Path: filepath.Join(dir, e.Name()), Category: CategoryAds})
		case ".json":
			sources = append(sources, Source{Path: filepath.Join(dir, e.Name()), Category: CategoryPhishing})
		}
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].Path < sources[j].Path })
	return sources, nil
}

// Loader parses rule source files into compiled rules.
type Loader struct {
	logger *zap.Logger
}

// NewLoader creates a Loader. A nil logger is replaced with a no-op.
func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{logger: logger}
}

// blockOpts compiles blocklist lines the way the ad/tracker/phishing
// matcher expects: raw regex, unanchored search, case-insensitive.
var blockOpts = pattern.Options{Dialect: pattern.Regex, CaseInsensitive: true}

// Load reads one source and returns its rules. The file format follows
// the category: paywall sources are YAML technique files, phishing
// sources are JSON lists, everything else is a plain-text blocklist.
func (l *Loader) Load(src Source) ([]Rule, error) {
	switch {
	case src.Category == CategoryPaywall:
		return l.loadPaywall(src.Path)
	case src.Category == CategoryPhishing:
		return l.loadPhishing(src.Path)
	default:
		return l.loadBlocklist(src)
	}
}

// loadBlocklist reads one pattern per line. Lines starting with ! are
// comments; blank lines are skipped. Each surviving line becomes a Block
// rule. Patterns that fail to compile are kept as never-match rules and
// logged, so one bad line cannot sink the source.
func (l *Loader) loadBlocklist(src Source) ([]Rule, error) {
	f, err := os.Open(src.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open blocklist: %w", err)
	}
	defer f.Close()

	name := filepath.Base(src.Path)
	var out []Rule
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "!") {
			continue
		}
		p := pattern.Compile(line, blockOpts)
		if p.Err() != nil {
			l.logger.Warn("blocklist pattern failed to compile",
				zap.String("source", name),
				zap.String("pattern", line),
				zap.Error(p.Err()),
			)
		}
		out = append(out, Rule{
			Pattern:   p,
			Action:    Action{Kind: ActionBlock},
			SourceSet: name,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read blocklist: %w", err)
	}
	return out, nil
}

// phishingEntry is one element of a phishing list. Only the url field is
// consumed; entries without one are skipped without error.
type phishingEntry struct {
	URL string `json:"url"`
}

func (l *Loader) loadPhishing(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read phishing list: %w", err)
	}

	var entries []phishingEntry
	if err := sonic.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse phishing list: %w", err)
	}

	name := filepath.Base(path)
	var out []Rule
	for _, e := range entries {
		if e.URL == "" {
			continue
		}
		out = append(out, Rule{
			Pattern:   pattern.Compile(e.URL, blockOpts),
			Action:    Action{Kind: ActionBlock},
			SourceSet: name,
		})
	}
	return out, nil
}

// technique is one paywall bypass entry in a YAML technique file.
type technique struct {
	Name      string            `yaml:"name"`
	Action    ActionKind        `yaml:"action"`
	Patterns  []string          `yaml:"patterns"`
	Selectors []string          `yaml:"selectors"`
	Cookies   map[string]string `yaml:"cookies"`
	JS        string            `yaml:"js"`
}

func (l *Loader) loadPaywall(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read technique file: %w", err)
	}

	var techniques []technique
	if err := yaml.Unmarshal(data, &techniques); err != nil {
		return nil, fmt.Errorf("failed to parse technique file: %w", err)
	}

	var out []Rule
	for _, t := range techniques {
		out = append(out, TechniqueRules(t.Name, t.Patterns, Action{
			Kind:      t.Action,
			Selectors: t.Selectors,
			Cookies:   t.Cookies,
			JS:        t.JS,
		})...)
	}
	return out, nil
}

// TechniqueRules expands one paywall technique into rules. A technique
// without URL patterns applies everywhere, so it compiles a match-all
// pattern.
func TechniqueRules(name string, patterns []string, action Action) []Rule {
	if len(patterns) == 0 {
		return []Rule{{
			Pattern:   pattern.Compile(".*", blockOpts),
			Action:    action,
			SourceSet: name,
		}}
	}
	out := make([]Rule, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, Rule{
			Pattern:   pattern.Compile(p, blockOpts),
			Action:    action,
			SourceSet: name,
		})
	}
	return out
}
