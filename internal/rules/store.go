package rules

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Snapshot is an immutable view of every category's rule set. Decision
// code takes one snapshot and evaluates against it, so a concurrent
// reload can never expose a half-built rule list.
type Snapshot struct {
	sets map[Category]*RuleSet
}

// NewSnapshot builds a snapshot directly from rule sets. The Store
// produces snapshots during reloads; this constructor exists for
// callers assembling rules programmatically.
func NewSnapshot(sets map[Category]*RuleSet) *Snapshot {
	if sets == nil {
		sets = map[Category]*RuleSet{}
	}
	return &Snapshot{sets: sets}
}

// Set returns the rule set for a category, or nil.
func (s *Snapshot) Set(c Category) *RuleSet {
	if s == nil {
		return nil
	}
	return s.sets[c]
}

// SourceStatus reports the outcome of loading one source file.
type SourceStatus struct {
	Path     string   `json:"path"`
	Category Category `json:"category"`
	Rules    int      `json:"rules"`
	Error    string   `json:"error,omitempty"`
}

// Report summarizes a reload: what loaded, what failed, and how long it
// took. A failed source never crashes a reload; it shows up here.
type Report struct {
	Sources  []SourceStatus `json:"sources"`
	Counts   map[Category]int `json:"counts"`
	Duration time.Duration  `json:"duration"`
	At       time.Time      `json:"at"`
}

// Store owns the rule snapshot and its reload lifecycle. Reads are
// lock-free pointer loads; Reload is single-writer.
type Store struct {
	loader  *Loader
	logger  *zap.Logger
	sources func() ([]Source, error)

	snapshot atomic.Pointer[Snapshot]

	mu         sync.Mutex // serializes reloads
	lastReport atomic.Pointer[Report]
}

// NewStore creates a Store over a source provider. The provider is
// re-invoked on every reload so new files appear without restarts.
func NewStore(loader *Loader, logger *zap.Logger, sources func() ([]Source, error)) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{loader: loader, logger: logger, sources: sources}
	s.snapshot.Store(&Snapshot{sets: map[Category]*RuleSet{}})
	return s
}

// Current returns the active snapshot.
func (s *Store) Current() *Snapshot {
	return s.snapshot.Load()
}

// LastReport returns the most recent reload report, or nil before the
// first reload.
func (s *Store) LastReport() *Report {
	return s.lastReport.Load()
}

// Reload re-reads every source and swaps in a new snapshot per category.
// A source that fails to load keeps its category on the previous
// snapshot's rules for that source's category; successfully loaded
// categories are replaced wholesale.
func (s *Store) Reload() *Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	report := &Report{Counts: map[Category]int{}, At: start}

	srcs, err := s.sources()
	if err != nil {
		s.logger.Error("rule source discovery failed", zap.Error(err))
		report.Sources = append(report.Sources, SourceStatus{Error: err.Error()})
		report.Duration = time.Since(start)
		s.lastReport.Store(report)
		return report
	}

	prev := s.snapshot.Load()
	loaded := map[Category][]Rule{}
	failed := map[Category]bool{}

	for _, src := range srcs {
		status := SourceStatus{Path: src.Path, Category: src.Category}
		set, err := s.loader.Load(src)
		if err != nil {
			status.Error = err.Error()
			failed[src.Category] = true
			s.logger.Warn("rule source failed to load",
				zap.String("path", src.Path),
				zap.String("category", string(src.Category)),
				zap.Error(err),
			)
		} else {
			status.Rules = len(set)
			loaded[src.Category] = append(loaded[src.Category], set...)
		}
		report.Sources = append(report.Sources, status)
	}

	sets := make(map[Category]*RuleSet, len(loaded))
	for cat, rs := range loaded {
		sets[cat] = &RuleSet{Category: cat, Rules: rs}
	}
	// A category whose every source errored retains the previous rules
	// rather than silently emptying out.
	for cat := range failed {
		if _, ok := loaded[cat]; !ok {
			if old := prev.Set(cat); old != nil {
				sets[cat] = old
			}
		}
	}

	for cat, rs := range sets {
		report.Counts[cat] = rs.Len()
	}

	s.snapshot.Store(&Snapshot{sets: sets})
	report.Duration = time.Since(start)
	s.lastReport.Store(report)

	s.logger.Info("rule sets reloaded",
		zap.Int("sources", len(srcs)),
		zap.Duration("duration", report.Duration),
	)
	return report
}
