// Package engine ties the policy engine, rule store, userscript
// registry, and paywall bypasser into the three page lifecycle hooks a
// browser shell drives: navigation, subresource requests, and load
// completion.
package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/voyx/engine/internal/engine/sandbox"
	"github.com/voyx/engine/internal/infrastructure/monitoring"
	"github.com/voyx/engine/internal/paywall"
	"github.com/voyx/engine/internal/policy"
	"github.com/voyx/engine/internal/rules"
	"github.com/voyx/engine/internal/userscript"
)

// PageHost executes JavaScript in the context of the loaded page. A
// real browser shell passes its web view; headless use passes a
// sandboxed runtime.
type PageHost interface {
	RunScript(code string) (any, error)
}

// LoadReport summarizes what happened to one finished page load.
type LoadReport struct {
	URL            string   `json:"url"`
	PaywallApplied int      `json:"paywall_applied"`
	Injected       []string `json:"injected"`
	Failed         []string `json:"failed,omitempty"`
}

// Engine is the top-level coordinator. All fields are wired once at
// startup; every method is safe for concurrent use.
type Engine struct {
	Config  *policy.ConfigManager
	Policy  *policy.Engine
	Rules   *rules.Store
	Scripts *userscript.Registry
	Bypass  *paywall.Bypasser
	Pool    *sandbox.Pool

	metrics *monitoring.Metrics
	logger  *zap.Logger
}

// Options carries the engine's collaborators.
type Options struct {
	Config  *policy.ConfigManager
	Policy  *policy.Engine
	Rules   *rules.Store
	Scripts *userscript.Registry
	Bypass  *paywall.Bypasser
	Pool    *sandbox.Pool
	Metrics *monitoring.Metrics
	Logger  *zap.Logger
}

// New assembles an engine.
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		Config:  opts.Config,
		Policy:  opts.Policy,
		Rules:   opts.Rules,
		Scripts: opts.Scripts,
		Bypass:  opts.Bypass,
		Pool:    opts.Pool,
		metrics: opts.Metrics,
		logger:  logger,
	}
}

// OnNavigate decides whether a top-level navigation may proceed.
func (e *Engine) OnNavigate(url string) policy.Decision {
	return e.decide(url, policy.EventNavigate)
}

// OnRequest decides whether a subresource request may proceed.
func (e *Engine) OnRequest(url string) policy.Decision {
	return e.decide(url, policy.EventRequest)
}

func (e *Engine) decide(url string, event policy.Event) policy.Decision {
	var timer *monitoring.Timer
	if e.metrics != nil {
		timer = monitoring.NewTimer(e.metrics, string(event))
	}

	decision := e.Policy.Decide(url, event, e.Config.Current(), e.Rules.Current())

	if timer != nil {
		timer.Stop(decision.Verdict.String(), string(decision.Reason),
			decision.Verdict == policy.Block)
	}
	return decision
}

// Status reports the security indicator state for a URL.
func (e *Engine) Status(url string) policy.Status {
	return e.Policy.StatusFor(url, e.Config.Current(), e.Rules.Current())
}

// OnLoadFinished applies paywall techniques and injects every matching
// userscript into the page. When host is nil a pooled sandbox runtime
// stands in, so all scripts for the page share one VM.
func (e *Engine) OnLoadFinished(ctx context.Context, url string, host PageHost) *LoadReport {
	report := &LoadReport{URL: url}

	if host == nil && e.Pool != nil {
		runtime, err := e.Pool.Acquire(ctx)
		if err != nil {
			e.logger.Warn("no sandbox runtime available",
				zap.String("url", url), zap.Error(err))
			return report
		}
		defer e.Pool.Release(runtime)
		host = runtime
	}
	if host == nil {
		return report
	}

	if e.Bypass != nil {
		report.PaywallApplied = e.Bypass.Apply(host, url)
		if e.metrics != nil && report.PaywallApplied > 0 {
			e.metrics.RecordPaywallApplied(report.PaywallApplied)
		}
	}

	if e.Scripts != nil {
		for _, s := range e.Scripts.ScriptsMatching(url) {
			code := userscript.InjectionCodeFor(s)
			if code == "" {
				continue
			}
			_, err := host.RunScript(code)
			if e.metrics != nil {
				e.metrics.RecordInjection(err == nil)
			}
			if err != nil {
				report.Failed = append(report.Failed, s.Name)
				e.logger.Warn("userscript injection failed",
					zap.String("script", s.Name), zap.String("url", url), zap.Error(err))
				continue
			}
			report.Injected = append(report.Injected, s.Name)
		}
	}

	e.logger.Debug("page load processed",
		zap.String("url", url),
		zap.Int("paywall_applied", report.PaywallApplied),
		zap.Int("injected", len(report.Injected)),
	)
	return report
}

// Reload re-reads rule sources and the scripts directory.
func (e *Engine) Reload() (*rules.Report, *userscript.Report) {
	ruleReport := e.Rules.Reload()
	scriptReport := e.Scripts.Reload()

	if e.metrics != nil {
		counts := make(map[string]int, len(ruleReport.Counts))
		for cat, n := range ruleReport.Counts {
			counts[string(cat)] = n
		}
		e.metrics.RecordRuleReload(counts)
		e.metrics.SetScriptsLoaded(scriptReport.Loaded)
	}
	return ruleReport, scriptReport
}
