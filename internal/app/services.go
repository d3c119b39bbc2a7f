package app

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/erg0nix/ctxmeter/internal/capacity"
	"github.com/erg0nix/ctxmeter/internal/config"
	"github.com/erg0nix/ctxmeter/internal/core"
	"github.com/erg0nix/ctxmeter/internal/filter"
	"github.com/erg0nix/ctxmeter/internal/jira"
	"github.com/erg0nix/ctxmeter/internal/protocol"
	"github.com/erg0nix/ctxmeter/internal/registry"
	"github.com/erg0nix/ctxmeter/internal/tokenizer"
	"github.com/erg0nix/ctxmeter/internal/tools"
	"github.com/erg0nix/ctxmeter/internal/ws"
)

// Version is stamped at build time with -ldflags "-X .../internal/app.Version=...".
var Version = "dev"

// Services holds everything a transport needs to serve requests.
type Services struct {
	Logger    *slog.Logger
	Resolver  *capacity.Resolver
	Counter   *tokenizer.Tiktoken
	Filter    *filter.Filter
	Tools     *tools.Registry
	Hub       *ws.Hub
	StartTime time.Time

	jira atomic.Pointer[config.JiraConfig]
}

func NewServices(cfg config.Config, logger *slog.Logger) *Services {
	if logger == nil {
		logger = slog.Default()
	}

	resolver := capacity.NewResolver(capacity.Options{
		Registry:  registry.FromConfig(cfg.Registry),
		Fallback:  cfg.Counter.FallbackContextSize,
		CacheSize: cfg.Counter.CacheSize,
		CacheTTL:  cfg.Counter.CacheTTL(),
		Logger:    logger,
	})
	resolver.Refresh(cfg.Counter.CustomModels)

	counter := tokenizer.NewTiktoken(cfg.Counter.Encoding, logger)

	s := &Services{
		Logger:    logger,
		Resolver:  resolver,
		Counter:   counter,
		Filter:    filter.New(cfg.Counter, resolver, counter, logger),
		Tools:     tools.NewRegistry(),
		StartTime: time.Now(),
	}
	s.jira.Store(&cfg.Jira)

	s.Tools.Add(&filter.UsageTool{Filter: s.Filter})
	jira.NewTools(s.JiraConfig).Register(s.Tools)

	if cfg.EventsBind != "" {
		s.Hub = ws.NewHub(logger)
	}

	return s
}

func (s *Services) JiraConfig() config.JiraConfig {
	return *s.jira.Load()
}

// Apply takes a reloaded config. Counter valves and Jira credentials switch immediately; the
// override table is re-derived only when its digest changed. Binds, the fallback size and the
// registry need a restart.
func (s *Services) Apply(cfg config.Config) {
	for _, warning := range cfg.Warnings() {
		s.Logger.Warn("config warning", "detail", warning)
	}
	if err := cfg.Validate(); err != nil {
		s.Logger.Warn("reloaded config rejected", "error", err)
		return
	}

	s.Filter.SetConfig(cfg.Counter)
	s.jira.Store(&cfg.Jira)

	if s.Resolver.Refresh(cfg.Counter.CustomModels) {
		s.Logger.Info("capacity overrides updated", "digest", s.Resolver.Table().Digest())
	}
}

// Events is the feed emitter, or nil without an events listener.
func (s *Services) Events() core.Emitter {
	if s.Hub == nil {
		return nil
	}
	return s.Hub.Emit
}

func (s *Services) Status(transport string) protocol.StatusResponse {
	table := s.Resolver.Table()

	return protocol.StatusResponse{
		Version:         Version,
		Transport:       transport,
		StartedAt:       s.StartTime.Format(time.RFC3339),
		Uptime:          time.Since(s.StartTime).Round(time.Second).String(),
		OverrideDigest:  table.Digest(),
		CapacityEntries: len(table.Entries()),
		CachedLookups:   s.Resolver.CachedLookups(),
		FallbackSize:    s.Resolver.Fallback(),
		Encoding:        s.Filter.Config().Encoding,
		Tools:           len(s.Tools.Definitions()),
	}
}
