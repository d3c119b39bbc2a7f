// Package filter is the plugin entry point a chat host calls around each turn. Only the outlet
// does work: it measures the finished conversation and reports usage as a status event.
package filter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"

	"github.com/erg0nix/ctxmeter/internal/capacity"
	"github.com/erg0nix/ctxmeter/internal/config"
	"github.com/erg0nix/ctxmeter/internal/core"
	"github.com/erg0nix/ctxmeter/internal/usage"
)

// ErrorStatus is the only failure text users ever see.
const ErrorStatus = "Error calculating context"

type State string

const (
	StateSkipped  State = "SKIPPED"
	StateReported State = "REPORTED"
	StateFailed   State = "FAILED"
)

// Request is one outlet invocation. Body is kept raw so fields the plugin does not know about
// reach the host unchanged.
type Request struct {
	Body  json.RawMessage       `json:"body"`
	User  *core.User            `json:"user,omitempty"`
	Model *core.ModelDescriptor `json:"model,omitempty"`
}

// Result carries the body back along with what happened. Report and Status are set only when
// State is REPORTED.
type Result struct {
	Body   json.RawMessage
	State  State
	Report *usage.Report
	Status string
	Err    error
}

// Filter holds the shared estimator state. It is safe for concurrent use.
type Filter struct {
	resolver *capacity.Resolver
	counter  usage.Counter
	logger   *slog.Logger
	valves   atomic.Pointer[config.CounterConfig]
}

func New(cfg config.CounterConfig, resolver *capacity.Resolver, counter usage.Counter, logger *slog.Logger) *Filter {
	if logger == nil {
		logger = slog.Default()
	}

	f := &Filter{resolver: resolver, counter: counter, logger: logger}
	f.SetConfig(cfg)

	return f
}

// SetConfig swaps the valves used by subsequent requests. Requests in flight keep the snapshot
// they started with.
func (f *Filter) SetConfig(cfg config.CounterConfig) {
	f.valves.Store(&cfg)
}

func (f *Filter) Config() config.CounterConfig {
	return *f.valves.Load()
}

func (f *Filter) Resolver() *capacity.Resolver {
	return f.resolver
}

// Inlet passes the request body through unchanged.
func (f *Filter) Inlet(_ context.Context, body json.RawMessage) json.RawMessage {
	return body
}

// Stream passes a streamed chunk through unchanged.
func (f *Filter) Stream(_ context.Context, chunk json.RawMessage) json.RawMessage {
	return chunk
}

// Evaluate measures messages against modelID using the current valves and formats the status
// line.
func (f *Filter) Evaluate(ctx context.Context, messages []core.Message, modelID string) (usage.Report, string, error) {
	valves := f.Config()
	f.resolver.Refresh(valves.CustomModels)

	return f.evaluate(ctx, valves, messages, modelID, 0)
}

// hintedCapacity resolves through the resolver, preferring the size the host reported.
type hintedCapacity struct {
	resolver *capacity.Resolver
	hint     int
}

func (h hintedCapacity) Resolve(ctx context.Context, modelID string) int {
	return h.resolver.ResolveHinted(ctx, modelID, h.hint)
}

func (f *Filter) evaluate(ctx context.Context, valves config.CounterConfig, messages []core.Message, modelID string, hint int) (usage.Report, string, error) {
	evaluator := usage.Evaluator{
		Counter:  f.counter,
		Capacity: hintedCapacity{resolver: f.resolver, hint: hint},
		Thresholds: usage.Thresholds{
			Warn:     valves.WarnAtPercentage,
			Critical: valves.CriticalAtPercentage,
		},
	}

	report, err := evaluator.Evaluate(ctx, messages, modelID)
	if err != nil {
		return usage.Report{}, "", err
	}

	formatter := usage.Formatter{ShowBar: valves.ShowProgressBar, BarLength: valves.BarLength}

	return report, formatter.Format(report), nil
}

// Outlet reports context usage for a completed turn. It never fails: the body comes back
// unchanged whatever happens, and problems are logged and turned into a generic status.
func (f *Filter) Outlet(ctx context.Context, req Request, emit core.Emitter) (result Result) {
	if emit == nil {
		emit = core.DiscardEmitter
	}

	result = Result{Body: req.Body, State: StateSkipped}

	if !req.User.Settings().IsEnabled() {
		return result
	}

	valves := f.Config()

	defer func() {
		if recovered := recover(); recovered != nil {
			result = f.fail(ctx, req, valves, emit, fmt.Errorf("filter: panic: %v", recovered), debug.Stack())
		}
	}()

	f.resolver.Refresh(valves.CustomModels)

	var body core.Body
	if len(req.Body) > 0 {
		if err := json.Unmarshal(req.Body, &body); err != nil {
			return f.fail(ctx, req, valves, emit, fmt.Errorf("filter: decode body: %w", err), nil)
		}
	}

	if len(body.Messages) == 0 {
		return result
	}

	modelID := body.Model
	if req.Model != nil {
		modelID = req.Model.ID
	}

	report, status, err := f.evaluate(ctx, valves, body.Messages, modelID, req.Model.ContextSize())
	if err != nil {
		return f.fail(ctx, req, valves, emit, err, nil)
	}

	f.logger.Debug("context usage",
		"model", modelID,
		"total", report.Total,
		"limit", report.Limit,
		"percentage", report.Percentage,
		"severity", report.Severity.String(),
	)

	if valves.ShowStatus {
		if err := emit(ctx, core.StatusEvent(status, true)); err != nil {
			f.logger.Warn("failed to emit context status", "model", modelID, "error", err)
		}
	}

	return Result{Body: req.Body, State: StateReported, Report: &report, Status: status}
}

func (f *Filter) fail(ctx context.Context, req Request, valves config.CounterConfig, emit core.Emitter, err error, stack []byte) Result {
	if stack == nil {
		stack = debug.Stack()
	}
	f.logger.Error("context calculation failed", "error", err, "stack", string(stack))

	if valves.ShowStatus {
		emitQuietly(ctx, emit, core.StatusEvent(ErrorStatus, true))
	}

	return Result{Body: req.Body, State: StateFailed, Err: err}
}

// emitQuietly delivers a best-effort event; errors and panics from the host callback are dropped.
func emitQuietly(ctx context.Context, emit core.Emitter, event core.Event) {
	defer func() { _ = recover() }()

	_ = emit(ctx, event)
}
