// Package route selects a concrete provider for each request and walks
// the configured fallback chain when the preferred vendor fails. The
// chain is configuration data, not code: operators reorder it without a
// rebuild.
package route

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/voxgo-dev/voxgo/internal/observability"
	"github.com/voxgo-dev/voxgo/internal/provider"
	"github.com/voxgo-dev/voxgo/internal/provider/llm"
	"github.com/voxgo-dev/voxgo/pkg/config"
	obs "github.com/voxgo-dev/voxgo/pkg/observability"
)

var (
	// ErrNoProviderAvailable means no candidate in the chain has a credential.
	ErrNoProviderAvailable = errors.New("no provider available")

	// ErrAllProvidersFailed means every available candidate was tried and failed.
	ErrAllProvidersFailed = errors.New("all providers failed")
)

// Attempt records one provider invocation within a routing decision.
type Attempt struct {
	Provider string        `json:"provider"`
	Err      string        `json:"err,omitempty"`
	Latency  time.Duration `json:"latency"`
}

// Decision describes how a request was routed.
type Decision struct {
	// Provider is the vendor that ultimately served the request.
	Provider string `json:"provider"`
	// Fallback is true when the serving vendor was not the first candidate.
	Fallback bool `json:"fallback"`
	// FromCache is true when the response came from the audio cache.
	FromCache bool `json:"from_cache,omitempty"`
	// Attempts lists every vendor tried, in order.
	Attempts []Attempt `json:"attempts"`
}

// ModelRouter routes completion requests across language-model vendors.
type ModelRouter struct {
	cfg      *config.Config
	registry *provider.Registry

	mu        sync.Mutex
	providers map[string]llm.Provider

	// newProvider is swapped out in tests.
	newProvider func(name string, cfg *config.Config) (llm.Provider, error)
}

// NewModelRouter creates a router over the registered LLM adapters.
func NewModelRouter(cfg *config.Config, registry *provider.Registry) *ModelRouter {
	return &ModelRouter{
		cfg:         cfg,
		registry:    registry,
		providers:   make(map[string]llm.Provider),
		newProvider: llm.New,
	}
}

// Candidates returns the ordered, deduplicated provider chain for a
// request: the explicitly preferred provider (if any), then the channel
// override, then the global default, then the fallback chain.
// Unavailable providers are filtered out.
func (r *ModelRouter) Candidates(channel, preferred string) []string {
	ordered := make([]string, 0, len(r.cfg.Routing.LLMFallbacks)+3)
	if preferred != "" {
		ordered = append(ordered, preferred)
	}
	if id := r.cfg.Routing.ChannelLLM[channel]; id != "" {
		ordered = append(ordered, id)
	}
	if r.cfg.Routing.DefaultLLM != "" {
		ordered = append(ordered, r.cfg.Routing.DefaultLLM)
	}
	ordered = append(ordered, r.cfg.Routing.LLMFallbacks...)

	seen := make(map[string]bool, len(ordered))
	var out []string
	for _, id := range ordered {
		if seen[id] {
			continue
		}
		seen[id] = true
		if r.registry.IsAvailable(provider.KindLLM, id) {
			out = append(out, id)
		}
	}
	return out
}

// Complete routes a completion request for the given channel, walking
// the fallback chain until a vendor succeeds. preferred pins a provider
// for this request; empty defers to the channel and global defaults.
// The returned Decision records every attempt. History is trimmed to
// the configured window before the first invocation so every candidate
// sees the same request.
func (r *ModelRouter) Complete(ctx context.Context, channel, preferred string, req llm.Request) (*llm.Response, *Decision, error) {
	ctx, span := observability.StartSpan(ctx, "route.complete")
	defer span.End()
	span.SetAttributes(attribute.String("channel", channel))

	candidates := r.Candidates(channel, preferred)
	if len(candidates) == 0 {
		span.SetStatus(codes.Error, "no provider available")
		return nil, nil, ErrNoProviderAvailable
	}

	req.Messages = trimHistory(req.Messages, r.cfg.Routing.HistoryWindow)

	decision := &Decision{}
	for i, name := range candidates {
		p, err := r.provider(name)
		if err != nil {
			decision.Attempts = append(decision.Attempts, Attempt{Provider: name, Err: err.Error()})
			log.Printf("[Router] llm provider %s unavailable: %v", name, err)
			continue
		}

		attemptCtx, cancel := context.WithTimeout(ctx, r.cfg.Routing.ProviderTimeout)
		start := time.Now()
		resp, err := p.Complete(attemptCtx, req)
		latency := time.Since(start)
		cancel()

		if err != nil {
			decision.Attempts = append(decision.Attempts, Attempt{Provider: name, Err: err.Error(), Latency: latency})
			obs.RecordRouterRequest("llm", name, "error", latency)
			log.Printf("[Router] llm provider %s failed after %v: %v", name, latency.Round(time.Millisecond), err)
			continue
		}

		decision.Attempts = append(decision.Attempts, Attempt{Provider: name, Latency: latency})
		decision.Provider = name
		decision.Fallback = i > 0
		obs.RecordRouterRequest("llm", name, "success", latency)
		if decision.Fallback {
			obs.RecordRouterFallback("llm")
			log.Printf("[Router] llm fell back to %s (attempt %d)", name, i+1)
		}
		span.SetAttributes(
			attribute.String("provider", name),
			attribute.Bool("fallback", decision.Fallback),
			attribute.Int("attempts", len(decision.Attempts)),
		)
		return resp, decision, nil
	}

	span.SetStatus(codes.Error, "all providers failed")
	return nil, decision, fmt.Errorf("%w: tried %d candidates", ErrAllProvidersFailed, len(candidates))
}

// provider returns a cached adapter instance, constructing on first use.
func (r *ModelRouter) provider(name string) (llm.Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.providers[name]; ok {
		return p, nil
	}
	p, err := r.newProvider(name, r.cfg)
	if err != nil {
		return nil, err
	}
	r.providers[name] = p
	return p, nil
}

// trimHistory keeps the leading system messages plus the last `window`
// conversation messages. window<=0 keeps everything.
func trimHistory(messages []llm.Message, window int) []llm.Message {
	if window <= 0 {
		return messages
	}

	var system []llm.Message
	var rest []llm.Message
	for _, m := range messages {
		if m.Role == "system" && len(rest) == 0 {
			system = append(system, m)
			continue
		}
		rest = append(rest, m)
	}
	if len(rest) > window {
		rest = rest[len(rest)-window:]
	}
	return append(system, rest...)
}
