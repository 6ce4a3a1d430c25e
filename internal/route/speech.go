package route

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/voxgo-dev/voxgo/internal/audiocache"
	"github.com/voxgo-dev/voxgo/internal/observability"
	"github.com/voxgo-dev/voxgo/internal/provider"
	"github.com/voxgo-dev/voxgo/internal/provider/speech"
	"github.com/voxgo-dev/voxgo/pkg/config"
	obs "github.com/voxgo-dev/voxgo/pkg/observability"
)

// SpeechRouter routes synthesis requests across speech vendors, with a
// cache in front of the non-native ones.
type SpeechRouter struct {
	cfg      *config.Config
	registry *provider.Registry
	cache    *audiocache.Cache

	mu    sync.Mutex
	synth map[string]speech.Synthesizer

	newSynthesizer func(name string, cfg *config.Config) (speech.Synthesizer, error)
}

// NewSpeechRouter creates a router over the registered speech adapters.
// cache may be nil, which disables caching.
func NewSpeechRouter(cfg *config.Config, registry *provider.Registry, cache *audiocache.Cache) *SpeechRouter {
	return &SpeechRouter{
		cfg:            cfg,
		registry:       registry,
		cache:          cache,
		synth:          make(map[string]speech.Synthesizer),
		newSynthesizer: speech.New,
	}
}

// Candidates returns the ordered, deduplicated speech chain: the
// preferred provider (if any), then the global default, then the
// fallback chain, filtered to available providers. The native provider
// is always available, so the chain is never empty when it appears in
// the configured fallbacks.
func (r *SpeechRouter) Candidates(preferred string) []string {
	ordered := make([]string, 0, len(r.cfg.Routing.SpeechFallbacks)+2)
	if preferred != "" {
		ordered = append(ordered, preferred)
	}
	if r.cfg.Routing.DefaultSpeech != "" {
		ordered = append(ordered, r.cfg.Routing.DefaultSpeech)
	}
	ordered = append(ordered, r.cfg.Routing.SpeechFallbacks...)

	seen := make(map[string]bool, len(ordered))
	var out []string
	for _, id := range ordered {
		if seen[id] {
			continue
		}
		seen[id] = true
		if r.registry.IsAvailable(provider.KindSpeech, id) {
			out = append(out, id)
		}
	}
	return out
}

// Synthesize routes a synthesis request, consulting the cache before
// each non-native vendor. preferred and voice may be empty; an empty
// voice selects each vendor's default so the cache key stays stable
// across the walk.
func (r *SpeechRouter) Synthesize(ctx context.Context, preferred, voice, text string) (*speech.Audio, *Decision, error) {
	ctx, span := observability.StartSpan(ctx, "route.synthesize")
	defer span.End()

	candidates := r.Candidates(preferred)
	if len(candidates) == 0 {
		span.SetStatus(codes.Error, "no provider available")
		return nil, nil, ErrNoProviderAvailable
	}

	decision := &Decision{}
	for i, name := range candidates {
		d, _ := r.registry.Describe(provider.KindSpeech, name)
		v := voice
		if v == "" {
			v = d.Default
		}

		if r.cache != nil && !d.Native {
			if data, ok := r.cache.Get(name, v, text); ok {
				obs.RecordAudioCacheEvent("hit")
				decision.Attempts = append(decision.Attempts, Attempt{Provider: name})
				decision.Provider = name
				decision.Fallback = i > 0
				decision.FromCache = true
				span.SetAttributes(
					attribute.String("provider", name),
					attribute.Bool("from_cache", true),
				)
				return &speech.Audio{
					Data:     data,
					MIME:     "audio/mpeg",
					Provider: name,
					Voice:    v,
				}, decision, nil
			}
			obs.RecordAudioCacheEvent("miss")
		}

		s, err := r.synthesizer(name)
		if err != nil {
			decision.Attempts = append(decision.Attempts, Attempt{Provider: name, Err: err.Error()})
			log.Printf("[Router] speech provider %s unavailable: %v", name, err)
			continue
		}

		attemptCtx, cancel := context.WithTimeout(ctx, r.cfg.Routing.ProviderTimeout)
		start := time.Now()
		audio, err := s.Synthesize(attemptCtx, text, v)
		latency := time.Since(start)
		cancel()

		if err != nil {
			decision.Attempts = append(decision.Attempts, Attempt{Provider: name, Err: err.Error(), Latency: latency})
			obs.RecordRouterRequest("speech", name, "error", latency)
			log.Printf("[Router] speech provider %s failed after %v: %v", name, latency.Round(time.Millisecond), err)
			continue
		}

		decision.Attempts = append(decision.Attempts, Attempt{Provider: name, Latency: latency})
		decision.Provider = name
		decision.Fallback = i > 0
		obs.RecordRouterRequest("speech", name, "success", latency)
		if decision.Fallback {
			obs.RecordRouterFallback("speech")
			log.Printf("[Router] speech fell back to %s (attempt %d)", name, i+1)
		}
		if r.cache != nil && !s.Native() && len(audio.Data) > 0 {
			r.cache.Put(name, v, text, audio.Data)
			obs.RecordAudioCacheEvent("write")
		}
		span.SetAttributes(
			attribute.String("provider", name),
			attribute.Bool("fallback", decision.Fallback),
			attribute.Int("attempts", len(decision.Attempts)),
		)
		return audio, decision, nil
	}

	span.SetStatus(codes.Error, "all providers failed")
	return nil, decision, fmt.Errorf("%w: tried %d candidates", ErrAllProvidersFailed, len(candidates))
}

func (r *SpeechRouter) synthesizer(name string) (speech.Synthesizer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.synth[name]; ok {
		return s, nil
	}
	s, err := r.newSynthesizer(name, r.cfg)
	if err != nil {
		return nil, err
	}
	r.synth[name] = s
	return s, nil
}
