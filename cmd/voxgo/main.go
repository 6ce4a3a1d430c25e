// Command voxgo runs the conversational voice-agent runtime: the
// telephony webhooks, the chat channel, the agent admin API, and the
// observability endpoints.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/voxgo-dev/voxgo/internal/agents"
	"github.com/voxgo-dev/voxgo/internal/audiocache"
	"github.com/voxgo-dev/voxgo/internal/call"
	"github.com/voxgo-dev/voxgo/internal/chat"
	"github.com/voxgo-dev/voxgo/internal/httpapi"
	iobs "github.com/voxgo-dev/voxgo/internal/observability"
	"github.com/voxgo-dev/voxgo/internal/provider"
	"github.com/voxgo-dev/voxgo/internal/route"
	"github.com/voxgo-dev/voxgo/internal/telephony"
	"github.com/voxgo-dev/voxgo/pkg/config"
	"github.com/voxgo-dev/voxgo/pkg/observability"
	"github.com/voxgo-dev/voxgo/pkg/session"
)

var (
	// Version information (set via ldflags)
	Version = "dev"

	// Command line flags
	configFile = flag.String("config", getEnv("CONFIG_FILE", "config/voxgo.yaml"), "Configuration file")
	httpPort   = flag.Int("http-port", getEnvInt("PORT", 0), "HTTP server port override")
)

func main() {
	flag.Parse()

	log.Printf("Starting Voxgo v%s", Version)

	cfg, err := loadConfig(*configFile)
	if err != nil {
		log.Fatalf("Config: %v", err)
	}
	if *httpPort > 0 {
		cfg.Server.Port = *httpPort
	}
	log.Printf("Config: %s, HTTP port: %d, metrics port: %d", *configFile, cfg.Server.Port, cfg.Server.MetricsPort)

	// Observability
	observability.InitMetrics()
	healthChecker := observability.InitHealthChecker()
	healthChecker.RegisterCheck(observability.PingCheck())
	if err := iobs.InitFromEnv(); err != nil {
		log.Printf("Tracing init failed, continuing without: %v", err)
	}

	// Session store + sweeper
	store, err := buildSessionStore(cfg)
	if err != nil {
		log.Fatalf("Session store: %v", err)
	}
	sweeper, err := session.NewSweeper(store, cfg.Session.SweepInterval, cfg.Session.MaxIdle)
	if err != nil {
		log.Fatalf("Session sweeper: %v", err)
	}

	// Audio cache
	cache, err := audiocache.New(audiocache.Options{
		TTL:           cfg.AudioCache.TTL,
		FlushInterval: cfg.AudioCache.FlushInterval,
		MaxEntries:    cfg.AudioCache.MaxEntries,
	})
	if err != nil {
		log.Fatalf("Audio cache: %v", err)
	}

	// Agent profiles
	registry, err := agents.NewRegistry(agents.NewFileStore(cfg.Agents.File), seedProfiles(cfg))
	if err != nil {
		log.Fatalf("Agent registry: %v", err)
	}
	log.Printf("Loaded %d agent profiles (default: %s)", len(registry.List()), cfg.Agents.DefaultID)

	// Providers and routers
	providers := provider.NewRegistry(cfg)
	logAvailability(providers)
	models := route.NewModelRouter(cfg, providers)
	voices := route.NewSpeechRouter(cfg, providers, cache)

	// Telephony dialer (optional: outbound calling needs credentials)
	var dialer call.Dialer
	if client, err := telephony.NewClient(cfg.Telephony); err != nil {
		log.Printf("Outbound calling disabled: %v", err)
	} else {
		dialer = client
	}

	records := call.NewRecordStore(cfg.Call.MaxRecords)
	machine := call.NewMachine(cfg, registry, store, records, models, voices, dialer)
	chatAdapter := chat.NewAdapter(cfg, registry, store, models)

	apiServer := httpapi.NewServer(cfg, machine, chatAdapter, registry, records)
	obsServer := observability.NewServer(cfg.Server.MetricsPort)

	sweeper.Start()
	cache.Start()

	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		log.Printf("HTTP server listening on :%d", cfg.Server.Port)
		return apiServer.Start()
	})
	g.Go(func() error {
		log.Printf("Observability server listening on :%d", cfg.Server.MetricsPort)
		return obsServer.Start()
	})

	// Wait for shutdown signal or server error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() { errChan <- g.Wait() }()

	select {
	case err := <-errChan:
		log.Printf("Server error: %v", err)
	case <-ctx.Done():
	case <-quit:
		log.Println("Shutting down...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	if err := obsServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Observability server shutdown error: %v", err)
	}
	sweeper.Stop()
	cache.Stop()
	if err := store.Close(); err != nil {
		log.Printf("Session store close error: %v", err)
	}
	if err := iobs.Shutdown(shutdownCtx); err != nil {
		log.Printf("Tracing shutdown error: %v", err)
	}

	log.Println("Voxgo stopped")
}

// loadConfig reads the config file, falling back to defaults plus
// environment credentials when the file does not exist.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Printf("Config file %s not found, using defaults", path)
		return config.Default(), nil
	}
	return config.LoadConfig(path)
}

func buildSessionStore(cfg *config.Config) (session.Store, error) {
	switch cfg.Session.Backend {
	case "", "memory":
		return session.NewMemoryStore(), nil
	case "redis":
		return session.NewRedisStore(session.RedisConfig{
			Addr:     cfg.Session.RedisAddr,
			Password: cfg.Session.RedisPassword,
			DB:       cfg.Session.RedisDB,
			TTL:      cfg.Session.MaxIdle,
		})
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Session.Backend)
	}
}

func seedProfiles(cfg *config.Config) []agents.Profile {
	out := make([]agents.Profile, 0, len(cfg.Agents.Seed))
	for _, p := range cfg.Agents.Seed {
		out = append(out, agents.Profile{
			ID:           p.ID,
			Name:         p.Name,
			Description:  p.Description,
			Greeting:     p.Greeting,
			Instructions: p.Instructions,
			Voice:        p.Voice,
			PhoneNumber:  p.PhoneNumber,
			Active:       true,
		})
	}
	return out
}

func logAvailability(r *provider.Registry) {
	for _, kind := range []provider.Kind{provider.KindLLM, provider.KindSpeech} {
		available := r.ListAvailable(kind)
		ids := make([]string, 0, len(available))
		for _, d := range available {
			ids = append(ids, d.ID)
		}
		log.Printf("Available %s providers: %v", kind, ids)
	}
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}
