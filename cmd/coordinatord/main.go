// Command coordinatord runs the multi-agent coordinator as a standalone
// HTTP service: agent registry, request routing, instruction-driven
// spawning, and quota mirroring behind one authenticated RPC surface.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/OHMS-DeAI/ohms-coordinator/internal/api"
	"github.com/OHMS-DeAI/ohms-coordinator/internal/config"
	"github.com/OHMS-DeAI/ohms-coordinator/internal/coordinator"
	"github.com/OHMS-DeAI/ohms-coordinator/internal/economics"
	"github.com/OHMS-DeAI/ohms-coordinator/internal/inference"
	"github.com/OHMS-DeAI/ohms-coordinator/internal/logging"
	"github.com/OHMS-DeAI/ohms-coordinator/internal/snapshot"
	"github.com/OHMS-DeAI/ohms-coordinator/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "coordinatord:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}

	telemetryProvider, err := telemetry.New(cfg.Name)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = telemetryProvider.Shutdown(shutdownCtx)
	}()

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis url: %w", err)
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Warn("redis unreachable at startup, registry mirror disabled", map[string]interface{}{"error": err})
			redisClient = nil
		}
	}

	var econClient coordinator.EconomicsClient
	var econHealth *economics.Client
	if cfg.EconomicsBaseURL != "" {
		econHealth = economics.New(cfg.EconomicsBaseURL, cfg.CollaboratorTimeout, log)
		econClient = econHealth
	}

	var inferClient coordinator.InferenceClient
	if cfg.InferenceBaseURL != "" {
		inferClient = inference.New(cfg.InferenceBaseURL, cfg.CollaboratorTimeout, log)
	}

	state := coordinator.New(cfg, redisClient, inferClient, econClient, log)

	var snapWriter *snapshot.Writer
	if cfg.PostgresDSN != "" {
		if err := snapshot.Migrate(cfg.PostgresDSN); err != nil {
			return fmt.Errorf("snapshot migrate: %w", err)
		}
		snapWriter, err = snapshot.Open(ctx, cfg.PostgresDSN, log)
		if err != nil {
			return fmt.Errorf("snapshot open: %w", err)
		}
		defer snapWriter.Close()

		if seed, err := snapWriter.Latest(ctx); err != nil {
			log.Warn("failed to load latest snapshot", map[string]interface{}{"error": err})
		} else {
			for i := range seed {
				_ = state.Registry.Register(ctx, &seed[i])
			}
			if len(seed) > 0 {
				log.Info("reseeded registry from snapshot", map[string]interface{}{"agents": len(seed)})
			}
		}

		go snapWriter.Run(ctx, 5*time.Minute, func() (coordinator.CoordinatorHealth, []coordinator.AgentDescriptor) {
			return state.Health(), state.Registry.List()
		})
	}

	go sweepLoop(ctx, state, log)

	var econHealthFn func(context.Context) (economics.Health, error)
	if econHealth != nil {
		econHealthFn = econHealth.Health
	}

	server := api.NewServer(state, log, api.Options{
		EconHealthCheck: econHealthFn,
	})

	return server.Serve(ctx, fmt.Sprintf(":%d", cfg.Port))
}

// sweepLoop periodically reclaims expired dedup entries and timed-out
// coordination sessions, the background half of the hard core's GC.
func sweepLoop(ctx context.Context, state *coordinator.State, log logging.ComponentLogger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			dedup, sessions := state.SweepExpired(ctx)
			if dedup > 0 || sessions > 0 {
				log.Debug("swept expired state", map[string]interface{}{
					"dedup_removed":    dedup,
					"sessions_removed": sessions,
				})
			}
		}
	}
}
