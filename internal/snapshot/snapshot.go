// Package snapshot persists a periodic whole-registry snapshot to Postgres
// via pgx, so a coordinator restart can reseed its in-memory registry
// instead of starting cold. Dedup, quota and session state are not
// persisted; each snapshot holds the agent roster and aggregate health
// counts only. This is genuinely
// optional: a deployment with no PostgresDSN configured simply never
// constructs a Writer, and the coordinator runs memory/Redis-only.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/OHMS-DeAI/ohms-coordinator/internal/coordinator"
	"github.com/OHMS-DeAI/ohms-coordinator/internal/logging"
)

// Writer periodically persists a coordinator.CoordinatorHealth plus the
// full agent roster to Postgres, keyed by a monotonic snapshot id.
type Writer struct {
	pool *pgxpool.Pool
	log  logging.ComponentLogger
}

// Open connects a pgx pool against dsn. Callers are expected to have run
// the migrations in internal/snapshot/migrations against the same database
// beforehand.
func Open(ctx context.Context, dsn string, log logging.ComponentLogger) (*Writer, error) {
	if log == nil {
		log = logging.NoOp{}
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("snapshot: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("snapshot: ping: %w", err)
	}
	return &Writer{pool: pool, log: log.WithComponent("snapshot")}, nil
}

// Close releases the underlying connection pool.
func (w *Writer) Close() {
	if w == nil || w.pool == nil {
		return
	}
	w.pool.Close()
}

// Write inserts one snapshot row capturing the registry roster and
// aggregate health at the time of the call.
func (w *Writer) Write(ctx context.Context, health coordinator.CoordinatorHealth, agents []coordinator.AgentDescriptor) error {
	payload, err := json.Marshal(agents)
	if err != nil {
		return fmt.Errorf("snapshot: marshal agents: %w", err)
	}

	_, err = w.pool.Exec(ctx, `
		INSERT INTO coordinator_snapshots (taken_at, agents_total, agents_healthy, sessions_active, dedup_cache_size, agents)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, time.Now().UTC(), health.AgentsTotal, health.AgentsHealthy, health.SessionsActive, health.DedupCacheSize, payload)
	if err != nil {
		return fmt.Errorf("snapshot: insert: %w", err)
	}
	return nil
}

// Latest loads the most recent snapshot's agent roster, for use as a
// restart-time reseed of the in-memory registry. Returns (nil, nil) if no
// snapshot has ever been written.
func (w *Writer) Latest(ctx context.Context) ([]coordinator.AgentDescriptor, error) {
	row := w.pool.QueryRow(ctx, `
		SELECT agents FROM coordinator_snapshots ORDER BY taken_at DESC LIMIT 1
	`)

	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("snapshot: scan latest: %w", err)
	}

	var agents []coordinator.AgentDescriptor
	if err := json.Unmarshal(raw, &agents); err != nil {
		return nil, fmt.Errorf("snapshot: unmarshal latest: %w", err)
	}
	return agents, nil
}

// Run blocks, writing a snapshot every interval until ctx is cancelled.
func (w *Writer) Run(ctx context.Context, interval time.Duration, collect func() (coordinator.CoordinatorHealth, []coordinator.AgentDescriptor)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			health, agents := collect()
			if err := w.Write(ctx, health, agents); err != nil {
				w.log.Warn("periodic snapshot write failed", map[string]interface{}{"error": err})
			}
		}
	}
}
