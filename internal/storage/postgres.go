package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/richgang/indice-killer/internal/config"
	"github.com/richgang/indice-killer/internal/models"
	"github.com/richgang/indice-killer/pkg/logger"
)

var (
	dbOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_operations_total",
			Help: "Total number of storage operations",
		},
		[]string{"operation", "status"}, // status: "success" or "error"
	)

	dbOperationLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storage_operation_latency_seconds",
			Help:    "Storage operation latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		},
		[]string{"operation"},
	)
)

const schema = `
CREATE TABLE IF NOT EXISTS signals (
	id          TEXT PRIMARY KEY,
	symbol      TEXT NOT NULL,
	direction   TEXT NOT NULL,
	entry_price DOUBLE PRECISION NOT NULL,
	stop_loss   DOUBLE PRECISION NOT NULL,
	tp1         DOUBLE PRECISION NOT NULL,
	tp2         DOUBLE PRECISION NOT NULL,
	tp3         DOUBLE PRECISION NOT NULL,
	confidence  INTEGER NOT NULL,
	status      TEXT NOT NULL,
	is_pending  BOOLEAN NOT NULL DEFAULT FALSE,
	created_at  TEXT NOT NULL,
	analysis    JSONB NOT NULL,
	session     TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_signals_status_created ON signals (status, created_at DESC);

CREATE TABLE IF NOT EXISTS direction_state (
	id                TEXT PRIMARY KEY,
	current_direction TEXT NOT NULL,
	locked_at         TEXT,
	reason            TEXT NOT NULL DEFAULT ''
);
`

const signalColumns = `id, symbol, direction, entry_price, stop_loss, tp1, tp2, tp3,
	confidence, status, is_pending, created_at, analysis, session`

// PostgresStore implements SignalStorage and DirectionStorage on PostgreSQL
type PostgresStore struct {
	db       *sql.DB
	dbConfig config.DatabaseConfig
}

// ConnString builds the lib/pq connection string
func ConnString(dbConfig config.DatabaseConfig) string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		dbConfig.Host,
		dbConfig.Port,
		dbConfig.User,
		dbConfig.Password,
		dbConfig.Database,
		dbConfig.SSLMode,
	)
}

// NewPostgresStore connects, pings and ensures the schema exists
func NewPostgresStore(ctx context.Context, dbConfig config.DatabaseConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", ConnString(dbConfig))
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(dbConfig.MaxConnections)
	db.SetMaxIdleConns(dbConfig.MaxIdleConns)
	db.SetConnMaxLifetime(dbConfig.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	logger.Info("Connected to PostgreSQL",
		logger.String("host", dbConfig.Host),
		logger.Int("port", dbConfig.Port),
		logger.String("database", dbConfig.Database),
	)

	return &PostgresStore{db: db, dbConfig: dbConfig}, nil
}

// Ping checks the connection, used by the readiness probe
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// WriteSignal implements SignalStorage
func (p *PostgresStore) WriteSignal(ctx context.Context, signal *models.Signal) error {
	if err := signal.Validate(); err != nil {
		return err
	}
	analysis, err := json.Marshal(signal.Analysis)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis: %w", err)
	}

	start := time.Now()
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO signals (`+signalColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		signal.ID, signal.Symbol, string(signal.Direction),
		signal.EntryPrice, signal.StopLoss, signal.TP1, signal.TP2, signal.TP3,
		signal.Confidence, string(signal.Status), signal.IsPending,
		FormatTimestamp(signal.CreatedAt), analysis, signal.Session,
	)
	observe("write_signal", start, err)
	if err != nil {
		return fmt.Errorf("failed to insert signal: %w", err)
	}
	return nil
}

// ListActiveSignals implements SignalStorage
func (p *PostgresStore) ListActiveSignals(ctx context.Context, limit int) ([]*models.Signal, error) {
	statuses := make([]string, len(models.OpenStatuses))
	for i, s := range models.OpenStatuses {
		statuses[i] = string(s)
	}
	return p.querySignals(ctx, "list_active", `
		SELECT `+signalColumns+`
		FROM signals
		WHERE status = ANY($1)
		ORDER BY created_at DESC
		LIMIT $2
	`, pq.Array(statuses), listLimit(limit))
}

// ListPendingSignals implements SignalStorage
func (p *PostgresStore) ListPendingSignals(ctx context.Context, limit int) ([]*models.Signal, error) {
	return p.querySignals(ctx, "list_pending", `
		SELECT `+signalColumns+`
		FROM signals
		WHERE is_pending AND status = $1
		ORDER BY confidence DESC
		LIMIT $2
	`, string(models.StatusPending), listLimit(limit))
}

func (p *PostgresStore) querySignals(ctx context.Context, operation, query string, args ...interface{}) ([]*models.Signal, error) {
	start := time.Now()
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		observe(operation, start, err)
		return nil, fmt.Errorf("failed to query signals: %w", err)
	}
	defer rows.Close()

	signals := make([]*models.Signal, 0)
	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			observe(operation, start, err)
			return nil, err
		}
		signals = append(signals, sig)
	}
	err = rows.Err()
	observe(operation, start, err)
	if err != nil {
		return nil, fmt.Errorf("error iterating signals: %w", err)
	}
	return signals, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSignal(row rowScanner) (*models.Signal, error) {
	var (
		sig       models.Signal
		direction string
		status    string
		createdAt string
		analysis  []byte
	)
	err := row.Scan(
		&sig.ID, &sig.Symbol, &direction,
		&sig.EntryPrice, &sig.StopLoss, &sig.TP1, &sig.TP2, &sig.TP3,
		&sig.Confidence, &status, &sig.IsPending,
		&createdAt, &analysis, &sig.Session,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan signal: %w", err)
	}
	sig.Direction = models.Direction(direction)
	sig.Status = models.SignalStatus(status)
	if sig.CreatedAt, err = ParseTimestamp(createdAt); err != nil {
		return nil, fmt.Errorf("invalid created_at %q: %w", createdAt, err)
	}
	if err := json.Unmarshal(analysis, &sig.Analysis); err != nil {
		return nil, fmt.Errorf("invalid analysis for signal %s: %w", sig.ID, err)
	}
	return &sig, nil
}

// LoadDirection implements DirectionStorage
func (p *PostgresStore) LoadDirection(ctx context.Context) (models.DirectionState, error) {
	var (
		state     models.DirectionState
		direction string
		lockedAt  sql.NullString
	)
	start := time.Now()
	err := p.db.QueryRowContext(ctx, `
		SELECT id, current_direction, locked_at, reason
		FROM direction_state
		WHERE id = $1
	`, models.DirectionStateID).Scan(&state.ID, &direction, &lockedAt, &state.Reason)
	if errors.Is(err, sql.ErrNoRows) {
		observe("load_direction", start, nil)
		return models.DirectionState{}, ErrNotFound
	}
	observe("load_direction", start, err)
	if err != nil {
		return models.DirectionState{}, fmt.Errorf("failed to load direction state: %w", err)
	}

	state.CurrentDirection = models.Direction(direction)
	if lockedAt.Valid && lockedAt.String != "" {
		t, err := ParseTimestamp(lockedAt.String)
		if err != nil {
			return models.DirectionState{}, fmt.Errorf("invalid locked_at %q: %w", lockedAt.String, err)
		}
		state.LockedAt = &t
	}
	return state, nil
}

// SaveDirection implements DirectionStorage
func (p *PostgresStore) SaveDirection(ctx context.Context, state models.DirectionState) error {
	var lockedAt sql.NullString
	if state.LockedAt != nil {
		lockedAt = sql.NullString{String: FormatTimestamp(*state.LockedAt), Valid: true}
	}

	start := time.Now()
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO direction_state (id, current_direction, locked_at, reason)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET current_direction = EXCLUDED.current_direction,
			locked_at = EXCLUDED.locked_at,
			reason = EXCLUDED.reason
	`, models.DirectionStateID, string(state.CurrentDirection), lockedAt, state.Reason)
	observe("save_direction", start, err)
	if err != nil {
		return fmt.Errorf("failed to save direction state: %w", err)
	}
	return nil
}

// Close implements SignalStorage
func (p *PostgresStore) Close() error {
	if err := p.db.Close(); err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}
	logger.Info("PostgreSQL connection closed")
	return nil
}

func listLimit(limit int) int {
	if limit <= 0 || limit > DefaultListLimit {
		return DefaultListLimit
	}
	return limit
}

func observe(operation string, start time.Time, err error) {
	dbOperationLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	status := "success"
	if err != nil {
		status = "error"
	}
	dbOperationsTotal.WithLabelValues(operation, status).Inc()
}
