package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	createAlertsTableSQL = `CREATE TABLE IF NOT EXISTS alerts (
        id          BIGSERIAL PRIMARY KEY,
        instrument  TEXT        NOT NULL,
        direction   TEXT        NOT NULL,
        price       NUMERIC     NOT NULL,
        currency    TEXT        NOT NULL,
        lower_bound NUMERIC     NOT NULL,
        upper_bound NUMERIC     NOT NULL,
        channels    TEXT[]      NOT NULL DEFAULT '{}',
        created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
    );
    CREATE INDEX IF NOT EXISTS alerts_created_at_idx ON alerts (created_at);`

	insertAlertSQL = `INSERT INTO alerts (
        instrument,
        direction,
        price,
        currency,
        lower_bound,
        upper_bound,
        channels,
        created_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8
    )
    RETURNING id, created_at;`

	selectAlertColumns = `SELECT
        id,
        instrument,
        direction,
        price::text,
        currency,
        lower_bound::text,
        upper_bound::text,
        channels,
        created_at
    FROM alerts`

	listRecentAlertsSQL = selectAlertColumns + `
    ORDER BY created_at DESC
    LIMIT $1;`

	listAlertsBetweenSQL = selectAlertColumns + `
    WHERE created_at >= $1
      AND created_at < $2
    ORDER BY created_at;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// AlertStore defines operations for alert auditing.
type AlertStore interface {
	InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error)
	ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error)
	ListAlertsBetween(ctx context.Context, from, to time.Time) ([]AlertRecord, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store persists the alert audit log.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// best effort; the lock dies with the session anyway
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// InsertAlert persists an alert emission.
func (s *Store) InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return AlertRecord{}, err
	}

	createdAt := alert.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	channels := alert.Channels
	if channels == nil {
		channels = []string{}
	}

	row := pool.QueryRow(ctx, insertAlertSQL,
		alert.Instrument,
		alert.Direction,
		alert.Price.String(),
		alert.Currency,
		alert.LowerBound.String(),
		alert.UpperBound.String(),
		channels,
		createdAt,
	)

	rec := alert
	rec.Channels = channels
	if scanErr := row.Scan(&rec.ID, &rec.CreatedAt); scanErr != nil {
		return AlertRecord{}, fmt.Errorf("insert alert: %w", scanErr)
	}
	return rec, nil
}

// ListRecentAlerts lists most recent alerts.
func (s *Store) ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentAlertsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent alerts: %w", queryErr)
	}
	return collectAlerts(rows, limit)
}

// ListAlertsBetween lists alerts within a time window.
func (s *Store) ListAlertsBetween(ctx context.Context, from, to time.Time) ([]AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listAlertsBetweenSQL, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list alerts between: %w", queryErr)
	}
	return collectAlerts(rows, 0)
}

func collectAlerts(rows pgx.Rows, capacity int) ([]AlertRecord, error) {
	defer rows.Close()

	alerts := make([]AlertRecord, 0, capacity)
	for rows.Next() {
		rec, scanErr := scanAlert(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		alerts = append(alerts, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

func scanAlert(rows pgx.Rows) (AlertRecord, error) {
	var (
		rec      AlertRecord
		priceStr string
		lowerStr string
		upperStr string
	)

	if err := rows.Scan(
		&rec.ID,
		&rec.Instrument,
		&rec.Direction,
		&priceStr,
		&rec.Currency,
		&lowerStr,
		&upperStr,
		&rec.Channels,
		&rec.CreatedAt,
	); err != nil {
		return AlertRecord{}, err
	}

	var err error
	if rec.Price, err = decimal.NewFromString(priceStr); err != nil {
		return AlertRecord{}, fmt.Errorf("parse price: %w", err)
	}
	if rec.LowerBound, err = decimal.NewFromString(lowerStr); err != nil {
		return AlertRecord{}, fmt.Errorf("parse lower bound: %w", err)
	}
	if rec.UpperBound, err = decimal.NewFromString(upperStr); err != nil {
		return AlertRecord{}, fmt.Errorf("parse upper bound: %w", err)
	}
	return rec, nil
}

var (
	_ AlertStore     = (*Store)(nil)
	_ AdvisoryLocker = (*Store)(nil)
)
