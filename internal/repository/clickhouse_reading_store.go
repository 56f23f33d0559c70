package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"GreyPulse/internal/domain/models"
	"GreyPulse/internal/domain/repository"
	pkgch "GreyPulse/pkg/clickhouse"
	applogger "GreyPulse/pkg/logger"
)

const readingsTable = "gmp_readings"

// CHReadingStore implements ReadingStore on ClickHouse. Readings are
// append-only; consensus history is never rewritten.
type CHReadingStore struct {
	client *pkgch.Client
	db     *sql.DB
	l      *applogger.Logger
}

func NewCHReadingStore(ch *pkgch.Client, l *applogger.Logger) *CHReadingStore {
	return &CHReadingStore{client: ch, db: ch.DB(), l: l}
}

// Init ensures the readings table exists. Idempotent.
func (s *CHReadingStore) Init(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			ts            DateTime64(3),
			instrument_id String,
			symbol        String,
			value         Float64,
			pct_of_ref    Float64,
			volume        Float64,
			bid           Float64,
			ask           Float64,
			mid           Float64,
			spread        Float64,
			confidence    Float64,
			source_count  UInt8,
			sources       Array(String),
			quality       UInt8,
			grade         FixedString(1)
		) ENGINE = MergeTree()
		PARTITION BY toYYYYMM(ts)
		ORDER BY (instrument_id, ts)
		TTL toDateTime(ts) + INTERVAL 90 DAY
		`, readingsTable),
	}
	return s.client.InitSchema(ctx, stmts)
}

func (s *CHReadingStore) AppendReading(ctx context.Context, r *models.AggregatedReading) error {
	q := fmt.Sprintf(`INSERT INTO %s
		(ts, instrument_id, symbol, value, pct_of_ref, volume, bid, ask, mid, spread, confidence, source_count, sources, quality, grade)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, readingsTable)

	_, err := s.db.ExecContext(ctx, q,
		r.Timestamp,
		r.InstrumentID,
		r.Symbol,
		r.Value,
		r.PctOfRef,
		r.Volume,
		r.Bid,
		r.Ask,
		r.Mid,
		r.Spread,
		r.Confidence,
		uint8(r.SourceCount),
		r.Sources,
		uint8(r.Quality),
		r.Grade,
	)
	if err != nil {
		return fmt.Errorf("append reading: %w", err)
	}
	return nil
}

// LatestReading returns the most recent consensus for an instrument, or
// (nil, nil) when nothing has been recorded.
func (s *CHReadingStore) LatestReading(ctx context.Context, instrumentID string) (*models.AggregatedReading, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s
		WHERE instrument_id = ?
		ORDER BY ts DESC
		LIMIT 1`, readingColumns, readingsTable)

	r, err := scanReading(s.db.QueryRowContext(ctx, q, instrumentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest reading: %w", err)
	}
	return r, nil
}

// RecentReadings returns up to count readings for an instrument,
// oldest first.
func (s *CHReadingStore) RecentReadings(ctx context.Context, instrumentID string, count int) ([]*models.AggregatedReading, error) {
	if count <= 0 {
		return nil, nil
	}
	start := time.Now()
	q := fmt.Sprintf(`SELECT %s FROM %s
		WHERE instrument_id = ?
		ORDER BY ts DESC
		LIMIT ?`, readingColumns, readingsTable)

	rows, err := s.db.QueryContext(ctx, q, instrumentID, count)
	if err != nil {
		return nil, fmt.Errorf("recent readings: %w", err)
	}
	defer rows.Close()

	out := make([]*models.AggregatedReading, 0, count)
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	// query returns newest first; callers want chronological order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}

	s.l.Debug("clickhouse recent_readings",
		applogger.String("instrument", instrumentID),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration", time.Since(start)))
	return out, nil
}

func (s *CHReadingStore) Health(ctx context.Context) error {
	return s.client.Health(ctx)
}

func (s *CHReadingStore) Close() error {
	return nil // pool owned by pkg client
}

const readingColumns = "ts, instrument_id, symbol, value, pct_of_ref, volume, bid, ask, mid, spread, confidence, source_count, sources, quality, grade"

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReading(row rowScanner) (*models.AggregatedReading, error) {
	var r models.AggregatedReading
	var sourceCount, quality uint8
	if err := row.Scan(
		&r.Timestamp,
		&r.InstrumentID,
		&r.Symbol,
		&r.Value,
		&r.PctOfRef,
		&r.Volume,
		&r.Bid,
		&r.Ask,
		&r.Mid,
		&r.Spread,
		&r.Confidence,
		&sourceCount,
		&r.Sources,
		&quality,
		&r.Grade,
	); err != nil {
		return nil, err
	}
	r.SourceCount = int(sourceCount)
	r.Quality = int(quality)
	return &r, nil
}

var _ repository.ReadingStore = (*CHReadingStore)(nil)
