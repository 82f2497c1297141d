// Package pgstore ukládá čtení do jedné tabulky (TimescaleDB/Postgres).
// Senzor je indexovaný sloupec, ne samostatná tabulka.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/RadouaneGaroiaz/mqtt-project/internal/store"
)

// Schema je idempotentní, spouští se při každém startu.
const Schema = `
CREATE TABLE IF NOT EXISTS sensor_readings (
	id           BIGSERIAL PRIMARY KEY,
	sensor_id    TEXT NOT NULL,
	receipt_time TIMESTAMPTZ NOT NULL,
	status       TEXT NULL,
	temp         DOUBLE PRECISION NOT NULL,
	humidity     DOUBLE PRECISION NOT NULL,
	extra        JSONB NULL,
	data_extra   JSONB NULL
);
ALTER TABLE sensor_readings ADD COLUMN IF NOT EXISTS data_extra JSONB NULL;
CREATE INDEX IF NOT EXISTS sensor_readings_sensor_time_idx ON sensor_readings (sensor_id, receipt_time);
`

const (
	insertSQL = `INSERT INTO sensor_readings (sensor_id, receipt_time, status, temp, humidity, extra, data_extra)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	// id rozhoduje shodné časy v pořadí vložení
	rangeSQL = `SELECT sensor_id, receipt_time, status, temp, humidity, extra, data_extra
		FROM sensor_readings
		WHERE sensor_id = $1 AND receipt_time >= $2 AND receipt_time <= $3
		ORDER BY receipt_time ASC, id ASC`

	latestSQL = `SELECT sensor_id, receipt_time, status, temp, humidity, extra, data_extra
		FROM sensor_readings
		WHERE sensor_id = $1
		ORDER BY receipt_time DESC, id DESC
		LIMIT 1`
)

// Store je backend nad poolem spojení do Postgresu.
type Store struct {
	pool *pgxpool.Pool
}

// Connect vytvoří pool, ověří spojení a založí schéma.
func Connect(ctx context.Context, url string) (*Store, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("chyba konfigurace DB: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("DB není dostupná: %w", err)
	}

	s := &Store{pool: pool}
	if _, err := pool.Exec(ctx, Schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Append vloží jeden řádek.
func (s *Store) Append(ctx context.Context, sensorID string, r store.Reading) error {
	_, err := s.pool.Exec(ctx, insertSQL,
		sensorID, r.ReceiptTime.UTC(), r.Status, r.Data.Temp, r.Data.Humidity, extraArg(r.Extra), extraArg(r.Data.Extra))
	if err != nil {
		return fmt.Errorf("chyba insertu do PG: %w", err)
	}
	return nil
}

// extraArg: prázdná mapa se ukládá jako NULL, ne jako JSON "null".
func extraArg(extra map[string]any) any {
	if len(extra) == 0 {
		return nil
	}
	return extra
}

func (s *Store) QueryRange(ctx context.Context, sensorID string, start, end time.Time) ([]store.Reading, error) {
	rows, err := s.pool.Query(ctx, rangeSQL, sensorID, start, end)
	if err != nil {
		return nil, fmt.Errorf("range query: %w", err)
	}
	defer rows.Close()

	readings := make([]store.Reading, 0, 100)
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		readings = append(readings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("range query: %w", err)
	}
	return readings, nil
}

// Latest vrací nil, když senzor nemá žádný řádek.
func (s *Store) Latest(ctx context.Context, sensorID string) (*store.Reading, error) {
	r, err := scanReading(s.pool.QueryRow(ctx, latestSQL, sensorID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func scanReading(row pgx.Row) (store.Reading, error) {
	var r store.Reading
	if err := row.Scan(&r.SensorID, &r.ReceiptTime, &r.Status, &r.Data.Temp, &r.Data.Humidity, &r.Extra, &r.Data.Extra); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("scan reading: %w", err)
	}
	r.ReceiptTime = r.ReceiptTime.UTC()
	return r, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
