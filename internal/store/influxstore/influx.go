// Package influxstore ukládá čtení jako body InfluxDB 2.x: measurement sensor_reading,
// tag sensor_id, pole temp/humidity/status/extra/data_extra, čas bodu = čas příjmu.
package influxstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"

	"github.com/RadouaneGaroiaz/mqtt-project/internal/store"
)

const measurement = "sensor_reading"

// Store je backend nad jedním bucketem InfluxDB.
type Store struct {
	client influxdb2.Client
	org    string
	bucket string
}

// Connect vytvoří klienta a zkontroluje health endpoint.
func Connect(ctx context.Context, url, token, org, bucket string) (*Store, error) {
	client := influxdb2.NewClient(url, token)

	health, err := client.Health(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to InfluxDB: %w", err)
	}
	if health.Status != "pass" {
		client.Close()
		return nil, fmt.Errorf("InfluxDB health check failed: %s", health.Status)
	}

	return &Store{client: client, org: org, bucket: bucket}, nil
}

// Append zapíše jeden bod blokujícím write API.
func (s *Store) Append(ctx context.Context, sensorID string, r store.Reading) error {
	fields := map[string]interface{}{
		"temp":     r.Data.Temp,
		"humidity": r.Data.Humidity,
	}
	if r.Status != nil {
		fields["status"] = *r.Status
	}
	// Influx neumí vnořené hodnoty, pole navíc jdou jako JSON text.
	for name, extra := range map[string]map[string]any{"extra": r.Extra, "data_extra": r.Data.Extra} {
		if len(extra) == 0 {
			continue
		}
		raw, err := json.Marshal(extra)
		if err != nil {
			return fmt.Errorf("encoding %s fields: %w", name, err)
		}
		fields[name] = string(raw)
	}

	p := influxdb2.NewPoint(measurement, map[string]string{"sensor_id": sensorID}, fields, r.ReceiptTime)
	if err := s.client.WriteAPIBlocking(s.org, s.bucket).WritePoint(ctx, p); err != nil {
		return fmt.Errorf("error writing to InfluxDB: %w", err)
	}
	return nil
}

// RangeQuery staví Flux dotaz. stop je ve Fluxu exkluzivní, proto end + 1ns.
func RangeQuery(bucket, sensorID string, start, end time.Time) string {
	return fmt.Sprintf(`from(bucket: %q)
	|> range(start: %s, stop: %s)
	|> filter(fn: (r) => r._measurement == %q and r.sensor_id == %q)
	|> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")
	|> sort(columns: ["_time"])`,
		bucket, start.UTC().Format(time.RFC3339Nano), end.Add(time.Nanosecond).UTC().Format(time.RFC3339Nano),
		measurement, sensorID)
}

// LatestQuery vrací nejnovější bod senzoru za celou historii bucketu.
func LatestQuery(bucket, sensorID string) string {
	return fmt.Sprintf(`from(bucket: %q)
	|> range(start: 0)
	|> filter(fn: (r) => r._measurement == %q and r.sensor_id == %q)
	|> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")
	|> sort(columns: ["_time"], desc: true)
	|> limit(n: 1)`, bucket, measurement, sensorID)
}

func (s *Store) run(ctx context.Context, sensorID, flux string) ([]store.Reading, error) {
	result, err := s.client.QueryAPI(s.org).Query(ctx, flux)
	if err != nil {
		return nil, fmt.Errorf("error querying InfluxDB: %w", err)
	}
	defer result.Close()

	readings := make([]store.Reading, 0)
	for result.Next() {
		rec := result.Record()
		readings = append(readings, FromValues(sensorID, rec.Time(), rec.Values()))
	}
	if result.Err() != nil {
		return nil, fmt.Errorf("error reading InfluxDB result: %w", result.Err())
	}
	return readings, nil
}

func (s *Store) QueryRange(ctx context.Context, sensorID string, start, end time.Time) ([]store.Reading, error) {
	return s.run(ctx, sensorID, RangeQuery(s.bucket, sensorID, start, end))
}

func (s *Store) Latest(ctx context.Context, sensorID string) (*store.Reading, error) {
	rs, err := s.run(ctx, sensorID, LatestQuery(s.bucket, sensorID))
	if err != nil || len(rs) == 0 {
		return nil, err
	}
	return &rs[0], nil
}

// FromValues převede pivotovaný řádek Fluxu zpět na Reading.
func FromValues(sensorID string, t time.Time, values map[string]interface{}) store.Reading {
	r := store.Reading{SensorID: sensorID, ReceiptTime: t.UTC()}
	r.Data.Temp = toFloat(values["temp"])
	r.Data.Humidity = toFloat(values["humidity"])
	if status, ok := values["status"].(string); ok {
		r.Status = &status
	}
	r.Extra = decodeExtra(values["extra"])
	r.Data.Extra = decodeExtra(values["data_extra"])
	return r
}

func decodeExtra(v interface{}) map[string]any {
	raw, ok := v.(string)
	if !ok || raw == "" {
		return nil
	}
	var extra map[string]any
	if json.Unmarshal([]byte(raw), &extra) != nil {
		return nil
	}
	return extra
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case uint64:
		return float64(n)
	}
	return 0
}

func (s *Store) Close() error {
	s.client.Close()
	return nil
}
