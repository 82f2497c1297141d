// Package query počítá z uložených čtení statistiky, stav senzoru a časové řady.
// Do úložiště nikdy nezapisuje.
package query

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/RadouaneGaroiaz/mqtt-project/internal/config"
	"github.com/RadouaneGaroiaz/mqtt-project/internal/store"
)

var (
	// ErrInvalidRange: začátek okna je po jeho konci. Meze neprohazujeme.
	ErrInvalidRange = errors.New("invalid time range: start is after end")
	ErrStore        = errors.New("reading store query failed")
)

// Advisor vyrábí doporučení ze statistik (advice.Evaluate).
type Advisor func(sensorID string, s Summary) []string

// Engine počítá agregace nad úložištěm. Nic si nepamatuje, každý dotaz jde do store.
type Engine struct {
	store   store.Store
	catalog *config.Catalog
	advisor Advisor
}

// Option nastavuje Engine.
type Option func(*Engine)

// WithAdvisor zapne doporučení v Overview.
func WithAdvisor(a Advisor) Option {
	return func(e *Engine) { e.advisor = a }
}

// NewEngine vytvoří engine nad store. Katalog určuje senzory pro Overview.
func NewEngine(s store.Store, catalog *config.Catalog, opts ...Option) *Engine {
	e := &Engine{store: s, catalog: catalog}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Window roztáhne okno na celé kalendářní dny v lokaci vstupů:
// start na 00:00:00, end na 23:59:59.999999 (mikrosekundy, ne nanosekundy).
func Window(start, end time.Time) (time.Time, time.Time, error) {
	if start.After(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %s > %s", ErrInvalidRange,
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	y, m, d := start.Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, start.Location())

	y, m, d = end.Date()
	to := time.Date(y, m, d, 23, 59, 59, 999999000, end.Location())

	return from, to, nil
}

func (e *Engine) readings(ctx context.Context, sensorID string, start, end time.Time) ([]store.Reading, error) {
	from, to, err := Window(start, end)
	if err != nil {
		return nil, err
	}

	rs, err := e.store.QueryRange(ctx, sensorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("%w: sensor %s: %v", ErrStore, sensorID, err)
	}
	return rs, nil
}

// ComputeStatistics vrací nil, když v okně nic není.
func (e *Engine) ComputeStatistics(ctx context.Context, sensorID string, start, end time.Time) (*Summary, error) {
	rs, err := e.readings(ctx, sensorID, start, end)
	if err != nil {
		return nil, err
	}
	return Summarize(rs), nil
}

// Summarize spočítá statistiky. Hodnoty se nefiltrují, i nesmysly ze senzoru jdou do průměru.
func Summarize(rs []store.Reading) *Summary {
	if len(rs) == 0 {
		return nil
	}

	temps := make([]float64, len(rs))
	hums := make([]float64, len(rs))
	for i, r := range rs {
		temps[i] = r.Data.Temp
		hums[i] = r.Data.Humidity
	}

	s := &Summary{Count: len(rs)}
	s.AvgTemp, s.MinTemp, s.MaxTemp, s.StdTemp = describe(temps)
	s.AvgHumidity, s.MinHumidity, s.MaxHumidity, s.StdHumidity = describe(hums)
	return s
}

// describe: průměr, minimum, maximum, populační odchylka. Dva průchody kvůli přesnosti.
func describe(xs []float64) (mean, lo, hi, std float64) {
	lo, hi = xs[0], xs[0]
	var sum float64
	for _, x := range xs {
		sum += x
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	n := float64(len(xs))
	mean = sum / n

	var sq float64
	for _, x := range xs {
		sq += (x - mean) * (x - mean)
	}
	std = math.Sqrt(sq / n)
	return mean, lo, hi, std
}

// GetSensorStatus vrací status posledního čtení, StatusUnknown nebo StatusNoData.
func (e *Engine) GetSensorStatus(ctx context.Context, sensorID string) (string, error) {
	r, err := e.store.Latest(ctx, sensorID)
	if err != nil {
		return "", fmt.Errorf("%w: sensor %s: %v", ErrStore, sensorID, err)
	}
	switch {
	case r == nil:
		return StatusNoData, nil
	case r.Status == nil:
		return StatusUnknown, nil
	default:
		return *r.Status, nil
	}
}

// GetTimeSeries vrací body vzestupně podle času příjmu. Prázdné okno = prázdný slice.
func (e *Engine) GetTimeSeries(ctx context.Context, sensorID string, start, end time.Time) ([]Point, error) {
	rs, err := e.readings(ctx, sensorID, start, end)
	if err != nil {
		return nil, err
	}

	points := make([]Point, 0, len(rs))
	for _, r := range rs {
		points = append(points, Point{Time: r.ReceiptTime, Temp: r.Data.Temp, Humidity: r.Data.Humidity})
	}
	return points, nil
}

// Overview složí dashboard pro všechny senzory z katalogu v pořadí katalogu.
// Chyba jednoho senzoru shodí celý přehled.
func (e *Engine) Overview(ctx context.Context, start, end time.Time) ([]SensorOverview, error) {
	if _, _, err := Window(start, end); err != nil {
		return nil, err
	}

	sensors := e.catalog.Sensors()
	out := make([]SensorOverview, 0, len(sensors))
	for _, s := range sensors {
		status, err := e.GetSensorStatus(ctx, s.ID)
		if err != nil {
			return nil, err
		}
		sum, err := e.ComputeStatistics(ctx, s.ID, start, end)
		if err != nil {
			return nil, err
		}

		row := SensorOverview{Sensor: s, Status: status, Summary: sum, Recommendations: []string{}}
		if sum != nil && e.advisor != nil {
			row.Recommendations = e.advisor(s.ID, *sum)
		}
		out = append(out, row)
	}
	return out, nil
}
