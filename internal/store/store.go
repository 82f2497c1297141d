// Package store je systém záznamu pro přijatá čtení senzorů.
// Každý senzor má vlastní, pouze přidávanou (append-only) kolekci seřazenou podle času příjmu.
package store

import (
	"context"
	"time"
)

// Measurements jsou naměřené hodnoty tak, jak je poslalo zařízení.
// Rozsahy se nekontrolují, uloží se i 101 % vlhkosti.
type Measurements struct {
	Temp     float64 `json:"temp" bson:"temp"`
	Humidity float64 `json:"humidity" bson:"humidity"`

	// Extra jsou ostatní pole uvnitř "data" (tlak, baterie ...), ukládají se beze změny.
	Extra map[string]any `json:"extra,omitempty" bson:"extra,omitempty"`
}

// Reading je jedno uložené čtení.
type Reading struct {
	SensorID string `json:"sensor_id" bson:"sensor_id"`

	// ReceiptTime přiděluje ingestor při příjmu (UTC). Čas ze zařízení se pro dotazy nepoužívá.
	ReceiptTime time.Time `json:"timestamp" bson:"receipt_time"`

	// Status je pointer: nil = pole ve zprávě chybělo, "" = přišel prázdný řetězec.
	Status *string `json:"status,omitempty" bson:"status,omitempty"`

	Data Measurements `json:"data" bson:"data"`

	// Extra nese ostatní pole zprávy na nejvyšší úrovni beze změny.
	Extra map[string]any `json:"extra,omitempty" bson:"extra,omitempty"`
}

// Store je kontrakt, který musí splnit každý backend (Mongo, Postgres, Influx, paměť).
type Store interface {
	// Append přidá čtení na konec kolekce senzoru. Selhává jen kvůli nedostupnému úložišti.
	Append(ctx context.Context, sensorID string, r Reading) error

	// QueryRange vrací čtení s ReceiptTime v [start, end] včetně obou mezí, vzestupně.
	// Neznámý senzor vrací prázdný výsledek, ne chybu.
	QueryRange(ctx context.Context, sensorID string, start, end time.Time) ([]Reading, error)

	// Latest vrací čtení s nejvyšším ReceiptTime, nebo nil, pokud žádné není.
	Latest(ctx context.Context, sensorID string) (*Reading, error)

	Close() error
}

// InRange je společná definice okna pro backendy, které filtrují v Go.
func InRange(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}
