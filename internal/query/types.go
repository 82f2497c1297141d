package query

import (
	"time"

	"github.com/RadouaneGaroiaz/mqtt-project/internal/config"
)

const (
	// StatusUnknown: poslední čtení existuje, ale status neposlalo.
	StatusUnknown = "Unknown"
	// StatusNoData: senzor zatím nic neposlal.
	StatusNoData = "No Data"
)

// Summary jsou statistiky čtení v okně. Počítá se při každém dotazu, necachuje se.
// Std* je populační směrodatná odchylka (dělí se počtem, ne počtem - 1).
type Summary struct {
	AvgTemp float64 `json:"avg_temp"`
	MinTemp float64 `json:"min_temp"`
	MaxTemp float64 `json:"max_temp"`
	StdTemp float64 `json:"std_temp"`

	AvgHumidity float64 `json:"avg_humidity"`
	MinHumidity float64 `json:"min_humidity"`
	MaxHumidity float64 `json:"max_humidity"`
	StdHumidity float64 `json:"std_humidity"`

	Count int `json:"count"`
}

// Point je jeden bod grafu. Krátký klíč času šetří JSON při tisících bodů.
type Point struct {
	Time     time.Time `json:"t"`
	Temp     float64   `json:"temp"`
	Humidity float64   `json:"humidity"`
}

// SensorOverview je jeden řádek přehledu (mapa + tabulka na dashboardu).
type SensorOverview struct {
	Sensor          config.Sensor `json:"sensor"`
	Status          string        `json:"status"`
	Summary         *Summary      `json:"summary"` // nil = v okně nejsou data
	Recommendations []string      `json:"recommendations"`
}
