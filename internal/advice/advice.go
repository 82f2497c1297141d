// Package advice převádí statistiky senzoru na textová doporučení.
package advice

import (
	"fmt"

	"github.com/RadouaneGaroiaz/mqtt-project/internal/query"
)

const (
	// Prahy jsou ostré: přesně 25 °C nebo 60 % ještě doporučení nespustí.
	TempThreshold     = 25.0
	HumidityThreshold = 60.0
)

const NormalConditions = "Doporučení: Podmínky jsou v normálu."

// Evaluate je čistá funkce, stejný vstup dává stejný výstup.
// Teplota má přednost před vlhkostí, výsledek nikdy není prázdný.
func Evaluate(sensorID string, s query.Summary) []string {
	var recs []string

	if s.AvgTemp > TempThreshold {
		recs = append(recs, fmt.Sprintf("Doporučení: Ochlaďte %s klimatizací.", sensorID))
	}
	if s.AvgHumidity > HumidityThreshold {
		recs = append(recs, fmt.Sprintf("Doporučení: Použijte v %s odvlhčovač.", sensorID))
	}

	if len(recs) == 0 {
		recs = append(recs, NormalConditions)
	}
	return recs
}
