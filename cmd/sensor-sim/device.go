package main

import (
	"encoding/json"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync/atomic"

	"github.com/shirou/gopsutil/v3/host"
)

// Device emuluje jednu desku s DHT22 a LED diodou.
type Device struct {
	ID    string
	Topic string

	logger *slog.Logger

	// noise vrací náhodný posun v rozsahu (-amp, amp).
	noise func(amp float64) float64

	// hostTemp čte teplotu z čidel hostitele. ok=false => náhodná procházka.
	hostTemp func() (float64, bool)

	temp     float64
	humidity float64
	led      atomic.Bool // mění ho callback paho z jiné goroutiny
	prev     string
}

type payload struct {
	Status string      `json:"status"`
	Data   measurement `json:"data"`
}

type measurement struct {
	Temp     float64 `json:"temp"`
	Humidity float64 `json:"humidity"`
}

// NewDevice vytvoří zařízení s deterministickým šumem podle seed.
func NewDevice(id, topic string, seed uint64, logger *slog.Logger) *Device {
	return &Device{
		ID:       id,
		Topic:    topic,
		logger:   logger,
		noise:    randomStep(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))),
		hostTemp: hostTemperature,
		temp:     22,
		humidity: 45,
	}
}

// Measure posune hodnoty a zaokrouhlí je na rozlišení DHT22 (0.1).
func (d *Device) Measure() measurement {
	if t, ok := d.hostTemp(); ok {
		d.temp = t
	} else {
		d.temp = clamp(d.temp+d.noise(0.3), 15, 35)
	}
	d.humidity = clamp(d.humidity+d.noise(1.0), 20, 90)

	return measurement{Temp: round1(d.temp), Humidity: round1(d.humidity)}
}

func randomStep(rng *rand.Rand) func(float64) float64 {
	return func(amp float64) float64 {
		return (rng.Float64()*2 - 1) * amp
	}
}

// Next vrátí zprávu k odeslání. changed=false, pokud je stejná jako minule (firmware ji neposílá).
func (d *Device) Next() (msg []byte, changed bool) {
	m := d.Measure()
	b, err := json.Marshal(payload{Status: "Connected", Data: m})
	if err != nil {
		d.logger.Error("Nelze serializovat měření", "error", err)
		return nil, false
	}
	if string(b) == d.prev {
		return nil, false
	}
	d.prev = string(b)
	return b, true
}

// HandleCommand zpracuje zprávu z řídicího topicu. Na stejném topicu chodí i vlastní telemetrie,
// ta se ignoruje stejně jako neznámé příkazy.
func (d *Device) HandleCommand(msg []byte) {
	switch string(msg) {
	case "ledOn":
		d.led.Store(true)
		d.logger.Info("LED zapnuta", "sensor", d.ID)
	case "ledOff":
		d.led.Store(false)
		d.logger.Info("LED vypnuta", "sensor", d.ID)
	default:
		d.logger.Debug("Neznámý příkaz", "sensor", d.ID, "payload", string(msg))
	}
}

func (d *Device) LED() bool {
	return d.led.Load()
}

// hostTemperature zprůměruje čidla hostitele (gopsutil). Na strojích bez čidel vrací ok=false.
func hostTemperature() (float64, bool) {
	temps, err := host.SensorsTemperatures()
	if err != nil && len(temps) == 0 {
		return 0, false
	}

	var sum float64
	var n int
	for _, t := range temps {
		// Mimo rozsah DHT22 (-40..80) nebo nesmyslné nuly
		if t.Temperature <= 0 || t.Temperature > 80 {
			continue
		}
		sum += t.Temperature
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
