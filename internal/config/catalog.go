package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Sensor je statický záznam katalogu: kde senzor posílá data, kam mu posíláme příkazy
// a kde leží na mapě. Po startu se nemění.
type Sensor struct {
	ID           string  `mapstructure:"id" json:"id"`
	Topic        string  `mapstructure:"topic" json:"topic"`
	ControlTopic string  `mapstructure:"control_topic" json:"control_topic"`
	Latitude     float64 `mapstructure:"lat" json:"latitude"`
	Longitude    float64 `mapstructure:"lon" json:"longitude"`
}

// Catalog je neměnná sada senzorů ve stabilním pořadí.
type Catalog struct {
	sensors []Sensor
	byID    map[string]int
}

// DefaultSensors odpovídá nasazení s třemi místnostmi (Paříž, Londýn, New York).
var DefaultSensors = []Sensor{
	{ID: "room1", Latitude: 48.825745818582114, Longitude: 2.267290496852181},
	{ID: "room2", Latitude: 51.5074, Longitude: -0.1278},
	{ID: "kitchen", Latitude: 40.7128, Longitude: -74.0060},
}

// NewCatalog doplní výchozí topicy a odmítne prázdná nebo duplicitní ID
// a topic, ze kterého by ingestor odvodil jiné ID.
func NewCatalog(sensors []Sensor) (*Catalog, error) {
	c := &Catalog{
		sensors: make([]Sensor, 0, len(sensors)),
		byID:    make(map[string]int, len(sensors)),
	}
	for _, s := range sensors {
		if s.ID == "" {
			return nil, errors.New("sensor without id in catalogue")
		}
		if _, dup := c.byID[s.ID]; dup {
			return nil, fmt.Errorf("duplicate sensor id %q in catalogue", s.ID)
		}
		if s.Topic == "" {
			s.Topic = s.ID + "/topic"
		}
		// Ingestor bere ID senzoru z první části topicu.
		if id, _, _ := strings.Cut(s.Topic, "/"); id != s.ID {
			return nil, fmt.Errorf("sensor %q: topic %q must start with %q/", s.ID, s.Topic, s.ID)
		}
		// Firmware poslouchá příkazy na stejném topicu, na který publikuje.
		if s.ControlTopic == "" {
			s.ControlTopic = s.Topic
		}
		c.byID[s.ID] = len(c.sensors)
		c.sensors = append(c.sensors, s)
	}
	return c, nil
}

// LoadCatalog přečte YAML/JSON soubor se senzory přes viper.
// Chybějící soubor není chyba, použije se DefaultSensors.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return NewCatalog(DefaultSensors)
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return NewCatalog(DefaultSensors)
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading sensor catalogue %s: %w", path, err)
	}

	var file struct {
		Sensors []Sensor `mapstructure:"sensors"`
	}
	if err := v.Unmarshal(&file); err != nil {
		return nil, fmt.Errorf("decoding sensor catalogue %s: %w", path, err)
	}
	if len(file.Sensors) == 0 {
		return nil, fmt.Errorf("sensor catalogue %s lists no sensors", path)
	}
	return NewCatalog(file.Sensors)
}

// Lookup vrací senzor podle ID.
func (c *Catalog) Lookup(id string) (Sensor, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Sensor{}, false
	}
	return c.sensors[i], true
}

// Sensors vrací kopii, volající ji může libovolně měnit.
func (c *Catalog) Sensors() []Sensor {
	out := make([]Sensor, len(c.sensors))
	copy(out, c.sensors)
	return out
}

// Topics jsou telemetrické topicy, na které se transport přihlašuje.
func (c *Catalog) Topics() []string {
	seen := make(map[string]bool, len(c.sensors))
	topics := make([]string, 0, len(c.sensors))
	for _, s := range c.sensors {
		if seen[s.Topic] {
			continue
		}
		seen[s.Topic] = true
		topics = append(topics, s.Topic)
	}
	return topics
}

// IDs vrací ID senzorů v pořadí katalogu.
func (c *Catalog) IDs() []string {
	ids := make([]string, len(c.sensors))
	for i, s := range c.sensors {
		ids[i] = s.ID
	}
	return ids
}
