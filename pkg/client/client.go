// Package client je Go klient pro HTTP API telemetry hubu.
package client

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
)

// --- DATOVÉ MODELY (DTO) ---
// Musí odpovídat tomu, co API posílá.

// Sensor je položka z /api/sensors.
type Sensor struct {
	ID           string  `json:"id"`
	Topic        string  `json:"topic"`
	ControlTopic string  `json:"control_topic"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
}

// Summary je stav senzoru z /api/sensors/{id}/status.
type Summary struct {
	AvgTemp     float64 `json:"avg_temp"`
	MinTemp     float64 `json:"min_temp"`
	MaxTemp     float64 `json:"max_temp"`
	StdTemp     float64 `json:"std_temp"`
	AvgHumidity float64 `json:"avg_humidity"`
	MinHumidity float64 `json:"min_humidity"`
	MaxHumidity float64 `json:"max_humidity"`
	StdHumidity float64 `json:"std_humidity"`
	Count       int     `json:"count"`
}

// Stats: Summary je nil, když v okně nejsou data.
type Stats struct {
	SensorID        string    `json:"sensor_id"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	Summary         *Summary  `json:"summary"`
	Recommendations []string  `json:"recommendations"`
}

// Point je jeden bod časové řady.
type Point struct {
	Time     time.Time `json:"t"`
	Temp     float64   `json:"temp"`
	Humidity float64   `json:"humidity"`
}

// CommandReceipt potvrzuje přijetí příkazu (202).
type CommandReceipt struct {
	RequestID string `json:"request_id"`
	SensorID  string `json:"sensor_id"`
	Topic     string `json:"topic"`
	Command   string `json:"command"`
	SentAt    int64  `json:"sent_at"`
}

// APIError je chybová odpověď API (4xx/5xx).
type APIError struct {
	StatusCode int
	Message    string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// Client zapouzdřuje HTTP volání, zbytek aplikace neřeší URL ani status kódy.
type Client struct {
	http *resty.Client
}

// New vytvoří klienta. Timeout je vždy nastavený, API nesmí zdržet volajícího navěky.
func New(baseURL string) *Client {
	r := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(5*time.Second).
		SetHeader("Accept", "application/json").
		SetError(&APIError{})
	return &Client{http: r}
}

func (c *Client) do(req *resty.Request, method, path string) error {
	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("chyba sítě při volání API: %w", err)
	}
	if resp.IsError() {
		apiErr, ok := resp.Error().(*APIError)
		if !ok || apiErr == nil {
			apiErr = &APIError{}
		}
		apiErr.StatusCode = resp.StatusCode()
		return apiErr
	}
	return nil
}

// Sensors: GET /api/sensors
func (c *Client) Sensors(ctx context.Context) ([]Sensor, error) {
	var out []Sensor
	err := c.do(c.http.R().SetContext(ctx).SetResult(&out), resty.MethodGet, "/api/sensors")
	return out, err
}

// Status: GET /api/sensors/{id}/status
func (c *Client) Status(ctx context.Context, sensorID string) (string, error) {
	var out struct {
		Status string `json:"status"`
	}
	err := c.do(c.http.R().SetContext(ctx).SetResult(&out), resty.MethodGet, sensorPath(sensorID, "status"))
	return out.Status, err
}

// Stats: GET /api/sensors/{id}/stats. Nulové časy = výchozí okno serveru.
func (c *Client) Stats(ctx context.Context, sensorID string, start, end time.Time) (*Stats, error) {
	var out Stats
	req := c.http.R().SetContext(ctx).SetResult(&out).SetQueryParams(window(start, end))
	if err := c.do(req, resty.MethodGet, sensorPath(sensorID, "stats")); err != nil {
		return nil, err
	}
	return &out, nil
}

// Series: GET /api/sensors/{id}/series
func (c *Client) Series(ctx context.Context, sensorID string, start, end time.Time) ([]Point, error) {
	var out struct {
		Points []Point `json:"points"`
	}
	req := c.http.R().SetContext(ctx).SetResult(&out).SetQueryParams(window(start, end))
	err := c.do(req, resty.MethodGet, sensorPath(sensorID, "series"))
	return out.Points, err
}

// SendCommand: POST /api/sensors/{id}/commands. command je "ledOn" nebo "ledOff".
func (c *Client) SendCommand(ctx context.Context, sensorID, command string) (*CommandReceipt, error) {
	var out CommandReceipt
	req := c.http.R().SetContext(ctx).
		SetBody(map[string]string{"command": command}).
		SetResult(&out)
	if err := c.do(req, resty.MethodPost, sensorPath(sensorID, "commands")); err != nil {
		return nil, err
	}
	return &out, nil
}

func sensorPath(sensorID, action string) string {
	return "/api/sensors/" + url.PathEscape(sensorID) + "/" + action
}

func window(start, end time.Time) map[string]string {
	q := map[string]string{}
	if !start.IsZero() {
		q["start"] = start.Format(time.RFC3339)
	}
	if !end.IsZero() {
		q["end"] = end.Format(time.RFC3339)
	}
	return q
}
