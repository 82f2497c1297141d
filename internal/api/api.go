// Package api je HTTP rozhraní pro dashboard: stav, statistiky, grafy, příkazy a živý feed.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/RadouaneGaroiaz/mqtt-project/internal/advice"
	"github.com/RadouaneGaroiaz/mqtt-project/internal/command"
	"github.com/RadouaneGaroiaz/mqtt-project/internal/config"
	"github.com/RadouaneGaroiaz/mqtt-project/internal/query"
	"github.com/RadouaneGaroiaz/mqtt-project/internal/transport"
)

// DefaultWindow je výchozí okno statistik, když klient nepošle start/end.
const DefaultWindow = 7 * 24 * time.Hour

// Querier je čtecí strana (query.Engine).
type Querier interface {
	ComputeStatistics(ctx context.Context, sensorID string, start, end time.Time) (*query.Summary, error)
	GetSensorStatus(ctx context.Context, sensorID string) (string, error)
	GetTimeSeries(ctx context.Context, sensorID string, start, end time.Time) ([]query.Point, error)
	Overview(ctx context.Context, start, end time.Time) ([]query.SensorOverview, error)
}

// Commander posílá příkazy (command.Service).
type Commander interface {
	Send(ctx context.Context, sensorID string, cmd command.Command) (command.Record, error)
}

// APIHandler obsluhuje REST endpointy nad query enginem a službou příkazů.
type APIHandler struct {
	engine   Querier
	commands Commander
	catalog  *config.Catalog
	logger   *slog.Logger
	now      func() time.Time
}

// NewAPIHandler vytvoří handler, čas bere z time.Now.
func NewAPIHandler(engine Querier, commands Commander, catalog *config.Catalog, logger *slog.Logger) *APIHandler {
	return &APIHandler{
		engine:   engine,
		commands: commands,
		catalog:  catalog,
		logger:   logger,
		now:      time.Now,
	}
}

// RegisterRoutes zaregistruje /api/... routy do routeru.
func (h *APIHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/sensors", h.handleListSensors)
		r.Get("/sensors/{id}/status", h.handleStatus)
		r.Get("/sensors/{id}/stats", h.handleStats)
		r.Get("/sensors/{id}/series", h.handleSeries)
		r.Post("/sensors/{id}/commands", h.handleCommand)
		r.Get("/overview", h.handleOverview)
	})
}

// GET /api/sensors
func (h *APIHandler) handleListSensors(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.catalog.Sensors())
}

type statusResponse struct {
	SensorID string `json:"sensor_id"`
	Status   string `json:"status"`
}

// GET /api/sensors/{id}/status
func (h *APIHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	status, err := h.engine.GetSensorStatus(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, statusResponse{SensorID: id, Status: status})
}

type statsResponse struct {
	SensorID        string         `json:"sensor_id"`
	Start           time.Time      `json:"start"`
	End             time.Time      `json:"end"`
	Summary         *query.Summary `json:"summary"`
	Recommendations []string       `json:"recommendations"`
}

// GET /api/sensors/{id}/stats?start=2024-06-01&end=2024-06-07
func (h *APIHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	start, end, err := h.window(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	sum, err := h.engine.ComputeStatistics(r.Context(), id, start, end)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := statsResponse{SensorID: id, Start: start, End: end, Summary: sum, Recommendations: []string{}}
	if sum != nil {
		resp.Recommendations = advice.Evaluate(id, *sum)
	}
	h.writeJSON(w, http.StatusOK, resp)
}

type seriesResponse struct {
	SensorID string        `json:"sensor_id"`
	Points   []query.Point `json:"points"`
}

// GET /api/sensors/{id}/series?start=&end=
func (h *APIHandler) handleSeries(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	start, end, err := h.window(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	points, err := h.engine.GetTimeSeries(r.Context(), id, start, end)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, seriesResponse{SensorID: id, Points: points})
}

// GET /api/overview?start=&end=
func (h *APIHandler) handleOverview(w http.ResponseWriter, r *http.Request) {
	start, end, err := h.window(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	rows, err := h.engine.Overview(r.Context(), start, end)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, rows)
}

type commandRequest struct {
	Command string `json:"command"`
}

// POST /api/sensors/{id}/commands  {"command":"ledOn"}
func (h *APIHandler) handleCommand(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Neplatné JSON tělo požadavku"})
		return
	}

	cmd, err := command.ParseCommand(req.Command)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	rec, err := h.commands.Send(r.Context(), id, cmd)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	// 202: broker příkaz převzal, zařízení příjem nepotvrzuje.
	h.writeJSON(w, http.StatusAccepted, rec)
}

// window čte start/end z query stringu. Bez nich platí posledních 7 dní.
func (h *APIHandler) window(r *http.Request) (time.Time, time.Time, error) {
	now := h.now()

	end, err := parseTime(r.URL.Query().Get("end"), now)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start, err := parseTime(r.URL.Query().Get("start"), end.Add(-DefaultWindow))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

var errBadDate = errors.New("invalid date, expected YYYY-MM-DD or RFC 3339")

func parseTime(s string, fallback time.Time) (time.Time, error) {
	if s == "" {
		return fallback, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, errBadDate
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError mapuje doménové chyby na HTTP kódy.
func (h *APIHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errBadDate),
		errors.Is(err, query.ErrInvalidRange),
		errors.Is(err, command.ErrUnknownCommand):
		status = http.StatusBadRequest
	case errors.Is(err, command.ErrUnknownSensor):
		status = http.StatusNotFound
	case errors.Is(err, transport.ErrNotConnected),
		errors.Is(err, transport.ErrPublish):
		status = http.StatusBadGateway
	case errors.Is(err, query.ErrStore):
		status = http.StatusServiceUnavailable
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("Chyba při obsluze požadavku", "path", r.URL.Path, "status", status, "error", err)
	}
	h.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (h *APIHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Chyba při zápisu JSON odpovědi", "error", err)
	}
}
