package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RadouaneGaroiaz/mqtt-project/internal/advice"
	"github.com/RadouaneGaroiaz/mqtt-project/internal/command"
	"github.com/RadouaneGaroiaz/mqtt-project/internal/config"
	"github.com/RadouaneGaroiaz/mqtt-project/internal/query"
	"github.com/RadouaneGaroiaz/mqtt-project/internal/store"
	"github.com/RadouaneGaroiaz/mqtt-project/internal/transport"
)

var now = time.Date(2024, 6, 7, 15, 0, 0, 0, time.UTC)

type fakeCommander struct {
	err  error
	sent []string
}

func (f *fakeCommander) Send(_ context.Context, id string, cmd command.Command) (command.Record, error) {
	if f.err != nil {
		return command.Record{}, f.err
	}
	f.sent = append(f.sent, id+":"+string(cmd))
	return command.Record{RequestID: "req-1", SensorID: id, Command: cmd, Topic: id + "/topic"}, nil
}

type brokenStore struct{ store.MemoryStore }

func (*brokenStore) Latest(context.Context, string) (*store.Reading, error) {
	return nil, errors.New("mongo down")
}

func newServer(t *testing.T, s store.Store, cmd Commander) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cat, err := config.NewCatalog(config.DefaultSensors)
	require.NoError(t, err)

	engine := query.NewEngine(s, cat, query.WithAdvisor(advice.Evaluate))
	h := NewAPIHandler(engine, cmd, cat, logger)
	h.now = func() time.Time { return now }

	srv := httptest.NewServer(NewRouter(h, nil, nil, nil, []string{"*"}, logger))
	t.Cleanup(srv.Close)
	return srv
}

func seeded(t *testing.T) *store.MemoryStore {
	t.Helper()
	mem := store.NewMemoryStore()
	ok := "ok"
	require.NoError(t, mem.Append(context.Background(), "kitchen", store.Reading{
		SensorID:    "kitchen",
		ReceiptTime: now.Add(-24 * time.Hour),
		Status:      &ok,
		Data:        store.Measurements{Temp: 30, Humidity: 70},
	}))
	return mem
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	srv := newServer(t, store.NewMemoryStore(), &fakeCommander{})
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))
}

func TestHealthReportsBrokerOutage(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cat, err := config.NewCatalog(config.DefaultSensors)
	require.NoError(t, err)
	h := NewAPIHandler(query.NewEngine(store.NewMemoryStore(), cat), &fakeCommander{}, cat, logger)

	var connected atomic.Bool
	srv := httptest.NewServer(NewRouter(h, nil, nil, connected.Load, nil, logger))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	connected.Store(true)
	resp, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestListSensors(t *testing.T) {
	srv := newServer(t, store.NewMemoryStore(), &fakeCommander{})
	var sensors []config.Sensor
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/sensors", &sensors))
	require.Len(t, sensors, len(config.DefaultSensors))
	assert.Equal(t, "room1", sensors[0].ID)
}

func TestStatus(t *testing.T) {
	srv := newServer(t, seeded(t), &fakeCommander{})

	var st statusResponse
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/sensors/kitchen/status", &st))
	assert.Equal(t, statusResponse{SensorID: "kitchen", Status: "ok"}, st)

	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/sensors/room2/status", &st))
	assert.Equal(t, query.StatusNoData, st.Status)
}

func TestStatsDefaultWindow(t *testing.T) {
	srv := newServer(t, seeded(t), &fakeCommander{})

	var resp statsResponse
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/sensors/kitchen/stats", &resp))
	require.NotNil(t, resp.Summary)
	assert.Equal(t, 30.0, resp.Summary.AvgTemp)
	assert.Equal(t, advice.Evaluate("kitchen", *resp.Summary), resp.Recommendations)
	assert.Len(t, resp.Recommendations, 2)
}

func TestStatsEmptyWindow(t *testing.T) {
	srv := newServer(t, seeded(t), &fakeCommander{})

	resp, err := http.Get(srv.URL + "/api/sensors/kitchen/stats?start=2020-01-01&end=2020-01-02")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"summary":null`)
	assert.Contains(t, string(body), `"recommendations":[]`)
}

func TestStatsBadInput(t *testing.T) {
	srv := newServer(t, seeded(t), &fakeCommander{})

	for _, q := range []string{
		"start=2024-06-05&end=2024-06-01",
		"start=yesterday",
		"end=06/01/2024",
	} {
		var e errorResponse
		assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/api/sensors/kitchen/stats?"+q, &e), q)
		assert.NotEmpty(t, e.Error)
	}
}

func TestSeriesAcceptsRFC3339(t *testing.T) {
	srv := newServer(t, seeded(t), &fakeCommander{})

	var resp seriesResponse
	url := fmt.Sprintf("%s/api/sensors/kitchen/series?start=%s&end=%s", srv.URL,
		now.Add(-48*time.Hour).Format(time.RFC3339), now.Format(time.RFC3339))
	assert.Equal(t, http.StatusOK, getJSON(t, url, &resp))
	require.Len(t, resp.Points, 1)
	assert.Equal(t, 70.0, resp.Points[0].Humidity)
}

func TestOverview(t *testing.T) {
	srv := newServer(t, seeded(t), &fakeCommander{})

	var rows []query.SensorOverview
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/overview", &rows))
	require.Len(t, rows, 3)
}

func TestStoreFailureIs503(t *testing.T) {
	srv := newServer(t, &brokenStore{}, &fakeCommander{})
	assert.Equal(t, http.StatusServiceUnavailable, getJSON(t, srv.URL+"/api/sensors/kitchen/status", nil))
}

func TestSendCommand(t *testing.T) {
	cmd := &fakeCommander{}
	srv := newServer(t, store.NewMemoryStore(), cmd)

	resp, err := http.Post(srv.URL+"/api/sensors/kitchen/commands", "application/json", strings.NewReader(`{"command":"ledOn"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	var rec command.Record
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rec))
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "req-1", rec.RequestID)
	assert.Equal(t, []string{"kitchen:ledOn"}, cmd.sent)
}

func TestSendCommandErrors(t *testing.T) {
	cases := []struct {
		name string
		body string
		err  error
		want int
	}{
		{"bad json", `{`, nil, http.StatusBadRequest},
		{"unknown command", `{"command":"blink"}`, nil, http.StatusBadRequest},
		{"unknown sensor", `{"command":"ledOn"}`, command.ErrUnknownSensor, http.StatusNotFound},
		{"broker down", `{"command":"ledOff"}`, transport.ErrNotConnected, http.StatusBadGateway},
		{"publish failed", `{"command":"ledOff"}`, fmt.Errorf("send: %w", transport.ErrPublish), http.StatusBadGateway},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newServer(t, store.NewMemoryStore(), &fakeCommander{err: tc.err})
			resp, err := http.Post(srv.URL+"/api/sensors/kitchen/commands", "application/json", strings.NewReader(tc.body))
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newServer(t, store.NewMemoryStore(), &fakeCommander{})

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/sensors/kitchen/commands", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
