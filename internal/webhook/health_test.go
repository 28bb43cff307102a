package webhook

import (
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redhat-data-and-ai/hookbot/internal/supervisor"
)

func createTestApp() *fiber.App {
	return fiber.New(fiber.Config{DisableStartupMessage: true})
}

type drainingStats struct{}

func (drainingStats) Stats() supervisor.Stats { return supervisor.Stats{Draining: true} }

func getJSON(t *testing.T, app *fiber.App, path string) (int, map[string]interface{}) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest("GET", path, nil))
	require.NoError(t, err)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	body, _ := io.ReadAll(resp.Body)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &out))
	return resp.StatusCode, out
}

func TestNewHealthHandler(t *testing.T) {
	cfg := createTestConfig()
	handler := NewHealthHandler(cfg, &fakeRooms{}, nil, nil)

	assert.NotNil(t, handler)
	assert.Equal(t, cfg, handler.config)
	assert.False(t, handler.startTime.IsZero())
}

func TestHealthHandler_HandleHealth(t *testing.T) {
	cfg := createTestConfig()
	handler := NewHealthHandler(cfg, &fakeRooms{}, fakePinger{err: errors.New("down")}, nil)

	app := createTestApp()
	app.Get("/health", handler.HandleHealth)

	status, health := getJSON(t, app, "/health")
	assert.Equal(t, 200, status)

	// liveness ignores rooms and store
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, "hookbot", health["service"])
	assert.Equal(t, "v1.0.0", health["version"])
	assert.Equal(t, "memory", health["store_backend"])
	assert.Equal(t, true, health["webhook_secret"])

	uptime := health["uptime_seconds"].(float64)
	assert.True(t, uptime >= 0)
	assert.True(t, uptime < 10)

	_, err := time.Parse(time.RFC3339, health["timestamp"].(string))
	assert.NoError(t, err)
}

func TestHealthHandler_HandleReady(t *testing.T) {
	tests := []struct {
		name   string
		rooms  *fakeRooms
		store  Pinger
		tasks  StatsSource
		ready  bool
		reason string
	}{
		{
			name:  "ready",
			rooms: &fakeRooms{loaded: true},
			store: fakePinger{},
			tasks: &syncRunner{},
			ready: true,
		},
		{
			name:  "no store configured",
			rooms: &fakeRooms{loaded: true},
			ready: true,
		},
		{
			name:   "rooms not loaded",
			rooms:  &fakeRooms{},
			store:  fakePinger{},
			reason: "Joined rooms not loaded yet",
		},
		{
			name:   "store unreachable",
			rooms:  &fakeRooms{loaded: true},
			store:  fakePinger{err: errors.New("connection refused")},
			reason: "Message store unreachable",
		},
		{
			name:   "draining",
			rooms:  &fakeRooms{loaded: true},
			store:  fakePinger{},
			tasks:  drainingStats{},
			reason: "Shutting down",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHealthHandler(createTestConfig(), tt.rooms, tt.store, tt.tasks)
			app := createTestApp()
			app.Get("/ready", handler.HandleReady)

			status, ready := getJSON(t, app, "/ready")
			assert.Equal(t, tt.ready, ready["ready"])
			if tt.ready {
				assert.Equal(t, 200, status)
				assert.Nil(t, ready["reason"])
			} else {
				assert.Equal(t, 503, status)
				assert.Equal(t, tt.reason, ready["reason"])
			}
		})
	}
}

func TestHealthHandler_StartTimeImmutable(t *testing.T) {
	handler := NewHealthHandler(createTestConfig(), &fakeRooms{}, nil, nil)
	start := handler.startTime

	app := createTestApp()
	app.Get("/health", handler.HandleHealth)
	for i := 0; i < 3; i++ {
		getJSON(t, app, "/health")
	}

	assert.Equal(t, start, handler.startTime)
}
