package api

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danghamo/satwatch/internal/cqrs"
	"github.com/danghamo/satwatch/internal/domain/satellite"
	"github.com/danghamo/satwatch/internal/observability"
	"github.com/danghamo/satwatch/internal/tracking"
	"github.com/danghamo/satwatch/internal/view"
	"github.com/danghamo/satwatch/pkg/config"
	"github.com/danghamo/satwatch/pkg/logger"
)

type staticFetcher struct{}

func (staticFetcher) FetchPosition(ctx context.Context) (satellite.PositionSample, error) {
	return satellite.NewPositionSample(51.5, -0.12, 420.5, 27600, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
}

type staticLocator struct{}

func (staticLocator) Locate(ctx context.Context, lat, lon float64) (satellite.PlaceInfo, error) {
	return satellite.NewPlaceInfo("United Kingdom", "England"), nil
}

type testEnv struct {
	server   *Server
	http     *httptest.Server
	upstream *httptest.Server
}

func testConfig(upstream string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:            8080,
			Host:            "localhost",
			MetricsEnabled:  true,
			HealthCheckPath: "/health",
		},
		Tracking: config.TrackingConfig{Interval: time.Hour, RequestTimeout: time.Second},
		Position: config.PositionConfig{Source: "http"},
		Proxy: config.ProxyConfig{
			Enabled:     true,
			Path:        "/api/iss",
			UpstreamURL: upstream,
			Timeout:     time.Second,
		},
		CORS: config.CORSConfig{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type"},
		},
	}
}

func newTestEnv(t *testing.T, upstream http.HandlerFunc) *testEnv {
	t.Helper()
	log := logger.NewNop()

	up := httptest.NewServer(upstream)
	t.Cleanup(up.Close)

	collector, err := observability.NewTrackingCollector(prometheus.NewRegistry())
	require.NoError(t, err)

	controller := tracking.NewController(tracking.Config{Interval: time.Hour, RequestTimeout: time.Second},
		staticFetcher{}, staticLocator{}, log, tracking.WithRecorder(collector))

	bus, err := cqrs.NewBus(cqrs.BusConfig{}, log)
	require.NoError(t, err)

	adapter := view.NewAdapter(controller, log, cqrs.NewEventRenderer(bus, log))

	srv, err := NewServer(testConfig(up.URL), Dependencies{
		Controller: controller,
		Adapter:    adapter,
		Bus:        bus,
		Metrics:    collector,
		Track:      satellite.NewMemoryTrackRepository(10),
	}, log)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go controller.Run(ctx)
	go bus.Run(ctx)
	go adapter.Run(ctx)

	select {
	case <-bus.Running():
	case <-time.After(2 * time.Second):
		t.Fatal("event bus did not start")
	}

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		_ = srv.Shutdown()
		ts.Close()
		cancel()
		_ = bus.Close()
	})

	return &testEnv{server: srv, http: ts, upstream: up}
}

func rpc(t *testing.T, url, method string) map[string]any {
	t.Helper()
	body := `{"jsonrpc":"2.0","method":"` + method + `","id":1}`
	resp, err := http.Post(url+"/api/v1/"+method, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// stream decodes SSE data frames onto a channel until the body closes
func stream(t *testing.T, url string) <-chan map[string]any {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url+"/api/v1/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, "text/event-stream; charset=utf-8", resp.Header.Get("Content-Type"))

	frames := make(chan map[string]any, 32)
	go func() {
		defer resp.Body.Close()
		defer close(frames)
		r := bufio.NewReader(resp.Body)
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			line = strings.TrimSpace(line)
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var frame map[string]any
			if json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &frame) == nil {
				frames <- frame
			}
		}
	}()
	return frames
}

func waitFor(t *testing.T, frames <-chan map[string]any, match func(map[string]any) bool) map[string]any {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case f, ok := <-frames:
			require.True(t, ok, "stream closed")
			if match(f) {
				return f
			}
		case <-timeout:
			t.Fatal("timed out waiting for frame")
			return nil
		}
	}
}

func okUpstream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	io.WriteString(w, `{"name":"iss","latitude":51.5,"longitude":-0.12}`)
}

func TestServer_HealthCheck(t *testing.T) {
	env := newTestEnv(t, okUpstream)

	resp, err := http.Get(env.http.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body healthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "stopped", body.Checks["tracking"].Status)
	assert.Equal(t, "up", body.Checks["event_bus"].Status)
	assert.NotContains(t, body.Checks, "redis")
}

func TestServer_IndexPage(t *testing.T) {
	env := newTestEnv(t, okUpstream)

	resp, err := http.Get(env.http.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	page, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Contains(t, string(page), "/api/v1/stream")

	missing, err := http.Get(env.http.URL + "/nope")
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestServer_ToggleStreamsPanel(t *testing.T) {
	env := newTestEnv(t, okUpstream)
	frames := stream(t, env.http.URL)

	waitFor(t, frames, func(f map[string]any) bool { return f["type"] == "connected" })
	current := waitFor(t, frames, func(f map[string]any) bool { return f["method"] == "view.current" })
	panel := current["params"].(map[string]any)["panel"].(map[string]any)
	assert.Equal(t, false, panel["tracking"])
	assert.Equal(t, view.NotAvailable, panel["latitude"])

	result := rpc(t, env.http.URL, "tracking.Toggle")["result"].(map[string]any)
	assert.Equal(t, "running", result["state"])
	assert.Equal(t, true, result["tracking"])

	updated := waitFor(t, frames, func(f map[string]any) bool {
		if f["method"] != "view.updated" {
			return false
		}
		p := f["params"].(map[string]any)["panel"].(map[string]any)
		return p["marker"] != nil
	})
	panel = updated["params"].(map[string]any)["panel"].(map[string]any)
	assert.Equal(t, "51.50", panel["latitude"])
	assert.Equal(t, "United Kingdom", panel["country"])
	assert.Equal(t, "England", panel["region"])
	assert.Equal(t, "Stop tracking", panel["toggle_label"])

	status := rpc(t, env.http.URL, "tracking.Status")["result"].(map[string]any)
	assert.Equal(t, "running", status["state"])
	assert.Equal(t, float64(1), status["generation"])
}

func TestServer_ToggleBroadcastsNotification(t *testing.T) {
	env := newTestEnv(t, okUpstream)
	frames := stream(t, env.http.URL)
	waitFor(t, frames, func(f map[string]any) bool { return f["method"] == "view.current" })

	rpc(t, env.http.URL, "tracking.Toggle")
	toggled := waitFor(t, frames, func(f map[string]any) bool { return f["method"] == "tracking.toggled" })
	assert.Equal(t, "running", toggled["params"].(map[string]any)["state"])
}

func TestServer_ServerInfo(t *testing.T) {
	env := newTestEnv(t, okUpstream)

	result := rpc(t, env.http.URL, "server.Info")["result"].(map[string]any)
	assert.Equal(t, Version, result["version"])
	assert.Equal(t, "http", result["position_source"])
}

func TestServer_Proxy(t *testing.T) {
	t.Run("relays upstream", func(t *testing.T) {
		env := newTestEnv(t, okUpstream)

		req, err := http.NewRequest(http.MethodGet, env.http.URL+"/api/iss", nil)
		require.NoError(t, err)
		req.Header.Set("Origin", "http://example.com")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
		assert.JSONEq(t, `{"name":"iss","latitude":51.5,"longitude":-0.12}`, string(body))
	})

	t.Run("upstream failure", func(t *testing.T) {
		env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})

		resp, err := http.Get(env.http.URL + "/api/iss")
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.JSONEq(t, `{"error":"Failed to fetch ISS data"}`, string(body))
	})
}

func TestServer_Metrics(t *testing.T) {
	env := newTestEnv(t, okUpstream)
	rpc(t, env.http.URL, "tracking.Toggle")

	require.Eventually(t, func() bool {
		resp, err := http.Get(env.http.URL + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return strings.Contains(string(body), `satwatch_refresh_cycles_total{outcome="published"} 1`)
	}, 3*time.Second, 20*time.Millisecond)
}

func TestNewServer_RequiresDependencies(t *testing.T) {
	_, err := NewServer(testConfig("http://localhost"), Dependencies{}, logger.NewNop())
	assert.Error(t, err)
}

func TestServer_GroundTrackRoute(t *testing.T) {
	env := newTestEnv(t, okUpstream)

	result := rpc(t, env.http.URL, "tracking.GroundTrack")["result"].(map[string]any)
	assert.Equal(t, []any{}, result["points"])
}

func TestServer_ShutdownStopsBackgroundWork(t *testing.T) {
	env := newTestEnv(t, okUpstream)
	require.NoError(t, env.server.background.Err())

	require.NoError(t, env.server.Shutdown())
	assert.ErrorIs(t, env.server.background.Err(), context.Canceled)
}
