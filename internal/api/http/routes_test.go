package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/balloon-tracker/internal/metrics"
	"github.com/i474232898/balloon-tracker/internal/store"
	"github.com/i474232898/balloon-tracker/internal/tracker"
	"github.com/i474232898/balloon-tracker/internal/upstream"
	"github.com/i474232898/balloon-tracker/internal/weather"
	"github.com/i474232898/balloon-tracker/internal/windborne"
)

type fakeForwarder struct {
	resp  upstream.Response
	err   error
	calls []string
}

func (f *fakeForwarder) Forward(_ context.Context, fileID string) (upstream.Response, error) {
	f.calls = append(f.calls, fileID)
	return f.resp, f.err
}

type stubProvider struct {
	ann weather.Annotation
	err error
}

func (p stubProvider) Name() string { return "stub" }

func (p stubProvider) WeatherAt(context.Context, float64, float64, float64) (weather.Annotation, error) {
	return p.ann, p.err
}

type staticSource map[string]string

func (s staticSource) FetchSnapshot(_ context.Context, fileID string) ([]byte, error) {
	if body, ok := s[fileID]; ok {
		return []byte(body), nil
	}
	return nil, errors.New("missing")
}

func newTestApp(t *testing.T, fwd Forwarder, provider weather.Provider) (*fiber.App, *tracker.Service, *metrics.Collector) {
	t.Helper()

	src := staticSource{
		"00": `[[10.0,20.0,5.0],[30.0,40.0,8.0]]`,
		"01": `[[10.5,20.5,5.6],[30.5,40.5,8.2]]`,
	}
	svc := tracker.NewService(
		store.NewMemoryStore(),
		tracker.NewAggregator(src, nil, 1),
		provider,
	)

	collector, err := metrics.NewCollector(prometheus.NewRegistry())
	require.NoError(t, err)
	svc.SetObserver(collector)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	RegisterRoutes(app, fwd, svc, collector)
	return app, svc, collector
}

func do(t *testing.T, app *fiber.App, method, target string) (*http.Response, string) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(method, target, nil), -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestProxyRelaysRawBody(t *testing.T) {
	fwd := &fakeForwarder{resp: upstream.Response{StatusCode: http.StatusOK, Body: []byte(`[[1,2,3],[NaN,`)}}
	app, _, collector := newTestApp(t, fwd, stubProvider{})

	for _, target := range []string{"/api/windborne?file=05", "/api/windborne/05", "/api/windborne/05.json"} {
		resp, body := do(t, app, http.MethodGet, target)
		assert.Equal(t, http.StatusOK, resp.StatusCode, target)
		assert.Equal(t, fiber.MIMEApplicationJSON, resp.Header.Get(fiber.HeaderContentType), target)
		assert.Equal(t, `[[1,2,3],[NaN,`, body, target)
	}
	assert.Equal(t, []string{"05", "05", "05"}, fwd.calls)
	assert.Equal(t, 3.0, testutil.ToFloat64(collector.ProxyRequests.WithLabelValues("ok")))
}

func TestProxyMissingFileParameter(t *testing.T) {
	fwd := &fakeForwarder{}
	app, _, _ := newTestApp(t, fwd, stubProvider{})

	resp, body := do(t, app, http.MethodGet, "/api/windborne")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.JSONEq(t, "{\"error\":\"Missing `file` parameter\"}", body)
	assert.Empty(t, fwd.calls)
}

func TestProxyRejectsMalformedID(t *testing.T) {
	fwd := &fakeForwarder{}
	app, _, _ := newTestApp(t, fwd, stubProvider{})

	for _, target := range []string{"/api/windborne?file=5", "/api/windborne?file=-1", "/api/windborne/1a", "/api/windborne/abc"} {
		resp, body := do(t, app, http.MethodGet, target)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, target)
		assert.JSONEq(t, "{\"error\":\"Invalid `file` parameter\"}", body, target)
	}
	assert.Empty(t, fwd.calls)
}

func TestProxyRelaysUpstreamStatus(t *testing.T) {
	fwd := &fakeForwarder{resp: upstream.Response{StatusCode: http.StatusNotFound, Body: []byte("<html>nope</html>")}}
	app, _, collector := newTestApp(t, fwd, stubProvider{})

	resp, body := do(t, app, http.MethodGet, "/api/windborne?file=23")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Failed to fetch upstream"}`, body)
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.ProxyRequests.WithLabelValues("upstream_error")))
}

func TestProxyInternalError(t *testing.T) {
	fwd := &fakeForwarder{err: errors.New("dial tcp: connection refused")}
	app, _, collector := newTestApp(t, fwd, stubProvider{})

	resp, body := do(t, app, http.MethodGet, "/api/windborne/00")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Internal Server Error"}`, body)
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.ProxyRequests.WithLabelValues("internal_error")))
}

func TestProxyAgainstGatewayClient(t *testing.T) {
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/treasure/00.json" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte(`[[1,2,3]]`))
	}))
	defer gateway.Close()

	app, _, _ := newTestApp(t, windborne.NewClient(gateway.Client(), gateway.URL), stubProvider{})

	resp, body := do(t, app, http.MethodGet, "/api/windborne?file=00")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `[[1,2,3]]`, body)

	resp, _ = do(t, app, http.MethodGet, "/api/windborne?file=01")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestStateEndpoints(t *testing.T) {
	app, svc, _ := newTestApp(t, &fakeForwarder{}, stubProvider{})

	resp, _ := do(t, app, http.MethodGet, "/api/v1/report")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body := do(t, app, http.MethodPost, "/api/v1/refresh")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var refreshed struct {
		Report tracker.CycleReport `json:"report"`
		Shared bool                `json:"shared"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &refreshed))
	assert.Equal(t, svc.State().CycleID, refreshed.Report.ID)
	assert.Equal(t, 2, refreshed.Report.ArcCount)

	resp, body = do(t, app, http.MethodGet, "/api/v1/arcs")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var arcs struct {
		CycleID string               `json:"cycleId"`
		Arcs    []tracker.ArcSegment `json:"arcs"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &arcs))
	assert.Equal(t, refreshed.Report.ID, arcs.CycleID)
	require.Len(t, arcs.Arcs, 2)
	assert.Equal(t, 10.5, arcs.Arcs[0].StartLat)

	resp, body = do(t, app, http.MethodGet, "/api/v1/balloons")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(body, `"balloonIndex":1`))

	resp, _ = do(t, app, http.MethodGet, "/api/v1/report")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestArcWeatherEndpoint(t *testing.T) {
	app, svc, collector := newTestApp(t, &fakeForwarder{}, stubProvider{ann: weather.Annotation{WindSpeedKmh: 12.3, WindDirectionDeg: 270, PressureLevel: "500hPa"}})
	svc.Refresh(context.Background())

	resp, body := do(t, app, http.MethodPost, "/api/v1/arcs/0/1/weather")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Enriched bool               `json:"enriched"`
		Arc      tracker.ArcSegment `json:"arc"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	assert.True(t, out.Enriched)
	require.NotNil(t, out.Arc.Annotation)
	assert.Equal(t, 12.3, out.Arc.Annotation.WindSpeedKmh)
	assert.Equal(t, 270.0, out.Arc.Annotation.WindDirectionDeg)
	assert.Equal(t, tracker.EnrichedStrokeWidth, out.Arc.StrokeWidth)
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.Enrichments.WithLabelValues(tracker.TargetArc, "enriched")))

	resp, _ = do(t, app, http.MethodPost, "/api/v1/arcs/7/1/weather")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, app, http.MethodPost, "/api/v1/arcs/0/0/weather")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, app, http.MethodPost, "/api/v1/arcs/x/1/weather")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBalloonWeatherEndpointFailureIsNoOp(t *testing.T) {
	app, svc, _ := newTestApp(t, &fakeForwarder{}, stubProvider{err: weather.ErrMissingField})
	svc.Refresh(context.Background())
	before := svc.State()

	resp, body := do(t, app, http.MethodPost, "/api/v1/balloons/1/weather")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Enriched bool                   `json:"enriched"`
		Reason   string                 `json:"reason"`
		Balloon  tracker.CurrentBalloon `json:"balloon"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	assert.False(t, out.Enriched)
	assert.NotEmpty(t, out.Reason)
	assert.Nil(t, out.Balloon.Annotation)
	assert.Equal(t, before, svc.State())
}

func TestMetricsEndpoint(t *testing.T) {
	app, svc, _ := newTestApp(t, &fakeForwarder{}, stubProvider{})
	svc.Refresh(context.Background())

	resp, body := do(t, app, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "refresh_cycles_total 1")
	assert.Contains(t, body, "arc_segments 2")
}

type deadlineSource struct {
	mu                    sync.Mutex
	withDeadline, without int
}

func (d *deadlineSource) FetchSnapshot(ctx context.Context, _ string) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := ctx.Deadline(); ok {
		d.withDeadline++
	} else {
		d.without++
	}
	return []byte(`[[1.0,2.0,3.0]]`), nil
}

func TestManualRefreshRunsUnderTimeout(t *testing.T) {
	src := &deadlineSource{}
	svc := tracker.NewService(store.NewMemoryStore(), tracker.NewAggregator(src, nil, 1), stubProvider{})
	svc.SetRefreshTimeout(30 * time.Second)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	RegisterRoutes(app, &fakeForwarder{}, svc, nil)

	resp, _ := do(t, app, http.MethodPost, "/api/v1/refresh")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 24, src.withDeadline)
	assert.Zero(t, src.without)
}
