package observe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// newTracedRouter returns a chi router behind Middleware with a few routes
// shaped like the render API.
func newTracedRouter(t *testing.T) (http.Handler, *Metrics, *tracetest.InMemoryExporter, func() metricdata.ResourceMetrics) {
	t.Helper()
	m, reader := newTestMetrics(t)

	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	orig := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(orig) })

	r := chi.NewRouter()
	r.Use(Middleware(m))
	r.Get("/audio/{file}", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("RIFF...."))
	})
	r.Post("/api/tts", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	r.Post("/api/tts/batch", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {})

	return r, m, exp, func() metricdata.ResourceMetrics { return collect(t, reader) }
}

func serve(h http.Handler, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware_SpanNamedByRoute(t *testing.T) {
	h, _, exp, _ := newTracedRouter(t)

	serve(h, http.MethodGet, "/audio/en_default_happy_1.mp3", nil)
	serve(h, http.MethodGet, "/audio/en_default_sad_2.mp3", nil)

	spans := exp.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2", len(spans))
	}
	for _, s := range spans {
		if s.Name != "GET /audio/{file}" {
			t.Errorf("span name = %q, want %q", s.Name, "GET /audio/{file}")
		}
	}
}

func TestMiddleware_Status(t *testing.T) {
	h, _, exp, _ := newTracedRouter(t)

	tests := []struct {
		method, path string
		wantStatus   int
		wantError    bool
	}{
		{http.MethodGet, "/audio/a.wav", http.StatusOK, false},
		{http.MethodPost, "/api/tts", http.StatusBadRequest, false},
		{http.MethodPost, "/api/tts/batch", http.StatusInternalServerError, true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			exp.Reset()
			rec := serve(h, tt.method, tt.path, nil)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			spans := exp.GetSpans()
			if len(spans) != 1 {
				t.Fatalf("got %d spans, want 1", len(spans))
			}
			var code int64
			for _, a := range spans[0].Attributes {
				if a.Key == "http.response.status_code" {
					code = a.Value.AsInt64()
				}
			}
			if code != int64(tt.wantStatus) {
				t.Errorf("span status_code = %d, want %d", code, tt.wantStatus)
			}
			if gotErr := spans[0].Status.Code == codes.Error; gotErr != tt.wantError {
				t.Errorf("span error = %v, want %v", gotErr, tt.wantError)
			}
		})
	}
}

func TestMiddleware_RecordsDurationByRoute(t *testing.T) {
	h, _, _, collectMetrics := newTracedRouter(t)

	serve(h, http.MethodGet, "/audio/one.wav", nil)
	serve(h, http.MethodGet, "/audio/two.wav", nil)
	serve(h, http.MethodPost, "/api/tts", nil)

	met := findMetric(collectMetrics(), "emotivox.http.request.duration")
	if met == nil {
		t.Fatal("metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("metric data is %T, want histogram", met.Data)
	}

	counts := make(map[string]uint64)
	for _, dp := range hist.DataPoints {
		route, _ := dp.Attributes.Value("route")
		status, _ := dp.Attributes.Value("status")
		counts[route.AsString()+" "+status.AsString()] += dp.Count
	}
	want := map[string]uint64{
		"/audio/{file} 2xx": 2,
		"/api/tts 4xx":      1,
	}
	for k, v := range want {
		if counts[k] != v {
			t.Errorf("count[%q] = %d, want %d (all: %v)", k, counts[k], v, counts)
		}
	}
}

func TestMiddleware_CorrelationID(t *testing.T) {
	h, _, _, _ := newTracedRouter(t)

	rec := serve(h, http.MethodGet, "/healthz", nil)
	if cid := rec.Header().Get("X-Correlation-ID"); len(cid) != 32 {
		t.Errorf("generated X-Correlation-ID = %q, want 32 hex chars", cid)
	}

	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	rec = serve(h, http.MethodGet, "/healthz", map[string]string{
		"traceparent": "00-" + traceID + "-00f067aa0ba902b7-01",
	})
	if got := rec.Header().Get("X-Correlation-ID"); got != traceID {
		t.Errorf("X-Correlation-ID = %q, want incoming trace %q", got, traceID)
	}
}

func TestRoutePattern_WithoutChi(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/plain/path", nil)
	if got := routePattern(req); got != "/plain/path" {
		t.Errorf("routePattern = %q, want raw path", got)
	}
}
