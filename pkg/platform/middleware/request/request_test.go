package request

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attesto/pkg/requestcontext"
)

func serveWithRequestID(t *testing.T, header string) (seen string, echoed string) {
	t.Helper()
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestcontext.RequestID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodPatch, "/claims/clm_1", nil)
	if header != "" {
		req.Header.Set("X-Request-ID", header)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return seen, w.Header().Get("X-Request-ID")
}

func TestRequestID(t *testing.T) {
	t.Run("generates a UUID when the caller sends none", func(t *testing.T) {
		seen, echoed := serveWithRequestID(t, "")

		assert.Len(t, seen, 36)
		assert.Equal(t, seen, echoed)
	})

	kept := []string{"decide-7c9e6679", "trace.span_1234", strings.Repeat("a", MaxRequestIDLength)}
	for _, id := range kept {
		t.Run("keeps "+id[:min(len(id), 16)], func(t *testing.T) {
			seen, echoed := serveWithRequestID(t, id)

			assert.Equal(t, id, seen)
			assert.Equal(t, id, echoed)
		})
	}

	replaced := map[string]string{
		"too long":       strings.Repeat("a", MaxRequestIDLength+1),
		"newline":        "decide\nforged log line",
		"space":          "decide claim",
		"quote":          `decide"claim`,
		"angle brackets": "<script>",
		"semicolon":      "decide;claim",
		"null byte":      "decide\x00claim",
	}
	for name, id := range replaced {
		t.Run("replaces an ID with "+name, func(t *testing.T) {
			seen, echoed := serveWithRequestID(t, id)

			assert.NotEqual(t, id, seen)
			assert.Len(t, seen, 36)
			assert.Equal(t, seen, echoed)
		})
	}
}

func TestIsValidRequestID(t *testing.T) {
	assert.False(t, isValidRequestID(""))
	assert.False(t, isValidRequestID("has\ttab"))
	assert.True(t, isValidRequestID("a"))
}

func TestRecovery(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	handler := RequestID(Recovery(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("signer exploded")
	})))

	req := httptest.NewRequest(http.MethodPatch, "/claims/clm_1", nil)
	req.Header.Set("X-Request-ID", "decide-1")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "internal_error", body["error"])
	assert.NotContains(t, w.Body.String(), "signer exploded")
	assert.Contains(t, logs.String(), "signer exploded")
	assert.Contains(t, logs.String(), `"request_id":"decide-1"`)
}

func TestLogger(t *testing.T) {
	serve := func(path string, status int) string {
		var logs bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&logs, nil))
		handler := Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
		return logs.String()
	}

	t.Run("logs claim requests with their status", func(t *testing.T) {
		out := serve("/claims", http.StatusForbidden)
		assert.Contains(t, out, `"path":"/claims"`)
		assert.Contains(t, out, `"status":403`)
		assert.Contains(t, out, `"level":"INFO"`)
	})

	t.Run("server errors log at warn", func(t *testing.T) {
		assert.Contains(t, serve("/claims", http.StatusBadGateway), `"level":"WARN"`)
	})

	t.Run("skips healthy health checks", func(t *testing.T) {
		assert.Empty(t, serve("/health/live", http.StatusOK))
	})

	t.Run("logs failing health checks", func(t *testing.T) {
		assert.Contains(t, serve("/health/ready", http.StatusServiceUnavailable), `"status":503`)
	})
}

func TestContentTypeJSON(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	cases := []struct {
		name        string
		method      string
		contentType string
		want        int
	}{
		{"json decision", http.MethodPatch, "application/json; charset=utf-8", http.StatusNoContent},
		{"form decision", http.MethodPatch, "application/x-www-form-urlencoded", http.StatusUnsupportedMediaType},
		{"text filing", http.MethodPost, "text/plain", http.StatusUnsupportedMediaType},
		{"filing without a content type", http.MethodPost, "", http.StatusNoContent},
		{"listing ignores content type", http.MethodGet, "text/plain", http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/claims", strings.NewReader(`{}`))
			if tc.contentType != "" {
				req.Header.Set("Content-Type", tc.contentType)
			}
			w := httptest.NewRecorder()
			ContentTypeJSON(next).ServeHTTP(w, req)

			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestLoggerRecordsRouteAndSize(t *testing.T) {
	var logs bytes.Buffer
	r := chi.NewRouter()
	r.Use(Logger(slog.New(slog.NewJSONHandler(&logs, nil))))
	r.Get("/claims/{id}", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"id":"clm_1"}`))
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/claims/clm_1", nil))

	assert.Contains(t, logs.String(), `"route":"GET /claims/{id}"`)
	assert.Contains(t, logs.String(), `"bytes":14`)
}

func TestMetricsMiddleware(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWith(reg)
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/claims/{id}", func(w http.ResponseWriter, _ *http.Request) {
		assert.Equal(t, 1.0, testutil.ToFloat64(m.inFlight))
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"clm_1", "clm_2", "clm_3"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/claims/"+id, nil))
	}

	assert.Equal(t, 1, testutil.CollectAndCount(m.latency), "one series per route and status class")
	assert.Zero(t, testutil.ToFloat64(m.inFlight))
	n, err := testutil.GatherAndCount(reg, "attesto_http_request_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", statusClass(http.StatusNoContent))
	assert.Equal(t, "4xx", statusClass(http.StatusConflict))
	assert.Equal(t, "5xx", statusClass(http.StatusServiceUnavailable))
}

func TestTimeoutWritesEnvelope(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	handler := Timeout(10 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPatch, "/claims/clm_1", nil))

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "timeout", body["error"])
}
