package middleware

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/searchktools/loom-server/core/http"
	"github.com/searchktools/loom-server/core/observability"
	"github.com/searchktools/loom-server/logging"
)

func newContext(path string) (*http.StandardContext, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	return http.AcquireContext(w, httptest.NewRequest("GET", path, nil)), w
}

// TestPipelineOrder tests middleware execution order
func TestPipelineOrder(t *testing.T) {
	pipeline := NewPipeline()

	order := []int{}
	step := func(n int) Middleware {
		return func(next HandlerFunc) HandlerFunc {
			return func(ctx http.Context) {
				order = append(order, n)
				next(ctx)
			}
		}
	}
	pipeline.Use(step(1)).Use(step(2)).Use(step(3))

	ctx, _ := newContext("/")
	pipeline.Execute(ctx, func(http.Context) { order = append(order, 4) })

	expected := []int{1, 2, 3, 4}
	if len(order) != len(expected) {
		t.Fatalf("Expected %d executions, got %d", len(expected), len(order))
	}
	for i, v := range expected {
		if order[i] != v {
			t.Errorf("Expected order[%d] = %d, got %d", i, v, order[i])
		}
	}
	if pipeline.Len() != 3 {
		t.Errorf("Expected 3 middlewares, got %d", pipeline.Len())
	}
}

// TestPipelineAbort tests that a middleware can stop the chain
func TestPipelineAbort(t *testing.T) {
	pipeline := NewPipeline()

	secondRan, finalRan := false, false
	pipeline.Use(func(next HandlerFunc) HandlerFunc {
		return func(ctx http.Context) {
			ctx.Abort()
			ctx.Status(429)
		}
	})
	pipeline.Use(func(next HandlerFunc) HandlerFunc {
		return func(ctx http.Context) {
			secondRan = true
			next(ctx)
		}
	})

	ctx, w := newContext("/")
	pipeline.Execute(ctx, func(http.Context) { finalRan = true })

	if secondRan || finalRan {
		t.Error("Chain should stop after abort")
	}
	if w.Code != 429 {
		t.Errorf("Expected 429, got %d", w.Code)
	}
}

// TestRecoveryMiddleware tests that panics become 500 responses
func TestRecoveryMiddleware(t *testing.T) {
	var logs bytes.Buffer
	h := NewPipeline().Use(Recovery(logging.New(&logs, "ERROR", "json"))).Then(func(http.Context) {
		panic("test panic")
	})

	ctx, w := newContext("/boom")
	h(ctx)

	if w.Code != 500 {
		t.Errorf("Expected 500, got %d", w.Code)
	}
	if !strings.Contains(logs.String(), "test panic") {
		t.Errorf("Expected panic to be logged, got %q", logs.String())
	}
}

// TestRequestIDMiddleware tests X-Request-ID generation and passthrough
func TestRequestIDMiddleware(t *testing.T) {
	h := NewPipeline().Use(RequestID()).Then(func(ctx http.Context) { ctx.String(200, "ok") })

	ctx, w := newContext("/")
	h(ctx)
	if w.Header().Get("X-Request-ID") != "1" {
		t.Errorf("Expected generated id 1, got %q", w.Header().Get("X-Request-ID"))
	}

	w2 := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-Request-ID", "abc")
	h(http.AcquireContext(w2, r))
	if w2.Header().Get("X-Request-ID") != "abc" {
		t.Errorf("Expected passthrough id, got %q", w2.Header().Get("X-Request-ID"))
	}
}

func TestAccessLog(t *testing.T) {
	var logs bytes.Buffer
	h := NewPipeline().Use(AccessLog(logging.New(&logs, "INFO", "text"))).Then(func(ctx http.Context) {
		ctx.String(404, "nope")
	})

	ctx, _ := newContext("/missing")
	h(ctx)

	out := logs.String()
	for _, want := range []string{"path=/missing", "status=404", "method=GET"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in %q", want, out)
		}
	}
}

func TestMetricsMiddleware(t *testing.T) {
	pm := observability.NewPerformanceMonitor()
	defer pm.Close()
	h := NewPipeline().Use(Metrics(pm)).Then(func(ctx http.Context) {
		time.Sleep(2 * time.Millisecond)
		ctx.Error(503, "busy")
	})

	ctx, _ := newContext("/sql")
	h(ctx)

	m, ok := pm.Handler("GET /sql")
	if !ok {
		t.Fatal("Expected metrics for GET /sql")
	}
	if m.Count != 1 || m.Errors != 1 {
		t.Errorf("Unexpected metrics %+v", m)
	}
}
