package middleware

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/searchktools/loom-server/core/http"
	"github.com/searchktools/loom-server/core/observability"
)

// HandlerFunc is the signature for request handlers
type HandlerFunc func(http.Context)

// Middleware wraps a handler. Not calling next stops the chain.
type Middleware func(next HandlerFunc) HandlerFunc

// Pipeline is an ordered middleware chain
type Pipeline struct {
	middlewares []Middleware
}

// NewPipeline creates a new middleware pipeline
func NewPipeline() *Pipeline {
	return &Pipeline{
		middlewares: make([]Middleware, 0, 8),
	}
}

// Use adds a middleware to the pipeline
func (p *Pipeline) Use(m Middleware) *Pipeline {
	p.middlewares = append(p.middlewares, m)
	return p
}

// Len returns the number of middlewares.
func (p *Pipeline) Len() int {
	return len(p.middlewares)
}

// Then builds the handler running every middleware, in the order added,
// around final. Build it once per route rather than per request.
func (p *Pipeline) Then(final HandlerFunc) HandlerFunc {
	h := final
	for i := len(p.middlewares) - 1; i >= 0; i-- {
		h = p.middlewares[i](h)
	}
	return func(ctx http.Context) {
		if ctx.IsAborted() {
			return
		}
		h(ctx)
	}
}

// Execute runs the pipeline once around final.
func (p *Pipeline) Execute(ctx http.Context, final HandlerFunc) {
	p.Then(final)(ctx)
}

// Common middleware implementations

// Recovery turns a handler panic into a 500 response.
func Recovery(logger *slog.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx http.Context) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic recovered",
						"method", ctx.Method(),
						"path", ctx.Path(),
						"panic", fmt.Sprint(err),
						"stack", string(debug.Stack()),
					)
					ctx.Abort()
					if !ctx.Written() {
						ctx.Error(500, "Internal Server Error")
					}
				}
			}()
			next(ctx)
		}
	}
}

// RequestID adds a unique request ID
func RequestID() Middleware {
	var counter atomic.Uint64

	return func(next HandlerFunc) HandlerFunc {
		return func(ctx http.Context) {
			id := ctx.Header("X-Request-ID")
			if id == "" {
				id = strconv.FormatUint(counter.Add(1), 10)
			}
			ctx.SetHeader("X-Request-ID", id)
			next(ctx)
		}
	}
}

// AccessLog logs one line per request with the thread that served it.
func AccessLog(logger *slog.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx http.Context) {
			start := time.Now()
			next(ctx)

			attrs := []any{
				"method", ctx.Method(),
				"path", ctx.Path(),
				"status", statusOf(ctx),
				"duration", time.Since(start),
			}
			if t := ctx.Thread(); t != nil {
				attrs = append(attrs, "thread", t.Name())
			}
			logger.Info("request", attrs...)
		}
	}
}

// Metrics records per-route latency and errors.
func Metrics(pm *observability.PerformanceMonitor) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx http.Context) {
			start := pm.StartTrace()
			next(ctx)
			pm.EndTrace(ctx.Method()+" "+ctx.Path(), start, statusOf(ctx) >= 500)
		}
	}
}

type statusCoder interface {
	StatusCode() int
}

func statusOf(ctx http.Context) int {
	if sc, ok := ctx.(statusCoder); ok && sc.StatusCode() != 0 {
		return sc.StatusCode()
	}
	return 200
}
