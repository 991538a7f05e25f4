package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	nethttp "net/http"
	"strings"
	"sync/atomic"

	"github.com/searchktools/loom-server/core/http"
	"github.com/searchktools/loom-server/core/middleware"
	"github.com/searchktools/loom-server/core/router"
	"github.com/searchktools/loom-server/core/threads"
)

// HandlerFunc defines the handler function type (accepts http.Context interface)
type HandlerFunc = middleware.HandlerFunc

// Engine dispatches every request onto its own thread from the worker
// factory and waits for it to finish. It implements net/http.Handler.
type Engine struct {
	svc      *threads.Service
	router   *router.RadixRouter
	pipeline *middleware.Pipeline
	workers  *threads.Factory
	tasks    *threads.Factory
	log      *slog.Logger

	stats struct {
		requests   atomic.Uint64
		rejected   atomic.Uint64
		notFound   atomic.Uint64
		panics     atomic.Uint64
		interrupts atomic.Uint64
	}
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithMiddleware appends middleware to the request pipeline.
func WithMiddleware(m ...middleware.Middleware) Option {
	return func(e *Engine) {
		for _, mw := range m {
			e.pipeline.Use(mw)
		}
	}
}

// NewEngine creates an engine whose request threads come from svc. Request
// threads are daemon threads named http-nio-N; Async threads are non-daemon
// threads named task-N.
func NewEngine(svc *threads.Service, opts ...Option) *Engine {
	e := &Engine{
		svc:      svc,
		router:   router.NewRadixRouter(),
		pipeline: middleware.NewPipeline(),
		workers:  svc.NewFactory(WorkerPrefix, true),
		tasks:    svc.NewFactory(TaskPrefix, false),
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Use appends middleware to the request pipeline. It applies to routes
// registered afterwards.
func (e *Engine) Use(m ...middleware.Middleware) {
	for _, mw := range m {
		e.pipeline.Use(mw)
	}
}

// Handle registers a handler for method and path, wrapped in the middleware
// added so far.
func (e *Engine) Handle(method, path string, handler HandlerFunc) {
	if handler == nil {
		panic(fmt.Sprintf("core: %v for %s %s", ErrNilHandler, method, path))
	}
	wrapped := e.pipeline.Then(handler)
	e.router.Add(method, path, func(ctx any) {
		wrapped(ctx.(http.Context))
	})
}

// GET registers a GET route
func (e *Engine) GET(path string, handler HandlerFunc) {
	e.Handle(nethttp.MethodGet, path, handler)
}

// POST registers a POST route
func (e *Engine) POST(path string, handler HandlerFunc) {
	e.Handle(nethttp.MethodPost, path, handler)
}

// PUT registers a PUT route
func (e *Engine) PUT(path string, handler HandlerFunc) {
	e.Handle(nethttp.MethodPut, path, handler)
}

// DELETE registers a DELETE route
func (e *Engine) DELETE(path string, handler HandlerFunc) {
	e.Handle(nethttp.MethodDelete, path, handler)
}

// Service returns the thread service backing the engine.
func (e *Engine) Service() *threads.Service { return e.svc }

// ServeHTTP routes the request and runs the handler on a new worker thread.
// It returns once that thread has terminated. If the client goes away the
// thread is interrupted.
func (e *Engine) ServeHTTP(w nethttp.ResponseWriter, r *nethttp.Request) {
	e.stats.requests.Add(1)

	h, params := e.router.Find(r.Method, r.URL.Path)
	if h == nil {
		if allowed := e.router.Allowed(r.URL.Path); len(allowed) > 0 {
			w.Header().Set(HeaderAllow, strings.Join(allowed, ", "))
			nethttp.Error(w, "Method Not Allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		e.stats.notFound.Add(1)
		nethttp.NotFound(w, r)
		return
	}

	c := http.AcquireContext(w, r)
	defer http.ReleaseContext(c)
	for k, v := range params {
		c.SetParam(k, v)
	}

	t, err := e.workers.NewThread(func(ctx context.Context) error {
		c.BindThread(ctx)
		h(c)
		return nil
	})
	if err == nil {
		err = t.Start()
	}
	if err != nil {
		e.reject(c, err)
		return
	}

	select {
	case <-t.Done():
	case <-r.Context().Done():
		e.stats.interrupts.Add(1)
		t.Interrupt()
		<-t.Done()
	}

	if err := t.Err(); err != nil {
		e.fail(c, t, err)
	}
}

func (e *Engine) reject(c *http.StandardContext, err error) {
	e.stats.rejected.Add(1)
	e.log.Warn("request not scheduled", "method", c.Method(), "path", c.Path(), "error", err)
	c.SetHeader(HeaderRetryAfter, "1")
	c.Error(nethttp.StatusServiceUnavailable, "Service Unavailable: "+err.Error())
}

func (e *Engine) fail(c *http.StandardContext, t *threads.Thread, err error) {
	var pe *threads.PanicError
	switch {
	case errors.As(err, &pe):
		e.stats.panics.Add(1)
		e.log.Error("request thread panicked",
			"thread", t.Name(), "method", c.Method(), "path", c.Path(),
			"panic", fmt.Sprint(pe.Value), "stack", string(pe.Stack))
		if !c.Written() {
			c.Error(nethttp.StatusInternalServerError, "Internal Server Error")
		}
	case threads.IsScheduling(err):
		if c.Written() {
			return
		}
		e.reject(c, err)
	default:
		e.log.Warn("request thread failed", "thread", t.Name(), "error", err)
	}
}

// Async runs fn on a new task thread and waits for its result. A calling
// lightweight thread gives up its carrier while it waits.
func (e *Engine) Async(ctx context.Context, fn func(ctx context.Context) (string, error)) (string, error) {
	var out string
	t, err := e.tasks.Go(func(tctx context.Context) error {
		var err error
		out, err = fn(tctx)
		return err
	})
	if err != nil {
		return "", err
	}

	err = threads.Block(ctx, func() error {
		return t.Join(ctx)
	})
	if err != nil {
		if ctx.Err() != nil {
			t.Interrupt()
		}
		return "", err
	}
	return out, nil
}
