package http

import (
	"context"
	"encoding/json"
	"io"
	nethttp "net/http"

	"github.com/searchktools/loom-server/core/pools"
	"github.com/searchktools/loom-server/core/threads"
)

// Context defines the HTTP request context interface
type Context interface {
	// Request information
	Method() string
	Path() string
	Param(key string) string
	Query(key string) string
	Header(key string) string
	Body() ([]byte, error)
	Bind(v any) error
	SetParam(key, value string)
	Request() *nethttp.Request

	// Context returns the context of the thread serving the request. Pass
	// it to threads.Sleep and threads.Block.
	Context() context.Context
	// Thread returns the thread serving the request, or nil.
	Thread() *threads.Thread

	// Response methods
	SetHeader(key, value string)
	Status(code int)
	String(code int, s string)
	JSON(code int, v any)
	Data(code int, contentType string, data []byte)
	Error(code int, message string)
	Written() bool

	// Flow control
	Abort()
	IsAborted() bool
}

// StandardContext is the standard context implementation over net/http.
type StandardContext struct {
	paramKeys   [4]string
	paramValues [4]string
	paramCount  int

	// Map overflow for more than 4 parameters
	paramMapOverflow map[string]string

	w       nethttp.ResponseWriter
	r       *nethttp.Request
	ctx     context.Context
	status  int
	aborted bool
}

var contextPool = pools.NewSmartPool(pools.SmartPoolConfig[*StandardContext]{
	New:   func() *StandardContext { return &StandardContext{} },
	Reset: resetContext,
})

// AcquireContext returns a pooled context for one request.
func AcquireContext(w nethttp.ResponseWriter, r *nethttp.Request) *StandardContext {
	c := contextPool.Get()
	c.w = w
	c.r = r
	c.ctx = r.Context()
	return c
}

// ReleaseContext returns c to the pool. c must not be used afterwards.
func ReleaseContext(c *StandardContext) {
	contextPool.Put(c)
}

// PoolStats returns context pool statistics.
func PoolStats() pools.SmartPoolStats {
	return contextPool.Stats()
}

func resetContext(c *StandardContext) {
	c.w = nil
	c.r = nil
	c.ctx = nil
	c.status = 0
	c.aborted = false
	c.paramCount = 0
	if c.paramMapOverflow != nil {
		for k := range c.paramMapOverflow {
			delete(c.paramMapOverflow, k)
		}
	}
}

// BindThread attaches the serving thread's context.
func (c *StandardContext) BindThread(ctx context.Context) {
	c.ctx = ctx
}

// SetParam sets a path parameter
func (c *StandardContext) SetParam(key, value string) {
	if c.paramCount < 4 {
		c.paramKeys[c.paramCount] = key
		c.paramValues[c.paramCount] = value
		c.paramCount++
	} else {
		if c.paramMapOverflow == nil {
			c.paramMapOverflow = make(map[string]string)
		}
		c.paramMapOverflow[key] = value
	}
}

// Param gets a path parameter
func (c *StandardContext) Param(key string) string {
	for i := 0; i < c.paramCount; i++ {
		if c.paramKeys[i] == key {
			return c.paramValues[i]
		}
	}
	if c.paramMapOverflow != nil {
		return c.paramMapOverflow[key]
	}
	return ""
}

func (c *StandardContext) Method() string { return c.r.Method }
func (c *StandardContext) Path() string { return c.r.URL.Path }
func (c *StandardContext) Query(key string) string { return c.r.URL.Query().Get(key) }
func (c *StandardContext) Header(key string) string { return c.r.Header.Get(key) }
func (c *StandardContext) Request() *nethttp.Request { return c.r }
func (c *StandardContext) Context() context.Context { return c.ctx }
func (c *StandardContext) Thread() *threads.Thread { return threads.Current(c.ctx) }
func (c *StandardContext) SetHeader(key, value string) { c.w.Header().Set(key, value) }

// Body reads the whole request body.
func (c *StandardContext) Body() ([]byte, error) {
	if c.r.Body == nil {
		return nil, nil
	}
	return io.ReadAll(c.r.Body)
}

// Bind decodes a JSON request body into v.
func (c *StandardContext) Bind(v any) error {
	return json.NewDecoder(c.r.Body).Decode(v)
}

// Status writes the status line without a body.
func (c *StandardContext) Status(code int) {
	c.writeHeader(code)
}

// String sends a text response
func (c *StandardContext) String(code int, s string) {
	c.Data(code, "text/plain; charset=utf-8", []byte(s))
}

// JSON sends a JSON response
func (c *StandardContext) JSON(code int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.String(500, "JSON marshal error")
		return
	}
	c.Data(code, "application/json", data)
}

// Data sends raw data
func (c *StandardContext) Data(code int, contentType string, data []byte) {
	if c.status != 0 {
		return
	}
	c.w.Header().Set("Content-Type", contentType)
	c.writeHeader(code)
	c.w.Write(data)
}

// Error sends an error response
func (c *StandardContext) Error(code int, message string) {
	c.JSON(code, map[string]any{
		"code":    code,
		"message": message,
	})
}

// Written reports whether a status has been sent.
func (c *StandardContext) Written() bool { return c.status != 0 }

// StatusCode returns the status sent, or 0.
func (c *StandardContext) StatusCode() int { return c.status }

func (c *StandardContext) Abort() { c.aborted = true }
func (c *StandardContext) IsAborted() bool { return c.aborted }

func (c *StandardContext) writeHeader(code int) {
	if c.status != 0 {
		return
	}
	c.status = code
	c.w.WriteHeader(code)
}
