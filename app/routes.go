package app

import (
	"context"
	"database/sql"
	nethttp "net/http"
	"time"

	"github.com/searchktools/loom-server/core"
	"github.com/searchktools/loom-server/core/codec"
	"github.com/searchktools/loom-server/core/http"
	"github.com/searchktools/loom-server/core/http2"
	"github.com/searchktools/loom-server/core/observability"
	"github.com/searchktools/loom-server/core/threads"
)

// SleepQuery holds a database connection for one second.
const SleepQuery = "select pg_sleep(1) as pg_sleep"

func (a *App) registerRoutes() {
	e := a.engine
	e.GET("/", a.sleep)
	e.GET("/where-am-i", whereAmI)
	e.GET("/where-am-i-async", a.whereAmIAsync)
	e.GET("/sql", a.query)
	e.GET("/stats", a.stats)
}

func (a *App) sleep(c http.Context) {
	if err := threads.Sleep(c.Context(), time.Second); err != nil {
		c.Error(nethttp.StatusServiceUnavailable, err.Error())
		return
	}
	c.String(nethttp.StatusOK, "OK")
}

func whereAmI(c http.Context) {
	c.String(nethttp.StatusOK, c.Thread().String())
}

func (a *App) whereAmIAsync(c http.Context) {
	out, err := a.engine.Async(c.Context(), func(ctx context.Context) (string, error) {
		return threads.Current(ctx).String(), nil
	})
	if err != nil {
		c.Error(nethttp.StatusInternalServerError, err.Error())
		return
	}
	c.String(nethttp.StatusOK, out)
}

func (a *App) query(c http.Context) {
	rows, err := a.db.Query(c.Context(), SleepQuery)
	if err != nil {
		a.log.Error("query failed", "error", err)
		c.Error(nethttp.StatusInternalServerError, err.Error())
		return
	}
	c.String(nethttp.StatusOK, rows.String())
}

// Stats is the payload of GET /stats.
type Stats struct {
	Engine   core.Stats                      `json:"engine"`
	Monitor  observability.ThreadSnapshot    `json:"monitor"`
	Handlers []observability.HandlerSnapshot `json:"handlers"`
	Server   http2.Stats                     `json:"server"`
	Database DBStats                         `json:"database"`
	Runtime  observability.RuntimeStats      `json:"runtime"`
}

type DBStats struct {
	OpenConnections int           `json:"open_connections"`
	InUse           int           `json:"in_use"`
	Idle            int           `json:"idle"`
	WaitCount       int64         `json:"wait_count"`
	WaitDuration    time.Duration `json:"wait_duration_ns"`
}

func dbStats(s sql.DBStats) DBStats {
	return DBStats{
		OpenConnections: s.OpenConnections,
		InUse:           s.InUse,
		Idle:            s.Idle,
		WaitCount:       s.WaitCount,
		WaitDuration:    s.WaitDuration,
	}
}

// Stats returns a snapshot of every component.
func (a *App) Stats() Stats {
	return Stats{
		Engine:   a.engine.GetStats(),
		Monitor:  a.threads.Snapshot(),
		Handlers: a.perf.Snapshot(),
		Server:   a.server.GetStats(),
		Database: dbStats(a.db.Stats()),
		Runtime:  observability.ReadRuntimeStats(),
	}
}

func (a *App) stats(c http.Context) {
	enc := codec.Negotiate(c.Header(core.HeaderAccept))
	data, err := enc.Encode(a.Stats())
	if err != nil {
		c.Error(nethttp.StatusInternalServerError, err.Error())
		return
	}
	c.Data(nethttp.StatusOK, enc.ContentType(), data)
}
