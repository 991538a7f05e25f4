// Package bench fires concurrent HTTP requests at a server and reports
// wall-clock time and latency percentiles.
package bench

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/sourcegraph/conc/pool"
	"github.com/valyala/fasthttp"
)

// Config describes one load run.
type Config struct {
	URL         string
	Requests    int
	Concurrency int
	Timeout     time.Duration
}

func (c *Config) validate() error {
	var errs []error
	if c.URL == "" {
		errs = append(errs, errors.New("url is required"))
	}
	if c.Requests <= 0 {
		errs = append(errs, fmt.Errorf("requests must be positive, got %d", c.Requests))
	}
	if c.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("concurrency must be positive, got %d", c.Concurrency))
	}
	if len(errs) > 0 {
		return fmt.Errorf("bench: %w", errors.Join(errs...))
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return nil
}

type sample struct {
	latency time.Duration
	status  int
	err     error
}

// Result summarises a run.
type Result struct {
	Requests  int
	Succeeded int
	Failed    int
	Wall      time.Duration
	Min       time.Duration
	Mean      time.Duration
	P50       time.Duration
	P90       time.Duration
	P99       time.Duration
	Max       time.Duration
	Statuses  map[int]int
	Errors    map[string]int
}

// Run sends cfg.Requests GET requests with at most cfg.Concurrency in
// flight. Requests not yet sent when ctx is done are counted as failures.
func Run(ctx context.Context, cfg Config) (*Result, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	client := &fasthttp.Client{
		MaxConnsPerHost:     cfg.Concurrency,
		ReadTimeout:         cfg.Timeout,
		WriteTimeout:        cfg.Timeout,
		MaxConnWaitTimeout:  cfg.Timeout,
		MaxIdleConnDuration: time.Minute,
	}
	defer client.CloseIdleConnections()

	p := pool.NewWithResults[sample]().WithMaxGoroutines(cfg.Concurrency)
	start := time.Now()
	for i := 0; i < cfg.Requests; i++ {
		p.Go(func() sample {
			if err := ctx.Err(); err != nil {
				return sample{err: err}
			}
			return fire(client, cfg.URL, cfg.Timeout)
		})
	}
	samples := p.Wait()
	return summarize(samples, time.Since(start)), nil
}

func fire(client *fasthttp.Client, url string, timeout time.Duration) sample {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)

	start := time.Now()
	err := client.DoTimeout(req, resp, timeout)
	s := sample{latency: time.Since(start), err: err}
	if err == nil {
		s.status = resp.StatusCode()
	}
	return s
}

func summarize(samples []sample, wall time.Duration) *Result {
	r := &Result{
		Requests: len(samples),
		Wall:     wall,
		Statuses: make(map[int]int),
		Errors:   make(map[string]int),
	}

	var latencies []time.Duration
	var total time.Duration
	for _, s := range samples {
		switch {
		case s.err != nil:
			r.Failed++
			r.Errors[s.err.Error()]++
			continue
		case s.status >= 200 && s.status < 400:
			r.Succeeded++
		default:
			r.Failed++
		}
		r.Statuses[s.status]++
		latencies = append(latencies, s.latency)
		total += s.latency
	}
	if len(latencies) == 0 {
		return r
	}

	slices.Sort(latencies)
	r.Min = latencies[0]
	r.Max = latencies[len(latencies)-1]
	r.Mean = total / time.Duration(len(latencies))
	r.P50 = percentile(latencies, 50)
	r.P90 = percentile(latencies, 90)
	r.P99 = percentile(latencies, 99)
	return r
}

// percentile uses the nearest-rank method on sorted latencies.
func percentile(sorted []time.Duration, p int) time.Duration {
	rank := (p*len(sorted) + 99) / 100
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}

// Report writes a human-readable summary.
func (r *Result) Report(w io.Writer) {
	fmt.Fprintf(w, "Requests:   %d (%d ok, %d failed)\n", r.Requests, r.Succeeded, r.Failed)
	fmt.Fprintf(w, "Wall time:  %v\n", r.Wall.Round(time.Millisecond))
	if r.Wall > 0 {
		fmt.Fprintf(w, "Throughput: %.1f req/s\n", float64(r.Requests)/r.Wall.Seconds())
	}
	fmt.Fprintf(w, "Latency:    min %v  mean %v  p50 %v  p90 %v  p99 %v  max %v\n",
		r.Min.Round(time.Millisecond), r.Mean.Round(time.Millisecond),
		r.P50.Round(time.Millisecond), r.P90.Round(time.Millisecond),
		r.P99.Round(time.Millisecond), r.Max.Round(time.Millisecond))

	codes := make([]int, 0, len(r.Statuses))
	for code := range r.Statuses {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	for _, code := range codes {
		fmt.Fprintf(w, "  HTTP %d: %d\n", code, r.Statuses[code])
	}
	for msg, n := range r.Errors {
		fmt.Fprintf(w, "  error %q: %d\n", msg, n)
	}
}
