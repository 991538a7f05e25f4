package db

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/searchktools/loom-server/core/threads"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	d, err := Open(context.Background(), Config{DSN: dsn}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestPgSleep(t *testing.T) {
	d := openTestDB(t)

	start := time.Now()
	rows, err := d.Query(context.Background(), "select pg_sleep(0.1)")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Errorf("pg_sleep returned after %v", elapsed)
	}
	if got := rows.String(); got != "[{pg_sleep(0.1)=}]" {
		t.Errorf("Unexpected rows %q", got)
	}
}

func TestPgSleepIntegerSeconds(t *testing.T) {
	d := openTestDB(t)

	start := time.Now()
	rows, err := d.Query(context.Background(), "select pg_sleep(1) as pg_sleep")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if elapsed := time.Since(start); elapsed < time.Second {
		t.Errorf("pg_sleep(1) returned after %v", elapsed)
	}
	if got := rows.String(); got != "[{pg_sleep=}]" {
		t.Errorf("Unexpected rows %q", got)
	}
}

func TestSleepDuration(t *testing.T) {
	tests := []struct {
		in   any
		want time.Duration
	}{
		{nil, 0},
		{int64(2), 2 * time.Second},
		{int64(-1), -time.Second},
		{0.25, 250 * time.Millisecond},
		{" 0.5", 500 * time.Millisecond},
	}
	for _, tt := range tests {
		got, err := sleepDuration(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("sleepDuration(%v) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
	if _, err := sleepDuration("soon"); err == nil {
		t.Error("Expected error for non-numeric text")
	}
	if _, err := openTestDB(t).Query(context.Background(), "select pg_sleep('soon')"); err == nil {
		t.Error("Expected query error for non-numeric text")
	}
}

// A cancelled query keeps its connection until the sleep ends.
func TestPgSleepNotInterruptible(t *testing.T) {
	d := openTestDB(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	d.Query(ctx, "select pg_sleep(0.3)")
	if elapsed := time.Since(start); elapsed < 300*time.Millisecond {
		t.Errorf("Cancelled query returned after %v, before the sleep ended", elapsed)
	}
}

func TestRowsString(t *testing.T) {
	d := openTestDB(t)

	rows, err := d.Query(context.Background(), "select 1 as a, 'x' as b, null as c union all select 2, 'y', null")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	want := "[{a=1, b=x, c=null}, {a=2, b=y, c=null}]"
	if got := rows.String(); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
	if got := (&Rows{}).String(); got != "[]" {
		t.Errorf("Expected empty list, got %q", got)
	}
}

func TestQueryError(t *testing.T) {
	d := openTestDB(t)

	if _, err := d.Query(context.Background(), "select * from missing_table"); err == nil {
		t.Error("Expected error for missing table")
	}
}

// Queries on lightweight threads must not hold carriers while they wait.
func TestQueryReleasesCarrier(t *testing.T) {
	d := openTestDB(t)
	svc, err := threads.New(threads.Options{Virtual: true, Carriers: 2})
	if err != nil {
		t.Fatal(err)
	}
	defer svc.Close()

	const n = 8
	var failures atomic.Int32
	var wg conc.WaitGroup
	start := time.Now()
	for i := 0; i < n; i++ {
		i := i
		wg.Go(func() {
			th, err := svc.Create(func(ctx context.Context) error {
				_, err := d.Query(ctx, "select pg_sleep(0.2)")
				return err
			}, fmt.Sprintf("sql-%d", i))
			if err != nil || th.Join(context.Background()) != nil {
				failures.Add(1)
			}
		})
	}
	wg.Wait()

	if failures.Load() != 0 {
		t.Fatalf("%d queries failed", failures.Load())
	}
	// Holding carriers would serialize the queries into four rounds.
	if elapsed := time.Since(start); elapsed > 600*time.Millisecond {
		t.Errorf("Queries took %v; carriers were not released", elapsed)
	}
	if s := svc.Stats(); s.Carriers.Parks < n {
		t.Errorf("Expected at least %d parks, got %d", n, s.Carriers.Parks)
	}
}
