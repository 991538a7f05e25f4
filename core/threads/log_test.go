package threads

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"testing"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) lines(t *testing.T) []map[string]any {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(b.buf.Bytes()))
	for sc.Scan() {
		var entry map[string]any
		if err := json.Unmarshal(sc.Bytes(), &entry); err != nil {
			t.Fatalf("log line is not JSON: %v (%q)", err, sc.Text())
		}
		out = append(out, entry)
	}
	return out
}

func TestService_LogsOneLinePerCreation(t *testing.T) {
	for _, virtual := range []bool{true, false} {
		var logs syncBuffer
		svc, err := New(Options{
			Virtual:  virtual,
			Carriers: 2,
			Logger:   slog.New(slog.NewJSONHandler(&logs, nil)),
		})
		if err != nil {
			t.Fatal(err)
		}

		const k = 5
		f := svc.NewFactory("worker", true)
		var all []*Thread
		for i := 0; i < k; i++ {
			var th *Thread
			if i%2 == 0 {
				th, err = svc.Create(func(context.Context) error { return nil }, fmt.Sprintf("named-%d", i))
			} else {
				th, err = f.Go(func(context.Context) error { return nil })
			}
			if err != nil {
				t.Fatal(err)
			}
			all = append(all, th)
		}
		for _, th := range all {
			th.Join(context.Background())
		}
		svc.Close()

		mode := svc.Mode()
		entries := logs.lines(t)
		if len(entries) != k {
			t.Fatalf("%s: expected %d log lines, got %d", mode, k, len(entries))
		}
		for i, entry := range entries {
			th := all[i]
			want := fmt.Sprintf("%s: %d -> %s", mode, i+1, th.Name())
			if entry["msg"] != want {
				t.Errorf("%s: line %d msg = %v, want %q", mode, i, entry["msg"], want)
			}
			if entry["total"] != float64(i+1) || entry["thread"] != th.Name() || entry["mode"] != mode {
				t.Errorf("%s: line %d attrs = %v", mode, i, entry)
			}
		}
		if svc.Created() != k {
			t.Errorf("%s: expected %d created, got %d", mode, k, svc.Created())
		}
	}
}
