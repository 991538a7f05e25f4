package http2

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"golang.org/x/net/http2"
)

func startServer(t *testing.T, h http.Handler) *Server {
	t.Helper()
	s, err := NewServer(Config{Handler: h})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	done := make(chan error, 1)
	go func() { done <- s.Serve(ln) }()
	t.Cleanup(func() {
		s.Close()
		<-done
	})
	for s.Addr() == nil {
		time.Sleep(time.Millisecond)
	}
	return s
}

func h2cClient() *http.Client {
	return &http.Client{
		Transport: &http2.Transport{
			AllowHTTP: true,
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, network, addr)
			},
		},
	}
}

func protoHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, r.Proto)
	})
}

func get(t *testing.T, c *http.Client, url string) string {
	t.Helper()
	resp, err := c.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return string(body)
}

func TestH2CPriorKnowledge(t *testing.T) {
	s := startServer(t, protoHandler())
	if s.Protocol() != "h2c" {
		t.Errorf("Expected h2c, got %s", s.Protocol())
	}

	if got := get(t, h2cClient(), "http://"+s.Addr().String()+"/"); got != "HTTP/2.0" {
		t.Errorf("Expected HTTP/2.0, got %s", got)
	}
}

func TestHTTP1Fallback(t *testing.T) {
	s := startServer(t, protoHandler())

	if got := get(t, http.DefaultClient, "http://"+s.Addr().String()+"/"); got != "HTTP/1.1" {
		t.Errorf("Expected HTTP/1.1, got %s", got)
	}
	if st := s.GetStats(); st.TotalConnections == 0 {
		t.Error("Expected connection to be counted")
	}
}

func TestShutdownWaitsForInflight(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	s := startServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		io.WriteString(w, "done")
	}))

	result := make(chan string, 1)
	go func() {
		resp, err := http.Get("http://" + s.Addr().String() + "/")
		if err != nil {
			result <- err.Error()
			return
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		result <- string(body)
	}()
	<-started

	shutdown := make(chan error, 1)
	go func() { shutdown <- s.Shutdown(context.Background()) }()

	select {
	case <-shutdown:
		t.Fatal("Shutdown returned before in-flight request finished")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)

	if err := <-shutdown; err != nil {
		t.Errorf("Shutdown: %v", err)
	}
	if got := <-result; got != "done" {
		t.Errorf("Expected in-flight response, got %q", got)
	}
}

func TestServeAfterShutdown(t *testing.T) {
	s, err := NewServer(Config{Handler: protoHandler()})
	if err != nil {
		t.Fatal(err)
	}
	s.Shutdown(context.Background())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Serve(ln); !errors.Is(err, ErrServerClosed) {
		t.Errorf("Expected ErrServerClosed, got %v", err)
	}
}

func TestNilHandler(t *testing.T) {
	if _, err := NewServer(Config{}); err == nil {
		t.Error("Expected error for nil handler")
	}
}
