package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestBenchCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	}))
	defer srv.Close()

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"bench", "-n", "10", "-p", "5", srv.URL + "/"})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out.String(), "Requests:   10 (10 ok, 0 failed)") {
		t.Errorf("Unexpected report:\n%s", out.String())
	}
}

func TestServeRejectsInvalidConfig(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"serve", "--carriers=-1"})

	err := root.Execute()
	if err == nil || !strings.Contains(err.Error(), "carriers") {
		t.Errorf("Expected carriers validation error, got %v", err)
	}
}

func TestServeFlagsRegistered(t *testing.T) {
	serve, _, err := newRootCmd().Find([]string{"serve"})
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"port", "virtual-threads", "carriers", "db-dsn", "log-format", "tls-cert"} {
		if serve.Flags().Lookup(name) == nil {
			t.Errorf("serve is missing --%s", name)
		}
	}
}
