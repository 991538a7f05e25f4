package router

import (
	"reflect"
	"testing"
)

func named(name string, hit *string) HandlerFunc {
	return func(ctx any) { *hit = name }
}

// TestRadixRouterBasic tests basic static routing
func TestRadixRouterBasic(t *testing.T) {
	router := NewRadixRouter()

	handler := func(ctx any) {}
	router.Add("GET", "/", handler)
	router.Add("GET", "/where-am-i", handler)
	router.Add("GET", "/where-am-i-async", handler)

	tests := []struct {
		path        string
		shouldMatch bool
	}{
		{"/", true},
		{"/where-am-i", true},
		{"/where-am-i-async", true},
		{"/where", false},
		{"/notfound", false},
	}

	for _, tt := range tests {
		h, _ := router.Find("GET", tt.path)
		if (h != nil) != tt.shouldMatch {
			t.Errorf("Path %s: expected match=%v, got match=%v", tt.path, tt.shouldMatch, h != nil)
		}
	}
	if router.Len() != 3 {
		t.Errorf("Expected 3 routes, got %d", router.Len())
	}
}

// TestRadixRouterPriority tests route priority (exact > param > catch-all)
func TestRadixRouterPriority(t *testing.T) {
	router := NewRadixRouter()

	var hit string
	router.Add("GET", "/threads/stats", named("exact", &hit))
	router.Add("GET", "/threads/:name", named("param", &hit))
	router.Add("GET", "/threads/*rest", named("catch", &hit))

	tests := []struct {
		path   string
		want   string
		params map[string]string
	}{
		{"/threads/stats", "exact", nil},
		{"/threads/http-nio-1", "param", map[string]string{"name": "http-nio-1"}},
		{"/threads/a/b", "catch", map[string]string{"rest": "a/b"}},
	}

	for _, tt := range tests {
		h, params := router.Find("GET", tt.path)
		if h == nil {
			t.Fatalf("Path %s: no match", tt.path)
		}
		h(nil)
		if hit != tt.want {
			t.Errorf("Path %s: expected %s handler, got %s", tt.path, tt.want, hit)
		}
		if len(tt.params) > 0 && !reflect.DeepEqual(params, tt.params) {
			t.Errorf("Path %s: expected params %v, got %v", tt.path, tt.params, params)
		}
	}
}

func TestRadixRouterBacktracking(t *testing.T) {
	router := NewRadixRouter()

	var hit string
	router.Add("GET", "/carriers/busy/count", named("static", &hit))
	router.Add("GET", "/carriers/:id/mounted", named("param", &hit))

	h, params := router.Find("GET", "/carriers/busy/mounted")
	if h == nil {
		t.Fatal("Expected backtracking into the param branch")
	}
	h(nil)
	if hit != "param" || params["id"] != "busy" {
		t.Errorf("Unexpected match %s %v", hit, params)
	}
}

func TestRadixRouterMethods(t *testing.T) {
	router := NewRadixRouter()
	router.Add("GET", "/stats", func(any) {})
	router.Add("POST", "/stats", func(any) {})

	if h, _ := router.Find("DELETE", "/stats"); h != nil {
		t.Error("DELETE should not match")
	}
	if got := router.Allowed("/stats"); !reflect.DeepEqual(got, []string{"GET", "POST"}) {
		t.Errorf("Unexpected allowed methods %v", got)
	}
	if got := router.Allowed("/missing"); got != nil {
		t.Errorf("Expected no methods, got %v", got)
	}
}

func TestRadixRouterPanics(t *testing.T) {
	cases := map[string]func(r *RadixRouter){
		"no slash":        func(r *RadixRouter) { r.Add("GET", "stats", func(any) {}) },
		"unnamed param":   func(r *RadixRouter) { r.Add("GET", "/:", func(any) {}) },
		"catch-all first": func(r *RadixRouter) { r.Add("GET", "/*all/x", func(any) {}) },
		"param conflict": func(r *RadixRouter) {
			r.Add("GET", "/t/:id", func(any) {})
			r.Add("GET", "/t/:name", func(any) {})
		},
	}
	for name, add := range cases {
		t.Run(name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("Expected panic")
				}
			}()
			add(NewRadixRouter())
		})
	}
}

func BenchmarkRadixRouterFind(b *testing.B) {
	router := NewRadixRouter()
	router.Add("GET", "/", func(any) {})
	router.Add("GET", "/where-am-i", func(any) {})
	router.Add("GET", "/threads/:name", func(any) {})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		router.Find("GET", "/threads/http-nio-42")
	}
}
