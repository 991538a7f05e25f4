package router

import (
	"sort"
	"strings"
)

// HandlerFunc defines the handler function type
type HandlerFunc func(ctx any)

// RadixRouter is a segment tree router with ":param" and trailing
// "*catchall" support. Static segments win over params, params over
// catch-alls.
type RadixRouter struct {
	root   *node
	routes int
}

type node struct {
	static    map[string]*node
	param     *node
	paramName string
	catchAll  *node
	catchName string
	handlers  map[string]HandlerFunc // method -> handler
}

// NewRadixRouter creates a new router
func NewRadixRouter() *RadixRouter {
	return &RadixRouter{root: &node{}}
}

// Add adds a route. It panics on malformed or conflicting patterns, which
// are programming errors caught at startup.
func (r *RadixRouter) Add(method, path string, handler HandlerFunc) {
	if path == "" || path[0] != '/' {
		panic("path must begin with '/'")
	}

	n := r.root
	segs := split(path)
	for i, seg := range segs {
		switch {
		case seg[0] == ':':
			if len(seg) < 2 {
				panic("wildcards must be named")
			}
			if n.param == nil {
				n.param = &node{}
				n.paramName = seg[1:]
			} else if n.paramName != seg[1:] {
				panic("conflicting parameter names " + n.paramName + " and " + seg[1:] + " in " + path)
			}
			n = n.param

		case seg[0] == '*':
			if len(seg) < 2 {
				panic("wildcards must be named")
			}
			if i != len(segs)-1 {
				panic("catch-all routes are only allowed at the end of the path")
			}
			if n.catchAll == nil {
				n.catchAll = &node{}
				n.catchName = seg[1:]
			}
			n = n.catchAll

		default:
			if n.static == nil {
				n.static = make(map[string]*node)
			}
			child, ok := n.static[seg]
			if !ok {
				child = &node{}
				n.static[seg] = child
			}
			n = child
		}
	}

	if n.handlers == nil {
		n.handlers = make(map[string]HandlerFunc)
	}
	if _, exists := n.handlers[method]; !exists {
		r.routes++
	}
	n.handlers[method] = handler
}

// Find finds a handler for the given method and path
func (r *RadixRouter) Find(method, path string) (HandlerFunc, map[string]string) {
	n, params := r.root.match(split(path), nil)
	if n == nil {
		return nil, nil
	}
	h := n.handlers[method]
	if h == nil {
		return nil, nil
	}
	return h, params
}

// Allowed returns the methods registered for path, sorted. An empty result
// means the path is unknown.
func (r *RadixRouter) Allowed(path string) []string {
	n, _ := r.root.match(split(path), nil)
	if n == nil {
		return nil
	}
	methods := make([]string, 0, len(n.handlers))
	for m := range n.handlers {
		methods = append(methods, m)
	}
	sort.Strings(methods)
	return methods
}

// Len returns the number of registered method+path routes.
func (r *RadixRouter) Len() int {
	return r.routes
}

func (n *node) match(segs []string, params map[string]string) (*node, map[string]string) {
	if len(segs) == 0 {
		if len(n.handlers) > 0 {
			return n, params
		}
		return nil, nil
	}

	seg := segs[0]
	if child, ok := n.static[seg]; ok {
		if found, p := child.match(segs[1:], params); found != nil {
			return found, p
		}
	}

	if n.param != nil && seg != "" {
		p := withParam(params, n.paramName, seg)
		if found, p := n.param.match(segs[1:], p); found != nil {
			return found, p
		}
	}

	if n.catchAll != nil && len(n.catchAll.handlers) > 0 {
		return n.catchAll, withParam(params, n.catchName, strings.Join(segs, "/"))
	}
	return nil, nil
}

func withParam(params map[string]string, key, value string) map[string]string {
	p := make(map[string]string, len(params)+1)
	for k, v := range params {
		p[k] = v
	}
	p[key] = value
	return p
}

// split turns "/a/b/" into ["a", "b", ""] and "/" into [].
func split(path string) []string {
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}
