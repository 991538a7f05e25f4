package core

import "errors"

// HTTP header constants
const (
	HeaderContentType = "Content-Type"
	HeaderAccept      = "Accept"
	HeaderAllow       = "Allow"
	HeaderRetryAfter  = "Retry-After"
)

// Thread name prefixes
const (
	WorkerPrefix = "http-nio"
	TaskPrefix   = "task"
)

// Error definitions
var (
	ErrNilHandler = errors.New("nil handler")
)
