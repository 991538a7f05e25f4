/*
Package loomserver is a thread-per-request HTTP server whose threads come
from a configurable thread-creation service.

In platform mode every request runs on its own OS thread. In lightweight
mode requests run on goroutines that must hold one of a fixed number of
carriers to execute; sleeping or waiting on the database gives the carrier
back until the wait is over, so a handful of carriers serve hundreds of
blocked requests.

Quick Start

	loom-server serve --virtual-threads --carriers 4
	loom-server bench -n 200 -p 200 http://localhost:8080/

Endpoints

  - GET /                  sleeps one second, returns OK
  - GET /where-am-i        describes the thread serving the request
  - GET /where-am-i-async  describes a thread from the task factory
  - GET /sql               runs select pg_sleep(1)
  - GET /stats             thread, carrier, request and runtime statistics
    (JSON, or protobuf with Accept: application/x-protobuf)

Modules

  - app: Application wiring and graceful shutdown
  - bench: Concurrent load client
  - cmd/loom-server: Command line
  - config: Configuration loading and validation
  - logging: Structured logging
  - core: Request dispatch engine
  - core/threads: Thread-creation service, factories and carriers
  - core/http: Request context
  - core/router: Radix routing
  - core/middleware: Middleware pipeline
  - core/pools: Object pooling
  - core/http2: HTTP/2 (h2 and h2c) transport
  - core/codec: JSON and protobuf encoding
  - core/db: Blocking SQL queries
  - core/observability: Request, thread and runtime metrics
*/
package loomserver
