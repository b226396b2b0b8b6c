// Package server assembles the embedder-facing surface: the gin router with
// tracing, metrics, CORS and rate-limit middleware, the REST and WebSocket
// handlers, and a grpc.health.v1 service that reports SERVING while the
// constellation actor runs.
package server
