// Package main is the entry point for the constellation server.
//
// The process hosts the browsing-context orchestrator actor, runs content
// threads as goroutines behind a circuit-breaker guarded spawner, and exposes
// the embedder API.
//
// Architecture:
//
//	Embedder (HTTP/WebSocket) → Proxy → Constellation actor → Spawner → content threads
//	                                          ↑                              │
//	                                          └──────── Proxy ───────────────┘
//
// The server provides:
//   - REST API for tabs, navigation and session history
//   - WebSocket stream of embedder events on /events
//   - Prometheus metrics on /metrics
//   - grpc.health.v1 on HEALTH_PORT
//
// Configuration:
//   - Environment variables (12-factor)
//   - Optional YAML or TOML file (-config), overriding the environment
//   - CLI flags (-port, -dev) override both
//
// Usage:
//
//	./server -config constellation.yaml
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown. Content threads get SHUTDOWN_TIMEOUT to exit.
package main
