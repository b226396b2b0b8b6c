/*
Package tracing correlates embedder requests across the HTTP API and the gRPC
health service.

# Overview

Every request gets a span; a caller supplying X-Trace-ID (HTTP) or
x-trace-id (gRPC metadata) continues its own trace. The ids are echoed in
response headers and are available to handlers through GetTraceID and Field,
so a failed request and its constellation log lines can be joined.

Finished spans are written to the logger: failures at Warn, the rest at
Debug. There is no exporter.

# Usage

	tracer := tracing.New("constellation", logger.Component("tracing"))
	router.Use(tracing.HTTPMiddleware(tracer))

	server := grpc.NewServer(grpc.UnaryInterceptor(tracing.GRPCUnaryInterceptor(tracer)))
*/
package tracing
