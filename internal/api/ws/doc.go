// Package ws streams embedder events (tab created, load started and
// complete, history changes, crashes, hangs, shutdown) to WebSocket clients.
//
// Each connection subscribes to the embedder bus and receives events as JSON
// text frames. A client may send {"type":"ping"} and gets {"type":"pong"}.
//
// Example Usage:
//
//	handler := ws.NewHandler(bus, metrics, logger.Component("ws"))
//	router.GET("/events", handler.HandleConnection)
package ws
