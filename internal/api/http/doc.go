// Package http is the embedder's REST surface over the constellation.
//
// Every handler talks to the actor through a constellation.Proxy: commands are
// fire-and-forget messages answered with 202, reads go through QueryHistory
// with a bounded wait. Tab ids use the "namespace-index" form.
//
// Routes:
//   - POST   /browsers              open a tab ({"url": ...}, empty means home)
//   - POST   /browsers/:id/load     navigate ({"url": ..., "replace": bool})
//   - POST   /browsers/:id/back     traverse back ({"steps": n}, default 1)
//   - POST   /browsers/:id/forward  traverse forward
//   - GET    /browsers/:id/history  session history snapshot
//   - DELETE /browsers/:id          close the tab
//   - GET    /health, GET /metrics
package http
