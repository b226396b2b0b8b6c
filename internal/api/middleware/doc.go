// Package middleware provides the HTTP middleware in front of the embedder API.
//
// Middleware stack includes:
//   - CORS: Cross-origin resource sharing, websocket upgrades allowed for /events
//   - RateLimit: Per-IP token bucket rate limiting with idle bucket cleanup
//   - GlobalRateLimit: One bucket shared by every client
//   - BodyLimit: Request body size cap
//
// Example Usage:
//
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
