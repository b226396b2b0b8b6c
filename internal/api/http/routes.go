package http

import "github.com/gin-gonic/gin"

// Register mounts the embedder API on r
func (h *Handlers) Register(r gin.IRoutes) {
	r.GET("/health", h.Health)
	r.GET("/metrics", h.Metrics())

	r.POST("/browsers", h.CreateBrowser)
	r.POST("/browsers/:id/load", h.LoadURL)
	r.POST("/browsers/:id/back", h.Back)
	r.POST("/browsers/:id/forward", h.Forward)
	r.GET("/browsers/:id/history", h.History)
	r.DELETE("/browsers/:id", h.CloseBrowser)
}
