package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/constellation/internal/constellation"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/domain/document"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/domain/history"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/shared/id"
)

const defaultQueryTimeout = 2 * time.Second

// Options configures the handler set. Proxy and Tabs are required.
type Options struct {
	Proxy *constellation.Proxy
	// Tabs allocates top-level ids; it must be installed with id.EmbedderNamespace
	Tabs         *id.Namespace
	HomeURL      string
	QueryTimeout time.Duration
	Gatherer     prometheus.Gatherer
	Metrics      *monitoring.Metrics
	Logger       *zap.Logger
}

// Handlers contains all HTTP handlers
type Handlers struct {
	proxy        *constellation.Proxy
	tabs         *id.Namespace
	homeURL      string
	queryTimeout time.Duration
	gatherer     prometheus.Gatherer
	metrics      *monitoring.Metrics
	logger       *zap.Logger
}

// NewHandlers creates a new handler set
func NewHandlers(opts Options) *Handlers {
	if opts.HomeURL == "" {
		opts.HomeURL = document.BlankURL
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = defaultQueryTimeout
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Handlers{
		proxy:        opts.Proxy,
		tabs:         opts.Tabs,
		homeURL:      opts.HomeURL,
		queryTimeout: opts.QueryTimeout,
		gatherer:     opts.Gatherer,
		metrics:      opts.Metrics,
		logger:       opts.Logger,
	}
}

// Health reports whether the constellation still accepts messages
func (h *Handlers) Health(c *gin.Context) {
	status, code := "healthy", http.StatusOK
	if h.proxy.Disconnected() {
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":        status,
		"service":       "constellation",
		"constellation": gin.H{"connected": !h.proxy.Disconnected()},
		"stats":         h.metrics.Snapshot(),
	})
}

// Metrics serves the Prometheus exposition format
func (h *Handlers) Metrics() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
}

// CreateBrowser opens a new tab
func (h *Handlers) CreateBrowser(c *gin.Context) {
	var req CreateBrowserRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.URL == "" {
		req.URL = h.homeURL
	}
	target, err := document.Parse(req.URL)
	if err != nil {
		h.fail(c, err)
		return
	}

	top, err := h.tabs.NextTopLevelID()
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.proxy.Send(constellation.NewTopLevel{TopLevel: top, URL: target.String()}); err != nil {
		h.fail(c, err)
		return
	}

	h.logger.Info("Browser created", zap.Stringer("top_level", top), zap.String("url", target.String()))
	c.JSON(http.StatusCreated, gin.H{
		"id":  top.String(),
		"url": target.String(),
	})
}

// LoadURL navigates a tab
func (h *Handlers) LoadURL(c *gin.Context) {
	top, ok := h.browser(c)
	if !ok {
		return
	}

	var req LoadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	target, err := document.Parse(req.URL)
	if err != nil {
		h.fail(c, err)
		return
	}

	msg := constellation.LoadURL{BrowsingContext: top.Root(), URL: target.String(), Replace: req.Replace}
	if err := h.proxy.Send(msg); err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"id":      top.String(),
		"url":     target.String(),
		"replace": req.Replace,
	})
}

// Back traverses a tab's history backwards
func (h *Handlers) Back(c *gin.Context) {
	h.traverse(c, history.Back)
}

// Forward traverses a tab's history forwards
func (h *Handlers) Forward(c *gin.Context) {
	h.traverse(c, history.Forward)
}

func (h *Handlers) traverse(c *gin.Context, dir history.Direction) {
	top, ok := h.browser(c)
	if !ok {
		return
	}

	var req TraverseRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Steps == 0 {
		req.Steps = 1
	}

	if err := h.proxy.Send(constellation.Navigate{Direction: dir, TopLevel: top, Steps: req.Steps}); err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"id":        top.String(),
		"direction": dir.String(),
		"steps":     req.Steps,
	})
}

// History returns a tab's session history
func (h *Handlers) History(c *gin.Context) {
	top, err := id.ParseTopLevelID(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	result, err := h.query(c.Request.Context(), top)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !result.Found {
		h.fail(c, constellation.ErrNoSuchBrowser)
		return
	}

	c.JSON(http.StatusOK, newHistoryView(result))
}

// CloseBrowser closes a tab and everything in it
func (h *Handlers) CloseBrowser(c *gin.Context) {
	top, ok := h.browser(c)
	if !ok {
		return
	}

	if err := h.proxy.Send(constellation.CloseTopLevel{TopLevel: top}); err != nil {
		h.fail(c, err)
		return
	}

	h.logger.Info("Browser closed", zap.Stringer("top_level", top))
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"id":      top.String(),
	})
}

// browser resolves the :id parameter to a tab that currently exists.
// It writes the error response itself when it returns false.
func (h *Handlers) browser(c *gin.Context) (id.TopLevelBrowsingContextID, bool) {
	top, err := id.ParseTopLevelID(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return top, false
	}

	result, err := h.query(c.Request.Context(), top)
	if err != nil {
		h.fail(c, err)
		return top, false
	}
	if !result.Found {
		h.fail(c, constellation.ErrNoSuchBrowser)
		return top, false
	}
	return top, true
}

func (h *Handlers) query(ctx context.Context, top id.TopLevelBrowsingContextID) (constellation.HistoryResult, error) {
	ctx, cancel := context.WithTimeout(ctx, h.queryTimeout)
	defer cancel()
	return h.proxy.QueryHistory(ctx, top)
}

// fail maps domain errors onto status codes
func (h *Handlers) fail(c *gin.Context, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, id.ErrInvalidID), errors.Is(err, document.ErrUnsupportedURL):
		code = http.StatusBadRequest
	case errors.Is(err, constellation.ErrNoSuchBrowser):
		code = http.StatusNotFound
	case errors.Is(err, constellation.ErrDisconnected), errors.Is(err, id.ErrNamespaceExhausted):
		code = http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		code = http.StatusGatewayTimeout
	}

	if code >= http.StatusInternalServerError {
		h.logger.Warn("Request failed",
			zap.String("path", c.FullPath()),
			zap.Int("status", code),
			tracing.Field(c.Request.Context()),
			zap.Error(err))
	}
	c.JSON(code, gin.H{"error": err.Error()})
}
