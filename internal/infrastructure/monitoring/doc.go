/*
Package monitoring provides Prometheus metrics for the constellation service.

# Overview

Metrics are registered against an explicit prometheus.Registerer so tests can
use a private registry. Every recorder method accepts a nil *Metrics, which lets
components treat metrics as optional.

# Usage

	registry := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(registry)

	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	metrics.RecordNavigation("load")
	metrics.SetPipelinesActive(12)
*/
package monitoring
