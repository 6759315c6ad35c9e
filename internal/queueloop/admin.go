package queueloop

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewAdminServer builds the worker's own /healthz + /metrics surface,
// scaled down from the teacher's full gin API server (internal/server) to
// the two endpoints an operator needs to watch a queue-backed worker
// process: liveness and the prometheus scrape target.
func NewAdminServer(reg *prometheus.Registry) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	return &http.Server{Handler: r}
}
