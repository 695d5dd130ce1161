package observability

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ratelimiter/internal/models"
)

// MetricsServer exposes the Prometheus scrape endpoint on its own port so
// the decision API's listener never serves metrics traffic.
type MetricsServer struct {
	server *http.Server
	path   string
}

// NewMetricsServer builds a metrics HTTP server from config. When the
// provider carries no Prometheus exporter the server still starts but
// serves 404 for the scrape path.
func NewMetricsServer(cfg models.MetricsConfig, provider *Provider) *MetricsServer {
	mux := http.NewServeMux()

	if provider != nil && provider.promExporter != nil {
		mux.Handle(cfg.Path, promhttp.Handler())
	}

	return &MetricsServer{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       time.Minute,
		},
		path: cfg.Path,
	}
}

// Start serves metrics until Shutdown; it returns http.ErrServerClosed on
// graceful shutdown.
func (ms *MetricsServer) Start() error {
	slog.Info("Starting metrics server", "addr", ms.server.Addr, "path", ms.path)
	return ms.server.ListenAndServe()
}

// Shutdown gracefully stops the metrics server.
func (ms *MetricsServer) Shutdown(ctx context.Context) error {
	return ms.server.Shutdown(ctx)
}
