package main

import (
	"fmt"
	"io"
	"net/http"

	"github.com/centralbank/fabric-asset-api/backend/pkg/common"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterOptions carries the optional parts of the HTTP surface.
type RouterOptions struct {
	// AuthSecret enables bearer token checks on /assets and /journal.
	AuthSecret []byte
	// Health is served on /healthz when set.
	Health http.Handler
	// Registry is served on /metrics and instruments every request when
	// set.
	Registry *prometheus.Registry
}

// NewRouter wires the asset routes and the operations endpoints.
func NewRouter(svc *Service, opts RouterOptions) http.Handler {
	r := mux.NewRouter()

	assets := r.PathPrefix("/assets").Subrouter()
	if len(opts.AuthSecret) > 0 {
		assets.Use(common.AuthMiddleware(opts.AuthSecret))
	}
	assets.Use(common.IdentityMiddleware)
	assets.HandleFunc("", svc.CreateAssetHandler).Methods(http.MethodPost)
	assets.HandleFunc("/{id}", svc.GetAssetHandler).Methods(http.MethodGet)
	assets.HandleFunc("/{id}/exists", svc.AssetExistsHandler).Methods(http.MethodGet)
	assets.HandleFunc("/{id}", svc.UpdateAssetHandler).Methods(http.MethodPut)
	assets.HandleFunc("/{id}", svc.DeleteAssetHandler).Methods(http.MethodDelete)

	var journal http.Handler = http.HandlerFunc(svc.JournalHandler)
	if len(opts.AuthSecret) > 0 {
		journal = common.AuthMiddleware(opts.AuthSecret)(journal)
	}
	r.Handle("/journal", journal).Methods(http.MethodGet)

	if opts.Health != nil {
		r.Handle("/healthz", opts.Health)
	}

	var h http.Handler = r
	if opts.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

		duration := promauto.With(opts.Registry).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "asset_service",
			Name:      "http_request_duration_seconds",
			Help:      "Latency of HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"code", "method"})
		h = promhttp.InstrumentHandlerDuration(duration, h)
	}

	h = handlers.CustomLoggingHandler(io.Discard, h, logRequest)
	return handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{}))(h)
}

func logRequest(_ io.Writer, p handlers.LogFormatterParams) {
	logger.Debugf("%s %s %d %dB", p.Request.Method, p.URL.RequestURI(), p.StatusCode, p.Size)
}

type recoveryLogger struct{}

func (recoveryLogger) Println(v ...interface{}) {
	logger.Errorf("Recovered from panic: %s", fmt.Sprint(v...))
}
