// Package api exposes the forecast pipeline over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pvcast/pvcast/internal/ingest"
	"github.com/pvcast/pvcast/internal/models"
	"github.com/pvcast/pvcast/internal/store"
)

// WeatherSource supplies blended hourly weather for a location. The NWS
// client satisfies it in production; tests substitute a stub.
type WeatherSource interface {
	FetchBlended(lat, lon float64) (models.WeatherSeries, string, *ingest.FetchMeta, error)
}

type Server struct {
	store   *store.Store
	weather WeatherSource
	port    string
}

func NewServer(store *store.Store, weather WeatherSource, port string) *Server {
	return &Server{
		store:   store,
		weather: weather,
		port:    port,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/forecast", s.handleForecast)
	mux.HandleFunc("/api/report", s.handleReport)
	mux.HandleFunc("/api/runs", s.handleRuns)
	mux.HandleFunc("/api/plants", s.handlePlants)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    ":" + s.port,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
