package telemetry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"toonloop/internal/logger"
)

// Server exposes the hub at /ws on a dedicated listener.
type Server struct {
	srv    *http.Server
	logger logger.Logger
}

func NewServer(addr string, hub *Hub, log logger.Logger) *Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.Handler())

	return &Server{
		srv: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		logger: log,
	}
}

// Start serves in the background; listen failures are logged, not fatal,
// since telemetry is an observer surface, not part of the pipeline.
func (s *Server) Start() {
	go func() {
		s.logger.Info("Telemetry", "server listening", map[string]interface{}{
			"addr": s.srv.Addr,
		})

		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Telemetry", err, map[string]interface{}{
				"addr": s.srv.Addr,
			})
		}
	}()
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.srv.Shutdown(ctx); err != nil {
		s.logger.Error("Telemetry", err, nil)
	}
}
