// internal/api/api.go
// HTTP bootstrap: hosts the websocket upgrade and health endpoints.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/matchlink/internal/config"
	"github.com/matchlink/internal/hub"
	"github.com/matchlink/internal/logger"
)

const shutdownTimeout = 5 * time.Second

// Server wires the hub to its HTTP transport.
type Server struct {
	cfg    config.Config
	hub    *hub.Hub
	nc     *nats.Conn
	logger *logger.Logger
}

// NewServer connects to NATS (degrading gracefully if it is
// unreachable) and builds the hub.
func NewServer(cfg config.Config, log *logger.Logger) *Server {
	nc := connectNATS(cfg, log)
	return &Server{
		cfg:    cfg,
		hub:    hub.NewHub(nc, cfg.AllowedOrigin, logger.New("hub")),
		nc:     nc,
		logger: log,
	}
}

func connectNATS(cfg config.Config, log *logger.Logger) *nats.Conn {
	url := cfg.NatsURL
	if url == "" {
		url = nats.DefaultURL
	}
	nc, err := nats.Connect(url)
	if err != nil {
		log.Warnf("NATS unavailable at %s, lifecycle events disabled: %v", url, err)
		return nil
	}
	log.Infof("connected to NATS at %s", url)
	return nc
}

// Run starts the hub loop and the HTTP listener, and blocks until the
// context is canceled or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	hubCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.hub.Run(hubCtx)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.hub.ServeWs)
	mux.HandleFunc("/health", s.handleHealth)

	srv := &http.Server{Addr: s.cfg.Addr(), Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("listening on %s", s.cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdown()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Errorf("http shutdown: %v", err)
		}
		if s.nc != nil {
			if err := s.nc.Drain(); err != nil {
				s.logger.Errorf("nats drain: %v", err)
			}
		}
		s.logger.Info("server stopped")
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	natsStatus := "disconnected"
	if s.nc != nil && s.nc.Status() == nats.CONNECTED {
		natsStatus = "connected"
	}
	health := map[string]interface{}{
		"status":  "ok",
		"nats":    natsStatus,
		"clients": s.hub.ClientCount(),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}
