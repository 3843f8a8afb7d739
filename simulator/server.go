package simulator

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/kilianp07/fleetpulse/core/logger"
)

// Server serves the simulated fleet over HTTP.
type Server struct {
	fleet  *Fleet
	logger logger.Logger
	now    func() time.Time

	mu     sync.RWMutex
	faults Faults
}

// NewServer creates a Server for fleet.
func NewServer(fleet *Fleet, faults Faults, log logger.Logger) *Server {
	return &Server{fleet: fleet, faults: faults, logger: log, now: time.Now}
}

// SetFaults replaces the injected faults.
func (s *Server) SetFaults(f Faults) {
	s.mu.Lock()
	s.faults = f
	s.mu.Unlock()
}

func (s *Server) currentFaults() Faults {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.faults
}

// Handler returns the HTTP routes: GET /latest-data and GET /healthz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/latest-data", s.latestData())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func (s *Server) latestData() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		faults := s.currentFaults()
		if faults.Delay > 0 {
			select {
			case <-time.After(faults.Delay):
			case <-r.Context().Done():
				return
			}
		}
		body, err := s.fleet.Payload(s.now(), faults)
		if err != nil {
			s.logger.Errorf("render payload: %v", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	})
}

// ListenAndServe steps the fleet and serves it on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string, tick time.Duration) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go s.fleet.Run(ctx, tick)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	s.logger.Infof("simulator serving %d vehicles on %s", s.fleet.Len(), addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
