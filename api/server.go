package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/mcdexio/chain-collector/common/logging"
	"github.com/mcdexio/chain-collector/database/models/chain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Store reads the indexing progress.
type Store interface {
	LastBlock(ctx context.Context, chainID string) (*chain.Block, error)
}

// StatusResp is the body of GET /status.
type StatusResp struct {
	ChainID      string     `json:"chainId"`
	Height       int64      `json:"height"`
	BlockTime    *time.Time `json:"blockTime,omitempty"`
	WatcherState string     `json:"watcherState"`
	LagSeconds   float64    `json:"lagSeconds"`
}

// InternalServer serves health, status and metrics to operators.
type InternalServer struct {
	logger   logging.Logger
	chainID  string
	store    Store
	watcher  func() string
	gatherer prometheus.Gatherer
	server   *http.Server
	now      func() time.Time
}

// NewInternalServer builds the server. watcherState reports the current watcher state and may be nil.
func NewInternalServer(logger logging.Logger, addr, chainID string, store Store, watcherState func() string) *InternalServer {
	s := &InternalServer{
		logger:   logger,
		chainID:  chainID,
		store:    store,
		watcher:  watcherState,
		gatherer: prometheus.DefaultGatherer,
		now:      time.Now,
	}
	s.server = &http.Server{
		Addr:         addr,
		WriteTimeout: time.Second * 25,
		Handler:      s.Router(),
	}
	return s
}

// Router returns the routes of the server.
func (s *InternalServer) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthCheckup", s.OnQueryHealthCheckup).Methods(http.MethodGet)
	r.HandleFunc("/status", s.OnQueryStatus).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return r
}

// Run serves until ctx is done, then shuts the server down.
func (s *InternalServer) Run(ctx context.Context) error {
	s.logger.Info("starting internal httpserver on %s", s.server.Addr)
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("internal httpserver receives shutdown signal")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	}
}

func (s *InternalServer) OnQueryHealthCheckup(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *InternalServer) OnQueryStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResp{ChainID: s.chainID, WatcherState: "unknown"}
	if s.watcher != nil {
		resp.WatcherState = s.watcher()
	}

	block, err := s.store.LastBlock(r.Context(), s.chainID)
	if err != nil {
		s.logger.Error("failed to read last block: %s", err)
		s.jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	if block != nil {
		t := block.Timestamp.UTC()
		resp.Height = block.Height
		resp.BlockTime = &t
		resp.LagSeconds = s.now().Sub(t).Seconds()
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("failed to write status: %s", err)
	}
}

func (s *InternalServer) jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{msg})
}
