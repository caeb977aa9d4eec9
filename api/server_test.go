package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mcdexio/chain-collector/common/logging"
	"github.com/mcdexio/chain-collector/database/models/chain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
)

type stubStore struct {
	block *chain.Block
	err   error
}

func (s *stubStore) LastBlock(context.Context, string) (*chain.Block, error) {
	return s.block, s.err
}

type ServerSuite struct {
	suite.Suite
	store  *stubStore
	server *InternalServer
}

func (s *ServerSuite) SetupTest() {
	s.store = &stubStore{}
	s.server = NewInternalServer(logging.NewLoggerTag("api"), ":0", "columbus-5", s.store,
		func() string { return "connected" })
	s.server.now = func() time.Time { return time.Date(2021, 10, 1, 12, 0, 30, 0, time.UTC) }
}

func (s *ServerSuite) do(method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.server.Router().ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func (s *ServerSuite) TestHealthCheckup() {
	rec := s.do(http.MethodGet, "/healthCheckup")
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("OK", rec.Body.String())

	s.Equal(http.StatusMethodNotAllowed, s.do(http.MethodPost, "/healthCheckup").Code)
}

func (s *ServerSuite) TestStatus() {
	s.store.block = &chain.Block{ChainID: "columbus-5", Height: 4724001, Timestamp: time.Date(2021, 10, 1, 12, 0, 0, 0, time.UTC)}
	rec := s.do(http.MethodGet, "/status")
	s.Require().Equal(http.StatusOK, rec.Code)

	var resp StatusResp
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Equal("columbus-5", resp.ChainID)
	s.Equal(int64(4724001), resp.Height)
	s.Equal("connected", resp.WatcherState)
	s.Equal(30.0, resp.LagSeconds)
	s.Require().NotNil(resp.BlockTime)
	s.True(resp.BlockTime.Equal(s.store.block.Timestamp))
}

func (s *ServerSuite) TestStatusEmptyStore() {
	rec := s.do(http.MethodGet, "/status")
	s.Require().Equal(http.StatusOK, rec.Code)
	var resp StatusResp
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Zero(resp.Height)
	s.Nil(resp.BlockTime)
}

func (s *ServerSuite) TestStatusStoreError() {
	s.store.err = errors.New("connection refused")
	rec := s.do(http.MethodGet, "/status")
	s.Equal(http.StatusInternalServerError, rec.Code)
	s.JSONEq(`{"error":"internal error"}`, rec.Body.String())
}

func (s *ServerSuite) TestMetrics() {
	reg := prometheus.NewRegistry()
	g := prometheus.NewGauge(prometheus.GaugeOpts{Name: "collector_test_gauge"})
	reg.MustRegister(g)
	g.Set(7)
	s.server.gatherer = reg

	rec := s.do(http.MethodGet, "/metrics")
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "collector_test_gauge 7")
}

func (s *ServerSuite) TestRunStopsWithContext() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.server.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		s.NoError(err)
	case <-time.After(5 * time.Second):
		s.Fail("server did not stop")
	}
}

func TestServer(t *testing.T) {
	suite.Run(t, new(ServerSuite))
}
