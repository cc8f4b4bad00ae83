package rpcServer

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Layr-Labs/rewards-engine/internal/logger"
	"github.com/Layr-Labs/rewards-engine/pkg/accrual"
	"github.com/Layr-Labs/rewards-engine/pkg/chains"
	"github.com/Layr-Labs/rewards-engine/pkg/claims"
	"github.com/Layr-Labs/rewards-engine/pkg/contributions"
	"github.com/Layr-Labs/rewards-engine/pkg/distribution"
	"github.com/Layr-Labs/rewards-engine/pkg/metrics"
	"github.com/Layr-Labs/rewards-engine/pkg/metrics/metricsTypes"
	"github.com/Layr-Labs/rewards-engine/pkg/rewardRecords"
	"github.com/Layr-Labs/rewards-engine/pkg/validation"
	"github.com/stretchr/testify/assert"
)

type recordingClient struct {
	mu     sync.Mutex
	labels map[string][]metricsTypes.MetricsLabel
}

func (r *recordingClient) Incr(name string, labels []metricsTypes.MetricsLabel, value float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.labels[name] = labels
	return nil
}

func (r *recordingClient) Gauge(name string, value float64, labels []metricsTypes.MetricsLabel) error {
	return nil
}

func (r *recordingClient) Timing(name string, value time.Duration, labels []metricsTypes.MetricsLabel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.labels[name] = labels
	return nil
}

func (r *recordingClient) Flush() {}

func newTestServer(t *testing.T, token string, client metricsTypes.IMetricsClient) http.Handler {
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	clients := []metricsTypes.IMetricsClient{}
	if client != nil {
		clients = append(clients, client)
	}
	sink, err := metrics.NewMetricsSink(&metrics.MetricsSinkConfig{}, clients)
	assert.Nil(t, err)

	rpc := NewRpcServer(&RpcServerConfig{
		AdminToken:     token,
		AllowedOrigins: []string{"https://dashboard.example.com"},
	}, nil, nil, nil, nil, nil, nil, nil, sink, l)
	return rpc.Handler()
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) *Response {
	var res Response
	assert.Nil(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return &res
}

func Test_StatusForError(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{validation.New("apy", "must be between 0 and 100"), http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", validation.New("walletAddress", "is required")), http.StatusBadRequest},
		{fmt.Errorf("%w: 'ethereum'", chains.ErrChainNotFound), http.StatusNotFound},
		{rewardRecords.ErrRewardNotFound, http.StatusNotFound},
		{distribution.ErrSnapshotNotFound, http.StatusNotFound},
		{rewardRecords.ErrRewardNotOwned, http.StatusForbidden},
		{fmt.Errorf("%w: 'abc' is withdrawn", rewardRecords.ErrRewardNotPending), http.StatusConflict},
		{contributions.ErrContributionNotPending, http.StatusConflict},
		{fmt.Errorf("%w: 'tx-1'", rewardRecords.ErrSettlementReused), http.StatusConflict},
		{accrual.ErrRunInProgress, http.StatusConflict},
		{chains.ErrBankWalletRequired, http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: executor down", claims.ErrSettlementUnverified), http.StatusUnprocessableEntity},
		{errors.New("connection refused"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.status, statusForError(c.err), c.err.Error())
	}
}

func Test_RpcServer(t *testing.T) {
	t.Run("Should serve about without auth", func(t *testing.T) {
		h := newTestServer(t, "secret", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/about", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		res := decodeResponse(t, rec)
		assert.True(t, res.Success)
		assert.Nil(t, res.Error)
	})

	t.Run("Should require the admin token on admin routes", func(t *testing.T) {
		h := newTestServer(t, "secret", nil)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/admin/chains", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		res := decodeResponse(t, rec)
		assert.False(t, res.Success)
		assert.Equal(t, "missing or invalid admin token", res.Error.Reason)

		rec = httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/v1/admin/chains", nil)
		req.Header.Set("Authorization", "Bearer wrong")
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("Should reject malformed admin bodies before touching state", func(t *testing.T) {
		h := newTestServer(t, "secret", nil)

		send := func(body string) *httptest.ResponseRecorder {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPut, "/v1/admin/chains/ethereum/apy", strings.NewReader(body))
			req.Header.Set("Authorization", "Bearer secret")
			h.ServeHTTP(rec, req)
			return rec
		}

		rec := send(`{"apy": "ten"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = send(`{}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decodeResponse(t, rec).Error.Reason, "apy")

		rec = send(``)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = send(`{"apy": "5", "extra": true}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Should reject a non-numeric page", func(t *testing.T) {
		h := newTestServer(t, "", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/rewards?page=two", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Should answer CORS preflight for allowed origins", func(t *testing.T) {
		h := newTestServer(t, "", nil)
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodOptions, "/v1/rewards", nil)
		req.Header.Set("Origin", "https://dashboard.example.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)
		h.ServeHTTP(rec, req)
		assert.Equal(t, "https://dashboard.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("Should record request metrics with the route pattern", func(t *testing.T) {
		client := &recordingClient{labels: make(map[string][]metricsTypes.MetricsLabel)}
		h := newTestServer(t, "secret", client)
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPut, "/v1/admin/chains/ethereum/apy", strings.NewReader(`{}`))
		req.Header.Set("Authorization", "Bearer secret")
		h.ServeHTTP(rec, req)

		labels := client.labels[metricsTypes.Metric_Incr_HttpRequest]
		assert.Contains(t, labels, metricsTypes.MetricsLabel{Name: "pattern", Value: "/v1/admin/chains/{chain}/apy"})
		assert.Contains(t, labels, metricsTypes.MetricsLabel{Name: "status_code", Value: "400"})
		for _, label := range labels {
			assert.NotContains(t, label.Value, "ethereum", "label %s must not carry path parameters", label.Name)
		}
		assert.NotNil(t, client.labels[metricsTypes.Metric_Timing_HttpDuration])
	})
}
