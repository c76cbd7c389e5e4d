package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myseetara-source/erp-seetara-sub004/internal/config"
	"github.com/myseetara-source/erp-seetara-sub004/pkg/logger"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Environment:              "test",
		LogLevel:                 "error",
		HTTPPort:                 0,
		StoreBackend:             config.BackendMemory,
		LockTimeoutMs:            1000,
		DefaultLowStockThreshold: 10,
		RequireDistinctChecker:   true,
		AllowStraightThrough:     true,
		Redis: config.RedisConfig{
			CacheTTLSeconds:     30,
			ApprovalLockTTLSecs: 30,
			IdempotencyTTLHours: 24,
		},
	}
}

func request(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func createUnit(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := request(t, h, http.MethodPost, "/api/v1/units", `{"sku":"SKU-APP","name":"Widget","cost_price":"2.50","initial_fresh":20}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotEmpty(t, resp.Data.ID)
	return resp.Data.ID
}

func TestNewApp_MemoryBackend(t *testing.T) {
	a, err := NewApp(memoryConfig(), logger.NewDiscard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Shutdown() })

	assert.Empty(t, a.consumers)
	assert.Nil(t, a.producer)
	assert.Nil(t, a.pool)

	rec := request(t, a.Handler(), http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	id := createUnit(t, a.Handler())
	rec = request(t, a.Handler(), http.MethodPost, "/api/v1/units/"+id+"/reserve", `{"quantity":5,"order_ref":"order-1"}`)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestNewApp_WithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := memoryConfig()
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = mr.Addr()
	cfg.Redis.ApprovalLock = true

	a, err := NewApp(cfg, logger.NewDiscard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Shutdown() })
	require.NotNil(t, a.redis)

	id := createUnit(t, a.Handler())
	rec := request(t, a.Handler(), http.MethodGet, "/api/v1/units/"+id+"/level", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, mr.Keys(), "stock level is cached in redis")

	rec = request(t, a.Handler(), http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "redis")
}

func TestNewApp_RedisUnreachable(t *testing.T) {
	cfg := memoryConfig()
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = "127.0.0.1:1"

	_, err := NewApp(cfg, logger.NewDiscard())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect to redis")
}

func TestRun_StopsOnCancel(t *testing.T) {
	a, err := NewApp(memoryConfig(), logger.NewDiscard())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
