package unisphere

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastWait(attempts int) WaitConfig {
	return WaitConfig{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      2.0,
		Timeout:         5 * time.Second,
	}
}

// statusSequence answers GETs with the given statuses, repeating the last one.
func statusSequence(calls *atomic.Int32, statuses ...int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n := int(calls.Add(1))
		if n > len(statuses) {
			n = len(statuses)
		}
		w.WriteHeader(statuses[n-1])
	}
}

func TestWaitGone_ReturnsOnNotFound(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(statusSequence(&calls, http.StatusOK, http.StatusOK, http.StatusNotFound))
	defer srv.Close()

	client := newTestClient(t, srv)
	resp, err := client.WaitStorageGroupGone(context.Background(), "000197900123", "TEST_SG", fastWait(5))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestWaitGone_BoundedAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(statusSequence(&calls, http.StatusOK))
	defer srv.Close()

	client := newTestClient(t, srv)
	_, err := client.WaitHostGone(context.Background(), "000197900123", "HOST01", fastWait(4))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDeleteTimeout))
	assert.Equal(t, int32(4), calls.Load())
}

func TestWaitGone_ServerErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"message":"internal error"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv)
	_, err := client.WaitHostGone(context.Background(), "000197900123", "HOST01", fastWait(5))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrDeleteTimeout))
	assert.Equal(t, http.StatusInternalServerError, StatusCode(err))
	assert.Contains(t, err.Error(), "internal error")
	assert.Equal(t, int32(1), calls.Load())
}

func TestWaitGone_Timeout(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(statusSequence(&calls, http.StatusOK))
	defer srv.Close()

	cfg := fastWait(1000)
	cfg.InitialInterval = 20 * time.Millisecond
	cfg.MaxInterval = 20 * time.Millisecond
	cfg.Timeout = 100 * time.Millisecond

	client := newTestClient(t, srv)
	_, err := client.WaitHostGone(context.Background(), "000197900123", "HOST01", cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDeleteTimeout))
	assert.Less(t, calls.Load(), int32(1000))
}

func TestWaitGone_ParentCancellation(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(statusSequence(&calls, http.StatusOK))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := newTestClient(t, srv)
	_, err := client.WaitHostGone(ctx, "000197900123", "HOST01", fastWait(5))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, errors.Is(err, ErrDeleteTimeout))
}

func TestWaitGone_RateLimitPastDeadlineIsTimeout(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(statusSequence(&calls, http.StatusOK))
	defer srv.Close()

	// One token every two seconds: the second poll cannot fit in the budget
	client, err := NewClient(Config{URL: srv.URL, User: "smc", Password: "smc-pass", RateLimitRPS: 0.5})
	require.NoError(t, err)

	cfg := fastWait(5)
	cfg.Timeout = 300 * time.Millisecond

	_, err = client.WaitHostGone(context.Background(), "000197900123", "HOST01", cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDeleteTimeout))
	assert.Equal(t, int32(1), calls.Load())
}
