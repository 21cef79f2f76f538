package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func fastClientConfig(breakerMax int) HTTPClientConfig {
	return HTTPClientConfig{
		Timeout:           2 * time.Second,
		MaxRetries:        0,
		RetryWaitMin:      time.Millisecond,
		RetryWaitMax:      time.Millisecond,
		RateLimit:         1000,
		CircuitBreakerMax: breakerMax,
	}
}

// Port 1 is reserved and nothing listens on it, so dialing fails immediately.
const unreachableURL = "http://127.0.0.1:1/none"

func TestDisabledBreakerNeverRejects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewRateLimitedHTTPClient(fastClientConfig(0), testLogger())

	_, err := client.Get(context.Background(), unreachableURL)
	require.Error(t, err)

	resp, err := client.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	client := NewRateLimitedHTTPClient(fastClientConfig(2), testLogger())

	for i := 0; i < 2; i++ {
		_, err := client.Get(context.Background(), unreachableURL)
		require.Error(t, err)
		assert.NotContains(t, err.Error(), "circuit breaker open")
	}

	_, err := client.Get(context.Background(), unreachableURL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker open")
}

func TestBreakerResetsOnSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewRateLimitedHTTPClient(fastClientConfig(3), testLogger())

	_, err := client.Get(context.Background(), unreachableURL)
	require.Error(t, err)

	resp, err := client.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	// two more failures stay below the threshold after the reset
	for i := 0; i < 2; i++ {
		_, err := client.Get(context.Background(), unreachableURL)
		require.Error(t, err)
		assert.NotContains(t, err.Error(), "circuit breaker open")
	}
}

func TestBreakerStateUnderConcurrentRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	// threshold high enough that the interleaving cannot open the breaker
	client := NewRateLimitedHTTPClient(fastClientConfig(100), testLogger())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		target := srv.URL
		if i%2 == 0 {
			target = unreachableURL
		}
		go func(url string) {
			defer wg.Done()
			resp, err := client.Get(context.Background(), url)
			if err == nil {
				resp.Body.Close()
			}
		}(target)
	}
	wg.Wait()

	// successes interleave with failures, so the breaker must still admit
	// requests afterwards
	resp, err := client.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
