package rpc

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClientIDIgnoresForwardingHeadersFromUntrustedPeers(t *testing.T) {
	limiter := NewRateLimiter(RateLimit{RequestsPerMinute: 60, Burst: 1})

	req := httptest.NewRequest(http.MethodPost, "/rpc", nil)
	req.RemoteAddr = "203.0.113.9:4411"
	req.Header.Set("X-Real-IP", "198.51.100.1")
	req.Header.Set("X-Forwarded-For", "198.51.100.2, 10.0.0.1")
	require.Equal(t, "203.0.113.9", limiter.clientID(req))
}

func TestClientIDUsesForwardedAddressBehindTrustedProxy(t *testing.T) {
	limiter := NewRateLimiter(RateLimit{
		RequestsPerMinute: 60,
		Burst:             1,
		TrustedProxies:    []string{"10.0.0.0/8", "192.0.2.7", "not-an-address"},
	})

	req := httptest.NewRequest(http.MethodPost, "/rpc", nil)
	req.RemoteAddr = "10.1.2.3:555"
	req.Header.Set("X-Forwarded-For", "198.51.100.2, 10.0.0.1")
	require.Equal(t, "198.51.100.2", limiter.clientID(req))

	req.Header.Set("X-Real-IP", "198.51.100.1")
	require.Equal(t, "198.51.100.1", limiter.clientID(req))

	req.Header.Set("X-Real-IP", "garbage")
	require.Equal(t, "198.51.100.2", limiter.clientID(req))

	req = httptest.NewRequest(http.MethodPost, "/rpc", nil)
	req.RemoteAddr = "192.0.2.7:80"
	req.Header.Set("X-Real-IP", "198.51.100.3")
	require.Equal(t, "198.51.100.3", limiter.clientID(req))

	req.RemoteAddr = "192.0.2.8:80"
	require.Equal(t, "192.0.2.8", limiter.clientID(req))
}

func TestRotatingForwardedHeaderDoesNotBypassLimit(t *testing.T) {
	limiter := NewRateLimiter(RateLimit{RequestsPerMinute: 1, Burst: 2})
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	statuses := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		req := httptest.NewRequest(http.MethodPost, "/rpc", nil)
		req.RemoteAddr = "203.0.113.9:4411"
		req.Header.Set("X-Real-IP", fmt.Sprintf("198.51.100.%d", i+1))
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i+1))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		statuses = append(statuses, rec.Code)
	}
	require.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests, http.StatusTooManyRequests}, statuses)
}
