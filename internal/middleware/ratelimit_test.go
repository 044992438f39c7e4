package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveFrom(h http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/graphql", nil)
	req.RemoteAddr = remoteAddr
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRateLimitMiddleware_Disabled(t *testing.T) {
	handler := RateLimitMiddleware(RateLimitConfig{RPS: 1, Burst: 1})(okHandler())

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, serveFrom(handler, "192.0.2.1:1234").Code)
	}
}

func TestRateLimitMiddleware_GlobalBurst(t *testing.T) {
	handler := RateLimitMiddleware(RateLimitConfig{
		Enabled: true,
		RPS:     1,
		Burst:   2,
	})(okHandler())

	assert.Equal(t, http.StatusOK, serveFrom(handler, "192.0.2.1:1000").Code)
	assert.Equal(t, http.StatusOK, serveFrom(handler, "192.0.2.2:1000").Code)

	rr := serveFrom(handler, "192.0.2.3:1000")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Equal(t, "1", rr.Header().Get("Retry-After"))

	var body graphQLErrorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Errors, 1)
	assert.Equal(t, "rate limit exceeded", body.Errors[0].Message)
	assert.Equal(t, "rate_limit", body.Errors[0].Extensions["code"])
}

func TestRateLimitMiddleware_PerClient(t *testing.T) {
	handler := RateLimitMiddleware(RateLimitConfig{
		ClientRPS:    0.5,
		ClientBurst:  1,
		ClientExpiry: time.Minute,
	})(okHandler())

	assert.Equal(t, http.StatusOK, serveFrom(handler, "198.51.100.7:4000").Code)

	rr := serveFrom(handler, "198.51.100.7:4001")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code, "same host on a new port shares the bucket")
	assert.Equal(t, "2", rr.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, serveFrom(handler, "198.51.100.8:4000").Code)
}

func TestTokenBucketRefills(t *testing.T) {
	bucket := newTokenBucket(100, 1)
	require.True(t, bucket.allow())
	require.False(t, bucket.allow())

	assert.Eventually(t, bucket.allow, time.Second, 5*time.Millisecond)
}

func TestSecondsPerToken(t *testing.T) {
	assert.Equal(t, 1, secondsPerToken(10))
	assert.Equal(t, 1, secondsPerToken(1))
	assert.Equal(t, 4, secondsPerToken(0.3))
	assert.Equal(t, 1, secondsPerToken(0))
}
