package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mroshb/trivia_arena/pkg/logger"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, perPlayer, perIP int) (*RateLimiter, *time.Time) {
	t.Helper()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(perPlayer, perIP, time.Minute)
	rl.now = func() time.Time { return now }
	t.Cleanup(rl.Stop)
	return rl, &now
}

func TestRateLimiter_PlayerWindow(t *testing.T) {
	rl, now := newTestLimiter(t, 2, 10)
	alice := PlayerKey{IP: "10.0.0.1", PlayerID: 1}

	require.True(t, rl.CheckPlayerLimit(alice))
	require.True(t, rl.CheckPlayerLimit(alice))
	require.False(t, rl.CheckPlayerLimit(alice))
	require.Equal(t, 0, rl.GetPlayerRemaining(alice))

	// other players have their own budget
	bob := PlayerKey{IP: "10.0.0.1", PlayerID: 2}
	require.True(t, rl.CheckPlayerLimit(bob))
	require.Equal(t, 1, rl.GetPlayerRemaining(bob))

	// the same player id from another client is counted apart
	spoofed := PlayerKey{IP: "10.0.0.9", PlayerID: 1}
	require.Equal(t, 2, rl.GetPlayerRemaining(spoofed))
	require.True(t, rl.CheckPlayerLimit(spoofed))

	*now = now.Add(time.Minute + time.Second)
	require.Equal(t, 2, rl.GetPlayerRemaining(alice))
	require.True(t, rl.CheckPlayerLimit(alice))
}

func TestRateLimiter_IPWindow(t *testing.T) {
	rl, _ := newTestLimiter(t, 2, 3)

	for i := 0; i < 3; i++ {
		require.True(t, rl.CheckIPLimit("10.0.0.1"))
	}
	require.False(t, rl.CheckIPLimit("10.0.0.1"))
	require.True(t, rl.CheckIPLimit("10.0.0.2"))

	rl.Reset()
	require.Equal(t, 3, rl.GetIPRemaining("10.0.0.1"))
}

func TestRateLimiter_SweepDropsExpired(t *testing.T) {
	rl, now := newTestLimiter(t, 1, 1)
	rl.CheckPlayerLimit(PlayerKey{IP: "10.0.0.1", PlayerID: 1})
	rl.CheckIPLimit("10.0.0.1")

	*now = now.Add(2 * time.Minute)
	rl.sweep()

	rl.mu.RLock()
	defer rl.mu.RUnlock()
	require.Empty(t, rl.playerLimits)
	require.Empty(t, rl.ipLimits)
}

func TestRateLimitByIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl, _ := newTestLimiter(t, 1, 2)

	r := gin.New()
	r.Use(RequestLogger(logger.Named("test")), RateLimitByIP(rl))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}

	require.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}
