package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"majorcompass/internal/config"
	"majorcompass/internal/identity"
	"majorcompass/internal/service"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte(GetAdminID(r.Context())))
})

func TestRateLimiter_PerIP(t *testing.T) {
	l := NewRateLimiter(1, 2, nil)
	h := l.Limit(okHandler)

	call := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":5000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call("10.0.0.1"))
	assert.Equal(t, http.StatusOK, call("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1"))
	assert.Equal(t, http.StatusOK, call("10.0.0.2"), "limits are per client")
}

func TestRateLimiter_IgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	l := NewRateLimiter(1, 1, nil)
	h := l.Limit(okHandler)

	allowed := 0
	for i := 0; i < 50; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "198.51.100.20:4711"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i))
		req.Header.Set("X-Real-IP", fmt.Sprintf("192.0.2.%d", i))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code == http.StatusOK {
			allowed++
		}
	}
	assert.Equal(t, 1, allowed, "rotating headers must not mint new buckets")
}

func TestRateLimiter_TrustedProxyForwardsClient(t *testing.T) {
	proxies, err := identity.NewProxies([]string{"10.0.0.0/8"})
	require.NoError(t, err)
	l := NewRateLimiter(1, 1, proxies)
	h := l.Limit(okHandler)

	call := func(client string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.1.2.3:443"
		req.Header.Set("X-Forwarded-For", client)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call("203.0.113.1"))
	assert.Equal(t, http.StatusTooManyRequests, call("203.0.113.1"))
	assert.Equal(t, http.StatusOK, call("203.0.113.2"), "each forwarded client has its own bucket")
	assert.Equal(t, http.StatusTooManyRequests, call("203.0.113.2, 10.9.9.9"), "trusted hops are skipped")
}

func TestRateLimiter_Cleanup(t *testing.T) {
	l := NewRateLimiter(10, 1, nil)
	require.True(t, l.allow("10.0.0.9"))

	l.cleanup(time.Now())
	assert.Len(t, l.visitors, 1)

	l.cleanup(time.Now().Add(4 * time.Minute))
	assert.Empty(t, l.visitors)
}

func TestRequireAdmin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	require.NoError(t, err)
	auth := service.NewAuthService(config.AuthConfig{
		JWTSecret:         "mw-secret",
		TokenTTL:          time.Hour,
		AdminUsername:     "admin",
		AdminPasswordHash: string(hash),
	})
	resp, err := auth.Login("admin", "pw")
	require.NoError(t, err)

	h := NewAuthMiddleware(auth).RequireAdmin(okHandler)

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + resp.Token, http.StatusUnauthorized},
		{"bad token", "Bearer abc", http.StatusUnauthorized},
		{"valid", "Bearer " + resp.Token, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/admin/results", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
			if tc.status == http.StatusOK {
				assert.Equal(t, resp.AdminID, rec.Body.String())
			}
		})
	}
}
