package identity

import (
	"encoding/base64"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func b64(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

func TestFromQuery_Priority(t *testing.T) {
	d := NewDecoder("secret")

	q := url.Values{
		"name":      {"Ana"},
		"studentId": {"20240001"},
		"n":         {b64("Other")},
		"s":         {b64("99999999")},
		"token":     {d.EncodeToken("11111111")},
	}
	id := d.FromQuery(q)
	require.NotNil(t, id)
	assert.Equal(t, "Ana", id.Name)
	assert.Equal(t, "20240001", id.StudentID)

	q.Del("name")
	q.Del("studentId")
	id = d.FromQuery(q)
	require.NotNil(t, id)
	assert.Equal(t, "Other", id.Name)
	assert.Equal(t, "99999999", id.StudentID)

	q.Del("n")
	q.Del("s")
	id = d.FromQuery(q)
	require.NotNil(t, id)
	assert.Equal(t, "11111111", id.StudentID)
}

func TestFromQuery_InvalidFallsThrough(t *testing.T) {
	d := NewDecoder("secret")

	q := url.Values{
		"studentId": {"12ab"},
		"token":     {d.EncodeToken("123456789012")},
	}
	id := d.FromQuery(q)
	require.NotNil(t, id)
	assert.Equal(t, "123456789012", id.StudentID)
}

func TestFromQuery_Anonymous(t *testing.T) {
	d := NewDecoder("secret")

	assert.Nil(t, d.FromQuery(url.Values{}))
	assert.Nil(t, d.FromQuery(url.Values{"token": {"%%%not-base64"}}))
	assert.Nil(t, d.FromQuery(url.Values{"s": {b64("1234")}}))
	assert.Nil(t, d.FromQuery(url.Values{"token": {d.EncodeToken("1234567")}}), "seven digits is too short")
}

func TestDecodeToken_JSONPayload(t *testing.T) {
	d := NewDecoder("k3y")
	token := d.EncodeToken(`{"name":"Bo","studentId":"202400123","email":"bo@example.edu"}`)

	id, ok := d.DecodeToken(token)
	require.True(t, ok)
	assert.Equal(t, "Bo", id.Name)
	assert.Equal(t, "202400123", id.StudentID)
	assert.Equal(t, "bo@example.edu", id.Email)
}

func TestNormalize_DropsBadEmail(t *testing.T) {
	id, ok := normalize("  Cy ", "", "not-an-email")
	require.True(t, ok)
	assert.Equal(t, "Cy", id.Name)
	assert.Empty(t, id.Email)
}

func TestDeviceFromRequest(t *testing.T) {
	r := httptest.NewRequest("POST", "/v1/sessions", nil)
	r.Header.Set("User-Agent", "Mozilla/5.0")
	r.Header.Set("Accept-Language", "en-US,en;q=0.9")
	r.Header.Set("Sec-CH-UA-Platform", `"Android"`)

	dev := DeviceFromRequest(r, "203.0.113.7", "salt")
	assert.Equal(t, "Mozilla/5.0", dev.UserAgent)
	assert.Equal(t, "en-US", dev.Language)
	assert.Equal(t, "Android", dev.Platform)
	assert.Equal(t, HashIP("203.0.113.7", "salt"), dev.IPHash)
	assert.Len(t, dev.IPHash, 16)
}

func TestDeviceFromRequest_KeepsRunesWhole(t *testing.T) {
	r := httptest.NewRequest("POST", "/v1/sessions", nil)
	r.Header.Set("User-Agent", strings.Repeat("브라우저", 30))

	dev := DeviceFromRequest(r, "", "salt")
	assert.True(t, utf8.ValidString(dev.UserAgent))
	assert.LessOrEqual(t, len(dev.UserAgent), 256)
	assert.Equal(t, 255, len(dev.UserAgent))
	assert.Empty(t, dev.IPHash)
}

func TestNormalize_TruncatesNameOnRuneBoundary(t *testing.T) {
	id, ok := normalize(strings.Repeat("김", 40), "20240001", "")
	require.True(t, ok)
	assert.True(t, utf8.ValidString(id.Name))
	assert.Equal(t, strings.Repeat("김", 33), id.Name)
}

func TestProxies_ClientIP(t *testing.T) {
	proxies, err := NewProxies([]string{"10.0.0.0/8", " 192.168.1.5 ", ""})
	require.NoError(t, err)

	tests := []struct {
		name    string
		proxies *Proxies
		remote  string
		xff     string
		realIP  string
		want    string
	}{
		{"untrusted peer ignores headers", proxies, "198.51.100.9:1234", "203.0.113.7", "203.0.113.8", "198.51.100.9"},
		{"nil trusts nobody", nil, "10.0.0.1:1234", "203.0.113.7", "", "10.0.0.1"},
		{"trusted peer uses forwarded client", proxies, "10.0.0.1:1234", "203.0.113.7", "", "203.0.113.7"},
		{"spoofed leftmost hop is skipped", proxies, "10.0.0.1:1234", "1.2.3.4, 203.0.113.7, 10.0.0.2", "", "203.0.113.7"},
		{"all hops trusted keeps leftmost", proxies, "192.168.1.5:80", "10.0.0.3, 10.0.0.2", "", "10.0.0.3"},
		{"garbage hop falls back to real ip", proxies, "10.0.0.1:1234", "not-an-ip", "203.0.113.9", "203.0.113.9"},
		{"no headers keeps peer", proxies, "10.0.0.1:1234", "", "", "10.0.0.1"},
		{"peer without port", nil, "198.51.100.9", "", "", "198.51.100.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				r.Header.Set("X-Real-IP", tt.realIP)
			}
			assert.Equal(t, tt.want, tt.proxies.ClientIP(r))
		})
	}
}

func TestNewProxies_RejectsInvalidEntry(t *testing.T) {
	_, err := NewProxies([]string{"10.0.0.0/33"})
	assert.Error(t, err)
	_, err = NewProxies([]string{"proxy.internal"})
	assert.Error(t, err)
}
