package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"unicode/utf8"

	"majorcompass/internal/model"
)

// DeviceFromRequest captures fingerprint metadata. The client IP is stored only as a salted hash.
func DeviceFromRequest(r *http.Request, clientIP, salt string) model.DeviceInfo {
	lang := r.Header.Get("Accept-Language")
	if i := strings.IndexByte(lang, ','); i >= 0 {
		lang = lang[:i]
	}
	return model.DeviceInfo{
		UserAgent: truncate(r.UserAgent(), 256),
		Language:  truncate(lang, 35),
		Platform:  truncate(strings.Trim(r.Header.Get("Sec-CH-UA-Platform"), `"`), 32),
		IPHash:    HashIP(clientIP, salt),
	}
}

// Proxies resolves client addresses behind trusted reverse proxies.
// A nil *Proxies trusts nobody and always reports the peer address.
type Proxies struct {
	trusted []netip.Prefix
}

// NewProxies parses trusted proxies given as single addresses or CIDR ranges
func NewProxies(entries []string) (*Proxies, error) {
	p := &Proxies{}
	for _, raw := range entries {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.Contains(raw, "/") {
			prefix, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid trusted proxy %q: %w", raw, err)
			}
			p.trusted = append(p.trusted, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", raw, err)
		}
		addr = addr.Unmap()
		p.trusted = append(p.trusted, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return p, nil
}

func (p *Proxies) isTrusted(addr netip.Addr) bool {
	if p == nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range p.trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// ClientIP returns the peer address. Forwarding headers are honoured only when
// the peer is a trusted proxy: X-Forwarded-For is walked right to left and the
// first untrusted hop wins, then X-Real-IP is tried.
func (p *Proxies) ClientIP(r *http.Request) string {
	remote := remoteHost(r)
	peer, err := netip.ParseAddr(remote)
	if err != nil || !p.isTrusted(peer) {
		return remote
	}

	if fwd := strings.Join(r.Header.Values("X-Forwarded-For"), ","); fwd != "" {
		hops := strings.Split(fwd, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
			if err != nil {
				break
			}
			if i == 0 || !p.isTrusted(hop) {
				return hop.Unmap().String()
			}
		}
	}
	if rip, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return rip.Unmap().String()
	}
	return remote
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// HashIP returns a short salted hash of ip, or "" for an empty ip
func HashIP(ip, salt string) string {
	if ip == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(salt + ip))
	return hex.EncodeToString(sum[:8])
}

// truncate cuts s to at most n bytes without splitting a rune
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
