package wsserver

import (
	"net"
	"sync"

	"golang.org/x/time/rate"
)

// ipLimiter hands out one token-bucket rate.Limiter per remote address,
// grounded on the §6 rate_limit option: a client that opens connections or
// sends handshake requests faster than RateLimit/RateBurst allows gets
// rejected with 429 rather than accepted.
type ipLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newIPLimiter(limit rate.Limit, burst int) *ipLimiter {
	return &ipLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
}

// Allow reports whether a new request from addr may proceed right now.
func (l *ipLimiter) Allow(addr net.Addr) bool {
	host := addrHost(addr)

	l.mu.Lock()
	lim, ok := l.limiters[host]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[host] = lim
	}
	l.mu.Unlock()

	return lim.Allow()
}

func addrHost(addr net.Addr) string {
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
