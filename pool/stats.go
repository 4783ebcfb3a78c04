package pool

import (
	"fmt"
	"strings"
	"time"
)

type state struct {
	requests                         int64
	accumulatedRequestTime           time.Duration
	accumulatedCheckoutTime          time.Duration
	claimedOverdue                   int64
	accumulatedCheckoutTimeOfOverdue time.Duration
	accumulatedWaitTime              time.Duration
	hadToWait                        int64
	badConnections                   int64
}

// Stats is a snapshot of pool usage.
type Stats struct {
	Active                     int           `json:"active"`
	Idle                       int           `json:"idle"`
	RequestCount               int64         `json:"request_count"`
	AverageRequestTime         time.Duration `json:"average_request_time"`
	AverageCheckoutTime        time.Duration `json:"average_checkout_time"`
	ClaimedOverdueCount        int64         `json:"claimed_overdue_count"`
	AverageOverdueCheckoutTime time.Duration `json:"average_overdue_checkout_time"`
	HadToWaitCount             int64         `json:"had_to_wait_count"`
	AverageWaitTime            time.Duration `json:"average_wait_time"`
	BadConnectionCount         int64         `json:"bad_connection_count"`
}

// Stats returns current usage statistics.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.state
	return Stats{
		Active:                     len(p.active),
		Idle:                       len(p.idle),
		RequestCount:               s.requests,
		AverageRequestTime:         avg(s.accumulatedRequestTime, s.requests),
		AverageCheckoutTime:        avg(s.accumulatedCheckoutTime, s.requests),
		ClaimedOverdueCount:        s.claimedOverdue,
		AverageOverdueCheckoutTime: avg(s.accumulatedCheckoutTimeOfOverdue, s.claimedOverdue),
		HadToWaitCount:             s.hadToWait,
		AverageWaitTime:            avg(s.accumulatedWaitTime, s.hadToWait),
		BadConnectionCount:         s.badConnections,
	}
}

func avg(total time.Duration, n int64) time.Duration {
	if n == 0 {
		return 0
	}
	return total / time.Duration(n)
}

func (p *Pool) String() string {
	cfg := p.Config()
	s := p.Stats()
	var b strings.Builder
	fmt.Fprintf(&b, "pool url=%q user=%q\n", cfg.URL, cfg.Username)
	fmt.Fprintf(&b, "  max_active=%d max_idle=%d max_checkout_time=%s time_to_wait=%s\n",
		cfg.MaxActive, cfg.MaxIdle, cfg.MaxCheckoutTime, cfg.TimeToWait)
	fmt.Fprintf(&b, "  ping_enabled=%t ping_query=%q ping_not_used_for=%s\n",
		cfg.PingEnabled, cfg.PingQuery, cfg.PingNotUsedFor)
	fmt.Fprintf(&b, "  active=%d idle=%d requests=%d avg_request=%s avg_checkout=%s\n",
		s.Active, s.Idle, s.RequestCount, s.AverageRequestTime, s.AverageCheckoutTime)
	fmt.Fprintf(&b, "  overdue=%d avg_overdue_checkout=%s waits=%d avg_wait=%s bad=%d",
		s.ClaimedOverdueCount, s.AverageOverdueCheckoutTime, s.HadToWaitCount, s.AverageWaitTime, s.BadConnectionCount)
	return b.String()
}
