package clock

import (
	"fmt"
	"time"

	"github.com/beevik/ntp"
)

// DefaultSanityServer is queried by CheckSanity when no server is given.
const DefaultSanityServer = "pool.ntp.org"

// SanityReport is the result of comparing the local clock against an NTP
// server. It is purely informational: this daemon runs unprivileged and
// never calls settimeofday, so a skewed clock is reported, not corrected.
type SanityReport struct {
	Server    string
	Offset    time.Duration // positive: local clock is ahead of the server
	Reasonable bool
}

// CheckSanity queries server (or DefaultSanityServer) and reports how far
// the local clock has drifted. It is a read-only diagnostic: debounce
// intervals and scan timestamps in this daemon only need internal
// consistency (via time.Since), so a skewed wall clock is logged as a
// warning by the caller rather than treated as fatal.
func CheckSanity(server string) (SanityReport, error) {
	if server == "" {
		server = DefaultSanityServer
	}
	resp, err := ntp.Query(server)
	if err != nil {
		return SanityReport{}, fmt.Errorf("clock: ntp query %s: %w", server, err)
	}
	if err := resp.Validate(); err != nil {
		return SanityReport{}, fmt.Errorf("clock: ntp response from %s: %w", server, err)
	}
	return SanityReport{
		Server:     server,
		Offset:     resp.ClockOffset,
		Reasonable: resp.ClockOffset.Abs() < 5*time.Minute && IsReasonableTime(time.Now()),
	}, nil
}
