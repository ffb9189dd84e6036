package xero

import (
	"net/http"
	"strconv"
	"time"

	"github.com/hiltonbrown/ledgerbot/connections"
)

// parseRateHeaders lifts Xero's throttle headers into a snapshot. Xero does
// not send a reset timestamp, so one is derived: Retry-After when throttled,
// the top of the next minute when the minute window is spent, the next UTC
// midnight when the daily window is spent.
func parseRateHeaders(header http.Header, now time.Time) connections.RateSnapshot {
	snap := connections.RateSnapshot{
		MinuteRemaining: headerInt(header, "X-MinLimit-Remaining", -1),
		DayRemaining:    headerInt(header, "X-DayLimit-Remaining", -1),
		Problem:         header.Get("X-Rate-Limit-Problem"),
		UpdatedAt:       now,
	}

	// Absent headers mean Xero did not meter this response; report a healthy
	// window rather than zero, which would read as exhausted.
	if snap.MinuteRemaining < 0 && snap.DayRemaining < 0 {
		snap.MinuteRemaining = 1
		snap.DayRemaining = 1
		return snap
	}
	if snap.MinuteRemaining < 0 {
		snap.MinuteRemaining = 1
	}
	if snap.DayRemaining < 0 {
		snap.DayRemaining = 1
	}

	switch {
	case header.Get("Retry-After") != "":
		if secs, err := strconv.Atoi(header.Get("Retry-After")); err == nil && secs > 0 {
			snap.ResetAt = now.Add(time.Duration(secs) * time.Second)
		}
	case snap.DayRemaining == 0 || snap.Problem == "day":
		year, month, day := now.UTC().Date()
		snap.ResetAt = time.Date(year, month, day, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	case snap.MinuteRemaining == 0 || snap.Problem == "minute":
		snap.ResetAt = now.Truncate(time.Minute).Add(time.Minute)
	}

	return snap
}

func headerInt(header http.Header, key string, fallback int) int {
	raw := header.Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
