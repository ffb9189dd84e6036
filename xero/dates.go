package xero

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Date handles the two timestamp encodings Xero emits: the legacy .NET
// "/Date(1539603600000+0000)/" form and ISO 8601.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	if raw == "" || raw == "null" {
		return nil
	}

	if strings.HasPrefix(raw, "/Date(") {
		parsed, err := parseDotNetDate(raw)
		if err != nil {
			return err
		}
		d.Time = parsed
		return nil
	}

	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			d.Time = parsed.UTC()
			return nil
		}
	}

	return errors.Errorf("unrecognised xero date %q", raw)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`null`), nil
	}
	return []byte(`"` + d.UTC().Format(time.RFC3339) + `"`), nil
}

// parseDotNetDate extracts the epoch-millisecond payload from
// "/Date(1539603600000+0000)/". The trailing offset is informational; the
// milliseconds are already UTC.
func parseDotNetDate(raw string) (time.Time, error) {
	payload := strings.TrimSuffix(strings.TrimPrefix(raw, "/Date("), ")/")
	if payload == "" {
		return time.Time{}, errors.Errorf("unrecognised xero date %q", raw)
	}

	if idx := strings.IndexAny(payload[1:], "+-"); idx >= 0 {
		payload = payload[:idx+1]
	}

	ms, err := strconv.ParseInt(payload, 10, 64)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "parsing xero date %q", raw)
	}

	return time.UnixMilli(ms).UTC(), nil
}
