package model

import (
	"encoding/json"
	"strings"
	"time"
)

// UpstreamTimeLayout is the layout the NFA backend uses for every timestamp.
const UpstreamTimeLayout = "02-01-2006 15:04"

var fallbackLayouts = []string{
	UpstreamTimeLayout,
	"02-01-2006 15:04:05",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
}

// Timestamp decodes the backend's "DD-MM-YYYY HH:MM" strings. Missing or
// unparseable values decode to the zero time.
type Timestamp struct {
	time.Time
}

// ParseTimestamp parses raw using the known upstream layouts.
func ParseTimestamp(raw string) (Timestamp, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Timestamp{}, false
	}
	for _, layout := range fallbackLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return Timestamp{Time: t}, true
		}
	}
	return Timestamp{}, false
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*t = Timestamp{}
		return nil
	}
	parsed, _ := ParseTimestamp(*raw)
	*t = parsed
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(UpstreamTimeLayout))
}

// Later returns the later of a and b.
func Later(a, b Timestamp) Timestamp {
	if b.After(a.Time) {
		return b
	}
	return a
}
