package core

import (
	"fmt"
	"time"
)

// ISOMillis is the timestamp layout used on reports and export documents:
// UTC with millisecond precision, e.g. 2024-03-01T09:30:00.000Z
const ISOMillis = "2006-01-02T15:04:05.000Z07:00"

// Timestamp is a UTC instant truncated to milliseconds
type Timestamp time.Time

// NewTimestamp normalizes t to UTC milliseconds
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp(t.UTC().Truncate(time.Millisecond))
}

// Now returns the current timestamp
func Now() Timestamp {
	return NewTimestamp(time.Now())
}

func (t Timestamp) Time() time.Time { return time.Time(t) }
func (t Timestamp) IsZero() bool    { return time.Time(t).IsZero() }
func (t Timestamp) String() string  { return t.Time().UTC().Format(ISOMillis) }

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// UnmarshalJSON accepts ISOMillis and any RFC 3339 timestamp
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("timestamp must be a JSON string, got %s", data)
	}
	tm, err := time.Parse(time.RFC3339Nano, string(data[1:len(data)-1]))
	if err != nil {
		return fmt.Errorf("parse timestamp: %w", err)
	}
	*t = NewTimestamp(tm)
	return nil
}
