package core

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestampJSON(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	ts := NewTimestamp(time.Date(2024, 3, 1, 11, 30, 0, 123456789, loc))

	raw, err := json.Marshal(ts)
	require.NoError(t, err)
	assert.Equal(t, `"2024-03-01T09:30:00.123Z"`, string(raw))

	var back Timestamp
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.True(t, back.Time().Equal(ts.Time()))

	require.NoError(t, json.Unmarshal([]byte(`"2024-03-01T11:30:00+02:00"`), &back))
	assert.Equal(t, "2024-03-01T09:30:00.000Z", back.String())

	assert.Error(t, json.Unmarshal([]byte(`1709285400`), &back))
	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &back))
}

func TestNow(t *testing.T) {
	now := Now()
	assert.False(t, now.IsZero())
	assert.Equal(t, time.UTC, now.Time().Location())
	assert.Zero(t, now.Time().Nanosecond()%int(time.Millisecond))
}
