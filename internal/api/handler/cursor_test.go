package handler

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursor_RoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 30, 0, 123456789, time.UTC)

	cursor, err := DecodeCursor(EncodeCursor(at, "job-1"))
	require.NoError(t, err)
	require.NotNil(t, cursor)
	assert.True(t, at.Equal(cursor.CreatedAt))
	assert.Equal(t, "job-1", cursor.ID)
}

func TestDecodeCursor_Invalid(t *testing.T) {
	cursor, err := DecodeCursor("")
	assert.NoError(t, err)
	assert.Nil(t, cursor)

	tests := map[string]string{
		"not base64":   "%%%",
		"no separator": base64.URLEncoding.EncodeToString([]byte("12345")),
		"bad time":     base64.URLEncoding.EncodeToString([]byte("abc|job-1")),
		"missing id":   base64.URLEncoding.EncodeToString([]byte("12345|")),
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeCursor(raw)
			assert.Error(t, err)
		})
	}
}
