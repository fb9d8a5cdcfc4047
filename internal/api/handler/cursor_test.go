package handler

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trbui/queryjobs-be/internal/api/storage"
)

func TestJobCursorRoundTrip(t *testing.T) {
	original := &storage.JobCursor{
		CreatedAt: time.Date(2026, 8, 25, 10, 30, 0, 123456789, time.UTC),
		JobID:     "a0b1c2d3-0000-0000-0000-000000000001",
	}

	encoded, err := EncodeJobCursor(original)
	require.NoError(t, err)
	require.NotEmpty(t, encoded)

	decoded, err := DecodeJobCursor(encoded)
	require.NoError(t, err)
	require.NotNil(t, decoded)

	assert.Equal(t, original.JobID, decoded.JobID)
	assert.Equal(t, original.CreatedAt.UnixNano(), decoded.CreatedAt.UnixNano())
}

func TestDecodeJobCursor(t *testing.T) {
	tests := []struct {
		name    string
		cursor  string
		wantNil bool
		wantErr bool
	}{
		{
			name:    "empty cursor means first page",
			cursor:  "",
			wantNil: true,
		},
		{
			name:    "not base64",
			cursor:  "%%%",
			wantErr: true,
		},
		{
			name:    "missing separator",
			cursor:  base64.StdEncoding.EncodeToString([]byte("12345")),
			wantErr: true,
		},
		{
			name:    "non-numeric timestamp",
			cursor:  base64.StdEncoding.EncodeToString([]byte("abc|job-1")),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cursor, err := DecodeJobCursor(tt.cursor)

			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, cursor)
				return
			}

			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, cursor)
			}
		})
	}
}
