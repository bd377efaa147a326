package timespec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 10, 29, 14, 0, 0, 0, time.UTC)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		spec string
		want time.Time
	}{
		{"duration", "1h", now.Add(-time.Hour)},
		{"compound duration", "1h30m", now.Add(-90 * time.Minute)},
		{"days", "7d", now.Add(-7 * 24 * time.Hour)},
		{"rfc3339", "2025-10-29T13:00:00Z", time.Date(2025, 10, 29, 13, 0, 0, 0, time.UTC)},
		{"surrounding whitespace", " 30m ", now.Add(-30 * time.Minute)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.spec, now)
			require.NoError(t, err)
			assert.Equal(t, tt.want.UnixMilli(), got)
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, spec := range []string{"", "yesterday", "xd", "-1h", "2025-10-29"} {
		t.Run(spec, func(t *testing.T) {
			_, err := Parse(spec, now)
			assert.Error(t, err)
		})
	}
}

func TestParse_DaysOutOfRange(t *testing.T) {
	_, err := Parse("999999999d", now)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")

	got, err := Parse("106751d", now)
	require.NoError(t, err)
	assert.Less(t, got, now.UnixMilli())
}

func TestParseRange(t *testing.T) {
	t.Run("both bounds", func(t *testing.T) {
		tr, err := ParseRange("2h", "1h", now)
		require.NoError(t, err)
		assert.Equal(t, now.Add(-2*time.Hour).UnixMilli(), tr.SinceMs)
		assert.Equal(t, now.Add(-time.Hour).UnixMilli(), tr.UntilMs)
	})

	t.Run("unbounded", func(t *testing.T) {
		tr, err := ParseRange("", "", now)
		require.NoError(t, err)
		assert.Zero(t, tr.SinceMs)
		assert.Zero(t, tr.UntilMs)
	})

	t.Run("since after until", func(t *testing.T) {
		_, err := ParseRange("1h", "2h", now)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--since must be before --until")
	})

	t.Run("names the bad flag", func(t *testing.T) {
		_, err := ParseRange("soon", "", now)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid --since")
	})
}
