// Package timespec parses the --since and --until flags shared by the
// inspection commands.
package timespec

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dyluth/romp/pkg/blackboard"
)

// Parse parses a time specification into a Unix timestamp (milliseconds).
// Supports three formats:
//   - Go duration format: "1h", "30m", "1h30m", "2h45m30s"
//   - Whole days: "7d"
//   - RFC3339 timestamps: "2025-10-29T13:00:00Z"
//
// Relative specifications are subtracted from now, so "1h" means "1 hour ago".
func Parse(spec string, now time.Time) (int64, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return 0, fmt.Errorf("empty time specification")
	}

	if t, err := time.Parse(time.RFC3339, spec); err == nil {
		return t.UnixMilli(), nil
	}

	d, err := parseRelative(spec)
	if errors.Is(err, errDaysOutOfRange) {
		return 0, fmt.Errorf("invalid time specification: %s (%w)", spec, err)
	}
	if err == nil {
		if d < 0 {
			return 0, fmt.Errorf("invalid time specification: %s (duration must not be negative)", spec)
		}
		return now.Add(-d).UnixMilli(), nil
	}

	return 0, fmt.Errorf("invalid time specification: %s (use duration like '1h30m', days like '7d' or RFC3339 like '2025-10-29T13:00:00Z')", spec)
}

// maxDays is the largest day count a time.Duration can hold.
const maxDays = int64(math.MaxInt64 / int64(24*time.Hour))

var errDaysOutOfRange = fmt.Errorf("day count out of range (max %d)", maxDays)

func parseRelative(spec string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(spec, "d"); ok {
		n, err := strconv.ParseInt(days, 10, 64)
		if err != nil {
			return 0, err
		}
		if n > maxDays || n < -maxDays {
			return 0, errDaysOutOfRange
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(spec)
}

// ParseRange parses both --since and --until flags into a store time range.
// Empty flags leave that end of the range unbounded.
func ParseRange(since, until string, now time.Time) (blackboard.TimeRange, error) {
	var tr blackboard.TimeRange
	var err error

	if since != "" {
		tr.SinceMs, err = Parse(since, now)
		if err != nil {
			return blackboard.TimeRange{}, fmt.Errorf("invalid --since: %w", err)
		}
	}

	if until != "" {
		tr.UntilMs, err = Parse(until, now)
		if err != nil {
			return blackboard.TimeRange{}, fmt.Errorf("invalid --until: %w", err)
		}
	}

	if tr.SinceMs > 0 && tr.UntilMs > 0 && tr.SinceMs >= tr.UntilMs {
		return blackboard.TimeRange{}, fmt.Errorf("--since must be before --until")
	}

	return tr, nil
}
