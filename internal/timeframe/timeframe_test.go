package timeframe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voltwatch/backend/internal/utils"
)

func newTestResolver(t *testing.T, now time.Time) *Resolver {
	names := make([]string, 0, len(Known))
	for _, f := range Known {
		names = append(names, string(f))
	}
	r, err := NewResolver(names)
	require.NoError(t, err)
	return r.WithClock(func() time.Time { return now })
}

func boolPtr(b bool) *bool { return &b }

func TestNewResolver_RejectsUnknownFrame(t *testing.T) {
	_, err := NewResolver([]string{"today", "yesterday"})
	assert.ErrorIs(t, err, utils.ErrValidation)
}

func TestResolve_EveryFrameIsOrdered(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 30, 0, 0, time.UTC)
	r := newTestResolver(t, now)

	start := now.Add(-2 * time.Hour)
	end := now.Add(-time.Hour)

	for _, f := range Known {
		t.Run(string(f), func(t *testing.T) {
			windows, err := r.Resolve(Request{Frame: f, StartDate: &start, EndDate: &end})
			require.NoError(t, err)

			w, ok := windows[f]
			require.True(t, ok)
			assert.False(t, w.StartDate.After(w.EndDate))
		})
	}
}

func TestResolve_ReturnsFullSet(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 30, 0, 0, time.UTC)
	r := newTestResolver(t, now)

	windows, err := r.Resolve(Request{Frame: Today})
	require.NoError(t, err)

	assert.Contains(t, windows, Today)
	assert.Contains(t, windows, TodayLive)
	assert.Contains(t, windows, Last7Days)
	assert.Contains(t, windows, Last30Days)
	// no bounds supplied
	assert.NotContains(t, windows, Custom)
	assert.NotContains(t, windows, TodayPartly)
}

func TestResolve_TodayIsTheUTCDay(t *testing.T) {
	// 01:30 on the 16th in UTC+14 is still the 15th in UTC
	zone := time.FixedZone("UTC+14", 14*3600)
	now := time.Date(2024, 3, 16, 1, 30, 0, 0, zone)
	r := newTestResolver(t, now)

	windows, err := r.Resolve(Request{Frame: Today})
	require.NoError(t, err)

	w := windows[Today]
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), w.StartDate)
	assert.Equal(t, time.Date(2024, 3, 15, 23, 59, 59, int(999*time.Millisecond), time.UTC), w.EndDate)
	assert.Equal(t, time.UTC, w.StartDate.Location())
}

func TestResolve_RollingFrames(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 30, 0, 0, time.UTC)
	r := newTestResolver(t, now)

	windows, err := r.Resolve(Request{})
	require.NoError(t, err)

	assert.Equal(t, now.Add(-5*time.Minute), windows[TodayLive].StartDate)
	assert.Equal(t, now, windows[TodayLive].EndDate)

	assert.Equal(t, time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC), windows[Last7Days].StartDate)
	assert.Equal(t, time.Date(2024, 2, 14, 0, 0, 0, 0, time.UTC), windows[Last30Days].StartDate)
	assert.Equal(t, EndOfDay(now), windows[Last30Days].EndDate)
}

func TestResolve_Custom(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 30, 0, 0, time.UTC)
	r := newTestResolver(t, now)

	start := time.Date(2024, 3, 1, 10, 15, 0, 0, time.UTC)
	end := time.Date(2024, 3, 3, 8, 0, 0, 0, time.UTC)

	t.Run("Should snap to whole days by default", func(t *testing.T) {
		w, err := r.Window(Request{Frame: Custom, StartDate: &start, EndDate: &end})
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), w.StartDate)
		assert.Equal(t, EndOfDay(end), w.EndDate)
	})

	t.Run("Should keep exact bounds when wholeDay is false", func(t *testing.T) {
		w, err := r.Window(Request{Frame: Custom, StartDate: &start, EndDate: &end, WholeDay: boolPtr(false)})
		require.NoError(t, err)
		assert.Equal(t, start, w.StartDate)
		assert.Equal(t, end, w.EndDate)
	})

	t.Run("Should reject missing bounds", func(t *testing.T) {
		_, err := r.Window(Request{Frame: Custom, StartDate: &start})
		assert.ErrorIs(t, err, utils.ErrValidation)
	})

	t.Run("Should reject inverted bounds", func(t *testing.T) {
		_, err := r.Window(Request{Frame: Custom, StartDate: &end, EndDate: &start, WholeDay: boolPtr(false)})
		assert.ErrorIs(t, err, utils.ErrValidation)
	})

	t.Run("Should reject inverted bounds on the same day when snapping", func(t *testing.T) {
		from := time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC)
		to := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

		_, err := r.Window(Request{Frame: Custom, StartDate: &from, EndDate: &to})
		assert.ErrorIs(t, err, utils.ErrValidation)

		_, err = r.Window(Request{Frame: Custom, StartDate: &from, EndDate: &to, WholeDay: boolPtr(true)})
		assert.ErrorIs(t, err, utils.ErrValidation)
	})
}

func TestResolve_TodayPartlyIsVerbatim(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 30, 0, 0, time.UTC)
	r := newTestResolver(t, now)

	start := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

	w, err := r.Window(Request{Frame: TodayPartly, StartDate: &start, EndDate: &end})
	require.NoError(t, err)
	assert.Equal(t, start, w.StartDate)
	assert.Equal(t, end, w.EndDate)
}

func TestResolve_UnrecognisedFrame(t *testing.T) {
	r, err := NewResolver([]string{"today"})
	require.NoError(t, err)

	_, err = r.Resolve(Request{Frame: Last7Days})
	assert.ErrorIs(t, err, utils.ErrValidation)

	_, err = r.Resolve(Request{Frame: "lastYear"})
	assert.ErrorIs(t, err, utils.ErrValidation)

	_, err = r.Window(Request{})
	assert.ErrorIs(t, err, utils.ErrValidation)
}
