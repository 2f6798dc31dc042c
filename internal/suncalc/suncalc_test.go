package suncalc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helsinki area, matches a mid-latitude station with clear seasonal swing.
const (
	testLat = 60.17
	testLon = 24.94
)

func TestGetSunEventTimesOrdering(t *testing.T) {
	loc := time.FixedZone("station", 3*3600)
	sc := New(testLat, testLon, loc)

	date := time.Date(2025, 6, 21, 0, 0, 0, 0, loc)
	times, err := sc.GetSunEventTimes(date)
	require.NoError(t, err)

	assert.True(t, times.CivilDawn.Before(times.Sunrise), "dawn precedes sunrise")
	assert.True(t, times.Sunrise.Before(times.Sunset), "sunrise precedes sunset")
	assert.True(t, times.Sunset.Before(times.CivilDusk), "sunset precedes dusk")

	for _, ts := range []time.Time{times.CivilDawn, times.Sunrise, times.Sunset, times.CivilDusk} {
		assert.Equal(t, loc, ts.Location(), "events reported in station time")
	}
}

func TestGetSunEventTimesCached(t *testing.T) {
	loc := time.UTC
	sc := New(testLat, testLon, loc)

	date := time.Date(2025, 3, 1, 0, 0, 0, 0, loc)
	first, err := sc.GetSunEventTimes(date)
	require.NoError(t, err)

	second, err := sc.GetSunEventTimes(date)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	sc.lock.RLock()
	defer sc.lock.RUnlock()
	assert.Len(t, sc.cache, 1)
}

func TestIsDaylight(t *testing.T) {
	loc := time.UTC
	sc := New(testLat, testLon, loc)

	noon := time.Date(2025, 6, 21, 10, 0, 0, 0, time.UTC)
	day, err := sc.IsDaylight(noon)
	require.NoError(t, err)
	assert.True(t, day)

	midnight := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	night, err := sc.IsDaylight(midnight)
	require.NoError(t, err)
	assert.False(t, night)
}
