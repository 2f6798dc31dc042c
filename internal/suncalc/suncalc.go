// Package suncalc computes sun event times for the station location. The
// irradiance dashboard overlays forecasts on the solar day, so dawn, sunrise,
// sunset and dusk are served alongside the readings.
package suncalc

import (
	"fmt"
	"sync"
	"time"

	"github.com/sj14/astral/pkg/astral"
)

// SunEventTimes holds the calculated sun event times in station-local time.
type SunEventTimes struct {
	CivilDawn time.Time
	Sunrise   time.Time
	Sunset    time.Time
	CivilDusk time.Time
}

type cacheEntry struct {
	times SunEventTimes
	date  time.Time
}

// SunCalc calculates and caches sun event times for the station. Events for a
// fixed location and date never change, so the cache has no expiry.
type SunCalc struct {
	cache    map[string]cacheEntry
	lock     sync.RWMutex
	observer astral.Observer
	location *time.Location
}

// New creates a SunCalc for the given station coordinates. Event times are
// reported in loc.
func New(latitude, longitude float64, loc *time.Location) *SunCalc {
	return &SunCalc{
		cache:    make(map[string]cacheEntry),
		observer: astral.Observer{Latitude: latitude, Longitude: longitude},
		location: loc,
	}
}

// GetSunEventTimes returns the sun event times for a given date, using the
// cache when available.
func (sc *SunCalc) GetSunEventTimes(date time.Time) (SunEventTimes, error) {
	dateKey := date.Format("2006-01-02")

	sc.lock.RLock()
	entry, exists := sc.cache[dateKey]
	sc.lock.RUnlock()

	if exists && entry.date.Equal(date) {
		return entry.times, nil
	}

	times, err := sc.calculateSunEventTimes(date)
	if err != nil {
		return SunEventTimes{}, err
	}

	sc.lock.Lock()
	sc.cache[dateKey] = cacheEntry{times: times, date: date}
	sc.lock.Unlock()

	return times, nil
}

func (sc *SunCalc) calculateSunEventTimes(date time.Time) (SunEventTimes, error) {
	civilDawn, err := astral.Dawn(sc.observer, date, astral.DepressionCivil)
	if err != nil {
		return SunEventTimes{}, fmt.Errorf("failed to calculate civil dawn: %w", err)
	}

	sunrise, err := astral.Sunrise(sc.observer, date)
	if err != nil {
		return SunEventTimes{}, fmt.Errorf("failed to calculate sunrise: %w", err)
	}

	sunset, err := astral.Sunset(sc.observer, date)
	if err != nil {
		return SunEventTimes{}, fmt.Errorf("failed to calculate sunset: %w", err)
	}

	civilDusk, err := astral.Dusk(sc.observer, date, astral.DepressionCivil)
	if err != nil {
		return SunEventTimes{}, fmt.Errorf("failed to calculate civil dusk: %w", err)
	}

	return SunEventTimes{
		CivilDawn: civilDawn.In(sc.location),
		Sunrise:   sunrise.In(sc.location),
		Sunset:    sunset.In(sc.location),
		CivilDusk: civilDusk.In(sc.location),
	}, nil
}

// IsDaylight reports whether t falls between sunrise and sunset at the
// station. Forecast consumers use this to flag night-time predictions.
func (sc *SunCalc) IsDaylight(t time.Time) (bool, error) {
	times, err := sc.GetSunEventTimes(t.In(sc.location))
	if err != nil {
		return false, err
	}
	return t.After(times.Sunrise) && t.Before(times.Sunset), nil
}
