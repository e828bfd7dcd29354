package service

import (
	"sync"
	"time"

	"github.com/pantrymind/pantrymind-backend/pkg/logger"
)

const day = 24 * time.Hour

// civilDate returns the calendar date of t, in t's own location, as midnight UTC.
func civilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// daysUntil counts calendar days from today to expiry. Zero means it expires
// today, negative means it already expired. Time of day is ignored.
func daysUntil(expiry time.Time, now time.Time, loc *time.Location) int {
	return int(civilDate(expiry).Sub(civilDate(now.In(loc))) / day)
}

// zones resolves kitchen time zone names, falling back to the service zone
// for kitchens without one or with an unknown name.
type zones struct {
	fallback *time.Location
	logger   *logger.Logger
	cache    sync.Map
}

func newZones(fallback *time.Location, log *logger.Logger) *zones {
	if fallback == nil {
		fallback = time.Local
	}
	return &zones{fallback: fallback, logger: log}
}

func (z *zones) location(name string) *time.Location {
	if name == "" {
		return z.fallback
	}
	if loc, ok := z.cache.Load(name); ok {
		return loc.(*time.Location)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		z.logger.Warn().Err(err).Str("timezone", name).Msg("unknown kitchen timezone, using service default")
		loc = z.fallback
	}
	z.cache.Store(name, loc)
	return loc
}
