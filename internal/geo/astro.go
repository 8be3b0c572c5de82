package geo

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
	_ "time/tzdata"

	"github.com/rs/zerolog/log"
	"github.com/sixdouglas/suncalc"
)

// Solar elevation thresholds in degrees.
const (
	AngleBlueHour   = -6.0
	AngleGoldenHour = -4.0
	AngleHorizon    = -0.83
	AngleDay        = 6.0
)

const (
	unixEpochJulianDay = 2440587.5
	j2000JulianDay     = 2451545.0
	j2000Unix          = 946728000 // 2000-01-01 12:00 UTC
	secondsPerDay      = 86400.0
	earthTilt          = 23.44
)

// ErrPolarCondition is returned when the sun never crosses the requested
// elevation on the given day (polar day or night).
var ErrPolarCondition = errors.New("sun does not cross the requested elevation")

// AstroTimes contains the solar events for one day.
type AstroTimes struct {
	MorningBlueHour   time.Time `json:"morning_blue_hour"`
	MorningGoldenHour time.Time `json:"morning_golden_hour"`
	Sunrise           time.Time `json:"sunrise"`
	Day               time.Time `json:"day"`
	Noon              time.Time `json:"noon"`
	EveningGoldenHour time.Time `json:"evening_golden_hour"`
	Sunset            time.Time `json:"sunset"`
	EveningBlueHour   time.Time `json:"evening_blue_hour"`
	Night             time.Time `json:"night"`
}

// Location represents a fixed observer position
type Location struct {
	Name      string
	Latitude  float64
	Longitude float64
	Timezone  string
}

// Calculator calculates astronomical times for a single configured location
type Calculator struct {
	mu    sync.RWMutex
	cache map[string]*AstroTimes // keyed by reference date

	location Location
	tz       *time.Location
}

// NewCalculator creates a calculator for the given location.
func NewCalculator(loc Location) (*Calculator, error) {
	tz, err := time.LoadLocation(loc.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", loc.Timezone, err)
	}

	log.Info().
		Str("name", loc.Name).
		Float64("lat", loc.Latitude).
		Float64("lon", loc.Longitude).
		Str("timezone", tz.String()).
		Msg("Geo calculator initialized")

	return &Calculator{
		cache:    make(map[string]*AstroTimes),
		location: loc,
		tz:       tz,
	}, nil
}

// Location returns the configured location.
func (c *Calculator) Location() Location {
	return c.location
}

// Timezone returns the local timezone used for day boundaries.
func (c *Calculator) Timezone() *time.Location {
	return c.tz
}

// ReferenceFor returns the calculation anchor for the local day containing
// now: that calendar date at 12:01 UTC.
func (c *Calculator) ReferenceFor(now time.Time) time.Time {
	local := now.In(c.tz)
	return time.Date(local.Year(), local.Month(), local.Day(), 12, 1, 0, 0, time.UTC)
}

// StartOfDay returns local midnight of the day containing now.
func (c *Calculator) StartOfDay(now time.Time) time.Time {
	local := now.In(c.tz)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.tz)
}

// Compute returns the morning and evening instants at which the sun crosses
// angle degrees of elevation, using the sunrise equation for the Julian day
// containing ref.
func (c *Calculator) Compute(ref time.Time, angle float64) (morning, evening time.Time, err error) {
	lat := c.location.Latitude
	lon := c.location.Longitude

	// Julian day number, truncated
	jdate := math.Trunc(float64(ref.Unix())/secondsPerDay + unixEpochJulianDay)

	// Days since J2000
	n := jdate - j2000JulianDay + 0.0008

	// Mean solar noon
	jStar := n - lon/360.0

	// Solar mean anomaly
	m := math.Mod(357.5291+0.98560028*jStar, 360.0)
	mRad := deg2rad(m)

	// Equation of center
	eq := 1.9148*math.Sin(mRad) + 0.02*math.Sin(2*mRad) + 0.0003*math.Sin(3*mRad)

	// Ecliptic longitude
	lambda := math.Mod(m+eq+180+102.9372, 360.0)
	lambdaRad := deg2rad(lambda)

	// Solar transit, relative to J2000
	jTransit := jStar + 0.0053*math.Sin(mRad) - 0.0069*math.Sin(2*lambdaRad)

	// Declination of the sun
	dec := math.Asin(math.Sin(lambdaRad) * math.Sin(deg2rad(earthTilt)))

	// Hour angle
	latRad := deg2rad(lat)
	cosOmega := (math.Sin(deg2rad(angle)) - math.Sin(latRad)*math.Sin(dec)) / (math.Cos(latRad) * math.Cos(dec))
	if cosOmega < -1 || cosOmega > 1 || math.IsNaN(cosOmega) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: angle %.2f at lat %.4f on %s",
			ErrPolarCondition, angle, lat, ref.UTC().Format("2006-01-02"))
	}
	omega := rad2deg(math.Acos(cosOmega))

	morning = julianOffsetToTime(jTransit-omega/360.0, c.tz)
	evening = julianOffsetToTime(jTransit+omega/360.0, c.tz)
	return morning, evening, nil
}

func (c *Calculator) morning(ref time.Time, angle float64) (time.Time, error) {
	m, _, err := c.Compute(ref, angle)
	return m, err
}

func (c *Calculator) evening(ref time.Time, angle float64) (time.Time, error) {
	_, e, err := c.Compute(ref, angle)
	return e, err
}

// MorningBlueHour is the morning crossing of -6 degrees.
func (c *Calculator) MorningBlueHour(ref time.Time) (time.Time, error) {
	return c.morning(ref, AngleBlueHour)
}

// MorningGoldenHour is the morning crossing of -4 degrees.
func (c *Calculator) MorningGoldenHour(ref time.Time) (time.Time, error) {
	return c.morning(ref, AngleGoldenHour)
}

// Sunrise is the morning crossing of the refracted horizon.
func (c *Calculator) Sunrise(ref time.Time) (time.Time, error) {
	return c.morning(ref, AngleHorizon)
}

// Day is the morning crossing of +6 degrees, the end of the golden hour.
func (c *Calculator) Day(ref time.Time) (time.Time, error) {
	return c.morning(ref, AngleDay)
}

// Noon is the midpoint between sunrise and sunset.
func (c *Calculator) Noon(ref time.Time) (time.Time, error) {
	rise, set, err := c.Compute(ref, AngleHorizon)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix((rise.Unix()+set.Unix())/2, 0).In(c.tz), nil
}

// EveningGoldenHour is the evening crossing of +6 degrees.
func (c *Calculator) EveningGoldenHour(ref time.Time) (time.Time, error) {
	return c.evening(ref, AngleDay)
}

// Sunset is the evening crossing of the refracted horizon.
func (c *Calculator) Sunset(ref time.Time) (time.Time, error) {
	return c.evening(ref, AngleHorizon)
}

// EveningBlueHour is the evening crossing of -4 degrees.
func (c *Calculator) EveningBlueHour(ref time.Time) (time.Time, error) {
	return c.evening(ref, AngleGoldenHour)
}

// Night is the evening crossing of -6 degrees.
func (c *Calculator) Night(ref time.Time) (time.Time, error) {
	return c.evening(ref, AngleBlueHour)
}

// Times returns all solar events for the reference instant, cached per date.
func (c *Calculator) Times(ref time.Time) (*AstroTimes, error) {
	cacheKey := ref.UTC().Format("2006-01-02")
	c.mu.RLock()
	cached, ok := c.cache[cacheKey]
	c.mu.RUnlock()
	if ok {
		return cached, nil
	}

	times, err := c.calculate(ref)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[cacheKey] = times
	c.mu.Unlock()

	log.Debug().
		Str("date", cacheKey).
		Str("blue", times.MorningBlueHour.Format("15:04:05")).
		Str("sunrise", times.Sunrise.Format("15:04:05")).
		Str("noon", times.Noon.Format("15:04:05")).
		Str("sunset", times.Sunset.Format("15:04:05")).
		Str("night", times.Night.Format("15:04:05")).
		Msg("Astronomical times calculated")

	return times, nil
}

func (c *Calculator) calculate(ref time.Time) (*AstroTimes, error) {
	blueM, blueE, err := c.Compute(ref, AngleBlueHour)
	if err != nil {
		return nil, err
	}
	goldM, goldE, err := c.Compute(ref, AngleGoldenHour)
	if err != nil {
		return nil, err
	}
	rise, set, err := c.Compute(ref, AngleHorizon)
	if err != nil {
		return nil, err
	}
	dayM, dayE, err := c.Compute(ref, AngleDay)
	if err != nil {
		return nil, err
	}

	return &AstroTimes{
		MorningBlueHour:   blueM,
		MorningGoldenHour: goldM,
		Sunrise:           rise,
		Day:               dayM,
		Noon:              time.Unix((rise.Unix()+set.Unix())/2, 0).In(c.tz),
		EveningGoldenHour: dayE,
		Sunset:            set,
		EveningBlueHour:   goldE,
		Night:             blueE,
	}, nil
}

// CheckLocation verifies that every threshold is crossed on both solstices of
// the given year. Polar locations fail here instead of at runtime.
func (c *Calculator) CheckLocation(year int) error {
	solstices := []time.Time{
		time.Date(year, time.June, 21, 12, 1, 0, 0, time.UTC),
		time.Date(year, time.December, 21, 12, 1, 0, 0, time.UTC),
	}
	for _, day := range solstices {
		for _, angle := range []float64{AngleBlueHour, AngleGoldenHour, AngleHorizon, AngleDay} {
			if _, _, err := c.Compute(day, angle); err != nil {
				return err
			}
		}
	}
	return nil
}

// Altitude returns the current geometric sun elevation in degrees.
func (c *Calculator) Altitude(t time.Time) float64 {
	pos := suncalc.GetPosition(t, c.location.Latitude, c.location.Longitude)
	return rad2deg(pos.Altitude)
}

func julianOffsetToTime(j float64, tz *time.Location) time.Time {
	return time.Unix(int64(j*secondsPerDay+j2000Unix), 0).In(tz)
}

func deg2rad(d float64) float64 {
	return d * math.Pi / 180.0
}

func rad2deg(r float64) float64 {
	return r * 180.0 / math.Pi
}
