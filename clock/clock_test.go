package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faffhub/faff-go/ledgererr"
	"github.com/faffhub/faff-go/model"
)

func fixedClock(t *testing.T, tz string, now time.Time) *Clock {
	c, err := New(tz)
	require.NoError(t, err)
	c.nowFunc = func() time.Time { return now }
	return c
}

func TestNewRejectsUnknownTimezone(t *testing.T) {
	_, err := New("Not/AZone")
	require.Error(t, err)
	assert.True(t, ledgererr.Is(err, ledgererr.DateParse))
}

func TestTodayAndNow(t *testing.T) {
	loc, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)
	now := time.Date(2026, time.March, 2, 23, 30, 0, 0, loc)
	c := fixedClock(t, "America/Chicago", now)

	assert.Equal(t, now, c.Now())
	assert.Equal(t, model.Date{Year: 2026, Month: time.March, Day: 2}, c.Today())
}

func TestParseNaturalDateTokens(t *testing.T) {
	loc, _ := time.LoadLocation("UTC")
	now := time.Date(2026, time.March, 4, 12, 0, 0, 0, loc) // a Wednesday
	c := fixedClock(t, "UTC", now)

	d, err := c.ParseNaturalDate("today")
	require.NoError(t, err)
	assert.Equal(t, c.Today(), d)

	d, err = c.ParseNaturalDate("yesterday")
	require.NoError(t, err)
	assert.Equal(t, model.Date{Year: 2026, Month: time.March, Day: 3}, d)

	d, err = c.ParseNaturalDate("tomorrow")
	require.NoError(t, err)
	assert.Equal(t, model.Date{Year: 2026, Month: time.March, Day: 5}, d)

	d, err = c.ParseNaturalDate("2026-01-15")
	require.NoError(t, err)
	assert.Equal(t, model.Date{Year: 2026, Month: time.January, Day: 15}, d)

	d, err = c.ParseNaturalDate("monday")
	require.NoError(t, err)
	assert.Equal(t, model.Date{Year: 2026, Month: time.March, Day: 2}, d)
}

func TestParseNaturalDateTimeRejectsFuture(t *testing.T) {
	loc, _ := time.LoadLocation("UTC")
	now := time.Date(2026, time.March, 2, 9, 0, 0, 0, loc)
	c := fixedClock(t, "UTC", now)

	_, err := c.ParseNaturalDateTime("10:00")
	require.Error(t, err)
	assert.True(t, ledgererr.Is(err, ledgererr.FutureStart))

	got, err := c.ParseNaturalDateTime("08:30")
	require.NoError(t, err)
	assert.Equal(t, 8, got.Hour())
	assert.Equal(t, 30, got.Minute())
}

func TestParseNaturalDateTimeDefaultsToNow(t *testing.T) {
	loc, _ := time.LoadLocation("UTC")
	now := time.Date(2026, time.March, 2, 9, 0, 0, 0, loc)
	c := fixedClock(t, "UTC", now)

	got, err := c.ParseNaturalDateTime("")
	require.NoError(t, err)
	assert.Equal(t, now, got)
}
