package risk

import (
	"time"
)

const (
	daysPerWeek          = 7
	offsetDaysForNewYear = 1
	newYearDay           = 1
	thirdMondayOffset    = 2
	fourthThursdayOffset = 3
)

// MarketClock answers whether the US equity market is open at a given
// instant: weekdays 09:30-16:00 Eastern, excluding NYSE holidays. The
// orchestrator consults it before entering the fetch stage.
type MarketClock struct {
	// AlwaysOpen disables the gate, for crypto watchlists and tests.
	AlwaysOpen bool
}

func (c MarketClock) IsOpen(now time.Time) bool {
	if c.AlwaysOpen {
		return true
	}

	et := easternTime(now)

	switch et.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	if isHoliday(et) {
		return false
	}

	minutes := et.Hour()*60 + et.Minute()
	return minutes >= 9*60+30 && minutes < 16*60
}

func easternTime(t time.Time) time.Time {
	nyLocation, err := time.LoadLocation("America/New_York")
	if err != nil {
		return t.UTC()
	}
	return t.In(nyLocation)
}

func isHoliday(t time.Time) bool {
	year := t.Year()

	// New Year's Day, observed Monday when it falls on a Sunday
	newYearsDay := time.Date(year, time.January, newYearDay, 0, 0, 0, 0, time.UTC)
	if newYearsDay.Weekday() == time.Sunday {
		newYearsDay = newYearsDay.AddDate(0, 0, offsetDaysForNewYear)
	}

	// Martin Luther King Jr. Day and Presidents' Day
	mlkDay := calculateSpecificMonday(year, time.January, thirdMondayOffset)
	presidentsDay := calculateSpecificMonday(year, time.February, thirdMondayOffset)

	// Memorial Day
	memorialDay := time.Date(year, time.May, 31, 0, 0, 0, 0, time.UTC)
	for memorialDay.Weekday() != time.Monday {
		memorialDay = memorialDay.AddDate(0, 0, -1)
	}

	// Independence Day
	independenceDay := time.Date(year, time.July, 4, 0, 0, 0, 0, time.UTC)
	if independenceDay.Weekday() == time.Sunday {
		independenceDay = independenceDay.AddDate(0, 0, offsetDaysForNewYear)
	}

	// Labor Day
	laborDay := calculateSpecificMonday(year, time.September, 0)

	// Thanksgiving Day
	thanksgivingDay := calculateSpecificThursday(year, time.November, fourthThursdayOffset)

	// Christmas Day
	christmasDay := time.Date(year, time.December, 25, 0, 0, 0, 0, time.UTC)
	if christmasDay.Weekday() == time.Sunday {
		christmasDay = christmasDay.AddDate(0, 0, offsetDaysForNewYear)
	}

	holidays := []time.Time{
		newYearsDay,
		mlkDay,
		presidentsDay,
		memorialDay,
		independenceDay,
		laborDay,
		thanksgivingDay,
		christmasDay,
	}
	return isDateAmong(t, holidays)
}

// calculateSpecificMonday calculates the specific Monday of a month (like the third Monday).
func calculateSpecificMonday(year int, month time.Month, mondayOffset int) time.Time {
	firstOfMonth := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := int(time.Monday-firstOfMonth.Weekday()+daysPerWeek) % daysPerWeek
	return firstOfMonth.AddDate(0, 0, offset+mondayOffset*daysPerWeek)
}

// calculateSpecificThursday calculates the specific Thursday of a month (like the fourth Thursday).
func calculateSpecificThursday(year int, month time.Month, thursdayOffset int) time.Time {
	firstOfMonth := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := int(time.Thursday-firstOfMonth.Weekday()+daysPerWeek) % daysPerWeek
	return firstOfMonth.AddDate(0, 0, offset+thursdayOffset*daysPerWeek)
}

// isDateAmong checks if the given date matches any date in the list.
func isDateAmong(t time.Time, dates []time.Time) bool {
	for _, d := range dates {
		if t.Format("2006-01-02") == d.Format("2006-01-02") {
			return true
		}
	}
	return false
}
