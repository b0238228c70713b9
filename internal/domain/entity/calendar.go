package entity

import "time"

// DayClass is the classification of a calendar date.
type DayClass string

const (
	DayWorkday      DayClass = "workday"
	DayWeekend      DayClass = "weekend"
	DayHoliday      DayClass = "holiday"
	DayCompensatory DayClass = "compensatory" // weekend reclassified as a workday
)

// DaySource records how a calendar entry came into existence.
type DaySource string

const (
	SourceManual    DaySource = "manual"
	SourceGenerated DaySource = "generated"
	SourceSynced    DaySource = "synced"
)

// CalendarDay is one persisted (or derived) classification for a single date.
// At most one entry exists per date; entries are never updated in place,
// an update is a delete followed by a recreate.
type CalendarDay struct {
	ID             int64     `json:"id"`
	Date           time.Time `json:"date"`
	Classification DayClass  `json:"classification"`
	Label          string    `json:"label"`
	Source         DaySource `json:"source"`
	Year           int       `json:"year"`
	CreatedBy      string    `json:"createdBy"`
	CreatedAt      time.Time `json:"createdAt"`
}

// CountsAsWorkday reports whether the day expects a time report.
// Compensatory days are nominal weekends worked to offset a holiday block,
// so they count.
func (d *CalendarDay) CountsAsWorkday() bool {
	return d.Classification == DayWorkday || d.Classification == DayCompensatory
}

// WorkdayStats is the result of walking a date range through the calendar.
type WorkdayStats struct {
	TotalDays    int         `json:"totalDays"`
	Workdays     int         `json:"workdays"`
	WeekendDays  int         `json:"weekendDays"`
	HolidayDays  int         `json:"holidayDays"`
	WorkdayDates []time.Time `json:"workdayDates"`
}
