package model

import "time"

// StartTime interprets an event timestamp as milliseconds since the Unix
// epoch, in UTC.
func StartTime(tsMillis int64) time.Time {
	return time.UnixMilli(tsMillis).UTC()
}

// DecomposeTime derives the time-dimension fields from a start time. Weekday
// is numbered 1 (Sunday) through 7 (Saturday) and week is the ISO week of
// year, matching the source conventions.
func DecomposeTime(t time.Time) TimeRow {
	t = t.UTC()
	_, week := t.ISOWeek()
	return TimeRow{
		StartTime: t,
		Hour:      t.Hour(),
		Day:       t.Day(),
		Week:      week,
		Month:     int(t.Month()),
		Year:      t.Year(),
		Weekday:   int(t.Weekday()) + 1,
	}
}

// TimePartsFromMillis is DecomposeTime applied to a raw epoch-millisecond
// timestamp.
func TimePartsFromMillis(tsMillis int64) TimeRow {
	return DecomposeTime(StartTime(tsMillis))
}
