package timeutil

import (
	"time"
)

const day = 24 * time.Hour

// AlignMinute truncates a timestamp to the containing minute in UTC.
func AlignMinute(t time.Time) time.Time {
	return t.UTC().Truncate(time.Minute)
}

// DayStart 返回时间戳所在“本地日”的零点（UTC 表示）。
// 本地日由固定的 UTC 偏移量定义，例如北京时间为 +8h。
func DayStart(t time.Time, offset time.Duration) time.Time {
	return t.UTC().Add(offset).Truncate(day).Add(-offset)
}

// PrevDayStart returns local midnight of the day before the one containing t.
func PrevDayStart(t time.Time, offset time.Duration) time.Time {
	return DayStart(t, offset).Add(-day)
}

// LocalDate formats the local calendar date of t as YYYY-MM-DD, for use as
// an idempotency marker value.
func LocalDate(t time.Time, offset time.Duration) string {
	return t.UTC().Add(offset).Format("2006-01-02")
}

// FormatLocal renders t as a human-readable local timestamp.
func FormatLocal(t time.Time, offset time.Duration) string {
	return t.UTC().Add(offset).Format("2006-01-02 15:04:05")
}

// InDailyWindow reports whether t falls inside the five-minute execution
// window starting at the given local hour.
func InDailyWindow(t time.Time, offset time.Duration, hour int) bool {
	local := t.UTC().Add(offset)
	return local.Hour() == hour && local.Minute() < 5
}
