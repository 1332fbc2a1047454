package timeutil

import (
	"testing"
	"time"
)

const cst = 8 * time.Hour

func TestAlignMinute(t *testing.T) {
	in := time.Date(2024, 3, 5, 10, 42, 37, 123456, time.UTC)
	got := AlignMinute(in)
	want := time.Date(2024, 3, 5, 10, 42, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("AlignMinute = %s, want %s", got, want)
	}
}

func TestDayStartBeijing(t *testing.T) {
	// 2024-03-05 01:30 UTC = 北京时间 09:30，当日零点为 UTC 前一日 16:00
	in := time.Date(2024, 3, 5, 1, 30, 0, 0, time.UTC)
	got := DayStart(in, cst)
	want := time.Date(2024, 3, 4, 16, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("DayStart = %s, want %s", got, want)
	}

	// 2024-03-05 20:00 UTC 已是北京时间 3 月 6 日
	in = time.Date(2024, 3, 5, 20, 0, 0, 0, time.UTC)
	got = DayStart(in, cst)
	want = time.Date(2024, 3, 5, 16, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("DayStart across boundary = %s, want %s", got, want)
	}
}

func TestPrevDayStart(t *testing.T) {
	in := time.Date(2024, 3, 5, 1, 30, 0, 0, time.UTC)
	got := PrevDayStart(in, cst)
	want := time.Date(2024, 3, 3, 16, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("PrevDayStart = %s, want %s", got, want)
	}
}

func TestLocalDate(t *testing.T) {
	in := time.Date(2024, 3, 5, 20, 0, 0, 0, time.UTC)
	if got := LocalDate(in, cst); got != "2024-03-06" {
		t.Fatalf("LocalDate = %q, 应为北京时间次日", got)
	}
	if got := LocalDate(in, 0); got != "2024-03-05" {
		t.Fatalf("LocalDate UTC = %q", got)
	}
}

func TestInDailyWindow(t *testing.T) {
	// 北京时间 00:03 → 窗口内
	in := time.Date(2024, 3, 4, 16, 3, 0, 0, time.UTC)
	if !InDailyWindow(in, cst, 0) {
		t.Fatal("00:03 should be inside the midnight window")
	}
	// 北京时间 00:05 → 窗口外
	in = time.Date(2024, 3, 4, 16, 5, 0, 0, time.UTC)
	if InDailyWindow(in, cst, 0) {
		t.Fatal("00:05 should be outside the midnight window")
	}
	// 北京时间 09:00 → 早报窗口
	in = time.Date(2024, 3, 5, 1, 0, 0, 0, time.UTC)
	if !InDailyWindow(in, cst, 9) {
		t.Fatal("09:00 should be inside the report window")
	}
	if InDailyWindow(in, cst, 0) {
		t.Fatal("09:00 is not the midnight window")
	}
}
