package daykey

import (
	"testing"
	"time"
)

func seoul(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	return loc
}

func TestOf_SameLocalDay(t *testing.T) {
	loc := seoul(t)
	early := time.Date(2024, 3, 9, 0, 0, 0, 1, loc)
	late := time.Date(2024, 3, 9, 23, 59, 59, 999_000_000, loc)
	if Of(early) != Of(late) {
		t.Errorf("Of(early) = %d, Of(late) = %d, want equal", Of(early), Of(late))
	}
	next := time.Date(2024, 3, 10, 0, 0, 0, 0, loc)
	if Of(next) == Of(late) {
		t.Error("keys of adjacent days must differ")
	}
}

func TestOf_LocalNotUTC(t *testing.T) {
	loc := seoul(t)
	// 01:00 in Seoul is still the previous day in UTC.
	ts := time.Date(2024, 3, 9, 1, 0, 0, 0, loc)
	want := time.Date(2024, 3, 9, 0, 0, 0, 0, loc).UnixMilli()
	if got := Of(ts).Millis(); got != want {
		t.Errorf("Of = %d, want %d", got, want)
	}
}

func TestOf_Idempotent(t *testing.T) {
	loc := seoul(t)
	k := Of(time.Date(2024, 7, 1, 15, 4, 5, 0, loc))
	if again := Of(k.Time(loc)); again != k {
		t.Errorf("Of(Of(t)) = %d, want %d", again, k)
	}
	if k2 := FromMillis(k.Millis(), loc); k2 != k {
		t.Errorf("FromMillis = %d, want %d", k2, k)
	}
}

func TestParseAndFormat(t *testing.T) {
	loc := seoul(t)
	k, err := Parse("2024-02-29", loc)
	if err != nil {
		t.Fatal(err)
	}
	if got := k.Format(loc); got != "2024-02-29" {
		t.Errorf("Format = %q, want 2024-02-29", got)
	}
	if _, err := Parse("29/02/2024", loc); err == nil {
		t.Error("expected error for bad layout")
	}
}

func TestMonthGrid(t *testing.T) {
	// June 2024 starts on a Saturday and has 30 days.
	cells := MonthGrid(2024, time.June, time.UTC)
	if len(cells)%7 != 0 {
		t.Fatalf("len = %d, want multiple of 7", len(cells))
	}
	if len(cells) != 42 {
		t.Errorf("len = %d, want 42", len(cells))
	}
	for i := 0; i < 6; i++ {
		if !cells[i].Blank {
			t.Errorf("cell %d should be blank", i)
		}
	}
	if cells[6].Day != 1 || cells[6].Blank {
		t.Errorf("cell 6 = %+v, want day 1", cells[6])
	}
	if cells[35].Day != 30 {
		t.Errorf("cell 35 = %+v, want day 30", cells[35])
	}
}

func TestMonthRange(t *testing.T) {
	from, to := MonthRange(2024, time.December, time.UTC)
	if from.Format(time.UTC) != "2024-12-01" || to.Format(time.UTC) != "2025-01-01" {
		t.Errorf("range = %s..%s", from.Format(time.UTC), to.Format(time.UTC))
	}
}
