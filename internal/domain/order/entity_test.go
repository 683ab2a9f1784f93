package order

import (
	"testing"
	"time"
)

func TestDaysInclusive(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		end  time.Time
		want int
	}{
		{start, 1},
		{start.AddDate(0, 0, 6), 7},
		{start.AddDate(0, 0, 29), 30},
	}
	for _, c := range cases {
		o := &ProductOrder{StartDate: start, EndDate: c.end}
		if got := o.Days(); got != c.want {
			t.Errorf("Days(%s..%s): got %d, want %d", start.Format("2006-01-02"), c.end.Format("2006-01-02"), got, c.want)
		}
	}
}
