package ringdb

import (
	"testing"
	"time"
)

func TestTimestampRoundTrip(t *testing.T) {
	zones := []string{"UTC", "Europe/London", "America/New_York"}
	instants := []string{
		"2011-01-01T00:00:00Z",
		"2011-07-01T00:00:00Z",
		"2011-03-27T01:00:00Z",
		"2011-03-27T02:00:00Z",
		"2011-10-30T01:00:00Z",
		"2011-10-30T01:30:00Z",
		"2011-10-30T02:00:00Z",
	}

	for _, zoneName := range zones {
		loc, err := time.LoadLocation(zoneName)
		if err != nil {
			t.Fatalf("loading zone %q: %v", zoneName, err)
		}

		for _, s := range instants {
			want, err := time.Parse(time.RFC3339, s)
			if err != nil {
				t.Fatalf("parsing %q: %v", s, err)
			}

			inZone := want.In(loc)

			epoch := toEpoch(inZone)
			back := fromEpoch(epoch)

			if !back.Equal(want.UTC()) {
				t.Errorf("from_epoch(to_epoch(%v)) = %v, want %v", inZone, back, want.UTC())
			}

			if toEpoch(back) != epoch {
				t.Errorf("to_epoch(from_epoch(to_epoch(%v))) changed: %d != %d", inZone, toEpoch(back), epoch)
			}
		}
	}
}

func TestAlignDownUp(t *testing.T) {
	cases := []struct {
		epoch, interval, down, up int64
	}{
		{100, 50, 100, 100},
		{101, 50, 100, 150},
		{0, 1800, 0, 0},
		{1799, 1800, 0, 1800},
	}

	for _, c := range cases {
		if got := alignDown(c.epoch, c.interval); got != c.down {
			t.Errorf("alignDown(%d, %d) = %d, want %d", c.epoch, c.interval, got, c.down)
		}

		if got := alignUp(c.epoch, c.interval); got != c.up {
			t.Errorf("alignUp(%d, %d) = %d, want %d", c.epoch, c.interval, got, c.up)
		}
	}
}
