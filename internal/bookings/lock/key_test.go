package lock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func clock(hhmm string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", "2025-09-05 "+hhmm)
	if err != nil {
		panic(err)
	}
	return t
}

func TestWindowKey(t *testing.T) {
	a := WindowKey("owner-1", "2025-09-05", clock("14:00"), clock("15:00"))
	b := WindowKey("owner-1", "2025-09-05", clock("14:00"), clock("15:00"))

	assert.Equal(t, "booking:owner-1:2025-09-05:1400-1500", a)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, WindowKey("owner-2", "2025-09-05", clock("14:00"), clock("15:00")))
}

func TestSlotKeys(t *testing.T) {
	tests := []struct {
		name       string
		start, end string
		want       []string
	}{
		{"aligned hour", "14:00", "15:00", []string{
			"slot:o:2025-09-05:1400", "slot:o:2025-09-05:1415", "slot:o:2025-09-05:1430", "slot:o:2025-09-05:1445",
		}},
		{"unaligned", "14:10", "14:20", []string{"slot:o:2025-09-05:1400", "slot:o:2025-09-05:1415"}},
		{"single bucket", "09:00", "09:15", []string{"slot:o:2025-09-05:0900"}},
		{"end of day", "23:45", "23:59", []string{"slot:o:2025-09-05:2345"}},
		{"empty window", "10:00", "10:00", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SlotKeys("o", "2025-09-05", clock(tt.start), clock(tt.end), 15*time.Minute)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSlotKeys_OverlappingWindowsShareAKey(t *testing.T) {
	granularity := 15 * time.Minute
	base := clock("08:00")

	for i := 0; i < 48; i++ {
		for j := 0; j < 48; j++ {
			aStart := base.Add(time.Duration(i) * 5 * time.Minute)
			bStart := base.Add(time.Duration(j) * 5 * time.Minute)
			aEnd := aStart.Add(time.Duration(1+i%7) * 10 * time.Minute)
			bEnd := bStart.Add(time.Duration(1+j%5) * 10 * time.Minute)

			overlaps := aStart.Before(bEnd) && bStart.Before(aEnd)
			if !overlaps {
				continue
			}

			a := SlotKeys("o", "2025-09-05", aStart, aEnd, granularity)
			b := SlotKeys("o", "2025-09-05", bStart, bEnd, granularity)
			assert.True(t, shareAny(a, b), "overlapping windows %v-%v and %v-%v share no key", aStart, aEnd, bStart, bEnd)
		}
	}
}

func TestSlotKeys_DisjointBucketsAreIndependent(t *testing.T) {
	a := SlotKeys("o", "2025-09-05", clock("14:00"), clock("15:00"), 15*time.Minute)
	b := SlotKeys("o", "2025-09-05", clock("15:00"), clock("16:00"), 15*time.Minute)
	c := SlotKeys("other", "2025-09-05", clock("14:00"), clock("15:00"), 15*time.Minute)

	assert.False(t, shareAny(a, b))
	assert.False(t, shareAny(a, c))
}

func shareAny(a, b []string) bool {
	set := make(map[string]struct{}, len(a))
	for _, k := range a {
		set[k] = struct{}{}
	}
	for _, k := range b {
		if _, ok := set[k]; ok {
			return true
		}
	}
	return false
}
