package lock

import (
	"fmt"
	"time"
)

// WindowKey is the canonical key of a window. Identical windows always map to
// the same key.
func WindowKey(ownerID, date string, start, end time.Time) string {
	return fmt.Sprintf("booking:%s:%s:%s-%s", ownerID, date, start.Format("1504"), end.Format("1504"))
}

// SlotKeys partitions [start, end) into buckets of granularity aligned to the
// local midnight of start and returns one key per covered bucket. Any two
// overlapping windows of the same owner and date share at least one key.
func SlotKeys(ownerID, date string, start, end time.Time, granularity time.Duration) []string {
	if granularity <= 0 || !end.After(start) {
		return nil
	}

	midnight := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
	first := start.Sub(midnight) / granularity
	last := (end.Sub(midnight) - 1) / granularity

	keys := make([]string, 0, last-first+1)
	for bucket := first; bucket <= last; bucket++ {
		offset := bucket * granularity
		keys = append(keys, fmt.Sprintf("slot:%s:%s:%02d%02d",
			ownerID, date, int(offset/time.Hour), int(offset%time.Hour/time.Minute)))
	}
	return keys
}
