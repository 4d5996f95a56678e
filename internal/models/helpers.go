package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateID generates a short unique id with a type prefix, e.g. evt-1a2b3c4d.
func GenerateID(prefix string) string {
	id := uuid.New().String()

	return fmt.Sprintf("%s-%s", prefix, id[:8])
}

// GetCurrentTime returns the current time in UTC
func GetCurrentTime() time.Time {
	return time.Now().UTC()
}

// DayKey formats a timestamp as the calendar-day prefix used in order ids,
// e.g. 20260219.
func DayKey(t time.Time) string {
	return t.Format("20060102")
}

// FormatOrderID builds a day-scoped order id, e.g. 20260219-003.
func FormatOrderID(dayKey string, seq int) string {
	return fmt.Sprintf("%s-%03d", dayKey, seq)
}

// SequenceFromID extracts the numeric suffix of a day-scoped order id.
// Returns 0 when the id does not carry a parseable sequence.
func SequenceFromID(id string) int {
	idx := strings.LastIndex(id, "-")

	if idx < 0 || idx+1 >= len(id) {
		return 0
	}

	seq, err := strconv.Atoi(id[idx+1:])

	if err != nil || seq < 0 {
		return 0
	}

	return seq
}
