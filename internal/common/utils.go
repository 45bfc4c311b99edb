package common

import "fmt"

// HoursTracked is the number of hourly snapshot files the gateway keeps (00..23).
const HoursTracked = 24

// FileID returns the two-digit gateway file id for an hour offset (0 = newest).
func FileID(hour int) string {
	return fmt.Sprintf("%02d", hour)
}
