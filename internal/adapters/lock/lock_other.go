//go:build !darwin && !windows

package lock

import "time"

const processStartPrefix = "start"

// processStartTime is unavailable here; linux uses /proc start ticks instead.
func processStartTime(pid int) (time.Time, bool) {
	_ = pid
	return time.Time{}, false
}
