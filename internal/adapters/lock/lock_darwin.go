//go:build darwin

package lock

import (
	"time"

	"golang.org/x/sys/unix"
)

const processStartPrefix = "lstart"

// processStartTime reads the start time of pid from the kern.proc.pid sysctl.
func processStartTime(pid int) (time.Time, bool) {
	if pid <= 0 {
		return time.Time{}, false
	}
	kp, err := unix.SysctlKinfoProc("kern.proc.pid", pid)
	if err != nil || kp == nil {
		return time.Time{}, false
	}
	tv := kp.Proc.P_starttime
	return time.Unix(int64(tv.Sec), int64(tv.Usec)*1000), true
}
