//go:build linux

package threads

import "golang.org/x/sys/unix"

func gettid() int {
	return unix.Gettid()
}

// applyPriority maps a priority hint onto the nice value of one kernel
// thread. Raising priority above normal usually needs CAP_SYS_NICE.
func applyPriority(tid, priority int) error {
	if priority == NormPriority {
		return nil
	}
	return unix.Setpriority(unix.PRIO_PROCESS, tid, niceFor(priority))
}
