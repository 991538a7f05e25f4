//go:build !linux

package threads

func gettid() int {
	return 0
}

func applyPriority(tid, priority int) error {
	return nil
}
