//go:build !linux

package base

func runningKernel() (string, error) {
	return "", nil
}
