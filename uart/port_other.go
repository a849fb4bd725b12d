//go:build !linux && !freebsd && !netbsd && !openbsd && !darwin && !windows

package uart

import "runtime"

func DefaultPort() (string, error) {
	return "", &PlatformError{GOOS: runtime.GOOS}
}
