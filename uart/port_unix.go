//go:build linux || freebsd || netbsd || openbsd

package uart

// DefaultPort returns the usual device node of a USB serial adapter.
func DefaultPort() (string, error) {
	return "/dev/ttyUSB0", nil
}
