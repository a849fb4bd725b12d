package uart

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrTimeout is returned by ReadByte when no byte arrived in time.
	ErrTimeout = errors.New("serial read timeout")
	// ErrClosed is returned by operations on a closed Device.
	ErrClosed = errors.New("serial port closed")
)

// PlatformError reports a host operating system without serial support.
type PlatformError struct {
	GOOS string
}

func (e *PlatformError) Error() string {
	return fmt.Sprintf("serial ports are not supported on %s", e.GOOS)
}
