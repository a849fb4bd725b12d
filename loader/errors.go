package loader

import (
	"fmt"

	protocol "cellgain.ddns.net/cellgain-public/propeller-loader/bootloader_protocol"
	"github.com/pkg/errors"
)

var (
	// ErrHandshakeTimeout means the device stopped answering during Connect.
	ErrHandshakeTimeout = errors.New("handshake timeout")
	// ErrNoHardwareFound means something answered, but not a Propeller.
	ErrNoHardwareFound = errors.New("no hardware found")
	// ErrResultTimeout means the ROM never reported the load result.
	ErrResultTimeout = errors.New("no load result from device")
	// ErrRAMChecksum means the ROM rejected the checksum of the loaded image.
	ErrRAMChecksum = errors.New("RAM checksum failure")
	// ErrEepromProgram means the ROM could not write the EEPROM.
	ErrEepromProgram = errors.New("EEPROM programming failure")
	// ErrEepromVerify means the EEPROM read back differently.
	ErrEepromVerify = errors.New("EEPROM verify failure")
	// ErrInvalidPlan rejects an upload plan before anything is sent.
	ErrInvalidPlan = errors.New("invalid upload plan")
	// ErrAckTimeout means a page acknowledgment did not arrive.
	ErrAckTimeout = errors.New("acknowledgment timeout")
)

// UploadError aborts a multi-cog session. Err is a
// *bootloader_protocol.AckError for protocol violations.
type UploadError struct {
	Cog  int
	Page int
	Err  error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("uploading cog %d page %d: %v", e.Cog, e.Page, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// Kind returns the acknowledgment failure class, or 0 when the page failed
// for another reason.
func (e *UploadError) Kind() protocol.AckKind {
	var ackErr *protocol.AckError
	if errors.As(e.Err, &ackErr) {
		return ackErr.Kind
	}
	return 0
}

// IsUploadError returns true if err is or wraps an UploadError.
func IsUploadError(err error) bool {
	var u *UploadError
	return errors.As(err, &u)
}
