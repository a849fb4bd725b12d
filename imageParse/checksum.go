package imageParse

import (
	"fmt"

	"github.com/pkg/errors"
)

const checksumOffset = 5

// StackMarker is what the ROM writes below dbase before it checksums hub
// RAM. It takes part in the checksum without being part of the image.
var StackMarker = []byte{0xFF, 0xFF, 0xF9, 0xFF, 0xFF, 0xFF, 0xF9, 0xFF}

func markerSum() byte {
	var sum byte
	for _, b := range StackMarker {
		sum += b
	}
	return sum
}

// ValidateChecksum reports whether the image bytes plus the stack marker
// add up to zero modulo 256.
func ValidateChecksum(image []byte) bool {
	sum := markerSum()
	for _, b := range image {
		sum += b
	}
	return sum == 0
}

// Checksum returns the header checksum byte that makes image valid.
func Checksum(image []byte) byte {
	sum := markerSum()
	for i, b := range image {
		if i != checksumOffset {
			sum += b
		}
	}
	return -sum
}

// FixChecksum rewrites the header checksum byte in place.
func FixChecksum(image []byte) {
	if len(image) > checksumOffset {
		image[checksumOffset] = Checksum(image)
	}
}

// ValidationError reports an image the ROM loader would reject.
type ValidationError struct {
	Name   string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("invalid image: %s", e.Reason)
	}
	return fmt.Sprintf("invalid image %s: %s", e.Name, e.Reason)
}

// IsValidationError returns true if err is or wraps a ValidationError.
func IsValidationError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// Validate checks the size constraints and the checksum of image.
func Validate(name string, image []byte) error {
	switch {
	case len(image) < HeaderSize:
		return &ValidationError{Name: name, Reason: fmt.Sprintf("%d bytes is shorter than the program header", len(image))}
	case len(image)%4 != 0:
		return &ValidationError{Name: name, Reason: fmt.Sprintf("size %d is not a multiple of 4", len(image))}
	case len(image) > HubSize:
		return &ValidationError{Name: name, Reason: fmt.Sprintf("size %d exceeds hub RAM (%d bytes)", len(image), HubSize)}
	case !ValidateChecksum(image):
		return &ValidationError{Name: name, Reason: fmt.Sprintf("checksum mismatch (header byte 0x%02X, want 0x%02X)",
			image[checksumOffset], Checksum(image))}
	}
	return nil
}
