package bootloader_protocol

import (
	"fmt"

	"github.com/pkg/errors"
)

// AckSize is the length of a data page acknowledgment.
const AckSize = 3

// AckKind classifies a rejected acknowledgment.
type AckKind int

const (
	MissingSyncByte AckKind = iota + 1
	CogMismatch
	ChecksumMismatch
)

func (k AckKind) String() string {
	switch k {
	case MissingSyncByte:
		return "missing sync byte"
	case CogMismatch:
		return "cog mismatch"
	case ChecksumMismatch:
		return "checksum mismatch"
	}
	return fmt.Sprintf("ack kind %d", int(k))
}

// AckError describes an acknowledgment that does not match what was sent.
type AckError struct {
	Kind     AckKind
	Expected byte
	Actual   byte
}

func (e *AckError) Error() string {
	return fmt.Sprintf("%s: expected 0x%02X, got 0x%02X", e.Kind, e.Expected, e.Actual)
}

// ParseAck checks the acknowledgment of a data page: sync byte, echoed cog
// and the LRC the device computed.
func ParseAck(ack []byte, cog, lrc byte) error {
	if len(ack) != AckSize {
		return errors.Errorf("acknowledgment has %d bytes, want %d", len(ack), AckSize)
	}
	if ack[0] != SyncByte {
		return &AckError{Kind: MissingSyncByte, Expected: SyncByte, Actual: ack[0]}
	}
	if ack[1] != cog {
		return &AckError{Kind: CogMismatch, Expected: cog, Actual: ack[1]}
	}
	if ack[2] != lrc {
		return &AckError{Kind: ChecksumMismatch, Expected: lrc, Actual: ack[2]}
	}
	return nil
}

// ParseMarkerAck checks the acknowledgment of the marker page, which is
// just the echoed cog id.
func ParseMarkerAck(b, cog byte) error {
	if b != cog {
		return &AckError{Kind: CogMismatch, Expected: cog, Actual: b}
	}
	return nil
}
