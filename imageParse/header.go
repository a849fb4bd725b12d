package imageParse

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// HeaderSize is the length of the program header at the start of an image.
const HeaderSize = 16

// Header is the program header the Propeller interpreter boots from.
// Addresses are hub RAM byte offsets.
type Header struct {
	ClkSpeed uint32
	ClkMode  uint8
	Checksum uint8
	PBase    uint16
	VBase    uint16
	DBase    uint16
	PCurr    uint16
	DCurr    uint16
}

func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, errors.Errorf("program header needs %d bytes, got %d", HeaderSize, len(b))
	}
	return Header{
		ClkSpeed: binary.LittleEndian.Uint32(b[0:4]),
		ClkMode:  b[4],
		Checksum: b[5],
		PBase:    binary.LittleEndian.Uint16(b[6:8]),
		VBase:    binary.LittleEndian.Uint16(b[8:10]),
		DBase:    binary.LittleEndian.Uint16(b[10:12]),
		PCurr:    binary.LittleEndian.Uint16(b[12:14]),
		DCurr:    binary.LittleEndian.Uint16(b[14:16]),
	}, nil
}

// Put writes h into the first HeaderSize bytes of b.
func (h Header) Put(b []byte) {
	_ = b[HeaderSize-1]
	binary.LittleEndian.PutUint32(b[0:4], h.ClkSpeed)
	b[4] = h.ClkMode
	b[5] = h.Checksum
	binary.LittleEndian.PutUint16(b[6:8], h.PBase)
	binary.LittleEndian.PutUint16(b[8:10], h.VBase)
	binary.LittleEndian.PutUint16(b[10:12], h.DBase)
	binary.LittleEndian.PutUint16(b[12:14], h.PCurr)
	binary.LittleEndian.PutUint16(b[14:16], h.DCurr)
}
