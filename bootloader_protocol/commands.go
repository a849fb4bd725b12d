package bootloader_protocol

const (
	/* Clocks one bit out of the ROM loader; also the first byte of a handshake. */
	CalibrationByte = 0xF9
	/* Handshake bits are sent as HandshakeBitBase | bit. */
	HandshakeBitBase = 0xFE

	/* Number of LFSR bits sent to the ROM, and echoed back by it. */
	HandshakeLength = 250
	/* Bits of firmware version that follow the echoed LFSR bits. */
	VersionBits = 8
	/* LFSR seed, the ASCII code of 'P'. */
	HandshakeSeed = 'P'

	/* Leads a sync signal; followed by StuffByte when it appears in data. */
	SyncByte = 0xFF
	StuffByte = 0x00

	/* Largest payload of a page. */
	PageSize = 512
	/* Address of the zero-length page that closes an image. */
	EndOfImageAddr = 0x00FFFFFE
)

// Command is the first long sent to the ROM loader after the handshake.
type Command uint32

const (
	CmdShutdown Command = iota
	CmdLoadRun
	CmdProgramEeprom
	CmdProgramEepromRun
)

func (c Command) String() string {
	switch c {
	case CmdShutdown:
		return "shutdown"
	case CmdLoadRun:
		return "load RAM and run"
	case CmdProgramEeprom:
		return "program EEPROM"
	case CmdProgramEepromRun:
		return "program EEPROM and run"
	}
	return "unknown"
}

// SelectCommand picks the ROM command for the requested destination.
func SelectCommand(eeprom, run bool) Command {
	switch {
	case eeprom && run:
		return CmdProgramEepromRun
	case eeprom:
		return CmdProgramEeprom
	case run:
		return CmdLoadRun
	}
	return CmdShutdown
}

// CreateHandshakeFrame builds everything the host sends before it starts
// reading the echo: one calibration byte, the host half of the LFSR stream
// and enough calibration bytes to clock back the echo and the version.
func CreateHandshakeFrame(lfsr []byte) []byte {
	frame := make([]byte, 0, 1+len(lfsr)+HandshakeLength+VersionBits)
	frame = append(frame, CalibrationByte)
	for _, bit := range lfsr {
		frame = append(frame, HandshakeBitBase|bit)
	}
	for i := 0; i < HandshakeLength+VersionBits; i++ {
		frame = append(frame, CalibrationByte)
	}
	return frame
}

// ParseHandshakeBit decodes a bit echoed by the ROM. Any byte other than
// 0xFE or 0xFF is a protocol violation.
func ParseHandshakeBit(b byte) (byte, bool) {
	if b != HandshakeBitBase && b != HandshakeBitBase|1 {
		return 0, false
	}
	return b & 1, true
}

// CreateLoadCmd builds the single-core transfer: command, long count and
// every long of the image, each encoded with EncodeLong. Shutdown carries
// no image.
func CreateLoadCmd(cmd Command, image []byte) []byte {
	if cmd == CmdShutdown {
		return EncodeLong(uint32(cmd))
	}
	longs := len(image) / 4
	frame := make([]byte, 0, (2+longs)*LongSize)
	frame = AppendLong(frame, uint32(cmd))
	frame = AppendLong(frame, uint32(longs))
	for i := 0; i < longs; i++ {
		v := uint32(image[4*i]) | uint32(image[4*i+1])<<8 | uint32(image[4*i+2])<<16 | uint32(image[4*i+3])<<24
		frame = AppendLong(frame, v)
	}
	return frame
}
