package bootloader_protocol

// LongSize is the number of bytes EncodeLong produces.
const LongSize = 11

// EncodeLong spreads a 32-bit value over the pulse-width bytes the ROM
// decoder understands: ten bytes carrying three bits each, then one byte
// carrying the last two.
func EncodeLong(v uint32) []byte {
	return AppendLong(make([]byte, 0, LongSize), v)
}

// AppendLong appends the encoding of v to buf.
func AppendLong(buf []byte, v uint32) []byte {
	for i := 0; i < LongSize-1; i++ {
		buf = append(buf, byte(0x92|(v&1)|(v&2)<<2|(v&4)<<4))
		v >>= 3
	}
	return append(buf, byte(0xF2|(v&1)|(v&2)<<2))
}
