package bootloader_protocol

// LFSR is the 8-bit shift register both ends of the handshake run in
// lockstep (taps 7, 5, 4 and 1).
type LFSR struct {
	reg byte
}

func NewLFSR(seed byte) *LFSR {
	return &LFSR{reg: seed}
}

// Next shifts the register once and returns the bit shifted out.
func (l *LFSR) Next() byte {
	bit := l.reg & 1
	feedback := (l.reg>>7 ^ l.reg>>5 ^ l.reg>>4 ^ l.reg>>1) & 1
	l.reg = l.reg<<1 | feedback
	return bit
}

// HandshakeBits returns the first n bits generated from the handshake seed.
func HandshakeBits(n int) []byte {
	l := NewLFSR(HandshakeSeed)
	bits := make([]byte, n)
	for i := range bits {
		bits[i] = l.Next()
	}
	return bits
}
