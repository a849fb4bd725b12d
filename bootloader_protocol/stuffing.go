package bootloader_protocol

import "github.com/pkg/errors"

// ErrBadStuffing reports a SyncByte that is not followed by StuffByte.
var ErrBadStuffing = errors.New("sync byte inside stuffed data")

// SyncSignal is the unstuffed two byte marker that announces a count or a cog.
func SyncSignal(payload byte) []byte {
	return []byte{SyncByte, payload}
}

// Stuff returns b with a StuffByte inserted after every SyncByte.
func Stuff(b []byte) []byte {
	return AppendStuffed(make([]byte, 0, len(b)+len(b)/16), b)
}

// AppendStuffed appends the stuffed form of b to dst.
func AppendStuffed(dst, b []byte) []byte {
	for _, c := range b {
		dst = append(dst, c)
		if c == SyncByte {
			dst = append(dst, StuffByte)
		}
	}
	return dst
}

// Unstuff reverses Stuff.
func Unstuff(b []byte) ([]byte, error) {
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		out = append(out, b[i])
		if b[i] != SyncByte {
			continue
		}
		if i+1 >= len(b) || b[i+1] != StuffByte {
			return nil, errors.Wrapf(ErrBadStuffing, "offset %d", i)
		}
		i++
	}
	return out, nil
}
