package loader

import (
	"bytes"
	"sync"
	"time"

	protocol "cellgain.ddns.net/cellgain-public/propeller-loader/bootloader_protocol"
	"cellgain.ddns.net/cellgain-public/propeller-loader/uart"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.t
}

func (c *fakeClock) Sleep(d time.Duration) {
	c.t = c.t.Add(d)
}

// fakeDevice plays the Propeller side of the serial line. Replies are
// produced synchronously from what the host writes.
type fakeDevice struct {
	mu sync.Mutex

	// block makes reads on an empty line wait until Close
	block chan struct{}

	clock   *fakeClock
	written bytes.Buffer
	replies []byte
	dtr     []bool
	closed  bool

	rom   *romResponder
	pages *pageResponder
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{clock: &fakeClock{t: time.Unix(0, 0)}}
}

func (d *fakeDevice) Write(b []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, uart.ErrClosed
	}
	d.written.Write(b)
	switch {
	case d.pages != nil && d.pages.active:
		d.replies = append(d.replies, d.pages.feed(b)...)
	case d.rom != nil:
		d.replies = append(d.replies, d.rom.feed(b)...)
	}
	return len(b), nil
}

func (d *fakeDevice) ReadByte(timeout time.Duration) (byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, uart.ErrClosed
	}
	if len(d.replies) == 0 && d.block != nil {
		d.mu.Unlock()
		<-d.block
		d.mu.Lock()
		return 0, uart.ErrClosed
	}
	if len(d.replies) == 0 {
		d.clock.Sleep(timeout)
		return 0, uart.ErrTimeout
	}
	b := d.replies[0]
	d.replies = d.replies[1:]
	return b, nil
}

func (d *fakeDevice) FlushInput() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return uart.ErrClosed
	}
	d.replies = nil
	return nil
}

func (d *fakeDevice) FlushOutput() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return uart.ErrClosed
	}
	return nil
}

func (d *fakeDevice) SetDTR(on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return uart.ErrClosed
	}
	d.dtr = append(d.dtr, on)
	return nil
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.closed && d.block != nil {
		close(d.block)
	}
	d.closed = true
	return nil
}

func (d *fakeDevice) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// newTestSession wires the session timing to the device clock.
func newTestSession(d *fakeDevice, opts ...Option) *Session {
	s := NewSession(d, opts...)
	s.now = d.clock.Now
	s.sleep = d.clock.Sleep
	return s
}

// romResponder answers the handshake and the single-core load.
type romResponder struct {
	version byte

	// echo replaces the echoed LFSR bits when set
	echo func(i int, bit byte) byte

	// results are returned one per calibration byte after a load
	results []byte

	// pages is activated once every result has been sent
	pages *pageResponder

	handshakes int
	load       []byte
	loading    bool
}

func (r *romResponder) feed(b []byte) []byte {
	frameLen := 1 + 2*protocol.HandshakeLength + protocol.VersionBits
	if len(b) == frameLen && b[0] == protocol.CalibrationByte {
		r.handshakes++
		r.loading = true
		r.load = nil
		var out []byte
		for i, bit := range protocol.HandshakeBits(2 * protocol.HandshakeLength)[protocol.HandshakeLength:] {
			reply := protocol.HandshakeBitBase | bit
			if r.echo != nil {
				reply = r.echo(i, bit)
			}
			out = append(out, reply)
		}
		for i := 0; i < protocol.VersionBits; i++ {
			out = append(out, protocol.HandshakeBitBase|(r.version>>uint(i))&1)
		}
		return out
	}
	if !r.loading {
		return nil
	}
	if len(b) == 1 && b[0] == protocol.CalibrationByte {
		if len(r.results) == 0 {
			return nil
		}
		res := r.results[0]
		r.results = r.results[1:]
		if len(r.results) == 0 && r.pages != nil {
			r.pages.active = true
		}
		return []byte{res}
	}
	r.load = append(r.load, b...)
	return nil
}

// decodeLongs reverses protocol.EncodeLong for a whole stream.
func decodeLongs(b []byte) []uint32 {
	var out []uint32
	for len(b) >= protocol.LongSize {
		var v uint32
		for i := 0; i < protocol.LongSize-1; i++ {
			bits := uint32(b[i]&1) | uint32(b[i]>>3&1)<<1 | uint32(b[i]>>6&1)<<2
			v |= bits << (3 * uint(i))
		}
		last := b[protocol.LongSize-1]
		v |= (uint32(last&1) | uint32(last>>3&1)<<1) << 30
		out = append(out, v)
		b = b[protocol.LongSize:]
	}
	return out
}

type pageState int

const (
	stateCountSync pageState = iota
	stateCount
	stateCogSync
	stateCog
	stateHeader
	statePayload
	stateDone
)

// pageResponder is the page-protocol firmware: it parses the stuffed stream
// and acknowledges every page.
type pageResponder struct {
	active bool

	count int
	cogs  []byte
	pages []protocol.Page
	acks  int

	// tamper may rewrite the acknowledgment of the n-th page (0-based,
	// counted over the whole session)
	tamper func(n int, ack []byte) []byte

	state   pageState
	cog     byte
	stuffed bool
	hdr     []byte
	size    int
	data    []byte
	seen    int
}

func (p *pageResponder) feed(b []byte) []byte {
	var out []byte
	for _, c := range b {
		out = append(out, p.step(c)...)
	}
	return out
}

func (p *pageResponder) step(c byte) []byte {
	switch p.state {
	case stateCountSync:
		if c == protocol.SyncByte {
			p.state = stateCount
		}
	case stateCount:
		p.count = int(c)
		p.state = stateCogSync
	case stateCogSync:
		if c == protocol.SyncByte {
			p.state = stateCog
		}
	case stateCog:
		p.cog = c
		p.cogs = append(p.cogs, c)
		p.state = stateHeader
		p.hdr = p.hdr[:0]
	case stateHeader, statePayload:
		if p.stuffed {
			p.stuffed = false
			return nil
		}
		if c == protocol.SyncByte {
			p.stuffed = true
		}
		if p.state == stateHeader {
			p.hdr = append(p.hdr, c)
			if len(p.hdr) < 8 {
				return nil
			}
			p.size = int(uint32(p.hdr[4])<<24 | uint32(p.hdr[5])<<16 | uint32(p.hdr[6])<<8 | uint32(p.hdr[7]))
			p.data = nil
			if p.size == 0 {
				return p.finish()
			}
			p.state = statePayload
			return nil
		}
		p.data = append(p.data, c)
		if len(p.data) == p.size {
			return p.finish()
		}
	}
	return nil
}

func (p *pageResponder) finish() []byte {
	hdr := uint32(p.hdr[0])<<24 | uint32(p.hdr[1])<<16 | uint32(p.hdr[2])<<8 | uint32(p.hdr[3])
	page := protocol.Page{Cog: byte(hdr >> 24), Addr: hdr & 0xFFFFFF, Data: p.data}
	p.pages = append(p.pages, page)
	p.hdr = p.hdr[:0]
	p.state = stateHeader

	var ack []byte
	if page.IsMarker() {
		ack = []byte{page.Cog}
		if len(p.cogs) == p.count {
			p.state = stateDone
		} else {
			p.state = stateCogSync
		}
	} else {
		ack = []byte{protocol.SyncByte, page.Cog, page.LRC()}
	}
	n := p.seen
	p.seen++
	if p.tamper != nil {
		ack = p.tamper(n, ack)
	}
	p.acks++
	return ack
}
