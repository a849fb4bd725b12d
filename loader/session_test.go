package loader

import (
	"context"
	"encoding/binary"
	"testing"

	protocol "cellgain.ddns.net/cellgain-public/propeller-loader/bootloader_protocol"
	"cellgain.ddns.net/cellgain-public/propeller-loader/imageParse"
	"cellgain.ddns.net/cellgain-public/propeller-loader/uart"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testImage builds a valid image of size bytes with its variables right
// after the code.
func testImage(name string, size int) *imageParse.Image {
	data := make([]byte, size)
	for i := imageParse.HeaderSize; i < size; i++ {
		data[i] = byte(i*7 + 3)
	}
	imageParse.Header{
		ClkSpeed: 80000000,
		ClkMode:  0x6F,
		PBase:    0x0010,
		VBase:    uint16(size),
		DBase:    uint16(size + 8),
		PCurr:    0x0018,
		DCurr:    uint16(size + 12),
	}.Put(data)
	imageParse.FixChecksum(data)
	return &imageParse.Image{Name: name, Data: data}
}

func TestConnect(t *testing.T) {
	dev := newFakeDevice()
	dev.rom = &romResponder{version: 1}
	logger, hook := test.NewNullLogger()
	s := newTestSession(dev, WithLogger(logger))

	version, err := s.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, byte(1), version)
	assert.Equal(t, byte(1), s.Version())
	assert.True(t, s.Connected())

	assert.Equal(t, []bool{true, false}, dev.dtr)
	bits := protocol.HandshakeBits(2 * protocol.HandshakeLength)
	assert.Equal(t, protocol.CreateHandshakeFrame(bits[:protocol.HandshakeLength]), dev.written.Bytes())

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "propeller found", hook.LastEntry().Message)
	assert.Equal(t, log.InfoLevel, hook.LastEntry().Level)
}

func TestConnectVersionBits(t *testing.T) {
	dev := newFakeDevice()
	dev.rom = &romResponder{version: 0xA5}
	s := newTestSession(dev)

	version, err := s.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, byte(0xA5), version)
}

func TestConnectNoHardwareFound(t *testing.T) {
	dev := newFakeDevice()
	dev.rom = &romResponder{echo: func(i int, bit byte) byte {
		if i == 10 {
			return protocol.HandshakeBitBase | (bit ^ 1)
		}
		return protocol.HandshakeBitBase | bit
	}}
	s := newTestSession(dev, WithAttempts(3))

	_, err := s.Connect(context.Background())
	assert.True(t, errors.Is(err, ErrNoHardwareFound))
	assert.Equal(t, 3, dev.rom.handshakes)
	assert.False(t, s.Connected())
}

func TestConnectGarbage(t *testing.T) {
	dev := newFakeDevice()
	dev.rom = &romResponder{echo: func(int, byte) byte { return 0x00 }}
	s := newTestSession(dev, WithAttempts(1))

	_, err := s.Connect(context.Background())
	assert.True(t, errors.Is(err, ErrNoHardwareFound))
}

func TestConnectTimeout(t *testing.T) {
	dev := newFakeDevice()
	s := newTestSession(dev, WithAttempts(2))
	start := dev.clock.Now()

	_, err := s.Connect(context.Background())
	assert.True(t, errors.Is(err, ErrHandshakeTimeout))
	assert.False(t, s.Connected())
	// two resets, one pause and the first bit timeout of each attempt
	elapsed := dev.clock.Now().Sub(start)
	assert.Equal(t, 2*(resetHold+resetSettle+bitTimeout)+retryPause, elapsed)
	assert.Equal(t, []bool{true, false, true, false}, dev.dtr)
}

func TestConnectClosedPort(t *testing.T) {
	dev := newFakeDevice()
	dev.closed = true
	s := newTestSession(dev, WithAttempts(5))

	_, err := s.Connect(context.Background())
	assert.True(t, errors.Is(err, uart.ErrClosed))
	assert.Empty(t, dev.dtr)
}

func TestUploadSingleRAM(t *testing.T) {
	dev := newFakeDevice()
	dev.rom = &romResponder{version: 1, results: []byte{0xFE}}
	var progress []Progress
	s := newTestSession(dev, WithProgressCallback(func(p Progress) {
		progress = append(progress, p)
	}))
	img := testImage("blink.binary", 1200)

	require.NoError(t, s.UploadSingle(context.Background(), img, true, false))
	assert.False(t, s.Connected())

	longs := decodeLongs(dev.rom.load)
	require.Len(t, longs, 2+300)
	assert.Equal(t, uint32(protocol.CmdLoadRun), longs[0])
	assert.Equal(t, uint32(300), longs[1])
	for i, v := range longs[2:] {
		assert.Equal(t, binary.LittleEndian.Uint32(img.Data[4*i:]), v)
	}

	require.NotEmpty(t, progress)
	assert.Equal(t, PhaseConnecting, progress[0].Phase)
	last := progress[len(progress)-1]
	assert.Equal(t, PhaseUploading, last.Phase)
	assert.Equal(t, 1200, last.BytesSent)
	assert.Equal(t, 1200, last.TotalBytes)
	assert.Equal(t, last.TotalPages, last.Page)
}

func TestUploadSingleChecksumFailure(t *testing.T) {
	dev := newFakeDevice()
	dev.rom = &romResponder{version: 1, results: []byte{0xFF}}
	s := newTestSession(dev)

	err := s.UploadSingle(context.Background(), testImage("a", 64), true, false)
	assert.True(t, errors.Is(err, ErrRAMChecksum))
}

func TestUploadSingleNoResult(t *testing.T) {
	dev := newFakeDevice()
	dev.rom = &romResponder{version: 1}
	s := newTestSession(dev)

	err := s.UploadSingle(context.Background(), testImage("a", 64), true, false)
	assert.True(t, errors.Is(err, ErrResultTimeout))
}

func TestUploadSingleEeprom(t *testing.T) {
	for _, tc := range []struct {
		name    string
		results []byte
		want    error
	}{
		{"ok", []byte{0xFE, 0xFE, 0xFE}, nil},
		{"program", []byte{0xFE, 0xFF}, ErrEepromProgram},
		{"verify", []byte{0xFE, 0xFE, 0xFF}, ErrEepromVerify},
	} {
		t.Run(tc.name, func(t *testing.T) {
			dev := newFakeDevice()
			dev.rom = &romResponder{version: 1, results: tc.results}
			s := newTestSession(dev)

			err := s.UploadSingle(context.Background(), testImage("a", 256), true, true)
			if tc.want == nil {
				require.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, tc.want), "got %v", err)
			}

			longs := decodeLongs(dev.rom.load)
			require.True(t, len(longs) >= 2)
			assert.Equal(t, uint32(protocol.CmdProgramEepromRun), longs[0])
			assert.Equal(t, uint32(imageParse.DefaultEepromSize/4), longs[1])
		})
	}
}

func TestUploadSingleShutdown(t *testing.T) {
	dev := newFakeDevice()
	dev.rom = &romResponder{version: 1}
	s := newTestSession(dev)

	require.NoError(t, s.UploadSingle(context.Background(), testImage("a", 64), false, false))
	assert.Equal(t, []uint32{uint32(protocol.CmdShutdown)}, decodeLongs(dev.rom.load))
}

func TestUploadSingleInvalidImage(t *testing.T) {
	dev := newFakeDevice()
	dev.rom = &romResponder{version: 1}
	s := newTestSession(dev)
	img := testImage("bad", 64)
	img.Data[20]++

	err := s.UploadSingle(context.Background(), img, true, false)
	assert.True(t, imageParse.IsValidationError(err))
	assert.Zero(t, dev.written.Len())
	assert.Empty(t, dev.dtr)
}
