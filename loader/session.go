package loader

import (
	"context"
	"sync"
	"time"

	protocol "cellgain.ddns.net/cellgain-public/propeller-loader/bootloader_protocol"
	"cellgain.ddns.net/cellgain-public/propeller-loader/uart"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Transport is the byte channel a Session drives. *uart.Device implements it.
type Transport interface {
	Write(b []byte) (int, error)
	ReadByte(timeout time.Duration) (byte, error)
	FlushInput() error
	FlushOutput() error
	SetDTR(on bool) error
	Close() error
}

// Session is one connection to a device. It owns its Transport and is not
// safe for concurrent use.
type Session struct {
	port   Transport
	config Config

	version   byte
	connected bool
	started   time.Time

	closeOnce sync.Once
	closeErr  error

	now   func() time.Time
	sleep func(time.Duration)
}

// NewSession takes ownership of port.
func NewSession(port Transport, opts ...Option) *Session {
	if port == nil {
		panic("port cannot be nil")
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Session{
		port:    port,
		config:  cfg,
		started: time.Now(),
		now:     time.Now,
		sleep:   time.Sleep,
	}
}

// Open opens the serial port and wraps it in a Session. The board baud
// rate takes precedence over portCfg.Baud.
func Open(portCfg uart.Config, opts ...Option) (*Session, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	portCfg.Baud = cfg.Board.Baud
	dev, err := uart.Open(portCfg)
	if err != nil {
		return nil, err
	}
	return NewSession(dev, opts...), nil
}

// Close releases the transport. It is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.port.Close()
	})
	return s.closeErr
}

// Version is the ROM version read by the last successful Connect.
func (s *Session) Version() byte {
	return s.version
}

// Connected reports whether the ROM loader is waiting for a command.
func (s *Session) Connected() bool {
	return s.connected
}

func (s *Session) log() log.FieldLogger {
	return s.config.Logger
}

// Connect resets the device and runs the LFSR handshake, retrying the whole
// sequence up to the configured number of attempts. It returns the ROM
// version.
func (s *Session) Connect(ctx context.Context) (byte, error) {
	s.reportProgress(Progress{Phase: PhaseConnecting})
	err := s.run(ctx, func() error {
		var err error
		for attempt := 1; attempt <= s.config.Attempts; attempt++ {
			if attempt > 1 {
				s.sleep(retryPause)
			}
			if s.version, err = s.handshake(); err == nil {
				return nil
			}
			if errors.Is(err, uart.ErrClosed) {
				return err
			}
			s.log().WithError(err).WithField("attempt", attempt).Debug("handshake failed")
		}
		return err
	})
	if err != nil {
		return 0, errors.Wrap(err, "connect")
	}
	s.connected = true
	s.log().WithField("version", s.version).Info("propeller found")
	return s.version, nil
}

func (s *Session) reset() error {
	if err := s.port.FlushOutput(); err != nil {
		return err
	}
	if err := s.port.SetDTR(true); err != nil {
		return err
	}
	s.sleep(resetHold)
	if err := s.port.SetDTR(false); err != nil {
		return err
	}
	s.sleep(resetSettle)
	return s.port.FlushInput()
}

func (s *Session) handshake() (byte, error) {
	s.connected = false
	if err := s.reset(); err != nil {
		return 0, errors.Wrap(err, "reset")
	}

	bits := protocol.HandshakeBits(2 * protocol.HandshakeLength)
	if _, err := s.port.Write(protocol.CreateHandshakeFrame(bits[:protocol.HandshakeLength])); err != nil {
		return 0, err
	}

	for i, want := range bits[protocol.HandshakeLength:] {
		bit, err := s.receiveBit(false, bitTimeout)
		if err == errBitTimeout {
			return 0, errors.Wrapf(ErrHandshakeTimeout, "bit %d", i)
		}
		if err != nil {
			return 0, err
		}
		if bit != want {
			return 0, errors.Wrapf(ErrNoHardwareFound, "bit %d mismatch", i)
		}
	}

	var version byte
	for i := 0; i < protocol.VersionBits; i++ {
		bit, err := s.receiveBit(false, versionTimeout)
		if err == errBitTimeout {
			return 0, errors.Wrapf(ErrHandshakeTimeout, "version bit %d", i)
		}
		if err != nil {
			return 0, err
		}
		version = version>>1&0x7F | bit<<7
	}
	return version, nil
}

var errBitTimeout = errors.New("bit timeout")

// receiveBit polls for one bit until timeout expires. With echo set a
// calibration byte is sent before every read to clock the answer out.
func (s *Session) receiveBit(echo bool, timeout time.Duration) (byte, error) {
	deadline := s.now().Add(timeout)
	for {
		wait := deadline.Sub(s.now())
		if echo {
			if _, err := s.port.Write([]byte{protocol.CalibrationByte}); err != nil {
				return 0, err
			}
			s.sleep(echoDelay)
			wait = deadline.Sub(s.now())
			if wait > echoDelay {
				wait = echoDelay
			}
		}
		if wait <= 0 {
			return 0, errBitTimeout
		}

		b, err := s.port.ReadByte(wait)
		if errors.Is(err, uart.ErrTimeout) {
			continue
		}
		if err != nil {
			return 0, err
		}
		bit, ok := protocol.ParseHandshakeBit(b)
		if !ok {
			return 0, errors.Wrapf(ErrNoHardwareFound, "unexpected reply 0x%02X", b)
		}
		return bit, nil
	}
}
