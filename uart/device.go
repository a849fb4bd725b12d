package uart

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

// Device is a synchronous byte channel to the target over a serial port.
type Device struct {
	port serial.Port
	name string

	mu          sync.Mutex
	closed      bool
	readTimeout time.Duration
	buf         [1]byte
}

// Config holds the serial line settings.
type Config struct {
	Name        string
	Baud        int
	ReadTimeout time.Duration // used by Read; ReadByte takes its own timeout
}

// DefaultConfig returns the settings the Propeller ROM loader expects.
// Name is left empty when the host platform has no default port.
func DefaultConfig() Config {
	name, _ := DefaultPort()
	return Config{
		Name:        name,
		Baud:        115200,
		ReadTimeout: 250 * time.Millisecond,
	}
}

// Open opens the port described by cfg in 8N1 mode.
func Open(cfg Config) (*Device, error) {
	if cfg.Name == "" {
		if _, err := DefaultPort(); err != nil {
			return nil, err
		}
		return nil, errors.New("no serial port given")
	}
	if cfg.Baud <= 0 {
		cfg.Baud = DefaultConfig().Baud
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultConfig().ReadTimeout
	}

	port, err := serial.Open(cfg.Name, &serial.Mode{
		BaudRate: cfg.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", cfg.Name)
	}
	if err := port.SetReadTimeout(cfg.ReadTimeout); err != nil {
		port.Close()
		return nil, errors.Wrapf(err, "set read timeout on %s", cfg.Name)
	}

	log.WithFields(log.Fields{"port": cfg.Name, "baud": cfg.Baud}).Debug("serial port opened")
	return &Device{port: port, name: cfg.Name, readTimeout: cfg.ReadTimeout}, nil
}

// Name returns the device path the port was opened with.
func (d *Device) Name() string {
	return d.name
}

// Close releases the port. Calling it more than once is harmless.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	if err := d.port.Close(); err != nil {
		return errors.Wrapf(err, "close %s", d.name)
	}
	log.WithField("port", d.name).Debug("serial port closed")
	return nil
}

func (d *Device) Read(buf []byte) (int, error) {
	if d.isClosed() {
		return 0, ErrClosed
	}
	return d.port.Read(buf)
}

func (d *Device) Write(buf []byte) (int, error) {
	if d.isClosed() {
		return 0, ErrClosed
	}
	n, err := d.port.Write(buf)
	if err != nil {
		return n, errors.Wrapf(err, "write %s", d.name)
	}
	return n, nil
}

// ReadByte waits up to timeout for a single byte. It returns ErrTimeout if
// nothing arrives in time.
func (d *Device) ReadByte(timeout time.Duration) (byte, error) {
	if d.isClosed() {
		return 0, ErrClosed
	}
	if timeout != d.readTimeout {
		if err := d.port.SetReadTimeout(timeout); err != nil {
			return 0, errors.Wrapf(err, "set read timeout on %s", d.name)
		}
		d.readTimeout = timeout
	}
	n, err := d.port.Read(d.buf[:])
	if err != nil {
		if d.isClosed() {
			return 0, ErrClosed
		}
		return 0, errors.Wrapf(err, "read %s", d.name)
	}
	if n == 0 {
		return 0, ErrTimeout
	}
	return d.buf[0], nil
}

// FlushInput discards everything received but not read yet.
func (d *Device) FlushInput() error {
	if d.isClosed() {
		return ErrClosed
	}
	return errors.Wrap(d.port.ResetInputBuffer(), "flush input")
}

// FlushOutput discards everything written but not transmitted yet.
func (d *Device) FlushOutput() error {
	if d.isClosed() {
		return ErrClosed
	}
	return errors.Wrap(d.port.ResetOutputBuffer(), "flush output")
}

// SetDTR drives the DTR line, which resets the target on Propeller boards.
func (d *Device) SetDTR(on bool) error {
	if d.isClosed() {
		return ErrClosed
	}
	return errors.Wrap(d.port.SetDTR(on), "set DTR")
}

func (d *Device) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}
