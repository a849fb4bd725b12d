package loader

import (
	"time"

	"cellgain.ddns.net/cellgain-public/propeller-loader/imageParse"
	log "github.com/sirupsen/logrus"
)

// Board describes the target board.
type Board struct {
	Baud       int
	EepromSize int
}

// DefaultBoard is a stock Propeller board with a 32 KB boot EEPROM.
func DefaultBoard() Board {
	return Board{Baud: 115200, EepromSize: imageParse.DefaultEepromSize}
}

// Config holds the session configuration.
type Config struct {
	Board Board

	// Logger receives protocol diagnostics (optional)
	Logger log.FieldLogger

	// ProgressCallback is called after every acknowledged page (optional)
	ProgressCallback ProgressCallback

	// Attempts bounds how many times Connect runs the whole handshake
	Attempts int

	// Bootstrap is sent with the single-core protocol before the page
	// protocol starts. Nil means the page firmware is already running.
	Bootstrap *imageParse.Image

	// WorkspaceBase is the hub address where per-cog workspaces start.
	// Negative means right after the last image of the plan.
	WorkspaceBase int
}

func defaultConfig() Config {
	return Config{
		Board:         DefaultBoard(),
		Logger:        log.StandardLogger(),
		Attempts:      2,
		WorkspaceBase: -1,
	}
}

// Option is a functional option for configuring a Session.
type Option func(*Config)

// WithBoard sets the board parameters.
func WithBoard(b Board) Option {
	return func(c *Config) {
		if b.Baud > 0 {
			c.Board.Baud = b.Baud
		}
		if b.EepromSize > 0 {
			c.Board.EepromSize = b.EepromSize
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l log.FieldLogger) Option {
	return func(c *Config) {
		if l != nil {
			c.Logger = l
		}
	}
}

// WithProgressCallback sets a callback to track page transfers.
func WithProgressCallback(cb ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = cb
	}
}

// WithAttempts sets how many times the handshake is tried.
func WithAttempts(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.Attempts = n
		}
	}
}

// WithBootstrap sets the image that receives the page protocol.
func WithBootstrap(img *imageParse.Image) Option {
	return func(c *Config) {
		c.Bootstrap = img
	}
}

// WithWorkspaceBase places the per-cog workspaces at a fixed hub address.
func WithWorkspaceBase(addr int) Option {
	return func(c *Config) {
		c.WorkspaceBase = addr
	}
}

// timing of the ROM loader protocol
const (
	resetHold      = 25 * time.Millisecond
	resetSettle    = 90 * time.Millisecond
	echoDelay      = 25 * time.Millisecond
	bitTimeout     = 100 * time.Millisecond
	versionTimeout = 50 * time.Millisecond
	retryPause     = time.Second
	pageSettle     = 50 * time.Millisecond
	ackTimeout     = time.Second
	ramTimeout     = 8 * time.Second
	eepromTimeout  = 5 * time.Second
	verifyTimeout  = 2 * time.Second
)
