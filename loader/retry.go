package loader

import (
	"context"
	"time"

	"cellgain.ddns.net/cellgain-public/propeller-loader/imageParse"
	"cellgain.ddns.net/cellgain-public/propeller-loader/uart"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// RetryPolicy decides how often a whole session (open, reset, upload) is
// repeated. Pages and handshake bits are never retried on their own.
type RetryPolicy struct {
	MaxAttempts int
	// Forever retries until success or cancellation, ignoring MaxAttempts.
	Forever bool
	Pause   time.Duration
}

// DefaultRetryPolicy runs a session once.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1, Pause: time.Second}
}

// Opener creates a fresh session for every attempt.
type Opener func() (*Session, error)

// PortOpener opens the serial port described by cfg.
func PortOpener(cfg uart.Config, opts ...Option) Opener {
	return func() (*Session, error) {
		return Open(cfg, opts...)
	}
}

// Run opens a session, hands it to fn and closes it, repeating according
// to policy. The session is closed on every path, including cancellation.
func Run(ctx context.Context, open Opener, policy RetryPolicy, fn func(context.Context, *Session) error) error {
	for attempt := 1; ; attempt++ {
		err := runOnce(ctx, open, fn)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !retryable(err) || (!policy.Forever && attempt >= policy.MaxAttempts) {
			return err
		}
		log.WithError(err).WithField("attempt", attempt).Warn("session failed, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(policy.Pause):
		}
	}
}

func runOnce(ctx context.Context, open Opener, fn func(context.Context, *Session) error) (err error) {
	s, err := open()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()
	return fn(ctx, s)
}

// retryable is false for failures another attempt cannot fix.
func retryable(err error) bool {
	var platform *uart.PlatformError
	switch {
	case errors.As(err, &platform):
		return false
	case imageParse.IsValidationError(err), errors.Is(err, ErrInvalidPlan):
		return false
	}
	return true
}
