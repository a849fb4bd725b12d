package loader

import "context"

// run executes fn, which talks to the transport, and closes the transport
// as soon as ctx is cancelled so a blocked read returns. The in-flight
// exchange is abandoned without any protocol cleanup. fn runs on its own
// goroutine, so the ProgressCallback is called off the caller's goroutine;
// run still waits for fn before returning.
func (s *Session) run(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- fn()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.log().Warn("interrupted, closing port")
		s.Close()
		<-errCh
		s.connected = false
		return ctx.Err()
	}
}
