// propload uploads programs to a Parallax Propeller through its serial
// bootloader, either to one cog via the ROM loader or to several cogs via
// the page protocol.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"cellgain.ddns.net/cellgain-public/propeller-loader/imageParse"
	"cellgain.ddns.net/cellgain-public/propeller-loader/loader"
	"cellgain.ddns.net/cellgain-public/propeller-loader/uart"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	portName string
	baud     int
	eeprom   bool
	noRun    bool
	attempts int
	force    bool
	verbose  bool
)

var rootCmd = &cobra.Command{
	Use:           "propload",
	Short:         "Upload programs to a Propeller over a serial line",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			log.SetLevel(log.DebugLevel)
		}
	},
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVarP(&portName, "serial-port", "p", envString("PROPLOAD_PORT", ""), "Serial device, e.g. /dev/ttyUSB0")
	f.IntVarP(&baud, "baud", "b", envInt("PROPLOAD_BAUD", loader.DefaultBoard().Baud), "Baud rate")
	f.BoolVarP(&eeprom, "eeprom", "e", false, "Program the boot EEPROM as well")
	f.BoolVar(&noRun, "no-run", false, "Do not start the program after loading")
	f.IntVar(&attempts, "attempts", 2, "Handshake attempts per session")
	f.BoolVar(&force, "force", false, "Retry the whole session until it succeeds or is interrupted")
	f.BoolVarP(&verbose, "verbose", "v", false, "Log protocol details")
}

func envString(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func envInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
		log.WithField(key, val).Warn("ignoring malformed environment value")
	}
	return def
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigCh)
		select {
		case <-sigCh:
			log.Info("stop requested")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func portConfig() uart.Config {
	cfg := uart.DefaultConfig()
	if portName != "" {
		cfg.Name = portName
	}
	cfg.Baud = baud
	return cfg
}

func sessionOptions(extra ...loader.Option) []loader.Option {
	opts := []loader.Option{
		loader.WithBoard(loader.Board{Baud: baud}),
		loader.WithAttempts(attempts),
		loader.WithLogger(log.StandardLogger()),
	}
	if bar := newProgressBar(os.Stderr); bar != nil {
		opts = append(opts, loader.WithProgressCallback(bar.Update))
	}
	return append(opts, extra...)
}

func retryPolicy() loader.RetryPolicy {
	policy := loader.DefaultRetryPolicy()
	policy.Forever = force
	return policy
}

// failureClass names the kind of failure for the final error line.
func failureClass(err error) string {
	var (
		platform *uart.PlatformError
		upload   *loader.UploadError
	)
	switch {
	case errors.Is(err, context.Canceled):
		return "interrupted"
	case errors.As(err, &platform):
		return "unsupported platform"
	case imageParse.IsValidationError(err):
		return "invalid image"
	case errors.Is(err, loader.ErrInvalidPlan):
		return "invalid plan"
	case errors.Is(err, loader.ErrHandshakeTimeout):
		return "handshake timeout"
	case errors.Is(err, loader.ErrNoHardwareFound):
		return "no hardware found"
	case errors.Is(err, loader.ErrResultTimeout):
		return "no response"
	case errors.Is(err, loader.ErrRAMChecksum):
		return "RAM checksum failure"
	case errors.Is(err, loader.ErrEepromProgram):
		return "EEPROM programming failure"
	case errors.Is(err, loader.ErrEepromVerify):
		return "EEPROM verify failure"
	case errors.As(err, &upload):
		if kind := upload.Kind(); kind != 0 {
			return kind.String()
		}
		return "upload failure"
	}
	return "error"
}

func main() {
	ctx, cancel := signalContext()
	err := rootCmd.ExecuteContext(ctx)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "propload: %s: %v\n", failureClass(err), err)
		os.Exit(1)
	}
}
