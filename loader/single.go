package loader

import (
	"context"
	"time"

	protocol "cellgain.ddns.net/cellgain-public/propeller-loader/bootloader_protocol"
	"cellgain.ddns.net/cellgain-public/propeller-loader/imageParse"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// longsPerBlock is how many longs are written between progress reports.
const longsPerBlock = protocol.PageSize / 4

// UploadSingle loads img through the ROM loader: into RAM, into the
// EEPROM, or both, and optionally starts it. With neither run nor eeprom
// the device is told to shut down. Connect is run first if needed.
func (s *Session) UploadSingle(ctx context.Context, img *imageParse.Image, run, eeprom bool) error {
	if err := imageParse.Validate(img.Name, img.Data); err != nil {
		return err
	}
	if eeprom && img.Size() < s.config.Board.EepromSize {
		var err error
		if img, err = imageParse.EepromImage(img, s.config.Board.EepromSize); err != nil {
			return err
		}
	}
	if !s.connected {
		if _, err := s.Connect(ctx); err != nil {
			return err
		}
	}
	cmd := protocol.SelectCommand(eeprom, run)
	return s.run(ctx, func() error {
		return s.uploadSingle(img, cmd)
	})
}

func (s *Session) uploadSingle(img *imageParse.Image, cmd protocol.Command) error {
	logger := s.log().WithFields(log.Fields{"image": img.Name, "command": cmd.String()})
	// the ROM loader is gone once it has accepted a command
	s.connected = false

	frame := protocol.CreateLoadCmd(cmd, img.Data)
	if cmd == protocol.CmdShutdown {
		_, err := s.port.Write(frame)
		logger.Info("device shut down")
		return err
	}

	longs := img.Size() / 4
	blocks := (longs + longsPerBlock - 1) / longsPerBlock
	head := 2 * protocol.LongSize
	if _, err := s.port.Write(frame[:head]); err != nil {
		return err
	}
	for blk := 0; blk < blocks; blk++ {
		start := blk * longsPerBlock
		end := start + longsPerBlock
		if end > longs {
			end = longs
		}
		if _, err := s.port.Write(frame[head+start*protocol.LongSize : head+end*protocol.LongSize]); err != nil {
			return err
		}
		s.reportProgress(Progress{
			Phase:      PhaseUploading,
			Page:       blk + 1,
			TotalPages: blocks,
			BytesSent:  end * 4,
			TotalBytes: img.Size(),
		})
	}

	if err := s.expectZero(ramTimeout, ErrRAMChecksum); err != nil {
		return err
	}
	if cmd == protocol.CmdProgramEeprom || cmd == protocol.CmdProgramEepromRun {
		if err := s.expectZero(eepromTimeout, ErrEepromProgram); err != nil {
			return err
		}
		if err := s.expectZero(verifyTimeout, ErrEepromVerify); err != nil {
			return err
		}
	}
	logger.WithField("bytes", img.Size()).Info("image loaded")
	return nil
}

// expectZero waits for a result bit; a one means failure.
func (s *Session) expectZero(timeout time.Duration, failure error) error {
	bit, err := s.receiveBit(true, timeout)
	if err == errBitTimeout {
		return errors.Wrap(ErrResultTimeout, failure.Error())
	}
	if err != nil {
		return err
	}
	if bit != 0 {
		return failure
	}
	return nil
}
