package loader

import (
	"context"
	"time"

	protocol "cellgain.ddns.net/cellgain-public/propeller-loader/bootloader_protocol"
	"cellgain.ddns.net/cellgain-public/propeller-loader/imageParse"
	"cellgain.ddns.net/cellgain-public/propeller-loader/uart"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// UploadMulticog sends every image of plan to its cog with the page
// protocol, cogs in ascending order and pages strictly one at a time. The
// first rejected page aborts the whole session; the device then needs a
// reset before it can be loaded again.
//
// If a bootstrap image is configured it is loaded through the ROM first
// (into the EEPROM as well when eeprom is set). A bootstrap loaded without
// run never executes the page protocol, so only the bootstrap is
// transferred. Without a bootstrap the page firmware is expected to be
// listening already and the plan is always sent.
func (s *Session) UploadMulticog(ctx context.Context, plan *Plan, run, eeprom bool) error {
	layout, err := plan.Layout(s.config.WorkspaceBase)
	if err != nil {
		return err
	}
	images := make([]*imageParse.Image, len(layout))
	for i, pl := range layout {
		if images[i], err = imageParse.Relocate(plan.Image(pl.Cog), pl.Base, pl.Workspace); err != nil {
			return errors.Wrapf(err, "relocate cog %d", pl.Cog)
		}
		s.log().WithFields(log.Fields{
			"cog":       pl.Cog,
			"image":     images[i].Name,
			"base":      pl.Base,
			"workspace": pl.Workspace,
			"size":      images[i].Size(),
		}).Debug("placed image")
	}

	if boot := s.config.Bootstrap; boot != nil {
		s.reportProgress(Progress{Phase: PhaseBootstrap})
		if err := s.UploadSingle(ctx, boot, run, eeprom); err != nil {
			return errors.Wrap(err, "bootstrap")
		}
		if !run {
			s.log().Warn("bootstrap not started, cog images not sent")
			return nil
		}
	}

	return s.run(ctx, func() error {
		return s.sendPlan(ctx, layout, images)
	})
}

func (s *Session) sendPlan(ctx context.Context, layout []Placement, images []*imageParse.Image) error {
	total := 0
	for _, img := range images {
		total += img.Size()
	}
	if _, err := s.port.Write(protocol.SyncSignal(byte(len(images)))); err != nil {
		return err
	}

	sent := 0
	for i, pl := range layout {
		cog := byte(pl.Cog)
		if _, err := s.port.Write(protocol.SyncSignal(cog)); err != nil {
			return err
		}
		pages := protocol.SplitPages(cog, uint32(pl.Base), images[i].Data)
		for n, page := range pages {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := s.sendPage(page); err != nil {
				return &UploadError{Cog: pl.Cog, Page: n, Err: err}
			}
			sent += len(page.Data)
			s.reportProgress(Progress{
				Phase:      PhaseUploading,
				Cog:        pl.Cog,
				Page:       n + 1,
				TotalPages: len(pages),
				BytesSent:  sent,
				TotalBytes: total,
			})
		}
		s.log().WithFields(log.Fields{"cog": pl.Cog, "pages": len(pages)}).Info("cog loaded")
	}
	s.reportProgress(Progress{Phase: PhaseComplete, BytesSent: sent, TotalBytes: total})
	return nil
}

// sendPage writes one page and checks its acknowledgment.
func (s *Session) sendPage(page protocol.Page) error {
	if _, err := s.port.Write(page.Bytes()); err != nil {
		return err
	}
	s.sleep(pageSettle)

	if page.IsMarker() {
		b, err := s.readAck(ackTimeout)
		if err != nil {
			return err
		}
		return protocol.ParseMarkerAck(b, page.Cog)
	}

	var ack [protocol.AckSize]byte
	for i := range ack {
		b, err := s.readAck(ackTimeout)
		if err != nil {
			return err
		}
		ack[i] = b
	}
	return protocol.ParseAck(ack[:], page.Cog, page.LRC())
}

func (s *Session) readAck(timeout time.Duration) (byte, error) {
	b, err := s.port.ReadByte(timeout)
	if errors.Is(err, uart.ErrTimeout) {
		return 0, ErrAckTimeout
	}
	return b, err
}
