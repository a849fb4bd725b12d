package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"cellgain.ddns.net/cellgain-public/propeller-loader/loader"
	log "github.com/sirupsen/logrus"
	"golang.org/x/term"
)

const (
	barTodo = "                         ] "
	barDone = " [========================="
)

// progressBar redraws a single status line on every progress report.
type progressBar struct {
	w     io.Writer
	buf   []byte
	total int
	done  bool
}

// newProgressBar returns nil when f is not a terminal; plain log lines
// are enough there.
func newProgressBar(f *os.File) *progressBar {
	if !term.IsTerminal(int(f.Fd())) {
		return nil
	}
	return &progressBar{w: f}
}

func (b *progressBar) Update(p loader.Progress) {
	if p.Phase != loader.PhaseUploading || p.TotalBytes == 0 {
		return
	}
	if p.TotalBytes != b.total {
		b.total = p.TotalBytes
		b.done = false
	}
	if b.done {
		return
	}

	pre := "load  "
	if p.Cog > 0 {
		pre = fmt.Sprintf("cog %d ", p.Cog)
	}
	cur, max := p.BytesSent, p.TotalBytes
	if cur > max {
		cur = max
	}
	b.buf = append(b.buf[:0], '\r')
	b.buf = append(b.buf, pre...)
	n := 25 * cur / max
	b.buf = append(b.buf, barDone[:2+n]...)
	b.buf = append(b.buf, barTodo[n:]...)
	b.buf = strconv.AppendInt(b.buf, int64(cur), 10)
	b.buf = append(b.buf, '/')
	b.buf = strconv.AppendInt(b.buf, int64(max), 10)
	b.buf = append(b.buf, " B"...)
	if cur == max {
		b.buf = append(b.buf, '\n')
		b.done = true
	}
	if _, err := b.w.Write(b.buf); err != nil {
		log.WithError(err).Debug("progress bar write failed")
	}
}
