package imageParse

import (
	"bytes"
	"debug/elf"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/marcinbor85/gohex"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// HubSize is the size of the shared hub RAM the image is loaded into.
const HubSize = 32768

// Format records what kind of file an Image was built from.
type Format int

const (
	FormatFlat Format = iota
	FormatELF
	FormatHex
)

func (f Format) String() string {
	switch f {
	case FormatFlat:
		return "binary"
	case FormatELF:
		return "elf"
	case FormatHex:
		return "ihex"
	}
	return "unknown"
}

// Image is a flat hub RAM image that starts with a program header.
type Image struct {
	Name   string
	Format Format
	Data   []byte
}

func (img *Image) Size() int {
	return len(img.Data)
}

func (img *Image) Header() (Header, error) {
	return ParseHeader(img.Data)
}

func (img *Image) SetHeader(h Header) {
	h.Put(img.Data)
}

func (img *Image) Clone() *Image {
	return &Image{Name: img.Name, Format: img.Format, Data: append([]byte(nil), img.Data...)}
}

// Load reads the image file at path.
func Load(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(path, data)
}

// Parse turns file contents into a flat image. The format is decided once,
// from the ELF magic or a .hex/.ihx extension; anything else is taken as a
// flat binary and used unchanged.
func Parse(name string, data []byte) (*Image, error) {
	format := detectFormat(name, data)
	img := &Image{Name: name, Format: format}

	var segs []segment
	var err error
	switch format {
	case FormatFlat:
		img.Data = data
		return img, nil
	case FormatELF:
		segs, err = elfSegments(data)
	case FormatHex:
		segs, err = hexSegments(data)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", name)
	}

	img.Data, err = flatten(segs)
	if err != nil {
		return nil, errors.Wrapf(err, "flatten %s", name)
	}
	if err := patchHeader(img.Data); err != nil {
		return nil, errors.Wrapf(err, "patch %s", name)
	}
	log.WithFields(log.Fields{"image": name, "format": format, "size": len(img.Data), "segments": len(segs)}).
		Debug("extracted flat image")
	return img, nil
}

func detectFormat(name string, data []byte) Format {
	if bytes.HasPrefix(data, []byte(elf.ELFMAG)) {
		return FormatELF
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".hex", ".ihx":
		return FormatHex
	}
	return FormatFlat
}

type segment struct {
	addr uint32
	data []byte
}

func elfSegments(data []byte) ([]segment, error) {
	f, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var segs []segment
	for _, p := range f.Progs {
		if p.Type != elf.PT_LOAD || p.Filesz == 0 {
			continue
		}
		buf := make([]byte, p.Filesz)
		if _, err := io.ReadFull(p.Open(), buf); err != nil {
			return nil, errors.Wrapf(err, "segment at 0x%x", p.Paddr)
		}
		segs = append(segs, segment{addr: uint32(p.Paddr), data: buf})
	}
	return segs, nil
}

func hexSegments(data []byte) ([]segment, error) {
	mem := gohex.NewMemory()
	if err := mem.ParseIntelHex(bytes.NewReader(data)); err != nil {
		return nil, err
	}
	var segs []segment
	for _, s := range mem.GetDataSegments() {
		segs = append(segs, segment{addr: s.Address, data: s.Data})
	}
	return segs, nil
}

// flatten copies the segments into a zero filled buffer covering the
// smallest address range that holds all of them. The length is rounded up
// to a whole long.
func flatten(segs []segment) ([]byte, error) {
	if len(segs) == 0 {
		return nil, errors.New("no loadable segments")
	}
	sort.Slice(segs, func(i, j int) bool { return segs[i].addr < segs[j].addr })
	start, end := segs[0].addr, segs[0].addr
	for _, s := range segs {
		if e := s.addr + uint32(len(s.data)); e > end {
			end = e
		}
	}
	size := (end - start + 3) &^ 3
	if size > HubSize {
		return nil, errors.Errorf("segments span %d bytes, hub RAM holds %d", size, HubSize)
	}
	buf := make([]byte, size)
	for _, s := range segs {
		copy(buf[s.addr-start:], s.data)
	}
	return buf, nil
}

// patchHeader points the variable, data and stack bases past the program
// and refreshes the checksum.
func patchHeader(data []byte) error {
	h, err := ParseHeader(data)
	if err != nil {
		return err
	}
	end := uint16(len(data))
	h.VBase = end
	h.DBase = end + uint16(len(StackMarker))
	h.DCurr = h.DBase + 4
	h.Put(data)
	FixChecksum(data)
	return nil
}
