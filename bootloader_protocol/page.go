package bootloader_protocol

import "encoding/binary"

// Page is one transfer unit of the multi-cog protocol.
type Page struct {
	Cog  byte
	Addr uint32
	Data []byte
}

// IsMarker reports whether p is the zero-length page that ends an image.
func (p Page) IsMarker() bool {
	return p.Addr == EndOfImageAddr && len(p.Data) == 0
}

// AddrHeader packs the 24-bit hub address and the target cog into one long.
func (p Page) AddrHeader() uint32 {
	return p.Addr&0xFFFFFF | uint32(p.Cog)<<24
}

// LRC is the XOR of every payload byte, before stuffing.
func (p Page) LRC() byte {
	var lrc byte
	for _, b := range p.Data {
		lrc ^= b
	}
	return lrc
}

// Bytes returns the page as it goes on the wire: address header and size,
// most significant byte first, then the payload, all stuffed.
func (p Page) Bytes() []byte {
	var hdr [8]byte
	binary.BigEndian.PutUint32(hdr[0:4], p.AddrHeader())
	binary.BigEndian.PutUint32(hdr[4:8], uint32(len(p.Data)))

	frame := make([]byte, 0, len(hdr)+len(p.Data)+len(p.Data)/16+2)
	frame = AppendStuffed(frame, hdr[:])
	return AppendStuffed(frame, p.Data)
}

// MarkerPage returns the page that closes the image sent to cog.
func MarkerPage(cog byte) Page {
	return Page{Cog: cog, Addr: EndOfImageAddr}
}

// SplitPages cuts image into pages of at most PageSize bytes addressed from
// base, and closes the list with the marker page. The last data page is not
// padded.
func SplitPages(cog byte, base uint32, image []byte) []Page {
	pages := make([]Page, 0, PageCount(len(image))+1)
	for start := 0; start < len(image); start += PageSize {
		end := start + PageSize
		if end > len(image) {
			end = len(image)
		}
		pages = append(pages, Page{
			Cog:  cog,
			Addr: base + uint32(start),
			Data: image[start:end],
		})
	}
	return append(pages, MarkerPage(cog))
}

// PageCount is the number of data pages an image of size bytes needs.
func PageCount(size int) int {
	return (size + PageSize - 1) / PageSize
}
