package imageParse

import "github.com/pkg/errors"

// DefaultEepromSize is the boot EEPROM of a standard Propeller board.
const DefaultEepromSize = 32768

// EepromImage expands image to the full EEPROM: zero padded, with the stack
// marker stored below dbase the way the ROM would place it in RAM. Images
// that already fill the EEPROM are returned as a copy.
func EepromImage(img *Image, eepromSize int) (*Image, error) {
	if img.Size() > eepromSize {
		return nil, &ValidationError{Name: img.Name, Reason: "image is larger than the EEPROM"}
	}
	if img.Size() == eepromSize {
		return img.Clone(), nil
	}
	h, err := img.Header()
	if err != nil {
		return nil, err
	}

	data := make([]byte, eepromSize)
	copy(data, img.Data)
	at := int(h.DBase) - len(StackMarker)
	if at < img.Size() || at+len(StackMarker) > eepromSize {
		at = img.Size()
	}
	if at+len(StackMarker) > eepromSize {
		return nil, errors.Errorf("no room for the stack marker in a %d byte EEPROM", eepromSize)
	}
	copy(data[at:], StackMarker)
	return &Image{Name: img.Name, Format: img.Format, Data: data}, nil
}
