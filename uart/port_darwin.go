package uart

func DefaultPort() (string, error) {
	return "/dev/cu.usbserial", nil
}
