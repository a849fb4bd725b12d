package uart

func DefaultPort() (string, error) {
	return "COM1", nil
}
