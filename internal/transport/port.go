package transport

import (
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// Port is the physical link. Read must return (0, nil) when no data arrives
// within the configured read timeout.
type Port interface {
	io.ReadWriteCloser
}

// OpenSerial opens device at baud 8N1 with a bounded read timeout.
func OpenSerial(device string, baud int, readTimeout time.Duration) (Port, error) {
	p, err := serial.Open(device, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("OpenSerial %s: %w", device, err)
	}
	if err := p.SetReadTimeout(readTimeout); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("OpenSerial %s: set read timeout: %w", device, err)
	}
	if err := p.ResetInputBuffer(); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("OpenSerial %s: reset input: %w", device, err)
	}
	return p, nil
}
