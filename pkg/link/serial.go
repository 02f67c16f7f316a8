// Package link connects the host to a controller and streams its telemetry.
package link

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/itohio/gomppt/pkg/telemetry"
)

const (
	// DefaultBaudRate is the controller UART rate.
	DefaultBaudRate = 500000
	// DefaultBufferSize is the default size for the snapshots channel buffer.
	DefaultBufferSize = 100
)

var (
	ErrConnected    = errors.New("link: already connected")
	ErrNotConnected = errors.New("link: not connected")
)

// Serial represents a connection to the controller UART.
type Serial struct {
	port     string
	baudRate int
	bufSize  int

	conn      io.ReadWriteCloser
	snapshots chan telemetry.Snapshot
	mu        sync.RWMutex
	cancel    context.CancelFunc
	connected bool

	open func(port string, baudRate int) (io.ReadWriteCloser, error)
	now  func() time.Time
}

// NewSerial creates a serial link with the specified port, baud rate, and buffer size.
func NewSerial(port string, baudRate int, bufSize int) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if bufSize == 0 {
		bufSize = DefaultBufferSize
	}

	return &Serial{
		port:      port,
		baudRate:  baudRate,
		bufSize:   bufSize,
		snapshots: make(chan telemetry.Snapshot, bufSize),
		open:      openPort,
		now:       time.Now,
	}
}

func openPort(port string, baudRate int) (io.ReadWriteCloser, error) {
	return serial.Open(port, &serial.Mode{BaudRate: baudRate})
}

// Ports returns the names of available serial ports.
func Ports() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	return ports, nil
}

// Connect opens the serial port and starts reading telemetry. Every connection
// gets a new snapshots channel.
func (d *Serial) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return ErrConnected
	}

	conn, err := d.open(d.port, d.baudRate)
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", d.port, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.snapshots = make(chan telemetry.Snapshot, d.bufSize)
	d.conn = conn
	d.connected = true

	go d.readSnapshots(ctx, conn, d.snapshots)

	return nil
}

// Close closes the port and the snapshots channel.
func (d *Serial) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil
	}

	d.cancel()

	if d.conn != nil {
		if err := d.conn.Close(); err != nil {
			log.Printf("Error closing serial port: %v", err)
		}
		d.conn = nil
	}

	d.connected = false

	return nil
}

// Snapshots returns the channel of the current connection. It is closed when
// the reader stops.
func (d *Serial) Snapshots() <-chan telemetry.Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.snapshots
}

// Rezero asks the controller to recalibrate its zero-current offset.
func (d *Serial) Rezero() error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.connected {
		return ErrNotConnected
	}

	if _, err := d.conn.Write([]byte{telemetry.RezeroCommand, '\n'}); err != nil {
		return fmt.Errorf("failed to send rezero command: %w", err)
	}

	return nil
}

// IsConnected returns whether the link is currently connected.
func (d *Serial) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}

// readSnapshots reads lines from the port and parses them into snapshots.
// The first line is dropped since the port may open in the middle of one.
func (d *Serial) readSnapshots(ctx context.Context, r io.Reader, out chan<- telemetry.Snapshot) {
	defer close(out)
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Panic in readSnapshots: %v", r)
		}
	}()

	scanner := bufio.NewScanner(r)
	first := true
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		if first {
			first = false
			continue
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		s, err := telemetry.Parse(line)
		if err != nil {
			log.Printf("Failed to parse line '%s': %v", line, err)
			continue
		}
		s.Timestamp = d.now()

		select {
		case out <- s:
		case <-ctx.Done():
			return
		default:
			log.Printf("Snapshots channel full, dropping snapshot")
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		log.Printf("Error reading from serial port: %v", err)
	}
}
