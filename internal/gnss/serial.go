package gnss

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	serial "go.bug.st/serial"
)

type SerialConfig struct {
	// Device may be empty to auto-detect.
	Device string
	Baud   int

	// ReadTimeout bounds each port read so Close is prompt.
	ReadTimeout time.Duration
}

// SerialReceiver reads UBX frames from a serial port in a background
// goroutine and keeps the latest assembled Reading. Correction bytes written
// via Write go out the same port.
type SerialReceiver struct {
	port   serial.Port
	device string

	mu      sync.Mutex
	last    Reading
	have    bool
	lastErr string

	wmu  sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// OpenSerial opens the receiver port and starts reading. An error here means
// the receiver is unusable; callers treat it as fatal.
func OpenSerial(cfg SerialConfig) (*SerialReceiver, error) {
	device := strings.TrimSpace(cfg.Device)
	if device == "" {
		device = DetectDevice()
		if device == "" {
			return nil, fmt.Errorf("receiver auto-detect failed: no /dev/ttyACM* or /dev/ttyUSB* found")
		}
	}
	baud := cfg.Baud
	if baud == 0 {
		baud = 38400
	}
	timeout := cfg.ReadTimeout
	if timeout <= 0 {
		timeout = 100 * time.Millisecond
	}

	port, err := serial.Open(device, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("receiver open failed device=%s baud=%d: %w", device, baud, err)
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("receiver read timeout: %w", err)
	}

	r := &SerialReceiver{
		port:   port,
		device: device,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	log.Printf("receiver open device=%s baud=%d", device, baud)
	go r.readLoop()
	return r, nil
}

func (r *SerialReceiver) Device() string { return r.device }

func (r *SerialReceiver) readLoop() {
	defer close(r.done)

	var sc scanner
	buf := make([]byte, 512)
	for {
		select {
		case <-r.stop:
			return
		default:
		}

		n, err := r.port.Read(buf)
		if err != nil {
			r.setErr(fmt.Sprintf("receiver read stopped: %v", err))
			return
		}
		if n == 0 {
			// Read timeout; poll the stop channel again.
			continue
		}

		frames := sc.push(buf[:n])
		if len(frames) == 0 {
			continue
		}
		r.mu.Lock()
		for _, f := range frames {
			if apply(&r.last, f) {
				r.have = true
			}
		}
		r.mu.Unlock()
	}
}

// Latest returns the most recent assembled reading. False until the first
// frame has been decoded.
func (r *SerialReceiver) Latest() (Reading, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last, r.have
}

// Write forwards correction bytes to the receiver.
func (r *SerialReceiver) Write(p []byte) (int, error) {
	r.wmu.Lock()
	defer r.wmu.Unlock()
	return r.port.Write(p)
}

func (r *SerialReceiver) Close() error {
	select {
	case <-r.stop:
	default:
		close(r.stop)
	}
	err := r.port.Close()
	<-r.done
	return err
}

// LastError reports the most recent read-loop failure, if any.
func (r *SerialReceiver) LastError() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

func (r *SerialReceiver) setErr(msg string) {
	r.mu.Lock()
	r.lastErr = msg
	r.mu.Unlock()
}
