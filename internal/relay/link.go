// Package relay forwards the differential-correction byte stream from the
// correction server to the receiver. The stream is opaque: no framing,
// checksum, or content validation happens here.
package relay

import (
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

type State int

const (
	Disconnected State = iota
	Connected
)

func (s State) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

type Config struct {
	// Addr is the correction server, host:port.
	Addr string

	// DialTimeout bounds a single EnsureConnected attempt.
	DialTimeout time.Duration
	// ReadTimeout bounds each read inside Pump so a control-loop pass never
	// stalls waiting for correction bytes.
	ReadTimeout time.Duration

	ChunkBytes       int
	MaxChunksPerPump int
}

// Link is the correction relay. A failure anywhere drops the link; recovery
// is a fresh EnsureConnected on a later pass, with no backoff and no error
// surfaced beyond the snapshot.
type Link struct {
	cfg Config

	mu             sync.Mutex
	conn           net.Conn
	state          State
	lastErr        string
	bytesForwarded uint64
	connects       uint64

	buf []byte
}

type Snapshot struct {
	Addr           string `json:"addr"`
	State          string `json:"state"`
	LastError      string `json:"last_error,omitempty"`
	BytesForwarded uint64 `json:"bytes_forwarded"`
	Connects       uint64 `json:"connects"`
}

func New(cfg Config) (*Link, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("relay addr is required")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 2 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 5 * time.Millisecond
	}
	if cfg.ChunkBytes <= 0 {
		cfg.ChunkBytes = 512
	}
	if cfg.MaxChunksPerPump <= 0 {
		cfg.MaxChunksPerPump = 32
	}
	return &Link{cfg: cfg, buf: make([]byte, cfg.ChunkBytes)}, nil
}

func (l *Link) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state == Connected
}

// EnsureConnected makes a single connection attempt when the link is down.
// Reports whether the link is up afterwards.
func (l *Link) EnsureConnected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == Connected {
		return true
	}

	d := net.Dialer{Timeout: l.cfg.DialTimeout}
	conn, err := d.Dial("tcp", l.cfg.Addr)
	if err != nil {
		l.lastErr = err.Error()
		return false
	}
	l.conn = conn
	l.state = Connected
	l.lastErr = ""
	l.connects++
	return true
}

// Pump drains whatever correction bytes are ready and forwards each chunk
// verbatim to dst (the receiver's input path). A no-op when Disconnected or
// when no bytes are available. On a read or forward failure the link drops
// and the remaining bytes of this tick are discarded.
func (l *Link) Pump(dst io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != Connected {
		return
	}

	for i := 0; i < l.cfg.MaxChunksPerPump; i++ {
		_ = l.conn.SetReadDeadline(time.Now().Add(l.cfg.ReadTimeout))
		n, err := l.conn.Read(l.buf)
		if n > 0 {
			if _, werr := dst.Write(l.buf[:n]); werr != nil {
				l.dropLocked(fmt.Sprintf("relay forward failed: %v", werr))
				return
			}
			l.bytesForwarded += uint64(n)
		}
		if err != nil {
			if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
				// No more bytes this tick.
				return
			}
			l.dropLocked(fmt.Sprintf("relay read failed: %v", err))
			return
		}
	}
}

func (l *Link) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn != nil {
		_ = l.conn.Close()
		l.conn = nil
	}
	l.state = Disconnected
}

func (l *Link) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Snapshot{
		Addr:           l.cfg.Addr,
		State:          l.state.String(),
		LastError:      l.lastErr,
		BytesForwarded: l.bytesForwarded,
		Connects:       l.connects,
	}
}

func (l *Link) dropLocked(msg string) {
	if l.conn != nil {
		_ = l.conn.Close()
		l.conn = nil
	}
	l.state = Disconnected
	l.lastErr = msg
}
